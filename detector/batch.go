// Package detector - Batch analysis.
package detector

import (
	"context"
	"sync"
)

// BatchResult is the outcome of one request in a batch.
type BatchResult struct {
	ID     string  `json:"id"`
	Result *Result `json:"result,omitempty"`
	Err    error   `json:"-"`
	Error  string  `json:"error,omitempty"`
}

// AnalyzeBatch analyzes requests concurrently.
//
// Each failure is terminal only for its own request; the rest of the batch
// still runs.
//
// Arguments:
//   - ctx: The batch context, shared by every request.
//   - requests: The requests; IDs must be unique within the batch.
//   - maxConcurrency: Maximum number of requests in progress at once.
//
// Returns:
//   - []BatchResult: One entry per request, in request order.
//
// @example
// results := d.AnalyzeBatch(ctx, requests, 4)
//
//	for _, r := range results {
//	    if r.Err != nil {
//	        log.Printf("%s: %v", r.ID, r.Err)
//	    }
//	}
func (d *Detector) AnalyzeBatch(ctx context.Context, requests []Request, maxConcurrency int) []BatchResult {
	return d.AnalyzeBatchFunc(ctx, requests, maxConcurrency, nil)
}

// AnalyzeBatchFunc is AnalyzeBatch with a callback invoked as each request
// finishes, in completion order. Calls to done are serialized.
func (d *Detector) AnalyzeBatchFunc(ctx context.Context, requests []Request, maxConcurrency int, done func(BatchResult)) []BatchResult {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	results := make([]BatchResult, len(requests))

	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup
	var doneMu sync.Mutex

	for i, req := range requests {
		wg.Add(1)
		go func(idx int, req Request) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := d.Analyze(ctx, req)
			results[idx] = BatchResult{ID: req.ID, Result: result, Err: err}
			if err != nil {
				results[idx].Error = err.Error()
			}

			if done != nil {
				doneMu.Lock()
				done(results[idx])
				doneMu.Unlock()
			}
		}(i, req)
	}

	wg.Wait()
	return results
}

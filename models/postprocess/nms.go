// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"
	"sync"

	"github.com/nvr-ai/go-cavity/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"` // Overlap above which the weaker box is suppressed.
	ClassAware   bool    `json:"class_aware" yaml:"class_aware"`     // If true, suppress only within same class.
	NumWorkers   int     `json:"num_workers" yaml:"num_workers"`     // Goroutines processing class partitions; <= 1 runs inline.
}

// DefaultNMSConfig returns class-aware suppression at IoU 0.4.
func DefaultNMSConfig() *NMSConfig {
	return &NMSConfig{
		IoUThreshold: 0.4,
		ClassAware:   true,
		NumWorkers:   1,
	}
}

// ApplyNMS filters overlapping candidates using Non-Maximum Suppression.
//
// Candidates are partitioned by class (or kept in one partition when the
// config is not class aware). Each partition is sorted by descending score,
// ties broken by extraction index, and suppressed greedily. Partitions are
// independent, so with NumWorkers > 1 they are processed concurrently.
//
// Arguments:
//   - candidates: The confidence-filtered, image-space candidates in any order.
//   - config: NMS configuration; nil uses DefaultNMSConfig.
//
// Returns:
//   - []Candidate: The survivors, grouped by ascending class id and sorted by
//     descending score within a class. If no candidates are provided, returns nil.
func ApplyNMS(candidates []Candidate, config *NMSConfig) []Candidate {
	if len(candidates) == 0 {
		return nil
	}
	if config == nil {
		config = DefaultNMSConfig()
	}

	partitions := partition(candidates, config.ClassAware)
	kept := make([][]Candidate, len(partitions))

	if config.NumWorkers <= 1 || len(partitions) == 1 {
		for i, p := range partitions {
			kept[i] = ApplyGreedyNMS(p, config.IoUThreshold)
		}
	} else {
		jobs := make(chan int, len(partitions))
		for i := range partitions {
			jobs <- i
		}
		close(jobs)

		var wg sync.WaitGroup
		for w := 0; w < config.NumWorkers && w < len(partitions); w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					kept[i] = ApplyGreedyNMS(partitions[i], config.IoUThreshold)
				}
			}()
		}
		wg.Wait()
	}

	filtered := make([]Candidate, 0, len(candidates))
	for _, k := range kept {
		filtered = append(filtered, k...)
	}
	return filtered
}

// partition groups candidates by class id, in ascending class order.
func partition(candidates []Candidate, classAware bool) [][]Candidate {
	if !classAware {
		return [][]Candidate{append([]Candidate(nil), candidates...)}
	}

	byClass := make(map[int][]Candidate)
	for _, c := range candidates {
		byClass[c.Class] = append(byClass[c.Class], c)
	}

	classes := make([]int, 0, len(byClass))
	for class := range byClass {
		classes = append(classes, class)
	}
	sort.Ints(classes)

	partitions := make([][]Candidate, len(classes))
	for i, class := range classes {
		partitions[i] = byClass[class]
	}
	return partitions
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression on one partition.
//
// Arguments:
//   - candidates: The partition; sorted in place by descending score.
//   - iouThreshold: IoU threshold above which overlapping boxes are suppressed.
//
// Returns:
//   - Filtered slice of candidates.
func ApplyGreedyNMS(candidates []Candidate, iouThreshold float32) []Candidate {
	n := len(candidates)
	if n == 0 {
		return nil
	}

	SortByScore(candidates)

	filtered := make([]Candidate, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := candidates[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}

			// Suppress if IoU exceeds threshold
			if images.CalculateIoU(anchor.Box, candidates[j].Box) > iouThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}

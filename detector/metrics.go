// Package detector - Per-stage timing statistics.
package detector

import (
	"sync"
	"time"
)

// Stage names recorded by a Detector.
const (
	StagePreprocess = "preprocess"
	StageInference  = "inference"
	StageDecode     = "decode"
)

// StageStats summarizes the timings of one pipeline stage.
type StageStats struct {
	Count int64         `json:"count"`
	Total time.Duration `json:"total"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
}

// Average returns the mean duration, or zero before the first sample.
func (s StageStats) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

type stageTimer struct {
	mu     sync.Mutex
	now    func() time.Time
	stages map[string]*StageStats
}

func newStageTimer(now func() time.Time) *stageTimer {
	return &stageTimer{now: now, stages: make(map[string]*StageStats)}
}

// start begins timing a stage.
//
// Arguments:
// - name: The stage name.
//
// Returns:
// - A function to call when the stage completes.
func (t *stageTimer) start(name string) func() {
	begin := t.now()
	return func() {
		t.record(name, t.now().Sub(begin))
	}
}

func (t *stageTimer) record(name string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.stages[name]
	if !ok {
		s = &StageStats{Min: d, Max: d}
		t.stages[name] = s
	}
	s.Count++
	s.Total += d
	if d < s.Min {
		s.Min = d
	}
	if d > s.Max {
		s.Max = d
	}
}

func (t *stageTimer) snapshot() map[string]StageStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]StageStats, len(t.stages))
	for name, s := range t.stages {
		out[name] = *s
	}
	return out
}

func (t *stageTimer) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stages = make(map[string]*StageStats)
}

// Stats returns the timing statistics of every stage run so far.
func (d *Detector) Stats() map[string]StageStats {
	return d.timer.snapshot()
}

// ResetStats clears the timing statistics.
func (d *Detector) ResetStats() {
	d.timer.reset()
}

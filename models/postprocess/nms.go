package postprocess

import (
	"cmp"
	"slices"
	"sync"
)

// CrossClassIoUThreshold is the overlap above which a box suppresses a lower-scoring box of a
// different class. Only near-identical boxes are treated as the same object seen twice.
const CrossClassIoUThreshold = 0.90

// parallelMinRemaining is the number of remaining candidates below which a suppression pass
// stays on the calling goroutine.
const parallelMinRemaining = 512

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// Overlap above which a same-class box is suppressed.
	IoUThreshold float64 `json:"iou_threshold" yaml:"iou_threshold"`
	// If false, every box is compared with IoUThreshold regardless of class.
	ClassAware bool `json:"class_aware" yaml:"class_aware"`
	// Number of goroutines used to compare a kept box against the remaining ones.
	NumWorkers int `json:"num_workers" yaml:"num_workers"`
}

// DefaultNMSConfig returns the class-aware configuration used by the detector.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{
		IoUThreshold: 0.45,
		ClassAware:   true,
		NumWorkers:   1,
	}
}

// threshold returns the suppression threshold between a kept box and another candidate.
func (c *NMSConfig) threshold(kept, other Candidate) float64 {
	if !c.ClassAware || kept.ClassIndex == other.ClassIndex {
		return c.IoUThreshold
	}
	return CrossClassIoUThreshold
}

// ApplyNMS filters overlapping candidates using greedy Non-Maximum Suppression.
//
// Candidates are visited in descending confidence (ties keep their input order). Each kept
// candidate suppresses every later one that overlaps it by more than the threshold for the
// pair: config.IoUThreshold within a class, CrossClassIoUThreshold across classes. The
// input slice is not modified.
//
// Arguments:
//   - candidates: The decoded candidates in any order.
//   - config: NMS configuration. DefaultNMSConfig is used when nil.
//
// Returns:
//   - The surviving candidates sorted by descending confidence.
func ApplyNMS(candidates []Candidate, config *NMSConfig) []Candidate {
	if config == nil {
		def := DefaultNMSConfig()
		config = &def
	}
	n := len(candidates)
	if n == 0 {
		return []Candidate{}
	}

	sorted := slices.Clone(candidates)
	slices.SortStableFunc(sorted, func(a, b Candidate) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})

	suppressed := make([]bool, n)
	kept := make([]Candidate, 0, n)

	for i := 0; i < n; i++ {
		if suppressed[i] {
			continue
		}
		anchor := sorted[i]
		kept = append(kept, anchor)

		if config.NumWorkers > 1 && n-i-1 >= parallelMinRemaining {
			suppressParallel(sorted, suppressed, i, config)
			continue
		}
		suppressRange(sorted, suppressed, i, i+1, n, config)
	}

	return kept
}

// suppressRange marks candidates in [from, to) that overlap sorted[i] too much.
func suppressRange(sorted []Candidate, suppressed []bool, i, from, to int, config *NMSConfig) {
	anchor := sorted[i]
	for j := from; j < to; j++ {
		if suppressed[j] {
			continue
		}
		if IoU(anchor, sorted[j]) > config.threshold(anchor, sorted[j]) {
			suppressed[j] = true
		}
	}
}

// suppressParallel splits the candidates after i into contiguous chunks, one per worker.
// Each worker owns its chunk of the suppressed flags.
func suppressParallel(sorted []Candidate, suppressed []bool, i int, config *NMSConfig) {
	start := i + 1
	remaining := len(sorted) - start
	chunk := (remaining + config.NumWorkers - 1) / config.NumWorkers

	var wg sync.WaitGroup
	for from := start; from < len(sorted); from += chunk {
		to := min(from+chunk, len(sorted))
		wg.Add(1)
		go func(from, to int) {
			defer wg.Done()
			suppressRange(sorted, suppressed, i, from, to, config)
		}(from, to)
	}
	wg.Wait()
}

package postprocess

import (
	flatbush "github.com/bmharper/flatbush-go"
)

// DefaultTouchIoU is the overlap above which two same-class boxes belong to one cluster.
const DefaultTouchIoU = 0.01

// disjointSet is a union-find over candidate positions.
type disjointSet []int

func newDisjointSet(n int) disjointSet {
	s := make(disjointSet, n)
	for i := range s {
		s[i] = i
	}
	return s
}

func (s disjointSet) find(i int) int {
	for s[i] != i {
		s[i] = s[s[i]]
		i = s[i]
	}
	return i
}

func (s disjointSet) union(a, b int) {
	ra, rb := s.find(a), s.find(b)
	if ra == rb {
		return
	}
	// The smaller index becomes the root so roots are stable across runs.
	if rb < ra {
		ra, rb = rb, ra
	}
	s[rb] = ra
}

// MergeClusters collapses groups of touching same-class candidates into their strongest
// member.
//
// Two candidates of the same class are connected when their IoU exceeds touchIoU. Every
// connected component, however it chains together, is replaced by its highest-confidence
// member; ties go to the member that came first in the input. The result does not depend
// on the input order beyond that tie-break.
//
// Arguments:
//   - candidates: Candidates after suppression.
//   - touchIoU: Minimum overlap (exclusive) for two candidates to be connected.
//
// Returns:
//   - The surviving candidates in their original relative order.
func MergeClusters(candidates []Candidate, touchIoU float64) []Candidate {
	n := len(candidates)
	if n == 0 {
		return []Candidate{}
	}

	byClass := map[int][]int{}
	for i, c := range candidates {
		byClass[c.ClassIndex] = append(byClass[c.ClassIndex], i)
	}

	set := newDisjointSet(n)
	for _, members := range byClass {
		connectMembers(candidates, members, touchIoU, set)
	}

	// Pick the strongest member of each component. Visiting in input order with a strict
	// comparison keeps the earliest member on ties.
	best := map[int]int{}
	for i, c := range candidates {
		root := set.find(i)
		cur, ok := best[root]
		if !ok || c.Confidence > candidates[cur].Confidence {
			best[root] = i
		}
	}

	out := make([]Candidate, 0, len(best))
	for i, c := range candidates {
		if best[set.find(i)] == i {
			out = append(out, c)
		}
	}
	return out
}

// connectMembers unions every pair of same-class members whose IoU exceeds touchIoU. A
// spatial index limits the pairs to those whose extents intersect.
func connectMembers(candidates []Candidate, members []int, touchIoU float64, set disjointSet) {
	if len(members) < 2 {
		return
	}

	fb := flatbush.NewFlatbush[float64]()
	fb.Reserve(len(members))
	for _, idx := range members {
		b := candidates[idx].Bounds()
		fb.Add(b.X, b.Y, b.X2(), b.Y2())
	}
	fb.Finish()

	nearby := []int{}
	for local, idx := range members {
		b := candidates[idx].Bounds()
		nearby = fb.SearchFast(b.X, b.Y, b.X2(), b.Y2(), nearby)
		for _, other := range nearby {
			if other <= local {
				continue
			}
			j := members[other]
			if IoU(candidates[idx], candidates[j]) > touchIoU {
				set.union(idx, j)
			}
		}
	}
}

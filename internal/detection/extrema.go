package detection

import (
	"sort"
)

// ExtremaSet is a strictly ascending list of profile indices that survived
// simplification.
type ExtremaSet []int

// PersistencePair is a local minimum matched with the local maximum at which
// its component merged into an older one.
type PersistencePair struct {
	MinIndex    int     `json:"min_index"`
	MaxIndex    int     `json:"max_index"`
	Persistence float64 `json:"persistence"`
}

// Pairs computes the persistence pairs of a 1-D signal.
//
// Indices are visited from low to high value, ties broken by index, and
// merged into connected components with a union-find. When an index joins
// two components the younger one (the one born at the higher value) dies
// and forms a pair with that index. The global minimum never dies and has
// no pair.
//
// The result is sorted by descending persistence, then ascending MinIndex.
func Pairs(signal []float64) []PersistencePair {
	n := len(signal)
	if n == 0 {
		return nil
	}

	below := func(i, j int) bool {
		if signal[i] != signal[j] {
			return signal[i] < signal[j]
		}
		return i < j
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return below(order[a], order[b]) })

	parent := make([]int, n)
	for i := range parent {
		parent[i] = -1
	}
	birth := make([]int, n)

	find := func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	var pairs []PersistencePair
	for _, i := range order {
		parent[i] = i
		birth[i] = i

		left := i > 0 && parent[i-1] >= 0
		right := i < n-1 && parent[i+1] >= 0

		switch {
		case left && right:
			rl, rr := find(i-1), find(i+1)
			older, younger := rl, rr
			if below(birth[rr], birth[rl]) {
				older, younger = rr, rl
			}
			pairs = append(pairs, PersistencePair{
				MinIndex:    birth[younger],
				MaxIndex:    i,
				Persistence: signal[i] - signal[birth[younger]],
			})
			parent[younger] = older
			parent[i] = older
		case left:
			parent[i] = find(i - 1)
		case right:
			parent[i] = find(i + 1)
		}
	}

	sort.SliceStable(pairs, func(a, b int) bool {
		if pairs[a].Persistence != pairs[b].Persistence {
			return pairs[a].Persistence > pairs[b].Persistence
		}
		return pairs[a].MinIndex < pairs[b].MinIndex
	})
	return pairs
}

// Simplify reduces a signal to its significant extrema.
//
// Every persistence pair whose persistence reaches threshold contributes
// both its minimum and its maximum. Pairs with zero persistence come from
// plateaus and are never kept. If no pair survives but the signal still
// spans more than threshold, the global maximum is added. The global
// minimum is always part of the result, so only an empty signal yields an
// empty set.
func Simplify(signal []float64, threshold float64) ExtremaSet {
	if len(signal) == 0 {
		return ExtremaSet{}
	}

	minIdx, maxIdx := 0, 0
	for i, v := range signal {
		if v < signal[minIdx] {
			minIdx = i
		}
		if v > signal[maxIdx] {
			maxIdx = i
		}
	}

	var idx []int
	for _, p := range Pairs(signal) {
		if p.Persistence > 0 && p.Persistence >= threshold {
			idx = append(idx, p.MinIndex, p.MaxIndex)
		}
	}
	if len(idx) == 0 && signal[maxIdx]-signal[minIdx] > threshold {
		idx = append(idx, maxIdx)
	}
	idx = append(idx, minIdx)

	sort.Ints(idx)
	set := make(ExtremaSet, 0, len(idx))
	for i, v := range idx {
		if i > 0 && v == idx[i-1] {
			continue
		}
		set = append(set, v)
	}
	return set
}

// Intervals returns the consecutive index pairs of the set.
func (s ExtremaSet) Intervals() [][2]int {
	if len(s) < 2 {
		return nil
	}
	out := make([][2]int, 0, len(s)-1)
	for i := 0; i+1 < len(s); i++ {
		out = append(out, [2]int{s[i], s[i+1]})
	}
	return out
}

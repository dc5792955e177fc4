// Package rle implements a run-length encoded vector: an ordered list of
// keyed, length-having items that automatically merges adjacent runs when
// they're appendable. It backs the causal graph's entry list and agent
// assignment table, and the oplog's op-run list.
package rle

import "sort"

// Keyed is the contract an RleVec item must satisfy. Items are conceptually
// the half-open range [Key(), Key()+Len()), and no two items in a vector may
// have overlapping ranges.
type Keyed interface {
	Key() int
	Len() int
}

// Appendable is implemented by items which can be merged with an adjacent,
// appendable run, avoiding an explosion of single-unit entries.
type Appendable[T any] interface {
	Keyed
	CanAppend(next T) bool
	Append(next T)
}

// Vec is a run-length encoded vector of T. The zero value is an empty vec.
// Not safe for concurrent use; callers serialize access.
type Vec[T Appendable[T]] struct {
	items []T
}

// New creates an empty RleVec.
func New[T Appendable[T]]() *Vec[T] {
	return &Vec[T]{}
}

// Len returns the number of runs (not the number of logical units).
func (v *Vec[T]) Len() int { return len(v.items) }

// Items exposes the underlying runs in key order. The returned slice aliases
// internal storage and must not be mutated by the caller.
func (v *Vec[T]) Items() []T { return v.items }

// Last returns the final run and whether one exists.
func (v *Vec[T]) Last() (T, bool) {
	var zero T
	if len(v.items) == 0 {
		return zero, false
	}
	return v.items[len(v.items)-1], true
}

// Push appends x to the vec, merging it into the last run if possible.
// Returns true if a merge occurred (no new run was created).
func (v *Vec[T]) Push(x T) bool {
	if n := len(v.items); n > 0 && v.items[n-1].CanAppend(x) {
		v.items[n-1].Append(x)
		return true
	}
	v.items = append(v.items, x)
	return false
}

// FindIndex performs a binary search for the run covering key, treating
// items as half-open [Key(), Key()+Len()) ranges. If key isn't covered by
// any run, it returns the index at which such a run would be inserted and
// ok=false.
func (v *Vec[T]) FindIndex(key int) (idx int, ok bool) {
	i := sort.Search(len(v.items), func(i int) bool {
		return v.items[i].Key()+v.items[i].Len() > key
	})
	if i < len(v.items) && v.items[i].Key() <= key {
		return i, true
	}
	return i, false
}

// Find returns the run covering key, if any.
func (v *Vec[T]) Find(key int) (item T, ok bool) {
	i, found := v.FindIndex(key)
	if !found {
		var zero T
		return zero, false
	}
	return v.items[i], true
}

// FindPacked returns the run covering key. It panics if key isn't covered --
// used by callers which have already established key must be present.
func (v *Vec[T]) FindPacked(key int) T {
	item, ok := v.Find(key)
	if !ok {
		panic("rle: FindPacked: key not covered by any run")
	}
	return item
}

// At returns the run at vec-internal index i (not a key lookup).
func (v *Vec[T]) At(i int) T { return v.items[i] }

// Truncatable is implemented by items that IterRange can slice into
// sub-ranges tiling the requested key range.
type Truncatable[T any] interface {
	Keyed
	// TruncateFrom returns the portion of the item starting at offset
	// (0 < offset < Len()) through the end.
	TruncateFrom(offset int) T
	// TruncateTo returns the portion of the item from the start through
	// offset (0 < offset < Len()).
	TruncateTo(offset int) T
}

// IterRange yields clones of runs truncated to tile [start, end), in order.
// T must additionally satisfy Truncatable for correct sub-range slicing.
func IterRange[T interface {
	Appendable[T]
	Truncatable[T]
}](v *Vec[T], start, end int) []T {
	if start >= end {
		return nil
	}
	idx, ok := v.FindIndex(start)
	if !ok {
		// No run covers `start` exactly; the insertion point may still
		// contain later coverage, so just continue scanning from idx.
	}
	var out []T
	for i := idx; i < len(v.items) && v.items[i].Key() < end; i++ {
		item := v.items[i]
		itemStart, itemEnd := item.Key(), item.Key()+item.Len()
		if itemEnd <= start {
			continue
		}
		lo, hi := itemStart, itemEnd
		if lo < start {
			item = item.TruncateFrom(start - lo)
			lo = start
		}
		if hi > end {
			item = item.TruncateTo(end - lo)
		}
		out = append(out, item)
	}
	return out
}

// SparseCovers reports whether every key in [start, end) is covered by some
// run in the vec.
func (v *Vec[T]) SparseCovers(start, end int) bool {
	if start >= end {
		return true
	}
	cursor := start
	idx, _ := v.FindIndex(start)
	for cursor < end {
		if idx >= len(v.items) {
			return false
		}
		item := v.items[idx]
		if item.Key() > cursor {
			return false
		}
		itemEnd := item.Key() + item.Len()
		if itemEnd <= cursor {
			idx++
			continue
		}
		cursor = itemEnd
		idx++
	}
	return true
}

package rle

import "testing"

type run struct {
	start, length int
}

func (r run) Key() int { return r.start }
func (r run) Len() int { return r.length }
func (r *run) CanAppend(next *run) bool {
	return r.start+r.length == next.start
}
func (r *run) Append(next *run) { r.length += next.length }

func TestPushMerges(t *testing.T) {
	v := New[*run]()
	v.Push(&run{0, 5})
	if merged := v.Push(&run{5, 3}); !merged {
		t.Fatalf("expected adjacent run to merge")
	}
	if v.Len() != 1 {
		t.Fatalf("expected 1 run after merge, got %d", v.Len())
	}
	last, _ := v.Last()
	if last.Len() != 8 {
		t.Fatalf("expected merged length 8, got %d", last.Len())
	}
}

func TestPushNoMergeOnGap(t *testing.T) {
	v := New[*run]()
	v.Push(&run{0, 5})
	if merged := v.Push(&run{10, 3}); merged {
		t.Fatalf("expected non-adjacent run not to merge")
	}
	if v.Len() != 2 {
		t.Fatalf("expected 2 runs, got %d", v.Len())
	}
}

func TestFindIndex(t *testing.T) {
	v := New[*run]()
	v.Push(&run{0, 5})
	v.Push(&run{10, 3})

	if _, ok := v.FindIndex(3); !ok {
		t.Fatalf("expected key 3 to be covered")
	}
	if _, ok := v.FindIndex(7); ok {
		t.Fatalf("expected key 7 (gap) to be uncovered")
	}
	if idx, ok := v.FindIndex(11); !ok || idx != 1 {
		t.Fatalf("expected key 11 covered at index 1, got idx=%d ok=%v", idx, ok)
	}
}

func TestSparseCovers(t *testing.T) {
	v := New[*run]()
	v.Push(&run{0, 5})
	v.Push(&run{10, 3})

	if !v.SparseCovers(1, 4) {
		t.Fatalf("expected [1,4) to be covered")
	}
	if v.SparseCovers(3, 11) {
		t.Fatalf("expected [3,11) to be uncovered (spans the gap)")
	}
}

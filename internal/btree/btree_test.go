package btree

import (
	"testing"

	"github.com/jonybepary/seqcrdt/causalgraph"
)

func mkItem(start, end causalgraph.LV, state ItemState) Item {
	return Item{
		ID:          causalgraph.LVRange{Start: start, End: end},
		OriginLeft:  causalgraph.RootLV,
		OriginRight: causalgraph.RootLV,
		State:       state,
	}
}

func TestInsertAndCursorRoundTrip(t *testing.T) {
	tr := New()
	cur := tr.CursorAt(0, MetricRaw, false)
	tr.InsertAtCursor(cur, []Item{mkItem(0, 5, StateInserted)})

	items := tr.LeafItems(tr.FirstLeaf())
	if len(items) != 1 || items[0].Len() != 5 {
		t.Fatalf("unexpected items after insert: %+v", items)
	}

	c2 := tr.CursorAtRawPos(3, false)
	if c2.Offset != 3 {
		t.Fatalf("expected offset 3, got %+v", c2)
	}
}

func TestInsertSplitsMidItem(t *testing.T) {
	tr := New()
	tr.InsertAtCursor(tr.CursorAt(0, MetricRaw, false), []Item{mkItem(0, 5, StateInserted)})

	mid := tr.CursorAtRawPos(2, false)
	tr.InsertAtCursor(mid, []Item{mkItem(10, 11, StateInserted)})

	items := tr.LeafItems(tr.FirstLeaf())
	if len(items) != 3 {
		t.Fatalf("expected 3 items after mid-split insert, got %d: %+v", len(items), items)
	}
	total := 0
	for _, it := range items {
		total += it.Len()
	}
	if total != 6 {
		t.Fatalf("expected total length 6, got %d", total)
	}
}

func TestMutateRangeTogglesState(t *testing.T) {
	tr := New()
	tr.InsertAtCursor(tr.CursorAt(0, MetricRaw, false), []Item{mkItem(0, 5, StateInserted)})

	cur := Cursor{Leaf: tr.FirstLeaf(), Index: 0, Offset: 1}
	n := tr.MutateRange(cur, 2, func(it *Item) { it.State = StateDeleted })
	if n != 2 {
		t.Fatalf("expected 2 units mutated, got %d", n)
	}

	items := tr.LeafItems(tr.FirstLeaf())
	if len(items) != 3 {
		t.Fatalf("expected 3 items after partial delete, got %d: %+v", len(items), items)
	}
	if items[1].State != StateDeleted || items[1].Len() != 2 {
		t.Fatalf("expected middle item deleted len 2, got %+v", items[1])
	}

	c := tr.CursorAtContentPos(0, false)
	if c.Index != 0 {
		t.Fatalf("expected content cursor to skip nothing at pos 0, got %+v", c)
	}
}

func TestLeafSplitOnOverflow(t *testing.T) {
	tr := New()
	cur := tr.CursorAt(0, MetricRaw, false)
	for i := 0; i < leafCapacity+5; i++ {
		start := causalgraph.LV(i * 2)
		it := mkItem(start, start+1, StateInserted)
		it.OriginLeft = start - 1
		cur = tr.InsertAtCursor(cur, []Item{it})
	}
	if tr.NextLeaf(tr.FirstLeaf()) < 0 {
		t.Fatalf("expected tree to have split into multiple leaves")
	}
}

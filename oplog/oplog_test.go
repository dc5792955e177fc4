package oplog

import (
	"testing"

	"github.com/jonybepary/seqcrdt/causalgraph"
)

func TestAddInsertThenAddDeleteBackspaceRunMerges(t *testing.T) {
	o := New()

	span1, err := o.AddInsert("alice", causalgraph.Frontier{}, 0, "abc")
	if err != nil {
		t.Fatalf("AddInsert: %v", err)
	}
	f1 := causalgraph.Frontier{span1.End - 1}

	span2, err := o.AddDelete("alice", f1, 2, "c")
	if err != nil {
		t.Fatalf("AddDelete 1: %v", err)
	}
	f2 := causalgraph.Frontier{span2.End - 1}

	span3, err := o.AddDelete("alice", f2, 1, "b")
	if err != nil {
		t.Fatalf("AddDelete 2: %v", err)
	}
	f3 := causalgraph.Frontier{span3.End - 1}

	span4, err := o.AddDelete("alice", f3, 0, "a")
	if err != nil {
		t.Fatalf("AddDelete 3: %v", err)
	}

	if o.ops.Len() != 2 {
		t.Fatalf("expected the three backspace deletes to merge into one run (2 ops total), got %d runs", o.ops.Len())
	}
	delRun := o.ops.Items()[1]
	if delRun.Direction != Rev {
		t.Fatalf("expected backspace run to be classified Rev, got %v", delRun.Direction)
	}
	if delRun.Span.Start != span2.Start || delRun.Span.End != span4.End {
		t.Fatalf("expected merged delete span %d..%d, got %v", span2.Start, span4.End, delRun.Span)
	}

	ops := o.Iter()
	if len(ops) != 6 {
		t.Fatalf("expected 6 exploded operations, got %d", len(ops))
	}
	wantChars := "abccba"
	for i, op := range ops {
		if op.Char != wantChars[i] {
			t.Fatalf("op %d: got char %q, want %q", i, op.Char, wantChars[i])
		}
	}
	wantPos := []int{0, 1, 2, 2, 1, 0}
	for i, op := range ops {
		if op.Pos != wantPos[i] {
			t.Fatalf("op %d: got pos %d, want %d", i, op.Pos, wantPos[i])
		}
	}
}

func TestOperationAtMatchesIter(t *testing.T) {
	o := New()
	o.AddInsert("alice", causalgraph.Frontier{}, 0, "hi")

	for lv := causalgraph.LV(0); lv < 2; lv++ {
		op := o.OperationAt(lv)
		if op.Kind != 0 {
			t.Fatalf("lv %d: expected insert kind", lv)
		}
		if op.Pos != int(lv) {
			t.Fatalf("lv %d: got pos %d, want %d", lv, op.Pos, lv)
		}
	}
}

func TestIterXFOperationsRecordsAppliedUnits(t *testing.T) {
	o := New()
	alice := "alice"
	span, _ := o.AddInsert(alice, causalgraph.Frontier{}, 0, "hi")
	to := causalgraph.Frontier{span.End - 1}

	entries := o.IterXFOperations(causalgraph.Frontier{}, to)
	if len(entries) != 2 {
		t.Fatalf("expected 2 transformed operations, got %d", len(entries))
	}
	if entries[0].Pos != 0 || entries[1].Pos != 1 {
		t.Fatalf("unexpected transformed positions: %+v", entries)
	}
}

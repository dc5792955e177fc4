package branch

import (
	"testing"

	"github.com/jonybepary/seqcrdt/oplog"
)

func TestLinearInsertScenario(t *testing.T) {
	log := oplog.New()
	b := New()
	if _, err := b.Insert(log, "a", 0, "hello"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if b.Text.String() != "hello" {
		t.Fatalf("got %q", b.Text.String())
	}
	if len(b.Frontier) != 1 {
		t.Fatalf("expected single-element tip frontier, got %v", b.Frontier)
	}
}

func TestConcurrentInsertTieBreak(t *testing.T) {
	// Agents a and b both insert a single character at position 0
	// concurrently; result is "ab" (lower agent id -- first interned,
	// "a" -- wins the left position).
	log := oplog.New()
	ba := New()
	if _, err := ba.Insert(log, "a", 0, "a"); err != nil {
		t.Fatalf("a insert: %v", err)
	}

	bb := New() // bob starts from root, concurrently with alice's insert above
	if _, err := bb.Insert(log, "b", 0, "b"); err != nil {
		t.Fatalf("b insert: %v", err)
	}

	merged := New()
	merged.Merge(log, log.Graph.Version())
	if got := merged.Text.String(); got != "ab" {
		t.Fatalf("expected deterministic tie-break \"ab\", got %q", got)
	}
	if len(merged.Frontier) != 2 {
		t.Fatalf("expected two-element tip frontier after concurrent edits, got %v", merged.Frontier)
	}
}

func TestInsertThenDeleteAcrossBranches(t *testing.T) {
	log := oplog.New()
	a := New()
	if _, err := a.Insert(log, "a", 0, "xy"); err != nil {
		t.Fatalf("a insert: %v", err)
	}

	bBranch := New()
	if _, err := bBranch.Insert(log, "b", 0, "Z"); err != nil {
		t.Fatalf("b insert: %v", err)
	}

	a.Merge(log, log.Graph.Version())
	if got := a.Text.String(); got != "Zxy" {
		t.Fatalf("expected \"Zxy\", got %q", got)
	}
}

func TestBackspaceRunReplaysToEmpty(t *testing.T) {
	log := oplog.New()
	b := New()
	if _, err := b.Insert(log, "a", 0, "abc"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	for _, pos := range []int{2, 1, 0} {
		if _, err := b.Delete(log, "a", pos, 1); err != nil {
			t.Fatalf("delete at %d: %v", pos, err)
		}
	}
	if b.Text.String() != "" {
		t.Fatalf("expected empty text, got %q", b.Text.String())
	}
}

func TestCheckoutMatchesIncrementalBranch(t *testing.T) {
	log := oplog.New()
	b := New()
	b.Insert(log, "a", 0, "hello")
	b.Delete(log, "a", 0, 1)

	fresh := Checkout(log, log.Graph.Version())
	if fresh.Text.String() != b.Text.String() {
		t.Fatalf("checkout %q != incremental branch %q", fresh.Text.String(), b.Text.String())
	}
}

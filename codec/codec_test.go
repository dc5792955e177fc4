package codec

import (
	"testing"

	"github.com/jonybepary/seqcrdt/branch"
	"github.com/jonybepary/seqcrdt/oplog"
)

func textAt(t *testing.T, log *oplog.OpLog) string {
	t.Helper()
	return branch.Checkout(log, log.Graph.Version()).Text.String()
}

func TestFullRoundTrip(t *testing.T) {
	log := oplog.New()
	b := branch.New()
	if _, err := b.Insert(log, "alice", 0, "hello"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := b.Delete(log, "alice", 0, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := b.Insert(log, "alice", 0, "H"); err != nil {
		t.Fatalf("insert 2: %v", err)
	}

	data, err := Encode(log, DefaultWriteOptions())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	want, got := textAt(t, log), textAt(t, decoded)
	if want != got {
		t.Fatalf("round-trip text mismatch: want %q, got %q", want, got)
	}
	if !decoded.Graph.Version().Equal(log.Graph.Version()) {
		t.Fatalf("round-trip frontier mismatch: want %v, got %v", log.Graph.Version(), decoded.Graph.Version())
	}
}

func TestPatchRoundTrip(t *testing.T) {
	// A patch encoded from an intermediate version merges cleanly into a
	// fresh oplog that already holds that same prefix of history.
	log := oplog.New()
	b := branch.New()
	b.Insert(log, "alice", 0, "abc")
	f1 := log.Graph.Version().Clone()

	b.Insert(log, "alice", 3, "def")

	patch, err := Encode(log, WriteOptions{FromVersion: f1, StoreInsertedContent: true, StoreDeletedContent: true})
	if err != nil {
		t.Fatalf("Encode patch: %v", err)
	}

	// Build a fresh oplog at f1, then merge the patch into it.
	clone := oplog.New()
	cloneBranch := branch.New()
	cloneBranch.Insert(clone, "alice", 0, "abc")

	merged, err := DecodeInto(clone, patch)
	if err != nil {
		t.Fatalf("DecodeInto: %v", err)
	}
	if !merged.Equal(log.Graph.Version()) {
		t.Fatalf("merged frontier %v != source frontier %v", merged, log.Graph.Version())
	}

	want, got := textAt(t, log), textAt(t, clone)
	if want != got {
		t.Fatalf("patch round-trip text mismatch: want %q got %q", want, got)
	}
}

func TestPatchReapplyIsNoOp(t *testing.T) {
	// Re-merging an already-applied patch must not duplicate any runs.
	log := oplog.New()
	b := branch.New()
	b.Insert(log, "alice", 0, "abc")

	data, err := Encode(log, DefaultWriteOptions())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	dst := oplog.New()
	if _, err := DecodeInto(dst, data); err != nil {
		t.Fatalf("first DecodeInto: %v", err)
	}
	firstRunCount := len(dst.Runs())

	if _, err := DecodeInto(dst, data); err != nil {
		t.Fatalf("second DecodeInto: %v", err)
	}
	if got := len(dst.Runs()); got != firstRunCount {
		t.Fatalf("re-applying the same patch changed run count: %d -> %d", firstRunCount, got)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := Decode([]byte("nope"))
	if err == nil {
		t.Fatalf("expected error for bad magic")
	}
	ce, ok := err.(*Error)
	if !ok || ce.Kind != KindMalformed {
		t.Fatalf("expected KindMalformed, got %#v", err)
	}
}

func TestDecodeFullRejectsPatchFile(t *testing.T) {
	log := oplog.New()
	b := branch.New()
	b.Insert(log, "alice", 0, "ab")
	f1 := log.Graph.Version().Clone()

	b.Insert(log, "alice", 2, "c")
	patch, err := Encode(log, WriteOptions{FromVersion: f1, StoreInsertedContent: true})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := Decode(patch); err == nil {
		t.Fatalf("expected Decode to reject a patch file")
	}
}

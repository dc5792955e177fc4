package oplog

import "github.com/jonybepary/seqcrdt/causalgraph"

// Kind distinguishes insert and delete operations, mirroring
// integration.OpKind (oplog can't reuse that type directly without pulling
// integration's dependency graph into every caller that only wants to read
// raw history).
type Kind int

const (
	KindIns Kind = iota
	KindDel
)

// Direction records which way a run's per-unit content positions move:
// Fwd for ordinary left-to-right typing (and forward, single-point, range
// deletes), Rev for a run of single-character deletes working backward
// (holding Backspace).
type Direction int8

const (
	Fwd Direction = 1
	Rev Direction = -1
)

// opRun is one run-length-encoded span of the operation-metrics table:
// Span.Start..Span.End are LVs, all contributed by the same op Kind, moving
// in the same Direction, with ContentStart indexing into the matching
// content buffer for the run's first unit.
type opRun struct {
	Span         causalgraph.LVRange
	Kind         Kind
	Pos          int // content-position of the run's first unit
	Direction    Direction
	ContentStart int // offset into InsertedContent or DeletedContent
}

// PosAt returns the content-position of the nth unit (0-indexed) within the
// run, in the document as it stands just before that unit is applied. Every
// unit of a forward delete run sits at the run's starting position, since
// removing one unit shifts the next one left onto it.
func (r *opRun) PosAt(n int) int {
	if r.Kind == KindDel && r.Direction == Fwd {
		return r.Pos
	}
	return r.Pos + n*int(r.Direction)
}

func (r opRun) Key() int { return int(r.Span.Start) }
func (r opRun) Len() int { return r.Span.Len() }

// CanAppend merges two separately-pushed single-op runs into one, inferring
// Direction where it wasn't yet established. A length-1 run hasn't
// committed to a direction yet, so it may still merge backward (the
// Backspace pattern: a sequence of add_delete(pos), add_delete(pos-1), ...
// each arriving as its own length-1 run).
func (r *opRun) CanAppend(next *opRun) bool {
	if r.Span.End != next.Span.Start || r.Kind != next.Kind {
		return false
	}
	n := r.Span.Len()
	switch {
	case next.Pos == r.PosAt(n):
		return true
	case n == 1 && next.Pos == r.Pos-1:
		return true
	default:
		return false
	}
}

func (r *opRun) Append(next *opRun) {
	if r.Span.Len() == 1 && next.Pos == r.Pos-1 {
		r.Direction = Rev
	}
	r.Span.End = next.Span.End
}

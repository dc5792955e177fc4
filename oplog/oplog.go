// Package oplog ties a causal graph to the operation content it describes:
// per-LV insert/delete metrics and the two append-only byte buffers
// backing them. It's the concrete integration.OpSource every replay
// (branch merges, transformed-operation iteration, the codec) is driven
// from.
package oplog

import (
	"github.com/jonybepary/seqcrdt/causalgraph"
	"github.com/jonybepary/seqcrdt/integration"
	"github.com/jonybepary/seqcrdt/internal/rle"
	"github.com/jonybepary/seqcrdt/merge"
)

// OpLog is the append-only operation history: a causal graph plus the
// RLE-encoded op metrics and raw content that graph's LVs describe.
type OpLog struct {
	Graph *causalgraph.Graph

	ops             *rle.Vec[*opRun]
	InsertedContent []byte
	DeletedContent  []byte
}

// New creates an empty operation log.
func New() *OpLog {
	return &OpLog{
		Graph: causalgraph.New(),
		ops:   rle.New[*opRun](),
	}
}

// AddInsert appends a new insert operation: agent typed text at pos (content
// position, under parents' view of the document). Returns the LV span
// assigned to the new characters.
func (o *OpLog) AddInsert(agent string, parents causalgraph.Frontier, pos int, text string) (causalgraph.LVRange, error) {
	if len(text) == 0 {
		return causalgraph.LVRange{}, nil
	}
	id := o.Graph.InternAgent(agent)
	span, err := o.Graph.Push(id, parents, len(text))
	if err != nil {
		return causalgraph.LVRange{}, err
	}
	contentStart := len(o.InsertedContent)
	o.InsertedContent = append(o.InsertedContent, text...)
	o.ops.Push(&opRun{
		Span:         span,
		Kind:         KindIns,
		Pos:          pos,
		Direction:    Fwd,
		ContentStart: contentStart,
	})
	return span, nil
}

// AddDelete appends a new delete operation: agent removed deletedText
// (which the caller must have read from its own materialized view before
// calling, since the oplog keeps no live text of its own) starting at pos,
// under parents' view of the document. pos is the position of the run's
// first deleted unit: for a forward range delete this is the lowest
// position removed, for a Backspace run it's the highest (the position
// shrinks on each subsequent single-unit call, which is exactly the pattern
// opRun.CanAppend recognizes and folds into a single Rev run).
func (o *OpLog) AddDelete(agent string, parents causalgraph.Frontier, pos int, deletedText string) (causalgraph.LVRange, error) {
	if len(deletedText) == 0 {
		return causalgraph.LVRange{}, nil
	}
	id := o.Graph.InternAgent(agent)
	span, err := o.Graph.Push(id, parents, len(deletedText))
	if err != nil {
		return causalgraph.LVRange{}, err
	}
	contentStart := len(o.DeletedContent)
	o.DeletedContent = append(o.DeletedContent, deletedText...)
	o.ops.Push(&opRun{
		Span:         span,
		Kind:         KindDel,
		Pos:          pos,
		Direction:    Fwd,
		ContentStart: contentStart,
	})
	return span, nil
}

// OperationAt implements integration.OpSource: it reports the kind, agent,
// and content-position of a single LV, looked up from whichever op run
// covers it.
func (o *OpLog) OperationAt(lv causalgraph.LV) integration.OpData {
	run := o.ops.FindPacked(int(lv))
	offset := int(lv - run.Span.Start)
	kind := integration.OpIns
	if run.Kind == KindDel {
		kind = integration.OpDel
	}
	return integration.OpData{
		Kind:  kind,
		Agent: o.Graph.AgentAt(lv),
		Pos:   run.PosAt(offset),
	}
}

// ContentByteAt returns the single content byte an insert's LV introduced.
// Only meaningful for Ins LVs; used by branch playback, which only ever
// needs the byte value for inserts (deletes just remove from the rope).
func (o *OpLog) ContentByteAt(lv causalgraph.LV) byte {
	run := o.ops.FindPacked(int(lv))
	offset := int(lv - run.Span.Start)
	return o.InsertedContent[run.ContentStart+offset]
}

// Run is one exported run-length-encoded span of the operation-metrics
// table, plus the causal parents of its first LV and the slice of content
// (inserted or deleted text, whichever the run's Kind is) it covers. This
// is the unit the codec serializes and replays one-for-one via AddInsert /
// AddDelete.
type Run struct {
	Span      causalgraph.LVRange
	Kind      Kind
	Pos       int
	Direction Direction
	Parents   causalgraph.Frontier
	Content   []byte
}

// Runs exposes every op run in LV order, each carrying the causal parents
// of its first LV (read straight from the causal graph, not re-derived).
func (o *OpLog) Runs() []Run {
	out := make([]Run, 0, o.ops.Len())
	for _, run := range o.ops.Items() {
		buf := o.InsertedContent
		if run.Kind == KindDel {
			buf = o.DeletedContent
		}
		n := run.Span.Len()
		out = append(out, Run{
			Span:      run.Span,
			Kind:      run.Kind,
			Pos:       run.Pos,
			Direction: run.Direction,
			Parents:   o.Graph.ParentsAt(run.Span.Start),
			Content:   buf[run.ContentStart : run.ContentStart+n],
		})
	}
	return out
}

// Operation is one exploded (per-unit) history entry, as produced by Iter.
type Operation struct {
	LV    causalgraph.LV
	Kind  Kind
	Agent causalgraph.AgentID
	Pos   int
	Char  byte
}

// Iter walks the whole history in LV order, restoring the per-character
// position and content of every unit. This is the untransformed view:
// positions are each operation's own author-time position, not remapped to
// any particular frontier.
func (o *OpLog) Iter() []Operation {
	var out []Operation
	for _, run := range o.ops.Items() {
		buf := o.InsertedContent
		if run.Kind == KindDel {
			buf = o.DeletedContent
		}
		n := run.Span.Len()
		for i := 0; i < n; i++ {
			out = append(out, Operation{
				LV:    run.Span.Start + causalgraph.LV(i),
				Kind:  run.Kind,
				Agent: o.Graph.AgentAt(run.Span.Start + causalgraph.LV(i)),
				Pos:   run.PosAt(i),
				Char:  buf[run.ContentStart+i],
			})
		}
	}
	return out
}

// IterXFOperations replays the plan from `from` to `to` and returns every
// operation unit introduced by `to` but not `from`, each carrying the
// position it was actually applied at -- i.e. its position transformed
// into `from`'s (and the replay's intermediate) branch states. This does
// not duplicate Apply's logic: it drives the exact same
// integration.Execute the branch merge path uses, just with recording
// switched on from BeginOutput onward.
func (o *OpLog) IterXFOperations(from, to causalgraph.Frontier) []integration.XFEntry {
	plan := merge.Build(o.Graph, from, to)
	ctx := integration.NewContext()
	ctx.OnBeginOutput = func() { ctx.Recording = true }
	integration.Execute(ctx, o.Graph, plan, o)
	return ctx.Recorded
}

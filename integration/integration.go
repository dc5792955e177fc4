// Package integration is the Yjs-style merge core: it consumes a
// merge.Plan's action stream and drives a btree.Tree, resolving
// origin-left/origin-right tie-breaks for concurrent inserts using the
// causal graph, and flipping item visibility for delete/retreat/advance.
//
// Inserts are placed by scanning forward from a position-derived origin
// anchor rather than appending at a literal index, so concurrent inserts
// at the same position converge on the same order everywhere; the whole
// core is driven by planner actions instead of walking the causal graph
// ad hoc.
package integration

import (
	"math"

	"github.com/jonybepary/seqcrdt/causalgraph"
	"github.com/jonybepary/seqcrdt/internal/btree"
	"github.com/jonybepary/seqcrdt/merge"
)

// OpKind distinguishes the two operation kinds the integration core
// understands: insert and delete.
type OpKind int

const (
	OpIns OpKind = iota
	OpDel
)

// OpData is what the integration core needs to know about a single LV to
// apply, retreat, or advance it. It's supplied by an OpSource (the oplog
// package), keeping this package ignorant of content storage and RLE op
// metrics.
type OpData struct {
	Kind  OpKind
	Agent causalgraph.AgentID
	// Pos is the content-position (visible-character index) this
	// operation's unit occupies in the branch state at its own parents --
	// i.e. exactly the tree state Retreat/Advance bring the context to
	// before Apply runs. For a Del, this is the position of the character
	// being removed; for an Ins, the position the new character lands at.
	Pos int
}

// OpSource supplies per-LV operation data to the integration core.
type OpSource interface {
	OperationAt(lv causalgraph.LV) OpData
}

// Context is the mutable state threaded through a plan execution: the
// B-tree of items, the delete-target map (a delete op's LV doesn't own a
// tree item -- it targets an existing one), and a diagnostic collision
// flag.
type Context struct {
	Tree       *btree.Tree
	DelTargets map[causalgraph.LV]causalgraph.LV

	// ConcurrentInsertCollision is set when two concurrent inserts ever
	// landed at the same origin-left, forcing the agent-id tie-break. It
	// shows whether the tie-break path actually ran rather than just
	// happening to agree with unordered placement.
	ConcurrentInsertCollision bool

	// OnBeginOutput, if set, is called when the plan reaches its
	// BeginOutput action (used by oplog.IterXFOperations to start
	// recording transformed operations).
	OnBeginOutput func()

	// Recording and Recorded implement transformed-operation iteration:
	// once true, every Apply'd unit is appended to Recorded with the
	// position it was applied at -- which, by
	// construction (Apply only ever runs once the tree has been
	// retreated/advanced to the unit's own parents), is exactly that
	// unit's transformed position in the replay's target frontier.
	Recording bool
	Recorded  []XFEntry
}

// XFEntry is one transformed operation unit recorded during a replay.
type XFEntry struct {
	LV   causalgraph.LV
	Kind OpKind
	Pos  int
}

// NewContext creates an empty integration context over a fresh tree.
func NewContext() *Context {
	return &Context{Tree: btree.New(), DelTargets: make(map[causalgraph.LV]causalgraph.LV)}
}

// Execute applies every action in the plan, in order, to ctx.
func Execute(ctx *Context, g *causalgraph.Graph, plan *merge.Plan, src OpSource) {
	for _, act := range plan.Actions {
		switch act.Kind {
		case merge.ActionRetreat:
			for lv := act.Span.Start; lv < act.Span.End; lv++ {
				retreatOne(ctx, src, lv)
			}
		case merge.ActionAdvance:
			for lv := act.Span.Start; lv < act.Span.End; lv++ {
				advanceOne(ctx, src, lv)
			}
		case merge.ActionApply, merge.ActionFF:
			for lv := act.Span.Start; lv < act.Span.End; lv++ {
				applyOne(ctx, src, lv)
			}
		case merge.ActionClear:
			ctx.Tree = btree.New()
			ctx.DelTargets = make(map[causalgraph.LV]causalgraph.LV)
		case merge.ActionBeginOutput:
			if ctx.OnBeginOutput != nil {
				ctx.OnBeginOutput()
			}
		}
	}
}

func applyOne(ctx *Context, src OpSource, lv causalgraph.LV) {
	op := src.OperationAt(lv)
	switch op.Kind {
	case OpIns:
		originLeft, originRight := deriveOrigins(ctx.Tree, op.Pos)
		item := btree.Item{
			ID:          causalgraph.LVRange{Start: lv, End: lv + 1},
			Agent:       op.Agent,
			OriginLeft:  originLeft,
			OriginRight: originRight,
			State:       btree.StateInserted,
		}
		insertWithTieBreak(ctx, item)
		if ctx.Recording {
			ctx.Recorded = append(ctx.Recorded, XFEntry{LV: lv, Kind: OpIns, Pos: op.Pos})
		}
	case OpDel:
		target, ok := findVisibleAt(ctx.Tree, op.Pos)
		if !ok {
			return
		}
		ctx.DelTargets[lv] = target
		setItemState(ctx.Tree, target, btree.StateDeleted, true)
		if ctx.Recording {
			ctx.Recorded = append(ctx.Recorded, XFEntry{LV: lv, Kind: OpDel, Pos: op.Pos})
		}
	}
}

func retreatOne(ctx *Context, src OpSource, lv causalgraph.LV) {
	op := src.OperationAt(lv)
	switch op.Kind {
	case OpIns:
		setItemState(ctx.Tree, lv, btree.StateNotInsertedYet, false)
	case OpDel:
		target, ok := ctx.DelTargets[lv]
		if !ok {
			return
		}
		setItemState(ctx.Tree, target, btree.StateInserted, true)
	}
}

func advanceOne(ctx *Context, src OpSource, lv causalgraph.LV) {
	op := src.OperationAt(lv)
	switch op.Kind {
	case OpIns:
		setItemState(ctx.Tree, lv, btree.StateInserted, false)
	case OpDel:
		target, ok := ctx.DelTargets[lv]
		if !ok {
			return
		}
		setItemState(ctx.Tree, target, btree.StateDeleted, true)
	}
}

// setItemState flips the state of the single unit at lv via a one-unit
// MutateRange. everDeleted is OR'd in, never cleared: it's a sticky flag
// once a unit has ever been deleted, restoring it (undo, retreat/advance)
// must not make it countable as live content again.
func setItemState(tree *btree.Tree, lv causalgraph.LV, state btree.ItemState, everDeleted bool) {
	cur, ok := tree.CursorAtLV(lv)
	if !ok {
		return
	}
	tree.MutateRange(cur, 1, func(it *btree.Item) {
		it.State = state
		if everDeleted {
			it.EverDeleted = true
		}
	})
}

// findVisibleAt returns the LV of the visible (content-position) unit at
// pos.
func findVisibleAt(tree *btree.Tree, pos int) (causalgraph.LV, bool) {
	cur := tree.CursorAtContentPos(pos, false)
	items := tree.LeafItems(cur.Leaf)
	if cur.Index >= len(items) {
		return causalgraph.RootLV, false
	}
	it := items[cur.Index]
	return it.ID.Start + causalgraph.LV(cur.Offset), true
}

// deriveOrigins computes the origin-left/origin-right anchors for an
// insert landing at content-position pos, by reading the raw items
// immediately adjacent to the content cursor. This works whether Apply
// is reconstructing the original author's own anchors (parents ==
// current frontier, guaranteed by the planner) or integrating an FF span.
func deriveOrigins(tree *btree.Tree, pos int) (left, right causalgraph.LV) {
	cur := tree.CursorAtContentPos(pos, true)
	items := tree.LeafItems(cur.Leaf)

	left = causalgraph.RootLV
	if cur.Offset > 0 {
		left = items[cur.Index].ID.Start + causalgraph.LV(cur.Offset) - 1
	} else if cur.Index > 0 {
		left = items[cur.Index-1].ID.End - 1
	}

	right = causalgraph.RootLV
	if cur.Index < len(items) && cur.Offset < items[cur.Index].Len() {
		right = items[cur.Index].ID.Start + causalgraph.LV(cur.Offset)
	} else if cur.Index+1 < len(items) {
		right = items[cur.Index+1].ID.Start
	} else if next := tree.NextLeaf(cur.Leaf); next >= 0 && len(tree.LeafItems(next)) > 0 {
		right = tree.LeafItems(next)[0].ID.Start
	}
	return left, right
}

// insertWithTieBreak places a new insert item: starting
// immediately after origin-left, skip items that must sort before the new
// one, stopping at the first item that must sort after it (or the end of
// the sequence).
func insertWithTieBreak(ctx *Context, item btree.Item) {
	tree := ctx.Tree

	lPos := -1
	if item.OriginLeft != causalgraph.RootLV {
		if p, ok := tree.RawPositionOfLV(item.OriginLeft); ok {
			lPos = p
		}
	}
	rPos := math.MaxInt
	if item.OriginRight != causalgraph.RootLV {
		if p, ok := tree.RawPositionOfLV(item.OriginRight); ok {
			rPos = p
		}
	}

	destPos := lPos + 1
	skipped := false

	for {
		cur := tree.CursorAtRawPos(destPos, false)
		items := tree.LeafItems(cur.Leaf)
		if cur.Index >= len(items) {
			if tree.NextLeaf(cur.Leaf) < 0 {
				break
			}
			// destPos lands exactly on a leaf boundary; CursorAtRawPos
			// should have already resolved into the next leaf, so this
			// only triggers at the very end of the tree.
			break
		}
		o := items[cur.Index]

		oLeftPos := -1
		if o.OriginLeft != causalgraph.RootLV {
			if p, ok := tree.RawPositionOfLV(o.OriginLeft); ok {
				oLeftPos = p
			}
		}
		oRightPos := math.MaxInt
		if o.OriginRight != causalgraph.RootLV {
			if p, ok := tree.RawPositionOfLV(o.OriginRight); ok {
				oRightPos = p
			}
		}

		partA := oLeftPos < lPos || (oLeftPos == lPos && o.Agent < item.Agent)
		partB := oRightPos >= rPos
		if partA && partB {
			if oLeftPos == lPos {
				skipped = true
			}
			destPos += o.Len()
			continue
		}
		break
	}

	if skipped {
		ctx.ConcurrentInsertCollision = true
	}

	insertCur := tree.CursorAtRawPos(destPos, false)
	tree.InsertAtCursor(insertCur, []btree.Item{item})
}

// Package branch implements a checkout: a materialized text view paired
// with the local frontier it represents. A Branch is produced fresh at
// root, or by merging forward from any source frontier; local edits
// append to an oplog.OpLog and then replay onto the branch the same way a
// remote merge would.
package branch

import (
	"github.com/jonybepary/seqcrdt/causalgraph"
	"github.com/jonybepary/seqcrdt/integration"
	"github.com/jonybepary/seqcrdt/oplog"
	"github.com/jonybepary/seqcrdt/rope"
)

// Branch is a mutable text view: the rope materializing the document at
// Frontier, plus Frontier itself. Invariant: Text always equals the
// materialization of the oplog restricted to ancestors of Frontier.
type Branch struct {
	Text     *rope.Rope
	Frontier causalgraph.Frontier
}

// New creates a branch checked out at the root (empty document, empty
// frontier).
func New() *Branch {
	return &Branch{Text: rope.New(), Frontier: causalgraph.Frontier{}}
}

// Merge advances the branch from its current frontier to target, replaying
// every operation target has that the branch doesn't via
// oplog.IterXFOperations -- the same integration machinery a full merge
// uses, so merging two branches of the same oplog forward never
// re-derives transform logic.
func (b *Branch) Merge(log *oplog.OpLog, target causalgraph.Frontier) {
	for _, e := range log.IterXFOperations(b.Frontier, target) {
		switch e.Kind {
		case integration.OpIns:
			b.Text.Insert(e.Pos, []byte{log.ContentByteAt(e.LV)})
		case integration.OpDel:
			b.Text.Remove(e.Pos, e.Pos+1)
		}
	}
	b.Frontier = log.Graph.Dominators(append(append(causalgraph.Frontier(nil), b.Frontier...), target...))
}

// Insert appends a local insert of text at pos to log (parented on the
// branch's current frontier) and advances the branch to match.
func (b *Branch) Insert(log *oplog.OpLog, agent string, pos int, text string) (causalgraph.LVRange, error) {
	span, err := log.AddInsert(agent, b.Frontier, pos, text)
	if err != nil {
		return causalgraph.LVRange{}, err
	}
	if span.Len() == 0 {
		return span, nil
	}
	b.Text.Insert(pos, []byte(text))
	b.Frontier = causalgraph.Frontier{span.End - 1}
	return span, nil
}

// Delete removes the range [pos, pos+length) from the branch, appending
// the corresponding delete to log (parented on the branch's current
// frontier). The removed text is read from the branch's own materialized
// view, since the oplog keeps no live text of its own.
func (b *Branch) Delete(log *oplog.OpLog, agent string, pos, length int) (causalgraph.LVRange, error) {
	if length == 0 {
		return causalgraph.LVRange{}, nil
	}
	deleted := string(b.Text.Slice(pos, pos+length))
	span, err := log.AddDelete(agent, b.Frontier, pos, deleted)
	if err != nil {
		return causalgraph.LVRange{}, err
	}
	b.Text.Remove(pos, pos+length)
	b.Frontier = causalgraph.Frontier{span.End - 1}
	return span, nil
}

// Checkout materializes a fresh, independent branch at frontier f by
// merging forward from root. Convenience wrapper used by the CLI's `cat`
// and `set` commands.
func Checkout(log *oplog.OpLog, f causalgraph.Frontier) *Branch {
	b := New()
	b.Merge(log, f)
	return b
}

package integration

import (
	"testing"

	"github.com/jonybepary/seqcrdt/causalgraph"
	"github.com/jonybepary/seqcrdt/internal/btree"
	"github.com/jonybepary/seqcrdt/merge"
)

// fakeSource maps LVs directly to OpData for tests; real usage is
// oplog.OpLog.
type fakeSource map[causalgraph.LV]OpData

func (s fakeSource) OperationAt(lv causalgraph.LV) OpData { return s[lv] }

func textOf(tree *btree.Tree, content []byte) string {
	var out []byte
	for leaf := tree.FirstLeaf(); leaf >= 0; leaf = tree.NextLeaf(leaf) {
		for _, it := range tree.LeafItems(leaf) {
			if it.State != btree.StateInserted {
				continue
			}
			for lv := it.ID.Start; lv < it.ID.End; lv++ {
				out = append(out, content[int(lv)])
			}
		}
	}
	return string(out)
}

func TestLinearInsert(t *testing.T) {
	g := causalgraph.New()
	alice := g.InternAgent("alice")
	g.Push(alice, causalgraph.Frontier{}, 5) // "hello" -> LVs 0..4

	src := fakeSource{}
	content := []byte("hello")
	for i := 0; i < 5; i++ {
		src[causalgraph.LV(i)] = OpData{Kind: OpIns, Agent: alice, Pos: i}
	}

	ctx := NewContext()
	plan := merge.Build(g, causalgraph.Frontier{}, causalgraph.Frontier{4})
	Execute(ctx, g, plan, src)

	if got := textOf(ctx.Tree, content); got != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestConcurrentInsertTieBreak(t *testing.T) {
	g := causalgraph.New()
	alice := g.InternAgent("alice")
	bob := g.InternAgent("bob")
	g.Push(alice, causalgraph.Frontier{}, 1) // LV 0: 'a'
	g.Push(bob, causalgraph.Frontier{}, 1)   // LV 1: 'b', concurrent with LV0

	src := fakeSource{
		0: {Kind: OpIns, Agent: alice, Pos: 0},
		1: {Kind: OpIns, Agent: bob, Pos: 0},
	}
	content := []byte("ab")

	ctx := NewContext()
	plan := merge.Build(g, causalgraph.Frontier{}, causalgraph.Frontier{0, 1})
	Execute(ctx, g, plan, src)

	got := textOf(ctx.Tree, content)
	if got != "ab" {
		t.Fatalf("got %q, want %q (agent with lower id wins the left position)", got, "ab")
	}
}

func TestInsertThenDeleteAcrossBranches(t *testing.T) {
	g := causalgraph.New()
	alice := g.InternAgent("alice")
	bob := g.InternAgent("bob")
	g.Push(alice, causalgraph.Frontier{}, 2) // LVs 0,1: "xy"
	g.Push(bob, causalgraph.Frontier{}, 1)   // LV 2: "Z", concurrent

	src := fakeSource{
		0: {Kind: OpIns, Agent: alice, Pos: 0},
		1: {Kind: OpIns, Agent: alice, Pos: 1},
		2: {Kind: OpIns, Agent: bob, Pos: 0},
	}
	content := []byte("xyZ")

	ctx := NewContext()
	plan := merge.Build(g, causalgraph.Frontier{1}, causalgraph.Frontier{1, 2})
	Execute(ctx, g, plan, src)

	got := textOf(ctx.Tree, content)
	if got != "Zxy" {
		t.Fatalf("got %q, want %q", got, "Zxy")
	}
}

package causalgraph

import (
	"reflect"
	"testing"
)

func mustPush(t *testing.T, g *Graph, agent AgentID, parents Frontier, n int) LVRange {
	t.Helper()
	span, err := g.Push(agent, parents, n)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	return span
}

func TestPushLinearHistory(t *testing.T) {
	g := New()
	alice := g.InternAgent("alice")

	s1 := mustPush(t, g, alice, Frontier{}, 3)
	if s1 != (LVRange{0, 3}) {
		t.Fatalf("unexpected first span: %+v", s1)
	}
	s2 := mustPush(t, g, alice, Frontier{2}, 2)
	if s2 != (LVRange{3, 5}) {
		t.Fatalf("unexpected second span: %+v", s2)
	}
	if !g.Version().Equal(Frontier{4}) {
		t.Fatalf("expected tip {4}, got %v", g.Version())
	}
}

func TestPushConcurrentBranches(t *testing.T) {
	g := New()
	alice := g.InternAgent("alice")
	bob := g.InternAgent("bob")

	mustPush(t, g, alice, Frontier{}, 1) // LV 0
	mustPush(t, g, alice, Frontier{0}, 1) // LV 1
	mustPush(t, g, bob, Frontier{0}, 1)   // LV 2, concurrent with LV1

	if !g.Version().Equal(Frontier{1, 2}) {
		t.Fatalf("expected concurrent tip {1,2}, got %v", g.Version())
	}
}

func TestDominatorsLinearChain(t *testing.T) {
	g := New()
	alice := g.InternAgent("alice")
	mustPush(t, g, alice, Frontier{}, 1)  // 0
	mustPush(t, g, alice, Frontier{0}, 1) // 1
	mustPush(t, g, alice, Frontier{1}, 1) // 2

	got := g.Dominators([]LV{2, 1, 0})
	want := Frontier{2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Dominators = %v, want %v", got, want)
	}
}

func TestDominatorsConcurrent(t *testing.T) {
	g := New()
	alice := g.InternAgent("alice")
	bob := g.InternAgent("bob")
	mustPush(t, g, alice, Frontier{}, 1)  // 0
	mustPush(t, g, alice, Frontier{0}, 1) // 1
	mustPush(t, g, bob, Frontier{0}, 1)   // 2, concurrent with 1

	got := g.Dominators([]LV{1, 2})
	want := Frontier{1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Dominators = %v, want %v", got, want)
	}
}

func TestDiffDisjointBranches(t *testing.T) {
	g := New()
	alice := g.InternAgent("alice")
	bob := g.InternAgent("bob")
	mustPush(t, g, alice, Frontier{}, 1)  // 0: shared base
	mustPush(t, g, alice, Frontier{0}, 1) // 1: only on alice's side
	mustPush(t, g, bob, Frontier{0}, 1)   // 2: only on bob's side

	onlyA, onlyB := g.Diff(Frontier{1}, Frontier{2})
	if !reflect.DeepEqual(onlyA, []LV{1}) {
		t.Fatalf("onlyA = %v, want [1]", onlyA)
	}
	if !reflect.DeepEqual(onlyB, []LV{2}) {
		t.Fatalf("onlyB = %v, want [2]", onlyB)
	}
}

func TestFrontierContainsVersion(t *testing.T) {
	g := New()
	alice := g.InternAgent("alice")
	mustPush(t, g, alice, Frontier{}, 5)  // 0..4, single run, max shadow
	mustPush(t, g, alice, Frontier{4}, 1) // 5

	if !g.FrontierContainsVersion(Frontier{5}, 2) {
		t.Fatalf("expected {5} to contain 2 via shadow fast path")
	}
	if g.FrontierContainsVersion(Frontier{2}, 5) {
		t.Fatalf("did not expect {2} to contain 5")
	}
}

func TestFindConflicting(t *testing.T) {
	g := New()
	alice := g.InternAgent("alice")
	bob := g.InternAgent("bob")
	mustPush(t, g, alice, Frontier{}, 1)  // 0
	mustPush(t, g, alice, Frontier{0}, 1) // 1
	mustPush(t, g, bob, Frontier{0}, 1)   // 2

	onlyA, onlyB, base := g.FindConflicting(Frontier{1}, Frontier{2})
	if !reflect.DeepEqual(onlyA, []LV{1}) || !reflect.DeepEqual(onlyB, []LV{2}) {
		t.Fatalf("unexpected diff: onlyA=%v onlyB=%v", onlyA, onlyB)
	}
	if !base.Equal(Frontier{0}) {
		t.Fatalf("expected common ancestor {0}, got %v", base)
	}
}

func TestBuildConflictSubgraphAndWalk(t *testing.T) {
	g := New()
	alice := g.InternAgent("alice")
	bob := g.InternAgent("bob")
	mustPush(t, g, alice, Frontier{}, 1)  // 0: base
	mustPush(t, g, alice, Frontier{0}, 1) // 1: onlyA
	mustPush(t, g, bob, Frontier{0}, 1)   // 2: onlyB

	sg := g.BuildConflictSubgraph(Frontier{1}, Frontier{2})
	if !sg.Base.Equal(Frontier{0}) {
		t.Fatalf("expected base {0}, got %v", sg.Base)
	}

	var order []LV
	sg.SpanningTreeWalk(func(n SubgraphNode) {
		order = append(order, n.Span.Start)
	})
	if len(order) != len(sg.Nodes) {
		t.Fatalf("walk visited %d nodes, want %d", len(order), len(sg.Nodes))
	}
	pos := make(map[LV]int, len(order))
	for i, v := range order {
		pos[v] = i
	}
	if pos[0] > pos[1] || pos[0] > pos[2] {
		t.Fatalf("base must be visited before its children: order=%v", order)
	}
}

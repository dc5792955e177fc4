package merge

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jonybepary/seqcrdt/causalgraph"
)

func TestBuildEmptyPlanWhenADominatesB(t *testing.T) {
	g := causalgraph.New()
	alice := g.InternAgent("alice")
	g.Push(alice, causalgraph.Frontier{}, 1)
	g.Push(alice, causalgraph.Frontier{0}, 1)

	p := Build(g, causalgraph.Frontier{1}, causalgraph.Frontier{0})
	if len(p.Actions) != 0 {
		t.Fatalf("expected empty plan, got %v", p.Actions)
	}
	if !p.Merged.Equal(causalgraph.Frontier{1}) {
		t.Fatalf("expected merged {1}, got %v", p.Merged)
	}
}

func TestBuildConcurrentPlanEndsAtMergedFrontier(t *testing.T) {
	g := causalgraph.New()
	alice := g.InternAgent("alice")
	bob := g.InternAgent("bob")
	g.Push(alice, causalgraph.Frontier{}, 1)  // 0
	g.Push(alice, causalgraph.Frontier{0}, 1) // 1
	g.Push(bob, causalgraph.Frontier{0}, 1)   // 2

	p := Build(g, causalgraph.Frontier{1}, causalgraph.Frontier{2})
	if len(p.Actions) == 0 {
		t.Fatalf("expected non-empty plan for concurrent merge")
	}
	if !p.Merged.Equal(causalgraph.Frontier{1, 2}) {
		t.Fatalf("expected merged {1,2}, got %v", p.Merged)
	}
	if err := Validate(g, p); err != nil {
		t.Fatalf("plan failed validation: %v", err)
	}
}

// TestBuildIsDeterministic guards that Build is a pure function of its
// inputs -- the same graph and frontiers always produce the same action
// list -- by diffing the full action list between two runs over the same
// graph: reflect.DeepEqual would report only "not equal" here, where
// cmp.Diff pinpoints exactly which action in the stream moved, which is
// what actually matters when this test starts failing. This does not
// exercise subtree-size ordering: see DESIGN.md, that rule from spec §4.4
// is not implemented by this planner.
func TestBuildIsDeterministic(t *testing.T) {
	g := causalgraph.New()
	alice := g.InternAgent("alice")
	bob := g.InternAgent("bob")
	g.Push(alice, causalgraph.Frontier{}, 1)  // 0
	g.Push(alice, causalgraph.Frontier{0}, 1) // 1
	g.Push(bob, causalgraph.Frontier{0}, 1)   // 2

	p1 := Build(g, causalgraph.Frontier{1}, causalgraph.Frontier{2})
	p2 := Build(g, causalgraph.Frontier{1}, causalgraph.Frontier{2})

	if diff := cmp.Diff(p1.Actions, p2.Actions); diff != "" {
		t.Fatalf("planner produced different actions for identical input (-first +second):\n%s", diff)
	}
}

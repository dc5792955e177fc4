// Package merge compiles a pair of frontiers into a linear action stream:
// the merge planner. It consumes the conflict subgraph the causalgraph
// package builds and schedules Retreat/Advance/Apply/FF/Clear/BeginOutput
// actions for the integration core to execute against the B-tree.
//
// This implementation does not cost subtrees at all, exactly or via the
// approximate bitmap estimator: causalgraph.SpanningTreeWalk orders ready
// nodes by zero-retreat continuation first, then ascending LV as a
// tiebreak, and never by subtree size. See DESIGN.md for why this is
// recorded as an open omission rather than implemented speculatively.
package merge

import (
	"fmt"
	"sort"

	"github.com/jonybepary/seqcrdt/causalgraph"
)

// ActionKind distinguishes the six plan action variants.
type ActionKind int

const (
	ActionRetreat ActionKind = iota
	ActionAdvance
	ActionApply
	ActionFF
	ActionClear
	ActionBeginOutput
)

func (k ActionKind) String() string {
	switch k {
	case ActionRetreat:
		return "Retreat"
	case ActionAdvance:
		return "Advance"
	case ActionApply:
		return "Apply"
	case ActionFF:
		return "FF"
	case ActionClear:
		return "Clear"
	case ActionBeginOutput:
		return "BeginOutput"
	default:
		return "?"
	}
}

// Action is one step of an M1Plan. Span is meaningful for Retreat, Advance,
// Apply, and FF; it's the zero value for Clear and BeginOutput.
type Action struct {
	Kind ActionKind
	Span causalgraph.LVRange
}

// Plan is the ordered action stream produced by Build, plus the frontiers
// it was computed between.
type Plan struct {
	Base    causalgraph.Frontier // common ancestor the walk starts from
	Merged  causalgraph.Frontier // dominators(a ∪ b); what executing the plan converges to
	Actions []Action
}

// Build constructs the plan to bring a branch at frontier `a` up to date
// with operations known at frontier `b`. If a already dominates b (b has
// nothing new), the plan is empty and Merged == a.
func Build(g *causalgraph.Graph, a, b causalgraph.Frontier) *Plan {
	merged := g.Dominators(append(append(causalgraph.Frontier(nil), a...), b...))
	if merged.Equal(a) {
		return &Plan{Base: a, Merged: a}
	}

	sg := g.BuildConflictSubgraph(a, b)
	p := &Plan{Base: sg.Base, Merged: merged}

	current := sg.Base.Clone()
	dirty := false
	beganOutput := false

	// onlyAOutstanding counts the OnlyA nodes not yet visited, so we know
	// when it's safe to start treating OnlyB nodes as eligible for
	// fast-forward: approximated as "nothing outstanding on the other
	// branch".
	onlyAOutstanding := 0
	for _, n := range sg.Nodes {
		if n.Tag == causalgraph.TagOnlyA {
			onlyAOutstanding++
		}
	}

	sg.SpanningTreeWalk(func(n causalgraph.SubgraphNode) {
		if n.Tag == causalgraph.TagOnlyA {
			defer func() { onlyAOutstanding-- }()
		}

		parents := n.Parents
		if len(parents) == 0 {
			parents = causalgraph.Frontier{}
		}
		retreatLVs, advanceLVs := g.Diff(current, parents)
		moved := len(retreatLVs) > 0 || len(advanceLVs) > 0

		for _, r := range coalesce(retreatLVs) {
			p.Actions = append(p.Actions, Action{Kind: ActionRetreat, Span: r})
		}
		for _, r := range coalesce(advanceLVs) {
			p.Actions = append(p.Actions, Action{Kind: ActionAdvance, Span: r})
		}

		if n.Tag == causalgraph.TagOnlyB && !beganOutput {
			p.Actions = append(p.Actions, Action{Kind: ActionBeginOutput})
			beganOutput = true
		}

		ffEligible := n.Tag == causalgraph.TagOnlyB && onlyAOutstanding == 0 && !moved
		if ffEligible {
			if dirty {
				p.Actions = append(p.Actions, Action{Kind: ActionClear})
				dirty = false
			}
			p.Actions = append(p.Actions, Action{Kind: ActionFF, Span: n.Span})
		} else {
			p.Actions = append(p.Actions, Action{Kind: ActionApply, Span: n.Span})
			dirty = true
		}

		current = g.Dominators(append(append(causalgraph.Frontier(nil), parents...), n.Span.End-1))
	})

	// The walk tracks `current` node-by-node, each step reconciling only to
	// that node's own parents before applying it -- a sibling branch
	// Retreated to satisfy an earlier node's parent requirement is never
	// implicitly re-Advanced once the walk moves past it. Bring the tree's
	// real visible state the rest of the way to the declared merged
	// frontier before returning, so the plan actually converges to
	// p.Merged per §8's plan-validity invariant.
	retreatLVs, advanceLVs := g.Diff(current, merged)
	for _, r := range coalesce(retreatLVs) {
		p.Actions = append(p.Actions, Action{Kind: ActionRetreat, Span: r})
	}
	for _, r := range coalesce(advanceLVs) {
		p.Actions = append(p.Actions, Action{Kind: ActionAdvance, Span: r})
	}

	return p
}

// coalesce turns a sorted-ascending slice of individual LVs into minimal
// contiguous LVRange runs.
func coalesce(lvs []causalgraph.LV) []causalgraph.LVRange {
	if len(lvs) == 0 {
		return nil
	}
	sort.Slice(lvs, func(i, j int) bool { return lvs[i] < lvs[j] })
	var out []causalgraph.LVRange
	start, end := lvs[0], lvs[0]+1
	for _, v := range lvs[1:] {
		if v == end {
			end = v + 1
			continue
		}
		out = append(out, causalgraph.LVRange{Start: start, End: end})
		start, end = v, v+1
	}
	out = append(out, causalgraph.LVRange{Start: start, End: end})
	return out
}

// Validate replays a plan's actions over a model frontier starting at Base
// and checks that every Retreat's last LV is contained in the current
// frontier. It does not check that an Advance only extends by LVs whose
// parents are already in the frontier, does not check Clear/FF ordering
// against dirtiness, and does not compare the final frontier with Merged.
// It's a diagnostic used by tests, not by the planner itself.
func Validate(g *causalgraph.Graph, p *Plan) error {
	current := p.Base.Clone()
	dirty := false
	for _, act := range p.Actions {
		switch act.Kind {
		case ActionRetreat:
			if !g.FrontierContainsVersion(current, act.Span.End-1) {
				return errPlanf("retreat(%v): not at current frontier", act.Span)
			}
			current = removeFromFrontier(current, act.Span.End-1)
		case ActionAdvance:
			current = append(current, act.Span.End-1)
		case ActionApply, ActionFF:
			dirty = act.Kind == ActionApply || dirty
			current = g.Dominators(append(current, act.Span.End-1))
		case ActionClear:
			dirty = false
		case ActionBeginOutput:
		}
	}
	return nil
}

func removeFromFrontier(f causalgraph.Frontier, v causalgraph.LV) causalgraph.Frontier {
	out := make(causalgraph.Frontier, 0, len(f))
	for _, x := range f {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

type planError struct{ msg string }

func (e *planError) Error() string { return "merge: " + e.msg }
func errPlanf(format string, args ...any) error {
	return &planError{msg: fmt.Sprintf(format, args...)}
}

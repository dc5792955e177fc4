// Package causalgraph implements the operation history: a DAG of
// run-length-encoded version spans with dominator queries, frontier diff,
// and spanning-tree iteration. It is the backbone every other package in
// this module (the B-tree integration core, the merge planner, the oplog)
// builds on.
//
// Entries carry a shadow LV and cached children backlinks, and traversal
// uses a reverse-sorted-heap dominator algorithm instead of repeated
// breadth-first ancestor scans.
package causalgraph

import "github.com/jonybepary/seqcrdt/internal/rle"

// AgentID is a dense, non-negative agent identifier. NoAgent is the
// reserved "no agent" sentinel.
type AgentID int32

// NoAgent is the sentinel meaning "no agent assigned".
const NoAgent AgentID = -1

// RawVersion identifies an operation as (agent name, per-agent sequence).
type RawVersion struct {
	Agent string
	Seq   int
}

// LV is a Local Version: a dense, append-only index assigned to operations
// in observed order. RootLV is the "root/none" sentinel: -1, distinguishable
// from any real LV and cheap to carry through Go's signed arithmetic.
type LV int

// RootLV is the causal-graph root: the implicit parent of every operation
// with no other parents.
const RootLV LV = -1

// LVRange is a half-open range of local versions [Start, End).
type LVRange struct {
	Start, End LV
}

// Len returns the number of LVs covered by the range.
func (r LVRange) Len() int { return int(r.End - r.Start) }

// Frontier is an antichain of LVs: a sorted-ascending, duplicate-free set of
// local versions, none of which is an ancestor of another. The root
// frontier is the empty slice.
type Frontier []LV

// Clone returns an independent copy of the frontier.
func (f Frontier) Clone() Frontier {
	out := make(Frontier, len(f))
	copy(out, f)
	return out
}

// Equal reports whether two frontiers contain the same set of LVs. Both
// must already be sorted-ascending (every frontier produced by this
// package is).
func (f Frontier) Equal(g Frontier) bool {
	if len(f) != len(g) {
		return false
	}
	for i := range f {
		if f[i] != g[i] {
			return false
		}
	}
	return true
}

// Entry is a run-length-encoded span of the causal graph: every LV in
// [Span.Start, Span.End) was contributed by the same agent run, and only
// the first LV in the span carries explicit Parents -- every later LV in
// the span has the implicit parent {v-1}.
type Entry struct {
	Span     LVRange
	Agent    AgentID
	Seq      int // starting sequence number for this agent, at Span.Start
	Parents  Frontier
	Shadow   LV // oldest LV s such that every LV in [s, Span.Start) transitively dominates the whole span
	Children []int
}

func (e Entry) Key() int { return int(e.Span.Start) }
func (e Entry) Len() int { return e.Span.Len() }

func (e *Entry) CanAppend(next *Entry) bool {
	if e.Span.End != next.Span.Start {
		return false
	}
	if e.Agent != next.Agent || e.Seq+e.Span.Len() != next.Seq {
		return false
	}
	if len(next.Parents) != 1 || next.Parents[0] != e.Span.End-1 {
		return false
	}
	return next.Shadow == e.Shadow
}

func (e *Entry) Append(next *Entry) {
	e.Span.End = next.Span.End
}

// ParentsAt returns the explicit-or-implicit parents of v, which must lie
// within this entry's span.
func (e *Entry) ParentsAt(v LV) Frontier {
	if v == e.Span.Start {
		return e.Parents
	}
	return Frontier{v - 1}
}

// clientRun records a contiguous run of sequence numbers contributed by one
// agent, and where that run begins in LV space.
type clientRun struct {
	SeqSpan [2]int // [start, end)
	LVStart LV
}

func (c clientRun) Key() int { return c.SeqSpan[0] }
func (c clientRun) Len() int { return c.SeqSpan[1] - c.SeqSpan[0] }

func (c *clientRun) CanAppend(next *clientRun) bool {
	return c.SeqSpan[1] == next.SeqSpan[0] && c.LVStart+LV(c.Len()) == next.LVStart
}

func (c *clientRun) Append(next *clientRun) {
	c.SeqSpan[1] = next.SeqSpan[1]
}

// Graph is the causal DAG: agent interning, the agent-assignment table, and
// the parents-DAG of LV spans, plus the tip frontier.
type Graph struct {
	agentNames []string
	agentIDs   map[string]AgentID

	assignment map[AgentID]*rle.Vec[*clientRun]
	entries    *rle.Vec[*Entry]

	rootChildren []int // indexes into entries.Items() whose Parents is empty

	version Frontier
	nextLV  LV
}

// New creates an empty causal graph.
func New() *Graph {
	return &Graph{
		agentIDs:   make(map[string]AgentID),
		assignment: make(map[AgentID]*rle.Vec[*clientRun]),
		entries:    rle.New[*Entry](),
		version:    Frontier{},
	}
}

// NextLV returns the next local version that will be assigned.
func (g *Graph) NextLV() LV { return g.nextLV }

// Version returns the current tip frontier. The returned slice aliases
// internal storage and must not be mutated.
func (g *Graph) Version() Frontier { return g.version }

// AgentName returns the interned name for an agent id.
func (g *Graph) AgentName(id AgentID) string {
	if id == NoAgent || int(id) >= len(g.agentNames) {
		return ""
	}
	return g.agentNames[id]
}

// InternAgent returns the dense id for name, assigning a new one if name
// hasn't been seen before. Agents are interned in first-seen order, which
// is what lets "lower agent id" and "lexicographically earlier name" be
// used interchangeably by callers that established the id ordering
// themselves -- callers that need a name-based tie-break regardless of
// arrival order should compare AgentName directly.
func (g *Graph) InternAgent(name string) AgentID {
	if id, ok := g.agentIDs[name]; ok {
		return id
	}
	id := AgentID(len(g.agentNames))
	g.agentNames = append(g.agentNames, name)
	g.agentIDs[name] = id
	g.assignment[id] = rle.New[*clientRun]()
	return id
}

// NextSeqForAgent returns the next available sequence number for an agent,
// 0 if the agent has no entries yet.
func (g *Graph) NextSeqForAgent(agent AgentID) int {
	vec, ok := g.assignment[agent]
	if !ok {
		return 0
	}
	last, ok := vec.Last()
	if !ok {
		return 0
	}
	return last.SeqSpan[1]
}

package causalgraph

import "sort"

// This file adds the read-only query surface the codec and CLI need on top
// of the core graph (version summaries, RawVersion<->LV translation): none
// of it participates in Push/Dominators/Diff, it's all derived from state
// those already maintain.

// ParentsAt exposes parentsAt: the explicit-or-implicit parents of v.
// Used by the codec to record each serialized run's causal parents.
func (g *Graph) ParentsAt(v LV) Frontier { return g.parentsAt(v) }

// AgentNames returns a copy of the agent name table in interning order
// (table index == AgentID), for the codec's FileInfo chunk.
func (g *Graph) AgentNames() []string {
	out := make([]string, len(g.agentNames))
	copy(out, g.agentNames)
	return out
}

// AgentIDByName looks up an already-interned agent by name without
// creating one, unlike InternAgent -- callers should InternAgent
// explicitly when they want creation.
func (g *Graph) AgentIDByName(name string) (AgentID, bool) {
	id, ok := g.agentIDs[name]
	return id, ok
}

// LVOfRawVersion translates a (agent, seq) pair to this graph's local LV,
// if that operation is known here. This is the inverse of RawVersionAt,
// and is what lets the codec translate a remote file's parent references
// (always agent-sequence pairs on the wire, since LVs aren't portable
// across oplogs) into whatever local LV numbering this particular oplog
// happens to be using.
func (g *Graph) LVOfRawVersion(rv RawVersion) (LV, bool) {
	id, ok := g.agentIDs[rv.Agent]
	if !ok {
		return RootLV, false
	}
	vec, ok := g.assignment[id]
	if !ok {
		return RootLV, false
	}
	run, ok := vec.Find(rv.Seq)
	if !ok {
		return RootLV, false
	}
	return run.LVStart + LV(rv.Seq-run.SeqSpan[0]), true
}

// FrontierToRawVersions maps every LV in f to its (agent, seq) identity,
// the form frontiers take in the wire format (StartBranch/EndBranch
// chunks) since raw LVs aren't portable across oplogs.
func (g *Graph) FrontierToRawVersions(f Frontier) []RawVersion {
	out := make([]RawVersion, len(f))
	for i, v := range f {
		out[i] = g.RawVersionAt(v)
	}
	return out
}

// VersionSummary is a compact, per-agent description of a frontier's
// transitive closure: for each agent, the sorted, RLE-coalesced sequence
// ranges known to be included. It's what the codec's patch mode and the
// CLI's `log --history` use instead of walking the full graph.
type VersionSummary map[string][][2]int

// Summarize computes the VersionSummary of every operation that is an
// ancestor of (or equal to) frontier f.
func (g *Graph) Summarize(f Frontier) VersionSummary {
	out := make(VersionSummary)
	closure := g.ancestorClosure(f)
	for _, v := range closure {
		rv := g.RawVersionAt(v)
		ranges := out[rv.Agent]
		if n := len(ranges); n > 0 && ranges[n-1][1] == rv.Seq {
			ranges[n-1][1] = rv.Seq + 1
		} else {
			ranges = append(ranges, [2]int{rv.Seq, rv.Seq + 1})
		}
		out[rv.Agent] = ranges
	}
	return out
}

// ancestorClosure returns every LV that is an ancestor of (or a member of)
// f, in ascending order. Used only by Summarize, which is diagnostic/CLI
// facing rather than hot-path, so a plain visited-set walk (rather than
// the shadow-accelerated traversal Dominators/Diff use) is simple and
// sufficient.
func (g *Graph) ancestorClosure(f Frontier) []LV {
	visited := make(map[LV]bool)
	var stack []LV
	for _, v := range f {
		stack = append(stack, v)
	}
	var out []LV
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if v == RootLV || visited[v] {
			continue
		}
		visited[v] = true
		out = append(out, v)
		stack = append(stack, g.parentsAt(v)...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

package causalgraph

import (
	"sort"

	"github.com/jonybepary/seqcrdt/internal/rle"
)

// Push assigns `length` new local versions to `agent`, parented on
// `parents`, and appends the resulting entry to the graph. It returns the
// assigned span and advances the tip frontier to include it.
//
// Threads the Shadow fast-path value and maintains Children backlinks on
// the parent entries, which the heap-based Dominators/Diff traversal
// below depends on.
func (g *Graph) Push(agent AgentID, parents Frontier, length int) (LVRange, error) {
	if length <= 0 {
		return LVRange{}, errInvariantf("push: length must be positive, got %d", length)
	}
	start := g.nextLV
	span := LVRange{Start: start, End: start + LV(length)}

	for _, p := range parents {
		if p != RootLV && (p < 0 || p >= g.nextLV) {
			return LVRange{}, errInconsistentf("push: parent %d is not a known version", p)
		}
	}

	seq := g.NextSeqForAgent(agent)
	shadow := g.computeShadow(parents, start)

	entry := &Entry{
		Span:    span,
		Agent:   agent,
		Seq:     seq,
		Parents: parents.Clone(),
		Shadow:  shadow,
	}

	entryIdx := g.entries.Len()
	merged := g.entries.Push(entry)
	if merged {
		// entries.Push folded this into the previous run; the previous
		// entry is now the carrier and there's no new index to link as a
		// child of the parents (the parent/child edge was already wired
		// in when the previous run was first pushed).
	} else {
		if len(parents) == 0 {
			g.rootChildren = append(g.rootChildren, entryIdx)
		}
		for _, p := range parents {
			if p == RootLV {
				g.rootChildren = append(g.rootChildren, entryIdx)
				continue
			}
			pIdx, ok := g.entries.FindIndex(int(p))
			if !ok {
				return LVRange{}, errInconsistentf("push: parent %d not found in entries", p)
			}
			g.entries.Items()[pIdx].Children = append(g.entries.Items()[pIdx].Children, entryIdx)
		}
	}

	run := &clientRun{SeqSpan: [2]int{seq, seq + length}, LVStart: start}
	agentVec, ok := g.assignment[agent]
	if !ok {
		agentVec = rle.New[*clientRun]()
		g.assignment[agent] = agentVec
	}
	agentVec.Push(run)

	g.nextLV = span.End
	g.version = g.advanceFrontier(parents, span.End-1)

	return span, nil
}

// computeShadow derives the Shadow fast-path value for a new entry: the
// oldest LV s such that every version in [s, start) is known to be a
// (possibly transitive) ancestor of the new span. When the new entry's
// single parent is start-1 (so the parent's run ends right where the new
// span begins), the shadow can extend backward through that parent's own
// shadow; any other shape (no parents, an older parent, multiple parents)
// resets the shadow to start.
func (g *Graph) computeShadow(parents Frontier, start LV) LV {
	if len(parents) != 1 {
		return start
	}
	p := parents[0]
	if p == RootLV {
		return start
	}
	idx, ok := g.entries.FindIndex(int(p))
	if !ok {
		return start
	}
	e := g.entries.At(idx)
	if p != start-1 {
		// Parent isn't the LV immediately before the new span -- the LVs
		// in between aren't all ancestors, so the shadow can't extend.
		return start
	}
	if e.Shadow == e.Span.Start {
		// The parent run's own shadow doesn't reach further back than
		// itself; still, the whole parent run is now dominated.
		return e.Span.Start
	}
	return e.Shadow
}

// advanceFrontier folds a newly pushed LV (with the given parents) into the
// current tip frontier: every parent is removed (it's now dominated by the
// new version) and the new version is inserted in sorted order.
func (g *Graph) advanceFrontier(parents Frontier, newHead LV) Frontier {
	out := make(Frontier, 0, len(g.version)+1)
	parentSet := make(map[LV]bool, len(parents))
	for _, p := range parents {
		parentSet[p] = true
	}
	for _, v := range g.version {
		if !parentSet[v] {
			out = append(out, v)
		}
	}
	out = append(out, newHead)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// parentsAt returns the parents of v (explicit at a run's start, implicit
// {v-1} elsewhere in the run).
func (g *Graph) parentsAt(v LV) Frontier {
	if v == RootLV {
		return nil
	}
	idx, ok := g.entries.FindIndex(int(v))
	if !ok {
		return nil
	}
	return g.entries.At(idx).ParentsAt(v)
}

// entryContainingLV returns the entry covering v and reports whether one
// was found.
func (g *Graph) entryContainingLV(v LV) (*Entry, bool) {
	idx, ok := g.entries.FindIndex(int(v))
	if !ok {
		return nil, false
	}
	return g.entries.At(idx), true
}

// AgentAt returns the agent that authored v.
func (g *Graph) AgentAt(v LV) AgentID {
	e, ok := g.entryContainingLV(v)
	if !ok {
		return NoAgent
	}
	return e.Agent
}

// RawVersionAt returns the (agent, seq) pair identifying v, the form used by
// the wire codec and CLI version output.
func (g *Graph) RawVersionAt(v LV) RawVersion {
	e, ok := g.entryContainingLV(v)
	if !ok {
		return RawVersion{}
	}
	offset := int(v - e.Span.Start)
	return RawVersion{Agent: g.AgentName(e.Agent), Seq: e.Seq + offset}
}

// FrontierContainsVersion reports whether v is contained in (dominated by,
// or equal to an element of) frontier f. Uses each run's Shadow fast-path
// to jump whole dominated runs in one step before falling back to walking
// explicit parent edges.
func (g *Graph) FrontierContainsVersion(f Frontier, v LV) bool {
	if v == RootLV {
		return true
	}
	visited := make(map[LV]bool)
	queue := append(Frontier(nil), f...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == RootLV || cur < v || visited[cur] {
			continue
		}
		visited[cur] = true

		e, ok := g.entryContainingLV(cur)
		if !ok {
			continue
		}
		if v >= e.Shadow && v <= cur {
			return true
		}
		// v lies below Shadow, so it can only be reached through the
		// explicit parents of the run's first LV.
		queue = append(queue, e.Parents...)
	}
	return false
}

// heapTag distinguishes why an LV is in the dominator/diff traversal queue.
type heapTag int

const (
	tagCandidate heapTag = iota // still a candidate output (dominator, or "only on this side")
	tagReached                  // proven dominated / shared; never emitted
)

// maxLVHeap is a reverse-sorted (largest-first) slice of LV, used by both
// Dominators and Diff. It's small enough in practice (bounded by frontier
// width, not graph size) that a kept-sorted slice beats the bookkeeping of
// a real binary heap.
type maxLVHeap []LV

// Dominators computes the minimal antichain of vs: the subset of vs which
// is not transitively reachable from any other element of vs.
//
// Uses a reverse-sorted-heap algorithm: pop the highest
// LV, decide whether it's a dominator from the tags that have reached it so
// far, then push its parents tagged "reached" to propagate dominance
// backward. The traversal stops as soon as every input LV has been
// resolved, since nothing beyond that point can change the answer.
func (g *Graph) Dominators(vs []LV) Frontier {
	if len(vs) == 0 {
		return Frontier{}
	}
	remaining := make(map[LV]bool, len(vs))
	for _, v := range vs {
		remaining[v] = true
	}

	tag := make(map[LV]heapTag, len(vs))
	h := make(maxLVHeap, 0, len(vs))
	for v := range remaining {
		tag[v] = tagCandidate
		h = append(h, v)
	}
	heapInit(&h)

	visited := make(map[LV]bool)
	var result Frontier

	for len(h) > 0 {
		v := heapPopLV(&h)
		if visited[v] {
			continue
		}
		visited[v] = true

		if tag[v] == tagCandidate {
			result = append(result, v)
		}
		if remaining[v] {
			delete(remaining, v)
			if len(remaining) == 0 {
				break
			}
		}

		for _, p := range g.parentsAt(v) {
			if p == RootLV {
				continue
			}
			tag[p] = tagReached
			heapPushLV(&h, p)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

func heapInit(h *maxLVHeap) {
	sort.Slice(*h, func(i, j int) bool { return (*h)[i] > (*h)[j] })
}

func heapPushLV(h *maxLVHeap, v LV) {
	*h = append(*h, v)
	sort.Slice(*h, func(i, j int) bool { return (*h)[i] > (*h)[j] })
}

func heapPopLV(h *maxLVHeap) LV {
	old := *h
	v := old[0]
	*h = old[1:]
	return v
}

type diffSide int

const (
	sideA diffSide = 1 << iota
	sideB
	sideShared = sideA | sideB
)

// Diff classifies every LV reachable from a or b into "only in a's history",
// "only in b's history", or "shared by both".
//
// Returns the non-shared LVs as sorted ascending slices (run-length
// coalescing into LVRange is the caller's job; the merge planner's
// coalesce does this when it turns a diff into Retreat/Advance actions).
func (g *Graph) Diff(a, b Frontier) (onlyA, onlyB []LV) {
	side := make(map[LV]diffSide)
	h := make(maxLVHeap, 0, len(a)+len(b))
	push := func(v LV, s diffSide) {
		if v == RootLV {
			return
		}
		if existing, ok := side[v]; ok {
			side[v] = existing | s
		} else {
			side[v] = s
			h = append(h, v)
		}
	}
	for _, v := range a {
		push(v, sideA)
	}
	for _, v := range b {
		push(v, sideB)
	}
	heapInit(&h)

	visited := make(map[LV]bool)
	for len(h) > 0 {
		v := heapPopLV(&h)
		if visited[v] {
			continue
		}
		visited[v] = true

		switch side[v] {
		case sideA:
			onlyA = append(onlyA, v)
		case sideB:
			onlyB = append(onlyB, v)
		case sideShared:
			// not emitted
		}

		s := side[v]
		for _, p := range g.parentsAt(v) {
			push(p, s)
		}
	}

	sort.Slice(onlyA, func(i, j int) bool { return onlyA[i] < onlyA[j] })
	sort.Slice(onlyB, func(i, j int) bool { return onlyB[i] < onlyB[j] })
	return onlyA, onlyB
}

// FindConflicting computes the diff between a and b, and additionally
// returns the common ancestor frontier (the dominators of whatever both
// sides ultimately share).
func (g *Graph) FindConflicting(a, b Frontier) (onlyA, onlyB []LV, commonAncestor Frontier) {
	onlyA, onlyB = g.Diff(a, b)
	return onlyA, onlyB, g.BuildConflictSubgraph(a, b).Base
}

package causalgraph

import "sort"

// SubgraphTag marks which side(s) of a merge a conflict-subgraph node
// belongs to: only reachable from a, only reachable from b, or common to
// both -- the merge planner's input.
type SubgraphTag int

const (
	TagOnlyA SubgraphTag = iota
	TagOnlyB
	TagShared
)

// SubgraphNode is one run-length span of the conflict subgraph: a
// contiguous range of LVs with uniform tag and the same graph entry parents.
type SubgraphNode struct {
	Span    LVRange
	Tag     SubgraphTag
	Parents Frontier // parents in the *original* causal graph, for retreat/advance
}

// ConflictSubgraph is the DAG the merge planner walks: every LV reachable
// from either input frontier, tagged by which side(s) reach it, in a shape
// that preserves parent/child order for a topological replay.
type ConflictSubgraph struct {
	Nodes []SubgraphNode
	// ARoot / BRoot are the dominator frontiers the two input versions
	// reduce to; the planner starts its replay from their common base.
	ARoot, BRoot Frontier
	Base         Frontier // common ancestor frontier (dominators of the shared set)
}

// BuildConflictSubgraph walks the ancestry of a and b (the same heap-driven
// traversal Diff uses) and records every visited LV as a tagged,
// run-length-coalesced node, ready for the merge planner to schedule.
func (g *Graph) BuildConflictSubgraph(a, b Frontier) *ConflictSubgraph {
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
	var lvs []LV
	for len(h) > 0 {
		v := heapPopLV(&h)
		if visited[v] {
			continue
		}
		visited[v] = true
		lvs = append(lvs, v)
		s := side[v]
		for _, p := range g.parentsAt(v) {
			push(p, s)
		}
	}
	sort.Slice(lvs, func(i, j int) bool { return lvs[i] < lvs[j] })

	tagOf := func(s diffSide) SubgraphTag {
		switch s {
		case sideA:
			return TagOnlyA
		case sideB:
			return TagOnlyB
		default:
			return TagShared
		}
	}

	var nodes []SubgraphNode
	var sharedLVs []LV
	for _, v := range lvs {
		tag := tagOf(side[v])
		if tag == TagShared {
			sharedLVs = append(sharedLVs, v)
		}
		parents := g.parentsAt(v)
		if n := len(nodes); n > 0 {
			last := &nodes[n-1]
			if last.Tag == tag && last.Span.End == v && len(parents) == 1 && parents[0] == v-1 {
				last.Span.End = v + 1
				continue
			}
		}
		nodes = append(nodes, SubgraphNode{
			Span:    LVRange{Start: v, End: v + 1},
			Tag:     tag,
			Parents: parents,
		})
	}

	return &ConflictSubgraph{
		Nodes: nodes,
		ARoot: g.Dominators(append(Frontier(nil), a...)),
		BRoot: g.Dominators(append(Frontier(nil), b...)),
		Base:  g.Dominators(sharedLVs),
	}
}

// SpanningTreeWalk visits every node of the subgraph in an order such that
// a node's parents (where those parents are themselves subgraph nodes) are
// always visited first. Ties prefer the node reachable from the
// previously-visited node with the fewest intervening retreat/advance
// steps, which is approximated here by preferring the node whose Span
// starts immediately after the last visited node's Span ends (a
// zero-retreat continuation) before falling back to LV order.
func (sg *ConflictSubgraph) SpanningTreeWalk(visit func(node SubgraphNode)) {
	n := len(sg.Nodes)
	if n == 0 {
		return
	}
	indexOfEnd := make(map[LV]int, n)
	for i, node := range sg.Nodes {
		indexOfEnd[node.Span.End-1] = i
	}

	parentIdx := func(node SubgraphNode) []int {
		var out []int
		for _, p := range node.Parents {
			if p == RootLV {
				continue
			}
			if idx, ok := indexOfEnd[p]; ok {
				out = append(out, idx)
			}
		}
		return out
	}

	indegree := make([]int, n)
	children := make([][]int, n)
	for i, node := range sg.Nodes {
		for _, pIdx := range parentIdx(node) {
			indegree[i]++
			children[pIdx] = append(children[pIdx], i)
		}
	}

	visited := make([]bool, n)
	var ready []int
	for i := range sg.Nodes {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	last := -1
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			a, b := ready[i], ready[j]
			aCont := last >= 0 && sg.Nodes[a].Span.Start == sg.Nodes[last].Span.End
			bCont := last >= 0 && sg.Nodes[b].Span.Start == sg.Nodes[last].Span.End
			if aCont != bCont {
				return aCont
			}
			return sg.Nodes[a].Span.Start < sg.Nodes[b].Span.Start
		})
		cur := ready[0]
		ready = ready[1:]
		visited[cur] = true
		visit(sg.Nodes[cur])
		last = cur
		for _, ch := range children[cur] {
			indegree[ch]--
			if indegree[ch] == 0 {
				ready = append(ready, ch)
			}
		}
	}
}

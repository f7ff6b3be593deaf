package taskiter

import (
	"sort"
	"sync/atomic"

	"github.com/perf-analysis/pkg/collections"
	"github.com/perf-analysis/pkg/depsys"
	"github.com/perf-analysis/pkg/taskapi"
)

// AccessesFn builds the access list for one node on one iteration —
// templates are re-evaluated per iteration so the same static node can
// target a different address (e.g. a[j] for the j-th slot of an array),
// matching the original's single graph shape reused across iterations.
type AccessesFn func(iteration int) []taskapi.AccessSpec

// BodyFn builds the body that runs for one node on one iteration.
type BodyFn func(iteration int) taskapi.Body

// NodeTemplate is the taskiter analogue of TaskiterNode: one static
// vertex in the repeated graph, instantiated fresh each iteration.
type NodeTemplate struct {
	Label    string
	accesses AccessesFn
	body     BodyFn

	isControlTask bool

	// preferredOut and crossIteration mirror TaskiterNode's
	// getPreferredOutVertex/getPreferredOutCrossIteration: the successor
	// this node's completion is expected to unblock soonest, used only to
	// rank submission priority, never to change correctness.
	preferredOut   *NodeTemplate
	crossIteration bool

	depth int // longest chain to a sink, computed by computeDepths
}

// Graph is a static template of nodes submitted once per iteration
// through taskapi.Runtime.Spawn, with submission order within an
// iteration ranked by critical-path depth rather than declaration order.
type Graph struct {
	rt     *taskapi.Runtime
	parent *depsys.TaskNode

	nodes   []*NodeTemplate
	order   *collections.SlicePool[*NodeTemplate]
	stopped atomic.Bool
}

// NewGraph creates an empty taskiter graph whose nodes will be spawned
// as children of parent (nil for a root-level taskiter).
func NewGraph(rt *taskapi.Runtime, parent *depsys.TaskNode) *Graph {
	return &Graph{
		rt:     rt,
		parent: parent,
		order:  collections.NewSlicePool[*NodeTemplate](16),
	}
}

// AddNode registers a static vertex. accesses and body are invoked once
// per iteration, each receiving that iteration's index.
func (g *Graph) AddNode(label string, accesses AccessesFn, body BodyFn) *NodeTemplate {
	n := &NodeTemplate{Label: label, accesses: accesses, body: body}
	g.nodes = append(g.nodes, n)
	return n
}

// SetPreferredOut records that from's completion is expected to unblock
// to soonest (a same-iteration successor) or next (a cross-iteration
// successor, per iter+1's instance of the same template).
func (g *Graph) SetPreferredOut(from, to *NodeTemplate, crossIteration bool) {
	from.preferredOut = to
	from.crossIteration = crossIteration
}

// SetControlTask marks node as a control task (spec.md "Cancellation &
// timeouts": a control task can mark the taskiter stopped, after which
// further control tasks short-circuit future iterations; tasks already
// submitted still complete normally).
func (g *Graph) SetControlTask(node *NodeTemplate) {
	node.isControlTask = true
}

// Stop marks the graph stopped; Run will not start another iteration
// once the current one's nodes have all been submitted, but never
// cancels work already handed to the executor.
func (g *Graph) Stop() {
	g.stopped.Store(true)
}

// Stopped reports whether Stop has been called.
func (g *Graph) Stopped() bool {
	return g.stopped.Load()
}

// computeDepths assigns each node a longest-chain-to-sink depth by
// following preferredOut pointers, memoized since the same successor can
// be shared by several predecessors (a forest, not necessarily a single
// chain).
func computeDepths(nodes []*NodeTemplate) {
	visiting := make(map[*NodeTemplate]bool, len(nodes))
	var depth func(*NodeTemplate) int
	depth = func(n *NodeTemplate) int {
		if n.preferredOut == nil {
			return 0
		}
		if visiting[n] {
			// A cycle in preferredOut pointers (legal across iterations);
			// break it rather than recursing forever.
			return 0
		}
		visiting[n] = true
		d := 1 + depth(n.preferredOut)
		visiting[n] = false
		return d
	}
	for _, n := range nodes {
		n.depth = depth(n)
	}
}

// submissionOrder returns g.nodes sorted by descending depth (critical-
// path-first), stable on declaration order for ties.
func (g *Graph) submissionOrder() []*NodeTemplate {
	computeDepths(g.nodes)

	buf := g.order.Get()
	*buf = append((*buf)[:0], g.nodes...)
	sort.SliceStable(*buf, func(i, j int) bool {
		return (*buf)[i].depth > (*buf)[j].depth
	})
	ordered := make([]*NodeTemplate, len(*buf))
	copy(ordered, *buf)
	g.order.Put(buf)
	return ordered
}

// Run submits every node, for every iteration in [0, iterations), in
// critical-path-first order, stopping early (before the next iteration
// starts) if a control task has called Stop. Correctness is entirely the
// dependency system's: Run only changes submission order, never which
// accesses a node declares.
func (g *Graph) Run(flags taskapi.TaskKindFlags, iterations int) error {
	order := g.submissionOrder()

	for iter := 0; iter < iterations; iter++ {
		if g.Stopped() {
			break
		}
		for _, n := range order {
			body := n.body(iter)
			if _, err := g.rt.Spawn(g.parent, flags, n.accesses(iter), body); err != nil {
				return err
			}
		}
	}
	return nil
}

package engine

import "fmt"

// DependencyGraph holds the adjacency indexes the scheduler walks.
// Built once per execution from a validated WorkflowDefinition.
type DependencyGraph struct {
	Incoming      map[string][]Connection // edges where To == node
	Outgoing      map[string][]Connection // edges where From == node
	EntryNodes    []string                // nodes with no incoming flow edges
	RequiredCount map[string]int          // len(Incoming[node])
	nodeIndex     map[string]NodeDefinition
}

// Node returns the NodeDefinition for id.
func (g *DependencyGraph) Node(id string) (NodeDefinition, bool) {
	n, ok := g.nodeIndex[id]
	return n, ok
}

// BuildDependencyGraph validates def and constructs its DependencyGraph.
// Validation checks: unique node ids, every connection endpoint refers
// to an existing node, and the graph is acyclic.
func BuildDependencyGraph(def WorkflowDefinition) (*DependencyGraph, error) {
	nodeIndex := make(map[string]NodeDefinition, len(def.Nodes))
	for _, n := range def.Nodes {
		if _, dup := nodeIndex[n.ID]; dup {
			return nil, &Error{Kind: PlanningFailed, NodeID: n.ID, Message: "duplicate node id"}
		}
		nodeIndex[n.ID] = n
	}

	g := &DependencyGraph{
		Incoming:      make(map[string][]Connection),
		Outgoing:      make(map[string][]Connection),
		RequiredCount: make(map[string]int),
		nodeIndex:     nodeIndex,
	}

	for _, c := range def.Connections {
		if _, ok := nodeIndex[c.From]; !ok {
			return nil, &Error{Kind: PlanningFailed, Message: fmt.Sprintf("connection references unknown source node %q", c.From)}
		}
		if _, ok := nodeIndex[c.To]; !ok {
			return nil, &Error{Kind: PlanningFailed, Message: fmt.Sprintf("connection references unknown target node %q", c.To)}
		}
		g.Outgoing[c.From] = append(g.Outgoing[c.From], c)
		g.Incoming[c.To] = append(g.Incoming[c.To], c)
	}

	for id := range nodeIndex {
		g.RequiredCount[id] = len(g.Incoming[id])
	}

	if err := detectCycle(nodeIndex, g.Outgoing); err != nil {
		return nil, err
	}

	for id := range nodeIndex {
		if flowPredecessorCount(g.Incoming[id]) == 0 {
			g.EntryNodes = append(g.EntryNodes, id)
		}
	}

	return g, nil
}

// flowPredecessorCount counts incoming edges with no ToPort (flow
// edges); support edges do not make a node reachable on their own.
func flowPredecessorCount(incoming []Connection) int {
	n := 0
	for _, c := range incoming {
		if c.ToPort == "" {
			n++
		}
	}
	return n
}

const (
	visitUnvisited = iota
	visitInProgress
	visitDone
)

func detectCycle(nodes map[string]NodeDefinition, outgoing map[string][]Connection) error {
	state := make(map[string]int, len(nodes))
	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case visitDone:
			return nil
		case visitInProgress:
			return &Error{Kind: PlanningFailed, NodeID: id, Message: "dependency graph contains a cycle"}
		}
		state[id] = visitInProgress
		for _, c := range outgoing[id] {
			if err := visit(c.To); err != nil {
				return err
			}
		}
		state[id] = visitDone
		return nil
	}
	for id := range nodes {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

package domain

import (
	"fmt"
	"slices"
)

// NodeByID returns the node with the given id.
// If ids are duplicated (an invalid flow) the first one wins.
func (f *Flow) NodeByID(id string) (*Node, error) {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i], nil
		}
	}
	return nil, fmt.Errorf("%w: node %q in flow %q", ErrNotFound, id, f.ID)
}

// OptionByID returns the option with the given id on this node.
func (n *Node) OptionByID(id string) (*Option, bool) {
	for i := range n.Data.Options {
		if n.Data.Options[i].ID == id {
			return &n.Data.Options[i], true
		}
	}
	return nil, false
}

// OutgoingEdges returns the edges leaving nodeID.
// Edges tagged with an option come first, in the order the options appear on the node,
// so traversal does not depend on how the edges were stored. Untagged edges (or edges
// whose option is unknown) follow in stored order.
func (f *Flow) OutgoingEdges(nodeID string) []Edge {
	var out []Edge
	for _, e := range f.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	if len(out) < 2 {
		return out
	}

	rank := make(map[string]int)
	if node, err := f.NodeByID(nodeID); err == nil {
		for i, opt := range node.Data.Options {
			if _, seen := rank[opt.ID]; !seen {
				rank[opt.ID] = i
			}
		}
	}
	position := func(e Edge) int {
		if e.Data.OptionID == "" {
			return len(rank) + 1
		}
		if r, ok := rank[e.Data.OptionID]; ok {
			return r
		}
		return len(rank) + 1
	}

	slices.SortStableFunc(out, func(a, b Edge) int {
		return position(a) - position(b)
	})
	return out
}

// EdgeForOption returns the first edge leaving nodeID tagged with optionID.
func (f *Flow) EdgeForOption(nodeID, optionID string) (*Edge, bool) {
	for i := range f.Edges {
		e := &f.Edges[i]
		if e.Source == nodeID && e.Data.OptionID == optionID {
			return e, true
		}
	}
	return nil, false
}

// EntryCandidates returns the ids of the nodes eligible as entry point, in node order.
//
// Nodes flagged with isEntry take precedence. Without flags, a candidate is a node with
// no incoming edge or option shortcut from another node (self-loops do not count).
func (f *Flow) EntryCandidates() []string {
	var flagged []string
	for _, n := range f.Nodes {
		if n.Data.IsEntry {
			flagged = append(flagged, n.ID)
		}
	}
	if len(flagged) > 0 {
		return flagged
	}

	incoming := make(map[string]bool)
	for _, e := range f.Edges {
		if e.Source != e.Target {
			incoming[e.Target] = true
		}
	}
	for _, n := range f.Nodes {
		for _, opt := range n.Data.Options {
			if opt.TargetNodeID != "" && opt.TargetNodeID != n.ID {
				incoming[opt.TargetNodeID] = true
			}
		}
	}

	var candidates []string
	for _, n := range f.Nodes {
		if !incoming[n.ID] && !slices.Contains(candidates, n.ID) {
			candidates = append(candidates, n.ID)
		}
	}
	return candidates
}

// EntryNode returns the designated start node.
// It fails with ErrNotFound when the graph is empty or no single node qualifies.
func (f *Flow) EntryNode() (*Node, error) {
	if len(f.Nodes) == 0 {
		return nil, fmt.Errorf("%w: flow %q has no nodes", ErrNotFound, f.ID)
	}
	candidates := f.EntryCandidates()
	if len(candidates) != 1 {
		return nil, fmt.Errorf("%w: flow %q has %d entry candidates", ErrNotFound, f.ID, len(candidates))
	}
	return f.NodeByID(candidates[0])
}

// Successors returns the ids reachable in one hop from nodeID, through edges and
// option shortcuts combined. Duplicates are removed; order is options first, then edges.
func (f *Flow) Successors(nodeID string) []string {
	var next []string
	add := func(id string) {
		if id != "" && !slices.Contains(next, id) {
			next = append(next, id)
		}
	}
	if node, err := f.NodeByID(nodeID); err == nil {
		for _, opt := range node.Data.Options {
			add(opt.TargetNodeID)
		}
	}
	for _, e := range f.OutgoingEdges(nodeID) {
		add(e.Target)
	}
	return next
}

// Clone returns a deep copy of the flow. Edits are applied to clones so that a
// published revision is never mutated in place.
func (f *Flow) Clone() *Flow {
	if f == nil {
		return nil
	}
	c := *f
	c.Nodes = make([]Node, len(f.Nodes))
	for i, n := range f.Nodes {
		n.Data.Options = slices.Clone(n.Data.Options)
		c.Nodes[i] = n
	}
	c.Edges = slices.Clone(f.Edges)
	return &c
}

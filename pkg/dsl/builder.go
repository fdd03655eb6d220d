package dsl

import (
	"fmt"

	"github.com/aretw0/chatflow/internal/validator"
	"github.com/aretw0/chatflow/pkg/domain"
)

// Builder manages the flow construction.
type Builder struct {
	flow  domain.Flow
	order []string
	nodes map[string]*NodeBuilder
}

// New creates a new flow builder.
func New(id string) *Builder {
	return &Builder{
		flow:  domain.Flow{ID: id, Name: id},
		nodes: make(map[string]*NodeBuilder),
	}
}

// Name sets the display name of the flow.
func (b *Builder) Name(name string) *Builder {
	b.flow.Name = name
	return b
}

// Add creates a new node in the flow.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node: domain.Node{
			ID:       id,
			Type:     "menu",
			Position: domain.Position{X: 0, Y: float64(len(b.order) * 120)},
		},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Edge adds a relation tagged with optionID.
func (b *Builder) Edge(source, target, optionID string) *Builder {
	label := ""
	if nb, ok := b.nodes[source]; ok {
		if opt, ok := nb.node.OptionByID(optionID); ok {
			label = opt.Label
		}
	}
	b.flow.Edges = append(b.flow.Edges, domain.Edge{
		ID:     fmt.Sprintf("e-%s-%s", source, optionID),
		Source: source,
		Target: target,
		Data:   domain.EdgeData{OptionID: optionID, OptionLabel: label},
	})
	return b
}

// Build returns the flow with nodes in insertion order.
func (b *Builder) Build() *domain.Flow {
	flow := b.flow
	flow.Nodes = make([]domain.Node, 0, len(b.order))
	for _, id := range b.order {
		flow.Nodes = append(flow.Nodes, b.nodes[id].node)
	}
	return flow.Clone()
}

// MustBuild returns the flow, panicking if it has blocking violations.
func (b *Builder) MustBuild() *domain.Flow {
	flow := b.Build()
	if err := validator.Guard(flow); err != nil {
		panic(err)
	}
	return flow
}

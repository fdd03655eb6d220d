package dsl

import "github.com/aretw0/chatflow/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.Node
	builder *Builder
}

// Text sets the text of a pure menu node.
func (n *NodeBuilder) Text(text string) *NodeBuilder {
	n.node.Data.Text = text
	return n
}

// Type overrides the author-facing role of the node.
func (n *NodeBuilder) Type(role string) *NodeBuilder {
	n.node.Type = role
	return n
}

// At sets the authoring-tool position.
func (n *NodeBuilder) At(x, y float64) *NodeBuilder {
	n.node.Position = domain.Position{X: x, Y: y}
	return n
}

// Entry marks the node as the entry point.
func (n *NodeBuilder) Entry() *NodeBuilder {
	n.node.Data.IsEntry = true
	return n
}

// Message makes the node display text. It may still carry options.
func (n *NodeBuilder) Message(text string) *NodeBuilder {
	return n.action("message", text, domain.ActionMessage, "")
}

// WhatsApp makes the node hand the visitor off to phone.
func (n *NodeBuilder) WhatsApp(text, phone string) *NodeBuilder {
	return n.action("action", text, domain.ActionWhatsApp, phone)
}

// URL makes the node open url.
func (n *NodeBuilder) URL(text, url string) *NodeBuilder {
	return n.action("action", text, domain.ActionURL, url)
}

// End makes the node terminate the session.
func (n *NodeBuilder) End(text string) *NodeBuilder {
	return n.action("end", text, domain.ActionEnd, "")
}

func (n *NodeBuilder) action(role, text string, action domain.ActionType, value string) *NodeBuilder {
	n.node.Type = role
	n.node.Data.Text = text
	n.node.Data.ActionType = action
	n.node.Data.ActionValue = value
	return n
}

// Option adds a choice that jumps straight to target.
func (n *NodeBuilder) Option(id, label, target string) *NodeBuilder {
	n.node.Data.Options = append(n.node.Data.Options, domain.Option{
		ID:           id,
		Label:        label,
		TargetNodeID: target,
	})
	return n
}

// Via adds a choice resolved through an edge tagged with its id.
func (n *NodeBuilder) Via(id, label, target string) *NodeBuilder {
	n.node.Data.Options = append(n.node.Data.Options, domain.Option{ID: id, Label: label})
	n.builder.Edge(n.node.ID, target, id)
	return n
}

// Build returns the underlying domain.Node.
func (n *NodeBuilder) Build() domain.Node {
	return n.node
}

package domain

import "time"

// ActionType is the closed vocabulary of node side effects.
// An empty ActionType marks a pure menu node.
type ActionType string

const (
	ActionNone     ActionType = ""
	ActionMessage  ActionType = "message"
	ActionWhatsApp ActionType = "whatsapp"
	ActionURL      ActionType = "url"
	ActionEnd      ActionType = "end"
)

// Valid reports whether the action type belongs to the closed set.
func (a ActionType) Valid() bool {
	switch a {
	case ActionNone, ActionMessage, ActionWhatsApp, ActionURL, ActionEnd:
		return true
	}
	return false
}

// Flow is a named, versioned conversation definition.
type Flow struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Version   int       `json:"version" yaml:"version,omitempty"`
	Nodes     []Node    `json:"nodes" yaml:"nodes"`
	Edges     []Edge    `json:"edges" yaml:"edges,omitempty"`
	IsActive  bool      `json:"isActive" yaml:"-"`
	CreatedAt time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"-"`
}

// Position is the authoring-tool layout of a node. The executor ignores it.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is a vertex in the conversation graph.
type Node struct {
	ID string `json:"id" yaml:"id"`
	// Type is the semantic role chosen by the author (greeting, menu, action...).
	// It is an open vocabulary and carries no runtime meaning.
	Type     string   `json:"type" yaml:"type,omitempty"`
	Position Position `json:"position" yaml:"position,omitempty"`
	Data     NodeData `json:"data" yaml:"data"`
}

// NodeData holds the conversational content of a node.
type NodeData struct {
	Text        string     `json:"text" yaml:"text"`
	Options     []Option   `json:"options,omitempty" yaml:"options,omitempty"`
	ActionType  ActionType `json:"actionType,omitempty" yaml:"actionType,omitempty"`
	ActionValue string     `json:"actionValue,omitempty" yaml:"actionValue,omitempty"`
	// IsEntry explicitly designates the start node.
	IsEntry bool `json:"isEntry,omitempty" yaml:"isEntry,omitempty"`
}

// Option is a user-selectable choice rendered at a node.
type Option struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
	// TargetNodeID is a direct shortcut that bypasses the edge table.
	TargetNodeID string `json:"targetNodeId,omitempty" yaml:"targetNodeId,omitempty"`
}

// Edge is a directed relation source -> target.
type Edge struct {
	ID     string   `json:"id" yaml:"id"`
	Source string   `json:"source" yaml:"source"`
	Target string   `json:"target" yaml:"target"`
	Data   EdgeData `json:"data,omitempty" yaml:"data,omitempty"`
}

// EdgeData links an edge to the option that triggers it.
type EdgeData struct {
	OptionID    string `json:"optionId,omitempty" yaml:"optionId,omitempty"`
	OptionLabel string `json:"optionLabel,omitempty" yaml:"optionLabel,omitempty"`
}

package loam

// NodeMetadata is the frontmatter of one node document.
// The markdown body becomes the node text.
type NodeMetadata struct {
	ID   string `json:"id" mapstructure:"id"`
	Type string `json:"type" mapstructure:"type"`

	// Order positions the node in the flow. Ties are broken by id.
	Order int  `json:"order" mapstructure:"order"`
	Entry bool `json:"entry" mapstructure:"entry"`

	// Action and Value map to actionType and actionValue.
	Action string `json:"action" mapstructure:"action"`
	Value  string `json:"value" mapstructure:"value"`

	Options []OptionMetadata `json:"options" mapstructure:"options"`

	// Position accepts {x, y} or [x, y].
	Position any `json:"position" mapstructure:"position"`
}

// OptionMetadata is one choice of a node.
type OptionMetadata struct {
	ID    string `json:"id" mapstructure:"id"`
	Label string `json:"label" mapstructure:"label"`
	// To jumps straight to the target node.
	To string `json:"to" mapstructure:"to"`
	// Via resolves the choice through an edge to the target node.
	Via string `json:"via" mapstructure:"via"`
}

package domain

// Cursor is the caller-held position of one visitor session.
// The engine keeps no session state: the cursor travels with every call.
type Cursor struct {
	FlowID        string `json:"flowId"`
	CurrentNodeID string `json:"currentNodeId"`
	// Ended is set once a terminal directive has been returned for this cursor.
	Ended bool `json:"ended,omitempty"`
}

// Choice is the visitor-facing view of an Option.
type Choice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Payload is what the channel renders for a non-terminal node.
type Payload struct {
	NodeID  string   `json:"nodeId"`
	Text    string   `json:"text"`
	Options []Choice `json:"options"`
}

// DirectiveType names the effect requested from the presentation channel.
type DirectiveType string

const (
	DirectiveMessage  DirectiveType = "message"
	DirectiveWhatsApp DirectiveType = "whatsapp"
	DirectiveURL      DirectiveType = "url"
	DirectiveEnd      DirectiveType = "end"
)

// Directive is the effect of reaching an action-bearing node.
// The engine never performs it; the channel does.
type Directive struct {
	Type DirectiveType `json:"type"`
	// Text is the node text, shown alongside the effect.
	Text string `json:"text,omitempty"`
	// Phone is the WhatsApp destination.
	Phone string `json:"phone,omitempty"`
	// Message is the pre-filled WhatsApp message.
	Message string `json:"message,omitempty"`
	// Link is a ready-to-open deep link (wa.me) for WhatsApp hand-offs.
	Link string `json:"link,omitempty"`
	// URL is the address to open for url directives.
	URL string `json:"url,omitempty"`
}

// Terminal reports whether the directive hands the visitor off or ends the session.
// A message directive is never terminal, even on a message node that concludes.
func (d *Directive) Terminal() bool {
	return d != nil && d.Type != DirectiveMessage
}

// Turn is the result of one Start or Step call.
type Turn struct {
	Cursor    Cursor     `json:"cursor"`
	Payload   *Payload   `json:"payload,omitempty"`
	Directive *Directive `json:"directive,omitempty"`
}

// Terminal reports whether the session is concluded after this turn.
func (t *Turn) Terminal() bool {
	return t.Cursor.Ended
}

// Choices converts options into their visitor-facing view.
func Choices(opts []Option) []Choice {
	out := make([]Choice, len(opts))
	for i, o := range opts {
		out[i] = Choice{ID: o.ID, Label: o.Label}
	}
	return out
}

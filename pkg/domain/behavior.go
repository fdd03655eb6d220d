package domain

import (
	"fmt"
	"strings"
)

// Behavior is the compiled, closed form of a node.
// Exactly five variants exist: Menu, Message, WhatsApp, Link and End.
// Terminal variants carry no options, so an end node with options cannot be represented.
type Behavior interface {
	// NodeID returns the id of the node this behaviour was compiled from.
	NodeID() string
	// Concludes reports whether reaching this node ends the session.
	Concludes() bool

	isBehavior()
}

// Menu presents options and has no side effect. It always has at least one option.
type Menu struct {
	ID      string
	Text    string
	Options []Option
}

// Message displays text. With options the conversation continues; without
// them the message is the last thing the visitor sees.
type Message struct {
	ID      string
	Text    string
	Options []Option
}

// WhatsApp hands the visitor off to a WhatsApp chat with Phone.
type WhatsApp struct {
	ID    string
	Text  string
	Phone string
}

// Link asks the channel to open URL.
type Link struct {
	ID   string
	Text string
	URL  string
}

// End terminates the session.
type End struct {
	ID   string
	Text string
}

func (b Menu) NodeID() string     { return b.ID }
func (b Message) NodeID() string  { return b.ID }
func (b WhatsApp) NodeID() string { return b.ID }
func (b Link) NodeID() string     { return b.ID }
func (b End) NodeID() string      { return b.ID }

func (Menu) Concludes() bool      { return false }
func (b Message) Concludes() bool { return len(b.Options) == 0 }
func (WhatsApp) Concludes() bool  { return true }
func (Link) Concludes() bool      { return true }
func (End) Concludes() bool       { return true }

func (Menu) isBehavior()     {}
func (Message) isBehavior()  {}
func (WhatsApp) isBehavior() {}
func (Link) isBehavior()     {}
func (End) isBehavior()      {}

// Behavior compiles the node's open wire record into its closed variant.
// Records that cannot be represented fail with a *ValidationError.
func (n *Node) Behavior() (Behavior, error) {
	d := n.Data
	switch d.ActionType {
	case ActionNone:
		if len(d.Options) == 0 {
			return nil, n.invalid(KindDeadEnd, "menu node has no options")
		}
		return Menu{ID: n.ID, Text: d.Text, Options: d.Options}, nil
	case ActionMessage:
		return Message{ID: n.ID, Text: d.Text, Options: d.Options}, nil
	case ActionWhatsApp:
		if strings.TrimSpace(d.ActionValue) == "" {
			return nil, n.invalid(KindMissingActionValue, "whatsapp action requires a phone number")
		}
		return WhatsApp{ID: n.ID, Text: d.Text, Phone: d.ActionValue}, nil
	case ActionURL:
		if strings.TrimSpace(d.ActionValue) == "" {
			return nil, n.invalid(KindMissingActionValue, "url action requires a URL")
		}
		return Link{ID: n.ID, Text: d.Text, URL: d.ActionValue}, nil
	case ActionEnd:
		if len(d.Options) > 0 {
			return nil, n.invalid(KindInvalidTerminal, "end node cannot present options")
		}
		return End{ID: n.ID, Text: d.Text}, nil
	default:
		return nil, n.invalid(KindUnknownActionType, fmt.Sprintf("unknown action type %q", d.ActionType))
	}
}

func (n *Node) invalid(kind ViolationKind, msg string) error {
	return &ValidationError{
		Violations: []Violation{{
			Kind:     kind,
			Severity: SeverityError,
			NodeID:   n.ID,
			Message:  msg,
		}},
	}
}

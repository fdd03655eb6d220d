// Package dispatch turns action-bearing nodes into directives for the chat widget.
package dispatch

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/aretw0/chatflow/pkg/domain"
)

// DefaultWhatsAppBaseURL is the click-to-chat endpoint used for deep links.
const DefaultWhatsAppBaseURL = "https://wa.me/"

// TextPlaceholder is replaced by the node text in WhatsApp templates.
const TextPlaceholder = "{{text}}"

// Dispatcher implements ports.ActionDispatcher.
type Dispatcher struct {
	template string
	baseURL  string
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithWhatsAppTemplate sets the pre-filled message sent with WhatsApp hand-offs.
// The placeholder {{text}} is replaced with the node text.
func WithWhatsAppTemplate(tmpl string) Option {
	return func(d *Dispatcher) {
		d.template = tmpl
	}
}

// WithWhatsAppBaseURL overrides the deep link endpoint.
func WithWhatsAppBaseURL(base string) Option {
	return func(d *Dispatcher) {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		d.baseURL = base
	}
}

// New creates a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		template: TextPlaceholder,
		baseURL:  DefaultWhatsAppBaseURL,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch resolves the directive for a compiled node. Menus produce none.
func (d *Dispatcher) Dispatch(b domain.Behavior) (*domain.Directive, error) {
	switch v := b.(type) {
	case domain.Menu:
		return nil, nil
	case domain.Message:
		return &domain.Directive{Type: domain.DirectiveMessage, Text: v.Text}, nil
	case domain.WhatsApp:
		msg := strings.ReplaceAll(d.template, TextPlaceholder, v.Text)
		link, err := d.whatsAppLink(v.Phone, msg)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", v.ID, err)
		}
		return &domain.Directive{
			Type:    domain.DirectiveWhatsApp,
			Text:    v.Text,
			Phone:   v.Phone,
			Message: msg,
			Link:    link,
		}, nil
	case domain.Link:
		return &domain.Directive{Type: domain.DirectiveURL, Text: v.Text, URL: v.URL}, nil
	case domain.End:
		return &domain.Directive{Type: domain.DirectiveEnd, Text: v.Text}, nil
	default:
		return nil, fmt.Errorf("unsupported behavior %T", b)
	}
}

// whatsAppLink builds a click-to-chat link. wa.me expects the number in
// international format with digits only.
func (d *Dispatcher) whatsAppLink(phone, msg string) (string, error) {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return "", fmt.Errorf("phone number %q has no digits", phone)
	}

	link := d.baseURL + digits.String()
	if msg != "" {
		link += "?text=" + url.QueryEscape(msg)
	}
	return link, nil
}

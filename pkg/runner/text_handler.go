package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/chatflow"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/muesli/termenv"
)

// TextHandler implements the standard text-based interface.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer
	// Profile colors options and directives. Ascii (the default) prints plain text.
	Profile termenv.Profile

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithTextHandlerProfile enables colored output.
func WithTextHandlerProfile(p termenv.Profile) TextHandlerOption {
	return func(h *TextHandler) {
		h.Profile = p
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		Profile: termenv.Ascii,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) Output(ctx context.Context, s *chatflow.Session) error {
	if s.Payload != nil {
		h.printText(s.Payload.Text)
		for i, opt := range s.Payload.Options {
			num := h.Profile.String(fmt.Sprintf("%d)", i+1)).Foreground(h.Profile.Color("#a78bfa")).Bold()
			fmt.Fprintf(h.Writer, "  %s %s\n", num, opt.Label)
		}
	}

	d := s.Directive
	if d == nil || d.Type == domain.DirectiveMessage {
		return nil
	}
	if s.Payload == nil && d.Text != "" {
		h.printText(d.Text)
	}

	arrow := h.Profile.String("→").Foreground(h.Profile.Color("#34d399"))
	switch d.Type {
	case domain.DirectiveWhatsApp:
		fmt.Fprintf(h.Writer, "%s WhatsApp %s: %s\n", arrow, d.Phone, d.Link)
	case domain.DirectiveURL:
		fmt.Fprintf(h.Writer, "%s Open: %s\n", arrow, d.URL)
	}
	return nil
}

func (h *TextHandler) printText(text string) {
	output := text
	if h.Renderer != nil {
		if rendered, err := h.Renderer(text); err == nil {
			output = rendered
		}
	}
	fmt.Fprintln(h.Writer, strings.TrimSpace(output))
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

// pump reads lines in the background so Input can honor ctx cancellation.
func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				h.inputChan <- inputResult{err: err}
			}
			close(h.inputChan)
			return
		}
	}
}

func (h *TextHandler) Input(ctx context.Context) (string, error) {
	h.initPump()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
			fmt.Fprint(h.Writer, "> ")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}
			clean, err := SanitizeChoice(res.text)
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				continue
			}
			return clean, nil
		}
	}
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	fmt.Fprintf(h.Writer, "[System] %s\n", msg)
	return nil
}

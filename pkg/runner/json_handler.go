package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/aretw0/chatflow"
)

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
// Each turn is written as one Session object; each input line is either
// {"optionId": "..."}, a JSON string or plain text.
type JSONHandler struct {
	Reader  *bufio.Reader
	Writer  io.Writer
	Encoder *json.Encoder
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) Output(ctx context.Context, s *chatflow.Session) error {
	return h.Encoder.Encode(s)
}

func (h *JSONHandler) Input(ctx context.Context) (string, error) {
	text, err := h.Reader.ReadString('\n')
	if err != nil && (err != io.EOF || text == "") {
		return "", err
	}
	text = strings.TrimSpace(text)

	var choice struct {
		OptionID string `json:"optionId"`
	}
	if err := json.Unmarshal([]byte(text), &choice); err == nil && choice.OptionID != "" {
		return SanitizeOptionID(choice.OptionID)
	}

	var val string
	if err := json.Unmarshal([]byte(text), &val); err == nil {
		return SanitizeChoice(val)
	}
	return SanitizeChoice(text)
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.Encoder.Encode(map[string]string{"system": msg})
}

package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxChoiceSize bounds a visitor choice. Options are picked by
	// number, id or label, all of which are short.
	DefaultMaxChoiceSize = 256
	// EnvMaxChoiceSize overrides DefaultMaxChoiceSize.
	EnvMaxChoiceSize = "CHATFLOW_MAX_CHOICE_SIZE"
)

var (
	ErrChoiceTooLarge = errors.New("choice exceeds maximum allowed size")
	ErrInvalidUTF8    = errors.New("choice contains invalid UTF-8 sequences")
	ErrInvalidChoice  = errors.New("option id contains control characters")
)

// SanitizeChoice normalizes typed input into a single-line choice: control
// characters are dropped, whitespace runs collapse to one space and the
// result is trimmed, so "  Buy\ta   plant\n" matches the label "Buy a plant".
func SanitizeChoice(input string) (string, error) {
	if err := checkChoice(input); err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(input))
	space := false
	for _, r := range input {
		switch {
		case unicode.IsSpace(r):
			space = b.Len() > 0
		case unicode.IsControl(r) || r == utf8.RuneError:
		default:
			if space {
				b.WriteByte(' ')
				space = false
			}
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// SanitizeOptionID checks an option id sent by a machine client. Ids are
// compared verbatim, so anything suspicious is rejected instead of rewritten.
func SanitizeOptionID(id string) (string, error) {
	if err := checkChoice(id); err != nil {
		return "", err
	}
	id = strings.TrimSpace(id)
	for i, r := range id {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: %U at byte %d", ErrInvalidChoice, r, i)
		}
	}
	return id, nil
}

func checkChoice(input string) error {
	if limit := maxChoiceSize(); len(input) > limit {
		return fmt.Errorf("%w: size=%d limit=%d", ErrChoiceTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return ErrInvalidUTF8
	}
	return nil
}

func maxChoiceSize() int {
	if val := os.Getenv(EnvMaxChoiceSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxChoiceSize
}

package runner

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeChoice_SizeLimit(t *testing.T) {
	limit := DefaultMaxChoiceSize

	tests := []struct {
		name      string
		inputSize int
		wantErr   bool
	}{
		{"Under Limit", limit - 1, false},
		{"Exact Limit", limit, false},
		{"Over Limit", limit + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := strings.Repeat("a", tt.inputSize)
			_, err := SanitizeChoice(input)
			if tt.wantErr {
				if !errors.Is(err, ErrChoiceTooLarge) {
					t.Errorf("SanitizeChoice() expected ErrChoiceTooLarge for size %d, got %v", tt.inputSize, err)
				}
			} else if err != nil {
				t.Errorf("SanitizeChoice() unexpected error: %v", err)
			}
			if _, err := SanitizeOptionID(input); tt.wantErr != (err != nil) {
				t.Errorf("SanitizeOptionID() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeChoice_EnvOverride(t *testing.T) {
	t.Setenv(EnvMaxChoiceSize, "4")

	if _, err := SanitizeChoice("12345"); !errors.Is(err, ErrChoiceTooLarge) {
		t.Errorf("expected ErrChoiceTooLarge, got %v", err)
	}
	if _, err := SanitizeChoice("1234"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSanitizeChoice_Normalizes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Number", "2", "2"},
		{"Option ID", "o-care", "o-care"},
		{"Label", "Buy a plant", "Buy a plant"},
		{"Whitespace Runs", "  Buy\ta   plant\r\n", "Buy a plant"},
		{"ANSI Code", "\x1b[31mRed\x1b[0m", "[31mRed[0m"},
		{"Null Byte", "Null\x00Byte", "NullByte"},
		{"Bell", "Ding\x07", "Ding"},
		{"Only Controls", "\x00\x07", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeChoice(tt.input)
			if err != nil {
				t.Fatalf("SanitizeChoice() unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("SanitizeChoice() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSanitizeOptionID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"Plain", "o-care", "o-care", nil},
		{"UUID", "0b6f1c1e-6a4f-4c59-8d1e-3b7f3c1d2e4a", "0b6f1c1e-6a4f-4c59-8d1e-3b7f3c1d2e4a", nil},
		{"Trimmed", " o1\n", "o1", nil},
		{"Empty", "", "", nil},
		{"Embedded Control", "o\x1b1", "", ErrInvalidChoice},
		{"Embedded Newline", "o\n1", "", ErrInvalidChoice},
		{"Invalid UTF8", "o\xff1", "", ErrInvalidUTF8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeOptionID(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SanitizeOptionID() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SanitizeOptionID() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("SanitizeOptionID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeChoice_InvalidUTF8(t *testing.T) {
	if _, err := SanitizeChoice("bad\xffbyte"); !errors.Is(err, ErrInvalidUTF8) {
		t.Errorf("expected ErrInvalidUTF8, got %v", err)
	}
}

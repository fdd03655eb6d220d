package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the chatflow banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"       _           _    __ _", "#34d399"},
		{"   ___| |__   __ _| |_ / _| | _____      __", "#10b981"},
		{"  / __| '_ \\ / _` | __| |_| |/ _ \\ \\ /\\ / /", "#059669"},
		{" | (__| | | | (_| | |_|  _| | (_) \\ V  V /", "#047857"},
		{"  \\___|_| |_|\\__,_|\\__|_| |_|\\___/ \\_/\\_/", "#065f46"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

package tui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Renderer turns a markdown narrative into terminal output.
type Renderer func(markdown string) (string, error)

// Plain returns narratives unchanged.
func Plain(markdown string) (string, error) {
	return markdown, nil
}

// NewRenderer returns a glamour renderer that detects a light or dark background.
// It falls back to Plain when glamour cannot be initialized.
func NewRenderer() Renderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return Plain
	}
	return r.Render
}

// ForFile picks NewRenderer when f is a terminal and Plain otherwise,
// so piped output carries no escape sequences.
func ForFile(f *os.File) Renderer {
	if IsTerminal(f) {
		return NewRenderer()
	}
	return Plain
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

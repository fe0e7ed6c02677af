package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the onramp banner and version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()

	lines := []struct {
		text  string
		color string
	}{
		{"   ___  _ __  _ __ __ _ _ __ ___  _ __  ", "#22d3ee"},
		{"  / _ \\| '_ \\| '__/ _` | '_ ` _ \\| '_ \\ ", "#38bdf8"},
		{" | (_) | | | | | | (_| | | | | | | |_) |", "#60a5fa"},
		{"  \\___/|_| |_|_|  \\__,_|_| |_| |_| .__/ ", "#818cf8"},
		{"                                 |_|    ", "#a78bfa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String(fmt.Sprintf("  v%s", version)).Faint())
	fmt.Fprintln(w)
}

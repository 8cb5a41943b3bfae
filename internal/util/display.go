package util

import (
	"os"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// ClearLine clears the current terminal line so a progress line can be
// redrawn in place.
const ClearLine = "\r\033[2K"

// TerminalWidth returns the display width of stdout with a fallback for
// pipes and dumb terminals.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// ClampLine truncates a line to the terminal width, accounting for wide
// runes, so redrawn progress output never wraps.
func ClampLine(s string) string {
	return runewidth.Truncate(s, TerminalWidth()-1, "...")
}

// Package ui provides terminal styling and pager support for cseries
// output. Colour is dropped automatically when stdout is not a terminal.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	styleGreenBright = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleGreenDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Faint(true)
	styleCyan        = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	styleRed         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleMagenta     = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	styleWhite       = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	styleBold        = lipgloss.NewStyle().Bold(true)
)

// stateStyles maps remote review states to their display colour.
var stateStyles = map[string]lipgloss.Style{
	"accepted":          styleGreenBright,
	"awaiting-upstream": styleGreenDim,
	"changes-requested": styleCyan,
	"rejected":          styleRed,
	"deferred":          styleRed,
	"not-applicable":    styleRed,
	"superseded":        styleRed,
	"handled-elsewhere": styleRed,
	"under-review":      styleWhite,
	"rfc":               styleWhite,
	"needs-review-ack":  styleWhite,
}

// shortLabels substitutes fixed short names for long states in narrow
// columns.
var shortLabels = map[string]string{
	"handled-elsewhere": "elsewhere",
	"awaiting-upstream": "awaiting",
	"not-applicable":    "n/a",
	"changes-requested": "changes",
}

// Theme renders coloured output, or plain text when colour is disabled.
type Theme struct {
	enabled bool
}

// NewTheme returns a theme with colour enabled only when stdout is a
// terminal.
func NewTheme() *Theme {
	return &Theme{enabled: term.IsTerminal(int(os.Stdout.Fd()))}
}

// PlainTheme returns a theme that never emits escape codes.
func PlainTheme() *Theme {
	return &Theme{}
}

func (t *Theme) render(style lipgloss.Style, s string) string {
	if !t.enabled {
		return s
	}
	return style.Render(s)
}

// State renders a review state in its colour. Empty or unknown states are
// magenta.
func (t *Theme) State(state string) string {
	if state == "" {
		return t.render(styleMagenta, "unknown")
	}
	style, ok := stateStyles[state]
	if !ok {
		style = styleMagenta
	}
	return t.render(style, state)
}

// ShortState renders a state using its narrow-column label.
func (t *Theme) ShortState(state string) string {
	label := state
	if short, ok := shortLabels[state]; ok {
		label = short
	}
	if state == "" {
		return t.render(styleMagenta, "unknown")
	}
	style, ok := stateStyles[state]
	if !ok {
		style = styleMagenta
	}
	return t.render(style, label)
}

// Added renders a "+" addition line (new tags, new commits).
func (t *Theme) Added(s string) string {
	return t.render(styleGreenBright, s)
}

// Removed renders a "-" deletion line.
func (t *Theme) Removed(s string) string {
	return t.render(styleRed, s)
}

// Warn renders a warning line.
func (t *Theme) Warn(s string) string {
	return t.render(styleCyan, s)
}

// Bold renders header text.
func (t *Theme) Bold(s string) string {
	return t.render(styleBold, s)
}

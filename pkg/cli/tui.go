// Terminal styles for human-facing command output.
package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for terminal output.
type Theme struct {
	Primary lipgloss.Color // Main accent color
	Dim     lipgloss.Color // Dimmed/help text color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title lipgloss.Style
	Label lipgloss.Style
	Value lipgloss.Style
	Dim   lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Value: lipgloss.NewStyle(),
		Dim:   lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// KV is a single labeled value in a stat block.
type KV struct {
	Label string
	Value string
}

// StatBlock renders a titled list of label/value pairs with aligned
// columns, used by `sheep stats` and `sheep timeline` for terminal output.
func (s Styles) StatBlock(title string, rows []KV) string {
	var sb strings.Builder
	sb.WriteString(s.Title.Render(title))
	sb.WriteByte('\n')

	width := 0
	for _, r := range rows {
		if len(r.Label) > width {
			width = len(r.Label)
		}
	}
	for _, r := range rows {
		pad := strings.Repeat(" ", width-len(r.Label))
		fmt.Fprintf(&sb, "  %s%s  %s\n", s.Label.Render(r.Label), pad, s.Value.Render(r.Value))
	}
	return sb.String()
}

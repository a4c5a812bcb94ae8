package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

// Legend explains one status symbol
type Legend struct {
	Symbol rune
	Color  lipgloss.Color
	Name   string
	Desc   string
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// RenderShortHelp joins bindings on one line: "p:play  l:loop"
func RenderShortHelp(sections []KeySection) string {
	var parts []string
	for _, sec := range sections {
		for _, k := range sec.Keys {
			parts = append(parts, k.Key+":"+k.Desc)
		}
	}
	return strings.Join(parts, "  ")
}

// RenderLegendItem renders a single legend item: "★ Name - description"
func RenderLegendItem(l Legend) string {
	symbol := lipgloss.NewStyle().Foreground(l.Color).Render(string(l.Symbol))
	return fmt.Sprintf("  %s %s - %s", symbol, l.Name, l.Desc)
}

// RenderLegend renders one legend item per line
func RenderLegend(items []Legend) string {
	lines := make([]string, len(items))
	for i, l := range items {
		lines[i] = RenderLegendItem(l)
	}
	return strings.Join(lines, "\n")
}

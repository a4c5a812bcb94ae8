package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	Play rune // ▶ transport running
	Stop rune // ■ transport stopped

	Loop rune // ↻ looping on
	Sync rune // ⇄ following host tempo

	Favorite    rune // ★ file is a favorite
	NotFavorite rune // ☆

	BarFull  rune // █ played part of the progress bar
	BarEmpty rune // ░ remaining part
	Cursor   rune // › selected list entry
}

func New(palette *Palette) *Theme {
	if palette == nil {
		palette = DefaultPalette()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			Play: '▶',
			Stop: '■',

			Loop: '↻',
			Sync: '⇄',

			Favorite:    '★',
			NotFavorite: '☆',

			BarFull:  '█',
			BarEmpty: '░',
			Cursor:   '›',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleSurface = 0.1
	RoleMuted   = 0.2
	RoleFG      = 0.4
	RoleAccent  = 0.5
	RoleCursor  = 0.6
	RoleActive  = 0.7
	RoleWarning = 0.8
	RoleSuccess = 1.0
)

// Style helpers

func (t *Theme) BG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleBG))
}

func (t *Theme) FG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleFG))
}

func (t *Theme) Accent() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleAccent))
}

func (t *Theme) Muted() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleMuted))
}

func (t *Theme) Active() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleActive))
}

func (t *Theme) Cursor() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleCursor))
}

func (t *Theme) Warning() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleWarning))
}

func (t *Theme) Success() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleSuccess))
}

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(norm))
}

// ProgressBar draws width cells, filled up to pos (0-1). The filled part is
// shaded along the palette.
func (t *Theme) ProgressBar(pos float64, width int) string {
	if width <= 0 {
		return ""
	}
	pos = min(max(pos, 0), 1)
	filled := int(pos*float64(width) + 0.5)

	var b strings.Builder
	for i := range filled {
		style := lipgloss.NewStyle().Foreground(t.Color(RoleMuted + (RoleSuccess-RoleMuted)*float64(i)/float64(width)))
		b.WriteString(style.Render(string(t.Symbols.BarFull)))
	}
	if filled < width {
		empty := lipgloss.NewStyle().Foreground(t.Muted())
		b.WriteString(empty.Render(strings.Repeat(string(t.Symbols.BarEmpty), width-filled)))
	}
	return b.String()
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(c.Hex())
}

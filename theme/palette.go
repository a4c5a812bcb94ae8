package theme

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ErrNotGPL is returned for input that does not start with a GIMP palette
// header.
var ErrNotGPL = errors.New("not a GIMP palette")

type RGB [3]uint8

// Mix blends c toward o by t in [0, 1], rounding each channel.
func (c RGB) Mix(o RGB, t float64) RGB {
	var out RGB
	for i := range c {
		out[i] = uint8(math.Round(float64(c[i]) + (float64(o[i])-float64(c[i]))*t))
	}
	return out
}

// Hex formats c as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

// Palette is an ordered color ramp. Roles and the progress bar pick points
// along it.
type Palette struct {
	Name   string
	Colors []RGB
}

// DefaultPalette is used when no .gpl file is configured: deep purple
// through magenta and orange to bright yellow.
func DefaultPalette() *Palette {
	return &Palette{
		Name: "dusk",
		Colors: []RGB{
			{0x1a, 0x0b, 0x2e},
			{0x3b, 0x14, 0x50},
			{0x6a, 0x1b, 0x6e},
			{0x9c, 0x27, 0x7f},
			{0xc8, 0x30, 0x8a},
			{0xe8, 0x5a, 0x7c},
			{0xf4, 0x6e, 0x50},
			{0xf9, 0xa0, 0x3f},
			{0xfd, 0xe7, 0x4c},
		},
	}
}

// LoadOrDefault loads path, or returns DefaultPalette when path is empty.
func LoadOrDefault(path string) (*Palette, error) {
	if path == "" {
		return DefaultPalette(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := ParseGPL(f)
	if err != nil {
		return nil, fmt.Errorf("palette %s: %w", path, err)
	}
	return p, nil
}

// ParseGPL reads a GIMP palette. Each color line starts with three channel
// values in 0..255; the rest of the line is a label and is ignored.
func ParseGPL(r io.Reader) (*Palette, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() || strings.TrimSpace(sc.Text()) != "GIMP Palette" {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotGPL
	}

	p := &Palette{}
	for n := 2; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "", strings.HasPrefix(line, "#"), strings.HasPrefix(line, "Columns:"):
			continue
		case strings.HasPrefix(line, "Name:"):
			p.Name = strings.TrimSpace(line[len("Name:"):])
			continue
		}

		c, err := parseColor(strings.Fields(line))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		p.Colors = append(p.Colors, c)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(p.Colors) == 0 {
		return nil, errors.New("no colors")
	}
	return p, nil
}

func parseColor(fields []string) (RGB, error) {
	var c RGB
	if len(fields) < 3 {
		return c, fmt.Errorf("want 3 channels, got %d", len(fields))
	}
	for i := range c {
		v, err := strconv.ParseUint(fields[i], 10, 8)
		if err != nil {
			return c, fmt.Errorf("channel %q: %w", fields[i], err)
		}
		c[i] = uint8(v)
	}
	return c, nil
}

// Lookup returns the color at norm along the ramp, blending neighbours.
// norm is clamped to [0, 1].
func (p *Palette) Lookup(norm float64) RGB {
	last := len(p.Colors) - 1
	pos := min(max(norm, 0), 1) * float64(last)
	i := min(int(pos), max(last-1, 0))
	if last == 0 {
		return p.Colors[0]
	}
	return p.Colors[i].Mix(p.Colors[i+1], pos-float64(i))
}

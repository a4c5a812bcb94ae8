package player

import (
	"math"
	"sync/atomic"
)

// Tempo limits for the manual clock.
const (
	MinTempo = 20.0
	MaxTempo = 300.0
)

// Clock is the host's musical clock. ok is false while the host reports no
// tempo, in which case the engine keeps the last one it saw.
type Clock interface {
	Tempo() (bpm float64, ok bool)
}

// ManualClock is a host clock set by hand. It is safe for concurrent use.
type ManualClock struct {
	bpm     atomic.Uint64
	enabled atomic.Bool
}

// NewManualClock returns an enabled clock at bpm.
func NewManualClock(bpm float64) *ManualClock {
	c := &ManualClock{}
	c.SetTempo(bpm)
	c.enabled.Store(true)
	return c
}

func (c *ManualClock) Tempo() (float64, bool) {
	return math.Float64frombits(c.bpm.Load()), c.enabled.Load()
}

// SetTempo sets the BPM, clamped to [MinTempo, MaxTempo]. It returns the
// value stored.
func (c *ManualClock) SetTempo(bpm float64) float64 {
	if math.IsNaN(bpm) || bpm < MinTempo {
		bpm = MinTempo
	}
	if bpm > MaxTempo {
		bpm = MaxTempo
	}
	c.bpm.Store(math.Float64bits(bpm))
	return bpm
}

// Nudge changes the tempo by delta BPM.
func (c *ManualClock) Nudge(delta float64) float64 {
	bpm, _ := c.Tempo()
	return c.SetTempo(bpm + delta)
}

// SetEnabled turns tempo reporting on or off, like a host transport that
// stops sending clock.
func (c *ManualClock) SetEnabled(on bool) {
	c.enabled.Store(on)
}

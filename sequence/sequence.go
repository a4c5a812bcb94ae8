// Package sequence holds the immutable, per-load view of a MIDI file that the
// transport reads from the audio thread.
package sequence

import (
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	// DefaultResolution is used when the file declares no usable PPQN.
	DefaultResolution = 480
	// DefaultTempo is used when no tempo meta event is found.
	DefaultTempo = 120.0
)

// Event is a message stamped with an absolute tick
type Event struct {
	Tick    int64
	Message smf.Message
}

// Track is a list of events in ascending tick order.
type Track []Event

// Sequence is every track of one loaded file plus its timing basics.
// It is never modified after Load returns.
type Sequence struct {
	tracks     []Track
	resolution int
	baseTempo  float64
	maxTick    int64
	numEvents  int
}

// Load builds a Sequence from pre-decoded tracks. Tracks must already be
// sorted by tick; Load does not re-sort them. The input slices are copied.
func Load(tracks []Track, resolutionHint int) *Sequence {
	s := &Sequence{
		tracks:     make([]Track, len(tracks)),
		resolution: resolutionHint,
		baseTempo:  findTempo(tracks),
	}
	if s.resolution <= 0 {
		s.resolution = DefaultResolution
	}

	for i, tr := range tracks {
		cp := make(Track, len(tr))
		copy(cp, tr)
		s.tracks[i] = cp
		s.numEvents += len(cp)
		if len(cp) > 0 && cp[len(cp)-1].Tick > s.maxTick {
			s.maxTick = cp[len(cp)-1].Tick
		}
	}
	return s
}

// findTempo returns the first tempo found per track, stopping at the first
// track whose tempo differs from the default.
func findTempo(tracks []Track) float64 {
	tempo := DefaultTempo
	for _, tr := range tracks {
		for _, ev := range tr {
			if spq, ok := secondsPerQuarter(ev.Message); ok {
				if spq > 0 {
					tempo = 60.0 / spq
				} else {
					tempo = DefaultTempo
				}
				break
			}
		}
		if tempo != DefaultTempo {
			break
		}
	}
	return tempo
}

// secondsPerQuarter decodes a set-tempo meta event (FF 51 03 tt tt tt).
func secondsPerQuarter(msg smf.Message) (float64, bool) {
	if len(msg) < 6 || !msg.Is(smf.MetaTempoMsg) {
		return 0, false
	}
	micros := uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5])
	return float64(micros) / 1e6, true
}

// Tracks returns the tracks. Callers must treat them as read-only.
func (s *Sequence) Tracks() []Track {
	return s.tracks
}

// Track returns track i, or nil when out of range.
func (s *Sequence) Track(i int) Track {
	if i < 0 || i >= len(s.tracks) {
		return nil
	}
	return s.tracks[i]
}

func (s *Sequence) NumTracks() int {
	return len(s.tracks)
}

// Len returns the total number of events across all tracks.
func (s *Sequence) Len() int {
	return s.numEvents
}

// Empty reports whether the sequence has no events, either because it has
// no tracks or because every track is empty.
func (s *Sequence) Empty() bool {
	return s.numEvents == 0
}

// Resolution returns ticks per quarter note.
func (s *Sequence) Resolution() int {
	return s.resolution
}

// BaseTempo returns the file tempo in BPM.
func (s *Sequence) BaseTempo() float64 {
	return s.baseTempo
}

// MaxTick returns the largest last-event tick across tracks (0 if no events).
func (s *Sequence) MaxTick() int64 {
	return s.maxTick
}

// Duration returns how many seconds MaxTick spans at the given tempo.
func (s *Sequence) Duration(bpm float64) float64 {
	if bpm <= 0 {
		bpm = s.baseTempo
	}
	return float64(s.maxTick) / float64(s.resolution) * 60.0 / bpm
}

// Package synth renders scheduled events to audio with a SoundFont
// synthesizer.
package synth

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"go-midiplay/transport"

	meltysynth "github.com/sinshu/go-meltysynth/meltysynth"
)

// ErrNoSoundFont is returned when no SoundFont path is configured.
var ErrNoSoundFont = errors.New("synth: no soundfont configured")

// synthesizer is the subset of meltysynth.Synthesizer used by Synth.
type synthesizer interface {
	ProcessMidiMessage(channel int32, command int32, data1, data2 int32)
	NoteOffAll(immediate bool)
	Render(left, right []float32)
}

// newSynthesizer constructs a meltysynth synthesizer. Tests override it.
var newSynthesizer = func(sf *meltysynth.SoundFont, settings *meltysynth.SynthesizerSettings) (synthesizer, error) {
	return meltysynth.NewSynthesizer(sf, settings)
}

// LoadSoundFont reads an .sf2 file.
func LoadSoundFont(path string) (*meltysynth.SoundFont, error) {
	if path == "" {
		return nil, ErrNoSoundFont
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("synth: %w", err)
	}
	sf, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("synth: parse %s: %w", path, err)
	}
	return sf, nil
}

// Synth turns a block's events into interleaved stereo samples. Render
// belongs to the audio thread; Silence may be called from anywhere.
type Synth struct {
	syn         synthesizer
	sampleRate  int
	left, right []float32
	silence     atomic.Bool
}

// New creates a synth for sf at sampleRate.
func New(sf *meltysynth.SoundFont, sampleRate int) (*Synth, error) {
	settings := meltysynth.NewSynthesizerSettings(int32(sampleRate))
	syn, err := newSynthesizer(sf, settings)
	if err != nil {
		return nil, fmt.Errorf("synth: %w", err)
	}
	return &Synth{syn: syn, sampleRate: sampleRate}, nil
}

func (s *Synth) SampleRate() int { return s.sampleRate }

// Silence releases every sounding voice at the start of the next Render.
func (s *Synth) Silence() {
	s.silence.Store(true)
}

// Render fills dst, interleaved left/right, applying each event at its
// sample offset. events must be sorted by offset; offsets past the end of
// dst apply at the end.
func (s *Synth) Render(dst []float32, events []transport.ScheduledEvent) {
	frames := len(dst) / 2
	if cap(s.left) < frames {
		s.left = make([]float32, frames)
		s.right = make([]float32, frames)
	}
	left, right := s.left[:frames], s.right[:frames]

	if s.silence.Swap(false) {
		s.syn.NoteOffAll(false)
	}

	pos := 0
	for _, ev := range events {
		off := min(max(ev.Offset, pos), frames)
		if off > pos {
			s.syn.Render(left[pos:off], right[pos:off])
			pos = off
		}
		s.apply(ev.Message)
	}
	if pos < frames {
		s.syn.Render(left[pos:], right[pos:])
	}

	for i := range frames {
		dst[2*i] = left[i]
		dst[2*i+1] = right[i]
	}
	if len(dst) > 2*frames {
		dst[len(dst)-1] = 0
	}
}

func (s *Synth) apply(msg []byte) {
	if len(msg) == 0 || msg[0] < 0x80 || msg[0] >= 0xF0 {
		return
	}
	ch := int32(msg[0] & 0x0F)
	cmd := int32(msg[0] & 0xF0)
	var d1, d2 int32
	if len(msg) > 1 {
		d1 = int32(msg[1])
	}
	if len(msg) > 2 {
		d2 = int32(msg[2])
	}
	s.syn.ProcessMidiMessage(ch, cmd, d1, d2)
}

// Package midifile turns Standard MIDI Files into the absolute-tick tracks
// the sequence store consumes. Byte-level parsing is done by gomidi's smf.
package midifile

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gitlab.com/gomidi/midi/v2/smf"

	"go-midiplay/sequence"
)

// DecodeError reports a file that could not be read or parsed.
type DecodeError struct {
	Path string // empty when decoding from a reader
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("midifile: decode: %v", e.Err)
	}
	return fmt.Sprintf("midifile: decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode reads an SMF and returns its tracks with absolute ticks plus the
// declared resolution. SMPTE-timed files report a resolution of 0.
//
// End-of-track meta events are kept so a trailing rest counts towards the
// sequence length.
func Decode(r io.Reader) ([]sequence.Track, int, error) {
	mf, err := smf.ReadFrom(r)
	if err != nil {
		return nil, 0, &DecodeError{Err: err}
	}
	return Tracks(mf), Resolution(mf), nil
}

// DecodeFile is Decode for a path on disk.
func DecodeFile(path string) ([]sequence.Track, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, &DecodeError{Path: path, Err: err}
	}
	mf, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, 0, &DecodeError{Path: path, Err: err}
	}
	return Tracks(mf), Resolution(mf), nil
}

// Load decodes a file straight into a sequence.
func Load(path string) (*sequence.Sequence, error) {
	tracks, res, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return sequence.Load(tracks, res), nil
}

// Tracks converts delta-timed smf tracks to absolute ticks.
func Tracks(mf *smf.SMF) []sequence.Track {
	out := make([]sequence.Track, len(mf.Tracks))
	for i, tr := range mf.Tracks {
		var abs int64
		t := make(sequence.Track, 0, len(tr))
		for _, ev := range tr {
			abs += int64(ev.Delta)
			t = append(t, sequence.Event{Tick: abs, Message: ev.Message})
		}
		out[i] = t
	}
	return out
}

// Resolution returns the metric ticks per quarter note, or 0 when the file
// uses SMPTE time.
func Resolution(mf *smf.SMF) int {
	if mt, ok := mf.TimeFormat.(smf.MetricTicks); ok {
		return int(mt.Resolution())
	}
	return 0
}

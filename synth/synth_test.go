package synth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go-midiplay/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	meltysynth "github.com/sinshu/go-meltysynth/meltysynth"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

type call struct {
	kind   string
	frames int
	args   [4]int32
}

type fakeSynth struct {
	calls []call
}

func (f *fakeSynth) ProcessMidiMessage(ch, cmd, d1, d2 int32) {
	f.calls = append(f.calls, call{kind: "midi", args: [4]int32{ch, cmd, d1, d2}})
}

func (f *fakeSynth) NoteOffAll(bool) {
	f.calls = append(f.calls, call{kind: "off"})
}

func (f *fakeSynth) Render(left, right []float32) {
	f.calls = append(f.calls, call{kind: "render", frames: len(left)})
	for i := range left {
		left[i] = 1
		right[i] = -1
	}
}

func newFake(t *testing.T) (*Synth, *fakeSynth) {
	t.Helper()
	fake := &fakeSynth{}
	orig := newSynthesizer
	newSynthesizer = func(*meltysynth.SoundFont, *meltysynth.SynthesizerSettings) (synthesizer, error) {
		return fake, nil
	}
	t.Cleanup(func() { newSynthesizer = orig })

	s, err := New(nil, 48000)
	require.NoError(t, err)
	return s, fake
}

func TestRenderSplitsAtOffsets(t *testing.T) {
	s, fake := newFake(t)
	dst := make([]float32, 2*100)

	s.Render(dst, []transport.ScheduledEvent{
		{Offset: 0, Message: smf.Message(gomidi.ProgramChange(1, 5))},
		{Offset: 30, Message: smf.Message(gomidi.NoteOn(1, 60, 100))},
		{Offset: 30, Message: smf.MetaTempo(140)},
		{Offset: 70, Message: smf.Message(gomidi.NoteOff(1, 60))},
	})

	assert.Equal(t, []call{
		{kind: "midi", args: [4]int32{1, 0xC0, 5, 0}},
		{kind: "render", frames: 30},
		{kind: "midi", args: [4]int32{1, 0x90, 60, 100}},
		{kind: "render", frames: 40},
		{kind: "midi", args: [4]int32{1, 0x80, 60, 0}},
		{kind: "render", frames: 30},
	}, fake.calls)

	for i := 0; i < len(dst); i += 2 {
		require.Equal(t, float32(1), dst[i])
		require.Equal(t, float32(-1), dst[i+1])
	}
}

func TestRenderClampsLateOffsets(t *testing.T) {
	s, fake := newFake(t)
	s.Render(make([]float32, 20), []transport.ScheduledEvent{
		{Offset: 50, Message: smf.Message(gomidi.NoteOn(0, 1, 1))},
	})
	assert.Equal(t, []call{
		{kind: "render", frames: 10},
		{kind: "midi", args: [4]int32{0, 0x90, 1, 1}},
	}, fake.calls)
}

func TestSilenceAppliesOnNextRender(t *testing.T) {
	s, fake := newFake(t)
	s.Silence()
	s.Render(make([]float32, 8), nil)
	s.Render(make([]float32, 8), nil)
	assert.Equal(t, []call{
		{kind: "off"},
		{kind: "render", frames: 4},
		{kind: "render", frames: 4},
	}, fake.calls)
}

func TestRenderDoesNotAllocate(t *testing.T) {
	s, _ := newFake(t)
	dst := make([]float32, 512)
	events := []transport.ScheduledEvent{{Offset: 10, Message: smf.Message(gomidi.NoteOn(0, 60, 1))}}
	s.Render(dst, events)
	fake := &nopSynth{}
	s.syn = fake
	allocs := testing.AllocsPerRun(50, func() { s.Render(dst, events) })
	assert.Zero(t, allocs)
}

type nopSynth struct{}

func (nopSynth) ProcessMidiMessage(int32, int32, int32, int32) {}
func (nopSynth) NoteOffAll(bool)                               {}
func (nopSynth) Render(left, right []float32)                  {}

func TestNewPropagatesError(t *testing.T) {
	orig := newSynthesizer
	newSynthesizer = func(*meltysynth.SoundFont, *meltysynth.SynthesizerSettings) (synthesizer, error) {
		return nil, errors.New("bad font")
	}
	t.Cleanup(func() { newSynthesizer = orig })

	_, err := New(nil, 44100)
	assert.ErrorContains(t, err, "bad font")
}

func TestLoadSoundFont(t *testing.T) {
	_, err := LoadSoundFont("")
	assert.ErrorIs(t, err, ErrNoSoundFont)

	_, err = LoadSoundFont(filepath.Join(t.TempDir(), "none.sf2"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.sf2")
	require.NoError(t, os.WriteFile(bad, []byte("RIFF0000junk"), 0o644))
	_, err = LoadSoundFont(bad)
	assert.Error(t, err)
}

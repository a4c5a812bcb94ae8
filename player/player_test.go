package player

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go-midiplay/midifile"
	"go-midiplay/sequence"
	"go-midiplay/settings"
	"go-midiplay/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// writeSMF writes a one-note file at 480 PPQN that ends at tick 960.
func writeSMF(t *testing.T, dir, name string, bpm float64) string {
	t.Helper()
	mf := smf.New()
	mf.TimeFormat = smf.MetricTicks(480)

	var tr smf.Track
	tr.Add(0, smf.MetaTempo(bpm))
	tr.Add(0, midi.NoteOn(0, 60, 100))
	tr.Add(480, midi.NoteOff(0, 60))
	tr.Close(480)
	require.NoError(t, mf.Add(tr))

	var buf bytes.Buffer
	_, err := mf.WriteTo(&buf)
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

type fakeSink struct {
	mu       sync.Mutex
	events   []transport.ScheduledEvent
	rate     float64
	silenced int
}

func (s *fakeSink) Emit(events []transport.ScheduledEvent, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	s.rate = rate
}

func (s *fakeSink) Silence() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silenced++
}

type fakeRenderer struct {
	blocks   int
	events   int
	silenced int
}

func (r *fakeRenderer) Render(dst []float32, events []transport.ScheduledEvent) {
	r.blocks++
	r.events += len(events)
	for i := range dst {
		dst[i] = 0.25
	}
}

func (r *fakeRenderer) Silence() { r.silenced++ }

func drain(p *Player) []UpdateKind {
	var kinds []UpdateKind
	for {
		select {
		case u := <-p.Updates():
			kinds = append(kinds, u.Kind)
		default:
			return kinds
		}
	}
}

func TestLoadFailureKeepsCurrentState(t *testing.T) {
	dir := t.TempDir()
	good := writeSMF(t, dir, "good.mid", 120)
	bad := filepath.Join(dir, "bad.mid")
	require.NoError(t, os.WriteFile(bad, []byte("not midi at all"), 0o644))

	p := New(Options{SampleRate: 48000})
	p.SetSyncToHost(false)
	require.NoError(t, p.Load(good))
	p.Start()
	p.Process(make([]float32, 2*4800)) // 0.1 s = 96 ticks at 120 BPM
	before := p.Engine().Sequence()
	require.Equal(t, int64(96), p.Engine().Tick())

	err := p.Load(bad)
	var decodeErr *midifile.DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, bad, decodeErr.Path)

	assert.Same(t, before, p.Engine().Sequence())
	assert.Equal(t, good, p.Path())
	assert.True(t, p.IsPlaying())
	assert.Equal(t, int64(96), p.Engine().Tick())

	p.Process(make([]float32, 2*4800))
	assert.Equal(t, int64(192), p.Engine().Tick())
}

func TestLoadMissingFile(t *testing.T) {
	p := New(Options{SampleRate: 44100})
	err := p.Load(filepath.Join(t.TempDir(), "nope.mid"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Nil(t, p.Engine().Sequence())
	assert.Empty(t, p.Path())
}

func TestAutoPlay(t *testing.T) {
	path := writeSMF(t, t.TempDir(), "a.mid", 120)

	p := New(Options{SampleRate: 48000})
	require.NoError(t, p.Load(path))
	assert.False(t, p.IsPlaying())

	p.RestoreSettings(settings.State{AutoPlay: true})
	require.NoError(t, p.Load(path))
	assert.True(t, p.IsPlaying())
}

func TestProcessFeedsRendererAndSinks(t *testing.T) {
	path := writeSMF(t, t.TempDir(), "a.mid", 90)
	sink := &fakeSink{}
	r := &fakeRenderer{}
	clock := NewManualClock(150)

	p := New(Options{SampleRate: 48000, Clock: clock, Renderer: r, Sinks: []Sink{sink}})
	require.NoError(t, p.Load(path))
	p.Start()

	dst := make([]float32, 2*512)
	p.Process(dst)

	assert.Equal(t, 1, r.blocks)
	assert.Equal(t, float32(0.25), dst[0])
	assert.Equal(t, 48000.0, sink.rate)
	require.Len(t, sink.events, 2, "tempo meta and note on at tick 0")
	assert.Equal(t, 0, sink.events[0].Offset)
	assert.Equal(t, 150.0, p.Engine().HostTempo())
	assert.Equal(t, 150.0, p.Status().Tempo)

	p.SetSyncToHost(false)
	assert.InDelta(t, 90.0, p.Status().Tempo, 1e-3)
}

func TestMaxEventsBoundsBlock(t *testing.T) {
	path := writeSMF(t, t.TempDir(), "a.mid", 120)
	sink := &fakeSink{}
	p := New(Options{SampleRate: 48000, Sinks: []Sink{sink}, MaxEvents: 1})
	require.NoError(t, p.Load(path))
	p.Start()

	p.Process(make([]float32, 2*512))
	assert.Len(t, sink.events, 1)
	assert.Equal(t, uint64(1), p.Dropped())
}

func TestProcessWithoutRendererClears(t *testing.T) {
	p := New(Options{SampleRate: 48000})
	dst := []float32{1, 1, 1, 1}
	p.Process(dst)
	assert.Equal(t, []float32{0, 0, 0, 0}, dst)
}

func TestDisabledClockKeepsLastTempo(t *testing.T) {
	path := writeSMF(t, t.TempDir(), "a.mid", 120)
	clock := NewManualClock(100)
	p := New(Options{SampleRate: 48000, Clock: clock})
	require.NoError(t, p.Load(path))
	p.Start()
	p.Process(make([]float32, 64))

	clock.SetEnabled(false)
	clock.SetTempo(200)
	p.Process(make([]float32, 64))
	assert.Equal(t, 100.0, p.Engine().HostTempo())
}

func TestStopSilencesOutputs(t *testing.T) {
	sink := &fakeSink{}
	r := &fakeRenderer{}
	p := New(Options{SampleRate: 48000, Renderer: r, Sinks: []Sink{sink}})
	p.Start()
	p.Stop()
	assert.False(t, p.IsPlaying())
	assert.Zero(t, sink.silenced, "outputs are released on the audio thread")
	assert.Zero(t, r.silenced)

	p.Process(make([]float32, 64))
	assert.Equal(t, 1, sink.silenced)
	assert.Equal(t, 1, r.silenced)

	p.Process(make([]float32, 64))
	assert.Equal(t, 1, sink.silenced, "silenced once per stop")

	p.Toggle()
	assert.True(t, p.IsPlaying())
	p.Toggle()
	assert.False(t, p.IsPlaying())
}

// callLog records output calls in order across renderer and sink.
type callLog struct {
	calls []string
}

type loggingRenderer struct {
	log      *callLog
	onRender func()
}

func (r *loggingRenderer) Render(dst []float32, events []transport.ScheduledEvent) {
	if r.onRender != nil {
		r.onRender()
	}
	r.log.calls = append(r.log.calls, fmt.Sprintf("render:%d", len(events)))
}

func (r *loggingRenderer) Silence() { r.log.calls = append(r.log.calls, "render-silence") }

type loggingSink struct {
	log *callLog
}

func (s *loggingSink) Emit(events []transport.ScheduledEvent, rate float64) {
	s.log.calls = append(s.log.calls, fmt.Sprintf("emit:%d", len(events)))
}

func (s *loggingSink) Silence() { s.log.calls = append(s.log.calls, "sink-silence") }

func TestStopDuringBlockSilencesAfterItsEvents(t *testing.T) {
	path := writeSMF(t, t.TempDir(), "a.mid", 120)
	log := &callLog{}
	r := &loggingRenderer{log: log}
	p := New(Options{SampleRate: 48000, Renderer: r, Sinks: []Sink{&loggingSink{log: log}}})
	require.NoError(t, p.Load(path))
	p.SetSyncToHost(false)
	p.Start()

	// the block is already advanced when the control side stops
	r.onRender = func() { p.Stop() }
	p.Process(make([]float32, 2*512))

	assert.Equal(t, []string{"render:2", "emit:2", "render-silence", "sink-silence"}, log.calls)
	assert.False(t, p.IsPlaying())

	r.onRender = nil
	log.calls = nil
	p.Process(make([]float32, 2*512))
	assert.Equal(t, []string{"render:0", "emit:0"}, log.calls)
}

func TestRestartAfterStopKeepsNewNotes(t *testing.T) {
	path := writeSMF(t, t.TempDir(), "a.mid", 120)
	log := &callLog{}
	p := New(Options{SampleRate: 48000, Renderer: &loggingRenderer{log: log}, Sinks: []Sink{&loggingSink{log: log}}})
	require.NoError(t, p.Load(path))
	p.SetSyncToHost(false)
	p.Start()
	p.Stop()
	p.Start()

	p.Process(make([]float32, 2*512))
	assert.Equal(t, []string{"render-silence", "sink-silence", "render:2", "emit:2"}, log.calls)
	assert.True(t, p.IsPlaying())
}

func TestUpdates(t *testing.T) {
	path := writeSMF(t, t.TempDir(), "a.mid", 120)
	p := New(Options{SampleRate: 48000})
	p.SetSyncToHost(false)
	drain(p)

	require.NoError(t, p.Load(path))
	p.Start()
	for range 20 {
		p.Process(make([]float32, 2*4800))
	}
	assert.Equal(t, []UpdateKind{UpdateLoaded, UpdateTransport, UpdatePlaybackEnded}, drain(p))
	assert.False(t, p.IsPlaying())
	assert.Equal(t, 1.0, p.Status().Position)

	p.SetLoop(true)
	p.Start()
	for range 10 {
		p.Process(make([]float32, 2*4800))
	}
	assert.Equal(t, []UpdateKind{UpdateTransport, UpdateTransport, UpdateLoopCompleted}, drain(p))
	assert.True(t, p.IsPlaying())
}

func TestFavoritesAndSettings(t *testing.T) {
	dir := t.TempDir()
	path := writeSMF(t, dir, "a.mid", 120)
	store := settings.NewStore(filepath.Join(dir, "settings.yaml"))

	p := New(Options{SampleRate: 48000, Store: store})
	assert.False(t, p.ToggleFavorite(), "nothing loaded")

	require.NoError(t, p.Load(path))
	assert.True(t, p.ToggleFavorite())
	assert.True(t, p.Status().Favorite)
	p.SetLoop(true)
	p.SetSyncToHost(false)
	p.SetAutoPlay(true)
	require.NoError(t, p.SaveSettings())

	q := New(Options{SampleRate: 48000, Store: store})
	assert.True(t, q.Engine().SyncedToHost(), "defaults before load")
	require.NoError(t, q.LoadSettings())
	assert.Equal(t, settings.State{
		SyncToHost: false,
		Loop:       true,
		AutoPlay:   true,
		Favorites:  []string{path},
	}, q.Snapshot())

	assert.False(t, p.ToggleFavorite())
	assert.Zero(t, p.Favorites().Len())
}

func TestNoStoreIsNoop(t *testing.T) {
	p := New(Options{SampleRate: 48000})
	assert.NoError(t, p.SaveSettings())
	assert.NoError(t, p.LoadSettings())
	assert.Equal(t, settings.Default(), p.Snapshot())
}

func TestRenderStopsAtEnd(t *testing.T) {
	path := writeSMF(t, t.TempDir(), "a.mid", 120)
	r := &fakeRenderer{}
	p := New(Options{SampleRate: 1000, Renderer: r})
	p.SetSyncToHost(false)
	require.NoError(t, p.Load(path))

	// 960 ticks at 120 BPM and 480 PPQN is one second: ten 100-frame blocks
	out := p.Render(RenderOptions{BlockFrames: 100})
	assert.Len(t, out, 2*1000)
	assert.Equal(t, 3, r.events, "end of track sits at MaxTick and is never due")

	out = p.Render(RenderOptions{BlockFrames: 100, Tail: 250 * time.Millisecond})
	assert.Len(t, out, 2*1300)
}

func TestRenderEmptySequence(t *testing.T) {
	p := New(Options{SampleRate: 1000})
	assert.Nil(t, p.Render(RenderOptions{}))

	p.LoadSequence(sequence.Load([]sequence.Track{{}, {}}, 480), "empty")
	assert.Nil(t, p.Render(RenderOptions{BlockFrames: 64}))
}

func TestRenderLimit(t *testing.T) {
	path := writeSMF(t, t.TempDir(), "a.mid", 120)
	p := New(Options{SampleRate: 1000})
	p.SetSyncToHost(false)
	p.SetLoop(true)
	require.NoError(t, p.Load(path))

	out := p.Render(RenderOptions{BlockFrames: 64, Limit: 3 * time.Second})
	assert.Len(t, out, 2*3000)
	assert.True(t, p.IsPlaying())
}

func TestManualClock(t *testing.T) {
	c := NewManualClock(120)
	bpm, ok := c.Tempo()
	assert.True(t, ok)
	assert.Equal(t, 120.0, bpm)

	assert.Equal(t, MaxTempo, c.SetTempo(1000))
	assert.Equal(t, MinTempo, c.SetTempo(-5))
	assert.Equal(t, 25.0, c.Nudge(5))

	c.SetEnabled(false)
	_, ok = c.Tempo()
	assert.False(t, ok)
}

// Package player ties the transport engine to files, settings, a host clock
// and output sinks.
//
// Process is the host audio callback. Everything else is the control side
// and may be called from any goroutine.
package player

import (
	"path/filepath"
	"sync"
	"sync/atomic"

	"go-midiplay/debug"
	"go-midiplay/midifile"
	"go-midiplay/sequence"
	"go-midiplay/settings"
	"go-midiplay/transport"
)

// DefaultMaxEvents is the capacity of the per-block event buffer. A block
// never schedules more; the rest are dropped and counted by Dropped.
const DefaultMaxEvents = 4096

// Sink receives each block's scheduled events on the audio thread. Emit
// must not block. Silence is also called from Process, after the Emit of
// the block in which playback stopped.
type Sink interface {
	Emit(events []transport.ScheduledEvent, sampleRate float64)
	Silence()
}

// Renderer turns a block's events into interleaved stereo audio. Like a
// Sink, it is silenced from Process.
type Renderer interface {
	Render(dst []float32, events []transport.ScheduledEvent)
	Silence()
}

// UpdateKind says what changed.
type UpdateKind int

const (
	UpdateTransport UpdateKind = iota
	UpdateLoaded
	UpdateLoopCompleted
	UpdatePlaybackEnded
	UpdateFavorites
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateTransport:
		return "transport"
	case UpdateLoaded:
		return "loaded"
	case UpdateLoopCompleted:
		return "loop-completed"
	case UpdatePlaybackEnded:
		return "playback-ended"
	case UpdateFavorites:
		return "favorites"
	}
	return "unknown"
}

// Update is sent on the Updates channel. Sends never block; a slow reader
// misses updates, not audio.
type Update struct {
	Kind UpdateKind
	Path string
}

// Options configure a Player.
type Options struct {
	SampleRate int
	// Clock is the host clock. Nil means the host never reports a tempo.
	Clock    Clock
	Renderer Renderer
	Sinks    []Sink
	// Store persists settings. Nil disables SaveSettings and LoadSettings.
	Store           *settings.Store
	CompensateDrift bool
	// MaxEvents caps the events scheduled per block. Zero means
	// DefaultMaxEvents.
	MaxEvents int
}

// Status is a snapshot for display.
type Status struct {
	Path       string
	Playing    bool
	Looping    bool
	Synced     bool
	AutoPlay   bool
	Favorite   bool
	Tempo      float64
	FileTempo  float64
	HostTempo  float64
	Tick       int64
	MaxTick    int64
	Position   float64
	Resolution int
	Tracks     int
}

// Player is the application around a transport.Engine.
type Player struct {
	opts      Options
	engine    *transport.Engine
	favorites *settings.Favorites
	autoPlay  atomic.Bool
	path      atomic.Pointer[string]
	updates   chan Update

	loadMu sync.Mutex
	// set by Stop, consumed by Process
	silence atomic.Bool

	// audio thread only
	events []transport.ScheduledEvent
}

// New creates a stopped player with default settings.
func New(opts Options) *Player {
	if opts.MaxEvents <= 0 {
		opts.MaxEvents = DefaultMaxEvents
	}
	p := &Player{
		opts:      opts,
		favorites: settings.NewFavorites(),
		updates:   make(chan Update, 64),
		events:    make([]transport.ScheduledEvent, 0, opts.MaxEvents),
	}
	p.engine = transport.NewWithOptions(transport.Options{
		CompensateDrift: opts.CompensateDrift,
		MaxEvents:       opts.MaxEvents,
		OnEvent:         p.onEngineEvent,
	})
	p.RestoreSettings(settings.Default())
	return p
}

func (p *Player) onEngineEvent(kind transport.EventKind) {
	switch kind {
	case transport.EventLoopCompleted:
		p.notify(UpdateLoopCompleted)
	case transport.EventPlaybackEnded:
		p.notify(UpdatePlaybackEnded)
	}
}

func (p *Player) notify(kind UpdateKind) {
	select {
	case p.updates <- Update{Kind: kind, Path: p.Path()}:
	default:
	}
}

// Updates delivers transport and library changes.
func (p *Player) Updates() <-chan Update {
	return p.updates
}

// Engine exposes the transport for direct inspection.
func (p *Player) Engine() *transport.Engine {
	return p.engine
}

func (p *Player) SampleRate() int {
	return p.opts.SampleRate
}

// Load decodes path and swaps it in. On failure the current sequence and
// transport state are kept and the *midifile.DecodeError is returned. With
// auto-play on, a successful load starts playback.
func (p *Player) Load(path string) error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	seq, err := midifile.Load(path)
	if err != nil {
		debug.Logger().Warn("load failed", "path", path, "err", err)
		return err
	}
	p.swap(seq, path)
	debug.Logger().Info("loaded", "path", path, "tracks", seq.NumTracks(),
		"ppqn", seq.Resolution(), "tempo", seq.BaseTempo(), "maxTick", seq.MaxTick())
	return nil
}

// LoadSequence swaps in an already decoded sequence under name.
func (p *Player) LoadSequence(seq *sequence.Sequence, name string) {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()
	p.swap(seq, name)
}

func (p *Player) swap(seq *sequence.Sequence, path string) {
	p.engine.SetSequence(seq)
	p.path.Store(&path)
	p.notify(UpdateLoaded)
	if p.autoPlay.Load() {
		p.Start()
	}
}

// Path returns the loaded file, or "" before the first load.
func (p *Player) Path() string {
	if s := p.path.Load(); s != nil {
		return *s
	}
	return ""
}

// Start plays from the beginning.
func (p *Player) Start() {
	p.engine.Start()
	debug.Log("transport", "start %s", filepath.Base(p.Path()))
	p.notify(UpdateTransport)
}

// Stop halts playback. Every output is silenced by the next Process, after
// any events of a block that was already advanced.
func (p *Player) Stop() {
	p.engine.Stop()
	p.silence.Store(true)
	debug.Log("transport", "stop at tick %d", p.engine.Tick())
	p.notify(UpdateTransport)
}

// Toggle starts a stopped player and stops a playing one.
func (p *Player) Toggle() {
	if p.engine.IsPlaying() {
		p.Stop()
	} else {
		p.Start()
	}
}

// Dropped returns how many events were skipped because a block held more
// than MaxEvents.
func (p *Player) Dropped() uint64 {
	return p.engine.Dropped()
}

func (p *Player) IsPlaying() bool {
	return p.engine.IsPlaying()
}

func (p *Player) SetLoop(loop bool) {
	p.engine.SetLoop(loop)
	p.notify(UpdateTransport)
}

func (p *Player) SetSyncToHost(sync bool) {
	p.engine.SetSyncToHost(sync)
	p.notify(UpdateTransport)
}

func (p *Player) SetAutoPlay(on bool) {
	p.autoPlay.Store(on)
}

func (p *Player) AutoPlay() bool {
	return p.autoPlay.Load()
}

func (p *Player) Favorites() *settings.Favorites {
	return p.favorites
}

// ToggleFavorite adds or removes the loaded file. It returns whether the
// file is a favorite afterwards.
func (p *Player) ToggleFavorite() bool {
	path := p.Path()
	if path == "" {
		return false
	}
	on := p.favorites.Toggle(path)
	p.notify(UpdateFavorites)
	return on
}

// RestoreSettings applies saved state.
func (p *Player) RestoreSettings(s settings.State) {
	p.engine.SetSyncToHost(s.SyncToHost)
	p.engine.SetLoop(s.Loop)
	p.autoPlay.Store(s.AutoPlay)
	p.favorites.Replace(s.Favorites)
}

// Snapshot captures the state worth saving.
func (p *Player) Snapshot() settings.State {
	return settings.State{
		SyncToHost: p.engine.SyncedToHost(),
		Loop:       p.engine.Looping(),
		AutoPlay:   p.autoPlay.Load(),
		Favorites:  p.favorites.List(),
	}
}

// LoadSettings reads and applies the settings file. A read error still
// applies the defaults.
func (p *Player) LoadSettings() error {
	if p.opts.Store == nil {
		return nil
	}
	s, err := p.opts.Store.Load()
	p.RestoreSettings(s)
	return err
}

// SaveSettings writes Snapshot to the settings file.
func (p *Player) SaveSettings() error {
	if p.opts.Store == nil {
		return nil
	}
	return p.opts.Store.Save(p.Snapshot())
}

// Status returns a display snapshot.
func (p *Player) Status() Status {
	e := p.engine
	st := Status{
		Path:      p.Path(),
		Playing:   e.IsPlaying(),
		Looping:   e.Looping(),
		Synced:    e.SyncedToHost(),
		AutoPlay:  p.autoPlay.Load(),
		Tempo:     e.CurrentTempo(),
		FileTempo: e.FileTempo(),
		HostTempo: e.HostTempo(),
		Tick:      e.Tick(),
		MaxTick:   e.MaxTick(),
		Position:  e.Position(),
	}
	st.Favorite = st.Path != "" && p.favorites.Contains(st.Path)
	if s := e.Sequence(); s != nil {
		st.Resolution = s.Resolution()
		st.Tracks = s.NumTracks()
	}
	return st
}

// Process is the host callback: dst holds interleaved stereo samples.
func (p *Player) Process(dst []float32) {
	frames := len(dst) / 2
	var host float64
	if p.opts.Clock != nil {
		if bpm, ok := p.opts.Clock.Tempo(); ok {
			host = bpm
		}
	}
	rate := float64(p.opts.SampleRate)

	// A Stop seen before Advance is released ahead of this block's events
	// so a Start right after it keeps its notes.
	if p.silence.Swap(false) {
		p.silenceOutputs()
	}
	p.events = p.engine.Advance(p.events[:0], transport.Block{
		Samples:    frames,
		SampleRate: rate,
		HostTempo:  host,
	})

	if p.opts.Renderer != nil {
		p.opts.Renderer.Render(dst, p.events)
	} else {
		clear(dst)
	}
	for _, s := range p.opts.Sinks {
		s.Emit(p.events, rate)
	}

	// A Stop that landed after Advance releases what this block started.
	if p.silence.Swap(false) {
		p.silenceOutputs()
	}
}

func (p *Player) silenceOutputs() {
	if p.opts.Renderer != nil {
		p.opts.Renderer.Silence()
	}
	for _, s := range p.opts.Sinks {
		s.Silence()
	}
}

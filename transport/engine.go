// Package transport schedules sequence events onto the sample grid of a
// host-driven audio callback.
//
// An Engine has two kinds of callers. Advance runs on the audio thread once
// per block and owns the tick cursor. Every other method is safe to call
// from any goroutine; they only touch atomics, so the audio thread never
// waits on them.
package transport

import (
	"math"
	"slices"
	"sync/atomic"

	"go-midiplay/sequence"

	"gitlab.com/gomidi/midi/v2/smf"
)

// DefaultHostTempo is the host tempo assumed until the first observation.
const DefaultHostTempo = 120.0

// EventKind identifies transport lifecycle events reported through OnEvent.
type EventKind int

const (
	EventLoopCompleted EventKind = iota
	EventPlaybackEnded
)

func (k EventKind) String() string {
	switch k {
	case EventLoopCompleted:
		return "loop-completed"
	case EventPlaybackEnded:
		return "playback-ended"
	}
	return "unknown"
}

// ScheduledEvent is one event placed inside the current block.
type ScheduledEvent struct {
	Offset  int   // sample offset from the start of the block
	Track   int   // source track index
	Tick    int64 // source tick
	Message smf.Message
}

// Block describes one audio callback.
type Block struct {
	Samples    int
	SampleRate float64
	// HostTempo is the host clock's BPM for this block. Zero, negative or
	// non-finite means the host reported nothing.
	HostTempo float64
}

// Options tune an Engine.
type Options struct {
	// CompensateDrift carries the fractional tick remainder across blocks
	// instead of rounding it away every block.
	CompensateDrift bool

	// MaxEvents caps how many events one Advance appends. Events past the
	// cap are dropped and counted by Dropped. Zero means no cap, in which
	// case a busy block may grow dst.
	MaxEvents int

	// OnEvent is called from Advance, on the audio thread. It must not block.
	OnEvent func(EventKind)
}

const playingBit = 1

// Engine is the transport state machine.
type Engine struct {
	opts Options

	seq atomic.Pointer[sequence.Sequence]
	// state packs the start generation (upper bits) and the playing flag
	// (bit 0) so Start and an end-of-sequence stop cannot interleave.
	state     atomic.Uint64
	loop      atomic.Bool
	syncHost  atomic.Bool
	hostTempo atomic.Uint64 // math.Float64bits
	dropped   atomic.Uint64

	// published by Advance for the control side
	pubSeq atomic.Pointer[sequence.Sequence]
	pubGen atomic.Uint64
	pubTk  atomic.Int64
	pubSPT atomic.Uint64

	// audio thread only
	cur            *sequence.Sequence
	gen            uint64
	tick           int64
	phase          float64
	samplesPerTick float64
}

// New creates a stopped engine with sync-to-host enabled.
func New() *Engine {
	return NewWithOptions(Options{})
}

func NewWithOptions(opts Options) *Engine {
	e := &Engine{opts: opts}
	e.syncHost.Store(true)
	e.hostTempo.Store(math.Float64bits(DefaultHostTempo))
	return e
}

// SamplesPerTick converts a tempo, sample rate and resolution into the
// number of audio samples one tick lasts.
func SamplesPerTick(tempo, sampleRate float64, resolution int) float64 {
	return (60.0 / tempo) * sampleRate / float64(resolution)
}

// SetSequence swaps in a new sequence. The next Advance starts it from tick 0.
// A nil sequence silences playback.
func (e *Engine) SetSequence(s *sequence.Sequence) {
	e.seq.Store(s)
}

// Sequence returns the most recently set sequence.
func (e *Engine) Sequence() *sequence.Sequence {
	return e.seq.Load()
}

// Start begins playback from tick 0.
func (e *Engine) Start() {
	for {
		old := e.state.Load()
		next := ((old>>1)+1)<<1 | playingBit
		if e.state.CompareAndSwap(old, next) {
			return
		}
	}
}

// Stop halts playback at the next Advance. The tick is left where it is.
func (e *Engine) Stop() {
	for {
		old := e.state.Load()
		if old&playingBit == 0 {
			return
		}
		if e.state.CompareAndSwap(old, old&^playingBit) {
			return
		}
	}
}

func (e *Engine) IsPlaying() bool {
	return e.state.Load()&playingBit != 0
}

func (e *Engine) SetLoop(loop bool) {
	e.loop.Store(loop)
}

func (e *Engine) Looping() bool {
	return e.loop.Load()
}

// SetSyncToHost selects the host tempo (true) or the file tempo (false).
func (e *Engine) SetSyncToHost(sync bool) {
	e.syncHost.Store(sync)
}

func (e *Engine) SyncedToHost() bool {
	return e.syncHost.Load()
}

// HostTempo returns the last tempo observed from the host.
func (e *Engine) HostTempo() float64 {
	return math.Float64frombits(e.hostTempo.Load())
}

// FileTempo returns the base tempo of the current sequence, or the default
// tempo when nothing is loaded.
func (e *Engine) FileTempo() float64 {
	if s := e.seq.Load(); s != nil {
		return s.BaseTempo()
	}
	return sequence.DefaultTempo
}

// CurrentTempo returns the tempo playback follows right now. It does not
// record anything.
func (e *Engine) CurrentTempo() float64 {
	if e.syncHost.Load() {
		return e.HostTempo()
	}
	return e.FileTempo()
}

// Tick returns the playback cursor as of the last Advance. After a Start or
// a sequence change that Advance has not yet seen, it reports 0.
func (e *Engine) Tick() int64 {
	if e.pubSeq.Load() != e.seq.Load() || e.pubGen.Load() != e.state.Load()>>1 {
		return 0
	}
	return e.pubTk.Load()
}

// MaxTick returns the last event tick of the current sequence.
func (e *Engine) MaxTick() int64 {
	if s := e.seq.Load(); s != nil {
		return s.MaxTick()
	}
	return 0
}

// Position returns the cursor as a fraction of MaxTick in [0, 1].
func (e *Engine) Position() float64 {
	maxTick := e.MaxTick()
	if maxTick <= 0 {
		return 0
	}
	p := float64(e.Tick()) / float64(maxTick)
	return min(max(p, 0), 1)
}

// Dropped returns how many events were discarded because a block went over
// Options.MaxEvents.
func (e *Engine) Dropped() uint64 {
	return e.dropped.Load()
}

// SamplesPerTick returns the value computed by the last advancing block.
func (e *Engine) SamplesPerTick() float64 {
	return math.Float64frombits(e.pubSPT.Load())
}

// Advance moves playback forward by one block and appends the events due
// inside it to dst, ordered by sample offset. Events sharing an offset keep
// track order, then tick order. Pass dst[:0] of a reused buffer with enough
// capacity and Advance does not allocate.
//
// The tempo in effect at the start of the block is used for the whole
// block; a tempo change reported mid-block is not interpolated.
//
// Invalid input (no sequence or no events, negative block, bad sample rate) makes
// Advance a no-op. It never panics.
func (e *Engine) Advance(dst []ScheduledEvent, b Block) []ScheduledEvent {
	defer e.publish()

	s := e.seq.Load()
	if s != e.cur {
		e.cur = s
		e.rewind()
	}
	state := e.state.Load()
	if gen := state >> 1; gen != e.gen {
		e.gen = gen
		e.rewind()
	}
	if state&playingBit == 0 || s == nil || s.Empty() {
		return dst
	}

	syncHost := e.syncHost.Load()
	if syncHost && validTempo(b.HostTempo) {
		e.hostTempo.Store(math.Float64bits(b.HostTempo))
	}
	if b.Samples < 0 || !(b.SampleRate > 0) || math.IsInf(b.SampleRate, 0) {
		return dst
	}

	tempo := s.BaseTempo()
	if syncHost {
		tempo = e.HostTempo()
	}
	e.samplesPerTick = SamplesPerTick(tempo, b.SampleRate, s.Resolution())

	// origin is the cursor position in ticks at the first sample of the
	// block. Only drift compensation keeps a fractional part.
	origin := float64(e.tick)
	var ticks int64
	exact := float64(b.Samples) / e.samplesPerTick
	if e.opts.CompensateDrift {
		origin += e.phase
		exact += e.phase
		ticks = int64(math.Floor(exact))
		e.phase = exact - float64(ticks)
	} else {
		ticks = int64(math.Floor(exact + 0.5))
	}

	start, end := e.tick, e.tick+ticks
	base := len(dst)
	for ti, tr := range s.Tracks() {
		i, _ := slices.BinarySearchFunc(tr, start, cmpTick)
		for ; i < len(tr); i++ {
			ev := tr[i]
			if ev.Tick >= end {
				break
			}
			off := int(math.Floor((float64(ev.Tick)-origin)*e.samplesPerTick + 0.5))
			if e.opts.CompensateDrift {
				// an event at start is already behind the cursor and
				// plays at once
				off = min(max(off, 0), b.Samples-1)
			} else if off < 0 || off >= b.Samples {
				continue
			}
			if e.opts.MaxEvents > 0 && len(dst)-base >= e.opts.MaxEvents {
				e.dropped.Add(1)
				continue
			}
			dst = append(dst, ScheduledEvent{Offset: off, Track: ti, Tick: ev.Tick, Message: ev.Message})
		}
	}
	// appended in track order, then tick order; the stable sort keeps that
	// order among equal offsets
	slices.SortStableFunc(dst[base:], byOffset)

	e.tick = end
	if e.tick >= s.MaxTick() {
		if e.loop.Load() {
			e.rewind()
			e.notify(EventLoopCompleted)
		} else if e.state.CompareAndSwap(state, state&^playingBit) {
			e.notify(EventPlaybackEnded)
		}
	}
	return dst
}

func (e *Engine) rewind() {
	e.tick = 0
	e.phase = 0
}

func (e *Engine) publish() {
	e.pubTk.Store(e.tick)
	e.pubSPT.Store(math.Float64bits(e.samplesPerTick))
	e.pubGen.Store(e.gen)
	e.pubSeq.Store(e.cur)
}

func (e *Engine) notify(kind EventKind) {
	if e.opts.OnEvent != nil {
		e.opts.OnEvent(kind)
	}
}

func cmpTick(ev sequence.Event, tick int64) int {
	switch {
	case ev.Tick < tick:
		return -1
	case ev.Tick > tick:
		return 1
	}
	return 0
}

func byOffset(a, b ScheduledEvent) int {
	return a.Offset - b.Offset
}

func validTempo(bpm float64) bool {
	return bpm > 0 && !math.IsInf(bpm, 0)
}

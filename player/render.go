package player

import (
	"time"
)

// DefaultBlockFrames is the block size used for offline rendering.
const DefaultBlockFrames = 512

// RenderOptions bound an offline render.
type RenderOptions struct {
	BlockFrames int
	// Limit caps the rendered length. Zero means ten minutes.
	Limit time.Duration
	// Tail keeps rendering this long after playback ends so releases and
	// reverb decay.
	Tail time.Duration
}

// Render drives Process faster than real time from the start of the loaded
// sequence until playback ends (plus Tail) or Limit is reached, and returns
// the interleaved stereo result. It starts playback itself. Without events
// to play it returns nil.
func (p *Player) Render(opts RenderOptions) []float32 {
	if opts.BlockFrames <= 0 {
		opts.BlockFrames = DefaultBlockFrames
	}
	if opts.Limit <= 0 {
		opts.Limit = 10 * time.Minute
	}
	rate := p.opts.SampleRate
	if rate <= 0 {
		return nil
	}
	// nothing would ever end playback
	if s := p.engine.Sequence(); s == nil || s.Empty() {
		return nil
	}
	limit := framesFor(opts.Limit, rate)
	tail := framesFor(opts.Tail, rate)

	p.Start()
	block := make([]float32, 2*opts.BlockFrames)
	var out []float32
	frames, ended := 0, -1
	for frames < limit {
		n := min(opts.BlockFrames, limit-frames)
		p.Process(block[:2*n])
		out = append(out, block[:2*n]...)
		frames += n
		if ended < 0 && !p.engine.IsPlaying() {
			ended = frames
		}
		if ended >= 0 && frames-ended >= tail {
			break
		}
	}
	return out
}

func framesFor(d time.Duration, rate int) int {
	return int(d.Seconds() * float64(rate))
}

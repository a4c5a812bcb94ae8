package midi

import (
	"context"
	"sync/atomic"
	"time"

	"go-midiplay/debug"
	"go-midiplay/transport"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// DefaultQueueSize is the number of messages a PortSink buffers between the
// audio callback and its dispatch goroutine
const DefaultQueueSize = 1024

type timedMessage struct {
	at  time.Time
	msg gomidi.Message
}

// PortSink forwards scheduled events to a MIDI output port. Emit runs on the
// audio thread and never blocks; Run does the timed sends.
type PortSink struct {
	send    SendFunc
	queue   chan timedMessage
	dropped atomic.Uint64
	failed  atomic.Uint64

	// now is replaced in tests
	now func() time.Time
}

// NewPortSink creates a sink writing through send. size <= 0 uses
// DefaultQueueSize.
func NewPortSink(send SendFunc, size int) *PortSink {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &PortSink{
		send:  send,
		queue: make(chan timedMessage, size),
		now:   time.Now,
	}
}

// Playable converts a file message into something a port accepts. Meta and
// sysex messages are rejected.
func Playable(msg smf.Message) (gomidi.Message, bool) {
	if len(msg) == 0 || msg[0] < 0x80 || msg[0] >= 0xF0 {
		return nil, false
	}
	return gomidi.Message(msg), true
}

// Emit queues the block's events. Each one is due at the time Emit is called
// plus its sample offset. Messages that do not fit are counted as dropped.
func (s *PortSink) Emit(events []transport.ScheduledEvent, sampleRate float64) {
	if len(events) == 0 || sampleRate <= 0 {
		return
	}
	start := s.now()
	for _, ev := range events {
		msg, ok := Playable(ev.Message)
		if !ok {
			continue
		}
		at := start.Add(time.Duration(float64(ev.Offset) / sampleRate * float64(time.Second)))
		s.enqueue(timedMessage{at: at, msg: msg})
	}
}

func (s *PortSink) enqueue(tm timedMessage) {
	select {
	case s.queue <- tm:
	default:
		s.dropped.Add(1)
	}
}

// Silence queues All Notes Off on every channel for immediate sending
func (s *PortSink) Silence() {
	now := s.now()
	for ch := uint8(0); ch < 16; ch++ {
		s.enqueue(timedMessage{at: now, msg: gomidi.ControlChange(ch, 123, 0)})
	}
}

// Dropped returns how many messages did not fit in the queue
func (s *PortSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Failed returns how many sends returned an error
func (s *PortSink) Failed() uint64 {
	return s.failed.Load()
}

// Run sends queued messages at their due time (blocking - run in goroutine)
func (s *PortSink) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		var tm timedMessage
		select {
		case <-ctx.Done():
			return
		case tm = <-s.queue:
		}

		if wait := tm.at.Sub(s.now()); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
		}

		if err := s.send(tm.msg); err != nil {
			s.failed.Add(1)
			debug.LogEvery(100, "midi", "send failed: %v", err)
			continue
		}
		debug.Log("dispatch", "%s", tm.msg)
	}
}

package midi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-midiplay/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// SendFunc writes one message to an output
type SendFunc func(gomidi.Message) error

// Outputs opens output ports lazily and keeps their senders
type Outputs struct {
	senders map[string]SendFunc
	mu      sync.RWMutex

	// open is replaced in tests
	open func(name string) (SendFunc, error)
}

// NewOutputs creates an empty set of outputs backed by the MIDI driver
func NewOutputs() *Outputs {
	return &Outputs{
		senders: make(map[string]SendFunc),
		open:    openDriverPort,
	}
}

func openDriverPort(name string) (SendFunc, error) {
	for _, port := range gomidi.GetOutPorts() {
		if port.String() == name {
			send, err := gomidi.SendTo(port)
			if err != nil {
				return nil, err
			}
			return send, nil
		}
	}
	return nil, fmt.Errorf("midi: no output port %q", name)
}

// Sender returns a sender for the given port name, lazily opening it
func (o *Outputs) Sender(name string) (SendFunc, error) {
	if name == "" {
		return nil, fmt.Errorf("midi: empty port name")
	}

	o.mu.RLock()
	if send, ok := o.senders[name]; ok {
		o.mu.RUnlock()
		return send, nil
	}
	o.mu.RUnlock()

	o.mu.Lock()
	defer o.mu.Unlock()

	// Double-check after acquiring write lock
	if send, ok := o.senders[name]; ok {
		return send, nil
	}

	send, err := o.open(name)
	if err != nil {
		return nil, err
	}
	o.senders[name] = send
	return send, nil
}

// Forget drops a cached sender so the next Sender call reopens the port
func (o *Outputs) Forget(name string) {
	o.mu.Lock()
	delete(o.senders, name)
	o.mu.Unlock()
}

// PortEvent is emitted when the watched port appears or disappears
type PortEvent struct {
	Type PortEventType
	Name string
}

type PortEventType int

const (
	PortConnected PortEventType = iota
	PortDisconnected
)

func (t PortEventType) String() string {
	if t == PortConnected {
		return "connected"
	}
	return "disconnected"
}

// Watcher polls the driver for one output port (hot-plug detection)
type Watcher struct {
	name     string
	outputs  *Outputs
	events   chan PortEvent
	pollRate time.Duration
	present  bool

	// list is replaced in tests
	list func() (Ports, error)
}

// NewWatcher watches for the output port called name. On disconnect the
// cached sender in outputs is dropped.
func NewWatcher(name string, outputs *Outputs) *Watcher {
	return &Watcher{
		name:     name,
		outputs:  outputs,
		events:   make(chan PortEvent, 16),
		pollRate: time.Second,
		list:     func() (Ports, error) { return ListPorts(3 * time.Second) },
	}
}

// Events returns a channel of connect/disconnect events
func (w *Watcher) Events() <-chan PortEvent {
	return w.events
}

// Run starts the polling loop (blocking - run in goroutine)
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollRate)
	defer ticker.Stop()

	// Initial scan
	w.scan()

	for {
		select {
		case <-ctx.Done():
			close(w.events)
			return
		case <-ticker.C:
			w.scan()
		}
	}
}

func (w *Watcher) scan() {
	ports, err := w.list()
	if err != nil {
		// driver hung; try again next tick
		debug.Log("midi", "scan: %v", err)
		return
	}

	seen := false
	for _, name := range ports.Out {
		if name == w.name {
			seen = true
			break
		}
	}
	if seen == w.present {
		return
	}
	w.present = seen

	ev := PortEvent{Type: PortConnected, Name: w.name}
	if !seen {
		ev.Type = PortDisconnected
		if w.outputs != nil {
			w.outputs.Forget(w.name)
		}
	}
	select {
	case w.events <- ev:
	default:
	}
}

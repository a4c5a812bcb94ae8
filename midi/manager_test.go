package midi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
)

func fakeOutputs(opened *int) *Outputs {
	o := NewOutputs()
	o.open = func(name string) (SendFunc, error) {
		if name == "missing" {
			return nil, errors.New("no such port")
		}
		*opened++
		return func(gomidi.Message) error { return nil }, nil
	}
	return o
}

func TestOutputsOpensLazilyOnce(t *testing.T) {
	opened := 0
	o := fakeOutputs(&opened)

	_, err := o.Sender("synth")
	require.NoError(t, err)
	_, err = o.Sender("synth")
	require.NoError(t, err)
	assert.Equal(t, 1, opened)

	o.Forget("synth")
	_, err = o.Sender("synth")
	require.NoError(t, err)
	assert.Equal(t, 2, opened)

	_, err = o.Sender("missing")
	assert.Error(t, err)
	_, err = o.Sender("")
	assert.Error(t, err)
}

func TestWatcherReportsChanges(t *testing.T) {
	opened := 0
	o := fakeOutputs(&opened)
	_, _ = o.Sender("synth")

	w := NewWatcher("synth", o)
	w.pollRate = time.Millisecond
	scans := [][]string{{"synth"}, {"synth"}, {"other"}}
	calls := 0
	w.list = func() (Ports, error) {
		if calls >= len(scans) {
			return Ports{}, ErrScanTimeout
		}
		out := scans[calls]
		calls++
		return Ports{Out: out}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	first := <-w.Events()
	assert.Equal(t, PortEvent{Type: PortConnected, Name: "synth"}, first)
	second := <-w.Events()
	assert.Equal(t, PortEvent{Type: PortDisconnected, Name: "synth"}, second)
	cancel()

	// disconnect dropped the cached sender
	_, _ = o.Sender("synth")
	assert.Equal(t, 2, opened)

	for range w.Events() {
	}
}

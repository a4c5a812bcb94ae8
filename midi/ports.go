package midi

import (
	"errors"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// ErrScanTimeout is returned when the MIDI driver does not answer in time.
// CoreMIDI can hang; the usual fix is: sudo killall coreaudiod midiserver
var ErrScanTimeout = errors.New("midi: port scan timed out")

// Ports is a snapshot of the available port names
type Ports struct {
	In  []string
	Out []string
}

// ListPorts asks the driver for its ports, giving up after timeout
func ListPorts(timeout time.Duration) (Ports, error) {
	type portsResult struct {
		inPorts  []drivers.In
		outPorts []drivers.Out
	}

	ch := make(chan portsResult, 1)
	go func() {
		inPorts := gomidi.GetInPorts()
		outPorts := gomidi.GetOutPorts()
		ch <- portsResult{inPorts: inPorts, outPorts: outPorts}
	}()

	select {
	case r := <-ch:
		var p Ports
		for _, in := range r.inPorts {
			p.In = append(p.In, in.String())
		}
		for _, out := range r.outPorts {
			p.Out = append(p.Out, out.String())
		}
		return p, nil
	case <-time.After(timeout):
		return Ports{}, ErrScanTimeout
	}
}

package midi

import (
	"sync"

	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// DriverEndpoint is an Endpoint backed by real MIDI ports through gomidi.
// Incoming bytes run through the recv filter and frame parser on the
// driver's callback goroutine; framed messages queue for the engine.
type DriverEndpoint struct {
	name string
	in   drivers.In
	out  drivers.Out
	stop func()

	mu     sync.Mutex
	filter func(byte) bool
	parser Parser
	queue  chan Message
}

// OpenDriverEndpoint opens the named input and output ports. Either name may
// be empty to leave that direction unconnected.
func OpenDriverEndpoint(inName, outName string) (*DriverEndpoint, error) {
	ep := &DriverEndpoint{
		name:  inName,
		queue: make(chan Message, recvQueueSize),
	}

	if inName != "" {
		in, err := findInPort(inName)
		if err != nil {
			return nil, err
		}
		if err := in.Open(); err != nil {
			return nil, errors.Wrapf(err, "opening midi in %q", inName)
		}
		stop, err := in.Listen(func(data []byte, milliseconds int32) {
			ep.feed(data)
		}, drivers.ListenConfig{TimeCode: true, ActiveSense: true})
		if err != nil {
			in.Close()
			return nil, errors.Wrapf(err, "listening on midi in %q", inName)
		}
		ep.in = in
		ep.stop = stop
	}

	if outName != "" {
		out, err := findOutPort(outName)
		if err != nil {
			if ep.stop != nil {
				ep.stop()
			}
			return nil, err
		}
		if err := out.Open(); err != nil {
			if ep.stop != nil {
				ep.stop()
			}
			return nil, errors.Wrapf(err, "opening midi out %q", outName)
		}
		ep.out = out
	}

	return ep, nil
}

func findInPort(name string) (drivers.In, error) {
	for _, port := range gomidi.GetInPorts() {
		if port.String() == name {
			return port, nil
		}
	}
	return nil, errors.Errorf("midi in port %q not found", name)
}

func findOutPort(name string) (drivers.Out, error) {
	for _, port := range gomidi.GetOutPorts() {
		if port.String() == name {
			return port, nil
		}
	}
	return nil, errors.Errorf("midi out port %q not found", name)
}

func (d *DriverEndpoint) feed(data []byte) {
	d.mu.Lock()
	filter := d.filter
	d.mu.Unlock()

	for _, b := range data {
		if filter != nil && filter(b) {
			continue
		}
		d.mu.Lock()
		msg, ok := d.parser.Feed(b)
		d.mu.Unlock()
		if !ok {
			continue
		}
		select {
		case d.queue <- msg:
		default:
			// engine stalled, drop
		}
	}
}

// Send writes the message to the output port. Returns false when the port is
// missing or the driver rejects the write (caller may retry later).
func (d *DriverEndpoint) Send(msg Message) bool {
	if d.out == nil {
		return false
	}
	return d.out.Send(msg.Bytes()) == nil
}

// Recv pops the next framed message, non-blocking
func (d *DriverEndpoint) Recv(msg *Message) bool {
	select {
	case m := <-d.queue:
		*msg = m
		return true
	default:
		return false
	}
}

// SetRecvFilter installs the byte-level filter
func (d *DriverEndpoint) SetRecvFilter(filter func(data byte) bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filter = filter
}

// Name returns the input port name
func (d *DriverEndpoint) Name() string {
	return d.name
}

// Close stops listening and closes both ports
func (d *DriverEndpoint) Close() {
	if d.stop != nil {
		d.stop()
	}
	if d.in != nil {
		d.in.Close()
	}
	if d.out != nil {
		d.out.Close()
	}
}

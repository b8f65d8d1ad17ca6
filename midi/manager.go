package midi

import (
	"context"
	"strconv"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// DeviceManager handles hot-plug detection of the USB MIDI interface.
// It polls the system port list and attaches/detaches the UsbEndpoint.
type DeviceManager struct {
	usb      *UsbEndpoint
	match    string
	exclude  string
	current  string
	pollRate time.Duration
}

// NewDeviceManager creates a manager that feeds the given USB endpoint.
// match is a substring selecting USB ports; exclude filters out the DIN
// interface's port name so it is never claimed as USB.
func NewDeviceManager(usb *UsbEndpoint, match, exclude string) *DeviceManager {
	return &DeviceManager{
		usb:      usb,
		match:    strings.ToLower(match),
		exclude:  exclude,
		pollRate: time.Second,
	}
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	// Initial scan
	dm.scan()

	for {
		select {
		case <-ctx.Done():
			if dm.current != "" {
				dm.usb.Detach()
				dm.current = ""
			}
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

func (dm *DeviceManager) scan() {
	// Get current MIDI ports with timeout (CoreMIDI can hang)
	type portsResult struct {
		inPorts  []drivers.In
		outPorts []drivers.Out
	}

	ch := make(chan portsResult, 1)
	go func() {
		ch <- portsResult{inPorts: gomidi.GetInPorts(), outPorts: gomidi.GetOutPorts()}
	}()

	var inPorts []drivers.In
	var outPorts []drivers.Out

	select {
	case result := <-ch:
		inPorts = result.inPorts
		outPorts = result.outPorts
	case <-time.After(3 * time.Second):
		// port enumeration is hung - skip this scan
		return
	}

	found := ""
	for _, inPort := range inPorts {
		name := inPort.String()
		if name == dm.exclude {
			continue
		}
		if dm.match != "" && !strings.Contains(strings.ToLower(name), dm.match) {
			continue
		}
		found = name
		break
	}

	if found == dm.current {
		return
	}

	if dm.current != "" {
		dm.usb.Detach()
		dm.current = ""
	}

	if found != "" {
		outName := ""
		for _, op := range outPorts {
			if op.String() == found {
				outName = found
				break
			}
		}
		port, err := OpenDriverEndpoint(found, outName)
		if err != nil {
			return
		}
		vendorID, productID := parseUsbIDs(found)
		dm.usb.Attach(port, vendorID, productID)
		dm.current = found
	}
}

// parseUsbIDs extracts "vvvv:pppp" hex IDs when the platform embeds them in
// the port name. Ports without IDs report zeros.
func parseUsbIDs(name string) (uint16, uint16) {
	for _, field := range strings.Fields(name) {
		parts := strings.Split(field, ":")
		if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 4 {
			continue
		}
		vendor, err1 := strconv.ParseUint(parts[0], 16, 16)
		product, err2 := strconv.ParseUint(parts[1], 16, 16)
		if err1 == nil && err2 == nil {
			return uint16(vendor), uint16(product)
		}
	}
	return 0, 0
}

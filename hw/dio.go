package hw

import "sync"

// DigitalInput is one input line. Edge sources call Set; the registered
// handler runs synchronously on the caller's goroutine (interrupt context),
// so it must only enqueue or flip atomic flags.
type DigitalInput struct {
	mu      sync.Mutex
	value   bool
	handler func(value bool)
}

// Set drives the line level, invoking the handler on every change
func (d *DigitalInput) Set(value bool) {
	d.mu.Lock()
	changed := d.value != value
	d.value = value
	handler := d.handler
	d.mu.Unlock()

	if changed && handler != nil {
		handler(value)
	}
}

// Get returns the current line level
func (d *DigitalInput) Get() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

// SetHandler registers the edge callback
func (d *DigitalInput) SetHandler(handler func(value bool)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = handler
}

// DigitalOutput is one output line
type DigitalOutput struct {
	mu    sync.Mutex
	value bool
}

// Set drives the line level
func (d *DigitalOutput) Set(value bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.value = value
}

// Get returns the current line level
func (d *DigitalOutput) Get() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

// Dio bundles the clock/reset jacks on the panel
type Dio struct {
	ClockInput  DigitalInput
	ResetInput  DigitalInput
	ClockOutput DigitalOutput
	ResetOutput DigitalOutput
}

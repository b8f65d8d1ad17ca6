package midi

import "sync"

// UsbEndpoint is the USB MIDI transport. The underlying port comes and goes
// with hot-plug; while detached, sends fail and receives report nothing.
// Attach/detach is driven by the DeviceManager.
type UsbEndpoint struct {
	mu     sync.RWMutex
	port   *DriverEndpoint
	filter func(byte) bool

	connectHandler    func(vendorID, productID uint16)
	disconnectHandler func()
}

// NewUsbEndpoint creates a detached USB endpoint
func NewUsbEndpoint() *UsbEndpoint {
	return &UsbEndpoint{}
}

// Send forwards to the attached port, false while detached
func (u *UsbEndpoint) Send(msg Message) bool {
	u.mu.RLock()
	port := u.port
	u.mu.RUnlock()
	if port == nil {
		return false
	}
	return port.Send(msg)
}

// Recv forwards to the attached port, false while detached
func (u *UsbEndpoint) Recv(msg *Message) bool {
	u.mu.RLock()
	port := u.port
	u.mu.RUnlock()
	if port == nil {
		return false
	}
	return port.Recv(msg)
}

// SetRecvFilter installs the byte-level filter, surviving reattachment
func (u *UsbEndpoint) SetRecvFilter(filter func(data byte) bool) {
	u.mu.Lock()
	u.filter = filter
	port := u.port
	u.mu.Unlock()
	if port != nil {
		port.SetRecvFilter(filter)
	}
}

// SetConnectHandler registers the hot-plug connect callback
func (u *UsbEndpoint) SetConnectHandler(handler func(vendorID, productID uint16)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.connectHandler = handler
}

// SetDisconnectHandler registers the hot-plug disconnect callback
func (u *UsbEndpoint) SetDisconnectHandler(handler func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.disconnectHandler = handler
}

// Attach binds a freshly opened port and fires the connect handler
func (u *UsbEndpoint) Attach(port *DriverEndpoint, vendorID, productID uint16) {
	u.mu.Lock()
	old := u.port
	u.port = port
	if u.filter != nil {
		port.SetRecvFilter(u.filter)
	}
	handler := u.connectHandler
	u.mu.Unlock()

	if old != nil {
		old.Close()
	}
	if handler != nil {
		handler(vendorID, productID)
	}
}

// Detach drops the current port and fires the disconnect handler
func (u *UsbEndpoint) Detach() {
	u.mu.Lock()
	old := u.port
	u.port = nil
	handler := u.disconnectHandler
	u.mu.Unlock()

	if old != nil {
		old.Close()
	}
	if handler != nil {
		handler()
	}
}

// Connected reports whether a port is attached
func (u *UsbEndpoint) Connected() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.port != nil
}

package sequencer

import (
	"sync/atomic"
	"time"

	"go-performer/debug"
	"go-performer/hw"
	"go-performer/midi"
)

// MessageHandler receives short status messages for display
type MessageHandler func(message string)

// MidiHandler receives raw incoming MIDI messages
type MidiHandler func(port midi.Port, msg midi.Message)

// Engine drives the whole sequencer. One goroutine calls Update in a loop;
// the clock and MIDI drivers feed it through queues, so everything musical
// happens on that single goroutine.
type Engine struct {
	project *Project

	dio        *hw.Dio
	gateOutput *hw.GateOutput
	cvInput    *hw.CvInput
	cvOutput   *hw.CvOutput
	dinMidi    midi.Endpoint
	usbMidi    midi.Endpoint

	clock         *Clock
	routingEngine *RoutingEngine
	trackEngines  [TrackCount]TrackEngine

	tick    uint32
	running bool

	requestLock   atomic.Bool
	requestUnlock atomic.Bool
	locked        atomic.Bool

	gateOutputOverride      bool
	gateOutputOverrideValue uint32
	cvOutputOverride        bool
	cvOutputOverrideValues  [CvOutputChannels]float64

	nudgeTempo NudgeTempo
	tapTempo   *TapTempo

	messageHandler     MessageHandler
	midiReceiveHandler MidiHandler
	midiLearnHandler   MidiHandler

	lastClockOutput ClockOutputState

	lastUpdate time.Time
	now        func() time.Time
}

// NewEngine wires the engine to its peripherals. Call Init before Update.
func NewEngine(project *Project, dio *hw.Dio, gateOutput *hw.GateOutput,
	cvInput *hw.CvInput, cvOutput *hw.CvOutput,
	dinMidi, usbMidi midi.Endpoint, timer hw.ClockTimer) *Engine {

	e := &Engine{
		project:    project,
		dio:        dio,
		gateOutput: gateOutput,
		cvInput:    cvInput,
		cvOutput:   cvOutput,
		dinMidi:    dinMidi,
		usbMidi:    usbMidi,
		now:        time.Now,
	}
	e.clock = NewClock(timer)
	e.routingEngine = NewRoutingEngine(project, cvInput)
	e.tapTempo = NewTapTempo(project.BPM)
	return e
}

// Init prepares outputs, installs the clock wiring and creates the track
// engines
func (e *Engine) Init() {
	e.cvOutput.Init()
	e.cvInput.Init()
	e.gateOutput.SetGates(0)

	e.clock.SetListener(e)
	e.initClock()
	e.updateTrackSetups()

	e.lastUpdate = e.now()
	debug.Log("engine", "initialized")
}

// initClock installs the jack and MIDI hooks feeding the clock. The
// handlers run on driver goroutines and only forward into the clock's
// queues.
func (e *Engine) initClock() {
	e.dio.ClockInput.SetHandler(func(value bool) {
		// in reset mode a pulse train with the reset jack low implies start
		if e.project.ClockSetup.ClockInputMode == ClockInputReset &&
			!e.clock.IsRunning() && !e.dio.ResetInput.Get() {
			e.clock.SlaveStart(ClockSourceExternal)
		}
		if value {
			e.clock.SlaveTick(ClockSourceExternal)
		}
	})

	e.dio.ResetInput.SetHandler(func(value bool) {
		switch e.project.ClockSetup.ClockInputMode {
		case ClockInputReset:
			if value {
				e.clock.SlaveReset(ClockSourceExternal)
			} else {
				e.clock.SlaveStart(ClockSourceExternal)
			}
		case ClockInputRun:
			if value {
				e.clock.SlaveContinue(ClockSourceExternal)
			} else {
				e.clock.SlaveStop(ClockSourceExternal)
			}
		case ClockInputStartStop:
			if value {
				e.clock.SlaveStart(ClockSourceExternal)
			} else {
				e.clock.SlaveStop(ClockSourceExternal)
				e.clock.SlaveReset(ClockSourceExternal)
			}
		}
	})

	e.dinMidi.SetRecvFilter(func(data byte) bool {
		if midi.IsClockMessage(data) {
			e.clock.SlaveHandleMidi(ClockSourceMidi, data)
			return true
		}
		return false
	})
	e.usbMidi.SetRecvFilter(func(data byte) bool {
		if midi.IsClockMessage(data) {
			e.clock.SlaveHandleMidi(ClockSourceUsbMidi, data)
			return true
		}
		return false
	})
}

// OnClockOutput drives the clock and reset jacks. Runs with the clock lock
// held; only touches the output lines.
func (e *Engine) OnClockOutput(state ClockOutputState) {
	e.dio.ClockOutput.Set(state.Clock)
	switch e.project.ClockSetup.ClockOutputMode {
	case ClockOutputReset:
		e.dio.ResetOutput.Set(state.Reset)
	case ClockOutputRun:
		e.dio.ResetOutput.Set(state.Run)
	case ClockOutputLast:
		if state.Reset != e.lastClockOutput.Reset {
			e.dio.ResetOutput.Set(state.Reset)
		} else if state.Run != e.lastClockOutput.Run {
			e.dio.ResetOutput.Set(state.Run)
		}
	}
	e.lastClockOutput = state
}

// OnClockMidi forwards generated clock bytes to the enabled MIDI outputs
func (e *Engine) OnClockMidi(msg byte) {
	if e.project.ClockSetup.MidiTx {
		e.dinMidi.Send(midi.Realtime(msg))
	}
	if e.project.ClockSetup.UsbTx {
		e.usbMidi.Send(midi.Realtime(msg))
	}
}

// Update runs one engine cycle. Call it continuously from a single
// goroutine.
func (e *Engine) Update() {
	now := e.now()
	dt := now.Sub(e.lastUpdate).Seconds()
	e.lastUpdate = now

	if e.requestLock.Load() {
		e.requestLock.Store(false)
		e.locked.Store(true)
	}
	if e.requestUnlock.Load() {
		e.requestUnlock.Store(false)
		e.locked.Store(false)
	}

	if e.locked.Load() {
		// keep the queues drained and the DAC refreshed, nothing else
		var tick uint32
		for e.clock.CheckTick(&tick) {
		}
		var msg midi.Message
		for e.dinMidi.Recv(&msg) {
		}
		for e.usbMidi.Recv(&msg) {
		}
		e.updateOverrides()
		e.cvOutput.Update()
		return
	}

	var event ClockEvent
	for e.clock.CheckEvent(&event) {
		switch event {
		case ClockEventStart:
			debug.Log("engine", "clock start")
			e.running = true
			e.resetTrackEngines()
		case ClockEventStop:
			debug.Log("engine", "clock stop")
			e.running = false
		case ClockEventContinue:
			debug.Log("engine", "clock continue")
			e.running = true
		case ClockEventReset:
			debug.Log("engine", "clock reset")
			e.running = false
			e.tick = 0
			e.resetTrackEngines()
		}
	}

	e.receiveMidi()

	e.nudgeTempo.Update(dt)
	e.clock.SetMasterBpm(e.project.BPM + e.nudgeTempo.Strength()*10)

	e.updateClockSetup()
	e.updateTrackSetups()
	e.updatePlayState(false)

	e.cvInput.Update()
	e.routingEngine.Update()

	updatedOutputs := false
	var tick uint32
	for e.clock.CheckTick(&tick) {
		e.tick = tick
		e.updatePlayState(true)
		for _, te := range e.trackEngines {
			te.Tick(tick)
		}
		e.updateTrackOutputs()
		updatedOutputs = true
	}
	if !updatedOutputs {
		e.updateTrackOutputs()
	}

	for _, te := range e.trackEngines {
		te.Update(dt)
	}

	e.updateOverrides()
	e.cvOutput.Update()
}

func (e *Engine) resetTrackEngines() {
	for _, te := range e.trackEngines {
		if te != nil {
			te.Reset()
		}
	}
}

func (e *Engine) receiveMidi() {
	e.receiveMidiPort(midi.PortDin, e.dinMidi)
	e.receiveMidiPort(midi.PortUsb, e.usbMidi)
}

func (e *Engine) receiveMidiPort(port midi.Port, endpoint midi.Endpoint) {
	var msg midi.Message
	for endpoint.Recv(&msg) {
		if e.midiLearnHandler != nil {
			e.midiLearnHandler(port, msg)
			continue
		}
		if !msg.IsChannelMessage() {
			continue
		}
		channel := msg.Channel()
		e.routingEngine.ReceiveMidi(port, channel, msg)
		if e.midiReceiveHandler != nil {
			e.midiReceiveHandler(port, msg)
		}
		for _, te := range e.trackEngines {
			te.ReceiveMidi(port, channel, msg)
		}
	}
}

// updateClockSetup pushes a dirty clock configuration into the clock and
// re-aligns the run state with the reset input jack level
func (e *Engine) updateClockSetup() {
	cs := &e.project.ClockSetup
	if !cs.Dirty {
		return
	}

	e.clock.SetMode(cs.Mode)
	e.clock.SlaveConfigure(ClockSourceExternal, cs.ClockInputDivisor, true)
	e.clock.SlaveConfigure(ClockSourceMidi, PPQN/24, cs.MidiRx)
	e.clock.SlaveConfigure(ClockSourceUsbMidi, PPQN/24, cs.UsbRx)
	e.clock.OutputConfigure(cs.ClockOutputDivisor, cs.ClockOutputPulse)

	resetInput := e.dio.ResetInput.Get()
	running := e.clock.IsRunning()
	switch cs.ClockInputMode {
	case ClockInputReset:
		if resetInput && running {
			e.clock.SlaveReset(ClockSourceExternal)
		} else if !resetInput && !running {
			e.clock.SlaveStart(ClockSourceExternal)
		}
	case ClockInputRun:
		if resetInput && !running {
			e.clock.SlaveContinue(ClockSourceExternal)
		} else if !resetInput && running {
			e.clock.SlaveStop(ClockSourceExternal)
		}
	case ClockInputStartStop:
		if resetInput && !running {
			e.clock.SlaveStart(ClockSourceExternal)
		} else if !resetInput && running {
			e.clock.SlaveReset(ClockSourceExternal)
		}
	}

	e.OnClockOutput(e.clock.OutputState())
	cs.Dirty = false
	debug.Log("engine", "clock setup applied")
}

// updateTrackSetups recreates track engines whose mode changed and keeps
// live parameters in sync
func (e *Engine) updateTrackSetups() {
	for i := 0; i < TrackCount; i++ {
		track := e.project.Tracks[i]
		if e.trackEngines[i] == nil || e.trackEngines[i].TrackMode() != track.Mode {
			var linked TrackEngine
			if track.LinkTrack >= 0 && track.LinkTrack < i {
				linked = e.trackEngines[track.LinkTrack]
			}
			te := NewTrackEngine(track, linked)
			ts := &e.project.PlayState.TrackStates[i]
			te.SetMute(ts.Mute)
			te.SetFill(ts.Fill)
			te.SetPattern(ts.Pattern)
			e.trackEngines[i] = te
			debug.Log("engine", "track %d engine %s", i, track.Mode)
		}
		e.trackEngines[i].SetSwing(e.project.Swing)
	}
}

// updatePlayState commits pending requests. Immediate requests commit on
// any cycle; synced and armed latched requests wait for a sync point, or
// commit right away while the clock is stopped.
func (e *Engine) updatePlayState(ticked bool) {
	ps := &e.project.PlayState
	md := e.project.MeasureDivisor()
	relTick := e.tick % md

	atSyncPoint := relTick == 0 || relTick == md-1
	clockRunning := e.clock.IsRunning()

	handleImmediate := ps.hasImmediateRequests
	handleSynced := ps.hasSyncedRequests && (atSyncPoint || !clockRunning)
	handleLatched := ps.executeLatchedRequests && (atSyncPoint || !clockRunning)
	switchToNextSlot := ticked && relTick == md-1 &&
		ps.SongState.Playing && e.project.Song.SlotCount() > 0

	if !(handleImmediate || handleSynced || handleLatched || switchToNextSlot) {
		return
	}

	var muteMask, patternMask uint8
	var songPlayMask, songStopMask uint8
	if handleImmediate {
		muteMask |= trackRequestImmediateMute
		patternMask |= trackRequestImmediatePattern
		songPlayMask |= songRequestImmediatePlay
		songStopMask |= songRequestImmediateStop
	}
	if handleSynced {
		muteMask |= trackRequestSyncedMute
		patternMask |= trackRequestSyncedPattern
		songPlayMask |= songRequestSyncedPlay
		songStopMask |= songRequestSyncedStop
	}
	if handleLatched {
		muteMask |= trackRequestLatchedMute
		patternMask |= trackRequestLatchedPattern
		songPlayMask |= songRequestLatchedPlay
		songStopMask |= songRequestLatchedStop
	}

	for i := 0; i < TrackCount; i++ {
		ts := &ps.TrackStates[i]
		te := e.trackEngines[i]
		if ts.hasRequests(muteMask) {
			ts.Mute = ts.RequestedMute
			te.SetMute(ts.Mute)
		}
		if ts.hasRequests(patternMask) {
			ts.Pattern = ts.RequestedPattern
			te.SetPattern(ts.Pattern)
		}
		te.SetFill(ts.Fill)
	}

	ss := &ps.SongState
	if ss.hasRequests(songStopMask) {
		ss.Playing = false
	}
	if ss.hasRequests(songPlayMask) && e.project.Song.SlotCount() > 0 {
		slot := ss.RequestedSlot
		if slot < 0 {
			slot = 0
		}
		if slot >= e.project.Song.SlotCount() {
			slot = e.project.Song.SlotCount() - 1
		}
		ss.Playing = true
		ss.CurrentSlot = slot
		ss.CurrentRepeat = 0
		e.applySongSlot(slot)
	} else if switchToNextSlot && ss.Playing {
		ss.CurrentRepeat++
		repeats := e.project.Song.Slot(ss.CurrentSlot).Repeats
		if repeats < 1 {
			repeats = 1
		}
		if ss.CurrentRepeat >= repeats {
			ss.CurrentRepeat = 0
			ss.CurrentSlot++
			if ss.CurrentSlot >= e.project.Song.SlotCount() {
				ss.CurrentSlot = 0
			}
		}
		// patterns reapply and engines restart on every measure
		// boundary, including repeats of the same slot
		e.applySongSlot(ss.CurrentSlot)
	}

	if handleImmediate {
		ps.clearImmediateRequests()
	}
	if handleSynced {
		ps.clearSyncedRequests()
	}
	if handleLatched {
		ps.clearLatchedRequests()
	}
}

// applySongSlot switches every track to the slot's pattern and restarts
// the track engines
func (e *Engine) applySongSlot(slot int) {
	s := e.project.Song.Slot(slot)
	ps := &e.project.PlayState
	for i := 0; i < TrackCount; i++ {
		ps.TrackStates[i].Pattern = s.Patterns[i]
		e.trackEngines[i].SetPattern(s.Patterns[i])
		e.trackEngines[i].Reset()
	}
}

// updateTrackOutputs routes the track engine outputs to the physical
// channels. Multiple outputs assigned to the same track receive successive
// lines of that track. While the clock is idle, tracks with a pending
// preview drive the outputs instead.
func (e *Engine) updateTrackOutputs() {
	selected := e.project.SelectedTrackIndex
	for i, te := range e.trackEngines {
		if i != selected {
			te.ClearIdleOutput()
		}
	}

	idle := e.clock.IsIdle()

	var gateCursor, cvCursor [TrackCount]int
	for o := 0; o < GateOutputChannels; o++ {
		source := e.project.GateOutputTracks[o]
		if source < 0 || source >= TrackCount {
			continue
		}
		te := e.trackEngines[source]
		index := gateCursor[source]
		gateCursor[source]++
		value := te.GateOutput(index)
		if idle && te.IdleOutput() {
			value = te.IdleGateOutput(index)
		}
		if !e.gateOutputOverride {
			e.gateOutput.SetGate(o, value)
		}
	}
	for o := 0; o < CvOutputChannels; o++ {
		source := e.project.CvOutputTracks[o]
		if source < 0 || source >= TrackCount {
			continue
		}
		te := e.trackEngines[source]
		index := cvCursor[source]
		cvCursor[source]++
		volts := te.CvOutput(index)
		if idle && te.IdleOutput() {
			volts = te.IdleCvOutput(index)
		}
		if !e.cvOutputOverride {
			e.cvOutput.SetChannel(o, volts)
		}
	}
}

func (e *Engine) updateOverrides() {
	if e.gateOutputOverride {
		e.gateOutput.SetGates(e.gateOutputOverrideValue)
	}
	if e.cvOutputOverride {
		for ch, volts := range e.cvOutputOverrideValues {
			e.cvOutput.SetChannel(ch, volts)
		}
	}
}

// Lock suspends musical processing at the next update boundary and blocks
// until it takes effect. While locked the engine keeps its queues drained
// and the outputs refreshed.
func (e *Engine) Lock() {
	e.requestLock.Store(true)
	for !e.locked.Load() {
		time.Sleep(time.Millisecond)
	}
}

// Unlock requests resuming musical processing
func (e *Engine) Unlock() {
	e.requestUnlock.Store(true)
}

// IsLocked reports whether the engine is locked
func (e *Engine) IsLocked() bool {
	return e.locked.Load()
}

// ClockStart starts the master clock
func (e *Engine) ClockStart() { e.clock.MasterStart() }

// ClockStop stops the master clock
func (e *Engine) ClockStop() { e.clock.MasterStop() }

// ClockContinue resumes the master clock without rewinding
func (e *Engine) ClockContinue() { e.clock.MasterContinue() }

// ClockReset stops the master clock and rewinds to zero
func (e *Engine) ClockReset() { e.clock.MasterReset() }

// ClockRunning reports whether the clock generates ticks
func (e *Engine) ClockRunning() bool { return e.clock.IsRunning() }

// TapTempoReset seeds the tap detector with the project tempo
func (e *Engine) TapTempoReset() {
	e.tapTempo.Reset(e.project.BPM)
}

// TapTempoTap records one tap and applies the resulting tempo
func (e *Engine) TapTempoTap() {
	e.project.BPM = e.tapTempo.Tap()
}

// NudgeTempoSetDirection sets the momentary tempo nudge, -1, 0 or +1
func (e *Engine) NudgeTempoSetDirection(direction int) {
	e.nudgeTempo.SetDirection(direction)
}

// NudgeTempoStrength returns the current nudge amount
func (e *Engine) NudgeTempoStrength() float64 {
	return e.nudgeTempo.Strength()
}

// SyncMeasureFraction returns the position inside the current sync measure
// as a 0-1 fraction
func (e *Engine) SyncMeasureFraction() float64 {
	md := e.project.MeasureDivisor()
	return float64(e.tick%md) / float64(md)
}

// SendMidi transmits one message on the given port
func (e *Engine) SendMidi(port midi.Port, msg midi.Message) bool {
	switch port {
	case midi.PortDin:
		return e.dinMidi.Send(msg)
	case midi.PortUsb:
		return e.usbMidi.Send(msg)
	}
	return false
}

// ShowMessage forwards a status message to the registered handler
func (e *Engine) ShowMessage(message string) {
	if e.messageHandler != nil {
		e.messageHandler(message)
	}
}

// SetMessageHandler registers the status message sink
func (e *Engine) SetMessageHandler(handler MessageHandler) {
	e.messageHandler = handler
}

// SetMidiReceiveHandler registers a tap on incoming channel messages
func (e *Engine) SetMidiReceiveHandler(handler MidiHandler) {
	e.midiReceiveHandler = handler
}

// SetMidiLearnHandler diverts all incoming messages to the given handler.
// Pass nil to resume normal processing.
func (e *Engine) SetMidiLearnHandler(handler MidiHandler) {
	e.midiLearnHandler = handler
}

// SetUsbMidiConnectHandler registers the USB attach callback
func (e *Engine) SetUsbMidiConnectHandler(handler func(vendorID, productID uint16)) {
	if u, ok := e.usbMidi.(*midi.UsbEndpoint); ok {
		u.SetConnectHandler(handler)
	}
}

// SetUsbMidiDisconnectHandler registers the USB detach callback
func (e *Engine) SetUsbMidiDisconnectHandler(handler func()) {
	if u, ok := e.usbMidi.(*midi.UsbEndpoint); ok {
		u.SetDisconnectHandler(handler)
	}
}

// SetGateOutputOverride enables or disables direct gate control
func (e *Engine) SetGateOutputOverride(enabled bool) {
	e.gateOutputOverride = enabled
}

// SetGateOutputOverrideValue sets the gate mask used while overridden
func (e *Engine) SetGateOutputOverrideValue(mask uint32) {
	e.gateOutputOverrideValue = mask
}

// SetCvOutputOverride enables or disables direct CV control
func (e *Engine) SetCvOutputOverride(enabled bool) {
	e.cvOutputOverride = enabled
}

// SetCvOutputOverrideValue sets one CV channel used while overridden
func (e *Engine) SetCvOutputOverrideValue(channel int, volts float64) {
	if channel < 0 || channel >= CvOutputChannels {
		return
	}
	e.cvOutputOverrideValues[channel] = volts
}

// TrackEngine returns the running engine of one track
func (e *Engine) TrackEngine(index int) TrackEngine {
	if index < 0 || index >= TrackCount {
		return nil
	}
	return e.trackEngines[index]
}

// Clock exposes the clock, mainly for transport queries
func (e *Engine) Clock() *Clock { return e.clock }

// Tick returns the last processed tick
func (e *Engine) Tick() uint32 { return e.tick }

// Running reports whether the transport is running
func (e *Engine) Running() bool { return e.running }

package sequencer

import (
	"sync"
	"time"

	"go-performer/debug"
	"go-performer/hw"
	"go-performer/midi"
)

// ClockSource identifies one external clock provider
type ClockSource int

const (
	ClockSourceExternal ClockSource = iota
	ClockSourceMidi
	ClockSourceUsbMidi

	clockSourceCount
)

const noActiveSource = -1

// ClockEvent is a transport event emitted by the clock
type ClockEvent int

const (
	ClockEventStart ClockEvent = iota
	ClockEventStop
	ClockEventContinue
	ClockEventReset
)

// ClockOutputState mirrors the clock output jacks
type ClockOutputState struct {
	Clock bool
	Reset bool
	Run   bool
}

// ClockListener receives output jack changes and outgoing MIDI clock bytes.
// Callbacks run with the clock lock held and must not call back into the
// clock.
type ClockListener interface {
	OnClockOutput(state ClockOutputState)
	OnClockMidi(msg byte)
}

const (
	tickQueueSize  = 256
	eventQueueSize = 16

	// a stopped clock counts as idle after this much silence
	idleTimeout = 500 * time.Millisecond
)

type slaveConfig struct {
	divisor int
	enabled bool
}

// Clock generates the master tick stream. It runs either from its own timer
// (master) or from external pulses expanded by the slave divisor. The first
// slave source to tick claims the clock until its reset releases it; an
// explicit start or continue takes the claim over. The internal master always
// preempts slaves.
type Clock struct {
	mu       sync.Mutex
	timer    hw.ClockTimer
	listener ClockListener

	mode         ClockSetupMode
	masterBpm    float64
	running      bool
	masterActive bool
	activeSource int
	tick         uint32
	slaves       [clockSourceCount]slaveConfig

	outputDivisor  int
	outputPulse    int
	outputPulseEnd uint32
	outputState    ClockOutputState

	ticks  chan uint32
	events chan ClockEvent

	lastTickAt time.Time
	now        func() time.Time
}

// NewClock creates a stopped clock over the given timer
func NewClock(timer hw.ClockTimer) *Clock {
	c := &Clock{
		timer:         timer,
		mode:          ClockSetupAuto,
		masterBpm:     120,
		activeSource:  noActiveSource,
		outputDivisor: PPQN / 4,
		outputPulse:   1,
		ticks:         make(chan uint32, tickQueueSize),
		events:        make(chan ClockEvent, eventQueueSize),
		now:           time.Now,
	}
	c.outputState.Reset = true
	timer.SetHandler(c.onTimerTick)
	timer.SetPeriod(c.masterPeriod())
	return c
}

// SetListener registers the output listener
func (c *Clock) SetListener(listener ClockListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = listener
}

// SetMode sets the arbitration mode
func (c *Clock) SetMode(mode ClockSetupMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
}

// Mode returns the arbitration mode
func (c *Clock) Mode() ClockSetupMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Clock) masterPeriod() time.Duration {
	return time.Duration(float64(time.Minute) / (c.masterBpm * PPQN))
}

// SetMasterBpm changes the master tempo, effective immediately
func (c *Clock) SetMasterBpm(bpm float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if bpm <= 0 {
		return
	}
	c.masterBpm = bpm
	c.timer.SetPeriod(c.masterPeriod())
}

// Bpm returns the master tempo
func (c *Clock) Bpm() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.masterBpm
}

// Tick returns the current tick position
func (c *Clock) Tick() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick
}

// IsRunning reports whether ticks are being generated
func (c *Clock) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// IsIdle reports whether the internal master is stopped and no tick arrived
// recently
func (c *Clock) IsIdle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running && c.masterActive {
		return false
	}
	return c.now().Sub(c.lastTickAt) > idleTimeout
}

// OutputState returns the current output jack state
func (c *Clock) OutputState() ClockOutputState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outputState
}

// OutputConfigure sets the clock output divider and pulse width in ticks
func (c *Clock) OutputConfigure(divisor, pulse int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if divisor < 1 {
		divisor = 1
	}
	if pulse < 1 {
		pulse = 1
	}
	c.outputDivisor = divisor
	c.outputPulse = pulse
}

// MasterStart starts the internal clock from tick zero
func (c *Clock) MasterStart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == ClockSetupSlave {
		return
	}
	debug.Log("clock", "master start")
	c.masterActive = true
	c.running = true
	c.tick = 0
	c.putEvent(ClockEventStart)
	c.sendMidiClock(midi.StatusStart)
	c.setRunState(true)
	c.timer.SetPeriod(c.masterPeriod())
	c.timer.Start()
}

// MasterStop stops the internal clock
func (c *Clock) MasterStop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == ClockSetupSlave {
		return
	}
	debug.Log("clock", "master stop")
	c.masterActive = false
	c.running = false
	c.putEvent(ClockEventStop)
	c.sendMidiClock(midi.StatusStop)
	c.setRunState(false)
	c.timer.Stop()
}

// MasterContinue resumes the internal clock without resetting the position
func (c *Clock) MasterContinue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == ClockSetupSlave {
		return
	}
	debug.Log("clock", "master continue")
	c.masterActive = true
	c.running = true
	c.putEvent(ClockEventContinue)
	c.sendMidiClock(midi.StatusContinue)
	c.setRunState(true)
	c.timer.SetPeriod(c.masterPeriod())
	c.timer.Start()
}

// MasterReset stops the internal clock and rewinds to tick zero
func (c *Clock) MasterReset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == ClockSetupSlave {
		return
	}
	debug.Log("clock", "master reset")
	c.masterActive = false
	c.running = false
	c.tick = 0
	c.putEvent(ClockEventReset)
	c.sendMidiClock(midi.StatusStop)
	c.setRunState(false)
	c.timer.Stop()
}

func (c *Clock) onTimerTick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || !c.masterActive {
		return
	}
	c.advanceTick()
}

// SlaveConfigure sets the divisor and enable flag of one slave source
func (c *Clock) SlaveConfigure(source ClockSource, divisor int, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if source < 0 || source >= clockSourceCount {
		return
	}
	if divisor < 1 {
		divisor = 1
	}
	c.slaves[source] = slaveConfig{divisor: divisor, enabled: enabled}
}

func (c *Clock) slaveAccepted(source ClockSource) bool {
	if source < 0 || source >= clockSourceCount {
		return false
	}
	if !c.slaves[source].enabled {
		return false
	}
	if c.mode == ClockSetupMaster {
		return false
	}
	if c.masterActive {
		return false
	}
	if c.activeSource != noActiveSource && c.activeSource != int(source) {
		return false
	}
	return true
}

// slaveUsable ignores the current claim; start and continue take it over
func (c *Clock) slaveUsable(source ClockSource) bool {
	if source < 0 || source >= clockSourceCount {
		return false
	}
	if !c.slaves[source].enabled {
		return false
	}
	if c.mode == ClockSetupMaster || c.masterActive {
		return false
	}
	return true
}

// SlaveStart handles an external start. The source claims the clock.
func (c *Clock) SlaveStart(source ClockSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.slaveUsable(source) {
		return
	}
	debug.Log("clock", "slave start source=%d", source)
	c.activeSource = int(source)
	c.running = true
	c.tick = 0
	c.putEvent(ClockEventStart)
	c.setRunState(true)
}

// SlaveStop handles an external stop
func (c *Clock) SlaveStop(source ClockSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.slaveAccepted(source) {
		return
	}
	debug.Log("clock", "slave stop source=%d", source)
	c.running = false
	c.putEvent(ClockEventStop)
	c.setRunState(false)
}

// SlaveContinue handles an external continue
func (c *Clock) SlaveContinue(source ClockSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.slaveUsable(source) {
		return
	}
	debug.Log("clock", "slave continue source=%d", source)
	c.activeSource = int(source)
	c.running = true
	c.putEvent(ClockEventContinue)
	c.setRunState(true)
}

// SlaveReset handles an external reset. The source releases the clock.
func (c *Clock) SlaveReset(source ClockSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if source < 0 || source >= clockSourceCount || !c.slaves[source].enabled {
		return
	}
	if c.mode == ClockSetupMaster || c.masterActive {
		return
	}
	if c.activeSource != noActiveSource && c.activeSource != int(source) {
		return
	}
	debug.Log("clock", "slave reset source=%d", source)
	c.activeSource = noActiveSource
	c.running = false
	c.tick = 0
	c.putEvent(ClockEventReset)
	c.setRunState(false)
}

// SlaveTick handles one external pulse, advancing by the slave divisor
func (c *Clock) SlaveTick(source ClockSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.slaveAccepted(source) {
		return
	}
	if c.activeSource == noActiveSource {
		c.activeSource = int(source)
	}
	if !c.running {
		return
	}
	for i := 0; i < c.slaves[source].divisor; i++ {
		c.advanceTick()
	}
}

// SlaveHandleMidi feeds a realtime MIDI byte from one slave source
func (c *Clock) SlaveHandleMidi(source ClockSource, msg byte) {
	switch msg {
	case midi.StatusTimingClock:
		c.SlaveTick(source)
	case midi.StatusStart:
		c.SlaveStart(source)
	case midi.StatusContinue:
		c.SlaveContinue(source)
	case midi.StatusStop:
		c.SlaveStop(source)
	}
}

// advanceTick must run with the lock held
func (c *Clock) advanceTick() {
	tick := c.tick
	c.tick++
	c.lastTickAt = c.now()

	// keep going when the consumer falls behind, dropping the oldest tick
	select {
	case c.ticks <- tick:
	default:
		select {
		case <-c.ticks:
		default:
		}
		select {
		case c.ticks <- tick:
		default:
		}
	}

	c.outputTick(tick)
	if tick%(PPQN/24) == 0 {
		c.sendMidiClock(midi.StatusTimingClock)
	}
}

func (c *Clock) outputTick(tick uint32) {
	if c.outputDivisor > 0 && tick%uint32(c.outputDivisor) == 0 {
		c.outputState.Clock = true
		c.outputPulseEnd = tick + uint32(c.outputPulse)
		c.notifyOutput()
	} else if c.outputState.Clock && tick >= c.outputPulseEnd {
		c.outputState.Clock = false
		c.notifyOutput()
	}
}

func (c *Clock) setRunState(running bool) {
	c.outputState.Run = running
	c.outputState.Reset = !running
	if !running {
		c.outputState.Clock = false
	}
	c.notifyOutput()
}

func (c *Clock) notifyOutput() {
	if c.listener != nil {
		c.listener.OnClockOutput(c.outputState)
	}
}

func (c *Clock) sendMidiClock(msg byte) {
	if c.listener != nil {
		c.listener.OnClockMidi(msg)
	}
}

func (c *Clock) putEvent(event ClockEvent) {
	select {
	case c.events <- event:
	default:
	}
}

// CheckTick pops one pending tick without blocking
func (c *Clock) CheckTick(tick *uint32) bool {
	select {
	case t := <-c.ticks:
		*tick = t
		return true
	default:
		return false
	}
}

// CheckEvent pops one pending transport event without blocking
func (c *Clock) CheckEvent(event *ClockEvent) bool {
	select {
	case e := <-c.events:
		*event = e
		return true
	default:
		return false
	}
}

package sequencer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"go-performer/midi"
)

// manualTimer fires only when the test says so
type manualTimer struct {
	mu      sync.Mutex
	period  time.Duration
	handler func()
	running bool
}

func (t *manualTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = true
}

func (t *manualTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
}

func (t *manualTimer) SetPeriod(period time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.period = period
}

func (t *manualTimer) SetHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

func (t *manualTimer) fire(n int) {
	for i := 0; i < n; i++ {
		t.handler()
	}
}

type recordingListener struct {
	mu     sync.Mutex
	states []ClockOutputState
	bytes  []byte
}

func (l *recordingListener) OnClockOutput(state ClockOutputState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, state)
}

func (l *recordingListener) OnClockMidi(msg byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bytes = append(l.bytes, msg)
}

func drainTicks(c *Clock) []uint32 {
	var out []uint32
	var tick uint32
	for c.CheckTick(&tick) {
		out = append(out, tick)
	}
	return out
}

func TestClockMasterTicks(t *testing.T) {
	timer := &manualTimer{}
	c := NewClock(timer)

	c.MasterStart()
	assert.True(t, c.IsRunning())
	assert.True(t, timer.running)

	var event ClockEvent
	assert.True(t, c.CheckEvent(&event))
	assert.Equal(t, ClockEventStart, event)

	timer.fire(10)
	ticks := drainTicks(c)
	assert.Len(t, ticks, 10)
	for i, tick := range ticks {
		assert.Equal(t, uint32(i), tick)
	}

	c.MasterStop()
	assert.False(t, c.IsRunning())
	assert.False(t, timer.running)
	timer.fire(5)
	assert.Empty(t, drainTicks(c))
}

func TestClockMasterBpmPeriod(t *testing.T) {
	timer := &manualTimer{}
	c := NewClock(timer)

	c.SetMasterBpm(120)
	// 120 BPM at 192 PPQN is 2.604 ms per tick
	expected := time.Duration(float64(time.Minute) / (120 * PPQN))
	assert.Equal(t, expected, timer.period)

	c.SetMasterBpm(240)
	assert.Equal(t, expected/2, timer.period)
}

func TestClockSlaveDivisorExpansion(t *testing.T) {
	timer := &manualTimer{}
	c := NewClock(timer)
	c.SlaveConfigure(ClockSourceExternal, 8, true)

	c.SlaveStart(ClockSourceExternal)
	assert.True(t, c.IsRunning())

	// a 24 PPQN pulse at divisor 8 yields one quarter note per 24 pulses
	for i := 0; i < 24; i++ {
		c.SlaveTick(ClockSourceExternal)
	}
	ticks := drainTicks(c)
	assert.Len(t, ticks, 192)
	assert.Equal(t, uint32(0), ticks[0])
	assert.Equal(t, uint32(191), ticks[191])
}

func TestClockSlaveIgnoredWhileMasterActive(t *testing.T) {
	timer := &manualTimer{}
	c := NewClock(timer)
	c.SlaveConfigure(ClockSourceMidi, 8, true)

	c.MasterStart()
	drainTicks(c)

	c.SlaveTick(ClockSourceMidi)
	c.SlaveStart(ClockSourceMidi)
	assert.Empty(t, drainTicks(c))
}

func TestClockSlaveArbitration(t *testing.T) {
	timer := &manualTimer{}
	c := NewClock(timer)
	c.SlaveConfigure(ClockSourceMidi, 8, true)
	c.SlaveConfigure(ClockSourceUsbMidi, 8, true)

	c.SlaveStart(ClockSourceMidi)
	c.SlaveTick(ClockSourceMidi)
	assert.Len(t, drainTicks(c), 8)

	// another source cannot interfere while the first holds the clock
	c.SlaveTick(ClockSourceUsbMidi)
	c.SlaveStop(ClockSourceUsbMidi)
	assert.Empty(t, drainTicks(c))
	assert.True(t, c.IsRunning())

	// reset releases the claim
	c.SlaveReset(ClockSourceMidi)
	var event ClockEvent
	for c.CheckEvent(&event) {
	}
	assert.Equal(t, ClockEventReset, event)

	c.SlaveStart(ClockSourceUsbMidi)
	c.SlaveTick(ClockSourceUsbMidi)
	assert.Len(t, drainTicks(c), 8)
}

func TestClockModeOverridesArbitration(t *testing.T) {
	timer := &manualTimer{}
	c := NewClock(timer)
	c.SlaveConfigure(ClockSourceMidi, 8, true)

	c.SetMode(ClockSetupMaster)
	c.SlaveStart(ClockSourceMidi)
	assert.False(t, c.IsRunning())

	c.SetMode(ClockSetupSlave)
	c.MasterStart()
	assert.False(t, c.IsRunning())

	c.SlaveStart(ClockSourceMidi)
	assert.True(t, c.IsRunning())
}

func TestClockSlaveMidiBytes(t *testing.T) {
	timer := &manualTimer{}
	c := NewClock(timer)
	c.SlaveConfigure(ClockSourceMidi, PPQN/24, true)

	c.SlaveHandleMidi(ClockSourceMidi, midi.StatusStart)
	assert.True(t, c.IsRunning())

	for i := 0; i < 24; i++ {
		c.SlaveHandleMidi(ClockSourceMidi, midi.StatusTimingClock)
	}
	assert.Len(t, drainTicks(c), 192)

	c.SlaveHandleMidi(ClockSourceMidi, midi.StatusStop)
	assert.False(t, c.IsRunning())
}

func TestClockOutputDivider(t *testing.T) {
	timer := &manualTimer{}
	c := NewClock(timer)
	listener := &recordingListener{}
	c.SetListener(listener)
	c.OutputConfigure(96, 1)

	c.MasterStart()
	timer.fire(97)

	highs := 0
	for _, s := range listener.states {
		if s.Clock {
			highs++
		}
	}
	// pulses at tick 0 and tick 96
	assert.Equal(t, 2, highs)
}

func TestClockMidiOutput(t *testing.T) {
	timer := &manualTimer{}
	c := NewClock(timer)
	listener := &recordingListener{}
	c.SetListener(listener)

	c.MasterStart()
	timer.fire(9)

	assert.Equal(t, midi.StatusStart, listener.bytes[0])
	clocks := 0
	for _, b := range listener.bytes {
		if b == midi.StatusTimingClock {
			clocks++
		}
	}
	// 192 PPQN down to 24 PPQN is one byte every 8 ticks
	assert.Equal(t, 2, clocks)
}

func TestClockRunState(t *testing.T) {
	timer := &manualTimer{}
	c := NewClock(timer)

	state := c.OutputState()
	assert.False(t, state.Run)
	assert.True(t, state.Reset)

	c.MasterStart()
	state = c.OutputState()
	assert.True(t, state.Run)
	assert.False(t, state.Reset)

	c.MasterReset()
	state = c.OutputState()
	assert.False(t, state.Run)
	assert.True(t, state.Reset)
	assert.Equal(t, uint32(0), c.Tick())
}

func TestClockIsIdle(t *testing.T) {
	timer := &manualTimer{}
	c := NewClock(timer)

	current := time.Unix(1000, 0)
	c.now = func() time.Time { return current }

	assert.True(t, c.IsIdle())

	c.MasterStart()
	assert.False(t, c.IsIdle())
	timer.fire(1)

	c.MasterStop()
	assert.False(t, c.IsIdle())

	current = current.Add(time.Second)
	assert.True(t, c.IsIdle())
}

package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go-performer/midi"
)

func newNoteTestTrack() *Track {
	track := NewTrack()
	seq := &track.Note.Sequences[0]
	seq.Steps[0].Gate = true
	seq.Steps[0].Note = 60
	seq.Steps[0].GateLength = 50
	return track
}

func TestNoteEngineStepTrigger(t *testing.T) {
	track := newNoteTestTrack()
	e := NewNoteTrackEngine(track, nil)

	e.Tick(0)
	assert.Equal(t, 0, e.CurrentStep())
	assert.True(t, e.GateOutput(0))
	assert.InDelta(t, 0.0, e.CvOutput(0), 1e-9)

	// gate closes after half a step, 24 of 48 ticks
	for tick := uint32(1); tick < 24; tick++ {
		e.Tick(tick)
		assert.True(t, e.GateOutput(0), "tick %d", tick)
	}
	e.Tick(24)
	assert.False(t, e.GateOutput(0))
}

func TestNoteEnginePitchAndVelocity(t *testing.T) {
	track := NewTrack()
	seq := &track.Note.Sequences[0]
	seq.Steps[0].Gate = true
	seq.Steps[0].Note = 72
	seq.Steps[0].Velocity = 127
	e := NewNoteTrackEngine(track, nil)

	e.Tick(0)
	assert.InDelta(t, 1.0, e.CvOutput(0), 1e-9)
	assert.InDelta(t, 5.0, e.CvOutput(1), 1e-9)
}

func TestNoteEngineWrapsAtLength(t *testing.T) {
	track := newNoteTestTrack()
	track.Note.Sequences[0].Length = 4
	e := NewNoteTrackEngine(track, nil)

	// 4 steps of 48 ticks wrap every 192
	e.Tick(192)
	assert.Equal(t, 0, e.CurrentStep())
	e.Tick(192 + 48)
	assert.Equal(t, 1, e.CurrentStep())
}

func TestNoteEngineSwingDelaysOddSteps(t *testing.T) {
	track := newNoteTestTrack()
	seq := &track.Note.Sequences[0]
	seq.Steps[1].Gate = true
	e := NewNoteTrackEngine(track, nil)
	e.SetSwing(75)

	e.Tick(0)
	assert.Equal(t, 0, e.CurrentStep())

	// odd steps shift by divisor * 25 / 100 = 12 ticks
	e.Tick(48)
	assert.Equal(t, 0, e.CurrentStep())
	e.Tick(48 + 12)
	assert.Equal(t, 1, e.CurrentStep())
}

func TestNoteEngineMute(t *testing.T) {
	track := newNoteTestTrack()
	e := NewNoteTrackEngine(track, nil)
	e.SetMute(true)

	e.Tick(0)
	assert.False(t, e.GateOutput(0))
	// CV keeps tracking while muted
	assert.InDelta(t, 0.0, e.CvOutput(0), 1e-9)

	e.SetMute(false)
	assert.True(t, e.GateOutput(0))
}

func TestNoteEngineFill(t *testing.T) {
	track := NewTrack()
	e := NewNoteTrackEngine(track, nil)

	// no gates programmed, nothing triggers
	e.Tick(0)
	assert.False(t, e.GateOutput(0))

	e.SetFill(true)
	e.Tick(48)
	assert.True(t, e.GateOutput(0))
}

func TestNoteEngineReset(t *testing.T) {
	track := newNoteTestTrack()
	e := NewNoteTrackEngine(track, nil)

	e.Tick(0)
	assert.True(t, e.GateOutput(0))

	e.Reset()
	assert.Equal(t, -1, e.CurrentStep())
	assert.False(t, e.GateOutput(0))
}

func TestNoteEngineLinkedPosition(t *testing.T) {
	source := NewTrack()
	source.Note.Sequences[0].Length = 4
	follower := newNoteTestTrack()
	follower.Note.Sequences[0].Length = 16

	se := NewNoteTrackEngine(source, nil)
	fe := NewNoteTrackEngine(follower, se)

	// follower wraps with the source's 4-step loop
	fe.Tick(192)
	assert.Equal(t, 0, fe.CurrentStep())
}

func TestNoteEngineIdlePreview(t *testing.T) {
	track := NewTrack()
	e := NewNoteTrackEngine(track, nil)

	assert.False(t, e.IdleOutput())

	e.ReceiveMidi(midi.PortDin, 0, midi.NoteOn(0, 72, 100))
	assert.True(t, e.IdleOutput())
	assert.True(t, e.IdleGateOutput(0))
	assert.InDelta(t, 1.0, e.IdleCvOutput(0), 1e-9)

	e.ReceiveMidi(midi.PortDin, 0, midi.NoteOff(0, 72))
	assert.True(t, e.IdleOutput())
	assert.False(t, e.IdleGateOutput(0))

	e.ClearIdleOutput()
	assert.False(t, e.IdleOutput())
}

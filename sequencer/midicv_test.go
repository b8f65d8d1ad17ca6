package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go-performer/midi"
)

func newMidiCvTestTrack(voices int) *Track {
	track := NewTrack()
	track.Mode = TrackModeMidiCv
	track.MidiCv.Voices = voices
	return track
}

func TestMidiCvSingleVoice(t *testing.T) {
	e := NewMidiCvTrackEngine(newMidiCvTestTrack(1))

	e.ReceiveMidi(midi.PortDin, 0, midi.NoteOn(0, 72, 127))
	assert.True(t, e.GateOutput(0))
	assert.InDelta(t, 1.0, e.CvOutput(0), 1e-9)
	assert.InDelta(t, 5.0, e.CvOutput(1), 1e-9)

	e.ReceiveMidi(midi.PortDin, 0, midi.NoteOff(0, 72))
	assert.False(t, e.GateOutput(0))
}

func TestMidiCvVoiceStealing(t *testing.T) {
	e := NewMidiCvTrackEngine(newMidiCvTestTrack(2))

	e.ReceiveMidi(midi.PortDin, 0, midi.NoteOn(0, 60, 100))
	e.ReceiveMidi(midi.PortDin, 0, midi.NoteOn(0, 64, 100))
	assert.True(t, e.GateOutput(0))
	assert.True(t, e.GateOutput(1))

	// a third note steals the oldest voice
	e.ReceiveMidi(midi.PortDin, 0, midi.NoteOn(0, 67, 100))
	assert.InDelta(t, noteVolts(67), e.CvOutput(0), 1e-9)
	assert.InDelta(t, noteVolts(64), e.CvOutput(2), 1e-9)
}

func TestMidiCvChannelFilter(t *testing.T) {
	track := newMidiCvTestTrack(1)
	track.MidiCv.Channel = 5
	e := NewMidiCvTrackEngine(track)

	e.ReceiveMidi(midi.PortDin, 0, midi.NoteOn(0, 60, 100))
	assert.False(t, e.GateOutput(0))

	e.ReceiveMidi(midi.PortDin, 5, midi.NoteOn(5, 60, 100))
	assert.True(t, e.GateOutput(0))
}

func TestMidiCvSourceFilter(t *testing.T) {
	track := newMidiCvTestTrack(1)
	track.MidiCv.Source = midi.PortUsb
	e := NewMidiCvTrackEngine(track)

	e.ReceiveMidi(midi.PortDin, 0, midi.NoteOn(0, 60, 100))
	assert.False(t, e.GateOutput(0))

	e.ReceiveMidi(midi.PortUsb, 0, midi.NoteOn(0, 60, 100))
	assert.True(t, e.GateOutput(0))
}

func TestMidiCvPitchBend(t *testing.T) {
	e := NewMidiCvTrackEngine(newMidiCvTestTrack(1))

	e.ReceiveMidi(midi.PortDin, 0, midi.NoteOn(0, 60, 100))
	assert.InDelta(t, 0.0, e.CvOutput(0), 1e-9)

	// full upward bend with the default 2-semitone range
	e.ReceiveMidi(midi.PortDin, 0, midi.PitchBend(0, 8191))
	assert.InDelta(t, 2.0/12.0, e.CvOutput(0), 1e-3)

	e.ReceiveMidi(midi.PortDin, 0, midi.PitchBend(0, 0))
	assert.InDelta(t, 0.0, e.CvOutput(0), 1e-9)
}

func TestMidiCvReset(t *testing.T) {
	e := NewMidiCvTrackEngine(newMidiCvTestTrack(2))

	e.ReceiveMidi(midi.PortDin, 0, midi.NoteOn(0, 60, 100))
	e.ReceiveMidi(midi.PortDin, 0, midi.NoteOn(0, 64, 100))
	e.Reset()

	assert.False(t, e.GateOutput(0))
	assert.False(t, e.GateOutput(1))
}

func TestMidiCvMute(t *testing.T) {
	e := NewMidiCvTrackEngine(newMidiCvTestTrack(1))

	e.ReceiveMidi(midi.PortDin, 0, midi.NoteOn(0, 60, 100))
	e.SetMute(true)
	assert.False(t, e.GateOutput(0))
	// idle preview keeps following the keys
	assert.True(t, e.IdleGateOutput(0))
}

package sequencer

import (
	"sync"

	"go-performer/midi"
)

const maxVoices = 4

type voice struct {
	note     int
	velocity int
	active   bool
	order    uint64
}

// MidiCvTrackEngine turns incoming MIDI notes into gate/CV voices. A new
// note takes the lowest-numbered free voice; when all are busy the oldest is
// stolen.
type MidiCvTrackEngine struct {
	mu    sync.Mutex
	track *Track

	mute bool

	voices     [maxVoices]voice
	allocOrder uint64
	bendVolts  float64

	idleActive bool
}

// NewMidiCvTrackEngine creates a MIDI/CV converter over the given track
func NewMidiCvTrackEngine(track *Track) *MidiCvTrackEngine {
	return &MidiCvTrackEngine{track: track}
}

// TrackMode returns TrackModeMidiCv
func (m *MidiCvTrackEngine) TrackMode() TrackMode { return TrackModeMidiCv }

// Reset releases all voices
func (m *MidiCvTrackEngine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.voices {
		m.voices[i].active = false
	}
	m.bendVolts = 0
}

// Tick has no effect; playback is driven by incoming MIDI
func (m *MidiCvTrackEngine) Tick(tick uint32) {}

// Update has no effect
func (m *MidiCvTrackEngine) Update(dt float64) {}

// SetMute silences the gate outputs, voices keep tracking
func (m *MidiCvTrackEngine) SetMute(mute bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mute = mute
}

// SetFill has no effect on MIDI/CV tracks
func (m *MidiCvTrackEngine) SetFill(fill bool) {}

// SetPattern has no effect on MIDI/CV tracks
func (m *MidiCvTrackEngine) SetPattern(pattern int) {}

// SetSwing has no effect on MIDI/CV tracks
func (m *MidiCvTrackEngine) SetSwing(swing int) {}

func (m *MidiCvTrackEngine) voiceCount() int {
	n := m.track.MidiCv.Voices
	if n < 1 {
		n = 1
	}
	if n > maxVoices {
		n = maxVoices
	}
	return n
}

// ReceiveMidi feeds one message through the source and channel filter
func (m *MidiCvTrackEngine) ReceiveMidi(port midi.Port, channel int, msg midi.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if port != m.track.MidiCv.Source {
		return
	}
	if m.track.MidiCv.Channel >= 0 && channel != m.track.MidiCv.Channel {
		return
	}

	switch {
	case msg.IsNoteOn():
		m.noteOn(int(msg.Note()), int(msg.Velocity()))
		m.idleActive = true
	case msg.IsNoteOff():
		m.noteOff(int(msg.Note()))
	case msg.IsPitchBend():
		semitones := float64(msg.BendValue()) / 8192.0 * float64(m.track.MidiCv.BendRange)
		m.bendVolts = semitones / 12.0
	}
}

func (m *MidiCvTrackEngine) noteOn(note, velocity int) {
	count := m.voiceCount()
	m.allocOrder++

	// reuse a free voice first
	for i := 0; i < count; i++ {
		if !m.voices[i].active {
			m.voices[i] = voice{note: note, velocity: velocity, active: true, order: m.allocOrder}
			return
		}
	}

	// steal the oldest
	oldest := 0
	for i := 1; i < count; i++ {
		if m.voices[i].order < m.voices[oldest].order {
			oldest = i
		}
	}
	m.voices[oldest] = voice{note: note, velocity: velocity, active: true, order: m.allocOrder}
}

func (m *MidiCvTrackEngine) noteOff(note int) {
	for i := range m.voices {
		if m.voices[i].active && m.voices[i].note == note {
			m.voices[i].active = false
		}
	}
}

// GateOutput returns one voice gate
func (m *MidiCvTrackEngine) GateOutput(index int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= m.voiceCount() {
		return false
	}
	return m.voices[index].active && !m.mute
}

// CvOutput returns pitch on even lines and velocity on odd lines, one pair
// per voice
func (m *MidiCvTrackEngine) CvOutput(index int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := index / 2
	if v < 0 || v >= m.voiceCount() {
		return 0
	}
	if index%2 == 0 {
		return noteVolts(m.voices[v].note) + m.bendVolts
	}
	return velocityVolts(m.voices[v].velocity)
}

// IdleOutput reports whether a note arrived since the last clear
func (m *MidiCvTrackEngine) IdleOutput() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idleActive
}

// IdleGateOutput returns the voice gates, ignoring mute
func (m *MidiCvTrackEngine) IdleGateOutput(index int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := index
	if v < 0 || v >= m.voiceCount() {
		return false
	}
	return m.voices[v].active
}

// IdleCvOutput mirrors the live CV
func (m *MidiCvTrackEngine) IdleCvOutput(index int) float64 {
	return m.CvOutput(index)
}

// ClearIdleOutput drops the preview flag
func (m *MidiCvTrackEngine) ClearIdleOutput() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idleActive = false
}

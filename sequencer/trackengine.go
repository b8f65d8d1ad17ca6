package sequencer

import "go-performer/midi"

// TrackEngine is one running track. The engine recreates a track engine
// whenever the track's mode changes; all other configuration changes are
// picked up live through the shared Track pointer.
type TrackEngine interface {
	// TrackMode reports which engine this is
	TrackMode() TrackMode

	// Reset rewinds the playback position
	Reset()

	// Tick advances playback to the given master tick
	Tick(tick uint32)

	// Update runs time-based processing, dt in seconds
	Update(dt float64)

	// SetMute silences the gate outputs without stopping playback
	SetMute(mute bool)

	// SetFill enables the transient fill behavior
	SetFill(fill bool)

	// SetPattern selects the active pattern
	SetPattern(pattern int)

	// SetSwing sets the swing amount in percent, 50-75
	SetSwing(swing int)

	// ReceiveMidi feeds one incoming channel message
	ReceiveMidi(port midi.Port, channel int, msg midi.Message)

	// GateOutput returns one live gate line, index relative to the track
	GateOutput(index int) bool

	// CvOutput returns one live CV line in volts, index relative to the track
	CvOutput(index int) float64

	// IdleOutput reports whether an idle preview is pending
	IdleOutput() bool

	// IdleGateOutput returns one preview gate line
	IdleGateOutput(index int) bool

	// IdleCvOutput returns one preview CV line in volts
	IdleCvOutput(index int) float64

	// ClearIdleOutput drops the idle preview
	ClearIdleOutput()
}

// NewTrackEngine creates the engine matching the track's mode. A note track
// follows the playback position of a linked note engine; curve and MIDI/CV
// tracks do not follow the link.
func NewTrackEngine(track *Track, linked TrackEngine) TrackEngine {
	switch track.Mode {
	case TrackModeCurve:
		return NewCurveTrackEngine(track, linked)
	case TrackModeMidiCv:
		return NewMidiCvTrackEngine(track)
	default:
		return NewNoteTrackEngine(track, linked)
	}
}

package sequencer

import (
	"sync"

	"go-performer/midi"
)

// noteVolts converts a MIDI note number to volts, 1V/octave with middle C
// at 0 V
func noteVolts(note int) float64 {
	return float64(note-60) / 12.0
}

func velocityVolts(velocity int) float64 {
	return float64(velocity) / 127.0 * 5.0
}

// NoteTrackEngine plays a note sequence as gate and pitch/velocity CV
type NoteTrackEngine struct {
	mu     sync.Mutex
	track  *Track
	linked TrackEngine

	pattern int
	swing   int
	mute    bool
	fill    bool

	currentStep int
	gate        bool
	gateOffTick uint32
	cvPitch     float64
	cvVelocity  float64

	idleActive bool
	idleGate   bool
	idleCv     float64
}

// NewNoteTrackEngine creates a note engine over the given track
func NewNoteTrackEngine(track *Track, linked TrackEngine) *NoteTrackEngine {
	return &NoteTrackEngine{
		track:       track,
		linked:      linked,
		swing:       50,
		currentStep: -1,
	}
}

// TrackMode returns TrackModeNote
func (n *NoteTrackEngine) TrackMode() TrackMode { return TrackModeNote }

// Reset rewinds to before the first step and closes the gate
func (n *NoteTrackEngine) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.currentStep = -1
	n.gate = false
	n.gateOffTick = 0
}

// positionSequence returns the sequence that drives the playback position.
// Linked tracks follow the timing of their source track but play their own
// step data.
func (n *NoteTrackEngine) positionSequence() *NoteSequence {
	if linked, ok := n.linked.(*NoteTrackEngine); ok && linked != nil {
		return &linked.track.Note.Sequences[linked.pattern]
	}
	return &n.track.Note.Sequences[n.pattern]
}

func (n *NoteTrackEngine) swingOffset(step, divisor int) uint32 {
	if step%2 == 0 {
		return 0
	}
	return uint32(divisor * (n.swing - 50) / 100)
}

// Tick advances the sequence, opening gates on step boundaries and closing
// them when the gate length expires
func (n *NoteTrackEngine) Tick(tick uint32) {
	n.mu.Lock()
	defer n.mu.Unlock()

	pos := n.positionSequence()
	seq := &n.track.Note.Sequences[n.pattern]

	length := pos.Length
	if length < 1 || length > StepCount {
		length = StepCount
	}
	divisor := pos.Divisor
	if divisor < 1 {
		divisor = 1
	}

	rel := tick % uint32(length*divisor)
	for step := 0; step < length; step++ {
		if rel != uint32(step*divisor)+n.swingOffset(step, divisor) {
			continue
		}
		n.currentStep = step
		s := &seq.Steps[step%StepCount]
		if s.Gate || n.fill {
			gateLength := divisor * s.GateLength / 100
			if gateLength < 1 {
				gateLength = 1
			}
			n.gate = true
			n.gateOffTick = tick + uint32(gateLength)
			n.cvPitch = noteVolts(s.Note)
			n.cvVelocity = velocityVolts(s.Velocity)
		}
		break
	}

	if n.gate && tick >= n.gateOffTick {
		n.gate = false
	}
}

// Update is tick-driven; nothing to do per wall-clock frame
func (n *NoteTrackEngine) Update(dt float64) {}

// SetMute silences the gate output
func (n *NoteTrackEngine) SetMute(mute bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mute = mute
}

// SetFill forces every step to trigger
func (n *NoteTrackEngine) SetFill(fill bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fill = fill
}

// SetPattern selects the active pattern
func (n *NoteTrackEngine) SetPattern(pattern int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if pattern >= 0 && pattern < PatternCount {
		n.pattern = pattern
	}
}

// SetSwing sets the swing amount in percent
func (n *NoteTrackEngine) SetSwing(swing int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if swing < 50 {
		swing = 50
	}
	if swing > 75 {
		swing = 75
	}
	n.swing = swing
}

// ReceiveMidi previews incoming notes on the idle outputs
func (n *NoteTrackEngine) ReceiveMidi(port midi.Port, channel int, msg midi.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch {
	case msg.IsNoteOn():
		n.idleActive = true
		n.idleGate = true
		n.idleCv = noteVolts(int(msg.Note()))
	case msg.IsNoteOff():
		n.idleGate = false
	}
}

// CurrentStep returns the last triggered step index, -1 before the first
func (n *NoteTrackEngine) CurrentStep() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.currentStep
}

// GateOutput returns the live gate, suppressed while muted
func (n *NoteTrackEngine) GateOutput(index int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.gate && !n.mute
}

// CvOutput returns pitch on the first line and velocity on the rest
func (n *NoteTrackEngine) CvOutput(index int) float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if index == 0 {
		return n.cvPitch
	}
	return n.cvVelocity
}

// IdleOutput reports whether a preview is pending
func (n *NoteTrackEngine) IdleOutput() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.idleActive
}

// IdleGateOutput returns the preview gate
func (n *NoteTrackEngine) IdleGateOutput(index int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.idleGate
}

// IdleCvOutput returns the preview pitch
func (n *NoteTrackEngine) IdleCvOutput(index int) float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.idleCv
}

// ClearIdleOutput drops the preview
func (n *NoteTrackEngine) ClearIdleOutput() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.idleActive = false
	n.idleGate = false
	n.idleCv = 0
}

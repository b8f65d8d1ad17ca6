package sequencer

import (
	"math"
	"sync"

	"go-performer/hw"
	"go-performer/midi"
)

// curveValue evaluates a shape at phase 0-1, returning a normalized 0-1
// value
func curveValue(shape CurveShape, phase float64) float64 {
	switch shape {
	case CurveHigh:
		return 1
	case CurveRampUp:
		return phase
	case CurveRampDown:
		return 1 - phase
	case CurveExpUp:
		return phase * phase
	case CurveExpDown:
		return (1 - phase) * (1 - phase)
	case CurveTriangle:
		if phase < 0.5 {
			return 2 * phase
		}
		return 2 - 2*phase
	case CurveSine:
		return 0.5 - 0.5*math.Cos(2*math.Pi*phase)
	default:
		return 0
	}
}

// CurveTrackEngine renders a curve sequence as slewed CV. Gates stay low.
type CurveTrackEngine struct {
	mu     sync.Mutex
	track  *Track
	linked TrackEngine

	pattern int
	mute    bool

	currentStep int
	target      float64
	value       float64
}

// NewCurveTrackEngine creates a curve engine over the given track
func NewCurveTrackEngine(track *Track, linked TrackEngine) *CurveTrackEngine {
	return &CurveTrackEngine{
		track:       track,
		linked:      linked,
		currentStep: -1,
	}
}

// TrackMode returns TrackModeCurve
func (c *CurveTrackEngine) TrackMode() TrackMode { return TrackModeCurve }

// Reset rewinds and holds the current value
func (c *CurveTrackEngine) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentStep = -1
}

// Tick samples the curve at the current position
func (c *CurveTrackEngine) Tick(tick uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mute {
		return
	}

	seq := &c.track.Curve.Sequences[c.pattern]
	length := seq.Length
	if length < 1 || length > StepCount {
		length = StepCount
	}
	divisor := seq.Divisor
	if divisor < 1 {
		divisor = 1
	}

	rel := tick % uint32(length*divisor)
	step := int(rel) / divisor
	phase := float64(int(rel)%divisor) / float64(divisor)
	c.currentStep = step

	s := &seq.Steps[step%StepCount]
	norm := s.Min + curveValue(s.Shape, phase)*(s.Max-s.Min)
	c.target = hw.VoltsMin + norm*(hw.VoltsMax-hw.VoltsMin)
}

// Update slews the output toward the target
func (c *CurveTrackEngine) Update(dt float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slewTime := c.track.Curve.SlewTime
	if slewTime <= 0 {
		c.value = c.target
		return
	}
	maxDelta := (hw.VoltsMax - hw.VoltsMin) / slewTime * dt
	delta := c.target - c.value
	if delta > maxDelta {
		delta = maxDelta
	}
	if delta < -maxDelta {
		delta = -maxDelta
	}
	c.value += delta
}

// SetMute freezes the output at its current value
func (c *CurveTrackEngine) SetMute(mute bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mute = mute
	if mute {
		c.target = c.value
	}
}

// SetFill has no effect on curve tracks
func (c *CurveTrackEngine) SetFill(fill bool) {}

// SetPattern selects the active pattern
func (c *CurveTrackEngine) SetPattern(pattern int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pattern >= 0 && pattern < PatternCount {
		c.pattern = pattern
	}
}

// SetSwing has no effect on curve tracks
func (c *CurveTrackEngine) SetSwing(swing int) {}

// ReceiveMidi is ignored by curve tracks
func (c *CurveTrackEngine) ReceiveMidi(port midi.Port, channel int, msg midi.Message) {}

// CurrentStep returns the last sampled step index
func (c *CurveTrackEngine) CurrentStep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentStep
}

// GateOutput is always low on curve tracks
func (c *CurveTrackEngine) GateOutput(index int) bool { return false }

// CvOutput returns the slewed curve value
func (c *CurveTrackEngine) CvOutput(index int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// IdleOutput is never pending on curve tracks
func (c *CurveTrackEngine) IdleOutput() bool { return false }

// IdleGateOutput is always low
func (c *CurveTrackEngine) IdleGateOutput(index int) bool { return false }

// IdleCvOutput returns zero
func (c *CurveTrackEngine) IdleCvOutput(index int) float64 { return 0 }

// ClearIdleOutput is a no-op
func (c *CurveTrackEngine) ClearIdleOutput() {}

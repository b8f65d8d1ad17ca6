package sequencer

import (
	"sync"
	"time"
)

const (
	tapWindow  = 8
	tapTimeout = 3 * time.Second
)

// TapTempo derives a tempo from repeated taps. Taps further apart than the
// timeout start a new measurement.
type TapTempo struct {
	mu        sync.Mutex
	bpm       float64
	lastTap   time.Time
	intervals []time.Duration
	now       func() time.Time
}

// NewTapTempo creates a tap detector seeded with the given tempo
func NewTapTempo(bpm float64) *TapTempo {
	return &TapTempo{bpm: bpm, now: time.Now}
}

// Reset seeds the tempo and drops any measurement in progress
func (t *TapTempo) Reset(bpm float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bpm = bpm
	t.intervals = t.intervals[:0]
	t.lastTap = time.Time{}
}

// Tap records one tap and returns the current tempo estimate
func (t *TapTempo) Tap() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if !t.lastTap.IsZero() {
		interval := now.Sub(t.lastTap)
		if interval > tapTimeout {
			t.intervals = t.intervals[:0]
		} else {
			t.intervals = append(t.intervals, interval)
			if len(t.intervals) > tapWindow {
				t.intervals = t.intervals[1:]
			}
			var sum time.Duration
			for _, iv := range t.intervals {
				sum += iv
			}
			avg := sum / time.Duration(len(t.intervals))
			t.bpm = float64(time.Minute) / float64(avg)
		}
	}
	t.lastTap = now
	return t.bpm
}

// Bpm returns the current tempo estimate
func (t *TapTempo) Bpm() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bpm
}

// nudge strength moves at this many units per second toward the direction
const nudgeRate = 2.0

// NudgeTempo ramps a temporary tempo offset while a nudge direction is held
// and decays it back to zero when released
type NudgeTempo struct {
	mu        sync.Mutex
	direction int
	strength  float64
}

// SetDirection sets the nudge direction, -1, 0 or +1
func (n *NudgeTempo) SetDirection(direction int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if direction < -1 {
		direction = -1
	}
	if direction > 1 {
		direction = 1
	}
	n.direction = direction
}

// Update advances the strength toward the direction, dt in seconds
func (n *NudgeTempo) Update(dt float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	target := float64(n.direction)
	delta := nudgeRate * dt
	if n.strength < target {
		n.strength += delta
		if n.strength > target {
			n.strength = target
		}
	} else if n.strength > target {
		n.strength -= delta
		if n.strength < target {
			n.strength = target
		}
	}
}

// Strength returns the current offset in the range -1 to +1
func (n *NudgeTempo) Strength() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.strength
}

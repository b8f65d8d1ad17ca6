package hw

import "sync/atomic"

// GateOutput drives the gate output lines as a single bitmask
type GateOutput struct {
	gates atomic.Uint32
}

// SetGate sets a single gate line
func (g *GateOutput) SetGate(index int, value bool) {
	for {
		old := g.gates.Load()
		var next uint32
		if value {
			next = old | (1 << uint(index))
		} else {
			next = old &^ (1 << uint(index))
		}
		if g.gates.CompareAndSwap(old, next) {
			return
		}
	}
}

// SetGates replaces all gate lines at once
func (g *GateOutput) SetGates(mask uint32) {
	g.gates.Store(mask)
}

// Gates returns the current bitmask
func (g *GateOutput) Gates() uint32 {
	return g.gates.Load()
}

// Gate returns a single gate line
func (g *GateOutput) Gate(index int) bool {
	return g.gates.Load()&(1<<uint(index)) != 0
}

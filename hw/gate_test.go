package hw

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGateOutputSingleLines(t *testing.T) {
	var g GateOutput

	g.SetGate(0, true)
	g.SetGate(3, true)
	assert.True(t, g.Gate(0))
	assert.True(t, g.Gate(3))
	assert.False(t, g.Gate(1))
	assert.Equal(t, uint32(0b1001), g.Gates())

	g.SetGate(0, false)
	assert.False(t, g.Gate(0))
	assert.Equal(t, uint32(0b1000), g.Gates())
}

func TestGateOutputMask(t *testing.T) {
	var g GateOutput
	g.SetGates(0xAA)
	assert.Equal(t, uint32(0xAA), g.Gates())
	assert.False(t, g.Gate(0))
	assert.True(t, g.Gate(1))
}

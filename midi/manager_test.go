package midi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUsbIDs(t *testing.T) {
	vid, pid := parseUsbIDs("Launchpad X 1235:0113")
	assert.Equal(t, uint16(0x1235), vid)
	assert.Equal(t, uint16(0x0113), pid)

	vid, pid = parseUsbIDs("Some Keyboard MIDI 1")
	assert.Equal(t, uint16(0), vid)
	assert.Equal(t, uint16(0), pid)

	vid, pid = parseUsbIDs("")
	assert.Equal(t, uint16(0), vid)
	assert.Equal(t, uint16(0), pid)
}

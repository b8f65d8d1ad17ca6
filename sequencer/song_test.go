package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSongSlotOperations(t *testing.T) {
	var song Song
	song.AddSlot(NewSongSlot(2))
	song.AddSlot(NewSongSlot(5))
	assert.Equal(t, 2, song.SlotCount())
	assert.Equal(t, 5, song.Slot(1).Patterns[0])
	assert.Equal(t, 1, song.Slot(1).Repeats)

	song.RemoveSlot(0)
	assert.Equal(t, 1, song.SlotCount())
	assert.Equal(t, 5, song.Slot(0).Patterns[0])

	song.RemoveSlot(7) // out of range, ignored
	assert.Equal(t, 1, song.SlotCount())

	song.Clear()
	assert.Equal(t, 0, song.SlotCount())
}

func TestSongSlotLimit(t *testing.T) {
	var song Song
	for i := 0; i < SongSlotCount+4; i++ {
		song.AddSlot(NewSongSlot(0))
	}
	assert.Equal(t, SongSlotCount, song.SlotCount())
}

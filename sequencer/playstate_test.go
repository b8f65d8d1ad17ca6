package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlayStateImmediateRequest(t *testing.T) {
	var ps PlayState
	ps.Init()

	ps.MuteTrack(0, ExecuteImmediate)
	assert.True(t, ps.hasImmediateRequests)
	assert.True(t, ps.TrackStates[0].RequestedMute)
	assert.True(t, ps.TrackStates[0].hasRequests(trackRequestImmediateMute))

	ps.clearImmediateRequests()
	assert.False(t, ps.hasImmediateRequests)
	assert.False(t, ps.TrackStates[0].hasRequests(trackRequestImmediateMute))
}

func TestPlayStateSyncedAndLatchedSeparate(t *testing.T) {
	var ps PlayState
	ps.Init()

	ps.SelectTrackPattern(1, 4, ExecuteSynced)
	ps.SelectTrackPattern(2, 5, ExecuteLatched)

	assert.True(t, ps.hasSyncedRequests)
	assert.True(t, ps.hasLatchedRequests)
	assert.True(t, ps.TrackStates[1].hasRequests(trackRequestSyncedPattern))
	assert.False(t, ps.TrackStates[1].hasRequests(trackRequestLatchedPattern))
	assert.True(t, ps.TrackStates[2].hasRequests(trackRequestLatchedPattern))

	ps.clearSyncedRequests()
	assert.False(t, ps.hasSyncedRequests)
	assert.True(t, ps.hasLatchedRequests)
}

func TestPlayStateLatchedArming(t *testing.T) {
	var ps PlayState
	ps.Init()

	// arming with nothing pending is a no-op
	ps.ExecuteLatchedRequests()
	assert.False(t, ps.executeLatchedRequests)

	ps.MuteTrack(0, ExecuteLatched)
	ps.ExecuteLatchedRequests()
	assert.True(t, ps.executeLatchedRequests)

	ps.clearLatchedRequests()
	assert.False(t, ps.executeLatchedRequests)
	assert.False(t, ps.hasLatchedRequests)
}

func TestPlayStateCancel(t *testing.T) {
	var ps PlayState
	ps.Init()

	ps.MuteTrack(0, ExecuteSynced)
	ps.SelectTrackPattern(1, 2, ExecuteLatched)
	ps.CancelTrackRequests()

	assert.False(t, ps.hasSyncedRequests)
	assert.False(t, ps.hasLatchedRequests)
	assert.False(t, ps.TrackStates[0].hasRequests(trackRequestSynced))
	assert.False(t, ps.TrackStates[1].hasRequests(trackRequestLatched))
}

func TestPlayStateSolo(t *testing.T) {
	var ps PlayState
	ps.Init()

	ps.SoloTrack(3, ExecuteImmediate)
	for i := 0; i < TrackCount; i++ {
		assert.Equal(t, i != 3, ps.TrackStates[i].RequestedMute)
		assert.True(t, ps.TrackStates[i].hasRequests(trackRequestImmediateMute))
	}
}

func TestPlayStateSongRequests(t *testing.T) {
	var ps PlayState
	ps.Init()

	ps.PlaySong(2, ExecuteSynced)
	assert.Equal(t, 2, ps.SongState.RequestedSlot)
	assert.True(t, ps.SongState.hasRequests(songRequestSyncedPlay))

	ps.StopSong(ExecuteImmediate)
	assert.True(t, ps.SongState.hasRequests(songRequestImmediateStop))
}

func TestPlayStateFill(t *testing.T) {
	var ps PlayState
	ps.Init()

	ps.FillTrack(0, true)
	assert.True(t, ps.TrackStates[0].Fill)
	assert.True(t, ps.hasImmediateRequests)

	ps.FillAll(false)
	for i := 0; i < TrackCount; i++ {
		assert.False(t, ps.TrackStates[i].Fill)
	}
}

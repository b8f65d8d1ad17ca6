package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go-performer/hw"
	"go-performer/midi"
)

func newRoutingTestRig() (*Project, *hw.MemoryAdc, *hw.CvInput, *RoutingEngine) {
	project := NewProject()
	adc := hw.NewMemoryAdc()
	cvIn := hw.NewCvInput(adc, CvInputChannels)
	cvIn.Init()
	return project, adc, cvIn, NewRoutingEngine(project, cvIn)
}

func TestRoutingMidiCcToBpm(t *testing.T) {
	project, _, _, r := newRoutingTestRig()
	project.Routes[0] = Route{
		Source:      RouteSourceMidiCc,
		MidiPort:    midi.PortDin,
		MidiChannel: -1,
		Controller:  7,
		Target:      RouteTargetBpm,
		Min:         60,
		Max:         180,
	}

	r.ReceiveMidi(midi.PortDin, 0, midi.ControlChange(0, 7, 127))
	r.Update()
	assert.InDelta(t, 180.0, project.BPM, 0.01)

	r.ReceiveMidi(midi.PortDin, 0, midi.ControlChange(0, 7, 0))
	r.Update()
	assert.InDelta(t, 60.0, project.BPM, 0.01)
}

func TestRoutingCcFilters(t *testing.T) {
	project, _, _, r := newRoutingTestRig()
	project.Routes[0] = Route{
		Source:      RouteSourceMidiCc,
		MidiPort:    midi.PortUsb,
		MidiChannel: 2,
		Controller:  10,
		Target:      RouteTargetBpm,
		Min:         60,
		Max:         180,
	}

	bpm := project.BPM
	r.ReceiveMidi(midi.PortDin, 2, midi.ControlChange(2, 10, 127))
	r.ReceiveMidi(midi.PortUsb, 3, midi.ControlChange(3, 10, 127))
	r.ReceiveMidi(midi.PortUsb, 2, midi.ControlChange(2, 11, 127))
	r.Update()
	assert.InDelta(t, bpm, project.BPM, 0.01)

	r.ReceiveMidi(midi.PortUsb, 2, midi.ControlChange(2, 10, 127))
	r.Update()
	assert.InDelta(t, 180.0, project.BPM, 0.01)
}

func TestRoutingCvInToTrackMute(t *testing.T) {
	project, adc, cvIn, r := newRoutingTestRig()
	project.Routes[0] = Route{
		Source:     RouteSourceCvIn,
		CvChannel:  0,
		Target:     RouteTargetTrackMute,
		TrackIndex: 3,
		Min:        0,
		Max:        1,
	}

	adc.SetVolts(0, 5.0)
	cvIn.Update()
	r.Update()
	assert.True(t, project.PlayState.TrackStates[3].RequestedMute)

	adc.SetVolts(0, -5.0)
	cvIn.Update()
	r.Update()
	assert.False(t, project.PlayState.TrackStates[3].RequestedMute)
}

func TestRoutingSwingClamped(t *testing.T) {
	project, _, _, r := newRoutingTestRig()
	project.Routes[0] = Route{
		Source:      RouteSourceMidiCc,
		MidiPort:    midi.PortDin,
		MidiChannel: -1,
		Controller:  1,
		Target:      RouteTargetSwing,
		Min:         0,
		Max:         100,
	}

	r.ReceiveMidi(midi.PortDin, 0, midi.ControlChange(0, 1, 127))
	r.Update()
	assert.Equal(t, 75, project.Swing)

	r.ReceiveMidi(midi.PortDin, 0, midi.ControlChange(0, 1, 0))
	r.Update()
	assert.Equal(t, 50, project.Swing)
}

func TestRoutingTrackPattern(t *testing.T) {
	project, _, _, r := newRoutingTestRig()
	project.Routes[0] = Route{
		Source:      RouteSourceMidiCc,
		MidiPort:    midi.PortDin,
		MidiChannel: -1,
		Controller:  20,
		Target:      RouteTargetTrackPattern,
		TrackIndex:  1,
		Min:         0,
		Max:         PatternCount - 1,
	}

	r.ReceiveMidi(midi.PortDin, 0, midi.ControlChange(0, 20, 127))
	r.Update()
	assert.Equal(t, PatternCount-1, project.PlayState.TrackStates[1].RequestedPattern)
}

package sequencer

import (
	"sync"

	"go-performer/hw"
	"go-performer/midi"
)

// RouteSource selects where a route reads its value from
type RouteSource int

const (
	RouteSourceNone RouteSource = iota
	RouteSourceCvIn
	RouteSourceMidiCc
)

// RouteTarget selects the parameter a route drives
type RouteTarget int

const (
	RouteTargetNone RouteTarget = iota
	RouteTargetBpm
	RouteTargetSwing
	RouteTargetTrackMute
	RouteTargetTrackPattern
	RouteTargetTrackFill
)

// Route maps one source to one target. Min and Max span the target range;
// the normalized source value interpolates between them.
type Route struct {
	Source      RouteSource `json:"source"`
	CvChannel   int         `json:"cvChannel"`
	MidiPort    midi.Port   `json:"midiPort"`
	MidiChannel int         `json:"midiChannel"` // -1 = omni
	Controller  int         `json:"controller"`
	Target      RouteTarget `json:"target"`
	TrackIndex  int         `json:"trackIndex"`
	Min         float64     `json:"min"`
	Max         float64     `json:"max"`
}

// RoutingEngine applies routes to the project every update cycle. MIDI CC
// values are captured as they arrive and consumed on Update; CV inputs are
// sampled directly.
type RoutingEngine struct {
	mu      sync.Mutex
	project *Project
	cvInput *hw.CvInput

	sourceValues [RouteCount]float64
	lastApplied  [RouteCount]float64
	hasValue     [RouteCount]bool
}

// NewRoutingEngine creates a routing engine over the project
func NewRoutingEngine(project *Project, cvInput *hw.CvInput) *RoutingEngine {
	return &RoutingEngine{project: project, cvInput: cvInput}
}

// ReceiveMidi captures CC values for MIDI-sourced routes
func (r *RoutingEngine) ReceiveMidi(port midi.Port, channel int, msg midi.Message) {
	if !msg.IsControlChange() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.project.Routes {
		route := &r.project.Routes[i]
		if route.Source != RouteSourceMidiCc {
			continue
		}
		if route.MidiPort != port {
			continue
		}
		if route.MidiChannel >= 0 && channel != route.MidiChannel {
			continue
		}
		if int(msg.Controller()) != route.Controller {
			continue
		}
		r.sourceValues[i] = float64(msg.ControlValue()) / 127.0
		r.hasValue[i] = true
	}
}

// Update samples CV sources and applies all active routes
func (r *RoutingEngine) Update() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.project.Routes {
		route := &r.project.Routes[i]
		switch route.Source {
		case RouteSourceCvIn:
			volts := r.cvInput.Channel(route.CvChannel)
			r.sourceValues[i] = (volts - hw.VoltsMin) / (hw.VoltsMax - hw.VoltsMin)
			r.hasValue[i] = true
		case RouteSourceNone:
			continue
		}
		if !r.hasValue[i] {
			continue
		}
		norm := r.sourceValues[i]
		if norm < 0 {
			norm = 0
		}
		if norm > 1 {
			norm = 1
		}
		if norm == r.lastApplied[i] && route.Source == RouteSourceMidiCc {
			continue
		}
		r.apply(route, norm)
		r.lastApplied[i] = norm
	}
}

func (r *RoutingEngine) apply(route *Route, norm float64) {
	scaled := route.Min + norm*(route.Max-route.Min)
	switch route.Target {
	case RouteTargetBpm:
		if scaled > 0 {
			r.project.BPM = scaled
		}
	case RouteTargetSwing:
		swing := int(scaled + 0.5)
		if swing < 50 {
			swing = 50
		}
		if swing > 75 {
			swing = 75
		}
		r.project.Swing = swing
	case RouteTargetTrackMute:
		if norm > 0.5 {
			r.project.PlayState.MuteTrack(route.TrackIndex, ExecuteImmediate)
		} else {
			r.project.PlayState.UnmuteTrack(route.TrackIndex, ExecuteImmediate)
		}
	case RouteTargetTrackPattern:
		pattern := int(scaled + 0.5)
		if pattern < 0 {
			pattern = 0
		}
		if pattern >= PatternCount {
			pattern = PatternCount - 1
		}
		r.project.PlayState.SelectTrackPattern(route.TrackIndex, pattern, ExecuteImmediate)
	case RouteTargetTrackFill:
		r.project.PlayState.FillTrack(route.TrackIndex, norm > 0.5)
	}
}

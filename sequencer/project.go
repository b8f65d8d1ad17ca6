package sequencer

// Core sizing. PPQN is the internal tick resolution; all musical positions
// are integer tick counts.
const (
	PPQN               = 192
	TrackCount         = 8
	PatternCount       = 16
	StepCount          = 16
	GateOutputChannels = 8
	CvOutputChannels   = 8
	CvInputChannels    = 4
	RouteCount         = 8
	SongSlotCount      = 16
)

// ClockSetupMode selects how the clock arbitrates master vs slave sources
type ClockSetupMode int

const (
	ClockSetupAuto ClockSetupMode = iota
	ClockSetupMaster
	ClockSetupSlave
)

// ClockInputMode selects how the reset/run input jack is interpreted
type ClockInputMode int

const (
	ClockInputReset ClockInputMode = iota
	ClockInputRun
	ClockInputStartStop
)

// ClockOutputMode selects what the reset output jack carries
type ClockOutputMode int

const (
	ClockOutputReset ClockOutputMode = iota
	ClockOutputRun
	ClockOutputLast
)

// ClockSetup is the clock configuration block of a project. Mutators must
// set Dirty; the engine reconfigures the clock only while Dirty and clears
// it afterwards.
type ClockSetup struct {
	Mode               ClockSetupMode  `json:"mode"`
	ClockInputMode     ClockInputMode  `json:"clockInputMode"`
	ClockInputDivisor  int             `json:"clockInputDivisor"` // ticks per external pulse
	ClockOutputMode    ClockOutputMode `json:"clockOutputMode"`
	ClockOutputDivisor int             `json:"clockOutputDivisor"` // ticks per output pulse
	ClockOutputPulse   int             `json:"clockOutputPulse"`   // pulse width in ticks
	MidiRx             bool            `json:"midiRx"`
	MidiTx             bool            `json:"midiTx"`
	UsbRx              bool            `json:"usbRx"`
	UsbTx              bool            `json:"usbTx"`

	Dirty bool `json:"-"`
}

// NewClockSetup returns defaults: auto arbitration, 16th-note external
// pulses, 16th-note clock output with a one-tick pulse, all MIDI gates open.
func NewClockSetup() ClockSetup {
	return ClockSetup{
		Mode:               ClockSetupAuto,
		ClockInputMode:     ClockInputReset,
		ClockInputDivisor:  PPQN / 4,
		ClockOutputMode:    ClockOutputReset,
		ClockOutputDivisor: PPQN / 4,
		ClockOutputPulse:   1,
		MidiRx:             true,
		MidiTx:             true,
		UsbRx:              true,
		UsbTx:              true,
		Dirty:              true,
	}
}

// Project holds everything the engine consumes: tempo, per-track
// configuration, play state, song and output assignments.
type Project struct {
	BPM         float64 `json:"bpm"`
	Swing       int     `json:"swing"`       // 50-75, percent of a step pair
	SyncMeasure int     `json:"syncMeasure"` // bars

	ClockSetup ClockSetup        `json:"clockSetup"`
	Tracks     [TrackCount]*Track `json:"tracks"`
	PlayState  PlayState         `json:"playState"`
	Song       Song              `json:"song"`
	Routes     [RouteCount]Route `json:"routes"`

	SelectedTrackIndex int `json:"selectedTrackIndex"`

	// physical output index -> source track index
	GateOutputTracks [GateOutputChannels]int `json:"gateOutputTracks"`
	CvOutputTracks   [CvOutputChannels]int   `json:"cvOutputTracks"`
}

// NewProject creates a project with defaults: 120 BPM, no swing, one-bar
// sync measure, note tracks, one-to-one output assignment.
func NewProject() *Project {
	p := &Project{
		BPM:         120,
		Swing:       50,
		SyncMeasure: 1,
		ClockSetup:  NewClockSetup(),
	}
	for i := 0; i < TrackCount; i++ {
		p.Tracks[i] = NewTrack()
		p.GateOutputTracks[i] = i
		p.CvOutputTracks[i] = i
	}
	p.PlayState.Init()
	return p
}

// MeasureDivisor returns the tick count of one sync measure
func (p *Project) MeasureDivisor() uint32 {
	syncMeasure := p.SyncMeasure
	if syncMeasure < 1 {
		syncMeasure = 1
	}
	return uint32(syncMeasure) * PPQN * 4
}

package sequencer

// ExecuteType selects when a play-state request takes effect
type ExecuteType int

const (
	ExecuteImmediate ExecuteType = iota
	ExecuteSynced
	ExecuteLatched
)

// Track request bits
const (
	trackRequestImmediateMute uint8 = 1 << iota
	trackRequestImmediatePattern
	trackRequestSyncedMute
	trackRequestSyncedPattern
	trackRequestLatchedMute
	trackRequestLatchedPattern
)

const (
	trackRequestImmediate = trackRequestImmediateMute | trackRequestImmediatePattern
	trackRequestSynced    = trackRequestSyncedMute | trackRequestSyncedPattern
	trackRequestLatched   = trackRequestLatchedMute | trackRequestLatchedPattern
)

// Song request bits
const (
	songRequestImmediatePlay uint8 = 1 << iota
	songRequestImmediateStop
	songRequestSyncedPlay
	songRequestSyncedStop
	songRequestLatchedPlay
	songRequestLatchedStop
)

const (
	songRequestImmediate = songRequestImmediatePlay | songRequestImmediateStop
	songRequestSynced    = songRequestSyncedPlay | songRequestSyncedStop
	songRequestLatched   = songRequestLatchedPlay | songRequestLatchedStop
)

// TrackState holds the live and requested state of one track
type TrackState struct {
	Mute             bool `json:"mute"`
	Fill             bool `json:"fill"`
	Pattern          int  `json:"pattern"`
	RequestedMute    bool `json:"-"`
	RequestedPattern int  `json:"-"`

	requests uint8
}

func (t *TrackState) hasRequests(mask uint8) bool { return t.requests&mask != 0 }
func (t *TrackState) setRequests(mask uint8)      { t.requests |= mask }
func (t *TrackState) clearRequests(mask uint8)    { t.requests &^= mask }

// SongState holds the live and requested song position
type SongState struct {
	Playing       bool `json:"playing"`
	CurrentSlot   int  `json:"currentSlot"`
	CurrentRepeat int  `json:"currentRepeat"`
	RequestedSlot int  `json:"-"`

	requests uint8
}

func (s *SongState) hasRequests(mask uint8) bool { return s.requests&mask != 0 }
func (s *SongState) setRequests(mask uint8)      { s.requests |= mask }
func (s *SongState) clearRequests(mask uint8)    { s.requests &^= mask }

// PlayState is the request machine between the UI and the engine. Mutators
// record requests; the engine commits them at the right musical moment.
type PlayState struct {
	TrackStates [TrackCount]TrackState `json:"trackStates"`
	SongState   SongState              `json:"songState"`

	hasImmediateRequests   bool
	hasSyncedRequests      bool
	hasLatchedRequests     bool
	executeLatchedRequests bool
}

// Init resets all live state and pending requests
func (p *PlayState) Init() {
	for i := range p.TrackStates {
		p.TrackStates[i] = TrackState{RequestedPattern: 0}
	}
	p.SongState = SongState{}
	p.hasImmediateRequests = false
	p.hasSyncedRequests = false
	p.hasLatchedRequests = false
	p.executeLatchedRequests = false
}

func (p *PlayState) trackRequestBit(execute ExecuteType, immediate, synced, latched uint8) uint8 {
	switch execute {
	case ExecuteSynced:
		p.hasSyncedRequests = true
		return synced
	case ExecuteLatched:
		p.hasLatchedRequests = true
		return latched
	default:
		p.hasImmediateRequests = true
		return immediate
	}
}

// MuteTrack requests muting one track
func (p *PlayState) MuteTrack(track int, execute ExecuteType) {
	p.setMuteRequest(track, true, execute)
}

// UnmuteTrack requests unmuting one track
func (p *PlayState) UnmuteTrack(track int, execute ExecuteType) {
	p.setMuteRequest(track, false, execute)
}

// ToggleMuteTrack requests flipping one track's mute
func (p *PlayState) ToggleMuteTrack(track int, execute ExecuteType) {
	p.setMuteRequest(track, !p.TrackStates[track].Mute, execute)
}

// MuteAll requests muting every track
func (p *PlayState) MuteAll(execute ExecuteType) {
	for i := 0; i < TrackCount; i++ {
		p.setMuteRequest(i, true, execute)
	}
}

// UnmuteAll requests unmuting every track
func (p *PlayState) UnmuteAll(execute ExecuteType) {
	for i := 0; i < TrackCount; i++ {
		p.setMuteRequest(i, false, execute)
	}
}

// SoloTrack requests unmuting one track and muting the rest
func (p *PlayState) SoloTrack(track int, execute ExecuteType) {
	for i := 0; i < TrackCount; i++ {
		p.setMuteRequest(i, i != track, execute)
	}
}

func (p *PlayState) setMuteRequest(track int, mute bool, execute ExecuteType) {
	if track < 0 || track >= TrackCount {
		return
	}
	ts := &p.TrackStates[track]
	ts.RequestedMute = mute
	ts.setRequests(p.trackRequestBit(execute,
		trackRequestImmediateMute, trackRequestSyncedMute, trackRequestLatchedMute))
}

// SelectTrackPattern requests a pattern change on one track
func (p *PlayState) SelectTrackPattern(track, pattern int, execute ExecuteType) {
	if track < 0 || track >= TrackCount || pattern < 0 || pattern >= PatternCount {
		return
	}
	ts := &p.TrackStates[track]
	ts.RequestedPattern = pattern
	ts.setRequests(p.trackRequestBit(execute,
		trackRequestImmediatePattern, trackRequestSyncedPattern, trackRequestLatchedPattern))
}

// SelectPattern requests the same pattern change on every track
func (p *PlayState) SelectPattern(pattern int, execute ExecuteType) {
	for i := 0; i < TrackCount; i++ {
		p.SelectTrackPattern(i, pattern, execute)
	}
}

// FillTrack sets the transient fill flag. Fill is applied immediately on the
// next engine update and does not participate in request scheduling.
func (p *PlayState) FillTrack(track int, fill bool) {
	if track < 0 || track >= TrackCount {
		return
	}
	p.TrackStates[track].Fill = fill
	p.hasImmediateRequests = true
}

// FillAll sets the fill flag on every track
func (p *PlayState) FillAll(fill bool) {
	for i := 0; i < TrackCount; i++ {
		p.FillTrack(i, fill)
	}
}

// PlaySong requests starting song playback at the given slot
func (p *PlayState) PlaySong(slot int, execute ExecuteType) {
	p.SongState.RequestedSlot = slot
	switch execute {
	case ExecuteSynced:
		p.hasSyncedRequests = true
		p.SongState.setRequests(songRequestSyncedPlay)
	case ExecuteLatched:
		p.hasLatchedRequests = true
		p.SongState.setRequests(songRequestLatchedPlay)
	default:
		p.hasImmediateRequests = true
		p.SongState.setRequests(songRequestImmediatePlay)
	}
}

// StopSong requests stopping song playback
func (p *PlayState) StopSong(execute ExecuteType) {
	switch execute {
	case ExecuteSynced:
		p.hasSyncedRequests = true
		p.SongState.setRequests(songRequestSyncedStop)
	case ExecuteLatched:
		p.hasLatchedRequests = true
		p.SongState.setRequests(songRequestLatchedStop)
	default:
		p.hasImmediateRequests = true
		p.SongState.setRequests(songRequestImmediateStop)
	}
}

// ExecuteLatchedRequests arms all pending latched requests to commit at the
// next sync point
func (p *PlayState) ExecuteLatchedRequests() {
	if p.hasLatchedRequests {
		p.executeLatchedRequests = true
	}
}

// HasLatchedRequests reports whether latched requests are pending
func (p *PlayState) HasLatchedRequests() bool {
	return p.hasLatchedRequests
}

// HasSyncedRequests reports whether synced requests are pending
func (p *PlayState) HasSyncedRequests() bool {
	return p.hasSyncedRequests
}

// CancelTrackRequests drops all pending mute and pattern requests
func (p *PlayState) CancelTrackRequests() {
	for i := range p.TrackStates {
		p.TrackStates[i].clearRequests(trackRequestImmediate | trackRequestSynced | trackRequestLatched)
	}
	p.hasSyncedRequests = false
	p.hasLatchedRequests = false
	p.executeLatchedRequests = false
}

func (p *PlayState) clearImmediateRequests() {
	for i := range p.TrackStates {
		p.TrackStates[i].clearRequests(trackRequestImmediate)
	}
	p.SongState.clearRequests(songRequestImmediate)
	p.hasImmediateRequests = false
}

func (p *PlayState) clearSyncedRequests() {
	for i := range p.TrackStates {
		p.TrackStates[i].clearRequests(trackRequestSynced)
	}
	p.SongState.clearRequests(songRequestSynced)
	p.hasSyncedRequests = false
}

func (p *PlayState) clearLatchedRequests() {
	for i := range p.TrackStates {
		p.TrackStates[i].clearRequests(trackRequestLatched)
	}
	p.SongState.clearRequests(songRequestLatched)
	p.hasLatchedRequests = false
	p.executeLatchedRequests = false
}

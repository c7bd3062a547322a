package analyzer

// Default temporal filter settings
const (
	DefaultConfirmFrames  = 5
	DefaultCooldownFrames = 8
	DefaultSampleEvery    = 1000
)

// DebounceState is the counters carried from one frame to the next
type DebounceState struct {
	Consecutive int // matching frames in the current run, pinned at the confirm threshold
	Cooldown    int // frames left before another event may fire
	Emitted     int // match events fired so far
}

// Debouncer turns noisy per-frame matches into rate-limited match events.
// It is not safe for concurrent use; frames must be stepped in arrival order.
type Debouncer struct {
	confirm  int
	cooldown int
	state    DebounceState
}

// NewDebouncer returns a Debouncer that fires after confirm consecutive
// matching frames and then stays quiet for cooldown frames.
// A non-positive confirm or a negative cooldown falls back to the default.
func NewDebouncer(confirm, cooldown int) *Debouncer {
	if confirm <= 0 {
		confirm = DefaultConfirmFrames
	}
	if cooldown < 0 {
		cooldown = DefaultCooldownFrames
	}
	return &Debouncer{confirm: confirm, cooldown: cooldown}
}

// Step advances the state by one frame. When a match event fires it
// returns the event's zero-based index and true.
func (d *Debouncer) Step(isMatch bool) (int, bool) {
	s := &d.state
	if s.Cooldown > 0 {
		s.Cooldown--
	}

	if !isMatch {
		s.Consecutive = 0
		return 0, false
	}

	if s.Consecutive < d.confirm {
		s.Consecutive++
	}
	if s.Consecutive < d.confirm || s.Cooldown > 0 {
		return 0, false
	}

	index := s.Emitted
	s.Emitted++
	s.Cooldown = d.cooldown
	s.Consecutive = 0
	return index, true
}

// State returns a snapshot of the counters
func (d *Debouncer) State() DebounceState { return d.state }

// Sampler picks periodic non-match frames for inspection
type Sampler struct {
	Every int64
}

// Sample reports whether frame is on the sampling grid and its sample index
func (s Sampler) Sample(frame int64) (int64, bool) {
	if s.Every <= 0 || frame%s.Every != 0 {
		return 0, false
	}
	return frame / s.Every, true
}

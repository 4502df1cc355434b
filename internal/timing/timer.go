// Package timing provides the sample-tick countdown timer used throughout
// the session engine, terminal, and gateway. Every context in this module
// is driven by an externally supplied sample count rather than wall-clock
// time, so the engine has no dependency on real time and can be single-
// stepped in tests.
package timing

// SampleRate is the virtual clock rate the whole stack is driven at.
const SampleRate = 8000

// Timer is a countdown timer expressed in audio-sample ticks.
// Equivalent in spirit to the teacher's network.Timer, but counts down
// from a deadline instead of up to one, matching the T.30 engine's need
// to ask "how many samples are left" when arming a retry.
type Timer struct {
	timeoutSamples int
	remaining      int
	running        bool
}

// New creates a timer with no timeout armed.
func New() *Timer {
	return &Timer{}
}

// MsToSamples converts milliseconds to samples at SampleRate.
func MsToSamples(ms int) int {
	return ms * SampleRate / 1000
}

// Start arms the timer for the given number of samples.
func (t *Timer) Start(samples int) {
	t.timeoutSamples = samples
	t.remaining = samples
	t.running = samples > 0
}

// StartMs arms the timer for the given number of milliseconds.
func (t *Timer) StartMs(ms int) {
	t.Start(MsToSamples(ms))
}

// Stop cancels the timer without firing it.
func (t *Timer) Stop() {
	t.running = false
	t.remaining = 0
}

// IsRunning reports whether the timer is currently counting down.
func (t *Timer) IsRunning() bool {
	return t.running
}

// Tick advances the timer by samples ticks and reports whether it expired
// on this call (fires exactly once per Start).
func (t *Timer) Tick(samples int) bool {
	if !t.running {
		return false
	}
	t.remaining -= samples
	if t.remaining <= 0 {
		t.running = false
		return true
	}
	return false
}

// RemainingSamples returns how many samples are left, or 0 if not running.
func (t *Timer) RemainingSamples() int {
	if !t.running || t.remaining < 0 {
		return 0
	}
	return t.remaining
}

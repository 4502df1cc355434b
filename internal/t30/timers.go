package t30

import "github.com/dbehnke/gofax/internal/timing"

// Default timer durations in milliseconds (spec.md §4.2 timer set). Named
// T0-T8 as in the T.30 recommendation; gofax keeps T0 and T1 as separate
// timers (the reference engine shares one counter between them) since a
// session struct can afford the extra field and it reads more plainly.
const (
	DefaultTimerT0Ms = 60000 // waiting for initial communication
	DefaultTimerT1Ms = 35000 // waiting for the first command/response
	DefaultTimerT2Ms = 7000  // waiting for a phase B/C/D response
	DefaultTimerT3Ms = 15000 // waiting for operator action between pages
	DefaultTimerT4Ms = 3450  // waiting for a response inside a transmission
	DefaultTimerT5Ms = 65000 // waiting for DCN after PPR (ECM receiver-not-ready)
	DefaultTimerT6Ms = 5000  // waiting for an ECM response
	DefaultTimerT7Ms = 6000  // waiting for the receiver to flush before DCN
	DefaultTimerT8Ms = 10000 // waiting inside a T.38 procedural interrupt
)

// Timers bundles every T.30 timer used by Session, each a countdown
// internal/timing.Timer driven by the caller's Tick calls.
type Timers struct {
	T0, T1, T2, T3, T4, T5, T6, T7, T8 *timing.Timer
}

// NewTimers builds a Timers set with every timer stopped.
func NewTimers() Timers {
	return Timers{
		T0: timing.New(),
		T1: timing.New(),
		T2: timing.New(),
		T3: timing.New(),
		T4: timing.New(),
		T5: timing.New(),
		T6: timing.New(),
		T7: timing.New(),
		T8: timing.New(),
	}
}

func (t *Timers) StopAll() {
	t.T0.Stop()
	t.T1.Stop()
	t.T2.Stop()
	t.T3.Stop()
	t.T4.Stop()
	t.T5.Stop()
	t.T6.Stop()
	t.T7.Stop()
	t.T8.Stop()
}

// Tick advances every running timer by n samples and returns the set of
// timers that expired on this call, for the Session FSM to act on.
func (t *Timers) Tick(n int) (expired []string) {
	if t.T0.Tick(n) {
		expired = append(expired, "T0")
	}
	if t.T1.Tick(n) {
		expired = append(expired, "T1")
	}
	if t.T2.Tick(n) {
		expired = append(expired, "T2")
	}
	if t.T3.Tick(n) {
		expired = append(expired, "T3")
	}
	if t.T4.Tick(n) {
		expired = append(expired, "T4")
	}
	if t.T5.Tick(n) {
		expired = append(expired, "T5")
	}
	if t.T6.Tick(n) {
		expired = append(expired, "T6")
	}
	if t.T7.Tick(n) {
		expired = append(expired, "T7")
	}
	if t.T8.Tick(n) {
		expired = append(expired, "T8")
	}
	return expired
}

package autostop

import "time"

// countdownWindow is the final stretch surfaced to the UI before cutoff.
const countdownWindow = time.Second

// StopReason explains why the timer asked for a stop.
type StopReason string

const (
	StopSilence     StopReason = "silence"
	StopMaxDuration StopReason = "max_duration"
)

// Tick is one evaluation of the timer against a supplied clock reading.
type Tick struct {
	Remaining time.Duration
	Countdown bool
	Fire      bool
	Reason    StopReason
}

// Timer tracks time since last meaningful activity and decides when a
// recording should cut off. It holds no goroutine of its own: the owner
// drives it by calling Tick with the current time, which keeps every
// decision deterministic under test.
type Timer struct {
	threshold   time.Duration
	maxDuration time.Duration

	running      bool
	countdown    bool
	fired        bool
	startedAt    time.Time
	lastActivity time.Time
}

// Start arms the timer for a new session beginning at now.
func (t *Timer) Start(now time.Time, threshold, maxDuration time.Duration) {
	t.threshold = threshold
	t.maxDuration = maxDuration
	t.running = true
	t.countdown = false
	t.fired = false
	t.startedAt = now
	t.lastActivity = now
}

// Reset records meaningful activity and re-arms the silence window with a
// possibly updated (adaptive) threshold. The session-start ceiling is
// unaffected.
func (t *Timer) Reset(now time.Time, threshold time.Duration) {
	if !t.running {
		return
	}
	if threshold > 0 {
		t.threshold = threshold
	}
	t.lastActivity = now
	t.countdown = false
}

// Tick evaluates the timer at now. Fire is reported at most once per
// Start; the caller is expected to Stop synchronously when it handles it.
func (t *Timer) Tick(now time.Time) Tick {
	if !t.running {
		return Tick{}
	}

	idle := now.Sub(t.lastActivity)
	remaining := t.threshold - idle
	if remaining < 0 {
		remaining = 0
	}
	if remaining <= countdownWindow {
		t.countdown = true
	}

	result := Tick{Remaining: remaining, Countdown: t.countdown}
	if t.fired {
		return result
	}

	switch {
	case now.Sub(t.startedAt) > t.maxDuration:
		t.fired = true
		result.Fire = true
		result.Reason = StopMaxDuration
	case idle >= t.threshold:
		t.fired = true
		result.Fire = true
		result.Reason = StopSilence
	}
	return result
}

// Stop disarms the timer. Idempotent.
func (t *Timer) Stop() {
	t.running = false
	t.countdown = false
}

// Running reports whether the timer is armed.
func (t *Timer) Running() bool {
	return t.running
}

// Countdown reports whether the timer is inside the final warning window.
func (t *Timer) Countdown() bool {
	return t.running && t.countdown
}

package timeutil

import "time"

// Stopwatch measures elapsed time under explicit ownership. Each session
// creates its own instance and passes it where needed; there is no shared
// process-wide timer state.
type Stopwatch struct {
	clock   Clock
	start   time.Time
	stopped time.Time
	running bool
}

// NewStopwatch returns a stopped Stopwatch driven by clock.
func NewStopwatch(clock Clock) *Stopwatch {
	return &Stopwatch{clock: clock}
}

// Start begins (or restarts) timing from now. Starting a running stopwatch
// resets its origin.
func (s *Stopwatch) Start() {
	s.start = s.clock.Now()
	s.running = true
}

// Stop freezes the elapsed duration. Stopping an already stopped stopwatch
// is a no-op.
func (s *Stopwatch) Stop() {
	if !s.running {
		return
	}
	s.stopped = s.clock.Now()
	s.running = false
}

// Running reports whether the stopwatch is currently timing.
func (s *Stopwatch) Running() bool {
	return s.running
}

// Elapsed returns the measured duration: live while running, frozen after
// Stop, zero before the first Start.
func (s *Stopwatch) Elapsed() time.Duration {
	if s.running {
		return s.clock.Since(s.start)
	}
	if s.start.IsZero() {
		return 0
	}
	return s.stopped.Sub(s.start)
}

// Reset stops the stopwatch and clears any measured duration.
func (s *Stopwatch) Reset() {
	s.start = time.Time{}
	s.stopped = time.Time{}
	s.running = false
}

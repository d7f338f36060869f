package time

import (
	"strings"
	"time"
)

// ShortDur shortens the string representation of a time.Duration from d.String().
func ShortDur(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = s[:len(s)-2]
	}
	if strings.HasSuffix(s, "h0m") {
		s = s[:len(s)-2]
	}
	return s
}

// Rounded drops precision below a millisecond for durations of a second or more.
func Rounded(d time.Duration) time.Duration {
	if d < time.Second {
		return d
	}
	return d.Round(time.Millisecond)
}

// Stopwatch measures elapsed time from its creation.
type Stopwatch struct {
	start time.Time
	now   func() time.Time
}

// NewStopwatch starts a stopwatch using the wall clock.
func NewStopwatch() *Stopwatch {
	return &Stopwatch{start: time.Now(), now: time.Now}
}

// Elapsed returns the time since the stopwatch was started.
func (s *Stopwatch) Elapsed() time.Duration {
	return s.now().Sub(s.start)
}

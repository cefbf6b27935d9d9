package timekeeper

import (
	"time"
)

// Lap is the time spent in one named step.
type Lap struct {
	Name     string
	Duration time.Duration
}

// Stopwatch measures consecutive pipeline steps. It is not safe for concurrent use.
type Stopwatch struct {
	now        func() time.Time
	start      time.Time
	checkpoint time.Time
	laps       []Lap
}

func NewStopwatch() *Stopwatch {
	return NewStopwatchWithClock(time.Now)
}

func NewStopwatchWithClock(now func() time.Time) *Stopwatch {
	// time.Now carries the monotonic clock, so deltas are safe against wallclock jumps
	t := now()
	return &Stopwatch{now: now, start: t, checkpoint: t}
}

// Lap closes the current step under name and starts the next one.
func (s *Stopwatch) Lap(name string) time.Duration {
	t := s.now()
	d := t.Sub(s.checkpoint)
	s.checkpoint = t
	s.laps = append(s.laps, Lap{Name: name, Duration: d})
	return d
}

// Laps returns the closed steps in order.
func (s *Stopwatch) Laps() []Lap {
	return append([]Lap(nil), s.laps...)
}

// Total is the time since the stopwatch was created.
func (s *Stopwatch) Total() time.Duration {
	return s.now().Sub(s.start)
}

// KeyValues flattens the laps for structured logging: name, duration pairs.
func (s *Stopwatch) KeyValues() []interface{} {
	kv := make([]interface{}, 0, 2*len(s.laps)+2)
	for _, lap := range s.laps {
		kv = append(kv, lap.Name, lap.Duration.String())
	}
	return append(kv, "total", s.Total().String())
}

package notify

import (
	"fmt"
	"time"
)

// NightWindow is a daily time span, possibly wrapping midnight, during which
// translators who opted out of night pushes get them delayed.
type NightWindow struct {
	Start    time.Duration // offset from local midnight
	End      time.Duration
	Location *time.Location
}

// DefaultNightWindow is 22:00 to 07:00
func DefaultNightWindow(loc *time.Location) NightWindow {
	return NightWindow{Start: 22 * time.Hour, End: 7 * time.Hour, Location: loc}
}

// ParseNightWindow builds a window from "HH:MM" strings
func ParseNightWindow(start, end string, loc *time.Location) (NightWindow, error) {
	s, err := parseClock(start)
	if err != nil {
		return NightWindow{}, fmt.Errorf("invalid night start: %w", err)
	}
	e, err := parseClock(end)
	if err != nil {
		return NightWindow{}, fmt.Errorf("invalid night end: %w", err)
	}
	return NightWindow{Start: s, End: e, Location: loc}, nil
}

func parseClock(v string) (time.Duration, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func (w NightWindow) local(t time.Time) (time.Time, time.Duration) {
	if w.Location != nil {
		t = t.In(w.Location)
	}
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return midnight, t.Sub(midnight)
}

// Contains reports whether t falls inside the window
func (w NightWindow) Contains(t time.Time) bool {
	if w.Start == w.End {
		return false
	}
	_, offset := w.local(t)
	if w.Start < w.End {
		return offset >= w.Start && offset < w.End
	}
	return offset >= w.Start || offset < w.End
}

// NextEnd returns the first end of the window strictly after t
func (w NightWindow) NextEnd(t time.Time) time.Time {
	midnight, offset := w.local(t)
	end := midnight.Add(w.End)
	if offset >= w.End {
		end = time.Date(midnight.Year(), midnight.Month(), midnight.Day()+1, 0, 0, 0, 0, midnight.Location()).Add(w.End)
	}
	return end
}

// Package calendar computes working-time intervals from shift definitions,
// breaks, and holidays, and places a duration of work on the resulting
// calendar starting no earlier than a given instant.
//
// All arithmetic happens in a single configured local time.Location;
// instants crossing the persistence boundary are ISO-8601 and are
// converted to/from that Location at the edges (snapshot load / plan
// apply), never inside this package.
package calendar

import (
	"errors"
	"fmt"
	"iter"
	"sort"
	"time"

	"printflow-scheduler/internal/domain"
)

// DefaultHorizonDays bounds how many days NextWorkingStart and PlaceDuration
// will look ahead before giving up. Large enough to cross any single holiday/weekend run, but
// bounded so a misconfigured calendar (e.g. all days non-working) fails
// fast instead of iterating forever.
const DefaultHorizonDays = 370

// ErrHorizonExhausted is returned by PlaceDuration and NextWorkingStart when
// no working time is found within the horizon.
var ErrHorizonExhausted = errors.New("calendar: horizon exhausted before placing required minutes")

// Interval is a half-open working-time window [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Minutes returns the interval's length in whole minutes.
func (iv Interval) Minutes() int {
	return int(iv.End.Sub(iv.Start).Round(time.Minute) / time.Minute)
}

type shiftWindow struct {
	startMin int // minutes since local midnight
	endMin   int
}

type breakWindow struct {
	startMin int
	minutes  int
}

// Calendar holds shift, break, and holiday definitions for one Location.
type Calendar struct {
	loc        *time.Location
	shifts     map[time.Weekday][]shiftWindow
	breaks     []breakWindow
	holidays   map[string]struct{} // "YYYY-MM-DD" keys, in loc
	horizonDay int
}

// SetHorizonDays overrides the default lookahead (DefaultHorizonDays) used
// by NextWorkingStart and PlaceDuration.
func (c *Calendar) SetHorizonDays(days int) {
	if days > 0 {
		c.horizonDay = days
	}
}

// New builds a Calendar from shift/break/holiday rows. Multiple active
// shifts for one weekday are kept and unioned when computing DailyWindows;
// a shift with end <= start is dropped (no overnight shifts); a break
// outside all shifts of the day simply clips nothing.
func New(loc *time.Location, shifts []domain.Shift, breaks []domain.Break, holidays []domain.Holiday) (*Calendar, error) {
	if loc == nil {
		return nil, errors.New("calendar: location is required")
	}
	c := &Calendar{
		loc:        loc,
		shifts:     make(map[time.Weekday][]shiftWindow),
		holidays:   make(map[string]struct{}, len(holidays)),
		horizonDay: DefaultHorizonDays,
	}
	for _, s := range shifts {
		if !s.IsWorkingDay {
			continue
		}
		startMin, err := parseHHMM(s.StartTime)
		if err != nil {
			return nil, fmt.Errorf("calendar: shift start: %w", err)
		}
		endMin, err := parseHHMM(s.EndTime)
		if err != nil {
			return nil, fmt.Errorf("calendar: shift end: %w", err)
		}
		if endMin <= startMin {
			continue // no overnight shifts in this version
		}
		c.shifts[s.Weekday] = append(c.shifts[s.Weekday], shiftWindow{startMin: startMin, endMin: endMin})
	}
	for _, b := range breaks {
		startMin, err := parseHHMM(b.StartTime)
		if err != nil {
			return nil, fmt.Errorf("calendar: break start: %w", err)
		}
		if b.Minutes < 0 {
			continue
		}
		c.breaks = append(c.breaks, breakWindow{startMin: startMin, minutes: b.Minutes})
	}
	for _, h := range holidays {
		c.holidays[dateKey(h.Date)] = struct{}{}
	}
	return c, nil
}

func parseHHMM(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid HH:MM %q: %w", s, err)
	}
	return h*60 + m, nil
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// IsWorkingDay reports whether day has at least one active shift and is not
// a holiday.
func (c *Calendar) IsWorkingDay(day time.Time) bool {
	day = day.In(c.loc)
	if _, holiday := c.holidays[dateKey(day)]; holiday {
		return false
	}
	return len(c.shifts[day.Weekday()]) > 0
}

// DailyWindows returns the disjoint working intervals for day's local date,
// sorted ascending, built by unioning that weekday's shifts and subtracting
// every break that overlaps them. Empty if day is not a working day.
func (c *Calendar) DailyWindows(day time.Time) []Interval {
	day = day.In(c.loc)
	if !c.IsWorkingDay(day) {
		return nil
	}
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, c.loc)

	windows := c.shifts[day.Weekday()]
	raw := make([]Interval, 0, len(windows))
	for _, w := range windows {
		raw = append(raw, Interval{
			Start: midnight.Add(time.Duration(w.startMin) * time.Minute),
			End:   midnight.Add(time.Duration(w.endMin) * time.Minute),
		})
	}
	sort.Slice(raw, func(i, j int) bool { return raw[i].Start.Before(raw[j].Start) })
	merged := mergeIntervals(raw)

	for _, b := range c.breaks {
		bStart := midnight.Add(time.Duration(b.startMin) * time.Minute)
		bEnd := bStart.Add(time.Duration(b.minutes) * time.Minute)
		merged = subtractInterval(merged, Interval{Start: bStart, End: bEnd})
	}
	return merged
}

func mergeIntervals(sorted []Interval) []Interval {
	if len(sorted) == 0 {
		return nil
	}
	out := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// subtractInterval clips or splits every window that overlaps cut.
func subtractInterval(windows []Interval, cut Interval) []Interval {
	if cut.End.Before(cut.Start) || cut.End.Equal(cut.Start) {
		return windows
	}
	out := make([]Interval, 0, len(windows))
	for _, w := range windows {
		if cut.End.Before(w.Start) || !cut.Start.Before(w.End) {
			// entirely outside w: cut before w, or cut starts at/after w.End
			if !cut.Start.Before(w.End) || !cut.End.After(w.Start) {
				out = append(out, w)
				continue
			}
		}
		// left remainder
		if cut.Start.After(w.Start) {
			left := Interval{Start: w.Start, End: minTime(cut.Start, w.End)}
			if left.End.After(left.Start) {
				out = append(out, left)
			}
		}
		// right remainder
		if cut.End.Before(w.End) {
			right := Interval{Start: maxTime(cut.End, w.Start), End: w.End}
			if right.End.After(right.Start) {
				out = append(out, right)
			}
		}
	}
	return out
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// IterateWorkingWindows yields DailyWindows for each date starting at from's
// local date, clipping the first emitted window's start to max(windowStart,
// from) and skipping windows that end at or before from, up to horizonDays.
func (c *Calendar) IterateWorkingWindows(from time.Time, horizonDays int) iter.Seq[Interval] {
	from = from.In(c.loc)
	return func(yield func(Interval) bool) {
		day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, c.loc)
		for i := 0; i < horizonDays; i++ {
			for _, w := range c.DailyWindows(day) {
				if !w.End.After(from) {
					continue
				}
				if w.Start.Before(from) {
					w.Start = from
				}
				if !yield(w) {
					return
				}
			}
			day = day.AddDate(0, 0, 1)
		}
	}
}

// NextWorkingStart returns the start of the first working interval at or
// after from.
func (c *Calendar) NextWorkingStart(from time.Time) (time.Time, error) {
	for w := range c.IterateWorkingWindows(from, c.horizonDay) {
		return w.Start, nil
	}
	return time.Time{}, ErrHorizonExhausted
}

// PlaceDuration returns the ordered working-time segments that collectively
// contain exactly ceil(minutes) minutes of work starting no earlier than
// earliest. minutes must already be a non-negative integer count of minutes
// (callers round up sub-minute durations before calling).
func (c *Calendar) PlaceDuration(earliest time.Time, minutes int) ([]Interval, error) {
	if minutes <= 0 {
		start, err := c.NextWorkingStart(earliest)
		if err != nil {
			return nil, err
		}
		return []Interval{{Start: start, End: start}}, nil
	}
	remaining := time.Duration(minutes) * time.Minute
	var segments []Interval
	for w := range c.IterateWorkingWindows(earliest, c.horizonDay) {
		avail := w.End.Sub(w.Start)
		if avail <= 0 {
			continue
		}
		if avail >= remaining {
			segments = append(segments, Interval{Start: w.Start, End: w.Start.Add(remaining)})
			remaining = 0
			break
		}
		segments = append(segments, w)
		remaining -= avail
	}
	if remaining > 0 {
		return nil, ErrHorizonExhausted
	}
	return segments, nil
}

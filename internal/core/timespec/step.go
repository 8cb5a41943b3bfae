package timespec

import "time"

// Unit is a step unit letter as accepted on the command line.
type Unit rune

const (
	UnitSecond Unit = 's'
	UnitMinute Unit = 'm'
	UnitHour   Unit = 'h'
	UnitDay    Unit = 'D'
	UnitMonth  Unit = 'M'
	UnitYear   Unit = 'Y'
)

func (u Unit) String() string {
	switch u {
	case UnitSecond:
		return "second"
	case UnitMinute:
		return "minute"
	case UnitHour:
		return "hour"
	case UnitDay:
		return "day"
	case UnitMonth:
		return "month"
	case UnitYear:
		return "year"
	default:
		return "unknown"
	}
}

// Step is a signed time delta. The sign sets the iteration direction.
type Step struct {
	Magnitude int
	Unit      Unit
}

// Forward reports whether the step moves toward the future.
func (s Step) Forward() bool {
	return s.Magnitude > 0
}

// Apply returns origin advanced by count steps. Month and year steps are
// computed from the origin rather than iteratively, so the day-of-month
// anchor survives an intermediate short month: Jan 31 stepped by +1M twice
// yields Feb 28 then Mar 31, not Mar 28.
func (s Step) Apply(origin time.Time, count int) time.Time {
	n := s.Magnitude * count
	switch s.Unit {
	case UnitSecond:
		return origin.Add(time.Duration(n) * time.Second)
	case UnitMinute:
		return origin.Add(time.Duration(n) * time.Minute)
	case UnitHour:
		return origin.Add(time.Duration(n) * time.Hour)
	case UnitDay:
		return origin.AddDate(0, 0, n)
	case UnitMonth:
		return addMonths(origin, n)
	case UnitYear:
		return addMonths(origin, 12*n)
	default:
		return origin
	}
}

// addMonths is calendar-aware month addition with end-of-month clamping.
// time.Time.AddDate normalizes Jan 31 + 1 month into Mar 2/3; users asking
// for "one month later" expect the last valid day of February instead.
func addMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	first = first.AddDate(0, months, 0)
	if last := daysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

package timespec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	absoluteDateRe = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`)
	offsetRe       = regexp.MustCompile(`^([+-]?\d+)([smhDMY])$`)
)

// ParseTime converts a time expression into an absolute point in time.
// Recognized grammars:
//
//	now            the supplied reference time
//	DD-MM-YYYY     an absolute calendar date (midnight, reference location)
//	[+|-]N<unit>   an offset from the reference time, unit letters s m h D M Y
//
// Relative expressions are reference-point dependent: ParseTime("-1D", now)
// is now minus one calendar day.
func ParseTime(expr string, now time.Time) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	if strings.EqualFold(expr, "now") {
		return now, nil
	}

	if m := absoluteDateRe.FindStringSubmatch(expr); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if month < 1 || month > 12 || day < 1 || day > daysInMonth(year, time.Month(month)) {
			return time.Time{}, fmt.Errorf("%w: impossible date %q", ErrInvalidTimeExpression, expr)
		}
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location()), nil
	}

	if m := offsetRe.FindStringSubmatch(expr); m != nil {
		step, err := parseOffset(m[1], m[2])
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimeExpression, expr)
		}
		return step.Apply(now, 1), nil
	}

	return time.Time{}, fmt.Errorf("%w: %q (want now, DD-MM-YYYY, or an offset like -7D)", ErrInvalidTimeExpression, expr)
}

// ParseStep converts a step expression like "1D" or "-30m" into a Step.
// Zero magnitudes are rejected: a zero step never reaches the end of the
// range.
func ParseStep(expr string) (Step, error) {
	m := offsetRe.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return Step{}, fmt.Errorf("%w: %q (want <signed integer><unit>, units s m h D M Y)", ErrInvalidStepExpression, expr)
	}
	step, err := parseOffset(m[1], m[2])
	if err != nil {
		return Step{}, fmt.Errorf("%w: %q", ErrInvalidStepExpression, expr)
	}
	if step.Magnitude == 0 {
		return Step{}, fmt.Errorf("%w: zero magnitude", ErrInvalidStepExpression)
	}
	return step, nil
}

func parseOffset(magnitude, unit string) (Step, error) {
	n, err := strconv.Atoi(magnitude)
	if err != nil {
		return Step{}, err
	}
	return Step{Magnitude: n, Unit: Unit(unit[0])}, nil
}

package timespec

import (
	"fmt"
	"time"
)

// MaxSequenceLength caps the number of generated timestamps so a mistyped
// step (say, 1s across a decade) fails fast instead of queueing hundreds of
// millions of requests.
const MaxSequenceLength = 100000

// Sequence generates the ordered timestamps to query: from, from+step,
// from+2*step, ... including the last point that has not passed to. The
// boundary is inclusive: when a step lands exactly on to, to is the final
// element.
//
// The step must point from from toward to, otherwise ErrInvalidRange.
// from == to is valid for either sign and yields exactly one timestamp.
func Sequence(from, to time.Time, step Step) ([]time.Time, error) {
	if step.Magnitude == 0 {
		return nil, fmt.Errorf("%w: zero magnitude", ErrInvalidStepExpression)
	}
	if step.Forward() {
		if to.Before(from) {
			return nil, fmt.Errorf("%w: positive step %d%c with end before start", ErrInvalidRange, step.Magnitude, step.Unit)
		}
	} else {
		if to.After(from) {
			return nil, fmt.Errorf("%w: negative step %d%c with end after start", ErrInvalidRange, step.Magnitude, step.Unit)
		}
	}

	var seq []time.Time
	for i := 0; ; i++ {
		t := step.Apply(from, i)
		if passed(t, to, step.Forward()) {
			break
		}
		if len(seq) >= MaxSequenceLength {
			return nil, fmt.Errorf("%w: more than %d steps between %s and %s",
				ErrRangeTooLarge, MaxSequenceLength, from.Format(time.RFC3339), to.Format(time.RFC3339))
		}
		seq = append(seq, t)
	}
	return seq, nil
}

func passed(t, boundary time.Time, forward bool) bool {
	if forward {
		return t.After(boundary)
	}
	return t.Before(boundary)
}

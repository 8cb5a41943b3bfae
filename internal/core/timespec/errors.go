package timespec

import "errors"

var (
	// ErrInvalidTimeExpression is returned when a from/to argument matches
	// none of the recognized grammars (now, DD-MM-YYYY, signed offset).
	ErrInvalidTimeExpression = errors.New("invalid time expression")
	// ErrInvalidStepExpression is returned for a zero-magnitude step or an
	// unrecognized unit letter.
	ErrInvalidStepExpression = errors.New("invalid step expression")
	// ErrInvalidRange is returned when the step's sign moves away from the
	// end of the range.
	ErrInvalidRange = errors.New("step direction does not reach the end time")
	// ErrRangeTooLarge is returned when the range/step combination would
	// produce more timestamps than MaxSequenceLength.
	ErrRangeTooLarge = errors.New("range produces too many timestamps")
)

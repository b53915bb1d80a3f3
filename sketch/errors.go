package sketch

import "errors"

var (
	ErrIncompatibleResolution = errors.New("sketches have different resolution levels")
	ErrInvalidQuantile        = errors.New("quantile must be within [0, 1]")
	ErrEmptySketch            = errors.New("sketch has no observations")
	ErrValueOutOfRange        = errors.New("value outside of the sketch domain")
	ErrCorruptSnapshot        = errors.New("corrupt sketch snapshot")
)

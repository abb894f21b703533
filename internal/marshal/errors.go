package marshal

import "errors"

var (
	ErrDimLengthConflict   = errors.New("marshal: conflicting dimension lengths")
	ErrUnexpectedDimension = errors.New("marshal: unexpected dimension")
	ErrUnknownDimLength    = errors.New("marshal: dimension length unknown")
	ErrUnitConversion      = errors.New("marshal: unit conversion failed")
	ErrShapeRestore        = errors.New("marshal: cannot restore shape")
	ErrOutputDimsUnknown   = errors.New("marshal: output dims unknown")
)

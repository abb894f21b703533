package units

import "errors"

var (
	// ErrUnrecognizedUnit indicates a unit expression that could not be parsed
	// against the registry's definitions.
	ErrUnrecognizedUnit = errors.New("units: unrecognized unit")

	// ErrIncompatibleUnits indicates a conversion between units of different
	// dimensionality (e.g. a length to a velocity).
	ErrIncompatibleUnits = errors.New("units: incompatible units")

	// ErrOffsetUnitInCompound indicates an offset-scale unit (degC, degF) used
	// with an exponent or alongside other factors, where the affine conversion
	// is not defined.
	ErrOffsetUnitInCompound = errors.New("units: offset unit in compound expression")

	// ErrBadDefinition indicates an invalid name or definition passed to Register.
	ErrBadDefinition = errors.New("units: bad unit definition")
)

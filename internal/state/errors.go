package state

import "errors"

var (
	ErrDimsMismatch    = errors.New("state: dims mismatch")
	ErrMissingQuantity = errors.New("state: missing quantity")
)

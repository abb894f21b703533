package props

import "errors"

var (
	ErrInvalidDeclaration = errors.New("props: invalid property declaration")
	ErrIncompatibleDims   = errors.New("props: incompatible dims")
)

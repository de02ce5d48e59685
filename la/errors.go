package la

import "errors"

var (
	ErrNotAssembled       = errors.New("la: object not assembled")
	ErrDestroyed          = errors.New("la: object destroyed")
	ErrDimension          = errors.New("la: dimension mismatch")
	ErrCollectiveMismatch = errors.New("la: collective call mismatch")
	ErrAborted            = errors.New("la: world aborted")
	ErrSingular           = errors.New("la: singular matrix")
)

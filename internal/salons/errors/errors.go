package errors

import "errors"

var (
	ErrNotFound  = errors.New("salon not found")
	ErrInvalidID = errors.New("invalid salon id")
)

package session

import "errors"

var (
	ErrInvalidMode    = errors.New("invalid mode")
	ErrUnknownSetting = errors.New("unknown setting")
	ErrInvalidValue   = errors.New("invalid value")
	ErrOutOfRange     = errors.New("value out of range")
)

package types

import "errors"

var (
	ErrInvalidEnvelope  = errors.New("invalid envelope")
	ErrMissingEventName = errors.New("envelope missing event name")
	ErrUnknownEvent     = errors.New("unknown event")
	ErrInvalidPayload   = errors.New("invalid payload")
)

package domain

import "errors"

var (
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")
	ErrInvalidDate            = errors.New("invalid date")
	ErrUnknownEventType       = errors.New("unknown event type")
)

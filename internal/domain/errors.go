package domain

import "errors"

var (
	ErrUnknownStatus    = errors.New("unknown booking status")
	ErrNoActor          = errors.New("no signed-in actor")
	ErrNotFound         = errors.New("booking not found")
	ErrActionNotAllowed = errors.New("action not allowed for booking status")
)

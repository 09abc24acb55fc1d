package domain

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("product not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

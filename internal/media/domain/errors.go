package domain

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("media not found")
	ErrTooLarge     = errors.New("file too large")
)

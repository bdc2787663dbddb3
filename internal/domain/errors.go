package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateHandle   = errors.New("username already exists")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

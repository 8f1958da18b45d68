package models

import "errors"

var (
	ErrNotFound     = errors.New("notification not found")
	ErrUpstream     = errors.New("notification store unavailable")
	ErrInvalidInput = errors.New("invalid input")
)

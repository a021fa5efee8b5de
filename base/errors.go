package base

import (
	"errors"
)

// Errors of analysis requests
var (
	ErrInvalidPattern    = errors.New("invalid pattern")
	ErrEmptyRange        = errors.New("empty range")
	ErrChunkMatchFailure = errors.New("chunk match failure")
	ErrSourceShrank      = errors.New("source shrank")
	ErrUnknownRequest    = errors.New("unknown request")
	ErrConsumerGone      = errors.New("consumer gone")
)

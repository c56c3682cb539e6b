package wire

import "errors"

// Decode errors per spec.md §4.1: decoders must never read past the
// declared frame boundary and must fail explicitly rather than panic.
var (
	ErrTruncatedFrame    = errors.New("wire: truncated frame")
	ErrUnknownMessageType = errors.New("wire: unknown message type")
	ErrInvalidString     = errors.New("wire: invalid string (bad UTF-8 or length overrun)")
)

package nativemsg

import (
	"errors"
	"fmt"
)

// FramingError reports a complete frame whose payload is not valid JSON.
// The stream stays in sync: the bad frame has already been consumed.
type FramingError struct {
	Length uint32
	Err    error
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("framing error: %d-byte frame is not valid JSON: %v", e.Length, e.Err)
}

func (e *FramingError) Unwrap() error { return e.Err }

// FrameTooLargeError reports a length prefix above the configured limit.
type FrameTooLargeError struct {
	Length uint32
	Max    uint32
}

func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("framing error: message too large: %d bytes (max %d)", e.Length, e.Max)
}

// EncodingError reports a value that could not be turned into a frame.
type EncodingError struct {
	Size int
	Err  error
}

func (e *EncodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("encoding error: %v", e.Err)
	}
	return fmt.Sprintf("encoding error: message too large: %d bytes (max %d)", e.Size, MaxOutgoingSize)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// IsFramingError reports whether err is one of the framing errors.
func IsFramingError(err error) bool {
	var fe *FramingError
	var tl *FrameTooLargeError
	return errors.As(err, &fe) || errors.As(err, &tl)
}

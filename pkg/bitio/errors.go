package bitio

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedStream = errors.New("malformed bit stream")
	ErrValueOutOfRange = errors.New("value out of range for code")
	ErrUnknownCode     = errors.New("unknown code kind")
)

// MalformedStreamError reports a stream that ran out of bits in the middle of
// a code, or a code prefix that cannot be valid for the declared code.
type MalformedStreamError struct {
	Offset uint64 // bit position where the failing read started
	Code   string
	Reason string
}

func (e *MalformedStreamError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("malformed bit stream at bit %d: %s", e.Offset, e.Reason)
	}
	return fmt.Sprintf("malformed bit stream at bit %d (%s): %s", e.Offset, e.Code, e.Reason)
}

func (e *MalformedStreamError) Is(target error) bool {
	return target == ErrMalformedStream
}

func malformed(offset uint64, code, reason string) error {
	return &MalformedStreamError{Offset: offset, Code: code, Reason: reason}
}

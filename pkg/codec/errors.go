package codec

import (
	"errors"
	"fmt"
)

var ErrEncoding = errors.New("encoding invariant violated")

// EncodingError reports an internal invariant violation during encoding, such
// as a reference to a node that has not been written. It is never caused by
// user input and indicates a bug.
type EncodingError struct {
	Node   int
	Reason string
	Err    error
}

func (e *EncodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("encoding node %d: %s: %v", e.Node, e.Reason, e.Err)
	}
	return fmt.Sprintf("encoding node %d: %s", e.Node, e.Reason)
}

func (e *EncodingError) Unwrap() error { return e.Err }

func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrStreamClosed   = errors.New("stream closed by driver")
	ErrInvalidInteger = errors.New("invalid integer")
	ErrInvalidName    = errors.New("invalid call name")
)

// ProtocolError reports a response the driver should never have sent:
// a premature end of stream, a malformed token or an unsupported feature.
type ProtocolError struct {
	Field string
	Err   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: reading %s: %v", e.Field, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

package rpc

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned for calls made before the endpoint was discovered.
var ErrNotInitialized = errors.New("rpc client is not initialized")

// TransportError is a connection-level failure: dial, TLS-less handshake, reset, timeout.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is a non-200 response. Body is included verbatim.
type ProtocolError struct {
	Method string
	Status int
	Body   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Method, e.Status, e.Body)
}

// DecodeError is returned when a caller asks for a structured reply and
// the body does not fit. Body keeps the raw bytes.
type DecodeError struct {
	Method string
	Body   []byte
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode reply: %v", e.Method, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is (or wraps) a TransportError.
func IsTransportError(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// IsProtocolError reports whether err is (or wraps) a ProtocolError.
func IsProtocolError(err error) bool {
	var target *ProtocolError
	return errors.As(err, &target)
}

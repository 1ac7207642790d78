package dispatch

import "fmt"

// ProtocolError is a malformed or out-of-place client message. The client
// gets an error reply and stays connected.
type ProtocolError struct {
	Type string
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("bad %q message: %v", e.Type, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func protocolErrorf(msgType, format string, args ...any) error {
	return &ProtocolError{Type: msgType, Err: fmt.Errorf(format, args...)}
}

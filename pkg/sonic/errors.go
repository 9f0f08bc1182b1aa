package sonic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/gorilla/websocket"
)

// Common errors returned by the session engine.
var (
	ErrNotConnected   = errors.New("sonic: not connected")
	ErrSessionClosed  = errors.New("sonic: session closed")
	ErrAudioInputOpen = errors.New("sonic: audio input content block already open")
	ErrMissingCreds   = errors.New("sonic: AWS credentials not found")
)

// ConnectionError indicates connect-time failure (credentials or network).
// It is fatal: callers must not retry.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("sonic: connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError indicates a malformed or out-of-order inbound event.
// The receive loop logs these and keeps going.
type ProtocolError struct {
	Event  string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("sonic: protocol error in %q: %s", e.Event, e.Reason)
}

// isExpectedTeardown reports whether err is the kind of transport failure
// that is normal during shutdown and should be suppressed.
func isExpectedTeardown(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, context.Canceled) {
		return true
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		return true
	}
	return strings.Contains(err.Error(), "use of closed network connection")
}

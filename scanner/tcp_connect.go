package scanner

import (
	"errors"
	"net"
	"strings"
	"syscall"
	"time"
)

// State classifies a probe outcome.
type State int

const (
	StateOpen State = iota
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "error"
	}
}

// Reason narrows down why a probe ended in StateError.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonTimeout   Reason = "timeout"
	ReasonTransport Reason = "transport"
)

// Outcome is the result of a single probe attempt.
type Outcome struct {
	Port   uint16
	State  State
	Reason Reason
	Err    error
}

// Open reports an accepted connection.
func Open(port uint16) Outcome {
	return Outcome{Port: port, State: StateOpen}
}

// Closed reports an actively refused connection.
func Closed(port uint16) Outcome {
	return Outcome{Port: port, State: StateClosed}
}

// Failed reports a timeout or transport error.
func Failed(port uint16, reason Reason, err error) Outcome {
	return Outcome{Port: port, State: StateError, Reason: reason, Err: err}
}

// Prober performs one connection attempt. Implementations must report every
// failure through the returned Outcome; they are called from unsupervised
// worker goroutines.
type Prober interface {
	Probe(target Target, timeout time.Duration) Outcome
}

// ProberFunc adapts a plain function to the Prober interface.
type ProberFunc func(target Target, timeout time.Duration) Outcome

// Probe calls f.
func (f ProberFunc) Probe(target Target, timeout time.Duration) Outcome {
	return f(target, timeout)
}

// TCPProber performs a full TCP three-way handshake and closes the connection
// as soon as it is established. The zero value is ready to use.
type TCPProber struct {
	// LocalAddr optionally pins the source address of outgoing connections.
	LocalAddr net.Addr
}

// Probe dials target once. Open means the handshake completed, Closed means
// the peer answered with RST.
func (p TCPProber) Probe(target Target, timeout time.Duration) Outcome {
	d := net.Dialer{Timeout: timeout, LocalAddr: p.LocalAddr}
	conn, err := d.Dial("tcp", target.Address())
	if err != nil {
		return classifyDialError(target.Port, err)
	}
	_ = conn.Close()
	return Open(target.Port)
}

func classifyDialError(port uint16, err error) Outcome {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Failed(port, ReasonTimeout, err)
	}
	if isConnectionRefused(err) {
		return Closed(port)
	}
	return Failed(port, ReasonTransport, err)
}

// isConnectionRefused reports whether err carries an RST from the peer.
func isConnectionRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	// Windows surfaces WSAECONNREFUSED without mapping it to ECONNREFUSED.
	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "actively refused")
}

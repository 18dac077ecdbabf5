package realtime

// State is the connection manager's position in its lifecycle
type State int

const (
	// StateDisconnected: no transport and no reconnect pending
	StateDisconnected State = iota
	// StateConnecting: a dial is in flight
	StateConnecting
	// StateConnected: transport open, no identity
	StateConnected
	// StateAuthenticating: authenticate sent, awaiting reply
	StateAuthenticating
	// StateAuthenticated: transport open with an identity
	StateAuthenticated
	// StateBackoff: waiting for the next reconnect attempt
	StateBackoff
	// StateFailed: reconnect attempts exhausted; only Connect resumes
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateBackoff:
		return "backoff"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsOpen reports whether the transport is up, authenticated or not.
// Sends are allowed in every open state.
func (s State) IsOpen() bool {
	return s == StateConnected || s == StateAuthenticating || s == StateAuthenticated
}

func (s State) isActive() bool {
	return s == StateConnecting || s.IsOpen()
}

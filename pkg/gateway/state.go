package gateway

import "fmt"

// ShardID identifies one partition of the gateway event stream.
// Index is zero-based; Count is the total number of shards in the set.
// Assigned at session creation and immutable afterwards.
type ShardID struct {
	Index int
	Count int
}

// String returns the conventional "index/count" form.
func (id ShardID) String() string {
	return fmt.Sprintf("%d/%d", id.Index, id.Count)
}

// Status is the lifecycle state of a shard session.
type Status int

const (
	// StatusDisconnected is the initial state, before the first dial and
	// between reconnect attempts once the backoff delay has been decided.
	StatusDisconnected Status = iota

	// StatusConnecting means a dial is in flight.
	StatusConnecting

	// StatusAwaitingHello means the connection is up and the shard is
	// waiting for the server's Hello envelope.
	StatusAwaitingHello

	// StatusIdentifying means a fresh identify has been or is about to be
	// sent (possibly waiting on the identify gate).
	StatusIdentifying

	// StatusResuming means a resume for a prior session has been sent.
	StatusResuming

	// StatusConnected is steady state: dispatches flow and heartbeats are
	// exchanged.
	StatusConnected

	// StatusReconnecting means the connection was lost and the shard is
	// waiting out its backoff delay before dialing again.
	StatusReconnecting

	// StatusClosed is final: explicit shutdown or a fatal error.
	StatusClosed
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnecting:
		return "Connecting"
	case StatusAwaitingHello:
		return "AwaitingHello"
	case StatusIdentifying:
		return "Identifying"
	case StatusResuming:
		return "Resuming"
	case StatusConnected:
		return "Connected"
	case StatusReconnecting:
		return "Reconnecting"
	case StatusClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// SessionState is a snapshot of a shard's resumable session continuity.
// Seq is -1 when no dispatch has been seen. SessionID and ResumeURL are
// empty until a successful identify; all three are cleared together on a
// non-resumable failure.
type SessionState struct {
	Seq       int64
	SessionID string
	ResumeURL string
}

// CanResume returns true if the state identifies a resumable session.
func (st SessionState) CanResume() bool {
	return st.SessionID != ""
}

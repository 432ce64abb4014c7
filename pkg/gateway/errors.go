package gateway

import (
	"errors"
	"fmt"

	"github.com/accord-dev/accord/pkg/protocol"
)

// Sentinel errors for conditions that end a shard for good.
var (
	// ErrAuthenticationFailed means the platform rejected the token.
	// The shard stays closed; retrying cannot help.
	ErrAuthenticationFailed = errors.New("gateway: authentication failed")

	// ErrShardConfig means the platform rejected the shard id/count
	// (invalid shard, or sharding is required and the count is too low).
	ErrShardConfig = errors.New("gateway: shard configuration rejected")

	// ErrProtocolViolation means the server sent an envelope the session
	// state machine does not allow (for example a sequenced dispatch before
	// the session was ready). The connection is discarded and the next
	// attempt is a fresh identify.
	ErrProtocolViolation = errors.New("gateway: protocol violation")

	// ErrNotConnected is returned when an outbound send is attempted while
	// the shard is not in the Connected state.
	ErrNotConnected = errors.New("gateway: shard not connected")

	// ErrManagerClosed is returned when starting a manager that was
	// already shut down.
	ErrManagerClosed = errors.New("gateway: manager closed")
)

// ShardError wraps an error with the shard and close context needed to
// diagnose it.
type ShardError struct {
	Shard ShardID
	Code  protocol.CloseCode // zero when the failure was not a close frame
	Err   error
}

// Error returns the error message with shard context.
func (e *ShardError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("gateway: shard %s: close %d (%s): %v", e.Shard, int(e.Code), e.Code, e.Err)
	}
	return fmt.Sprintf("gateway: shard %s: %v", e.Shard, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ShardError) Unwrap() error {
	return e.Err
}

// fatalSentinel maps a fatal close code to the sentinel callers match on.
func fatalSentinel(code protocol.CloseCode) error {
	switch code {
	case protocol.CloseAuthenticationFailed:
		return ErrAuthenticationFailed
	case protocol.CloseInvalidShard, protocol.CloseShardingRequired:
		return ErrShardConfig
	default:
		return fmt.Errorf("gateway: fatal close: %s", code)
	}
}

package protocol

// CloseCode is a numeric close reason reported when the gateway connection ends.
// The platform uses codes in the 4000 range; standard WebSocket close codes
// (1000, 1001, 1006, ...) also appear on network-level disconnects.
type CloseCode int

const (
	CloseUnknownError          CloseCode = 4000 // Something went wrong server-side
	CloseUnknownOpcode         CloseCode = 4001 // Client sent an invalid opcode
	CloseDecodeError           CloseCode = 4002 // Client sent a malformed payload
	CloseNotAuthenticated      CloseCode = 4003 // Payload sent before identifying
	CloseAuthenticationFailed  CloseCode = 4004 // Invalid token in identify
	CloseAlreadyAuthenticated  CloseCode = 4005 // More than one identify on a connection
	CloseInvalidSequence       CloseCode = 4007 // Invalid seq in resume
	CloseRateLimited           CloseCode = 4008 // Payloads sent too quickly
	CloseSessionTimeout        CloseCode = 4009 // Session timed out
	CloseInvalidShard          CloseCode = 4010 // Invalid shard in identify
	CloseShardingRequired      CloseCode = 4011 // Session would handle too many guilds
	CloseInvalidAPIVersion     CloseCode = 4012 // Invalid gateway version
	CloseInvalidCapabilities   CloseCode = 4013 // Invalid capability flags
	CloseDisallowedCapability  CloseCode = 4014 // Capability not enabled for this token
)

// String returns the string representation of the close code.
func (cc CloseCode) String() string {
	switch cc {
	case CloseUnknownError:
		return "UnknownError"
	case CloseUnknownOpcode:
		return "UnknownOpcode"
	case CloseDecodeError:
		return "DecodeError"
	case CloseNotAuthenticated:
		return "NotAuthenticated"
	case CloseAuthenticationFailed:
		return "AuthenticationFailed"
	case CloseAlreadyAuthenticated:
		return "AlreadyAuthenticated"
	case CloseInvalidSequence:
		return "InvalidSequence"
	case CloseRateLimited:
		return "RateLimited"
	case CloseSessionTimeout:
		return "SessionTimeout"
	case CloseInvalidShard:
		return "InvalidShard"
	case CloseShardingRequired:
		return "ShardingRequired"
	case CloseInvalidAPIVersion:
		return "InvalidAPIVersion"
	case CloseInvalidCapabilities:
		return "InvalidCapabilities"
	case CloseDisallowedCapability:
		return "DisallowedCapability"
	default:
		return "Unknown"
	}
}

// Fatal returns true if the close code indicates a condition that retrying
// cannot fix: bad credentials, a version mismatch, or misconfigured sharding.
// Fatal closes are surfaced to the caller and the shard stays closed.
func (cc CloseCode) Fatal() bool {
	switch cc {
	case CloseAuthenticationFailed,
		CloseInvalidShard,
		CloseShardingRequired,
		CloseInvalidAPIVersion,
		CloseInvalidCapabilities,
		CloseDisallowedCapability:
		return true
	}
	return false
}

// Resumable returns true if a session interrupted by this close code may be
// resumed with its stored token and sequence. Non-resumable codes require a
// fresh identify with cleared session state.
func (cc CloseCode) Resumable() bool {
	if cc.Fatal() {
		return false
	}
	switch cc {
	case CloseInvalidSequence, CloseSessionTimeout, CloseAlreadyAuthenticated:
		return false
	}
	return true
}

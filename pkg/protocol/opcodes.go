package protocol

// Opcode identifies the type of gateway payload carried by an Envelope.
type Opcode int

const (
	OpDispatch            Opcode = 0  // Server → client event dispatch
	OpHeartbeat           Opcode = 1  // Bidirectional keepalive
	OpIdentify            Opcode = 2  // Client handshake
	OpPresenceUpdate      Opcode = 3  // Client status update
	OpVoiceStateUpdate    Opcode = 4  // Join/move/leave voice channels
	OpVoiceServerPing     Opcode = 5  // Voice keepalive
	OpResume              Opcode = 6  // Resume a dropped session
	OpReconnect           Opcode = 7  // Server requests a reconnect
	OpRequestGuildMembers Opcode = 8  // Request member chunks for a guild
	OpInvalidSession      Opcode = 9  // Session is no longer valid
	OpHello               Opcode = 10 // Sent immediately after connecting
	OpHeartbeatAck        Opcode = 11 // Server acknowledged a heartbeat
)

// String returns the string representation of the opcode.
func (op Opcode) String() string {
	switch op {
	case OpDispatch:
		return "Dispatch"
	case OpHeartbeat:
		return "Heartbeat"
	case OpIdentify:
		return "Identify"
	case OpPresenceUpdate:
		return "PresenceUpdate"
	case OpVoiceStateUpdate:
		return "VoiceStateUpdate"
	case OpVoiceServerPing:
		return "VoiceServerPing"
	case OpResume:
		return "Resume"
	case OpReconnect:
		return "Reconnect"
	case OpRequestGuildMembers:
		return "RequestGuildMembers"
	case OpInvalidSession:
		return "InvalidSession"
	case OpHello:
		return "Hello"
	case OpHeartbeatAck:
		return "HeartbeatAck"
	default:
		return "Unknown"
	}
}

// Known returns true if the opcode is one the library understands.
// Unknown opcodes still decode; sessions ignore them for forward compatibility.
func (op Opcode) Known() bool {
	return op >= OpDispatch && op <= OpHeartbeatAck
}

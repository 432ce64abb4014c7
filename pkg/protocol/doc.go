// Package protocol implements the gateway wire format: envelopes, opcodes,
// close codes, and the streaming payload codec.
//
// # Envelopes
//
// Every payload crossing a gateway connection is a JSON envelope:
//
//	{"op": 0, "s": 42, "t": "MESSAGE_CREATE", "d": {...}}
//
// The opcode selects the protocol action. Sequence number and event name are
// present only on Dispatch (op 0) envelopes. Payloads are surfaced as raw JSON
// so consumers decode only the events they subscribe to.
//
// # Opcodes
//
//   - OpDispatch (0): event dispatch, sequenced
//   - OpHeartbeat (1): keepalive, carries the last seen sequence
//   - OpIdentify (2) / OpResume (6): session handshake
//   - OpReconnect (7): server asks the client to reconnect and resume
//   - OpInvalidSession (9): session dropped; payload hints resumability
//   - OpHello (10): first payload after connect, carries heartbeat interval
//   - OpHeartbeatAck (11): heartbeat acknowledgement
//
// Unknown opcodes decode without error and are ignored by sessions, keeping
// the client forward-compatible with protocol additions.
//
// # Transport compression
//
// The gateway compresses the connection as one continuous zlib stream, not
// message by message: the server flushes its deflate context after each
// payload, so every message batch ends with the sync-flush marker
// 00 00 FF FF and earlier traffic seeds the compression dictionary for later
// traffic. Codec reproduces that shared context on the read side; see Codec
// for the mechanics. A decode failure poisons the context and is therefore
// fatal for the connection — the owning session discards the connection and
// reconnects with a fresh Codec.
package protocol

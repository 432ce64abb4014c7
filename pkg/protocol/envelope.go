package protocol

import (
	"encoding/json"
)

const (
	// GatewayVersion is the gateway protocol version this library speaks.
	// The gateway URL itself is retrieved via the REST API.
	GatewayVersion = 9

	// DefaultLargeThreshold is the default member-list threshold sent on
	// identify: guilds above it deliver offline members on demand only.
	DefaultLargeThreshold = 250
)

// Envelope is one decoded gateway frame. Every payload that crosses the
// connection is wrapped in this structure.
//
// Wire format (JSON):
//
//	{"op": <opcode>, "s": <sequence|null>, "t": <event name|null>, "d": <payload>}
//
// Sequence and event name are only present on Dispatch envelopes. The payload
// is kept raw so that callers decode only the events they care about.
type Envelope struct {
	Op   Opcode          `json:"op"`
	Seq  *int64          `json:"s,omitempty"`
	Type string          `json:"t,omitempty"`
	Data json.RawMessage `json:"d,omitempty"`
}

// HasSeq returns true if the envelope carries a sequence number.
func (e *Envelope) HasSeq() bool {
	return e.Seq != nil
}

// Encode encodes the envelope to its JSON wire form.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Hello is the payload of the first envelope the gateway sends after a
// connection is established.
type Hello struct {
	// HeartbeatInterval is the heartbeat cadence in milliseconds.
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

// IdentifyProperties describes the connecting client.
type IdentifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// Identify is the client handshake payload for a fresh session.
type Identify struct {
	Token          string             `json:"token"`
	Properties     IdentifyProperties `json:"properties"`
	Compress       bool               `json:"compress,omitempty"`
	LargeThreshold int                `json:"large_threshold,omitempty"`
	Shard          *[2]int            `json:"shard,omitempty"`
	Capabilities   int64              `json:"capabilities"`
}

// Resume is the client handshake payload for continuing a prior session.
type Resume struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}

// Ready is the dispatch payload acknowledging a successful identify.
type Ready struct {
	Version          int    `json:"v"`
	SessionID        string `json:"session_id"`
	ResumeGatewayURL string `json:"resume_gateway_url"`
}

// ReadyEventType is the dispatch event name that completes an identify.
const ReadyEventType = "READY"

// ResumedEventType is the dispatch event name that completes a resume.
const ResumedEventType = "RESUMED"

// NewEnvelope builds an outbound envelope with the given opcode and payload.
func NewEnvelope(op Opcode, d any) (*Envelope, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return &Envelope{Op: op, Data: data}, nil
}

// NewHeartbeat builds a heartbeat envelope carrying the last seen sequence.
// seq < 0 encodes as null, signalling that no dispatch has been seen yet.
func NewHeartbeat(seq int64) *Envelope {
	if seq < 0 {
		return &Envelope{Op: OpHeartbeat, Data: json.RawMessage("null")}
	}
	data, _ := json.Marshal(seq)
	return &Envelope{Op: OpHeartbeat, Data: data}
}

// InvalidSessionResumable decodes the InvalidSession payload, which is a bare
// boolean hinting whether the session may still be resumed.
func InvalidSessionResumable(data json.RawMessage) bool {
	var resumable bool
	if err := json.Unmarshal(data, &resumable); err != nil {
		return false
	}
	return resumable
}

package protocol

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

// streamCompressor mimics the gateway's shared compression context: one zlib
// stream for the whole connection, flushed after every payload.
type streamCompressor struct {
	buf  bytes.Buffer
	zw   *zlib.Writer
	read int
}

func newStreamCompressor() *streamCompressor {
	sc := &streamCompressor{}
	sc.zw = zlib.NewWriter(&sc.buf)
	return sc
}

// message compresses one payload and returns the bytes the connection would
// deliver for it (everything produced since the previous message).
func (sc *streamCompressor) message(t *testing.T, payload []byte) []byte {
	t.Helper()
	if _, err := sc.zw.Write(payload); err != nil {
		t.Fatalf("compress write: %v", err)
	}
	if err := sc.zw.Flush(); err != nil {
		t.Fatalf("compress flush: %v", err)
	}
	out := sc.buf.Bytes()[sc.read:]
	sc.read = sc.buf.Len()
	return out
}

func dispatchJSON(seq int64, event, data string) []byte {
	return []byte(fmt.Sprintf(`{"op":0,"s":%d,"t":%q,"d":%s}`, seq, event, data))
}

func TestCodecCompressedStream(t *testing.T) {
	sc := newStreamCompressor()
	c := NewCodec()

	payloads := [][]byte{
		[]byte(`{"op":10,"d":{"heartbeat_interval":45000}}`),
		dispatchJSON(1, "READY", `{"v":9,"session_id":"abc","resume_gateway_url":"wss://resume.example"}`),
		dispatchJSON(2, "MESSAGE_CREATE", `{"id":"111","content":"hello"}`),
		// Repetitive content exercises the cross-message dictionary: the
		// deflate context compresses this against earlier messages.
		dispatchJSON(3, "MESSAGE_CREATE", `{"id":"112","content":"hello"}`),
		dispatchJSON(4, "MESSAGE_CREATE", `{"id":"113","content":"hello"}`),
	}

	for i, p := range payloads {
		envs, err := c.Decode(sc.message(t, p))
		if err != nil {
			t.Fatalf("message %d: Decode() error = %v", i, err)
		}
		if len(envs) != 1 {
			t.Fatalf("message %d: got %d envelopes, want 1", i, len(envs))
		}
		var want Envelope
		if err := json.Unmarshal(p, &want); err != nil {
			t.Fatalf("message %d: bad fixture: %v", i, err)
		}
		got := envs[0]
		if got.Op != want.Op || got.Type != want.Type {
			t.Errorf("message %d: got op=%v t=%q, want op=%v t=%q", i, got.Op, got.Type, want.Op, want.Type)
		}
		if (got.Seq == nil) != (want.Seq == nil) {
			t.Fatalf("message %d: seq presence mismatch", i)
		}
		if got.Seq != nil && *got.Seq != *want.Seq {
			t.Errorf("message %d: seq = %d, want %d", i, *got.Seq, *want.Seq)
		}
	}
}

func TestCodecPartialChunks(t *testing.T) {
	sc := newStreamCompressor()
	c := NewCodec()

	msg := sc.message(t, dispatchJSON(7, "TYPING_START", `{"channel_id":"9"}`))
	if len(msg) < 6 {
		t.Fatalf("compressed message unexpectedly short: %d bytes", len(msg))
	}

	// Split mid-message: the first chunk lacks the flush marker and must
	// buffer without producing envelopes.
	cut := len(msg) / 2
	envs, err := c.Decode(msg[:cut])
	if err != nil {
		t.Fatalf("partial chunk: Decode() error = %v", err)
	}
	if len(envs) != 0 {
		t.Fatalf("partial chunk: got %d envelopes, want 0", len(envs))
	}

	envs, err = c.Decode(msg[cut:])
	if err != nil {
		t.Fatalf("final chunk: Decode() error = %v", err)
	}
	if len(envs) != 1 {
		t.Fatalf("final chunk: got %d envelopes, want 1", len(envs))
	}
	if envs[0].Type != "TYPING_START" {
		t.Errorf("event = %q, want TYPING_START", envs[0].Type)
	}
}

func TestCodecBatchedPayloads(t *testing.T) {
	// Two JSON documents delivered in one flush are two envelopes.
	sc := newStreamCompressor()
	c := NewCodec()

	combined := append(dispatchJSON(1, "A", `{}`), dispatchJSON(2, "B", `{}`)...)
	envs, err := c.Decode(sc.message(t, combined))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(envs) != 2 {
		t.Fatalf("got %d envelopes, want 2", len(envs))
	}
	if envs[0].Type != "A" || envs[1].Type != "B" {
		t.Errorf("events = %q, %q; want A, B", envs[0].Type, envs[1].Type)
	}
}

func TestCodecRejectsCorruptStream(t *testing.T) {
	tests := []struct {
		name  string
		chunk []byte
	}{
		{
			name: "not_zlib_header",
			// Ends with the flush marker so decoding is attempted, but the
			// CMF byte is not deflate.
			chunk: []byte{0xff, 0xff, 0x01, 0x02, 0x00, 0x00, 0xff, 0xff},
		},
		{
			name:  "garbage_deflate_data",
			chunk: []byte{0x78, 0x9c, 0xde, 0xad, 0xbe, 0xef, 0x00, 0x00, 0xff, 0xff},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCodec()
			_, err := c.Decode(tc.chunk)
			if err == nil {
				t.Fatal("Decode() error = nil, want *FrameError")
			}
			var fe *FrameError
			if !errors.As(err, &fe) {
				t.Errorf("Decode() error = %v, want *FrameError", err)
			}
		})
	}
}

func TestCodecRejectsMalformedJSON(t *testing.T) {
	sc := newStreamCompressor()
	c := NewCodec()

	_, err := c.Decode(sc.message(t, []byte(`{"op":`)))
	var fe *FrameError
	if !errors.As(err, &fe) {
		t.Fatalf("Decode() error = %v, want *FrameError", err)
	}
}

func TestPlainCodec(t *testing.T) {
	c := NewPlainCodec()
	envs, err := c.Decode([]byte(`{"op":11}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(envs) != 1 || envs[0].Op != OpHeartbeatAck {
		t.Fatalf("got %+v, want one HeartbeatAck envelope", envs)
	}

	if _, err := c.Decode([]byte("not json")); err == nil {
		t.Error("Decode(garbage) error = nil, want *FrameError")
	}
}

func FuzzCodecDecode(f *testing.F) {
	f.Add([]byte(`{"op":0,"s":1,"t":"X","d":{}}`))
	f.Add([]byte{0x78, 0x9c, 0x00, 0x00, 0xff, 0xff})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		// Must never panic, whatever the bytes.
		c := NewCodec()
		envs, err := c.Decode(data)
		if err != nil && envs != nil {
			t.Error("Decode returned envelopes alongside an error")
		}

		p := NewPlainCodec()
		p.Decode(data)
	})
}

package protocol

import (
	"bytes"
	"compress/flate"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	// MaxPayloadBytes is the maximum decompressed size of one gateway message
	// batch. Guards against malicious or corrupt length explosions.
	MaxPayloadBytes = 8 * 1024 * 1024

	// dictSize is the flate sliding-window size carried between messages.
	dictSize = 32 * 1024
)

// flushSuffix terminates every complete compressed message batch. The gateway
// flushes the shared compression stream (Z_SYNC_FLUSH) after each payload,
// which emits an empty stored block with this byte-aligned marker.
var flushSuffix = []byte{0x00, 0x00, 0xff, 0xff}

// Codec decode errors.
var (
	ErrPayloadTooLarge = errors.New("protocol: decompressed payload exceeds limit")
	ErrNotZlibStream   = errors.New("protocol: connection data is not a zlib stream")
)

// FrameError reports a non-recoverable decode failure. The compression
// context is poisoned once decoding fails, so the owning connection must be
// discarded; a fresh connection gets a fresh Codec.
type FrameError struct {
	Err error
}

// Error returns the error message.
func (e *FrameError) Error() string {
	return fmt.Sprintf("protocol: frame decode: %v", e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *FrameError) Unwrap() error {
	return e.Err
}

// Codec turns the raw bytes of one gateway connection into Envelopes.
//
// The transport-compressed form is a single zlib stream spanning the whole
// connection: the server keeps one deflate context and flushes it after every
// payload, so each message batch ends with the sync-flush marker and earlier
// messages seed the dictionary for later ones. The codec tracks that
// dictionary (the trailing 32KB of decompressed output) and inflates each
// completed batch with it, which keeps decoding stateless per call while
// preserving the cross-message compression context.
//
// A Codec is owned by a single reader goroutine and is not safe for
// concurrent use.
type Codec struct {
	compressed bool
	pending    bytes.Buffer
	dict       []byte
	started    bool // zlib stream header consumed
}

// NewCodec returns a codec for a transport-compressed connection.
func NewCodec() *Codec {
	return &Codec{compressed: true}
}

// NewPlainCodec returns a codec for an uncompressed connection, where each
// message is one or more JSON envelopes.
func NewPlainCodec() *Codec {
	return &Codec{}
}

// Decode feeds one raw chunk, in connection order, and returns the envelopes
// it completes. A chunk that does not complete a compressed batch is buffered
// and yields zero envelopes. Any error is a *FrameError and is fatal for the
// connection.
func (c *Codec) Decode(chunk []byte) ([]*Envelope, error) {
	if !c.compressed {
		return c.parse(chunk)
	}

	c.pending.Write(chunk)
	if !bytes.HasSuffix(c.pending.Bytes(), flushSuffix) {
		// Partial batch; wait for the flush marker.
		return nil, nil
	}

	raw := c.pending.Bytes()
	if !c.started {
		if len(raw) < 2 {
			return nil, &FrameError{Err: io.ErrUnexpectedEOF}
		}
		// CMF/FLG header: low nibble of CMF must be 8 (deflate), and a
		// preset-dictionary flag would need a dictionary we do not have.
		if raw[0]&0x0f != 0x08 || raw[1]&0x20 != 0 {
			return nil, &FrameError{Err: ErrNotZlibStream}
		}
		raw = raw[2:]
		c.started = true
	}

	out, err := c.inflate(raw)
	if err != nil {
		return nil, &FrameError{Err: err}
	}
	c.pending.Reset()
	c.dict = appendDict(c.dict, out)
	return c.parse(out)
}

// inflate decompresses one or more complete deflate blocks using the carried
// dictionary. The stream never terminates (the gateway only sync-flushes), so
// running out of input after the final flushed block is the expected end.
func (c *Codec) inflate(raw []byte) ([]byte, error) {
	fr := flate.NewReaderDict(bytes.NewReader(raw), c.dict)
	defer fr.Close()

	var out bytes.Buffer
	buf := make([]byte, 4096)
	for {
		n, err := fr.Read(buf)
		if n > 0 {
			if out.Len()+n > MaxPayloadBytes {
				return nil, ErrPayloadTooLarge
			}
			out.Write(buf[:n])
		}
		if err != nil {
			if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
				return out.Bytes(), nil
			}
			return nil, err
		}
	}
}

// parse splits decompressed output into envelopes. A batch may carry several
// concatenated JSON documents.
func (c *Codec) parse(data []byte) ([]*Envelope, error) {
	var envelopes []*Envelope
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var e Envelope
		if err := dec.Decode(&e); err != nil {
			if err == io.EOF {
				return envelopes, nil
			}
			return nil, &FrameError{Err: err}
		}
		envelopes = append(envelopes, &e)
	}
}

// appendDict extends the dictionary with fresh output, keeping the trailing
// window the deflate context can actually reference.
func appendDict(dict, out []byte) []byte {
	dict = append(dict, out...)
	if len(dict) > dictSize {
		dict = dict[len(dict)-dictSize:]
	}
	return dict
}

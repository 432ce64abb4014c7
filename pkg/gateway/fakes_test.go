package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/accord-dev/accord/pkg/protocol"
)

var errFakeConnClosed = errors.New("fake conn closed")

type inbound struct {
	data []byte
	err  error
}

// fakeConn is a scripted gateway connection. Tests push inbound messages
// (or read errors) and observe outbound writes.
type fakeConn struct {
	in     chan inbound
	writes chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan inbound, 64),
		writes: make(chan []byte, 256),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case <-c.closed:
		return nil, errFakeConnClosed
	case m := <-c.in:
		if m.err != nil {
			return nil, m.err
		}
		return m.data, nil
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return errFakeConnClosed
	case c.writes <- data:
		return nil
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// push delivers a raw envelope to the shard's read loop.
func (c *fakeConn) push(t *testing.T, raw string) {
	t.Helper()
	select {
	case c.in <- inbound{data: []byte(raw)}:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout pushing inbound message")
	}
}

// pushErr makes the next read fail.
func (c *fakeConn) pushErr(t *testing.T, err error) {
	t.Helper()
	select {
	case c.in <- inbound{err: err}:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout pushing inbound error")
	}
}

// expectWrite waits for the next outbound envelope.
func (c *fakeConn) expectWrite(t *testing.T) *protocol.Envelope {
	t.Helper()
	select {
	case data := <-c.writes:
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("outbound message is not an envelope: %v (%s)", err, data)
		}
		return &env
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for outbound message")
		return nil
	}
}

// expectOp waits for the next outbound envelope with the given opcode,
// skipping heartbeats unless a heartbeat is what is expected.
func (c *fakeConn) expectOp(t *testing.T, op protocol.Opcode) *protocol.Envelope {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-c.writes:
			var env protocol.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				t.Fatalf("outbound message is not an envelope: %v", err)
			}
			if env.Op == op {
				return &env
			}
			if env.Op == protocol.OpHeartbeat {
				continue
			}
			t.Fatalf("outbound op = %s, want %s", env.Op, op)
		case <-deadline:
			t.Fatalf("timeout waiting for outbound %s", op)
		}
	}
}

// hello sends the server Hello with the given heartbeat interval.
func (c *fakeConn) hello(t *testing.T, interval time.Duration) {
	t.Helper()
	c.push(t, fmt.Sprintf(`{"op":10,"d":{"heartbeat_interval":%d}}`, interval.Milliseconds()))
}

func (c *fakeConn) ready(t *testing.T, seq int64, sessionID string) {
	t.Helper()
	c.push(t, fmt.Sprintf(
		`{"op":0,"s":%d,"t":"READY","d":{"v":9,"session_id":%q,"resume_gateway_url":"wss://resume.example"}}`,
		seq, sessionID))
}

func (c *fakeConn) dispatch(t *testing.T, seq int64, event, data string) {
	t.Helper()
	c.push(t, fmt.Sprintf(`{"op":0,"s":%d,"t":%q,"d":%s}`, seq, event, data))
}

// fakeDialer hands out fakeConns in dial order.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	next  chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{next: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	c := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	select {
	case d.next <- c:
	default:
	}
	return c, nil
}

// dialed returns how many connections have been handed out.
func (d *fakeDialer) dialed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// awaitDial waits for the next connection to be dialed.
func (d *fakeDialer) awaitDial(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-d.next:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for dial")
		return nil
	}
}

// statusWatcher records shard status transitions.
type statusWatcher struct {
	ch chan Status
}

func newStatusWatcher() *statusWatcher {
	return &statusWatcher{ch: make(chan Status, 128)}
}

func (w *statusWatcher) observe(_ ShardID, st Status) {
	select {
	case w.ch <- st:
	default:
	}
}

// await blocks until the watcher sees the wanted status.
func (w *statusWatcher) await(t *testing.T, want Status) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case st := <-w.ch:
			if st == want {
				return
			}
		case <-deadline:
			t.Fatalf("timeout waiting for status %s", want)
		}
	}
}

// recordingSink collects dispatched events on a channel.
type recordingSink struct {
	ch chan Event
}

func newRecordingSink() *recordingSink {
	return &recordingSink{ch: make(chan Event, 64)}
}

func (r *recordingSink) HandleEvent(e Event) {
	select {
	case r.ch <- e:
	default:
	}
}

// await blocks until an event with the given name arrives, skipping others.
func (r *recordingSink) await(t *testing.T, name string) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-r.ch:
			if e.Name == name {
				return e
			}
		case <-deadline:
			t.Fatalf("timeout waiting for event %q", name)
		}
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// testConfig returns a config tuned for fast tests: plain JSON transport,
// tiny backoff, scripted dialer.
func testConfig(d Dialer, w *statusWatcher) *Config {
	cfg := DefaultConfig()
	cfg.Token = "test-token"
	cfg.GatewayURL = "wss://gateway.example"
	cfg.Compress = false
	cfg.BackoffBase = time.Millisecond
	cfg.BackoffMax = 4 * time.Millisecond
	cfg.IdentifySpacing = time.Millisecond
	cfg.Dialer = d
	if w != nil {
		cfg.OnStatusChange = w.observe
	}
	return cfg
}

// closeWith builds the read error for a server close frame.
func closeWith(code protocol.CloseCode) error {
	return &websocket.CloseError{Code: int(code), Text: code.String()}
}

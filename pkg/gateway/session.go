package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/accord-dev/accord/pkg/protocol"
)

// identifyLimiter gates identify handshakes across a shard set. Shards hold
// this narrow handle rather than a pointer back to their manager.
type identifyLimiter interface {
	Acquire(ctx context.Context) error
}

// unlimitedGate never delays. Used by standalone shards.
type unlimitedGate struct{}

func (unlimitedGate) Acquire(ctx context.Context) error {
	return ctx.Err()
}

// disconnectError records why a connection ended, including the close code
// when the server sent a close frame.
type disconnectError struct {
	code protocol.CloseCode
	err  error
}

func (e *disconnectError) Error() string {
	return e.err.Error()
}

func (e *disconnectError) Unwrap() error {
	return e.err
}

// Shard owns the full lifecycle of one gateway connection: handshake,
// identify or resume, steady-state dispatch, failure detection and teardown.
// Decoded events go to the event sink; reconnection is automatic per the
// shard's ReconnectPolicy until shutdown or a fatal error.
type Shard struct {
	id     ShardID
	cfg    *Config
	gate   identifyLimiter
	policy *ReconnectPolicy
	logger *slog.Logger
	sink   EventSink

	statusMu sync.RWMutex
	status   Status
	fatalErr error

	// seq is the last recorded dispatch sequence, -1 before the first.
	// Read by the heartbeat goroutine, written by the run goroutine.
	seq atomic.Int64

	// Session continuity. Written only by the run goroutine; sessionMu
	// makes State() safe for outside observers.
	sessionMu sync.Mutex
	sessionID string
	resumeURL string

	// resumeAttempts and stableStart belong to the run goroutine.
	resumeAttempts int
	stableStart    time.Time

	connMu sync.Mutex
	conn   Conn
}

// NewShard creates a standalone shard (no identify gate). Shards belonging
// to a multi-shard set are created through a Manager instead.
func NewShard(id ShardID, cfg *Config, sink EventSink) *Shard {
	return newShard(id, cfg.withDefaults(), unlimitedGate{}, sink)
}

// newShard creates a shard with the given gate. cfg must be normalized.
func newShard(id ShardID, cfg *Config, gate identifyLimiter, sink EventSink) *Shard {
	s := &Shard{
		id:     id,
		cfg:    cfg,
		gate:   gate,
		policy: cfg.policy(),
		logger: cfg.Logger.With("component", "shard", "shard", id.String()),
		sink:   sink,
	}
	s.seq.Store(-1)
	return s
}

// ID returns the shard's identity.
func (s *Shard) ID() ShardID {
	return s.id
}

// Status returns the shard's current lifecycle state.
func (s *Shard) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// Err returns the fatal error that closed the shard, if any.
func (s *Shard) Err() error {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.fatalErr
}

// State returns a snapshot of the shard's session continuity.
func (s *Shard) State() SessionState {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	return SessionState{
		Seq:       s.seq.Load(),
		SessionID: s.sessionID,
		ResumeURL: s.resumeURL,
	}
}

// Run connects the shard and keeps it connected until ctx is cancelled or a
// fatal error occurs. It returns nil on shutdown and the fatal *ShardError
// otherwise. Run must be called at most once.
func (s *Shard) Run(ctx context.Context) error {
	defer s.setStatus(StatusClosed)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		s.stableStart = time.Time{}
		err := s.runConnection(ctx)
		if ctx.Err() != nil {
			s.logger.Info("shard shut down")
			return nil
		}

		// A long stable period means the trouble is new; start the
		// backoff schedule over.
		if !s.stableStart.IsZero() && time.Since(s.stableStart) >= s.cfg.StabilityThreshold {
			attempt = 0
		}

		var code protocol.CloseCode
		var de *disconnectError
		if errors.As(err, &de) {
			code = de.code
		}

		// Frame corruption and protocol violations poison the session:
		// the next attempt must be a fresh identify.
		var fe *protocol.FrameError
		if errors.As(err, &fe) || errors.Is(err, ErrProtocolViolation) {
			s.clearSession()
		}

		verdict := s.policy.Decide(code, s.canResume(), s.resumeAttempts)
		s.cfg.Metrics.reconnect(s.id, verdict)

		switch verdict {
		case VerdictFatal:
			serr := &ShardError{Shard: s.id, Code: code, Err: fatalSentinel(code)}
			s.setFatal(serr)
			s.logger.Error("fatal gateway error", "close_code", int(code), "error", err)
			return serr
		case VerdictReidentify:
			s.clearSession()
		case VerdictResume:
			s.resumeAttempts++
		}

		s.setStatus(StatusReconnecting)
		delay := s.policy.NextDelay(attempt)
		attempt++
		s.logger.Warn("connection lost, reconnecting",
			"error", err, "verdict", verdict.String(), "delay", delay, "attempt", attempt)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		s.setStatus(StatusDisconnected)
	}
}

// runConnection drives one connection from dial to teardown. It returns when
// the connection is finished, with the error that ended it.
func (s *Shard) runConnection(ctx context.Context) error {
	s.setStatus(StatusConnecting)

	resuming := s.canResume()
	base := s.cfg.GatewayURL
	if resuming {
		if u := s.currentResumeURL(); u != "" {
			base = u
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	conn, err := s.cfg.Dialer.Dial(dialCtx, s.cfg.dialURL(base))
	cancel()
	if err != nil {
		return fmt.Errorf("gateway: dial: %w", err)
	}
	s.setConn(conn)
	defer func() {
		s.setConn(nil)
		conn.Close()
	}()

	// Cooperative cancellation: closing the conn unblocks the read loop.
	stopCancelWatch := context.AfterFunc(ctx, func() { conn.Close() })
	defer stopCancelWatch()

	var codec *protocol.Codec
	if s.cfg.Compress {
		codec = protocol.NewCodec()
	} else {
		codec = protocol.NewPlainCodec()
	}

	s.setStatus(StatusAwaitingHello)
	hello, batched, err := s.awaitHello(conn, codec)
	if err != nil {
		return err
	}
	interval := time.Duration(hello.HeartbeatInterval) * time.Millisecond
	if interval <= 0 {
		return fmt.Errorf("%w: hello with heartbeat interval %dms", ErrProtocolViolation, hello.HeartbeatInterval)
	}

	hb := NewHeartbeatScheduler(interval)
	hb.Start()
	defer hb.Stop()
	hbDone := make(chan struct{})
	defer close(hbDone)
	go s.heartbeatLoop(conn, hb, hbDone)

	if err := s.sendHandshake(ctx, conn, resuming); err != nil {
		return err
	}

	for _, env := range batched {
		if err := s.handleEnvelope(ctx, conn, hb, env); err != nil {
			return err
		}
	}

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if code, ok := closeCode(err); ok {
				return &disconnectError{code: code, err: fmt.Errorf("gateway: connection closed: %w", err)}
			}
			return fmt.Errorf("gateway: read: %w", err)
		}
		envelopes, err := codec.Decode(data)
		if err != nil {
			return err
		}
		for _, env := range envelopes {
			if err := s.handleEnvelope(ctx, conn, hb, env); err != nil {
				return err
			}
		}
	}
}

// awaitHello reads until the first envelope arrives and checks it is Hello.
// The server may batch more envelopes behind the Hello; those are returned
// for the caller to handle once the session machinery is up.
func (s *Shard) awaitHello(conn Conn, codec *protocol.Codec) (*protocol.Hello, []*protocol.Envelope, error) {
	timeout := time.AfterFunc(s.cfg.HelloTimeout, func() { conn.Close() })
	defer timeout.Stop()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if code, ok := closeCode(err); ok {
				return nil, nil, &disconnectError{code: code, err: fmt.Errorf("gateway: closed before hello: %w", err)}
			}
			return nil, nil, fmt.Errorf("gateway: awaiting hello: %w", err)
		}
		envelopes, err := codec.Decode(data)
		if err != nil {
			return nil, nil, err
		}
		if len(envelopes) == 0 {
			continue
		}
		env := envelopes[0]
		if env.Op != protocol.OpHello {
			return nil, nil, fmt.Errorf("%w: expected Hello, got %s", ErrProtocolViolation, env.Op)
		}
		var hello protocol.Hello
		if err := json.Unmarshal(env.Data, &hello); err != nil {
			return nil, nil, &protocol.FrameError{Err: err}
		}
		return &hello, envelopes[1:], nil
	}
}

// sendHandshake sends resume or identify. Identify waits on the shard set's
// identify gate first; the platform allows only one identify per spacing
// interval across all shards.
func (s *Shard) sendHandshake(ctx context.Context, conn Conn, resuming bool) error {
	if resuming {
		s.setStatus(StatusResuming)
		seq := s.seq.Load()
		if seq < 0 {
			seq = 0
		}
		env, err := protocol.NewEnvelope(protocol.OpResume, protocol.Resume{
			Token:     s.cfg.Token,
			SessionID: s.currentSessionID(),
			Seq:       seq,
		})
		if err != nil {
			return err
		}
		s.cfg.Metrics.handshake(s.id, "resume")
		s.logger.Info("resuming session", "seq", seq)
		return s.writeTo(conn, env)
	}

	s.setStatus(StatusIdentifying)
	if err := s.gate.Acquire(ctx); err != nil {
		return fmt.Errorf("gateway: identify gate: %w", err)
	}
	shard := [2]int{s.id.Index, s.id.Count}
	env, err := protocol.NewEnvelope(protocol.OpIdentify, protocol.Identify{
		Token:          s.cfg.Token,
		Properties:     s.cfg.Properties,
		LargeThreshold: s.cfg.LargeThreshold,
		Shard:          &shard,
		Capabilities:   s.cfg.Capabilities,
	})
	if err != nil {
		return err
	}
	s.cfg.Metrics.handshake(s.id, "identify")
	s.logger.Info("identifying")
	return s.writeTo(conn, env)
}

// handleEnvelope interprets one inbound envelope. A non-nil return ends the
// connection.
func (s *Shard) handleEnvelope(ctx context.Context, conn Conn, hb *HeartbeatScheduler, env *protocol.Envelope) error {
	switch env.Op {
	case protocol.OpHeartbeatAck:
		hb.Ack()

	case protocol.OpHeartbeat:
		// Server-requested immediate heartbeat.
		return s.writeTo(conn, protocol.NewHeartbeat(s.seq.Load()))

	case protocol.OpReconnect:
		// Graceful: the session stays resumable.
		return &disconnectError{err: errors.New("gateway: server requested reconnect")}

	case protocol.OpInvalidSession:
		resumable := protocol.InvalidSessionResumable(env.Data)
		if !resumable {
			s.clearSession()
		}
		if s.Status() != StatusConnected {
			// Handshake rejected: restart it on the same connection
			// instead of tearing down and redialing. A rejected resume
			// still spends a resume attempt, so a server that keeps
			// refusing the session forces a fresh identify once the
			// ceiling is hit.
			if s.Status() == StatusResuming {
				s.resumeAttempts++
				if s.resumeAttempts >= s.policy.MaxResumeAttempts {
					s.clearSession()
				}
			}
			s.logger.Warn("session invalidated during handshake", "resumable", resumable)
			return s.sendHandshake(ctx, conn, s.canResume())
		}
		return &disconnectError{err: fmt.Errorf("gateway: session invalidated (resumable=%v)", resumable)}

	case protocol.OpDispatch:
		return s.handleDispatch(env)

	case protocol.OpHello:
		// Duplicate hello in steady state carries nothing new.

	default:
		if !env.Op.Known() {
			s.logger.Debug("ignoring unknown opcode", "op", int(env.Op))
		}
	}
	return nil
}

// handleDispatch processes a sequenced event, including the READY/RESUMED
// dispatches that complete a handshake.
func (s *Shard) handleDispatch(env *protocol.Envelope) error {
	switch env.Type {
	case protocol.ReadyEventType:
		var ready protocol.Ready
		if err := json.Unmarshal(env.Data, &ready); err != nil {
			return &protocol.FrameError{Err: err}
		}
		s.setSession(ready.SessionID, ready.ResumeGatewayURL)
		s.resumeAttempts = 0
		s.stableStart = time.Now()
		if env.HasSeq() {
			s.seq.Store(*env.Seq)
		}
		s.setStatus(StatusConnected)
		s.logger.Info("session ready", "session_id", ready.SessionID)

	case protocol.ResumedEventType:
		s.resumeAttempts = 0
		s.stableStart = time.Now()
		s.setStatus(StatusConnected)
		s.logger.Info("session resumed", "seq", s.seq.Load())

	default:
		if s.Status() != StatusConnected {
			s.clearSession()
			return fmt.Errorf("%w: dispatch %q before session ready", ErrProtocolViolation, env.Type)
		}
	}

	// Record the sequence; it never moves backwards within a session.
	if env.HasSeq() {
		if cur := s.seq.Load(); *env.Seq > cur {
			s.seq.Store(*env.Seq)
		}
	}

	if s.sink != nil {
		s.sink.HandleEvent(Event{
			Shard: s.id,
			Name:  env.Type,
			Seq:   s.seq.Load(),
			Data:  env.Data,
		})
	}
	s.cfg.Metrics.eventDispatched(s.id, env.Type)
	return nil
}

// heartbeatLoop sends a heartbeat at every scheduler tick. An unacknowledged
// heartbeat at the next tick means the connection is a zombie: force-close it
// so the read loop unblocks and the shard reconnects.
func (s *Shard) heartbeatLoop(conn Conn, hb *HeartbeatScheduler, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-hb.C():
			if hb.Zombie() {
				s.logger.Warn("heartbeat unacknowledged, closing zombie connection")
				s.cfg.Metrics.zombie(s.id)
				conn.Close()
				return
			}
			// Mark outstanding before the write: the ack can arrive on
			// the read loop while the write is still in flight.
			hb.Sent()
			if err := s.writeTo(conn, protocol.NewHeartbeat(s.seq.Load())); err != nil {
				return
			}
		}
	}
}

// Send sends an outbound envelope on the current connection. The shard must
// be Connected.
func (s *Shard) Send(op protocol.Opcode, d any) error {
	if s.Status() != StatusConnected {
		return ErrNotConnected
	}
	conn := s.currentConn()
	if conn == nil {
		return ErrNotConnected
	}
	env, err := protocol.NewEnvelope(op, d)
	if err != nil {
		return err
	}
	return s.writeTo(conn, env)
}

// UpdatePresence sends a presence update for this shard's session.
func (s *Shard) UpdatePresence(d any) error {
	return s.Send(protocol.OpPresenceUpdate, d)
}

// RequestGuildMembers asks the gateway to stream member chunks for a guild.
// The chunks arrive as ordinary dispatch events on the event sink.
func (s *Shard) RequestGuildMembers(d any) error {
	return s.Send(protocol.OpRequestGuildMembers, d)
}

func (s *Shard) writeTo(conn Conn, env *protocol.Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return conn.WriteMessage(data)
}

func (s *Shard) setConn(conn Conn) {
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
}

func (s *Shard) currentConn() Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}

func (s *Shard) setStatus(next Status) {
	s.statusMu.Lock()
	prev := s.status
	if prev == next {
		s.statusMu.Unlock()
		return
	}
	s.status = next
	s.statusMu.Unlock()

	if prev == StatusConnected {
		s.cfg.Metrics.connected(-1)
	}
	if next == StatusConnected {
		s.cfg.Metrics.connected(1)
	}
	s.logger.Debug("status change", "from", prev.String(), "to", next.String())
	if s.cfg.OnStatusChange != nil {
		s.cfg.OnStatusChange(s.id, next)
	}
}

func (s *Shard) setFatal(err error) {
	s.statusMu.Lock()
	s.fatalErr = err
	s.statusMu.Unlock()
}

func (s *Shard) setSession(id, resumeURL string) {
	s.sessionMu.Lock()
	s.sessionID = id
	s.resumeURL = resumeURL
	s.sessionMu.Unlock()
}

func (s *Shard) currentSessionID() string {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	return s.sessionID
}

func (s *Shard) currentResumeURL() string {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	return s.resumeURL
}

func (s *Shard) canResume() bool {
	return s.currentSessionID() != ""
}

// clearSession discards all session continuity. The resume token is never
// reused after a non-resumable failure.
func (s *Shard) clearSession() {
	s.seq.Store(-1)
	s.setSession("", "")
	s.resumeAttempts = 0
}

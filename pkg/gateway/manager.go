package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// identifyGate serializes identify handshakes across a shard set. The
// platform allows one identify per spacing interval; the gate grants one
// permit at a time and re-arms itself only after the interval has elapsed,
// not when the identify finishes.
type identifyGate struct {
	spacing time.Duration
	permits chan struct{}
}

func newIdentifyGate(spacing time.Duration) *identifyGate {
	g := &identifyGate{
		spacing: spacing,
		permits: make(chan struct{}, 1),
	}
	g.permits <- struct{}{}
	return g
}

// Acquire blocks until this caller may send an identify, or ctx is done.
func (g *identifyGate) Acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-g.permits:
		time.AfterFunc(g.spacing, func() {
			g.permits <- struct{}{}
		})
		return nil
	}
}

// Manager owns an ordered set of shards, spreads the platform's event
// traffic across them, and enforces the one-identify-per-interval limit
// during concurrent startup and reconnect storms.
//
// A shard that fails fatally (bad token, rejected shard configuration) stays
// Closed and its error is surfaced through Err and Wait; the other shards
// keep running.
type Manager struct {
	cfg    *Config
	logger *slog.Logger
	gate   *identifyGate
	shards []*Shard

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	errMu sync.Mutex
	errs  []error
}

// NewManager creates a manager with shardCount shards sharing one config,
// identify gate and event sink.
func NewManager(cfg *Config, shardCount int, sink EventSink) *Manager {
	cfg = cfg.withDefaults()
	if shardCount < 1 {
		shardCount = 1
	}
	m := &Manager{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "shard_manager"),
		gate:   newIdentifyGate(cfg.IdentifySpacing),
	}
	for i := 0; i < shardCount; i++ {
		m.shards = append(m.shards, newShard(ShardID{Index: i, Count: shardCount}, cfg, m.gate, sink))
	}
	return m
}

// Start launches every shard and returns. Shards identify in gate order;
// with N shards and spacing S, full startup takes at least (N-1)*S.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	if m.started {
		return errors.New("gateway: manager already started")
	}
	m.started = true

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.logger.Info("starting shards", "count", len(m.shards))
	for _, sh := range m.shards {
		m.wg.Add(1)
		go func(sh *Shard) {
			defer m.wg.Done()
			if err := sh.Run(runCtx); err != nil {
				m.recordErr(err)
			}
		}(sh)
	}
	return nil
}

// Wait blocks until every shard has reached Closed, then returns the joined
// fatal errors (nil if shutdown was clean).
func (m *Manager) Wait() error {
	m.wg.Wait()
	return m.Err()
}

// Shutdown signals cancellation to every shard and waits, without a
// deadline, for each to reach Closed. Callers needing bounded shutdown
// should impose their own deadline around this call.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.wg.Wait()
		return
	}
	m.closed = true
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.logger.Info("all shards closed")
}

// Shard returns the shard with the given index, or nil.
func (m *Manager) Shard(index int) *Shard {
	if index < 0 || index >= len(m.shards) {
		return nil
	}
	return m.shards[index]
}

// Shards returns the ordered shard set.
func (m *Manager) Shards() []*Shard {
	out := make([]*Shard, len(m.shards))
	copy(out, m.shards)
	return out
}

// Err returns the fatal shard errors recorded so far, joined.
func (m *Manager) Err() error {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return errors.Join(m.errs...)
}

func (m *Manager) recordErr(err error) {
	m.errMu.Lock()
	m.errs = append(m.errs, err)
	m.errMu.Unlock()
	m.logger.Error("shard failed fatally", "error", err)
}

package gateway

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// HeartbeatScheduler emits ticks on the cadence the server announced in Hello
// and tracks whether the previous heartbeat was acknowledged.
//
// The first tick fires at a random phase within the interval so that many
// shards started together do not heartbeat in lockstep. Subsequent ticks are
// interval apart.
//
// Ack state is the only mutable field shared between a shard's read loop
// (which calls Ack) and its heartbeat loop (which calls Sent and Zombie); it
// is a single atomic.
type HeartbeatScheduler struct {
	interval time.Duration
	ticks    chan time.Time

	// acked is false between Sent and the following Ack. Starts true:
	// nothing is outstanding before the first heartbeat.
	acked atomic.Bool

	stopOnce sync.Once
	done     chan struct{}
}

// NewHeartbeatScheduler creates a scheduler for the given interval.
// Call Start to begin ticking.
func NewHeartbeatScheduler(interval time.Duration) *HeartbeatScheduler {
	h := &HeartbeatScheduler{
		interval: interval,
		ticks:    make(chan time.Time, 1),
		done:     make(chan struct{}),
	}
	h.acked.Store(true)
	return h
}

// Start begins emitting ticks. The first tick's phase is randomized within
// the interval.
func (h *HeartbeatScheduler) Start() {
	go h.run()
}

func (h *HeartbeatScheduler) run() {
	first := time.Duration(rand.Int63n(int64(h.interval)) + 1)
	timer := time.NewTimer(first)
	defer timer.Stop()

	select {
	case <-h.done:
		return
	case t := <-timer.C:
		h.emit(t)
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			return
		case t := <-ticker.C:
			h.emit(t)
		}
	}
}

// emit delivers a tick without blocking. If the consumer has not drained the
// previous tick yet, coalescing is fine: the consumer is about to observe a
// zombie connection anyway.
func (h *HeartbeatScheduler) emit(t time.Time) {
	select {
	case h.ticks <- t:
	default:
	}
}

// C returns the tick channel.
func (h *HeartbeatScheduler) C() <-chan time.Time {
	return h.ticks
}

// Interval returns the heartbeat cadence.
func (h *HeartbeatScheduler) Interval() time.Duration {
	return h.interval
}

// Sent records that a heartbeat was sent and is awaiting acknowledgement.
func (h *HeartbeatScheduler) Sent() {
	h.acked.Store(false)
}

// Ack records that the most recent heartbeat was acknowledged.
func (h *HeartbeatScheduler) Ack() {
	h.acked.Store(true)
}

// Zombie returns true if a heartbeat is outstanding and unacknowledged.
// Checked at each tick: an unacked heartbeat a full interval later means the
// connection is dead even though the socket looks open, since protocol-level
// closes are not guaranteed to propagate on a broken network path.
func (h *HeartbeatScheduler) Zombie() bool {
	return !h.acked.Load()
}

// Stop halts ticking. Safe to call more than once.
func (h *HeartbeatScheduler) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

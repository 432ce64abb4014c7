package gateway

import (
	"testing"
	"time"
)

func TestHeartbeatFirstTickWithinInterval(t *testing.T) {
	interval := 50 * time.Millisecond
	hb := NewHeartbeatScheduler(interval)
	hb.Start()
	defer hb.Stop()

	start := time.Now()
	select {
	case <-hb.C():
	case <-time.After(3 * interval):
		t.Fatal("first tick never fired")
	}
	if elapsed := time.Since(start); elapsed > 2*interval {
		t.Errorf("first tick after %v, want within the interval", elapsed)
	}

	// Subsequent ticks run on the steady cadence.
	select {
	case <-hb.C():
	case <-time.After(3 * interval):
		t.Fatal("second tick never fired")
	}
}

func TestHeartbeatAckCycle(t *testing.T) {
	hb := NewHeartbeatScheduler(time.Second)

	if hb.Zombie() {
		t.Error("fresh scheduler reports zombie before any heartbeat was sent")
	}
	hb.Sent()
	if !hb.Zombie() {
		t.Error("unacknowledged heartbeat not reported as zombie")
	}
	hb.Ack()
	if hb.Zombie() {
		t.Error("acknowledged heartbeat still reported as zombie")
	}
	hb.Sent()
	if !hb.Zombie() {
		t.Error("second unacknowledged heartbeat not reported as zombie")
	}
}

func TestHeartbeatStop(t *testing.T) {
	hb := NewHeartbeatScheduler(20 * time.Millisecond)
	hb.Start()
	hb.Stop()
	hb.Stop() // idempotent

	// One tick may have raced the stop; drain it, then expect silence.
	time.Sleep(30 * time.Millisecond)
	select {
	case <-hb.C():
	default:
	}
	select {
	case <-hb.C():
		t.Error("tick fired after Stop")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHeartbeatInterval(t *testing.T) {
	hb := NewHeartbeatScheduler(45 * time.Second)
	if got := hb.Interval(); got != 45*time.Second {
		t.Errorf("Interval() = %v, want 45s", got)
	}
}

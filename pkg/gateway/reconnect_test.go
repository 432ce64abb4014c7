package gateway

import (
	"testing"
	"time"

	"github.com/accord-dev/accord/pkg/protocol"
)

func TestReconnectPolicyDecide(t *testing.T) {
	p := &ReconnectPolicy{
		MaxResumeAttempts: 3,
		BackoffBase:       time.Second,
		BackoffMax:        64 * time.Second,
	}

	tests := []struct {
		name      string
		code      protocol.CloseCode
		canResume bool
		attempts  int
		want      Verdict
	}{
		{"auth_failed_is_fatal", protocol.CloseAuthenticationFailed, true, 0, VerdictFatal},
		{"invalid_shard_is_fatal", protocol.CloseInvalidShard, true, 0, VerdictFatal},
		{"sharding_required_is_fatal", protocol.CloseShardingRequired, false, 0, VerdictFatal},
		{"invalid_capabilities_is_fatal", protocol.CloseInvalidCapabilities, true, 0, VerdictFatal},
		{"session_timeout_reidentifies", protocol.CloseSessionTimeout, true, 0, VerdictReidentify},
		{"invalid_sequence_reidentifies", protocol.CloseInvalidSequence, true, 0, VerdictReidentify},
		{"already_authenticated_reidentifies", protocol.CloseAlreadyAuthenticated, true, 0, VerdictReidentify},
		{"unknown_error_resumes", protocol.CloseUnknownError, true, 0, VerdictResume},
		{"rate_limited_resumes", protocol.CloseRateLimited, true, 1, VerdictResume},
		{"network_loss_resumes", 0, true, 0, VerdictResume},
		{"network_loss_without_session_reidentifies", 0, false, 0, VerdictReidentify},
		{"resume_budget_exhausted", 0, true, 3, VerdictReidentify},
		{"abnormal_closure_resumes", 1006, true, 0, VerdictResume},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Decide(tc.code, tc.canResume, tc.attempts)
			if got != tc.want {
				t.Errorf("Decide(%d, %v, %d) = %s, want %s",
					tc.code, tc.canResume, tc.attempts, got, tc.want)
			}
		})
	}
}

func TestNextDelayBounds(t *testing.T) {
	p := &ReconnectPolicy{
		MaxResumeAttempts: 3,
		BackoffBase:       time.Second,
		BackoffMax:        64 * time.Second,
	}

	floor := p.BackoffBase / 2
	ceil := p.BackoffMax + p.BackoffMax/4
	for attempt := 0; attempt <= 40; attempt++ {
		for i := 0; i < 20; i++ {
			d := p.NextDelay(attempt)
			if d < floor || d > ceil {
				t.Fatalf("NextDelay(%d) = %v, want within [%v, %v]", attempt, d, floor, ceil)
			}
		}
	}
}

func TestNextDelayJitterWindow(t *testing.T) {
	p := &ReconnectPolicy{
		MaxResumeAttempts: 3,
		BackoffBase:       time.Second,
		BackoffMax:        64 * time.Second,
	}

	// attempt 3 targets base*8; jitter keeps the result within ±25%.
	target := p.BackoffBase << 3
	lo, hi := target-target/4, target+target/4
	for i := 0; i < 50; i++ {
		d := p.NextDelay(3)
		if d < lo || d > hi {
			t.Fatalf("NextDelay(3) = %v, want within [%v, %v]", d, lo, hi)
		}
	}
}

func TestNextDelayCapsAtMax(t *testing.T) {
	p := &ReconnectPolicy{
		MaxResumeAttempts: 3,
		BackoffBase:       time.Second,
		BackoffMax:        8 * time.Second,
	}

	for i := 0; i < 50; i++ {
		d := p.NextDelay(20)
		if d > p.BackoffMax+p.BackoffMax/4 {
			t.Fatalf("NextDelay(20) = %v exceeds cap", d)
		}
	}
}

func TestVerdictString(t *testing.T) {
	tests := []struct {
		v    Verdict
		want string
	}{
		{VerdictResume, "Resume"},
		{VerdictReidentify, "Reidentify"},
		{VerdictFatal, "Fatal"},
		{Verdict(99), "Unknown"},
	}
	for _, tc := range tests {
		if got := tc.v.String(); got != tc.want {
			t.Errorf("Verdict(%d).String() = %q, want %q", int(tc.v), got, tc.want)
		}
	}
}

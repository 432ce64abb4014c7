package gateway

import (
	"math/rand"
	"time"

	"github.com/accord-dev/accord/pkg/protocol"
)

// Verdict is the reconnect decision for a finished connection.
type Verdict int

const (
	// VerdictResume reconnects and resumes the existing session.
	VerdictResume Verdict = iota

	// VerdictReidentify reconnects with cleared state and a fresh identify.
	VerdictReidentify

	// VerdictFatal surfaces the failure to the caller; no retry.
	VerdictFatal
)

// String returns the string representation of the verdict.
func (v Verdict) String() string {
	switch v {
	case VerdictResume:
		return "Resume"
	case VerdictReidentify:
		return "Reidentify"
	case VerdictFatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// ReconnectPolicy decides how a shard recovers from a disconnect and how long
// it waits between attempts. Decide is a pure lookup; NextDelay is bounded
// exponential backoff with jitter.
type ReconnectPolicy struct {
	// MaxResumeAttempts is the number of consecutive resume attempts before
	// the policy forces a fresh identify.
	MaxResumeAttempts int

	// BackoffBase is the delay before the first retry.
	BackoffBase time.Duration

	// BackoffMax caps the exponential growth.
	BackoffMax time.Duration
}

// Decide returns the verdict for a connection that ended with the given close
// code (0 when the failure was not a close frame, e.g. abrupt network loss).
// canResume reports whether session state (resume token) is still held, and
// resumeAttempts how many consecutive resumes have already failed.
func (p *ReconnectPolicy) Decide(code protocol.CloseCode, canResume bool, resumeAttempts int) Verdict {
	if code != 0 && code.Fatal() {
		return VerdictFatal
	}
	if code != 0 && !code.Resumable() {
		return VerdictReidentify
	}
	if canResume && resumeAttempts < p.MaxResumeAttempts {
		return VerdictResume
	}
	return VerdictReidentify
}

// NextDelay returns min(BackoffMax, BackoffBase * 2^attempt) with ±25%
// jitter. The exponent is capped so large attempt counts cannot overflow.
func (p *ReconnectPolicy) NextDelay(attempt int) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	d := p.BackoffBase << uint(attempt)
	if d <= 0 || d > p.BackoffMax {
		d = p.BackoffMax
	}
	// ±25% jitter keeps a fleet of shards from retrying in lockstep.
	jitter := time.Duration(rand.Int63n(int64(d)/2+1)) - d/4
	d += jitter
	if d < p.BackoffBase/2 {
		d = p.BackoffBase / 2
	}
	return d
}

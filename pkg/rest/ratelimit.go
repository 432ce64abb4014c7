package rest

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Bucket tracks the rate limit window of one server-side bucket. A bucket
// starts out provisional, keyed by its route, and is re-keyed once the server
// reveals its real bucket id; routes sharing an id share the bucket.
type Bucket struct {
	mu        sync.Mutex
	id        string
	limit     int
	remaining int
	reset     time.Time
}

// RateLimiter enforces the platform's per-bucket and global rate limits. A
// request reserves its bucket before going on the wire and releases it with
// the response headers, so concurrent requests on one bucket serialize and
// every request sees the freshest window state.
type RateLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*Bucket
	routeBucket map[string]string
	globalUntil time.Time

	// now is replaceable for tests.
	now func() time.Time
}

// NewRateLimiter creates an empty rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		buckets:     make(map[string]*Bucket),
		routeBucket: make(map[string]string),
		now:         time.Now,
	}
}

// Reservation is a held bucket. Release it exactly once with the response
// headers (nil if the request never reached the server).
type Reservation struct {
	r     *RateLimiter
	route string
	b     *Bucket
}

// Acquire reserves the bucket for the given route key, sleeping out any
// active global limit and the bucket's own exhausted window first.
func (r *RateLimiter) Acquire(ctx context.Context, routeKey string) (*Reservation, error) {
	b := r.bucketFor(routeKey)
	b.mu.Lock()

	for {
		wait := r.globalWait()
		if bw := r.bucketWait(b); bw > wait {
			wait = bw
		}
		if wait <= 0 {
			break
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			b.mu.Unlock()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if b.remaining > 0 {
		b.remaining--
	}
	return &Reservation{r: r, route: routeKey, b: b}, nil
}

// Release updates the bucket from the response headers and unlocks it.
// adopt may migrate the held lock to a merged bucket, so the unlock targets
// whichever bucket is held at the end.
func (res *Reservation) Release(header http.Header) {
	b := res.b
	if header == nil {
		b.mu.Unlock()
		return
	}

	if header.Get("X-RateLimit-Global") != "" {
		if after, ok := parseSeconds(header.Get("Retry-After")); ok {
			res.r.setGlobal(res.r.now().Add(after))
		}
		b.mu.Unlock()
		return
	}

	if id := header.Get("X-RateLimit-Bucket"); id != "" && id != b.id {
		b = res.r.adopt(res.route, id, b)
	}

	if v := header.Get("X-RateLimit-Limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			b.limit = n
		}
	}
	if v := header.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			if n < 0 {
				n = 0
			}
			b.remaining = n
		}
	}
	if after, ok := parseSeconds(header.Get("X-RateLimit-Reset-After")); ok {
		b.reset = res.r.now().Add(after)
	} else if v := header.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseFloat(v, 64); err == nil {
			sec := int64(epoch)
			nsec := int64((epoch - float64(sec)) * float64(time.Second))
			b.reset = time.Unix(sec, nsec)
		}
	}
	b.mu.Unlock()
}

// GlobalWait reports how long the global limit currently blocks requests.
func (r *RateLimiter) GlobalWait() time.Duration {
	return r.globalWait()
}

// bucketFor resolves the bucket a route key maps to, creating a provisional
// one on first use. A fresh bucket permits one request so the first response
// can teach us the real window.
func (r *RateLimiter) bucketFor(routeKey string) *Bucket {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.routeBucket[routeKey]
	if !ok {
		id = routeKey
	}
	b, ok := r.buckets[id]
	if !ok {
		b = &Bucket{id: id, limit: 1, remaining: 1}
		r.buckets[id] = b
	}
	return b
}

// adopt re-keys a provisional bucket under its server-assigned id. When
// another route already surfaced the same id, the buckets merge; the caller's
// lock migrates to the surviving bucket.
//
// Lock order is bucket-mutex then table-mutex everywhere (Acquire's wait loop
// reads the global deadline while holding its bucket), so the table mutex is
// dropped before the surviving bucket is locked.
func (r *RateLimiter) adopt(route, id string, b *Bucket) *Bucket {
	r.mu.Lock()
	r.routeBucket[route] = id
	existing, ok := r.buckets[id]
	if !ok || existing == b {
		if id != b.id {
			delete(r.buckets, b.id)
			b.id = id
			r.buckets[id] = b
		}
		r.mu.Unlock()
		return b
	}
	delete(r.buckets, b.id)
	r.mu.Unlock()

	b.mu.Unlock()
	existing.mu.Lock()
	return existing
}

func (r *RateLimiter) setGlobal(until time.Time) {
	r.mu.Lock()
	if until.After(r.globalUntil) {
		r.globalUntil = until
	}
	r.mu.Unlock()
}

func (r *RateLimiter) globalWait() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.globalUntil.Sub(r.now())
}

// bucketWait returns how long until the bucket admits a request. The caller
// holds b.mu.
func (r *RateLimiter) bucketWait(b *Bucket) time.Duration {
	if b.remaining > 0 {
		return 0
	}
	return b.reset.Sub(r.now())
}

// parseSeconds parses a (possibly fractional) seconds header value.
func parseSeconds(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return time.Duration(f * float64(time.Second)), true
}

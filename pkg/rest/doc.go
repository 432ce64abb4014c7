// Package rest is the HTTP side of the platform API: a small client carrying
// authentication, tracing, and proactive rate limiting.
//
// Rate limits are organized in buckets. A bucket is discovered from response
// headers: routes that report the same X-RateLimit-Bucket id share one
// window. The limiter reserves a route's bucket before the request goes out,
// so when a window is exhausted the caller sleeps instead of burning a 429.
// An unexpected 429 (clock skew, shared token) is retried once after the
// server-stated delay; a global 429 pauses every route.
//
// The endpoint surface is deliberately small: gateway connection info plus
// the channel and message calls a bot needs to be useful. Do is exported so
// callers can reach endpoints the typed surface does not cover.
package rest

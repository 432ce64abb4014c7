package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultBaseURL is the platform API root.
	DefaultBaseURL = "https://accord.example/api/v9"

	// Version is the library version reported in the User-Agent.
	Version = "2.0.0"

	// defaultTracerName names the tracer resolved from the global provider.
	defaultTracerName = "accord.rest"
)

// Config configures a REST client.
type Config struct {
	// Token authenticates every request.
	Token string

	// BaseURL is the API root. Default: DefaultBaseURL.
	BaseURL string

	// HTTPClient performs the requests. Default: http.Client with a
	// 30 second timeout.
	HTTPClient *http.Client

	// UserAgent overrides the default bot user agent.
	UserAgent string

	// TracerName is the OpenTelemetry tracer name.
	// Default: "accord.rest".
	TracerName string

	// Logger receives request logs. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the default REST client configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    DefaultBaseURL,
		UserAgent:  fmt.Sprintf("AccordBot (https://github.com/accord-dev/accord, v%s)", Version),
		TracerName: defaultTracerName,
	}
}

// Client is a rate-limit-aware API client. Requests reserve their route's
// bucket before hitting the wire, honor server-assigned bucket ids and the
// global limit, and retry a 429 exactly once.
type Client struct {
	cfg     *Config
	http    *http.Client
	limiter *RateLimiter
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewClient creates a client. Zero config fields take their defaults.
func NewClient(cfg *Config) *Client {
	def := DefaultConfig()
	if cfg == nil {
		cfg = def
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.TracerName == "" {
		cfg.TracerName = def.TracerName
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		http:    cfg.HTTPClient,
		limiter: NewRateLimiter(),
		logger:  cfg.Logger.With("component", "rest_client"),
		tracer:  otel.Tracer(cfg.TracerName),
	}
}

// RateLimiter exposes the client's limiter, mainly for tests and metrics.
func (c *Client) RateLimiter() *RateLimiter {
	return c.limiter
}

// Do performs one API request: reserve the route's bucket, send, feed the
// response headers back to the limiter, decode into out (unless nil). On a
// 429 it waits the server-stated delay and retries once; a second 429
// surfaces as *RateLimitError.
func (c *Client) Do(ctx context.Context, route Route, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("rest: encode request body: %w", err)
		}
	}

	var rlErr *RateLimitError
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(rlErr.RetryAfter)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := c.once(ctx, route, payload, out)
		if err == nil {
			return nil
		}
		if !errors.As(err, &rlErr) {
			return err
		}
		c.logger.Warn("rate limited",
			"route", route.Key, "global", rlErr.Global, "retry_after", rlErr.RetryAfter)
	}
	return rlErr
}

// once performs a single attempt.
func (c *Client) once(ctx context.Context, route Route, payload []byte, out any) error {
	res, err := c.limiter.Acquire(ctx, route.Key)
	if err != nil {
		return err
	}

	ctx, span := c.tracer.Start(ctx, route.Method+" "+route.Key,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", route.Method),
			attribute.String("url.path", route.Path),
			attribute.String("accord.route", route.Key),
		),
	)
	defer span.End()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, route.Method, c.cfg.BaseURL+route.Path, reqBody)
	if err != nil {
		res.Release(nil)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("rest: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.cfg.Token)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		res.Release(nil)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("rest: %s %s: %w", route.Method, route.Path, err)
	}
	defer resp.Body.Close()
	res.Release(resp.Header)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("rest: read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		span.SetStatus(codes.Ok, "")
		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("rest: decode response: %w", err)
		}
		return nil

	case resp.StatusCode == http.StatusTooManyRequests:
		rl := parseRateLimit(resp.Header, data)
		span.SetStatus(codes.Error, rl.Error())
		return rl

	default:
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var body struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &body) == nil && body.Message != "" {
			apiErr.Code = body.Code
			apiErr.Message = body.Message
		}
		span.SetStatus(codes.Error, apiErr.Error())
		return apiErr
	}
}

// parseRateLimit builds a *RateLimitError from a 429 response. The JSON body
// carries fractional seconds; headers are the fallback.
func parseRateLimit(header http.Header, data []byte) *RateLimitError {
	rl := &RateLimitError{
		Global: header.Get("X-RateLimit-Global") != "",
		Bucket: header.Get("X-RateLimit-Bucket"),
	}
	var body struct {
		RetryAfter float64 `json:"retry_after"`
		Global     bool    `json:"global"`
	}
	if json.Unmarshal(data, &body) == nil && body.RetryAfter > 0 {
		rl.RetryAfter = time.Duration(body.RetryAfter * float64(time.Second))
		rl.Global = rl.Global || body.Global
	} else if after, ok := parseSeconds(header.Get("Retry-After")); ok {
		rl.RetryAfter = after
	}
	return rl
}

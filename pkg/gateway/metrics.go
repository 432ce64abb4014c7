package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures gateway Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "accord").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// MetricsOption configures gateway metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// Metrics holds the gateway's Prometheus collectors. A nil *Metrics disables
// collection; every method is nil-safe.
type Metrics struct {
	eventsTotal     *prometheus.CounterVec
	identifiesTotal *prometheus.CounterVec
	reconnectsTotal *prometheus.CounterVec
	zombiesTotal    *prometheus.CounterVec
	connectedShards prometheus.Gauge
}

// NewMetrics creates and registers the gateway collectors.
//
// Metrics collected:
//   - accord_gateway_events_total: Counter of dispatched events by shard and event
//   - accord_gateway_identifies_total: Counter of handshakes by shard and kind (identify/resume)
//   - accord_gateway_reconnects_total: Counter of reconnects by shard and verdict
//   - accord_gateway_zombie_connections_total: Counter of zombie detections by shard
//   - accord_gateway_connected_shards: Gauge of shards currently Connected
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := MetricsConfig{
		Namespace: "accord",
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)
	return &Metrics{
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "gateway",
			Name:        "events_total",
			Help:        "Total number of dispatched gateway events",
			ConstLabels: config.ConstLabels,
		}, []string{"shard", "event"}),

		identifiesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "gateway",
			Name:        "identifies_total",
			Help:        "Total number of session handshakes by kind",
			ConstLabels: config.ConstLabels,
		}, []string{"shard", "kind"}),

		reconnectsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "gateway",
			Name:        "reconnects_total",
			Help:        "Total number of reconnect attempts by verdict",
			ConstLabels: config.ConstLabels,
		}, []string{"shard", "verdict"}),

		zombiesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "gateway",
			Name:        "zombie_connections_total",
			Help:        "Total number of connections closed for missed heartbeat acks",
			ConstLabels: config.ConstLabels,
		}, []string{"shard"}),

		connectedShards: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   "gateway",
			Name:        "connected_shards",
			Help:        "Number of shards currently in the Connected state",
			ConstLabels: config.ConstLabels,
		}),
	}
}

func (m *Metrics) eventDispatched(id ShardID, event string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(id.String(), event).Inc()
}

func (m *Metrics) handshake(id ShardID, kind string) {
	if m == nil {
		return
	}
	m.identifiesTotal.WithLabelValues(id.String(), kind).Inc()
}

func (m *Metrics) reconnect(id ShardID, verdict Verdict) {
	if m == nil {
		return
	}
	m.reconnectsTotal.WithLabelValues(id.String(), verdict.String()).Inc()
}

func (m *Metrics) zombie(id ShardID) {
	if m == nil {
		return
	}
	m.zombiesTotal.WithLabelValues(id.String()).Inc()
}

func (m *Metrics) connected(delta float64) {
	if m == nil {
		return
	}
	m.connectedShards.Add(delta)
}

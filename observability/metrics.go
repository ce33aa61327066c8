package observability

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/microledger/ledger"
)

// Metrics holds the ledger's Prometheus collectors. It implements
// ledger.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	// Operations counts operations by kind and result.
	Operations *prometheus.CounterVec
	// Accounts is the number of registered accounts.
	Accounts prometheus.Gauge
	// Posts is the number of posts ever created.
	Posts prometheus.Gauge
	// Tick is the ledger clock.
	Tick prometheus.Gauge
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "microledger_operations_total",
			Help: "Total number of ledger operations by kind and result",
		}, []string{"op", "result"}),
		Accounts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "microledger_accounts",
			Help: "Number of registered accounts",
		}),
		Posts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "microledger_posts",
			Help: "Number of posts created, including removed ones",
		}),
		Tick: factory.NewGauge(prometheus.GaugeOpts{
			Name: "microledger_tick",
			Help: "Current ledger tick",
		}),
	}
}

// Record implements ledger.Recorder.
func (m *Metrics) Record(kind ledger.OpKind, err error) {
	m.Operations.WithLabelValues(string(kind), Result(err)).Inc()
}

// Observe updates the gauges from a stats snapshot.
func (m *Metrics) Observe(s ledger.Stats) {
	m.Accounts.Set(float64(s.Accounts))
	m.Posts.Set(float64(s.Posts))
	m.Tick.Set(float64(s.Now))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Result classifies an operation outcome as a metric label.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ledger.ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, ledger.ErrNotRegistered):
		return "not_registered"
	case errors.Is(err, ledger.ErrNotFound):
		return "not_found"
	case errors.Is(err, ledger.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ledger.ErrEditWindowExpired):
		return "edit_window_expired"
	case errors.Is(err, ledger.ErrAlreadyLiked):
		return "already_liked"
	case errors.Is(err, ledger.ErrNotLiked):
		return "not_liked"
	default:
		return "error"
	}
}

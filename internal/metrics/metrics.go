// Package metrics exposes Prometheus metrics and a health endpoint for
// the execution engine.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the execution engine.
type Metrics struct {
	OrdersPlaced *prometheus.CounterVec // labels: leg, result
	BatchesTotal prometheus.Counter
	Executions   *prometheus.CounterVec // labels: result

	SessionLogins    prometheus.Counter
	SessionCacheHits prometheus.Counter

	RiskDenials         prometheus.Counter
	CircuitBreakerState prometheus.Gauge // 0=clear, 1=latched

	InstrumentFallbacks prometheus.Counter

	OrderDuration     prometheus.Histogram
	ExecutionDuration prometheus.Histogram
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "execengine_orders_placed_total",
			Help: "Leg placements by leg kind and result (success|failure)",
		}, []string{"leg", "result"}),
		BatchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execengine_batches_total",
			Help: "Order batches executed",
		}),
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "execengine_executions_total",
			Help: "Multi-leg executions by overall result (success|partial|failed|denied|error)",
		}, []string{"result"}),
		SessionLogins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execengine_session_logins_total",
			Help: "Fresh broker logins (TOTP exchanges)",
		}),
		SessionCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execengine_session_cache_hits_total",
			Help: "Executions served by a cached session token",
		}),
		RiskDenials: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execengine_risk_denials_total",
			Help: "Executions denied by the risk gate",
		}),
		CircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "execengine_circuit_breaker_state",
			Help: "Risk circuit breaker state (0=clear, 1=latched)",
		}),
		InstrumentFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execengine_instrument_fallbacks_total",
			Help: "Instrument resolutions that fell back to the default lot size",
		}),
		OrderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "execengine_order_duration_seconds",
			Help:    "Broker order round-trip latency",
			Buckets: prometheus.DefBuckets,
		}),
		ExecutionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "execengine_execution_duration_seconds",
			Help:    "Full multi-leg execution duration (all batches and delays)",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
	}

	prometheus.MustRegister(
		m.OrdersPlaced,
		m.BatchesTotal,
		m.Executions,
		m.SessionLogins,
		m.SessionCacheHits,
		m.RiskDenials,
		m.CircuitBreakerState,
		m.InstrumentFallbacks,
		m.OrderDuration,
		m.ExecutionDuration,
	)

	return m
}

// HealthStatus tracks dependency liveness for the /health endpoint.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	BreakerLatched bool      `json:"breaker_latched"`
	LastCheckAt    time.Time `json:"last_check_at"`
	StartedAt      time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

// SetBreakerLatched records the current circuit breaker state.
func (h *HealthStatus) SetBreakerLatched(v bool) {
	h.mu.Lock()
	h.BreakerLatched = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	err := rdb.Ping(ctx).Err()
	h.mu.Lock()
	h.RedisConnected = err == nil
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	err := db.PingContext(ctx)
	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx ends.
// rdb and db may be nil when that dependency is not configured.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, db *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if db != nil {
					h.CheckSQLite(probeCtx, db)
				}
				cancel()
			}
		}
	}()
}

func (h *HealthStatus) snapshot() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HealthStatus{
		RedisConnected: h.RedisConnected,
		SQLiteOK:       h.SQLiteOK,
		BreakerLatched: h.BreakerLatched,
		LastCheckAt:    h.LastCheckAt,
		StartedAt:      h.StartedAt,
	}
}

// Serve exposes /metrics and /health on addr. Blocks; run in a goroutine.
func Serve(addr string, health *HealthStatus) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health.snapshot())
	})

	log.Printf("[metrics] serving on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("[metrics] server stopped: %v", err)
	}
}

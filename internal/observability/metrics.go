package observability

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	types "github.com/yungbote/chatflow-backend/internal/domain"
	domainjobs "github.com/yungbote/chatflow-backend/internal/domain/jobs"
	"github.com/yungbote/chatflow-backend/internal/platform/envutil"
	"github.com/yungbote/chatflow-backend/internal/platform/logger"
)

// Metrics owns a private Prometheus registry. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	reg *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	generationRuns      *prometheus.CounterVec
	generationFallbacks *prometheus.CounterVec
	generationDuration  prometheus.Histogram

	answers   *prometheus.CounterVec
	finalized *prometheus.CounterVec

	queueDepth *prometheus.GaugeVec
	redisUp    prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "HTTP requests currently being served.",
		}),
		generationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatflow_generation_runs_total",
			Help: "Schema generation runs by outcome.",
		}, []string{"outcome"}),
		generationFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatflow_generation_fallbacks_total",
			Help: "Language model steps replaced by deterministic fallback data.",
		}, []string{"step"}),
		generationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatflow_generation_duration_seconds",
			Help:    "Schema generation pipeline duration.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatflow_submission_answers_total",
			Help: "Answer persistence attempts by outcome.",
		}, []string{"outcome"}),
		finalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatflow_submissions_finalized_total",
			Help: "Finalized submissions by terminal status.",
		}, []string{"status"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "job_queue_depth",
			Help: "Job runs by status.",
		}, []string{"status"}),
		redisUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redis_up",
			Help: "1 when the last Redis ping succeeded.",
		}),
	}
	m.reg.MustRegister(
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.generationRuns, m.generationFallbacks, m.generationDuration,
		m.answers, m.finalized,
		m.queueDepth, m.redisUp,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m != nil {
		m.apiInflight.Inc()
	}
}

func (m *Metrics) ApiInflightDec() {
	if m != nil {
		m.apiInflight.Dec()
	}
}

func (m *Metrics) ObserveFallback(step string) {
	if m != nil {
		m.generationFallbacks.WithLabelValues(step).Inc()
	}
}

func (m *Metrics) ObserveGeneration(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.generationRuns.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.generationDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveAnswer(outcome string) {
	if m != nil {
		m.answers.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveFinalize(status string) {
	if m != nil {
		m.finalized.WithLabelValues(status).Inc()
	}
}

func scrapeInterval() time.Duration {
	return envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", 15*time.Second)
}

// StartJobQueueCollector refreshes job_queue_depth until ctx is done.
func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(scrapeInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.collectJobQueue(ctx, db); err != nil && log != nil {
					log.Warn("metrics: job queue depth query failed", "error", err)
				}
			}
		}
	}()
}

func (m *Metrics) collectJobQueue(ctx context.Context, db *gorm.DB) error {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.WithContext(ctx).
		Model(&types.JobRun{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}
	for _, s := range []string{domainjobs.StatusQueued, domainjobs.StatusRunning, domainjobs.StatusSucceeded, domainjobs.StatusFailed, domainjobs.StatusCanceled} {
		m.queueDepth.WithLabelValues(s).Set(0)
	}
	for _, row := range rows {
		status := strings.TrimSpace(row.Status)
		if status == "" {
			status = "unknown"
		}
		m.queueDepth.WithLabelValues(status).Set(float64(row.Count))
	}
	return nil
}

// StartRedisCollector pings rdb and records redis_up until ctx is done.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *goredis.Client) {
	if m == nil || rdb == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(scrapeInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
			}
		}
	}()
}

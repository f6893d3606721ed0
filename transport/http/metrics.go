package http

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/layer-3/questproof/core"
)

// Metrics holds the collectors exposed at /metrics
type Metrics struct {
	gatherer prometheus.Gatherer

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	challenges      prometheus.Counter
	verifications   *prometheus.CounterVec
	submissions     *prometheus.CounterVec
	ledger          *prometheus.CounterVec
	rewards         *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "questproof_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "questproof_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		challenges: factory.NewCounter(prometheus.CounterOpts{
			Name: "questproof_challenges_issued_total",
			Help: "Sign-in challenges issued",
		}),
		verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "questproof_verifications_total",
			Help: "Challenge verifications by result",
		}, []string{"result"}),
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "questproof_submissions_total",
			Help: "Quest submissions by result",
		}, []string{"result"}),
		ledger: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "questproof_ledger_anchors_total",
			Help: "Memo anchoring outcomes",
		}, []string{"status"}),
		rewards: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "questproof_rewards_total",
			Help: "Reward distribution outcomes",
		}, []string{"status"}),
	}
}

// Middleware records request count and latency per matched route
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
}

func (m *Metrics) challengeIssued() {
	m.challenges.Inc()
}

func (m *Metrics) verification(err error) {
	m.verifications.WithLabelValues(resultLabel(err)).Inc()
}

func (m *Metrics) submission(result *core.SubmissionResult, err error) {
	m.submissions.WithLabelValues(resultLabel(err)).Inc()
	if result != nil {
		m.ledger.WithLabelValues(string(result.Ledger.Status)).Inc()
		m.rewards.WithLabelValues(string(result.Reward.Status)).Inc()
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return errorKind(err)
}

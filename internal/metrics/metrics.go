package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Balance mutations by operation (grant, set, signup) and coin type
	LedgerOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coin_ledger_operations_total",
		Help: "Total number of ledger balance mutations",
	}, []string{"op", "coin_type"})

	// Referral bonuses credited
	ReferralBonuses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coin_referral_bonus_total",
		Help: "Total number of referral bonuses credited",
	}, []string{"coin_type"})

	// Bonus or notification steps rolled back and skipped
	BonusFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coin_bonus_failures_total",
		Help: "Referral bonus or notification steps that failed and were skipped",
	})

	Signups = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coin_signups_total",
		Help: "Total number of completed signups",
	})

	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latency of HTTP handlers",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Init registers the collectors with the default registry
func Init() {
	prometheus.MustRegister(
		LedgerOperations,
		ReferralBonuses,
		BonusFailures,
		Signups,
		RequestDuration,
	)
}

// Middleware records handler latency by route template
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

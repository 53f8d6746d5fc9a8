package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 邮箱指标
	MailboxesCreated prometheus.Counter
	MailboxesExpired prometheus.Counter
	MailboxesPurged  prometheus.Counter
	QuotaRejections  prometheus.Counter

	// 防护指标
	PatternHits     prometheus.Counter
	RateLimitBlocks *prometheus.CounterVec
	BlockedIPHits   prometheus.Counter

	// 错误指标
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kezmail_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kezmail_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		MailboxesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kezmail_mailboxes_created_total",
			Help: "Total number of temp mailboxes created",
		}),
		MailboxesExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kezmail_mailboxes_expired_total",
			Help: "Total number of mailboxes marked expired by the sweep",
		}),
		MailboxesPurged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kezmail_mailboxes_purged_total",
			Help: "Total number of expired mailboxes hard-deleted",
		}),
		QuotaRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kezmail_quota_rejections_total",
			Help: "Total number of mailbox creations rejected by the daily quota",
		}),
		PatternHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kezmail_suspicious_pattern_hits_total",
			Help: "Total number of requests rejected by the pattern filter",
		}),
		RateLimitBlocks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kezmail_rate_limit_blocks_total",
				Help: "Total number of requests rejected by rate limiting",
			},
			[]string{"limiter"},
		),
		BlockedIPHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kezmail_blocked_ip_hits_total",
			Help: "Total number of requests rejected by the IP block list",
		}),
		PanicsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kezmail_panics_total",
			Help: "Total number of recovered panics",
		}),
	}
}

// RecordHTTPRequest 记录一次 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EmailsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tern_emails_sent_total",
		Help: "Total number of emails delivered to an SMTP server",
	}, []string{"host"})
	EmailsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tern_emails_failed_total",
		Help: "Total number of email sends that failed",
	}, []string{"host"})
	SMTPBreakerTripped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tern_smtp_breaker_tripped_total",
		Help: "Total number of SMTP accounts disabled by the failure breaker",
	}, []string{"host"})

	// Campaign lifecycle metrics
	CampaignsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tern_campaigns_completed_total",
		Help: "Total number of campaigns that finished with every recipient sent",
	})
	CampaignsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tern_campaigns_failed_total",
		Help: "Total number of campaigns that failed without a single delivery",
	})

	// Engagement metrics. No team label, beacon endpoints are public and
	// cardinality must stay bounded.
	OpensRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tern_opens_recorded_total",
		Help: "Total number of tracked message opens",
	})
	ClicksRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tern_clicks_recorded_total",
		Help: "Total number of tracked message clicks",
	})
	UnsubscribesRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tern_unsubscribes_recorded_total",
		Help: "Total number of unsubscribes via the public endpoint",
	})

	WebhookDeliverySuccess = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tern_webhook_delivery_success_total",
		Help: "Total number of webhook deliveries acknowledged with a 2xx",
	})
	WebhookDeliveryFailure = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tern_webhook_delivery_failure_total",
		Help: "Total number of webhook deliveries that failed",
	})
)

func init() {
	prometheus.MustRegister(EmailsSent)
	prometheus.MustRegister(EmailsFailed)
	prometheus.MustRegister(SMTPBreakerTripped)
	prometheus.MustRegister(CampaignsCompleted)
	prometheus.MustRegister(CampaignsFailed)
	prometheus.MustRegister(OpensRecorded)
	prometheus.MustRegister(ClicksRecorded)
	prometheus.MustRegister(UnsubscribesRecorded)
	prometheus.MustRegister(WebhookDeliverySuccess)
	prometheus.MustRegister(WebhookDeliveryFailure)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

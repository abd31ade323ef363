package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pushserver_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	otpIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushserver_otp_issued_total",
			Help: "OTP codes issued by request type and trigger",
		},
		[]string{"request_type", "trigger"},
	)
	otpVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushserver_otp_verifications_total",
			Help: "OTP verification attempts by outcome",
		},
		[]string{"outcome"},
	)
	smsDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushserver_sms_deliveries_total",
			Help: "SMS dispatch attempts by success",
		},
		[]string{"success"},
	)
	pushDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushserver_push_deliveries_total",
			Help: "Web push deliveries by mode and success",
		},
		[]string{"mode", "success"},
	)
)

func ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	if path == "" {
		path = "unmatched"
	}
	httpRequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func RecordOTPIssued(requestType, trigger string) {
	otpIssued.WithLabelValues(requestType, trigger).Inc()
}

func RecordOTPVerification(outcome string) {
	otpVerifications.WithLabelValues(outcome).Inc()
}

func RecordSMSDelivery(success bool) {
	smsDeliveries.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func RecordPushDelivery(mode string, success bool) {
	pushDeliveries.WithLabelValues(mode, strconv.FormatBool(success)).Inc()
}

package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wallet_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wallet_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	secretReveals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet_layer",
			Subsystem: "custody",
			Name:      "secret_reveals_total",
			Help:      "Total number of secret reveal attempts.",
		},
		[]string{"access_type", "success"},
	)

	backupConfirmations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet_layer",
			Subsystem: "custody",
			Name:      "backup_confirmations_total",
			Help:      "Total number of backup confirmation attempts.",
		},
		[]string{"success"},
	)

	passcodeVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet_layer",
			Subsystem: "custody",
			Name:      "passcode_verifications_total",
			Help:      "Total number of device passcode verification attempts.",
		},
		[]string{"success"},
	)

	auditWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wallet_layer",
			Subsystem: "audit",
			Name:      "write_failures_total",
			Help:      "Total number of access log writes that failed to persist.",
		},
	)

	secretCorruptions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wallet_layer",
			Subsystem: "custody",
			Name:      "secret_corruptions_total",
			Help:      "Total number of stored secrets that failed integrity checks.",
		},
	)

	reminderRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet_layer",
			Subsystem: "reminders",
			Name:      "sweep_runs_total",
			Help:      "Total number of backup reminder sweeps.",
		},
		[]string{"success"},
	)

	reminderDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "wallet_layer",
			Subsystem: "reminders",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of backup reminder sweeps.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		secretReveals,
		backupConfirmations,
		passcodeVerifications,
		auditWriteFailures,
		secretCorruptions,
		reminderRuns,
		reminderDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordSecretReveal records a reveal attempt by access type.
func RecordSecretReveal(accessType string, success bool) {
	secretReveals.WithLabelValues(accessType, boolLabel(success)).Inc()
}

// RecordBackupConfirmation records a backup quiz attempt.
func RecordBackupConfirmation(success bool) {
	backupConfirmations.WithLabelValues(boolLabel(success)).Inc()
}

// RecordPasscodeVerification records a device passcode check.
func RecordPasscodeVerification(success bool) {
	passcodeVerifications.WithLabelValues(boolLabel(success)).Inc()
}

// RecordAuditWriteFailure counts an access log entry that could not be
// persisted.
func RecordAuditWriteFailure() {
	auditWriteFailures.Inc()
}

// RecordSecretCorruption counts a stored secret that failed authentication.
func RecordSecretCorruption() {
	secretCorruptions.Inc()
}

// RecordReminderSweep records one scheduled reminder pass.
func RecordReminderSweep(duration time.Duration, success bool) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	reminderRuns.WithLabelValues(boolLabel(success)).Inc()
	reminderDuration.Observe(duration.Seconds())
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "wallets" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/wallets"
	}
	if len(parts) == 2 {
		return "/wallets/:wallet"
	}
	return "/wallets/:wallet/" + strings.Join(parts[2:], "/")
}

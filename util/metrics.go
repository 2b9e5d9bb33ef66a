package util

import (
	"time"

	"github.com/elijahnyp/smart_house/state"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	reportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_house_reports_total",
			Help: "Reports generated, by scope and result",
		},
		[]string{"scope", "result"},
	)
	reportDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smart_house_report_duration_seconds",
			Help:    "Time spent generating reports",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		},
		[]string{"scope"},
	)
)

func init() {
	prometheus.MustRegister(reportsTotal, reportDuration)
}

// GenerateReport runs r.CreateReport and records the outcome under scope.
func GenerateReport(scope string, r state.Reporter) (string, error) {
	start := time.Now()
	report, err := r.CreateReport()
	reportDuration.WithLabelValues(scope).Observe(time.Since(start).Seconds())
	if err != nil {
		reportsTotal.WithLabelValues(scope, "error").Inc()
		Logger.Warn().Err(err).Msgf("%s report failed", scope)
		return "", err
	}
	reportsTotal.WithLabelValues(scope, "ok").Inc()
	return report, nil
}

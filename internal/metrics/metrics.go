package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry        *prometheus.Registry
	commitRuns      *prometheus.CounterVec // total commit cycles
	commitDuration  prometheus.Histogram   // time to commit
	dnsRequests     *prometheus.CounterVec // dns provider requests
	records         *prometheus.GaugeVec   // tracked records by classification
	publicIPLookups *prometheus.CounterVec // public address lookups
	inventoryWrites *prometheus.CounterVec // inventory file writes
	badgerRequests  *prometheus.CounterVec // badgerdb requests
}

// Public interface for metrics operations
func (m *Metrics) IncCommitRun(success bool) {
	status := boolToResult(success)
	m.commitRuns.WithLabelValues(status).Inc()
}

func (m *Metrics) SetCommitDuration(duration time.Duration) {
	m.commitDuration.Observe(float64(duration.Milliseconds()))
}

func (m *Metrics) IncDNSRequest(operation, zone string, success bool) {
	if !isValidOperation(operation) || zone == "" {
		return
	}
	status := boolToResult(success)
	m.dnsRequests.WithLabelValues(operation, zone, status).Inc()
}

func (m *Metrics) SetRecords(matched, mismatched, invalid int) {
	m.records.WithLabelValues("match").Set(float64(matched))
	m.records.WithLabelValues("mismatch").Set(float64(mismatched))
	m.records.WithLabelValues("invalid").Set(float64(invalid))
}

func (m *Metrics) IncPublicIPLookup(method, family string, success bool) {
	if family != "ipv4" && family != "ipv6" {
		return
	}
	status := boolToResult(success)
	m.publicIPLookups.WithLabelValues(method, family, status).Inc()
}

func (m *Metrics) IncInventoryWrite(success bool) {
	status := boolToResult(success)
	m.inventoryWrites.WithLabelValues(status).Inc()
}

func (m *Metrics) IncBadgerRequest(operation string, success bool) {
	if !isValidOperation(operation) {
		return
	}
	status := boolToResult(success)
	m.badgerRequests.WithLabelValues(operation, status).Inc()
}

// Validation helpers
func boolToResult(b bool) string {
	if b {
		return "success"
	}
	return "failure"
}

func isValidOperation(op string) bool {
	switch op {
	case "read", "update", "delete", "verify":
		return true
	}
	return false
}

func New(register bool) *Metrics {
	registry := prometheus.NewRegistry()
	namespace := "cddns"

	m := &Metrics{
		registry: registry,

		commitRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_runs_total",
			Help:      "Total number of commit cycles",
		}, []string{"status"}),

		commitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_duration_milliseconds",
			Help:      "Duration of commit cycles in milliseconds",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 12),
		}),

		dnsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dns_requests_total",
			Help:      "Total DNS provider requests",
		}, []string{"operation", "zone", "status"}),

		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_current",
			Help:      "Tracked records by classification of the last check",
		}, []string{"status"}),

		publicIPLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "public_ip_lookups_total",
			Help:      "Total public address lookups",
		}, []string{"method", "family", "status"}),

		inventoryWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_writes_total",
			Help:      "Total inventory file writes",
		}, []string{"status"}),

		badgerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "badgerdb_requests_total",
			Help:      "Total badgerdb requests",
		}, []string{"operation", "status"}),
	}

	if register {
		registry.MustRegister(
			m.commitRuns,
			m.commitDuration,
			m.dnsRequests,
			m.records,
			m.publicIPLookups,
			m.inventoryWrites,
			m.badgerRequests,
		)
	}
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

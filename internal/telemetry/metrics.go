// Package telemetry holds the Prometheus collectors shared by the token
// cache, the evaluation client, and the mock server.
package telemetry

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels for token refreshes.
const (
	ResultSuccess        = "success"
	ResultAuthentication = "authentication_error"
	ResultTransport      = "transport_error"
	ResultSigning        = "signing_error"
)

// TokenMetrics records token exchanges performed by a token cache.
// A nil *TokenMetrics records nothing.
type TokenMetrics struct {
	refreshes       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
}

// NewTokenMetrics creates the token collectors and registers them on reg.
// Collectors already registered by an earlier call are reused, so several
// caches may share one registry. A nil reg leaves them unregistered.
func NewTokenMetrics(reg prometheus.Registerer) *TokenMetrics {
	return &TokenMetrics{
		refreshes: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmn_token_refreshes_total",
			Help: "Total access-token exchanges by result.",
		}, []string{"result"})),
		refreshDuration: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dmn_token_refresh_duration_seconds",
			Help:    "Duration of access-token exchanges in seconds.",
			Buckets: prometheus.DefBuckets,
		})),
	}
}

// RecordRefresh records one token exchange.
func (m *TokenMetrics) RecordRefresh(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
	m.refreshDuration.Observe(d.Seconds())
}

// APIMetrics records calls made to the evaluation API.
// A nil *APIMetrics records nothing.
type APIMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewAPIMetrics creates the API collectors and registers them on reg.
func NewAPIMetrics(reg prometheus.Registerer) *APIMetrics {
	return &APIMetrics{
		requests: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmn_api_requests_total",
			Help: "Total evaluation API requests by operation and response status.",
		}, []string{"operation", "status"})),
		duration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dmn_api_request_duration_seconds",
			Help:    "Evaluation API request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"})),
	}
}

// RecordRequest records one API call. status 0 means no response arrived.
func (m *APIMetrics) RecordRequest(operation string, status int, d time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(operation, label).Inc()
	m.duration.WithLabelValues(operation).Observe(d.Seconds())
}

// ServerMetrics records requests served by the mock server.
type ServerMetrics struct {
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	tokenExchanges *prometheus.CounterVec
}

// NewServerMetrics creates the mock-server collectors and registers them on reg.
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	return &ServerMetrics{
		requests: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmn_mock_requests_total",
			Help: "Total HTTP requests by method, path, and response status.",
		}, []string{"method", "path", "status"})),
		duration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dmn_mock_request_duration_seconds",
			Help:    "Request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})),
		tokenExchanges: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmn_mock_token_exchanges_total",
			Help: "Total JWT-bearer exchanges by outcome.",
		}, []string{"outcome"})),
	}
}

// RecordRequest records one served request.
func (m *ServerMetrics) RecordRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, path).Observe(d.Seconds())
}

// RecordTokenExchange records one token endpoint outcome ("issued" or a
// rejection reason).
func (m *ServerMetrics) RecordTokenExchange(outcome string) {
	if m == nil {
		return
	}
	m.tokenExchanges.WithLabelValues(outcome).Inc()
}

// register registers c on reg, returning the collector already registered
// under the same descriptor when there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

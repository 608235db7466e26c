package telemetry_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/quantumdmn/dmn-go/internal/telemetry"
)

func TestTokenMetrics_sharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := telemetry.NewTokenMetrics(reg)
	b := telemetry.NewTokenMetrics(reg) // must not panic or fail on duplicate registration

	a.RecordRefresh(telemetry.ResultSuccess, 10*time.Millisecond)
	b.RecordRefresh(telemetry.ResultSuccess, 20*time.Millisecond)
	b.RecordRefresh(telemetry.ResultTransport, time.Millisecond)

	n, err := testutil.GatherAndCount(reg, "dmn_token_refreshes_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("series: got %d, want 2 (success + transport_error)", n)
	}
}

func TestAPIMetrics_statusLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewAPIMetrics(reg)
	m.RecordRequest("evaluate", 200, time.Millisecond)
	m.RecordRequest("evaluate", 0, time.Millisecond)

	n, err := testutil.GatherAndCount(reg, "dmn_api_requests_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("series: got %d, want 2 (200 + error)", n)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var tm *telemetry.TokenMetrics
	tm.RecordRefresh(telemetry.ResultSuccess, time.Second)
	var am *telemetry.APIMetrics
	am.RecordRequest("evaluate", 200, time.Second)
	var sm *telemetry.ServerMetrics
	sm.RecordRequest("GET", "/", 200, time.Second)
	sm.RecordTokenExchange("issued")
}

func TestNilRegistererLeavesCollectorsUsable(t *testing.T) {
	m := telemetry.NewServerMetrics(nil)
	m.RecordRequest("POST", "/oauth/v2/token", 200, time.Millisecond)
	m.RecordTokenExchange("issued")
}

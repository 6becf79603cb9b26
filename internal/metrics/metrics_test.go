package metrics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"db-relay/internal/metrics"
	"db-relay/internal/model"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRun(t *testing.T) {
	c, err := metrics.New()
	if err != nil {
		t.Fatal(err)
	}

	c.ObserveRun("users", model.RunResult{Success: true, RowsAffected: 3, DurationMs: 120})
	c.ObserveRun("users", model.RunResult{Success: false, DurationMs: 10})
	c.ObserveBatch(model.BatchResult{Success: false})
	c.ConversionFallback()
	c.UnmappedPlaceholder()
	c.UnmappedPlaceholder()

	expected := `
# HELP relay_rows_written_total Rows committed to targets per integration.
# TYPE relay_rows_written_total counter
relay_rows_written_total{integration="users"} 3
# HELP relay_runs_total Integration runs partitioned by integration and status.
# TYPE relay_runs_total counter
relay_runs_total{integration="users",status="failed"} 1
relay_runs_total{integration="users",status="success"} 1
# HELP relay_unmapped_placeholders_total Placeholders bound as NULL because no source column matched.
# TYPE relay_unmapped_placeholders_total counter
relay_unmapped_placeholders_total 2
`
	if err := testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected),
		"relay_rows_written_total", "relay_runs_total", "relay_unmapped_placeholders_total"); err != nil {
		t.Error(err)
	}
	if n := testutil.CollectAndCount(c.Registry(), "relay_run_duration_seconds"); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
}

func TestNilCollector(t *testing.T) {
	var c *metrics.Collector
	c.ObserveRun("x", model.RunResult{Success: true})
	c.ObserveBatch(model.BatchResult{})
	c.ConversionFallback()
	if err := c.Push(context.Background(), "http://unused", "job"); err != nil {
		t.Errorf("nil Push returned %v", err)
	}
}

func TestPush(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := metrics.New()
	if err != nil {
		t.Fatal(err)
	}
	c.ObserveRun("users", model.RunResult{Success: true, RowsAffected: 1})

	if err := c.Push(context.Background(), srv.URL, ""); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if gotPath != "/metrics/job/db-relay" {
		t.Errorf("path = %q", gotPath)
	}

	if err := c.Push(context.Background(), "", "job"); err == nil {
		t.Error("expected error for empty gateway URL")
	}
}

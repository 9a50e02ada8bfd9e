package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistry_RecordAnalysis(t *testing.T) {
	r := New()
	r.RecordAnalysis("common-conditions", nil, 10*time.Millisecond)
	r.RecordAnalysis("common-conditions", nil, 20*time.Millisecond)
	r.RecordAnalysis("patient-trajectory", errors.New("boom"), time.Millisecond)

	if got := testutil.ToFloat64(r.AnalysesEvaluated.WithLabelValues("common-conditions", ResultSuccess)); got != 2 {
		t.Errorf("expected 2 successful evaluations, got %v", got)
	}
	if got := testutil.ToFloat64(r.AnalysesEvaluated.WithLabelValues("patient-trajectory", ResultError)); got != 1 {
		t.Errorf("expected 1 failed evaluation, got %v", got)
	}
}

func TestRegistry_SetTableRows(t *testing.T) {
	r := New()
	r.SetTableRows("conditions", 30)
	r.SetTableRows("conditions", 42)

	if got := testutil.ToFloat64(r.TableRows.WithLabelValues("conditions")); got != 42 {
		t.Errorf("expected 42 rows, got %v", got)
	}
}

func TestRegistry_Handler(t *testing.T) {
	r := New()
	r.RecordHTTPRequest("GET", "/api/v1/analyses", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	want := `ehr_explore_http_requests_total{method="GET",route="/api/v1/analyses",status="200"} 1`
	if !strings.Contains(string(body), want) {
		t.Errorf("expected exposition to contain %q", want)
	}
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.SetTableRows("patients", 1)

	n, err := testutil.GatherAndCount(b.Gatherer(), "ehr_explore_tables_loaded_rows")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 0 {
		t.Errorf("registries must not share collectors, got %d series", n)
	}
}

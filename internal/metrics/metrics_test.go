package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsRecordAndServe(t *testing.T) {
	m := New()
	m.ObserveHTTP("GET /api/settlement", "GET", 200, 15*time.Millisecond)
	m.ObserveImport(3, 1, 2, 1)
	m.ObserveSync("upsert", nil)
	m.ObserveSync("upsert", errors.New("quota"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`conto_http_requests_total{code="200",method="GET",route="GET /api/settlement"} 1`,
		`conto_import_rows_total{outcome="new"} 3`,
		`conto_sheet_sync_total{operation="upsert",result="error"} 1`,
		`conto_rule_auto_applied_total 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("x", "GET", 200, time.Second)
	m.ObserveImport(1, 1, 1, 1)
	m.ObserveSync("delete", nil)
	m.ObservePreview("created")
	m.ObservePersistFailure()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("nil metrics handler code = %d", rec.Code)
	}
}

package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	applog "conto/internal/log"
)

type observation struct {
	route, method string
	code          int
}

type fakeRecorder struct{ got []observation }

func (f *fakeRecorder) ObserveHTTP(route, method string, code int, _ time.Duration) {
	f.got = append(f.got, observation{route, method, code})
}

func TestMiddlewareTagsAndRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Format: applog.FormatJSON, Output: &buf})
	rec := &fakeRecorder{}

	mux := http.NewServeMux()
	var seenID string
	mux.HandleFunc("GET /api/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})
	h := NewMiddleware(logger, func(*http.Request) string { return "9.9.9.9" }, rec).Middleware(mux)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/items/42", nil))

	if seenID == "" || w.Header().Get(HeaderRequestID) != seenID {
		t.Fatalf("request id not propagated: ctx %q header %q", seenID, w.Header().Get(HeaderRequestID))
	}
	if len(rec.got) != 1 || rec.got[0] != (observation{"GET /api/items/{id}", "GET", http.StatusTeapot}) {
		t.Fatalf("observations = %+v", rec.got)
	}
	if !strings.Contains(buf.String(), `"status_code":418`) || !strings.Contains(buf.String(), seenID) {
		t.Fatalf("log = %s", buf.String())
	}

	w = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	r.Header.Set(HeaderRequestID, "caller-id")
	h.ServeHTTP(w, r)
	if w.Header().Get(HeaderRequestID) != "caller-id" {
		t.Fatal("caller request id not reused")
	}
	if rec.got[1].route != "unmatched" || rec.got[1].code != http.StatusNotFound {
		t.Fatalf("unmatched observation = %+v", rec.got[1])
	}
}

func TestGenerateRequestID(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	if a == b || !strings.HasPrefix(a, "req_") {
		t.Fatalf("ids %q %q", a, b)
	}
}

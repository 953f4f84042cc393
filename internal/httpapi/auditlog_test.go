package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gatehouse.org/internal/audit"
)

func TestPipelineExactlyOneRecordPerRequest(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/stats/visits", nil)
	rr := httptest.NewRecorder()
	h.api.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
	records := h.sink.all()
	if len(records) != 1 {
		t.Fatalf("expected exactly one audit record, got %d", len(records))
	}
	rec := records[0]
	if rec.Severity != audit.SeverityHigh {
		t.Fatalf("4xx must audit as high, got %v", rec.Severity)
	}
	if rec.StatusCode != http.StatusUnauthorized || rec.Method != http.MethodGet {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.ActorID != nil {
		t.Fatalf("anonymous request must have no actor, got %v", rec.ActorID)
	}
}

func TestPipelineRecordsActorFromToken(t *testing.T) {
	h := newHarness(t)
	acc := h.seed(t, "a@x.com", "correct", "admin", true)

	req := httptest.NewRequest(http.MethodGet, "/v1/stats/visits", nil)
	req.Header.Set("Authorization", "Bearer "+h.token(t, acc))
	rr := httptest.NewRecorder()
	h.api.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	records := h.sink.all()
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	rec := records[0]
	if rec.ActorID == nil || *rec.ActorID != acc.ID {
		t.Fatalf("actor = %v, want %d", rec.ActorID, acc.ID)
	}
	if rec.Severity != audit.SeverityLow || rec.ResourceType != audit.ResourceStats || rec.Action != audit.ActionView {
		t.Fatalf("unexpected classification: %+v", rec)
	}
}

func TestPipelineExcludedPaths(t *testing.T) {
	h := newHarness(t)
	handler := h.api.Handler()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	}
	if records := h.sink.all(); len(records) != 0 {
		t.Fatalf("diagnostics endpoints must produce zero records, got %d", len(records))
	}
}

func TestPipelinePanicIsCriticalAndResponseWellFormed(t *testing.T) {
	h := newHarness(t)

	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler exploded")
	})
	// Same chain shape as API.Handler: translator outside the pipeline.
	handler := h.api.recoverPanics(h.api.auditRequests(panicking))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/visit/7/close", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("client must still get a 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "internal error") {
		t.Fatalf("client must get a well-formed error body, got %q", rr.Body.String())
	}

	records := h.sink.all()
	if len(records) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(records))
	}
	rec := records[0]
	if rec.Severity != audit.SeverityCritical {
		t.Fatalf("panic must audit as critical, got %v", rec.Severity)
	}
	if rec.StatusCode != http.StatusInternalServerError {
		t.Fatalf("recorded status = %d", rec.StatusCode)
	}
	if rec.Action != audit.ActionCloseVisit {
		t.Fatalf("close substring must win over verb mapping, got %q", rec.Action)
	}
}

func TestPipelinePreservesResponseBytes(t *testing.T) {
	h := newHarness(t)

	payload := `{"custom":"body"}`
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Custom", "yes")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(payload))
	})
	handler := h.api.auditRequests(inner)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/visitor/3", nil))

	if rr.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Body.String() != payload {
		t.Fatalf("body must pass through byte-for-byte, got %q", rr.Body.String())
	}
	if rr.Header().Get("X-Custom") != "yes" {
		t.Fatal("headers must pass through")
	}

	rec := h.sink.all()[0]
	if rec.ResourceType != audit.ResourceVisitor {
		t.Fatalf("resource = %q, want Visitor", rec.ResourceType)
	}
	if rec.ResourceID == nil || *rec.ResourceID != 3 {
		t.Fatalf("resource id = %v, want 3", rec.ResourceID)
	}
}

func TestActionHeuristics(t *testing.T) {
	cases := []struct {
		method, path, want string
	}{
		{http.MethodPost, "/v1/auth/login", audit.ActionLogin},
		{http.MethodPost, "/v1/auth/logout", audit.ActionLogout},
		{http.MethodPost, "/v1/visit/9/close", audit.ActionCloseVisit},
		{http.MethodPut, "/v1/visitor/9/carnet", audit.ActionAssignCarnet},
		{http.MethodGet, "/v1/visit", audit.ActionView},
		{http.MethodPost, "/v1/visit", audit.ActionCreate},
		{http.MethodPut, "/v1/visit/9", audit.ActionUpdate},
		{http.MethodPatch, "/v1/visit/9", audit.ActionUpdate},
		{http.MethodDelete, "/v1/visit/9", audit.ActionDelete},
	}
	for _, tc := range cases {
		if got := actionFor(tc.method, tc.path); got != tc.want {
			t.Fatalf("actionFor(%s %s) = %q, want %q", tc.method, tc.path, got, tc.want)
		}
	}
}

func TestResourceTypeHeuristics(t *testing.T) {
	cases := map[string]string{
		"/v1/visitor/5":     audit.ResourceVisitor,
		"/v1/visit/5":       audit.ResourceVisit,
		"/v1/users/5":       audit.ResourceUser,
		"/v1/auth/login":    audit.ResourceAuth,
		"/v1/stats/visits":  audit.ResourceStats,
		"/v1/something/odd": audit.ResourceUnknown,
	}
	for path, want := range cases {
		if got := resourceTypeFor(path); got != want {
			t.Fatalf("resourceTypeFor(%s) = %q, want %q", path, got, want)
		}
	}
}

func TestResourceIDHeuristic(t *testing.T) {
	if id := resourceIDFor("/api/visit/5"); id == nil || *id != 5 {
		t.Fatalf("resourceIDFor(/api/visit/5) = %v, want 5", id)
	}
	if id := resourceIDFor("/api/visit"); id != nil {
		t.Fatalf("two segments must yield nil, got %v", id)
	}
	if id := resourceIDFor("/visit/5"); id != nil {
		t.Fatalf("two segments must yield nil even with a numeric tail, got %v", id)
	}
	if id := resourceIDFor("/api/visit/abc"); id != nil {
		t.Fatalf("non-integer tail must yield nil, got %v", id)
	}
}

func TestSeverityDerivation(t *testing.T) {
	if severityFor(true, http.StatusOK) != audit.SeverityCritical {
		t.Fatal("panic must be critical regardless of status")
	}
	if severityFor(false, http.StatusNotFound) != audit.SeverityHigh {
		t.Fatal("4xx must be high")
	}
	if severityFor(false, http.StatusInternalServerError) != audit.SeverityHigh {
		t.Fatal("5xx without panic must be high")
	}
	if severityFor(false, http.StatusOK) != audit.SeverityLow {
		t.Fatal("2xx must be low")
	}
}

func TestBufferedWriterFlushOnce(t *testing.T) {
	bw := newBufferedWriter()
	bw.WriteHeader(http.StatusAccepted)
	if _, err := bw.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	// Late status changes are ignored once the header is committed.
	bw.WriteHeader(http.StatusInternalServerError)

	rr := httptest.NewRecorder()
	bw.flush(rr)
	bw.flush(rr) // second flush is a no-op

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Body.String() != "hello" {
		t.Fatalf("body = %q", rr.Body.String())
	}
}

package httpapi

import (
	"bytes"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gatehouse.org/internal/audit"
)

// Diagnostics endpoints are never audited.
var auditExcludedPrefixes = []string{
	"/healthz",
	"/readyz",
	"/metrics",
	"/openapi",
	"/debug/",
}

// auditRequests produces exactly one audit record per in-scope request. The
// downstream handler writes into an in-memory buffer so the final status and
// body can be inspected before a single flush to the real client; a handler
// panic is caught, audited as critical, and re-raised after the flush so the
// outer translator still owns the client-facing error body.
func (a *API) auditRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auditExcluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		meta := audit.RequestMeta{
			ClientIP:  clientIP(r),
			UserAgent: r.UserAgent(),
			Method:    r.Method,
			Path:      r.URL.Path,
		}
		r = r.WithContext(audit.WithRequestMeta(r.Context(), meta))

		bw := newBufferedWriter()
		var panicked any

		// The flush runs after the record write no matter what, so the
		// client sees the same bytes with or without a working audit sink.
		defer func() {
			bw.flush(w)
			if panicked != nil {
				panic(panicked)
			}
		}()

		func() {
			defer func() {
				if p := recover(); p != nil {
					panicked = p
				}
			}()
			next.ServeHTTP(bw, r)
		}()

		status := bw.status
		if panicked != nil && !bw.wroteHeader {
			status = http.StatusInternalServerError
		}

		rec := &audit.Record{
			ActorID:      a.actorID(r),
			Action:       actionFor(r.Method, r.URL.Path),
			ResourceType: resourceTypeFor(r.URL.Path),
			ResourceID:   resourceIDFor(r.URL.Path),
			Severity:     severityFor(panicked != nil, status),
			ClientIP:     meta.ClientIP,
			UserAgent:    meta.UserAgent,
			Method:       meta.Method,
			Path:         meta.Path,
			StatusCode:   status,
			Duration:     time.Since(start),
		}
		if panicked != nil {
			rec.Metadata = map[string]any{"panic": true}
		}
		// Recorder swallows store failures; they end up in the diagnostic
		// log, never in the response.
		a.recorder.Record(r.Context(), rec)
	})
}

// actorID extracts the actor from the bearer token, if one is present and
// valid. Anonymous requests simply have no actor; that is not a failure.
func (a *API) actorID(r *http.Request) *int64 {
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		return nil
	}
	id, ok := a.codec.SubjectID(token)
	if !ok {
		return nil
	}
	return &id
}

// bufferedWriter substitutes the real response sink for the duration of one
// request. One buffer per request; flush happens exactly once.
type bufferedWriter struct {
	header      http.Header
	buf         bytes.Buffer
	status      int
	wroteHeader bool
	flushed     bool
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{header: make(http.Header), status: http.StatusOK}
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(code int) {
	if b.wroteHeader {
		return
	}
	b.status = code
	b.wroteHeader = true
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if !b.wroteHeader {
		b.WriteHeader(http.StatusOK)
	}
	return b.buf.Write(p)
}

// flush copies headers, status and body to the real writer. If the handler
// never produced a response (panic before the first write), nothing is sent
// here and the outer translator writes the error body instead.
func (b *bufferedWriter) flush(w http.ResponseWriter) {
	if b.flushed {
		return
	}
	b.flushed = true
	if !b.wroteHeader {
		return
	}
	dst := w.Header()
	for k, vv := range b.header {
		dst[k] = vv
	}
	w.WriteHeader(b.status)
	if b.buf.Len() > 0 {
		_, _ = w.Write(b.buf.Bytes())
	}
}

// --- classification heuristics ---

// actionFor maps a request to an action code. Explicit substring checks win
// over the generic verb mapping.
func actionFor(method, path string) string {
	p := strings.ToLower(path)
	switch {
	case strings.Contains(p, "login"):
		return audit.ActionLogin
	case strings.Contains(p, "logout"):
		return audit.ActionLogout
	case strings.Contains(p, "close"):
		return audit.ActionCloseVisit
	case strings.Contains(p, "carnet"):
		return audit.ActionAssignCarnet
	}
	switch method {
	case http.MethodGet:
		return audit.ActionView
	case http.MethodPost:
		return audit.ActionCreate
	case http.MethodPut, http.MethodPatch:
		return audit.ActionUpdate
	case http.MethodDelete:
		return audit.ActionDelete
	default:
		return audit.ActionView
	}
}

// resourceTypeFor matches the path against a fixed vocabulary. Order matters:
// "stats" is checked before "visit" because stats routes mention the entity
// they aggregate, and "visitor" before "visit" because the latter is a prefix
// of the former.
func resourceTypeFor(path string) string {
	p := strings.ToLower(path)
	switch {
	case strings.Contains(p, "stats"):
		return audit.ResourceStats
	case strings.Contains(p, "visitor"):
		return audit.ResourceVisitor
	case strings.Contains(p, "visit"):
		return audit.ResourceVisit
	case strings.Contains(p, "user"):
		return audit.ResourceUser
	case strings.Contains(p, "auth"), strings.Contains(p, "login"), strings.Contains(p, "logout"):
		return audit.ResourceAuth
	default:
		return audit.ResourceUnknown
	}
}

// resourceIDFor takes the last path segment only when it parses as an
// integer and the path has more than two segments: /api/visit/5 yields 5,
// /api/visit yields nil. A heuristic, not a routing-aware lookup; irregular
// paths can misfire.
func resourceIDFor(path string) *int64 {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) <= 2 {
		return nil
	}
	id, err := strconv.ParseInt(segments[len(segments)-1], 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

// severityFor is a pure function of the outcome at the moment of logging.
func severityFor(panicked bool, status int) audit.Severity {
	switch {
	case panicked:
		return audit.SeverityCritical
	case status >= 400:
		return audit.SeverityHigh
	default:
		return audit.SeverityLow
	}
}

func auditExcluded(path string) bool {
	for _, prefix := range auditExcludedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Package audit defines the append-only audit trail: what happened, who did
// it, and how noteworthy it was. Records are immutable after creation and
// writing them is always best-effort; an unavailable audit store must never
// change the outcome of the request it describes.
package audit

import (
	"context"
	"strings"
	"time"
)

// Severity classifies how noteworthy an audit record is.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity maps a stored severity label back to its enum value.
func ParseSeverity(raw string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return SeverityLow, true
	case "medium":
		return SeverityMedium, true
	case "high":
		return SeverityHigh, true
	case "critical":
		return SeverityCritical, true
	default:
		return SeverityLow, false
	}
}

// Action codes emitted by this core. Request-pipeline records also use the
// generic verb-derived codes (VIEW/CREATE/UPDATE/DELETE).
const (
	ActionLogin          = "login"
	ActionLoginSuccess   = "login_success"
	ActionLoginFailed    = "login_failed"
	ActionLogout         = "logout"
	ActionUserRegistered = "user_registered"
	ActionCloseVisit     = "close_visit"
	ActionAssignCarnet   = "assign_carnet"

	ActionView   = "VIEW"
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Resource type vocabulary.
const (
	ResourceVisit   = "Visit"
	ResourceVisitor = "Visitor"
	ResourceUser    = "User"
	ResourceAuth    = "Auth"
	ResourceStats   = "Stats"
	ResourceUnknown = "Unknown"
)

// Record is a single append-only audit fact. ID is assigned by the store;
// TraceID and CreatedAt are filled by the Recorder if left zero.
type Record struct {
	ID           int64
	TraceID      string
	ActorID      *int64 // nil for unauthenticated actions
	Action       string
	ResourceType string
	ResourceID   *int64
	Metadata     map[string]any // opaque, format owned by the caller
	Severity     Severity
	ClientIP     string
	UserAgent    string
	Method       string
	Path         string
	StatusCode   int
	Duration     time.Duration
	CreatedAt    time.Time
}

// Store appends immutable records. No read API belongs to this core.
type Store interface {
	Append(ctx context.Context, rec *Record) error
}

type metaKey struct{}

// RequestMeta carries the HTTP facts of the request being audited. The
// request pipeline stores it in the context so that security events emitted
// deeper in the call stack carry the same client fingerprint.
type RequestMeta struct {
	ClientIP  string
	UserAgent string
	Method    string
	Path      string
}

// WithRequestMeta attaches request metadata to the context.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, metaKey{}, meta)
}

// RequestMetaFromContext returns request metadata previously attached.
func RequestMetaFromContext(ctx context.Context) (RequestMeta, bool) {
	if ctx == nil {
		return RequestMeta{}, false
	}
	meta, ok := ctx.Value(metaKey{}).(RequestMeta)
	return meta, ok
}

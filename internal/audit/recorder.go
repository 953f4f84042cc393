package audit

import (
	"context"
	"time"

	"gatehouse.org/internal/ids"
	"gatehouse.org/internal/obs"
)

// Recorder writes records to a Store without ever propagating store failures.
// A failed append is counted and logged to the diagnostic channel; the caller
// proceeds as if the write succeeded.
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder wraps a store. A nil store produces a recorder that only logs,
// which keeps tests and degraded deployments working.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// WithClock overrides the time source. Test use only.
func (r *Recorder) WithClock(fn func() time.Time) *Recorder {
	if fn != nil {
		r.now = fn
	}
	return r
}

// Record appends rec, filling in trace id, timestamp and any request metadata
// carried by the context. It never returns an error and never panics: audit
// persistence is strictly a side channel of the request that triggered it.
func (r *Recorder) Record(ctx context.Context, rec *Record) {
	defer func() {
		if p := recover(); p != nil {
			obs.Logger(ctx).Error().Interface("panic", p).Msg("audit recorder panic suppressed")
		}
	}()
	if rec == nil {
		return
	}
	if rec.TraceID == "" {
		rec.TraceID = ids.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}
	if meta, ok := RequestMetaFromContext(ctx); ok {
		if rec.ClientIP == "" {
			rec.ClientIP = meta.ClientIP
		}
		if rec.UserAgent == "" {
			rec.UserAgent = meta.UserAgent
		}
		if rec.Method == "" {
			rec.Method = meta.Method
		}
		if rec.Path == "" {
			rec.Path = meta.Path
		}
	}
	if r.store == nil {
		r.logDrop(ctx, rec, nil)
		return
	}
	if err := r.store.Append(ctx, rec); err != nil {
		r.logDrop(ctx, rec, err)
	}
}

func (r *Recorder) logDrop(ctx context.Context, rec *Record, err error) {
	obs.CountAuditDrop()
	evt := obs.Logger(ctx).Warn().
		Str("trace_id", rec.TraceID).
		Str("action", rec.Action).
		Str("resource_type", rec.ResourceType).
		Str("severity", rec.Severity.String())
	if err != nil {
		evt = evt.Err(err)
	}
	evt.Msg("audit record dropped")
}

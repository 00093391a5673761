package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"squadcore/internal/logging"
)

var expvarSeq atomic.Uint64

// ExpvarMetricsRecorder publishes per-operation counters and total latency
// under a single expvar map: "<operation>.success", "<operation>.error" and
// "<operation>.duration_ms".
type ExpvarMetricsRecorder struct {
	name string
	vars *expvar.Map
}

// NewExpvarMetricsRecorder publishes a new map under name, or under a unique
// generated name when name is empty.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("squadcore_service_metrics_%d", expvarSeq.Add(1))
	}
	return &ExpvarMetricsRecorder{name: name, vars: expvar.NewMap(name)}
}

// Name returns the expvar export name.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Observe records a service operation outcome.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.vars.Add(operation+"."+status, 1)
	r.vars.AddFloat(operation+".duration_ms", float64(duration)/float64(time.Millisecond))
}

// Count returns the number of observations of operation with the given outcome.
func (r *ExpvarMetricsRecorder) Count(operation string, success bool) int64 {
	status := "error"
	if success {
		status = "success"
	}
	if v, ok := r.vars.Get(operation + "." + status).(*expvar.Int); ok {
		return v.Value()
	}
	return 0
}

// JSONTraceEntry is one finished span as written by JSONTracer.
type JSONTraceEntry struct {
	Service    string    `json:"service"`
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTracer writes finished spans as JSON lines and keeps them for inspection.
type JSONTracer struct {
	service string
	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
}

// NewJSONTracer returns a tracer writing to w. A nil writer only retains spans.
func NewJSONTracer(service string, w io.Writer) *JSONTracer {
	t := &JSONTracer{service: service}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns a copy of all recorded spans.
func (t *JSONTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]JSONTraceEntry(nil), t.entries...)
}

// Start implements Tracer.
func (t *JSONTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonSpan{tracer: t, operation: operation, started: time.Now().UTC()}
}

type jsonSpan struct {
	tracer    *JSONTracer
	operation string
	started   time.Time
	once      sync.Once
}

func (s *jsonSpan) End(err error) {
	s.once.Do(func() {
		ended := time.Now().UTC()
		entry := JSONTraceEntry{
			Service:    s.tracer.service,
			Operation:  s.operation,
			Status:     "success",
			DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
			StartedAt:  s.started,
			EndedAt:    ended,
		}
		if err != nil {
			entry.Status = "error"
			entry.Error = err.Error()
		}
		s.tracer.mu.Lock()
		defer s.tracer.mu.Unlock()
		s.tracer.entries = append(s.tracer.entries, entry)
		if s.tracer.enc != nil {
			_ = s.tracer.enc.Encode(entry)
		}
	})
}

// MultiMetricsRecorder fans every observation out to several recorders.
type MultiMetricsRecorder []MetricsRecorder

// Observe implements MetricsRecorder.
func (m MultiMetricsRecorder) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, r := range m {
		if r != nil {
			r.Observe(ctx, operation, success, duration)
		}
	}
}

// LogAuditRecorder writes audit entries to a logger.
type LogAuditRecorder struct {
	logger logging.Logger
}

// NewLogAuditRecorder returns an audit recorder backed by logger.
func NewLogAuditRecorder(logger logging.Logger) *LogAuditRecorder {
	return &LogAuditRecorder{logger: logging.OrNoop(logger)}
}

// Record implements AuditRecorder. Failed operations are logged at warn.
func (r *LogAuditRecorder) Record(_ context.Context, e AuditEntry) {
	kv := []any{
		"component", "audit",
		"operation", e.Operation,
		"entity", e.Entity,
		"action", e.Action,
		"entity_id", e.EntityID,
		"duration", e.Duration,
		"at", e.Timestamp,
	}
	if e.Status == AuditStatusError {
		r.logger.Warn("audit", append(kv, "error", e.Error)...)
		return
	}
	r.logger.Info("audit", kv...)
}

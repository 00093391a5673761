package core

import (
	"context"
	"time"
)

// Clock supplies timestamps for audit entries and operation timing.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// MetricsRecorder observes the outcome of every service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts one span per service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation error, if any.
type TraceSpan interface {
	End(err error)
}

// AuditStatus is the outcome recorded in an audit entry.
type AuditStatus string

// Audit outcomes.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry records a mutating service operation.
type AuditEntry struct {
	Operation string        `json:"operation"`
	Entity    EntityType    `json:"entity"`
	Action    Action        `json:"action"`
	EntityID  string        `json:"entity_id,omitempty"`
	Status    AuditStatus   `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// AuditRecorder receives audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

type noopAudit struct{}

func (noopAudit) Record(context.Context, AuditEntry) {}

type auditMetadata struct {
	entity EntityType
	action Action
}

// Read-only operations are absent and therefore never audited.
var auditedOperations = map[string]auditMetadata{
	"create_actor":          {EntityActor, ActionCreate},
	"place_token":           {EntityToken, ActionCreate},
	"update_token":          {EntityToken, ActionUpdate},
	"remove_token":          {EntityToken, ActionDelete},
	"clone_minion":          {EntityToken, ActionCreate},
	"add_member":            {EntitySquad, ActionUpdate},
	"remove_member":         {EntitySquad, ActionUpdate},
	"assign_captain":        {EntitySquad, ActionUpdate},
	"remove_captain":        {EntitySquad, ActionUpdate},
	"modify_squad_stamina":  {EntitySquad, ActionUpdate},
	"set_squad_stamina":     {EntitySquad, ActionUpdate},
	"apply_captain_effects": {EntitySquad, ActionUpdate},
}

func (s *Service) recordAuditSuccess(ctx context.Context, operation, entityID string, duration time.Duration) {
	s.recordAudit(ctx, operation, entityID, duration, nil)
}

func (s *Service) recordAuditError(ctx context.Context, operation, entityID string, duration time.Duration, err error) {
	s.recordAudit(ctx, operation, entityID, duration, err)
}

func (s *Service) recordAudit(ctx context.Context, operation, entityID string, duration time.Duration, err error) {
	meta, ok := auditedOperations[operation]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: operation,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

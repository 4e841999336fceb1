// Package audit records who did what to a case. Every state transition,
// send, and human decision lands here, mirrored to the structured log.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/joyax/pool-patrol/pkg/contracts"
	"github.com/joyax/pool-patrol/pkg/store"
)

// Actors recorded in the trail.
const (
	ActorSystem   = "system"
	ActorReviewer = "reviewer"
)

// Recorder writes audit events to the store and the log.
type Recorder struct {
	events store.AuditStore
	logger *slog.Logger
	clock  func() time.Time
}

// NewRecorder creates a recorder over the given audit store.
func NewRecorder(events store.AuditStore, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		events: events,
		logger: logger.With("component", "audit"),
		clock:  time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (r *Recorder) WithClock(clock func() time.Time) *Recorder {
	r.clock = clock
	return r
}

// Record appends one event. Audit failures are logged but never fail the
// operation that produced them.
func (r *Recorder) Record(ctx context.Context, caseID, vanpoolID, actor, action, detail string) {
	ev := &contracts.AuditEvent{
		EventID:   store.NewEventID(),
		CaseID:    caseID,
		VanpoolID: vanpoolID,
		Actor:     actor,
		Action:    action,
		Detail:    detail,
		Timestamp: r.clock().UTC(),
	}
	if err := r.events.AppendAudit(ctx, ev); err != nil {
		r.logger.Error("failed to persist audit event",
			"case_id", caseID, "action", action, "error", err)
		return
	}
	r.logger.Info("audit",
		"case_id", caseID,
		"vanpool_id", vanpoolID,
		"actor", actor,
		"action", action,
		"detail", detail)
}

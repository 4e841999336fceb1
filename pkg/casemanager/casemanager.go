// Package casemanager is the case orchestrator: it drives one investigation
// cycle per vanpool, owns the case state machine, and re-enters suspended
// workflows when a human decision arrives.
package casemanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/joyax/pool-patrol/pkg/approval"
	"github.com/joyax/pool-patrol/pkg/audit"
	"github.com/joyax/pool-patrol/pkg/contracts"
	"github.com/joyax/pool-patrol/pkg/locks"
	"github.com/joyax/pool-patrol/pkg/observability"
	"github.com/joyax/pool-patrol/pkg/outreach"
	"github.com/joyax/pool-patrol/pkg/roster"
	"github.com/joyax/pool-patrol/pkg/store"
	"github.com/joyax/pool-patrol/pkg/verify"
)

// ReplyTimeout is how long a flagged vanpool gets to respond before
// cancellation is escalated to a human. Evaluated lazily at the start of
// each cycle; no background timers run.
const ReplyTimeout = 7 * 24 * time.Hour

const resolvedOutcome = "previously flagged, now compliant"

// Manager orchestrates investigation cycles.
type Manager struct {
	store    store.Store
	rosters  *roster.Service
	shift    verify.Verifier
	location verify.Verifier
	outreach *outreach.Orchestrator
	gate     *approval.Gate
	audit    *audit.Recorder
	locker   locks.Locker
	obs      *observability.Provider
	logger   *slog.Logger
	clock    func() time.Time
	timeout  time.Duration
}

// NewManager wires the case orchestrator.
func NewManager(
	st store.Store,
	rosters *roster.Service,
	shift, location verify.Verifier,
	out *outreach.Orchestrator,
	gate *approval.Gate,
	rec *audit.Recorder,
	locker locks.Locker,
	obs *observability.Provider,
	logger *slog.Logger,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if obs == nil {
		obs = &observability.Provider{}
	}
	return &Manager{
		store:    st,
		rosters:  rosters,
		shift:    shift,
		location: location,
		outreach: out,
		gate:     gate,
		audit:    rec,
		locker:   locker,
		obs:      obs,
		logger:   logger.With("component", "casemanager"),
		clock:    time.Now,
		timeout:  ReplyTimeout,
	}
}

// WithClock overrides the clock for deterministic testing.
func (m *Manager) WithClock(clock func() time.Time) *Manager {
	m.clock = clock
	return m
}

// WithTimeout overrides the reply timeout.
func (m *Manager) WithTimeout(d time.Duration) *Manager {
	m.timeout = d
	return m
}

// Investigate runs one full cycle for the vanpool. Every branch, including
// terminal errors, produces a structured result; a non-nil error means the
// invariants were violated (concurrent cycle, second pending checkpoint) and
// nothing was decided.
func (m *Manager) Investigate(ctx context.Context, vanpoolID string) (*contracts.CaseManagerResult, error) {
	ctx, done := m.obs.TrackOperation(ctx, "investigate",
		attribute.String("vanpool_id", vanpoolID))
	res, err := m.investigate(ctx, vanpoolID)
	done(err)
	return res, err
}

func (m *Manager) investigate(ctx context.Context, vanpoolID string) (*contracts.CaseManagerResult, error) {
	if strings.TrimSpace(vanpoolID) == "" {
		return &contracts.CaseManagerResult{
			Outcome:   contracts.OutcomeError,
			Reasoning: "vanpool id must not be empty",
		}, nil
	}

	release, err := m.locker.Acquire(ctx, vanpoolID)
	if err != nil {
		return nil, fmt.Errorf("vanpool %s: %w", vanpoolID, err)
	}
	defer release()

	result := &contracts.CaseManagerResult{VanpoolID: vanpoolID}

	ros, err := m.rosters.Load(ctx, vanpoolID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, roster.ErrEmptyRoster) {
			result.Outcome = contracts.OutcomeError
			result.Reasoning = err.Error()
			return result, nil
		}
		return nil, err
	}

	existing, err := m.store.GetOpenCase(ctx, vanpoolID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load open case: %w", err)
	}
	if existing != nil {
		result.CaseID = existing.CaseID
		if m.clock().Sub(existing.CreatedAt) >= m.timeout {
			return m.escalateTimeout(ctx, existing, result)
		}
		// A held sensitive action parks the case until a human decides.
		// Re-running checks underneath it could contradict the held action,
		// so the cycle surfaces the existing checkpoint and stops.
		pending, err := m.gate.Pending(ctx, existing.CaseID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("load pending checkpoint: %w", err)
		}
		if pending != nil {
			result.Outcome = contracts.OutcomePending
			result.Reasoning = awaitingReview(pending.ActionName)
			result.HITLRequired = true
			result.CheckpointID = pending.CheckpointID
			return result, nil
		}
	}

	shiftRes, locRes, err := m.runVerification(ctx, ros)
	if err != nil {
		return nil, err
	}
	result.ShiftResult = shiftRes
	result.LocationResult = locRes

	if shiftRes.Verdict == contracts.VerdictPass && locRes.Verdict == contracts.VerdictPass {
		return m.concludeCompliant(ctx, existing, result)
	}
	return m.pursueMismatch(ctx, existing, ros, result)
}

// runVerification issues both checks in parallel and joins on completion.
// Neither result is consulted until both have reported.
func (m *Manager) runVerification(ctx context.Context, ros *contracts.Roster) (*contracts.VerificationResult, *contracts.VerificationResult, error) {
	var wg sync.WaitGroup
	var shiftRes, locRes *contracts.VerificationResult
	var shiftErr, locErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		shiftRes, shiftErr = m.shift.Verify(ctx, ros)
	}()
	go func() {
		defer wg.Done()
		locRes, locErr = m.location.Verify(ctx, ros)
	}()
	wg.Wait()

	if shiftErr != nil {
		return nil, nil, fmt.Errorf("shift check: %w", shiftErr)
	}
	if locErr != nil {
		return nil, nil, fmt.Errorf("location check: %w", locErr)
	}
	return shiftRes, locRes, nil
}

func (m *Manager) escalateTimeout(ctx context.Context, c *contracts.Case, result *contracts.CaseManagerResult) (*contracts.CaseManagerResult, error) {
	cp, err := m.gate.Request(ctx, c.CaseID, c.VanpoolID, contracts.ActionCancelMembership,
		contracts.ActionArgs{Reason: fmt.Sprintf("no resolution within %s of case opening", m.timeout)})
	if err != nil {
		if errors.Is(err, store.ErrCheckpointPending) {
			// Already escalated on a prior cycle; surface the same handle.
			pending, perr := m.gate.Pending(ctx, c.CaseID)
			if perr != nil {
				return nil, fmt.Errorf("load pending checkpoint: %w", perr)
			}
			result.Outcome = contracts.OutcomePending
			result.Reasoning = awaitingReview(pending.ActionName)
			result.HITLRequired = true
			result.CheckpointID = pending.CheckpointID
			return result, nil
		}
		return nil, fmt.Errorf("escalate timeout: %w", err)
	}

	if c.Status != contracts.CasePreCancel {
		c.Status = contracts.CasePreCancel
		c.UpdatedAt = m.clock().UTC()
		if err := m.store.UpdateCase(ctx, c); err != nil {
			return nil, fmt.Errorf("move case to pre-cancel: %w", err)
		}
	}
	m.audit.Record(ctx, c.CaseID, c.VanpoolID, audit.ActorSystem, "timeout_escalated",
		fmt.Sprintf("checkpoint %s awaiting cancellation decision", cp.CheckpointID))

	result.Outcome = contracts.OutcomePending
	result.Reasoning = "reply window elapsed; cancellation suspended for human review"
	result.HITLRequired = true
	result.CheckpointID = cp.CheckpointID
	return result, nil
}

func (m *Manager) concludeCompliant(ctx context.Context, existing *contracts.Case, result *contracts.CaseManagerResult) (*contracts.CaseManagerResult, error) {
	if existing == nil {
		result.Outcome = contracts.OutcomeVerified
		result.Reasoning = "all checks passed; no case to open"
		return result, nil
	}

	now := m.clock().UTC()
	if err := m.store.CloseCase(ctx, existing.CaseID, contracts.CaseResolved, resolvedOutcome, now); err != nil {
		return nil, fmt.Errorf("resolve case: %w", err)
	}
	m.audit.Record(ctx, existing.CaseID, existing.VanpoolID, audit.ActorSystem, "case_resolved", resolvedOutcome)

	result.Outcome = contracts.OutcomeResolved
	result.Reasoning = resolvedOutcome
	return result, nil
}

func (m *Manager) pursueMismatch(ctx context.Context, existing *contracts.Case, ros *contracts.Roster, result *contracts.CaseManagerResult) (*contracts.CaseManagerResult, error) {
	now := m.clock().UTC()
	failed := failedChecks(result.ShiftResult, result.LocationResult)
	details := mismatchDetails(result.ShiftResult, result.LocationResult)

	c := existing
	if c == nil {
		c = &contracts.Case{
			CaseID:    store.NewCaseID(),
			VanpoolID: ros.VanpoolID,
			Status:    contracts.CaseVerification,
			Metadata: contracts.CaseMetadata{
				Reason:       contracts.DeriveReason(failed),
				Details:      details,
				FailedChecks: failed,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := m.store.CreateCase(ctx, c); err != nil {
			return nil, fmt.Errorf("open case: %w", err)
		}
		m.audit.Record(ctx, c.CaseID, c.VanpoolID, audit.ActorSystem, "case_opened",
			fmt.Sprintf("reason=%s failed_checks=%s", c.Metadata.Reason, strings.Join(failed, ",")))
	} else {
		// A repeat cycle over an open case is a re-audit.
		c.Status = contracts.CaseReAudit
		c.Metadata.Reason = contracts.DeriveReason(failed)
		c.Metadata.Details = details
		c.Metadata.FailedChecks = failed
		c.UpdatedAt = now
		if err := m.store.UpdateCase(ctx, c); err != nil {
			return nil, fmt.Errorf("update case: %w", err)
		}
		m.audit.Record(ctx, c.CaseID, c.VanpoolID, audit.ActorSystem, "re_audit_failed",
			fmt.Sprintf("reason=%s", c.Metadata.Reason))
	}
	result.CaseID = c.CaseID

	outRes, err := m.outreach.Handle(ctx, outreach.Context{
		Case:            c,
		Roster:          ros,
		ShiftDetails:    checkDetails(result.ShiftResult),
		LocationDetails: checkDetails(result.LocationResult),
	})
	if err != nil {
		return nil, fmt.Errorf("outreach: %w", err)
	}
	result.OutreachSummary = outRes
	result.HITLRequired = outRes.HITLRequired
	result.CheckpointID = outRes.CheckpointID

	// Advance the case according to what outreach accomplished.
	switch {
	case outRes.HITLRequired:
		c.Status = contracts.CaseHITLReview
	case outRes.Sent:
		c.Status = contracts.CasePendingReply
	case outRes.Error != "":
		// Transport failure: hold the current status, retry next cycle.
	default:
		// Nothing new to answer; keep waiting on the rider.
		c.Status = contracts.CasePendingReply
	}
	c.UpdatedAt = m.clock().UTC()
	if err := m.store.UpdateCase(ctx, c); err != nil {
		return nil, fmt.Errorf("advance case: %w", err)
	}

	if outRes.Sent {
		m.audit.Record(ctx, c.CaseID, c.VanpoolID, audit.ActorSystem, "outreach_sent",
			fmt.Sprintf("message_id=%s", outRes.MessageID))
	}
	if outRes.Bucket != nil {
		m.audit.Record(ctx, c.CaseID, c.VanpoolID, audit.ActorSystem, "reply_classified",
			string(*outRes.Bucket))
	}
	if outRes.HITLRequired {
		m.audit.Record(ctx, c.CaseID, c.VanpoolID, audit.ActorSystem, "escalation_suspended",
			fmt.Sprintf("checkpoint %s awaiting send approval", outRes.CheckpointID))
	}

	result.Outcome = contracts.OutcomePending
	result.Reasoning = fmt.Sprintf("verification failed (%s); outreach cycle ran", strings.Join(failed, ", "))
	return result, nil
}

// awaitingReview names the held action in result reasoning.
func awaitingReview(actionName string) string {
	switch actionName {
	case contracts.ActionCancelMembership:
		return "cancellation already awaiting human review"
	case contracts.ActionSendEscalation:
		return "escalation reply already awaiting human review"
	}
	return fmt.Sprintf("%s already awaiting human review", actionName)
}

func failedChecks(shift, location *contracts.VerificationResult) []string {
	var failed []string
	if shift != nil && shift.Verdict == contracts.VerdictFail {
		failed = append(failed, contracts.CheckShift)
	}
	if location != nil && location.Verdict == contracts.VerdictFail {
		failed = append(failed, contracts.CheckLocation)
	}
	return failed
}

func mismatchDetails(shift, location *contracts.VerificationResult) string {
	var parts []string
	if shift != nil && shift.Verdict == contracts.VerdictFail {
		parts = append(parts, shift.Reasoning)
	}
	if location != nil && location.Verdict == contracts.VerdictFail {
		parts = append(parts, location.Reasoning)
	}
	return strings.Join(parts, "; ")
}

func checkDetails(res *contracts.VerificationResult) string {
	if res == nil || res.Verdict != contracts.VerdictFail {
		return ""
	}
	return res.Reasoning
}

package casemanager

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/joyax/pool-patrol/pkg/approval"
	"github.com/joyax/pool-patrol/pkg/audit"
	"github.com/joyax/pool-patrol/pkg/contracts"
	"github.com/joyax/pool-patrol/pkg/store"
)

// Resume applies a human decision to a suspended checkpoint and re-enters
// the workflow at the suspension point. Only the gated call is replayed with
// the decision substituted; nothing else is redone. A checkpoint that was
// already decided yields approval.ErrDecided, which makes replayed requests
// harmless.
func (m *Manager) Resume(ctx context.Context, checkpointID string, decision contracts.Decision) (*contracts.CaseManagerResult, error) {
	ctx, done := m.obs.TrackOperation(ctx, "resume",
		attribute.String("checkpoint_id", checkpointID),
		attribute.String("decision", string(decision.Kind)))
	res, err := m.resume(ctx, checkpointID, decision)
	done(err)
	return res, err
}

func (m *Manager) resume(ctx context.Context, checkpointID string, decision contracts.Decision) (*contracts.CaseManagerResult, error) {
	resolution, err := m.gate.Resolve(ctx, checkpointID, decision)
	if err != nil {
		return nil, err
	}
	cp := resolution.Checkpoint

	c, err := m.store.GetCase(ctx, cp.CaseID)
	if err != nil {
		return nil, fmt.Errorf("load case %s: %w", cp.CaseID, err)
	}
	result := &contracts.CaseManagerResult{VanpoolID: c.VanpoolID, CaseID: c.CaseID}

	switch cp.ActionName {
	case contracts.ActionCancelMembership:
		return m.resumeCancellation(ctx, c, resolution, result)
	case contracts.ActionSendEscalation:
		return m.resumeEscalationSend(ctx, c, resolution, result)
	default:
		return nil, fmt.Errorf("unknown suspended action %q", cp.ActionName)
	}
}

func (m *Manager) resumeCancellation(ctx context.Context, c *contracts.Case, resolution *approval.Resolution, result *contracts.CaseManagerResult) (*contracts.CaseManagerResult, error) {
	now := m.clock().UTC()

	if !resolution.Execute {
		// Rejection returns the case to the waiting state. The timeout clock
		// is not reset: the case stays eligible for re-escalation, and the
		// rejection is stamped so a reviewer can see it happened.
		c.Status = contracts.CasePendingReply
		c.Metadata.CancelRejectedAt = &now
		c.UpdatedAt = now
		if err := m.store.UpdateCase(ctx, c); err != nil {
			return nil, fmt.Errorf("record cancellation rejection: %w", err)
		}
		m.audit.Record(ctx, c.CaseID, c.VanpoolID, audit.ActorReviewer, "cancellation_rejected",
			resolution.Decision.Reason)

		result.Outcome = contracts.OutcomePending
		result.Reasoning = "cancellation rejected by reviewer; case returned to pending reply"
		return result, nil
	}

	if err := m.cancelRiders(ctx, c, resolution.Args.EmployeeID); err != nil {
		return nil, err
	}

	outcome := "membership cancelled: " + resolution.Args.Reason
	if err := m.store.CloseCase(ctx, c.CaseID, contracts.CaseCancelled, outcome, now); err != nil {
		return nil, fmt.Errorf("close cancelled case: %w", err)
	}
	m.audit.Record(ctx, c.CaseID, c.VanpoolID, audit.ActorReviewer, "case_cancelled", outcome)

	result.Outcome = contracts.OutcomeCancelled
	result.Reasoning = outcome
	return result, nil
}

// cancelRiders removes vanpool memberships. An explicit employee id (set by
// an edit decision) limits the cancellation to that rider; otherwise the
// whole roster is removed.
func (m *Manager) cancelRiders(ctx context.Context, c *contracts.Case, employeeID string) error {
	if employeeID != "" {
		if err := m.store.RemoveRider(ctx, c.VanpoolID, employeeID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("remove rider %s: %w", employeeID, err)
		}
		return nil
	}

	riders, err := m.store.ListRiders(ctx, c.VanpoolID)
	if err != nil {
		return fmt.Errorf("list riders: %w", err)
	}
	for _, r := range riders {
		if err := m.store.RemoveRider(ctx, c.VanpoolID, r.EmployeeID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("remove rider %s: %w", r.EmployeeID, err)
		}
	}
	return nil
}

func (m *Manager) resumeEscalationSend(ctx context.Context, c *contracts.Case, resolution *approval.Resolution, result *contracts.CaseManagerResult) (*contracts.CaseManagerResult, error) {
	now := m.clock().UTC()

	if !resolution.Execute {
		// The draft stays a DRAFT for audit; the case returns to waiting so
		// the next inbound reply or the timeout keeps the workflow moving.
		c.Status = contracts.CasePendingReply
		c.UpdatedAt = now
		if err := m.store.UpdateCase(ctx, c); err != nil {
			return nil, fmt.Errorf("record send rejection: %w", err)
		}
		m.audit.Record(ctx, c.CaseID, c.VanpoolID, audit.ActorReviewer, "escalation_send_rejected",
			resolution.Decision.Reason)

		result.Outcome = contracts.OutcomePending
		result.Reasoning = "escalation reply rejected by reviewer; draft retained"
		result.OutreachSummary = &contracts.OutreachResult{Sent: false, HITLRequired: true}
		return result, nil
	}

	args := resolution.Args
	// An edit may replace body or recipients but the draft reference comes
	// from the original suspension.
	if args.DraftMessageID == "" {
		args.DraftMessageID = resolution.Checkpoint.ActionArgs.DraftMessageID
	}

	msgID, err := m.outreach.ExecuteEscalation(ctx, c.CaseID, args)
	if err != nil {
		return nil, fmt.Errorf("execute approved send: %w", err)
	}

	c.Status = contracts.CasePendingReply
	c.UpdatedAt = now
	if err := m.store.UpdateCase(ctx, c); err != nil {
		return nil, fmt.Errorf("advance case after send: %w", err)
	}
	m.audit.Record(ctx, c.CaseID, c.VanpoolID, audit.ActorReviewer, "escalation_sent",
		fmt.Sprintf("message_id=%s decision=%s", msgID, resolution.Decision.Kind))

	result.Outcome = contracts.OutcomePending
	result.Reasoning = "approved escalation reply sent; awaiting rider response"
	result.OutreachSummary = &contracts.OutreachResult{Sent: true, MessageID: msgID}
	return result, nil
}

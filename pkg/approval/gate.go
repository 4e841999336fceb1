// Package approval provides the human approval gate. Sensitive actions
// (membership cancellation, escalation replies) are never executed directly:
// the gate suspends them as durable checkpoints and replays them only after a
// human decision arrives.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joyax/pool-patrol/pkg/contracts"
	"github.com/joyax/pool-patrol/pkg/store"
)

// ErrDecided is returned by Resolve when the checkpoint no longer exists,
// i.e. its decision was already applied.
var ErrDecided = errors.New("checkpoint already decided")

// Resolution is the gate's answer to a human decision: the original
// checkpoint plus the args the caller must execute with. Execute is false on
// rejection.
type Resolution struct {
	Checkpoint *contracts.ApprovalCheckpoint
	Decision   contracts.Decision

	// Args are the action arguments to execute: the original ones on
	// approve, the human's replacement on edit.
	Args contracts.ActionArgs

	// Execute is true when the caller should run the held action.
	Execute bool
}

// Gate suspends sensitive actions behind durable checkpoints.
type Gate struct {
	checkpoints store.CheckpointStore
	logger      *slog.Logger
	clock       func() time.Time
}

// NewGate creates a gate over the given checkpoint store.
func NewGate(checkpoints store.CheckpointStore, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		checkpoints: checkpoints,
		logger:      logger,
		clock:       time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (g *Gate) WithClock(clock func() time.Time) *Gate {
	g.clock = clock
	return g
}

// Request suspends actionName for human review and returns the durable
// checkpoint. Returns store.ErrCheckpointPending if the case already has a
// held action; callers treat that as "already suspended", not a failure.
func (g *Gate) Request(ctx context.Context, caseID, vanpoolID, actionName string, args contracts.ActionArgs) (*contracts.ApprovalCheckpoint, error) {
	cp := &contracts.ApprovalCheckpoint{
		CheckpointID: newCheckpointID(),
		CaseID:       caseID,
		VanpoolID:    vanpoolID,
		ActionName:   actionName,
		ActionArgs:   args,
		Status:       contracts.CheckpointPending,
		CreatedAt:    g.clock().UTC(),
	}
	if err := g.checkpoints.PutCheckpoint(ctx, cp); err != nil {
		return nil, err
	}

	g.logger.Info("action suspended for approval",
		"checkpoint_id", cp.CheckpointID,
		"case_id", caseID,
		"action", actionName)
	return cp, nil
}

// Pending returns the case's pending checkpoint, or store.ErrNotFound.
func (g *Gate) Pending(ctx context.Context, caseID string) (*contracts.ApprovalCheckpoint, error) {
	cps, err := g.checkpoints.ListPendingCheckpoints(ctx)
	if err != nil {
		return nil, err
	}
	for _, cp := range cps {
		if cp.CaseID == caseID {
			return cp, nil
		}
	}
	return nil, store.ErrNotFound
}

// Resolve applies a human decision to a pending checkpoint and removes it.
// The caller executes the returned args when Execute is true. A second
// Resolve on the same checkpoint returns ErrDecided, which makes replayed
// approval requests harmless.
func (g *Gate) Resolve(ctx context.Context, checkpointID string, decision contracts.Decision) (*Resolution, error) {
	cp, err := g.checkpoints.GetCheckpoint(ctx, checkpointID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDecided
		}
		return nil, err
	}
	if cp.Status != contracts.CheckpointPending {
		return nil, ErrDecided
	}

	res := &Resolution{Checkpoint: cp, Decision: decision, Args: cp.ActionArgs}
	switch decision.Kind {
	case contracts.DecisionApprove:
		res.Execute = true
	case contracts.DecisionEdit:
		if decision.EditedArgs == nil {
			return nil, fmt.Errorf("edit decision carries no replacement args")
		}
		res.Args = *decision.EditedArgs
		res.Execute = true
	case contracts.DecisionReject:
		res.Execute = false
	default:
		return nil, fmt.Errorf("unknown decision kind %q", decision.Kind)
	}

	if err := g.checkpoints.DeleteCheckpoint(ctx, checkpointID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Lost a race with a concurrent resolve.
			return nil, ErrDecided
		}
		return nil, err
	}

	g.logger.Info("checkpoint resolved",
		"checkpoint_id", checkpointID,
		"case_id", cp.CaseID,
		"action", cp.ActionName,
		"decision", string(decision.Kind),
		"decided_by", decision.DecidedBy)
	return res, nil
}

func newCheckpointID() string {
	return "CHK-" + strings.ToUpper(uuid.New().String()[:8])
}

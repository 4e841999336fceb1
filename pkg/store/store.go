// Package store provides persistence for cases, email threads, approval
// checkpoints, fleet data, and the audit trail. Implementations exist for
// SQLite, Postgres, and in-memory (tests / single-node dev).
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joyax/pool-patrol/pkg/contracts"
)

// Sentinel errors shared by all implementations.
var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrOpenCaseExists is returned by CreateCase when the vanpool already
	// has a non-terminal case.
	ErrOpenCaseExists = errors.New("open case already exists for vanpool")

	// ErrCheckpointPending is returned by PutCheckpoint when the case already
	// has a pending checkpoint.
	ErrCheckpointPending = errors.New("pending checkpoint already exists for case")

	// ErrCaseClosed is returned on attempts to mutate a terminal case.
	ErrCaseClosed = errors.New("case is closed")
)

// CaseStore persists investigation cases and enforces the single-open-case
// invariant per vanpool.
type CaseStore interface {
	// CreateCase inserts a new case. Returns ErrOpenCaseExists if the vanpool
	// already has a non-terminal case.
	CreateCase(ctx context.Context, c *contracts.Case) error

	// GetCase returns the case by id, or ErrNotFound.
	GetCase(ctx context.Context, caseID string) (*contracts.Case, error)

	// GetOpenCase returns the single non-terminal case for the vanpool, or
	// ErrNotFound.
	GetOpenCase(ctx context.Context, vanpoolID string) (*contracts.Case, error)

	// UpdateCase overwrites status and metadata of a non-terminal case.
	// Returns ErrCaseClosed if the stored case is already terminal.
	UpdateCase(ctx context.Context, c *contracts.Case) error

	// CloseCase moves a case to a terminal status and stamps outcome and
	// resolved_at. Returns ErrCaseClosed if already terminal.
	CloseCase(ctx context.Context, caseID string, status contracts.CaseStatus, outcome string, at time.Time) error

	// ListCases returns cases, optionally filtered by status and vanpool.
	ListCases(ctx context.Context, filter CaseFilter) ([]*contracts.Case, error)
}

// CaseFilter narrows ListCases results. Zero values mean "any".
type CaseFilter struct {
	Status    contracts.CaseStatus
	VanpoolID string
}

// ThreadStore persists email threads and their ordered messages.
type ThreadStore interface {
	// CreateThread inserts a thread. One thread per case.
	CreateThread(ctx context.Context, t *contracts.EmailThread) error

	// GetThread returns the thread by id, or ErrNotFound.
	GetThread(ctx context.Context, threadID string) (*contracts.EmailThread, error)

	// GetThreadByCase returns the case's thread, or ErrNotFound.
	GetThreadByCase(ctx context.Context, caseID string) (*contracts.EmailThread, error)

	// AppendMessage appends a message to its thread. Insertion order is
	// chronological order.
	AppendMessage(ctx context.Context, m *contracts.Message) error

	// UpdateMessage overwrites a message's status, classification, and
	// sent_at. Only DRAFT messages may change body or recipients.
	UpdateMessage(ctx context.Context, m *contracts.Message) error

	// ListMessages returns the thread's messages in insertion order.
	ListMessages(ctx context.Context, threadID string) ([]*contracts.Message, error)
}

// CheckpointStore durably persists approval checkpoints so a suspended
// workflow survives process restarts.
type CheckpointStore interface {
	// PutCheckpoint inserts a pending checkpoint. Returns
	// ErrCheckpointPending if the case already has one pending.
	PutCheckpoint(ctx context.Context, cp *contracts.ApprovalCheckpoint) error

	// GetCheckpoint returns the checkpoint by id, or ErrNotFound.
	GetCheckpoint(ctx context.Context, checkpointID string) (*contracts.ApprovalCheckpoint, error)

	// DeleteCheckpoint removes the checkpoint after its decision is applied.
	DeleteCheckpoint(ctx context.Context, checkpointID string) error

	// ListPendingCheckpoints returns all pending checkpoints.
	ListPendingCheckpoints(ctx context.Context) ([]*contracts.ApprovalCheckpoint, error)
}

// FleetStore persists vanpools, employees, riders, and shift templates.
type FleetStore interface {
	PutVanpool(ctx context.Context, v *contracts.Vanpool) error
	GetVanpool(ctx context.Context, vanpoolID string) (*contracts.Vanpool, error)
	ListVanpools(ctx context.Context) ([]*contracts.Vanpool, error)

	PutEmployee(ctx context.Context, e *contracts.Employee) error
	GetEmployee(ctx context.Context, employeeID string) (*contracts.Employee, error)

	PutShift(ctx context.Context, s *contracts.Shift) error
	GetShift(ctx context.Context, shiftID string) (*contracts.Shift, error)

	// PutRider links an employee to a vanpool (idempotent per pair).
	PutRider(ctx context.Context, r *contracts.Rider) error

	// ListRiders returns the rider rows of a vanpool in insertion order.
	ListRiders(ctx context.Context, vanpoolID string) ([]*contracts.Rider, error)

	// RemoveRider deletes the membership row. Returns ErrNotFound if the
	// employee is not a rider of the vanpool.
	RemoveRider(ctx context.Context, vanpoolID, employeeID string) error
}

// AuditStore persists the append-only audit trail.
type AuditStore interface {
	AppendAudit(ctx context.Context, ev *contracts.AuditEvent) error
	ListAudit(ctx context.Context, caseID string) ([]*contracts.AuditEvent, error)
}

// Store is the full persistence facade the orchestrator is wired with.
type Store interface {
	CaseStore
	ThreadStore
	CheckpointStore
	FleetStore
	AuditStore
}

func shortID(prefix string) string {
	return prefix + "-" + strings.ToUpper(uuid.New().String()[:8])
}

// NewCaseID returns a fresh case id (CASE-XXXXXXXX).
func NewCaseID() string { return shortID("CASE") }

// NewThreadID returns a fresh thread id (THREAD-XXXXXXXX).
func NewThreadID() string { return shortID("THREAD") }

// NewMessageID returns a fresh message id (MSG-XXXXXXXX).
func NewMessageID() string { return shortID("MSG") }

// NewEventID returns a fresh audit event id.
func NewEventID() string { return shortID("EVT") }

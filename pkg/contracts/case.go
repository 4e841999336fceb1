// Package contracts defines the shared data contracts of the Pool Patrol
// engine: investigation cases, email threads, verification verdicts, and
// approval checkpoints. The package is deliberately dependency-free so every
// layer can import it without cycles.
package contracts

import "time"

// CaseStatus tracks where a case sits in the investigation lifecycle.
type CaseStatus string

const (
	CaseOpen         CaseStatus = "open"
	CaseVerification CaseStatus = "verification"
	CasePendingReply CaseStatus = "pending_reply"
	CaseReAudit      CaseStatus = "re_audit"
	CaseHITLReview   CaseStatus = "hitl_review"
	CasePreCancel    CaseStatus = "pre_cancel"
	CaseResolved     CaseStatus = "resolved"
	CaseCancelled    CaseStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s CaseStatus) Terminal() bool {
	return s == CaseResolved || s == CaseCancelled
}

// Mismatch reasons recorded in case metadata.
const (
	ReasonShiftMismatch    = "shift_mismatch"
	ReasonLocationMismatch = "location_mismatch"
	ReasonUnknown          = "unknown"
)

// Check names used in CaseMetadata.FailedChecks.
const (
	CheckShift    = "shift"
	CheckLocation = "location"
)

// DeriveReason maps a set of failed checks to the standardized case reason.
// Shift takes priority over location when both failed; the full set is still
// kept in FailedChecks for audit.
func DeriveReason(failedChecks []string) string {
	for _, c := range failedChecks {
		if c == CheckShift {
			return ReasonShiftMismatch
		}
	}
	for _, c := range failedChecks {
		if c == CheckLocation {
			return ReasonLocationMismatch
		}
	}
	return ReasonUnknown
}

// CaseMetadata carries the why of an open case.
type CaseMetadata struct {
	// Reason is the standardized mismatch reason (shift_mismatch,
	// location_mismatch).
	Reason string `json:"reason"`

	// Details is the free-text description from the verification cycle that
	// opened or last updated the case.
	Details string `json:"details,omitempty"`

	// FailedChecks is the full set of checks that failed, kept for audit even
	// when Reason reflects only the highest-priority one.
	FailedChecks []string `json:"failed_checks"`

	// CancelRejectedAt is set when a human rejected a cancellation request.
	// The timeout clock is not reset; the case stays eligible for
	// re-escalation on the next cycle.
	CancelRejectedAt *time.Time `json:"cancel_rejected_at,omitempty"`
}

// Case is one investigation unit against a vanpool.
//
// Invariant: at most one Case per vanpool with a non-terminal status. Once
// RESOLVED or CANCELLED a case is immutable except for Outcome/ResolvedAt set
// at closure.
type Case struct {
	CaseID    string       `json:"case_id"`
	VanpoolID string       `json:"vanpool_id"`
	Status    CaseStatus   `json:"status"`
	Metadata  CaseMetadata `json:"metadata"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`

	// Outcome is free text set only at terminal status.
	Outcome    string     `json:"outcome,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

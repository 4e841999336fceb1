package contracts

import "time"

// Sensitive action names gated behind human approval.
const (
	ActionCancelMembership = "cancel_membership"
	ActionSendEscalation   = "send_escalation_reply"
)

// CheckpointStatus tracks an approval checkpoint's lifecycle.
type CheckpointStatus string

const (
	CheckpointPending  CheckpointStatus = "pending"
	CheckpointApproved CheckpointStatus = "approved"
	CheckpointRejected CheckpointStatus = "rejected"
)

// ActionArgs holds the arguments of a held sensitive action. Exactly one
// action's fields are populated, selected by ApprovalCheckpoint.ActionName.
type ActionArgs struct {
	// Cancel membership.
	EmployeeID string `json:"employee_id,omitempty"`
	Reason     string `json:"reason,omitempty"`

	// Escalation send.
	To      []string `json:"to,omitempty"`
	Subject string   `json:"subject,omitempty"`
	Body    string   `json:"body,omitempty"`

	// DraftMessageID references the DRAFT message kept for audit while an
	// escalation send awaits review.
	DraftMessageID string `json:"draft_message_id,omitempty"`
}

// DecisionKind is the human's verdict on a suspended action.
type DecisionKind string

const (
	DecisionApprove DecisionKind = "approve"
	DecisionEdit    DecisionKind = "edit"
	DecisionReject  DecisionKind = "reject"
)

// Decision resolves a pending checkpoint. Edit carries replacement args;
// Reject carries a reason for the audit trail.
type Decision struct {
	Kind       DecisionKind `json:"kind"`
	EditedArgs *ActionArgs  `json:"edited_args,omitempty"`
	Reason     string       `json:"reason,omitempty"`
	DecidedBy  string       `json:"decided_by,omitempty"`
}

// ApprovalCheckpoint is the durable record of a suspended sensitive action
// awaiting a human decision. It is created the moment the action is
// attempted and destroyed when the decision is applied. At most one pending
// checkpoint may exist per case at a time.
type ApprovalCheckpoint struct {
	CheckpointID string           `json:"checkpoint_id"`
	CaseID       string           `json:"case_id"`
	VanpoolID    string           `json:"vanpool_id"`
	ActionName   string           `json:"action_name"`
	ActionArgs   ActionArgs       `json:"action_args"`
	Status       CheckpointStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
}

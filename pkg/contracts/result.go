package contracts

// Outcome summarizes one Investigate invocation to the caller.
type Outcome string

const (
	OutcomeVerified  Outcome = "verified"
	OutcomeResolved  Outcome = "resolved"
	OutcomeCancelled Outcome = "cancelled"
	OutcomePending   Outcome = "pending"
	OutcomeError     Outcome = "error"
)

// CaseManagerResult is the structured result of one investigation cycle.
// Every branch of the workflow, including terminal errors, returns one of
// these; an unstructured error never crosses the workflow boundary.
type CaseManagerResult struct {
	VanpoolID string  `json:"vanpool_id"`
	CaseID    string  `json:"case_id,omitempty"`
	Outcome   Outcome `json:"outcome"`
	Reasoning string  `json:"reasoning"`

	// ShiftResult and LocationResult carry the specialist verdicts from this
	// cycle when verification ran.
	ShiftResult    *VerificationResult `json:"shift_result,omitempty"`
	LocationResult *VerificationResult `json:"location_result,omitempty"`

	// OutreachSummary reports what the outreach sub-orchestrator did.
	OutreachSummary *OutreachResult `json:"outreach_summary,omitempty"`

	// HITLRequired is true when the cycle suspended on a pending human
	// decision; CheckpointID identifies the checkpoint to resume.
	HITLRequired bool   `json:"hitl_required"`
	CheckpointID string `json:"checkpoint_id,omitempty"`
}

// OutreachResult is the structured result of one outreach handling pass.
type OutreachResult struct {
	ThreadID string `json:"thread_id"`

	// MessageID is the transport id of the sent message, empty if none sent.
	MessageID string `json:"message_id,omitempty"`

	// Bucket is the classification of the latest inbound reply; nil when the
	// pass sent the initial outreach (nothing to classify).
	Bucket *Bucket `json:"bucket,omitempty"`

	HITLRequired bool   `json:"hitl_required"`
	Sent         bool   `json:"sent"`
	Error        string `json:"error,omitempty"`

	// CheckpointID identifies the approval checkpoint when HITLRequired.
	CheckpointID string `json:"checkpoint_id,omitempty"`
}

package contracts

// Verdict is the outcome of a verification capability.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
)

// EvidenceItem is a single typed finding cited by a verification specialist.
type EvidenceItem struct {
	// Type names the kind of evidence (e.g. "employee_shift",
	// "vanpool_majority_shift", "shift_mismatch").
	Type string `json:"type"`

	// Data holds the relevant fields for this item.
	Data map[string]any `json:"data,omitempty"`
}

// VerificationResult is produced fresh on every verification call. It is
// never cached across cycles because the subject's real-world facts (shift
// assignment, address) may have changed.
type VerificationResult struct {
	Verdict Verdict `json:"verdict"`

	// Confidence ranges 1 (low) to 5 (high).
	Confidence int `json:"confidence"`

	Reasoning string         `json:"reasoning"`
	Evidence  []EvidenceItem `json:"evidence,omitempty"`
}

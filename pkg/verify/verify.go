// Package verify implements the eligibility checks run against a vanpool
// roster. Checks are pure reads: they never mutate state and never cache a
// verdict, because rider facts can change between investigation cycles.
package verify

import (
	"context"

	"github.com/joyax/pool-patrol/pkg/contracts"
)

// Verifier runs one eligibility check against a roster and returns a fresh
// verdict with evidence.
type Verifier interface {
	// Name is the check's identifier recorded in failed_checks.
	Name() string

	Verify(ctx context.Context, roster *contracts.Roster) (*contracts.VerificationResult, error)
}

// AlwaysPass is a stand-in verifier for checks that are configured but not
// yet enforced in a deployment.
type AlwaysPass struct {
	CheckName string
}

func (v *AlwaysPass) Name() string { return v.CheckName }

func (v *AlwaysPass) Verify(ctx context.Context, roster *contracts.Roster) (*contracts.VerificationResult, error) {
	return &contracts.VerificationResult{
		Verdict:    contracts.VerdictPass,
		Confidence: 3,
		Reasoning:  "check not enforced in this deployment",
	}, nil
}

var _ Verifier = (*AlwaysPass)(nil)

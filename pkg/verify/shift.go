package verify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/joyax/pool-patrol/pkg/contracts"
	"github.com/joyax/pool-patrol/pkg/store"
)

// ShiftSpecialist checks that all riders of a vanpool work a compatible
// shift. The group's majority shift is the reference; minority riders fail
// the check. Missing shift data fails the check outright rather than
// defaulting the rider to compatible.
type ShiftSpecialist struct {
	fleet store.FleetStore
}

// NewShiftSpecialist creates the shift check.
func NewShiftSpecialist(fleet store.FleetStore) *ShiftSpecialist {
	return &ShiftSpecialist{fleet: fleet}
}

func (v *ShiftSpecialist) Name() string { return contracts.CheckShift }

func (v *ShiftSpecialist) Verify(ctx context.Context, roster *contracts.Roster) (*contracts.VerificationResult, error) {
	if len(roster.Riders) == 0 {
		return &contracts.VerificationResult{
			Verdict:    contracts.VerdictFail,
			Confidence: 5,
			Reasoning:  "no riders provided; cannot verify shift compatibility of an empty group",
		}, nil
	}

	// A lone rider has nobody to be incompatible with.
	if len(roster.Riders) == 1 {
		return &contracts.VerificationResult{
			Verdict:    contracts.VerdictPass,
			Confidence: 5,
			Reasoning:  fmt.Sprintf("single rider %s; group compatibility holds trivially", roster.Riders[0].EmployeeID),
		}, nil
	}

	var evidence []contracts.EvidenceItem
	shiftNames := make(map[string]string) // employee id -> shift name
	var missing []string

	for _, emp := range roster.Riders {
		if emp.ShiftID == "" {
			missing = append(missing, emp.EmployeeID)
			evidence = append(evidence, contracts.EvidenceItem{
				Type: "missing_shift",
				Data: map[string]any{"employee_id": emp.EmployeeID},
			})
			continue
		}
		sh, err := v.fleet.GetShift(ctx, emp.ShiftID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				missing = append(missing, emp.EmployeeID)
				evidence = append(evidence, contracts.EvidenceItem{
					Type: "missing_shift",
					Data: map[string]any{"employee_id": emp.EmployeeID, "shift_id": emp.ShiftID},
				})
				continue
			}
			return nil, fmt.Errorf("load shift %s: %w", emp.ShiftID, err)
		}
		shiftNames[emp.EmployeeID] = sh.Name
		evidence = append(evidence, contracts.EvidenceItem{
			Type: "employee_shift",
			Data: map[string]any{"employee_id": emp.EmployeeID, "shift": sh.Name},
		})
	}

	if len(missing) > 0 {
		return &contracts.VerificationResult{
			Verdict:    contracts.VerdictFail,
			Confidence: 4,
			Reasoning:  fmt.Sprintf("shift data missing for %s; cannot confirm compatibility", strings.Join(missing, ", ")),
			Evidence:   evidence,
		}, nil
	}

	majority, counts := majorityShift(shiftNames)
	evidence = append(evidence, contracts.EvidenceItem{
		Type: "vanpool_majority_shift",
		Data: map[string]any{"shift": majority, "counts": counts},
	})

	var mismatched []string
	for _, emp := range roster.Riders {
		if shiftNames[emp.EmployeeID] != majority {
			mismatched = append(mismatched, emp.EmployeeID)
			evidence = append(evidence, contracts.EvidenceItem{
				Type: "shift_mismatch",
				Data: map[string]any{
					"employee_id": emp.EmployeeID,
					"shift":       shiftNames[emp.EmployeeID],
					"expected":    majority,
				},
			})
		}
	}

	if len(mismatched) > 0 {
		return &contracts.VerificationResult{
			Verdict:    contracts.VerdictFail,
			Confidence: 5,
			Reasoning: fmt.Sprintf("%d rider(s) do not work the %s shift shared by the rest of the vanpool: %s",
				len(mismatched), majority, strings.Join(mismatched, ", ")),
			Evidence: evidence,
		}, nil
	}

	return &contracts.VerificationResult{
		Verdict:    contracts.VerdictPass,
		Confidence: 5,
		Reasoning:  fmt.Sprintf("all %d riders work the %s shift", len(roster.Riders), majority),
		Evidence:   evidence,
	}, nil
}

// majorityShift picks the most common shift name, breaking ties
// alphabetically so repeated runs agree.
func majorityShift(shifts map[string]string) (string, map[string]int) {
	counts := make(map[string]int)
	for _, name := range shifts {
		counts[name]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	best := ""
	for _, name := range names {
		if best == "" || counts[name] > counts[best] {
			best = name
		}
	}
	return best, counts
}

var _ Verifier = (*ShiftSpecialist)(nil)

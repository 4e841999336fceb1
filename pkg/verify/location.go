package verify

import (
	"context"
	"fmt"
	"strings"

	"github.com/joyax/pool-patrol/pkg/contracts"
)

// LocationSpecialist checks rider home ZIP codes against the service area of
// the vanpool's work site. A work site with no configured service area
// passes with reduced confidence rather than guessing.
type LocationSpecialist struct {
	// serviceAreas maps a work site to the ZIP prefixes its vanpools serve.
	serviceAreas map[string][]string
}

// NewLocationSpecialist creates the location check from a work-site service
// area table.
func NewLocationSpecialist(serviceAreas map[string][]string) *LocationSpecialist {
	return &LocationSpecialist{serviceAreas: serviceAreas}
}

func (v *LocationSpecialist) Name() string { return contracts.CheckLocation }

func (v *LocationSpecialist) Verify(ctx context.Context, roster *contracts.Roster) (*contracts.VerificationResult, error) {
	if len(roster.Riders) == 0 {
		return &contracts.VerificationResult{
			Verdict:    contracts.VerdictFail,
			Confidence: 5,
			Reasoning:  "no riders provided; cannot verify service area of an empty group",
		}, nil
	}

	prefixes, ok := v.serviceAreas[roster.WorkSite]
	if !ok || len(prefixes) == 0 {
		return &contracts.VerificationResult{
			Verdict:    contracts.VerdictPass,
			Confidence: 2,
			Reasoning:  fmt.Sprintf("no service area configured for work site %q; location not enforced", roster.WorkSite),
		}, nil
	}

	var evidence []contracts.EvidenceItem
	var outside []string
	for _, emp := range roster.Riders {
		inArea := zipInArea(emp.HomeZip, prefixes)
		evidence = append(evidence, contracts.EvidenceItem{
			Type: "rider_location",
			Data: map[string]any{
				"employee_id":  emp.EmployeeID,
				"home_zip":     emp.HomeZip,
				"in_area":      inArea,
				"service_area": prefixes,
			},
		})
		if !inArea {
			outside = append(outside, emp.EmployeeID)
		}
	}

	if len(outside) > 0 {
		return &contracts.VerificationResult{
			Verdict:    contracts.VerdictFail,
			Confidence: 4,
			Reasoning: fmt.Sprintf("%d rider(s) live outside the %s service area: %s",
				len(outside), roster.WorkSite, strings.Join(outside, ", ")),
			Evidence: evidence,
		}, nil
	}

	return &contracts.VerificationResult{
		Verdict:    contracts.VerdictPass,
		Confidence: 5,
		Reasoning:  fmt.Sprintf("all %d riders live within the %s service area", len(roster.Riders), roster.WorkSite),
		Evidence:   evidence,
	}, nil
}

func zipInArea(zip string, prefixes []string) bool {
	if zip == "" {
		return false
	}
	for _, p := range prefixes {
		if strings.HasPrefix(zip, p) {
			return true
		}
	}
	return false
}

var _ Verifier = (*LocationSpecialist)(nil)

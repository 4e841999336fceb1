// Package roster resolves a vanpool's membership into full employee
// profiles for verification.
package roster

import (
	"context"
	"errors"
	"fmt"

	"github.com/joyax/pool-patrol/pkg/contracts"
	"github.com/joyax/pool-patrol/pkg/store"
)

// ErrEmptyRoster is returned when the vanpool exists but has no riders.
// Verification treats this as a data problem, not a pass or a fail.
var ErrEmptyRoster = errors.New("vanpool has no riders")

// Service loads rosters from the fleet store.
type Service struct {
	fleet store.FleetStore
}

// NewService creates a roster service.
func NewService(fleet store.FleetStore) *Service {
	return &Service{fleet: fleet}
}

// Load returns the vanpool's roster with rider profiles resolved. Returns
// store.ErrNotFound for an unknown vanpool and ErrEmptyRoster when no riders
// are assigned.
func (s *Service) Load(ctx context.Context, vanpoolID string) (*contracts.Roster, error) {
	vp, err := s.fleet.GetVanpool(ctx, vanpoolID)
	if err != nil {
		return nil, fmt.Errorf("load vanpool %s: %w", vanpoolID, err)
	}

	riders, err := s.fleet.ListRiders(ctx, vanpoolID)
	if err != nil {
		return nil, fmt.Errorf("list riders for %s: %w", vanpoolID, err)
	}
	if len(riders) == 0 {
		return nil, fmt.Errorf("vanpool %s: %w", vanpoolID, ErrEmptyRoster)
	}

	roster := &contracts.Roster{
		VanpoolID: vp.VanpoolID,
		WorkSite:  vp.WorkSite,
		Riders:    make([]*contracts.Employee, 0, len(riders)),
	}
	for _, r := range riders {
		emp, err := s.fleet.GetEmployee(ctx, r.EmployeeID)
		if err != nil {
			return nil, fmt.Errorf("load rider %s: %w", r.EmployeeID, err)
		}
		roster.Riders = append(roster.Riders, emp)
	}
	return roster, nil
}

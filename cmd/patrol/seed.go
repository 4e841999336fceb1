package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/joyax/pool-patrol/pkg/contracts"
	"github.com/joyax/pool-patrol/pkg/store"
)

// runSeed loads a small demo fleet: one compliant vanpool, one with a shift
// mismatch, and one with an out-of-area rider.
func runSeed(stdout, stderr io.Writer) int {
	ctx := context.Background()
	eng, err := buildEngine(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "startup: %v\n", err)
		return 1
	}
	defer eng.close(ctx)

	if err := seedFleet(ctx, eng.store); err != nil {
		fmt.Fprintf(stderr, "seed: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "seeded demo fleet: 3 vanpools, 8 employees, 3 shifts")
	return 0
}

func weekdays(start, end string) []contracts.ShiftDay {
	days := []string{"monday", "tuesday", "wednesday", "thursday", "friday"}
	schedule := make([]contracts.ShiftDay, 0, len(days))
	for _, d := range days {
		schedule = append(schedule, contracts.ShiftDay{Day: d, Start: start, End: end})
	}
	return schedule
}

func seedFleet(ctx context.Context, st store.Store) error {
	now := time.Now().UTC()

	shifts := []*contracts.Shift{
		{ShiftID: "SHIFT-DAY", Name: "Day", Schedule: weekdays("08:00", "17:00")},
		{ShiftID: "SHIFT-NIGHT", Name: "Night", Schedule: weekdays("22:00", "06:00")},
		{ShiftID: "SHIFT-SWING", Name: "Swing", Schedule: weekdays("14:00", "22:00")},
	}
	for _, s := range shifts {
		if err := st.PutShift(ctx, s); err != nil {
			return err
		}
	}

	employees := []*contracts.Employee{
		{EmployeeID: "EMP-1001", FirstName: "Ada", LastName: "Okafor", Email: "ada.okafor@joyax.co", WorkSite: "Redmond Campus", HomeZip: "98052", ShiftID: "SHIFT-DAY", Status: contracts.EmployeeActive},
		{EmployeeID: "EMP-1002", FirstName: "Ben", LastName: "Silva", Email: "ben.silva@joyax.co", WorkSite: "Redmond Campus", HomeZip: "98053", ShiftID: "SHIFT-DAY", Status: contracts.EmployeeActive},
		{EmployeeID: "EMP-1003", FirstName: "Carol", LastName: "Nguyen", Email: "carol.nguyen@joyax.co", WorkSite: "Redmond Campus", HomeZip: "98074", ShiftID: "SHIFT-DAY", Status: contracts.EmployeeActive},
		{EmployeeID: "EMP-2001", FirstName: "Dev", LastName: "Patel", Email: "dev.patel@joyax.co", WorkSite: "Seattle Office", HomeZip: "98101", ShiftID: "SHIFT-DAY", Status: contracts.EmployeeActive},
		{EmployeeID: "EMP-2002", FirstName: "Elif", LastName: "Demir", Email: "elif.demir@joyax.co", WorkSite: "Seattle Office", HomeZip: "98115", ShiftID: "SHIFT-NIGHT", Status: contracts.EmployeeActive},
		{EmployeeID: "EMP-2003", FirstName: "Franco", LastName: "Rossi", Email: "franco.rossi@joyax.co", WorkSite: "Seattle Office", HomeZip: "98122", ShiftID: "SHIFT-DAY", Status: contracts.EmployeeActive},
		{EmployeeID: "EMP-3001", FirstName: "Grace", LastName: "Kim", Email: "grace.kim@joyax.co", WorkSite: "Tacoma Plant", HomeZip: "98402", ShiftID: "SHIFT-SWING", Status: contracts.EmployeeActive},
		{EmployeeID: "EMP-3002", FirstName: "Hugo", LastName: "Mendez", Email: "hugo.mendez@joyax.co", WorkSite: "Tacoma Plant", HomeZip: "10001", ShiftID: "SHIFT-SWING", Status: contracts.EmployeeActive},
	}
	for _, e := range employees {
		if err := st.PutEmployee(ctx, e); err != nil {
			return err
		}
	}

	vanpools := []struct {
		pool   *contracts.Vanpool
		riders []string
	}{
		{
			// Compliant: same shift, all in area.
			pool:   &contracts.Vanpool{VanpoolID: "VP-101", WorkSite: "Redmond Campus", Capacity: 8, Status: contracts.VanpoolActive, CreatedAt: now},
			riders: []string{"EMP-1001", "EMP-1002", "EMP-1003"},
		},
		{
			// Shift mismatch: EMP-2002 works nights.
			pool:   &contracts.Vanpool{VanpoolID: "VP-102", WorkSite: "Seattle Office", Capacity: 8, Status: contracts.VanpoolActive, CreatedAt: now},
			riders: []string{"EMP-2001", "EMP-2002", "EMP-2003"},
		},
		{
			// Location mismatch: EMP-3002's home zip is outside the service area.
			pool:   &contracts.Vanpool{VanpoolID: "VP-103", WorkSite: "Tacoma Plant", Capacity: 6, Status: contracts.VanpoolActive, CreatedAt: now},
			riders: []string{"EMP-3001", "EMP-3002"},
		},
	}
	for _, vp := range vanpools {
		if err := st.PutVanpool(ctx, vp.pool); err != nil {
			return err
		}
		for _, id := range vp.riders {
			if err := st.PutRider(ctx, &contracts.Rider{
				VanpoolID:  vp.pool.VanpoolID,
				EmployeeID: id,
				CreatedAt:  now,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

package contracts

import "time"

// VanpoolStatus tracks whether a vanpool route is operating.
type VanpoolStatus string

const (
	VanpoolActive    VanpoolStatus = "active"
	VanpoolInactive  VanpoolStatus = "inactive"
	VanpoolSuspended VanpoolStatus = "suspended"
)

// EmployeeStatus tracks employment state.
type EmployeeStatus string

const (
	EmployeeActive   EmployeeStatus = "active"
	EmployeeInactive EmployeeStatus = "inactive"
	EmployeeOnLeave  EmployeeStatus = "on_leave"
)

// Vanpool is one shared-ride route.
type Vanpool struct {
	VanpoolID string        `json:"vanpool_id"`
	WorkSite  string        `json:"work_site"`
	Capacity  int           `json:"capacity"`
	Status    VanpoolStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// Employee is a program participant.
type Employee struct {
	EmployeeID string         `json:"employee_id"`
	FirstName  string         `json:"first_name"`
	LastName   string         `json:"last_name"`
	Email      string         `json:"email"`
	WorkSite   string         `json:"work_site"`
	HomeZip    string         `json:"home_zip"`
	ShiftID    string         `json:"shift_id"`
	Status     EmployeeStatus `json:"status"`
}

// FullName returns the employee's display name.
func (e *Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}

// Rider links an employee to a vanpool. Unique per (vanpool, employee) pair;
// membership cancellation removes the row.
type Rider struct {
	VanpoolID  string    `json:"vanpool_id"`
	EmployeeID string    `json:"employee_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// ShiftDay is one scheduled working day of a shift template.
type ShiftDay struct {
	Day   string `json:"day"`
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

// Shift is a shift template (Day, Night, Swing).
type Shift struct {
	ShiftID  string     `json:"shift_id"`
	Name     string     `json:"name"`
	Schedule []ShiftDay `json:"schedule,omitempty"`
}

// Roster is the set of riders assigned to a vanpool, resolved to employee
// profiles.
type Roster struct {
	VanpoolID string      `json:"vanpool_id"`
	WorkSite  string      `json:"work_site"`
	Riders    []*Employee `json:"riders"`
}

// RiderIDs returns the employee ids of the roster in listing order.
func (r *Roster) RiderIDs() []string {
	ids := make([]string, 0, len(r.Riders))
	for _, e := range r.Riders {
		ids = append(ids, e.EmployeeID)
	}
	return ids
}

// RiderEmails returns the email addresses of the roster in listing order.
func (r *Roster) RiderEmails() []string {
	emails := make([]string, 0, len(r.Riders))
	for _, e := range r.Riders {
		emails = append(emails, e.Email)
	}
	return emails
}

// AuditEvent is one entry in the investigation audit trail.
type AuditEvent struct {
	EventID   string    `json:"event_id"`
	CaseID    string    `json:"case_id,omitempty"`
	VanpoolID string    `json:"vanpool_id,omitempty"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

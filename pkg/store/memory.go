package store

import (
	"context"
	"sync"
	"time"

	"github.com/joyax/pool-patrol/pkg/contracts"
)

// Memory is an in-memory Store for tests and single-node development.
type Memory struct {
	mu          sync.Mutex
	cases       map[string]*contracts.Case
	threads     map[string]*contracts.EmailThread
	messages    map[string][]*contracts.Message
	checkpoints map[string]*contracts.ApprovalCheckpoint
	vanpools    map[string]*contracts.Vanpool
	employees   map[string]*contracts.Employee
	shifts      map[string]*contracts.Shift
	riders      map[string][]*contracts.Rider
	audit       []*contracts.AuditEvent
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		cases:       make(map[string]*contracts.Case),
		threads:     make(map[string]*contracts.EmailThread),
		messages:    make(map[string][]*contracts.Message),
		checkpoints: make(map[string]*contracts.ApprovalCheckpoint),
		vanpools:    make(map[string]*contracts.Vanpool),
		employees:   make(map[string]*contracts.Employee),
		shifts:      make(map[string]*contracts.Shift),
		riders:      make(map[string][]*contracts.Rider),
	}
}

func copyCase(c *contracts.Case) *contracts.Case {
	cp := *c
	cp.Metadata.FailedChecks = append([]string(nil), c.Metadata.FailedChecks...)
	return &cp
}

func copyMessage(m *contracts.Message) *contracts.Message {
	cp := *m
	cp.To = append([]string(nil), m.To...)
	return &cp
}

// ---------------------------------------------------------------------------
// CaseStore
// ---------------------------------------------------------------------------

func (s *Memory) CreateCase(ctx context.Context, c *contracts.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.cases {
		if existing.VanpoolID == c.VanpoolID && !existing.Status.Terminal() {
			return ErrOpenCaseExists
		}
	}
	s.cases[c.CaseID] = copyCase(c)
	return nil
}

func (s *Memory) GetCase(ctx context.Context, caseID string) (*contracts.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cases[caseID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyCase(c), nil
}

func (s *Memory) GetOpenCase(ctx context.Context, vanpoolID string) (*contracts.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.cases {
		if c.VanpoolID == vanpoolID && !c.Status.Terminal() {
			return copyCase(c), nil
		}
	}
	return nil, ErrNotFound
}

func (s *Memory) UpdateCase(ctx context.Context, c *contracts.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.cases[c.CaseID]
	if !ok {
		return ErrNotFound
	}
	if existing.Status.Terminal() {
		return ErrCaseClosed
	}
	updated := copyCase(c)
	updated.CreatedAt = existing.CreatedAt
	s.cases[c.CaseID] = updated
	return nil
}

func (s *Memory) CloseCase(ctx context.Context, caseID string, status contracts.CaseStatus, outcome string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cases[caseID]
	if !ok {
		return ErrNotFound
	}
	if c.Status.Terminal() {
		return ErrCaseClosed
	}
	c.Status = status
	c.Outcome = outcome
	c.ResolvedAt = &at
	c.UpdatedAt = at
	return nil
}

func (s *Memory) ListCases(ctx context.Context, filter CaseFilter) ([]*contracts.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*contracts.Case
	for _, c := range s.cases {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.VanpoolID != "" && c.VanpoolID != filter.VanpoolID {
			continue
		}
		out = append(out, copyCase(c))
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// ThreadStore
// ---------------------------------------------------------------------------

func (s *Memory) CreateThread(ctx context.Context, t *contracts.EmailThread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	s.threads[t.ThreadID] = &cp
	return nil
}

func (s *Memory) GetThread(ctx context.Context, threadID string) (*contracts.EmailThread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Memory) GetThreadByCase(ctx context.Context, caseID string) (*contracts.EmailThread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.threads {
		if t.CaseID == caseID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *Memory) AppendMessage(ctx context.Context, m *contracts.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[m.ThreadID] = append(s.messages[m.ThreadID], copyMessage(m))
	return nil
}

func (s *Memory) UpdateMessage(ctx context.Context, m *contracts.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[m.ThreadID]
	for i, existing := range msgs {
		if existing.MessageID == m.MessageID {
			msgs[i] = copyMessage(m)
			return nil
		}
	}
	return ErrNotFound
}

func (s *Memory) ListMessages(ctx context.Context, threadID string) ([]*contracts.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[threadID]
	out := make([]*contracts.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, copyMessage(m))
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// CheckpointStore
// ---------------------------------------------------------------------------

func (s *Memory) PutCheckpoint(ctx context.Context, cp *contracts.ApprovalCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.checkpoints {
		if existing.CaseID == cp.CaseID && existing.Status == contracts.CheckpointPending {
			return ErrCheckpointPending
		}
	}
	c := *cp
	s.checkpoints[cp.CheckpointID] = &c
	return nil
}

func (s *Memory) GetCheckpoint(ctx context.Context, checkpointID string) (*contracts.ApprovalCheckpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, ok := s.checkpoints[checkpointID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *cp
	return &c, nil
}

func (s *Memory) DeleteCheckpoint(ctx context.Context, checkpointID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.checkpoints[checkpointID]; !ok {
		return ErrNotFound
	}
	delete(s.checkpoints, checkpointID)
	return nil
}

func (s *Memory) ListPendingCheckpoints(ctx context.Context) ([]*contracts.ApprovalCheckpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*contracts.ApprovalCheckpoint
	for _, cp := range s.checkpoints {
		if cp.Status == contracts.CheckpointPending {
			c := *cp
			out = append(out, &c)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// FleetStore
// ---------------------------------------------------------------------------

func (s *Memory) PutVanpool(ctx context.Context, v *contracts.Vanpool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *v
	s.vanpools[v.VanpoolID] = &cp
	return nil
}

func (s *Memory) GetVanpool(ctx context.Context, vanpoolID string) (*contracts.Vanpool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vanpools[vanpoolID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *Memory) ListVanpools(ctx context.Context) ([]*contracts.Vanpool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*contracts.Vanpool, 0, len(s.vanpools))
	for _, v := range s.vanpools {
		cp := *v
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Memory) PutEmployee(ctx context.Context, e *contracts.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.employees[e.EmployeeID] = &cp
	return nil
}

func (s *Memory) GetEmployee(ctx context.Context, employeeID string) (*contracts.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.employees[employeeID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *Memory) PutShift(ctx context.Context, sh *contracts.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sh
	cp.Schedule = append([]contracts.ShiftDay(nil), sh.Schedule...)
	s.shifts[sh.ShiftID] = &cp
	return nil
}

func (s *Memory) GetShift(ctx context.Context, shiftID string) (*contracts.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shifts[shiftID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sh
	return &cp, nil
}

func (s *Memory) PutRider(ctx context.Context, r *contracts.Rider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.riders[r.VanpoolID] {
		if existing.EmployeeID == r.EmployeeID {
			return nil
		}
	}
	cp := *r
	s.riders[r.VanpoolID] = append(s.riders[r.VanpoolID], &cp)
	return nil
}

func (s *Memory) ListRiders(ctx context.Context, vanpoolID string) ([]*contracts.Rider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs := s.riders[vanpoolID]
	out := make([]*contracts.Rider, 0, len(rs))
	for _, r := range rs {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Memory) RemoveRider(ctx context.Context, vanpoolID, employeeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs := s.riders[vanpoolID]
	for i, r := range rs {
		if r.EmployeeID == employeeID {
			s.riders[vanpoolID] = append(rs[:i], rs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// ---------------------------------------------------------------------------
// AuditStore
// ---------------------------------------------------------------------------

func (s *Memory) AppendAudit(ctx context.Context, ev *contracts.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ev
	s.audit = append(s.audit, &cp)
	return nil
}

func (s *Memory) ListAudit(ctx context.Context, caseID string) ([]*contracts.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*contracts.AuditEvent
	for _, ev := range s.audit {
		if caseID == "" || ev.CaseID == caseID {
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out, nil
}

var _ Store = (*Memory)(nil)

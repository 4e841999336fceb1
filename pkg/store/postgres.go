package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/joyax/pool-patrol/pkg/contracts"
)

// Postgres implements Store on PostgreSQL. Unlike SQLite, the open-case and
// pending-checkpoint invariants rely entirely on partial unique indexes and
// map constraint violations back to sentinel errors.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open connection and runs migrations. The caller owns
// the *sql.DB lifecycle.
func NewPostgres(db *sql.DB) (*Postgres, error) {
	s := &Postgres{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// OpenPostgres connects with the given DSN and runs migrations.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s, err := NewPostgres(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Postgres) Close() error { return s.db.Close() }

func (s *Postgres) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cases (
			case_id TEXT PRIMARY KEY,
			vanpool_id TEXT NOT NULL,
			status TEXT NOT NULL,
			metadata JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			outcome TEXT,
			resolved_at TIMESTAMPTZ
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_cases_one_open
			ON cases(vanpool_id) WHERE status NOT IN ('resolved', 'cancelled')`,
		`CREATE TABLE IF NOT EXISTS email_threads (
			thread_id TEXT PRIMARY KEY,
			case_id TEXT NOT NULL UNIQUE,
			vanpool_id TEXT NOT NULL,
			subject TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq BIGSERIAL PRIMARY KEY,
			message_id TEXT NOT NULL UNIQUE,
			thread_id TEXT NOT NULL,
			from_email TEXT NOT NULL,
			to_emails JSONB NOT NULL,
			body TEXT NOT NULL,
			direction TEXT NOT NULL,
			status TEXT NOT NULL,
			transport_id TEXT,
			classification TEXT,
			sent_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			checkpoint_id TEXT PRIMARY KEY,
			case_id TEXT NOT NULL,
			vanpool_id TEXT NOT NULL,
			action_name TEXT NOT NULL,
			action_args JSONB NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_checkpoints_one_pending
			ON checkpoints(case_id) WHERE status = 'pending'`,
		`CREATE TABLE IF NOT EXISTS vanpools (
			vanpool_id TEXT PRIMARY KEY,
			work_site TEXT NOT NULL,
			capacity INTEGER NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS employees (
			employee_id TEXT PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			email TEXT NOT NULL,
			work_site TEXT NOT NULL,
			home_zip TEXT NOT NULL,
			shift_id TEXT NOT NULL,
			status TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS shifts (
			shift_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			schedule JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS riders (
			seq BIGSERIAL PRIMARY KEY,
			vanpool_id TEXT NOT NULL,
			employee_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE(vanpool_id, employee_id)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_events (
			seq BIGSERIAL PRIMARY KEY,
			event_id TEXT NOT NULL UNIQUE,
			case_id TEXT,
			vanpool_id TEXT,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			detail TEXT,
			ts TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(context.Background(), stmt); err != nil {
			return err
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (class 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// ---------------------------------------------------------------------------
// CaseStore
// ---------------------------------------------------------------------------

func (s *Postgres) CreateCase(ctx context.Context, c *contracts.Case) error {
	metaJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshal case metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cases (case_id, vanpool_id, status, metadata, created_at, updated_at, outcome, resolved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)`,
		c.CaseID, c.VanpoolID, string(c.Status), metaJSON,
		c.CreatedAt.UTC(), c.UpdatedAt.UTC(), c.Outcome, pgNullTime(c.ResolvedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrOpenCaseExists
		}
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

func (s *Postgres) GetCase(ctx context.Context, caseID string) (*contracts.Case, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT case_id, vanpool_id, status, metadata, created_at, updated_at, outcome, resolved_at
		 FROM cases WHERE case_id = $1`, caseID)
	return scanPgCase(row)
}

func (s *Postgres) GetOpenCase(ctx context.Context, vanpoolID string) (*contracts.Case, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT case_id, vanpool_id, status, metadata, created_at, updated_at, outcome, resolved_at
		 FROM cases WHERE vanpool_id = $1 AND status NOT IN ('resolved', 'cancelled')`, vanpoolID)
	return scanPgCase(row)
}

func scanPgCase(row rowScanner) (*contracts.Case, error) {
	var (
		c          contracts.Case
		status     string
		metaJSON   []byte
		outcome    sql.NullString
		resolvedAt sql.NullTime
	)
	err := row.Scan(&c.CaseID, &c.VanpoolID, &status, &metaJSON, &c.CreatedAt, &c.UpdatedAt, &outcome, &resolvedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(metaJSON, &c.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal case metadata: %w", err)
	}
	c.Status = contracts.CaseStatus(status)
	c.Outcome = outcome.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		c.ResolvedAt = &t
	}
	return &c, nil
}

func (s *Postgres) UpdateCase(ctx context.Context, c *contracts.Case) error {
	metaJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshal case metadata: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE cases SET status = $1, metadata = $2, updated_at = $3
		 WHERE case_id = $4 AND status NOT IN ('resolved', 'cancelled')`,
		string(c.Status), metaJSON, c.UpdatedAt.UTC(), c.CaseID)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	return s.checkCaseMutated(ctx, res, c.CaseID)
}

func (s *Postgres) CloseCase(ctx context.Context, caseID string, status contracts.CaseStatus, outcome string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE cases SET status = $1, outcome = $2, resolved_at = $3, updated_at = $3
		 WHERE case_id = $4 AND status NOT IN ('resolved', 'cancelled')`,
		string(status), outcome, at.UTC(), caseID)
	if err != nil {
		return fmt.Errorf("close case: %w", err)
	}
	return s.checkCaseMutated(ctx, res, caseID)
}

func (s *Postgres) checkCaseMutated(ctx context.Context, res sql.Result, caseID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cases WHERE case_id = $1`, caseID).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrCaseClosed
}

func (s *Postgres) ListCases(ctx context.Context, filter CaseFilter) ([]*contracts.Case, error) {
	query := `SELECT case_id, vanpool_id, status, metadata, created_at, updated_at, outcome, resolved_at FROM cases WHERE 1=1`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.VanpoolID != "" {
		args = append(args, filter.VanpoolID)
		query += fmt.Sprintf(` AND vanpool_id = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*contracts.Case
	for rows.Next() {
		c, err := scanPgCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func pgNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func pgNullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ---------------------------------------------------------------------------
// ThreadStore
// ---------------------------------------------------------------------------

func (s *Postgres) CreateThread(ctx context.Context, t *contracts.EmailThread) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO email_threads (thread_id, case_id, vanpool_id, subject, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ThreadID, t.CaseID, t.VanpoolID, t.Subject, string(t.Status), t.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert thread: %w", err)
	}
	return nil
}

func scanPgThread(row rowScanner) (*contracts.EmailThread, error) {
	var (
		t      contracts.EmailThread
		status string
	)
	err := row.Scan(&t.ThreadID, &t.CaseID, &t.VanpoolID, &t.Subject, &status, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	t.Status = contracts.ThreadStatus(status)
	return &t, nil
}

func (s *Postgres) GetThread(ctx context.Context, threadID string) (*contracts.EmailThread, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT thread_id, case_id, vanpool_id, subject, status, created_at FROM email_threads WHERE thread_id = $1`,
		threadID)
	return scanPgThread(row)
}

func (s *Postgres) GetThreadByCase(ctx context.Context, caseID string) (*contracts.EmailThread, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT thread_id, case_id, vanpool_id, subject, status, created_at FROM email_threads WHERE case_id = $1`,
		caseID)
	return scanPgThread(row)
}

func (s *Postgres) AppendMessage(ctx context.Context, m *contracts.Message) error {
	toJSON, err := json.Marshal(m.To)
	if err != nil {
		return fmt.Errorf("marshal recipients: %w", err)
	}
	var classification any
	if m.Classification != nil {
		classification = string(*m.Classification)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (message_id, thread_id, from_email, to_emails, body, direction, status, transport_id, classification, sent_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		m.MessageID, m.ThreadID, m.From, toJSON, m.Body,
		string(m.Direction), string(m.Status), pgNullString(m.TransportID), classification, pgNullTime(m.SentAt), m.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *Postgres) UpdateMessage(ctx context.Context, m *contracts.Message) error {
	toJSON, err := json.Marshal(m.To)
	if err != nil {
		return fmt.Errorf("marshal recipients: %w", err)
	}
	var classification any
	if m.Classification != nil {
		classification = string(*m.Classification)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET to_emails = $1, body = $2, status = $3, transport_id = $4, classification = $5, sent_at = $6
		 WHERE message_id = $7`,
		toJSON, m.Body, string(m.Status), pgNullString(m.TransportID), classification, pgNullTime(m.SentAt), m.MessageID)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) ListMessages(ctx context.Context, threadID string) ([]*contracts.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, thread_id, from_email, to_emails, body, direction, status, transport_id, classification, sent_at, created_at
		 FROM messages WHERE thread_id = $1 ORDER BY seq ASC`, threadID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*contracts.Message
	for rows.Next() {
		var (
			m              contracts.Message
			toJSON         []byte
			direction      string
			status         string
			transportID    sql.NullString
			classification sql.NullString
			sentAt         sql.NullTime
		)
		if err := rows.Scan(&m.MessageID, &m.ThreadID, &m.From, &toJSON, &m.Body, &direction, &status, &transportID, &classification, &sentAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.TransportID = transportID.String
		if err := json.Unmarshal(toJSON, &m.To); err != nil {
			return nil, fmt.Errorf("unmarshal recipients: %w", err)
		}
		m.Direction = contracts.MessageDirection(direction)
		m.Status = contracts.MessageStatus(status)
		if classification.Valid {
			b := contracts.Bucket(classification.String)
			m.Classification = &b
		}
		if sentAt.Valid {
			t := sentAt.Time
			m.SentAt = &t
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// CheckpointStore
// ---------------------------------------------------------------------------

func (s *Postgres) PutCheckpoint(ctx context.Context, cp *contracts.ApprovalCheckpoint) error {
	argsJSON, err := json.Marshal(cp.ActionArgs)
	if err != nil {
		return fmt.Errorf("marshal action args: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (checkpoint_id, case_id, vanpool_id, action_name, action_args, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		cp.CheckpointID, cp.CaseID, cp.VanpoolID, cp.ActionName, argsJSON, string(cp.Status), cp.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCheckpointPending
		}
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

func scanPgCheckpoint(row rowScanner) (*contracts.ApprovalCheckpoint, error) {
	var (
		cp       contracts.ApprovalCheckpoint
		argsJSON []byte
		status   string
	)
	err := row.Scan(&cp.CheckpointID, &cp.CaseID, &cp.VanpoolID, &cp.ActionName, &argsJSON, &status, &cp.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(argsJSON, &cp.ActionArgs); err != nil {
		return nil, fmt.Errorf("unmarshal action args: %w", err)
	}
	cp.Status = contracts.CheckpointStatus(status)
	return &cp, nil
}

func (s *Postgres) GetCheckpoint(ctx context.Context, checkpointID string) (*contracts.ApprovalCheckpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT checkpoint_id, case_id, vanpool_id, action_name, action_args, status, created_at
		 FROM checkpoints WHERE checkpoint_id = $1`, checkpointID)
	return scanPgCheckpoint(row)
}

func (s *Postgres) DeleteCheckpoint(ctx context.Context, checkpointID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE checkpoint_id = $1`, checkpointID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) ListPendingCheckpoints(ctx context.Context) ([]*contracts.ApprovalCheckpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT checkpoint_id, case_id, vanpool_id, action_name, action_args, status, created_at
		 FROM checkpoints WHERE status = 'pending' ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*contracts.ApprovalCheckpoint
	for rows.Next() {
		cp, err := scanPgCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// FleetStore
// ---------------------------------------------------------------------------

func (s *Postgres) PutVanpool(ctx context.Context, v *contracts.Vanpool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vanpools (vanpool_id, work_site, capacity, status, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (vanpool_id) DO UPDATE SET work_site = EXCLUDED.work_site,
			capacity = EXCLUDED.capacity, status = EXCLUDED.status`,
		v.VanpoolID, v.WorkSite, v.Capacity, string(v.Status), v.CreatedAt.UTC())
	return err
}

func (s *Postgres) GetVanpool(ctx context.Context, vanpoolID string) (*contracts.Vanpool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT vanpool_id, work_site, capacity, status, created_at FROM vanpools WHERE vanpool_id = $1`,
		vanpoolID)
	var (
		v      contracts.Vanpool
		status string
	)
	if err := row.Scan(&v.VanpoolID, &v.WorkSite, &v.Capacity, &status, &v.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	v.Status = contracts.VanpoolStatus(status)
	return &v, nil
}

func (s *Postgres) ListVanpools(ctx context.Context) ([]*contracts.Vanpool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT vanpool_id, work_site, capacity, status, created_at FROM vanpools ORDER BY vanpool_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*contracts.Vanpool
	for rows.Next() {
		var (
			v      contracts.Vanpool
			status string
		)
		if err := rows.Scan(&v.VanpoolID, &v.WorkSite, &v.Capacity, &status, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.Status = contracts.VanpoolStatus(status)
		out = append(out, &v)
	}
	return out, rows.Err()
}

func (s *Postgres) PutEmployee(ctx context.Context, e *contracts.Employee) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO employees (employee_id, first_name, last_name, email, work_site, home_zip, shift_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (employee_id) DO UPDATE SET first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name, email = EXCLUDED.email,
			work_site = EXCLUDED.work_site, home_zip = EXCLUDED.home_zip,
			shift_id = EXCLUDED.shift_id, status = EXCLUDED.status`,
		e.EmployeeID, e.FirstName, e.LastName, e.Email, e.WorkSite, e.HomeZip, e.ShiftID, string(e.Status))
	return err
}

func (s *Postgres) GetEmployee(ctx context.Context, employeeID string) (*contracts.Employee, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT employee_id, first_name, last_name, email, work_site, home_zip, shift_id, status
		 FROM employees WHERE employee_id = $1`, employeeID)
	var (
		e      contracts.Employee
		status string
	)
	if err := row.Scan(&e.EmployeeID, &e.FirstName, &e.LastName, &e.Email, &e.WorkSite, &e.HomeZip, &e.ShiftID, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	e.Status = contracts.EmployeeStatus(status)
	return &e, nil
}

func (s *Postgres) PutShift(ctx context.Context, sh *contracts.Shift) error {
	scheduleJSON, err := json.Marshal(sh.Schedule)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO shifts (shift_id, name, schedule) VALUES ($1, $2, $3)
		 ON CONFLICT (shift_id) DO UPDATE SET name = EXCLUDED.name, schedule = EXCLUDED.schedule`,
		sh.ShiftID, sh.Name, scheduleJSON)
	return err
}

func (s *Postgres) GetShift(ctx context.Context, shiftID string) (*contracts.Shift, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT shift_id, name, schedule FROM shifts WHERE shift_id = $1`, shiftID)
	var (
		sh           contracts.Shift
		scheduleJSON []byte
	)
	if err := row.Scan(&sh.ShiftID, &sh.Name, &scheduleJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(scheduleJSON, &sh.Schedule); err != nil {
		return nil, fmt.Errorf("unmarshal schedule: %w", err)
	}
	return &sh, nil
}

func (s *Postgres) PutRider(ctx context.Context, r *contracts.Rider) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO riders (vanpool_id, employee_id, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (vanpool_id, employee_id) DO NOTHING`,
		r.VanpoolID, r.EmployeeID, r.CreatedAt.UTC())
	return err
}

func (s *Postgres) ListRiders(ctx context.Context, vanpoolID string) ([]*contracts.Rider, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT vanpool_id, employee_id, created_at FROM riders WHERE vanpool_id = $1 ORDER BY seq ASC`,
		vanpoolID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*contracts.Rider
	for rows.Next() {
		var r contracts.Rider
		if err := rows.Scan(&r.VanpoolID, &r.EmployeeID, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *Postgres) RemoveRider(ctx context.Context, vanpoolID, employeeID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM riders WHERE vanpool_id = $1 AND employee_id = $2`, vanpoolID, employeeID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// AuditStore
// ---------------------------------------------------------------------------

func (s *Postgres) AppendAudit(ctx context.Context, ev *contracts.AuditEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (event_id, case_id, vanpool_id, actor, action, detail, ts)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, NULLIF($6, ''), $7)`,
		ev.EventID, ev.CaseID, ev.VanpoolID, ev.Actor, ev.Action, ev.Detail, ev.Timestamp.UTC())
	return err
}

func (s *Postgres) ListAudit(ctx context.Context, caseID string) ([]*contracts.AuditEvent, error) {
	query := `SELECT event_id, case_id, vanpool_id, actor, action, detail, ts FROM audit_events`
	var args []any
	if caseID != "" {
		query += ` WHERE case_id = $1`
		args = append(args, caseID)
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*contracts.AuditEvent
	for rows.Next() {
		var (
			ev     contracts.AuditEvent
			cID    sql.NullString
			vpID   sql.NullString
			detail sql.NullString
		)
		if err := rows.Scan(&ev.EventID, &cID, &vpID, &ev.Actor, &ev.Action, &detail, &ev.Timestamp); err != nil {
			return nil, err
		}
		ev.CaseID = cID.String
		ev.VanpoolID = vpID.String
		ev.Detail = detail.String
		out = append(out, &ev)
	}
	return out, rows.Err()
}

var _ Store = (*Postgres)(nil)

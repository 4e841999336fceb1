package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/joyax/pool-patrol/pkg/contracts"

	_ "modernc.org/sqlite"
)

// SQLite implements Store on a single SQLite database file. The schema is
// created on open; the single-open-case and single-pending-checkpoint
// invariants are backstopped by partial unique indexes.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and runs migrations.
// Use ":memory:" for an ephemeral database in tests.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite handles one writer at a time; a larger pool only produces
	// SQLITE_BUSY under contention.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cases (
			case_id TEXT PRIMARY KEY,
			vanpool_id TEXT NOT NULL,
			status TEXT NOT NULL,
			metadata JSON NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			outcome TEXT,
			resolved_at TEXT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_cases_one_open
			ON cases(vanpool_id) WHERE status NOT IN ('resolved', 'cancelled')`,
		`CREATE TABLE IF NOT EXISTS email_threads (
			thread_id TEXT PRIMARY KEY,
			case_id TEXT NOT NULL UNIQUE,
			vanpool_id TEXT NOT NULL,
			subject TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id TEXT NOT NULL UNIQUE,
			thread_id TEXT NOT NULL,
			from_email TEXT NOT NULL,
			to_emails JSON NOT NULL,
			body TEXT NOT NULL,
			direction TEXT NOT NULL,
			status TEXT NOT NULL,
			transport_id TEXT,
			classification TEXT,
			sent_at TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			checkpoint_id TEXT PRIMARY KEY,
			case_id TEXT NOT NULL,
			vanpool_id TEXT NOT NULL,
			action_name TEXT NOT NULL,
			action_args JSON NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_checkpoints_one_pending
			ON checkpoints(case_id) WHERE status = 'pending'`,
		`CREATE TABLE IF NOT EXISTS vanpools (
			vanpool_id TEXT PRIMARY KEY,
			work_site TEXT NOT NULL,
			capacity INTEGER NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL
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
			schedule JSON NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS riders (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			vanpool_id TEXT NOT NULL,
			employee_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			UNIQUE(vanpool_id, employee_id)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL UNIQUE,
			case_id TEXT,
			vanpool_id TEXT,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			detail TEXT,
			timestamp TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(context.Background(), stmt); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}

func nullTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

// ---------------------------------------------------------------------------
// CaseStore
// ---------------------------------------------------------------------------

func (s *SQLite) CreateCase(ctx context.Context, c *contracts.Case) error {
	metaJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshal case metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cases WHERE vanpool_id = ? AND status NOT IN ('resolved', 'cancelled')`,
		c.VanpoolID).Scan(&n)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrOpenCaseExists
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO cases (case_id, vanpool_id, status, metadata, created_at, updated_at, outcome, resolved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.CaseID, c.VanpoolID, string(c.Status), string(metaJSON),
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt), nullStr(c.Outcome), nullTime(c.ResolvedAt))
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) GetCase(ctx context.Context, caseID string) (*contracts.Case, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT case_id, vanpool_id, status, metadata, created_at, updated_at, outcome, resolved_at
		 FROM cases WHERE case_id = ?`, caseID)
	return scanCase(row)
}

func (s *SQLite) GetOpenCase(ctx context.Context, vanpoolID string) (*contracts.Case, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT case_id, vanpool_id, status, metadata, created_at, updated_at, outcome, resolved_at
		 FROM cases WHERE vanpool_id = ? AND status NOT IN ('resolved', 'cancelled')`, vanpoolID)
	return scanCase(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*contracts.Case, error) {
	var (
		caseID     string
		vanpoolID  string
		status     string
		metaJSON   string
		createdAt  string
		updatedAt  string
		outcome    sql.NullString
		resolvedAt sql.NullString
	)
	err := row.Scan(&caseID, &vanpoolID, &status, &metaJSON, &createdAt, &updatedAt, &outcome, &resolvedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var meta contracts.CaseMetadata
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return nil, fmt.Errorf("unmarshal case metadata: %w", err)
	}

	return &contracts.Case{
		CaseID:     caseID,
		VanpoolID:  vanpoolID,
		Status:     contracts.CaseStatus(status),
		Metadata:   meta,
		CreatedAt:  parseTime(createdAt),
		UpdatedAt:  parseTime(updatedAt),
		Outcome:    outcome.String,
		ResolvedAt: nullTimePtr(resolvedAt),
	}, nil
}

func (s *SQLite) UpdateCase(ctx context.Context, c *contracts.Case) error {
	metaJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshal case metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE cases SET status = ?, metadata = ?, updated_at = ?
		 WHERE case_id = ? AND status NOT IN ('resolved', 'cancelled')`,
		string(c.Status), string(metaJSON), formatTime(c.UpdatedAt), c.CaseID)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	return checkCaseMutated(ctx, s.db, res, c.CaseID)
}

func (s *SQLite) CloseCase(ctx context.Context, caseID string, status contracts.CaseStatus, outcome string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE cases SET status = ?, outcome = ?, resolved_at = ?, updated_at = ?
		 WHERE case_id = ? AND status NOT IN ('resolved', 'cancelled')`,
		string(status), outcome, formatTime(at), formatTime(at), caseID)
	if err != nil {
		return fmt.Errorf("close case: %w", err)
	}
	return checkCaseMutated(ctx, s.db, res, caseID)
}

// checkCaseMutated distinguishes "no such case" from "case already terminal"
// after a guarded UPDATE touched zero rows.
func checkCaseMutated(ctx context.Context, db *sql.DB, res sql.Result, caseID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cases WHERE case_id = ?`, caseID).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrCaseClosed
}

func (s *SQLite) ListCases(ctx context.Context, filter CaseFilter) ([]*contracts.Case, error) {
	query := `SELECT case_id, vanpool_id, status, metadata, created_at, updated_at, outcome, resolved_at FROM cases WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.VanpoolID != "" {
		query += ` AND vanpool_id = ?`
		args = append(args, filter.VanpoolID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var cases []*contracts.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ---------------------------------------------------------------------------
// ThreadStore
// ---------------------------------------------------------------------------

func (s *SQLite) CreateThread(ctx context.Context, t *contracts.EmailThread) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO email_threads (thread_id, case_id, vanpool_id, subject, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ThreadID, t.CaseID, t.VanpoolID, t.Subject, string(t.Status), formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert thread: %w", err)
	}
	return nil
}

func scanThread(row rowScanner) (*contracts.EmailThread, error) {
	var (
		threadID  string
		caseID    string
		vanpoolID string
		subject   string
		status    string
		createdAt string
	)
	err := row.Scan(&threadID, &caseID, &vanpoolID, &subject, &status, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &contracts.EmailThread{
		ThreadID:  threadID,
		CaseID:    caseID,
		VanpoolID: vanpoolID,
		Subject:   subject,
		Status:    contracts.ThreadStatus(status),
		CreatedAt: parseTime(createdAt),
	}, nil
}

func (s *SQLite) GetThread(ctx context.Context, threadID string) (*contracts.EmailThread, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT thread_id, case_id, vanpool_id, subject, status, created_at FROM email_threads WHERE thread_id = ?`,
		threadID)
	return scanThread(row)
}

func (s *SQLite) GetThreadByCase(ctx context.Context, caseID string) (*contracts.EmailThread, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT thread_id, case_id, vanpool_id, subject, status, created_at FROM email_threads WHERE case_id = ?`,
		caseID)
	return scanThread(row)
}

func (s *SQLite) AppendMessage(ctx context.Context, m *contracts.Message) error {
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
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.MessageID, m.ThreadID, m.From, string(toJSON), m.Body,
		string(m.Direction), string(m.Status), nullString(m.TransportID), classification, nullTime(m.SentAt), formatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *SQLite) UpdateMessage(ctx context.Context, m *contracts.Message) error {
	toJSON, err := json.Marshal(m.To)
	if err != nil {
		return fmt.Errorf("marshal recipients: %w", err)
	}
	var classification any
	if m.Classification != nil {
		classification = string(*m.Classification)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET to_emails = ?, body = ?, status = ?, transport_id = ?, classification = ?, sent_at = ?
		 WHERE message_id = ?`,
		string(toJSON), m.Body, string(m.Status), nullString(m.TransportID), classification, nullTime(m.SentAt), m.MessageID)
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

func (s *SQLite) ListMessages(ctx context.Context, threadID string) ([]*contracts.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, thread_id, from_email, to_emails, body, direction, status, transport_id, classification, sent_at, created_at
		 FROM messages WHERE thread_id = ? ORDER BY seq ASC`, threadID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []*contracts.Message
	for rows.Next() {
		var (
			messageID      string
			thID           string
			from           string
			toJSON         string
			body           string
			direction      string
			status         string
			transportID    sql.NullString
			classification sql.NullString
			sentAt         sql.NullString
			createdAt      string
		)
		if err := rows.Scan(&messageID, &thID, &from, &toJSON, &body, &direction, &status, &transportID, &classification, &sentAt, &createdAt); err != nil {
			return nil, err
		}
		var to []string
		if err := json.Unmarshal([]byte(toJSON), &to); err != nil {
			return nil, fmt.Errorf("unmarshal recipients: %w", err)
		}
		m := &contracts.Message{
			MessageID:   messageID,
			ThreadID:    thID,
			From:        from,
			To:          to,
			Body:        body,
			Direction:   contracts.MessageDirection(direction),
			Status:      contracts.MessageStatus(status),
			TransportID: transportID.String,
			SentAt:      nullTimePtr(sentAt),
			CreatedAt:   parseTime(createdAt),
		}
		if classification.Valid {
			b := contracts.Bucket(classification.String)
			m.Classification = &b
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// ---------------------------------------------------------------------------
// CheckpointStore
// ---------------------------------------------------------------------------

func (s *SQLite) PutCheckpoint(ctx context.Context, cp *contracts.ApprovalCheckpoint) error {
	argsJSON, err := json.Marshal(cp.ActionArgs)
	if err != nil {
		return fmt.Errorf("marshal action args: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM checkpoints WHERE case_id = ? AND status = 'pending'`, cp.CaseID).Scan(&n)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrCheckpointPending
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO checkpoints (checkpoint_id, case_id, vanpool_id, action_name, action_args, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cp.CheckpointID, cp.CaseID, cp.VanpoolID, cp.ActionName, string(argsJSON),
		string(cp.Status), formatTime(cp.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return tx.Commit()
}

func scanCheckpoint(row rowScanner) (*contracts.ApprovalCheckpoint, error) {
	var (
		checkpointID string
		caseID       string
		vanpoolID    string
		actionName   string
		argsJSON     string
		status       string
		createdAt    string
	)
	err := row.Scan(&checkpointID, &caseID, &vanpoolID, &actionName, &argsJSON, &status, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var args contracts.ActionArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return nil, fmt.Errorf("unmarshal action args: %w", err)
	}
	return &contracts.ApprovalCheckpoint{
		CheckpointID: checkpointID,
		CaseID:       caseID,
		VanpoolID:    vanpoolID,
		ActionName:   actionName,
		ActionArgs:   args,
		Status:       contracts.CheckpointStatus(status),
		CreatedAt:    parseTime(createdAt),
	}, nil
}

func (s *SQLite) GetCheckpoint(ctx context.Context, checkpointID string) (*contracts.ApprovalCheckpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT checkpoint_id, case_id, vanpool_id, action_name, action_args, status, created_at
		 FROM checkpoints WHERE checkpoint_id = ?`, checkpointID)
	return scanCheckpoint(row)
}

func (s *SQLite) DeleteCheckpoint(ctx context.Context, checkpointID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE checkpoint_id = ?`, checkpointID)
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

func (s *SQLite) ListPendingCheckpoints(ctx context.Context) ([]*contracts.ApprovalCheckpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT checkpoint_id, case_id, vanpool_id, action_name, action_args, status, created_at
		 FROM checkpoints WHERE status = 'pending' ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var cps []*contracts.ApprovalCheckpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		cps = append(cps, cp)
	}
	return cps, rows.Err()
}

// ---------------------------------------------------------------------------
// FleetStore
// ---------------------------------------------------------------------------

func (s *SQLite) PutVanpool(ctx context.Context, v *contracts.Vanpool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vanpools (vanpool_id, work_site, capacity, status, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(vanpool_id) DO UPDATE SET work_site = excluded.work_site,
			capacity = excluded.capacity, status = excluded.status`,
		v.VanpoolID, v.WorkSite, v.Capacity, string(v.Status), formatTime(v.CreatedAt))
	return err
}

func (s *SQLite) GetVanpool(ctx context.Context, vanpoolID string) (*contracts.Vanpool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT vanpool_id, work_site, capacity, status, created_at FROM vanpools WHERE vanpool_id = ?`,
		vanpoolID)
	var (
		id        string
		workSite  string
		capacity  int
		status    string
		createdAt string
	)
	if err := row.Scan(&id, &workSite, &capacity, &status, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &contracts.Vanpool{
		VanpoolID: id,
		WorkSite:  workSite,
		Capacity:  capacity,
		Status:    contracts.VanpoolStatus(status),
		CreatedAt: parseTime(createdAt),
	}, nil
}

func (s *SQLite) ListVanpools(ctx context.Context) ([]*contracts.Vanpool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT vanpool_id, work_site, capacity, status, created_at FROM vanpools ORDER BY vanpool_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*contracts.Vanpool
	for rows.Next() {
		var (
			id        string
			workSite  string
			capacity  int
			status    string
			createdAt string
		)
		if err := rows.Scan(&id, &workSite, &capacity, &status, &createdAt); err != nil {
			return nil, err
		}
		out = append(out, &contracts.Vanpool{
			VanpoolID: id,
			WorkSite:  workSite,
			Capacity:  capacity,
			Status:    contracts.VanpoolStatus(status),
			CreatedAt: parseTime(createdAt),
		})
	}
	return out, rows.Err()
}

func (s *SQLite) PutEmployee(ctx context.Context, e *contracts.Employee) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO employees (employee_id, first_name, last_name, email, work_site, home_zip, shift_id, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(employee_id) DO UPDATE SET first_name = excluded.first_name,
			last_name = excluded.last_name, email = excluded.email,
			work_site = excluded.work_site, home_zip = excluded.home_zip,
			shift_id = excluded.shift_id, status = excluded.status`,
		e.EmployeeID, e.FirstName, e.LastName, e.Email, e.WorkSite, e.HomeZip, e.ShiftID, string(e.Status))
	return err
}

func (s *SQLite) GetEmployee(ctx context.Context, employeeID string) (*contracts.Employee, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT employee_id, first_name, last_name, email, work_site, home_zip, shift_id, status
		 FROM employees WHERE employee_id = ?`, employeeID)
	var e contracts.Employee
	var status string
	err := row.Scan(&e.EmployeeID, &e.FirstName, &e.LastName, &e.Email, &e.WorkSite, &e.HomeZip, &e.ShiftID, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	e.Status = contracts.EmployeeStatus(status)
	return &e, nil
}

func (s *SQLite) PutShift(ctx context.Context, sh *contracts.Shift) error {
	scheduleJSON, err := json.Marshal(sh.Schedule)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO shifts (shift_id, name, schedule) VALUES (?, ?, ?)
		 ON CONFLICT(shift_id) DO UPDATE SET name = excluded.name, schedule = excluded.schedule`,
		sh.ShiftID, sh.Name, string(scheduleJSON))
	return err
}

func (s *SQLite) GetShift(ctx context.Context, shiftID string) (*contracts.Shift, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT shift_id, name, schedule FROM shifts WHERE shift_id = ?`, shiftID)
	var (
		id           string
		name         string
		scheduleJSON string
	)
	if err := row.Scan(&id, &name, &scheduleJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var schedule []contracts.ShiftDay
	if err := json.Unmarshal([]byte(scheduleJSON), &schedule); err != nil {
		return nil, fmt.Errorf("unmarshal schedule: %w", err)
	}
	return &contracts.Shift{ShiftID: id, Name: name, Schedule: schedule}, nil
}

func (s *SQLite) PutRider(ctx context.Context, r *contracts.Rider) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO riders (vanpool_id, employee_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(vanpool_id, employee_id) DO NOTHING`,
		r.VanpoolID, r.EmployeeID, formatTime(r.CreatedAt))
	return err
}

func (s *SQLite) ListRiders(ctx context.Context, vanpoolID string) ([]*contracts.Rider, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT vanpool_id, employee_id, created_at FROM riders WHERE vanpool_id = ? ORDER BY seq ASC`,
		vanpoolID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*contracts.Rider
	for rows.Next() {
		var (
			vpID      string
			empID     string
			createdAt string
		)
		if err := rows.Scan(&vpID, &empID, &createdAt); err != nil {
			return nil, err
		}
		out = append(out, &contracts.Rider{VanpoolID: vpID, EmployeeID: empID, CreatedAt: parseTime(createdAt)})
	}
	return out, rows.Err()
}

func (s *SQLite) RemoveRider(ctx context.Context, vanpoolID, employeeID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM riders WHERE vanpool_id = ? AND employee_id = ?`, vanpoolID, employeeID)
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

func (s *SQLite) AppendAudit(ctx context.Context, ev *contracts.AuditEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (event_id, case_id, vanpool_id, actor, action, detail, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.EventID, nullStr(ev.CaseID), nullStr(ev.VanpoolID), ev.Actor, ev.Action, nullStr(ev.Detail), formatTime(ev.Timestamp))
	return err
}

func (s *SQLite) ListAudit(ctx context.Context, caseID string) ([]*contracts.AuditEvent, error) {
	query := `SELECT event_id, case_id, vanpool_id, actor, action, detail, timestamp FROM audit_events`
	var args []any
	if caseID != "" {
		query += ` WHERE case_id = ?`
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
			eventID   string
			cID       sql.NullString
			vpID      sql.NullString
			actor     string
			action    string
			detail    sql.NullString
			timestamp string
		)
		if err := rows.Scan(&eventID, &cID, &vpID, &actor, &action, &detail, &timestamp); err != nil {
			return nil, err
		}
		out = append(out, &contracts.AuditEvent{
			EventID:   eventID,
			CaseID:    cID.String,
			VanpoolID: vpID.String,
			Actor:     actor,
			Action:    action,
			Detail:    detail.String,
			Timestamp: parseTime(timestamp),
		})
	}
	return out, rows.Err()
}

var _ Store = (*SQLite)(nil)

// Package queue persists submitted compile invocations in SQLite and hands
// them to the dispatch loop in FIFO order.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Queue struct {
	db *sql.DB
}

func New(db *sql.DB) *Queue {
	return &Queue{db: db}
}

func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (string, error) {
	if req.Toolchain == "" {
		return "", fmt.Errorf("toolchain is empty")
	}
	if req.CompilerClass == "" {
		return "", fmt.Errorf("compiler_class is empty")
	}
	if req.SubmittedBy == "" {
		return "", fmt.Errorf("submitted_by is empty")
	}
	if len(req.Request) == 0 {
		return "", fmt.Errorf("request is empty")
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := q.db.ExecContext(ctx, `
INSERT INTO invocation_queue(id, toolchain, compiler_class, request, status, submitted_by, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?);
`, id, req.Toolchain, req.CompilerClass, string(req.Request), StatusQueued, req.SubmittedBy, now)
	if err != nil {
		return "", fmt.Errorf("enqueue invocation: %w", err)
	}
	return id, nil
}

// Dequeue claims the oldest queued invocation and marks it running. Returns
// (nil, nil) if the queue is empty.
func (q *Queue) Dequeue(ctx context.Context) (*Invocation, error) {
	nowS := time.Now().UTC().Format(time.RFC3339Nano)

	row := q.db.QueryRowContext(ctx, `
WITH next AS (
  SELECT id
  FROM invocation_queue
  WHERE status = ?
  ORDER BY created_at ASC, rowid ASC
  LIMIT 1
)
UPDATE invocation_queue
SET status = ?, started_at = ?
WHERE id IN (SELECT id FROM next)
RETURNING id, toolchain, compiler_class, request, status, submitted_by, created_at, started_at, completed_at, last_error;
`, StatusQueued, StatusRunning, nowS)

	inv, err := scanInvocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue invocation: %w", err)
	}
	return inv, nil
}

// Complete marks an invocation terminal and appends a row to invocation_log.
func (q *Queue) Complete(ctx context.Context, id string, outcome Outcome) error {
	if id == "" {
		return fmt.Errorf("invocation id is empty")
	}
	if outcome.Status != StatusSucceeded && outcome.Status != StatusFailed {
		return fmt.Errorf("invalid terminal status: %q", outcome.Status)
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	nowS := time.Now().UTC().Format(time.RFC3339Nano)

	var result, diagnostic any
	if len(outcome.Result) > 0 {
		result = string(outcome.Result)
	}
	if len(outcome.Diagnostic) > 0 {
		diagnostic = string(outcome.Diagnostic)
	}

	res, err := tx.ExecContext(ctx, `
UPDATE invocation_queue
SET status = ?, completed_at = ?, last_error = ?
WHERE id = ?;
`, outcome.Status, nowS, outcome.LastError, id)
	if err != nil {
		return fmt.Errorf("complete invocation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInvocationNotFound
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO invocation_log(id, toolchain, compiler_class, status, submitted_by, created_at, completed_at, last_error, result, diagnostic)
SELECT id, toolchain, compiler_class, ?, submitted_by, created_at, ?, ?, ?, ?
FROM invocation_queue WHERE id = ?;
`, outcome.Status, nowS, outcome.LastError, result, diagnostic, id)
	if err != nil {
		return fmt.Errorf("append invocation log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get returns one invocation by id, joining in any logged outcome.
func (q *Queue) Get(ctx context.Context, id string) (*Invocation, error) {
	row := q.db.QueryRowContext(ctx, `
SELECT q.id, q.toolchain, q.compiler_class, q.request, q.status, q.submitted_by,
       q.created_at, q.started_at, q.completed_at, q.last_error
FROM invocation_queue q
WHERE q.id = ?;
`, id)

	inv, err := scanInvocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvocationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invocation: %w", err)
	}

	var result, diagnostic sql.NullString
	err = q.db.QueryRowContext(ctx,
		"SELECT result, diagnostic FROM invocation_log WHERE id = ?;", id,
	).Scan(&result, &diagnostic)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get invocation outcome: %w", err)
	}
	if result.Valid {
		inv.Result = []byte(result.String)
	}
	if diagnostic.Valid {
		inv.Diagnostic = []byte(diagnostic.String)
	}
	return inv, nil
}

// Recent returns the most recently completed invocations, newest first.
func (q *Queue) Recent(ctx context.Context, limit int) ([]*Invocation, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := q.db.QueryContext(ctx, `
SELECT id, toolchain, compiler_class, request, status, submitted_by, created_at, started_at, completed_at, last_error
FROM invocation_queue
ORDER BY created_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list invocations: %w", err)
	}
	defer rows.Close()

	var out []*Invocation
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// PruneLogs deletes invocation_log rows older than retention.
func (q *Queue) PruneLogs(ctx context.Context, retention time.Duration) error {
	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339Nano)
	if _, err := q.db.ExecContext(ctx,
		"DELETE FROM invocation_log WHERE completed_at < ?;", cutoff); err != nil {
		return fmt.Errorf("prune invocation log: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvocation(row rowScanner) (*Invocation, error) {
	var (
		inv          Invocation
		request      string
		statusS      string
		createdAtS   string
		startedAtS   sql.NullString
		completedAtS sql.NullString
		lastError    sql.NullString
	)
	err := row.Scan(&inv.ID, &inv.Toolchain, &inv.CompilerClass, &request, &statusS,
		&inv.SubmittedBy, &createdAtS, &startedAtS, &completedAtS, &lastError)
	if err != nil {
		return nil, err
	}

	inv.Request = []byte(request)
	inv.Status = Status(statusS)
	if t, err := time.Parse(time.RFC3339Nano, createdAtS); err == nil {
		inv.CreatedAt = t
	}
	if startedAtS.Valid {
		if t, err := time.Parse(time.RFC3339Nano, startedAtS.String); err == nil {
			inv.StartedAt = &t
		}
	}
	if completedAtS.Valid {
		if t, err := time.Parse(time.RFC3339Nano, completedAtS.String); err == nil {
			inv.CompletedAt = &t
		}
	}
	if lastError.Valid {
		inv.LastError = &lastError.String
	}
	return &inv, nil
}

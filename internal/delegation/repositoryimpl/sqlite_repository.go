package repositoryimpl

import (
	"context"
	"database/sql"
	"time"

	"github.com/focusdeck/focusdeck/internal/delegation"
	"github.com/focusdeck/focusdeck/pkg/cerr"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const assignmentColumns = `assignment_id, task_id, assignee_id, assignee_type, status,
	assigned_at, accepted_at, completed_at, estimated_hours, actual_hours`

func (r *SQLiteRepository) Create(ctx context.Context, a *delegation.Assignment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO task_assignments (`+assignmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TaskID, a.AssigneeID, string(a.AssigneeType), string(a.Status),
		a.AssignedAt, nullTime(a.AcceptedAt), nullTime(a.CompletedAt),
		nullFloat(a.EstimatedHours), nullFloat(a.ActualHours),
	)
	if err != nil {
		return cerr.WrapExecError("assignment", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*delegation.Assignment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM task_assignments WHERE assignment_id = ?`, id)
	return scanAssignment(row)
}

func (r *SQLiteRepository) ListByAssignee(ctx context.Context, assigneeID string, status delegation.Status) ([]*delegation.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM task_assignments WHERE assignee_id = ?`
	args := []any{assigneeID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY rowid"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, cerr.WrapQueryError("assignments", err)
	}
	defer rows.Close()

	var assignments []*delegation.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, cerr.WrapQueryError("assignments", err)
	}
	return assignments, nil
}

// MarkAccepted performs the status check and the status write as one
// statement, so two concurrent accepts cannot both succeed.
func (r *SQLiteRepository) MarkAccepted(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE task_assignments
		SET status = ?, accepted_at = ?
		WHERE assignment_id = ? AND status = ?`,
		string(delegation.StatusInProgress), at, id, string(delegation.StatusPending))
	if err != nil {
		return false, cerr.WrapExecError("assignment", err)
	}
	return oneRowAffected(res)
}

func (r *SQLiteRepository) MarkCompleted(ctx context.Context, id string, at time.Time, actualHours *float64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE task_assignments
		SET status = ?, completed_at = ?, actual_hours = ?
		WHERE assignment_id = ? AND status = ?`,
		string(delegation.StatusCompleted), at, nullFloat(actualHours),
		id, string(delegation.StatusInProgress))
	if err != nil {
		return false, cerr.WrapExecError("assignment", err)
	}
	return oneRowAffected(res)
}

func (r *SQLiteRepository) MarkCancelled(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE task_assignments
		SET status = ?
		WHERE assignment_id = ? AND status IN (?, ?)`,
		string(delegation.StatusCancelled), id,
		string(delegation.StatusPending), string(delegation.StatusInProgress))
	if err != nil {
		return false, cerr.WrapExecError("assignment", err)
	}
	return oneRowAffected(res)
}

func oneRowAffected(res sql.Result) (bool, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return false, cerr.WrapExecError("assignment", err)
	}
	return affected > 0, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row rowScanner) (*delegation.Assignment, error) {
	var a delegation.Assignment
	var assigneeType, status string
	var acceptedAt, completedAt sql.NullTime
	var estimatedHours, actualHours sql.NullFloat64
	err := row.Scan(
		&a.ID, &a.TaskID, &a.AssigneeID, &assigneeType, &status,
		&a.AssignedAt, &acceptedAt, &completedAt, &estimatedHours, &actualHours,
	)
	if err != nil {
		return nil, cerr.WrapQueryError("assignment", err)
	}
	a.AssigneeType = delegation.AssigneeType(assigneeType)
	a.Status = delegation.Status(status)
	if acceptedAt.Valid {
		t := acceptedAt.Time
		a.AcceptedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	if estimatedHours.Valid {
		f := estimatedHours.Float64
		a.EstimatedHours = &f
	}
	if actualHours.Valid {
		f := actualHours.Float64
		a.ActualHours = &f
	}
	return &a, nil
}

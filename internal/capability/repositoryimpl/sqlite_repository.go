package repositoryimpl

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/focusdeck/focusdeck/internal/capability"
	"github.com/focusdeck/focusdeck/pkg/cerr"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const capabilityColumns = `capability_id, agent_id, agent_name, agent_type, skills,
	max_concurrent_tasks, current_task_count, is_available, created_at, updated_at`

func (r *SQLiteRepository) Create(ctx context.Context, c *capability.Capability) error {
	skills, err := json.Marshal(c.Skills)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal skills: %w", err))
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO agent_capabilities (`+capabilityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.AgentID, c.AgentName, c.AgentType, string(skills),
		c.MaxConcurrentTasks, c.CurrentTaskCount, c.IsAvailable, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return cerr.WrapExecError("capability", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*capability.Capability, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+capabilityColumns+`
		FROM agent_capabilities WHERE capability_id = ?`, id)
	return scanCapability(row)
}

func (r *SQLiteRepository) FindByAgentID(ctx context.Context, agentID string) (*capability.Capability, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+capabilityColumns+`
		FROM agent_capabilities WHERE agent_id = ?
		ORDER BY rowid LIMIT 1`, agentID)
	c, err := scanCapability(row)
	if err != nil {
		if cerr.IsCode(err, cerr.NotFound) {
			return nil, cerr.NewError(cerr.NotFound, "agent not found", nil)
		}
		return nil, err
	}
	return c, nil
}

func (r *SQLiteRepository) List(ctx context.Context, filter capability.ListFilter) ([]*capability.Capability, error) {
	query := `SELECT ` + capabilityColumns + ` FROM agent_capabilities WHERE 1=1`
	var args []any
	if filter.AgentType != "" {
		query += " AND agent_type = ?"
		args = append(args, filter.AgentType)
	}
	if filter.AvailableOnly {
		query += " AND is_available = 1"
	}
	query += " ORDER BY rowid"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, cerr.WrapQueryError("capabilities", err)
	}
	defer rows.Close()

	var caps []*capability.Capability
	for rows.Next() {
		c, err := scanCapability(rows)
		if err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	if err := rows.Err(); err != nil {
		return nil, cerr.WrapQueryError("capabilities", err)
	}
	return caps, nil
}

// ReserveSlot is a single conditional UPDATE bounded by the ceiling, so two
// concurrent reservations against one remaining slot cannot both succeed.
func (r *SQLiteRepository) ReserveSlot(ctx context.Context, agentID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE agent_capabilities
		SET current_task_count = current_task_count + 1,
		    is_available = CASE WHEN current_task_count + 1 < max_concurrent_tasks THEN 1 ELSE 0 END,
		    updated_at = ?
		WHERE capability_id = (
			SELECT capability_id FROM agent_capabilities
			WHERE agent_id = ? AND current_task_count < max_concurrent_tasks
			ORDER BY rowid LIMIT 1
		)`, time.Now(), agentID)
	if err != nil {
		return false, cerr.WrapExecError("capability", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, cerr.WrapExecError("capability", err)
	}
	if affected > 0 {
		return true, nil
	}

	exists, err := r.agentExists(ctx, agentID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, cerr.NewError(cerr.NotFound, "agent not found", nil)
	}
	return false, nil
}

func (r *SQLiteRepository) ReleaseSlot(ctx context.Context, agentID string) error {
	// current_task_count - 1 is always below the ceiling, so the row
	// becomes available again unconditionally.
	res, err := r.db.ExecContext(ctx, `
		UPDATE agent_capabilities
		SET current_task_count = current_task_count - 1,
		    is_available = 1,
		    updated_at = ?
		WHERE capability_id = (
			SELECT capability_id FROM agent_capabilities
			WHERE agent_id = ? AND current_task_count > 0
			ORDER BY rowid LIMIT 1
		)`, time.Now(), agentID)
	if err != nil {
		return cerr.WrapExecError("capability", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return cerr.WrapExecError("capability", err)
	}
	if affected > 0 {
		return nil
	}

	// All counters already at zero is a no-op, not an error.
	exists, err := r.agentExists(ctx, agentID)
	if err != nil {
		return err
	}
	if !exists {
		return cerr.NewError(cerr.NotFound, "agent not found", nil)
	}
	return nil
}

func (r *SQLiteRepository) agentExists(ctx context.Context, agentID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM agent_capabilities WHERE agent_id = ?`, agentID).Scan(&count)
	if err != nil {
		return false, cerr.WrapQueryError("capability", err)
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCapability(row rowScanner) (*capability.Capability, error) {
	var c capability.Capability
	var skills string
	err := row.Scan(
		&c.ID, &c.AgentID, &c.AgentName, &c.AgentType, &skills,
		&c.MaxConcurrentTasks, &c.CurrentTaskCount, &c.IsAvailable, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, cerr.WrapQueryError("capability", err)
	}
	if err := json.Unmarshal([]byte(skills), &c.Skills); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal skills: %w", err))
	}
	return &c, nil
}

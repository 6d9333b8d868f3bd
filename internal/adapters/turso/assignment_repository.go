package turso

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/infrastructure/database"
	"github.com/emiliopalmerini/splitlab/internal/util"
)

// readRetries bounds retries of idempotent reads on stale Turso streams.
const readRetries = 2

type AssignmentRepository struct {
	db *sql.DB
}

func NewAssignmentRepository(db *sql.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) Get(ctx context.Context, experimentID, entityID string) (*domain.Assignment, error) {
	a, err := database.WithRetry(ctx, readRetries, func() (*domain.Assignment, error) {
		row := r.db.QueryRowContext(ctx, `SELECT experiment_id, entity_id, variant, hash_value, hash_version, assigned_at
			FROM assignments WHERE experiment_id = ? AND entity_id = ?`, experimentID, entityID)
		return scanAssignment(row)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

func (r *AssignmentRepository) InsertIfAbsent(ctx context.Context, a *domain.Assignment) (*domain.Assignment, bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO assignments
		(experiment_id, entity_id, variant, hash_value, hash_version, assigned_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (experiment_id, entity_id) DO NOTHING`,
		a.ExperimentID, a.EntityID, a.Variant, a.HashValue, a.HashVersion, util.FormatTime(a.AssignedAt))
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert assignment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 1 {
		stored := *a
		return &stored, true, nil
	}

	// Lost the race: the winner's row is authoritative.
	winner, err := r.Get(ctx, a.ExperimentID, a.EntityID)
	if err != nil {
		return nil, false, err
	}
	if winner == nil {
		return nil, false, fmt.Errorf("assignment for %s/%s vanished after conflict", a.ExperimentID, a.EntityID)
	}
	return winner, false, nil
}

func (r *AssignmentRepository) List(ctx context.Context, experimentID, afterEntityID string, limit int) ([]*domain.Assignment, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `SELECT experiment_id, entity_id, variant, hash_value, hash_version, assigned_at
		FROM assignments WHERE experiment_id = ? AND entity_id > ?
		ORDER BY entity_id LIMIT ?`, experimentID, afterEntityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var out []*domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return out, nil
}

func (r *AssignmentRepository) Count(ctx context.Context, experimentID string) (int64, error) {
	return database.WithRetry(ctx, readRetries, func() (int64, error) {
		var n int64
		err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assignments WHERE experiment_id = ?`, experimentID).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("failed to count assignments: %w", err)
		}
		return n, nil
	})
}

func scanAssignment(row rowScanner) (*domain.Assignment, error) {
	var (
		a          domain.Assignment
		assignedAt string
	)
	if err := row.Scan(&a.ExperimentID, &a.EntityID, &a.Variant, &a.HashValue, &a.HashVersion, &assignedAt); err != nil {
		return nil, err
	}
	a.AssignedAt = util.ParseTime(assignedAt)
	return &a, nil
}

package turso

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/ports"
	"github.com/emiliopalmerini/splitlab/internal/util"
)

const experimentColumns = `id, name, description, hypothesis, scope_key, variants, control_variant,
	fallback_variant, primary_metric, secondary_metrics, status, planned_duration_days,
	stop_reason, created_at, actual_start_date, actual_end_date`

type ExperimentRepository struct {
	db *sql.DB
}

func NewExperimentRepository(db *sql.DB) *ExperimentRepository {
	return &ExperimentRepository{db: db}
}

type variantRow struct {
	Name   string `json:"name"`
	Weight int    `json:"weight"`
}

func (r *ExperimentRepository) Create(ctx context.Context, experiment *domain.Experiment) error {
	rows := make([]variantRow, len(experiment.Variants))
	for i, v := range experiment.Variants {
		rows[i] = variantRow{Name: v.Name, Weight: v.Weight}
	}
	variants, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to encode variants: %w", err)
	}
	secondary := experiment.SecondaryMetrics
	if secondary == nil {
		secondary = []string{}
	}
	secondaryJSON, err := json.Marshal(secondary)
	if err != nil {
		return fmt.Errorf("failed to encode secondary metrics: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO experiments (`+experimentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		experiment.ID,
		experiment.Name,
		util.NullStringPtr(experiment.Description),
		util.NullStringPtr(experiment.Hypothesis),
		experiment.ScopeKey,
		string(variants),
		experiment.ControlVariant,
		experiment.FallbackVariant,
		experiment.PrimaryMetric,
		string(secondaryJSON),
		string(experiment.Status),
		experiment.PlannedDurationDays,
		util.NullStringPtr(experiment.StopReason),
		util.FormatTime(experiment.CreatedAt),
		util.NullTime(experiment.ActualStartDate),
		util.NullTime(experiment.ActualEndDate),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrExperimentExists, experiment.Name)
		}
		return fmt.Errorf("failed to create experiment: %w", err)
	}
	return nil
}

func (r *ExperimentRepository) GetByID(ctx context.Context, id string) (*domain.Experiment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+experimentColumns+` FROM experiments WHERE id = ?`, id)
	exp, err := scanExperiment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrExperimentNotFound, id)
		}
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}
	return exp, nil
}

func (r *ExperimentRepository) GetByName(ctx context.Context, name string) (*domain.Experiment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+experimentColumns+` FROM experiments WHERE name = ?`, name)
	exp, err := scanExperiment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrExperimentNotFound, name)
		}
		return nil, fmt.Errorf("failed to get experiment by name: %w", err)
	}
	return exp, nil
}

func (r *ExperimentRepository) List(ctx context.Context, filter domain.ExperimentFilter) ([]*domain.Experiment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+experimentColumns+` FROM experiments
		WHERE (? = '' OR scope_key = ?) AND (? = '' OR status = ?)
		ORDER BY rowid`,
		filter.ScopeKey, filter.ScopeKey, string(filter.Status), string(filter.Status))
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	defer rows.Close()

	var experiments []*domain.Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan experiment: %w", err)
		}
		experiments = append(experiments, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	return experiments, nil
}

func (r *ExperimentRepository) Transition(ctx context.Context, t ports.StatusTransition) (bool, error) {
	var query string
	args := []any{string(t.To)}
	switch t.To {
	case domain.StatusRunning:
		query = `UPDATE experiments SET status = ?, actual_start_date = ? WHERE id = ? AND status = ?`
		args = append(args, util.FormatTime(t.At))
	case domain.StatusStopped, domain.StatusCompleted:
		query = `UPDATE experiments SET status = ?, actual_end_date = ?, stop_reason = ? WHERE id = ? AND status = ?`
		args = append(args, util.FormatTime(t.At), util.NullStringPtr(t.StopReason))
	default:
		return false, fmt.Errorf("unsupported transition to %s", t.To)
	}
	args = append(args, t.ID, string(t.From))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update experiment status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 1 {
		return true, nil
	}

	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM experiments WHERE id = ?`, t.ID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check experiment: %w", err)
	}
	if exists == 0 {
		return false, fmt.Errorf("%w: %s", domain.ErrExperimentNotFound, t.ID)
	}
	return false, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExperiment(row rowScanner) (*domain.Experiment, error) {
	var (
		exp                            domain.Experiment
		description, hypothesis        sql.NullString
		stopReason                     sql.NullString
		variantsJSON, secondaryJSON    string
		status, createdAt              string
		actualStartDate, actualEndDate sql.NullString
	)
	err := row.Scan(
		&exp.ID,
		&exp.Name,
		&description,
		&hypothesis,
		&exp.ScopeKey,
		&variantsJSON,
		&exp.ControlVariant,
		&exp.FallbackVariant,
		&exp.PrimaryMetric,
		&secondaryJSON,
		&status,
		&exp.PlannedDurationDays,
		&stopReason,
		&createdAt,
		&actualStartDate,
		&actualEndDate,
	)
	if err != nil {
		return nil, err
	}

	var variants []variantRow
	if err := json.Unmarshal([]byte(variantsJSON), &variants); err != nil {
		return nil, fmt.Errorf("failed to decode variants: %w", err)
	}
	exp.Variants = make([]domain.Variant, len(variants))
	for i, v := range variants {
		exp.Variants[i] = domain.Variant{Name: v.Name, Weight: v.Weight}
	}
	if err := json.Unmarshal([]byte(secondaryJSON), &exp.SecondaryMetrics); err != nil {
		return nil, fmt.Errorf("failed to decode secondary metrics: %w", err)
	}
	if len(exp.SecondaryMetrics) == 0 {
		exp.SecondaryMetrics = nil
	}

	if exp.Status, err = domain.ParseStatus(status); err != nil {
		return nil, err
	}
	exp.Description = util.NullStringToPtr(description)
	exp.Hypothesis = util.NullStringToPtr(hypothesis)
	exp.StopReason = util.NullStringToPtr(stopReason)
	exp.CreatedAt = util.ParseTime(createdAt)
	exp.ActualStartDate = util.NullTimeToPtr(actualStartDate)
	exp.ActualEndDate = util.NullTimeToPtr(actualEndDate)
	return &exp, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

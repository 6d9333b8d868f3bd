package turso

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/infrastructure/database"
)

const defaultPageSize = 500

type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Append(ctx context.Context, e *domain.Event) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}

	props := e.Properties
	if props == nil {
		props = map[string]string{}
	}
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return false, fmt.Errorf("failed to encode event properties: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `INSERT INTO events
		(experiment_id, entity_id, event_type, properties, timestamp_ns)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (experiment_id, entity_id, event_type, timestamp_ns) DO NOTHING`,
		e.ExperimentID, e.EntityID, e.EventType, string(propsJSON), e.Timestamp.UTC().UnixNano())
	if err != nil {
		return false, fmt.Errorf("failed to append event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	if seq, err := res.LastInsertId(); err == nil {
		e.Seq = seq
	}
	return true, nil
}

func (r *EventRepository) Page(ctx context.Context, q domain.EventQuery, afterSeq int64, limit int) (domain.EventPage, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	query, args := buildPageQuery(q, afterSeq, limit)
	return database.WithRetry(ctx, readRetries, func() (domain.EventPage, error) {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return domain.EventPage{}, fmt.Errorf("failed to query events: %w", err)
		}
		defer rows.Close()

		page := domain.EventPage{NextSeq: afterSeq}
		for rows.Next() {
			var (
				e         domain.Event
				propsJSON string
				tsNanos   int64
			)
			if err := rows.Scan(&e.Seq, &e.ExperimentID, &e.EntityID, &e.EventType, &propsJSON, &tsNanos); err != nil {
				return domain.EventPage{}, fmt.Errorf("failed to scan event: %w", err)
			}
			if err := json.Unmarshal([]byte(propsJSON), &e.Properties); err != nil {
				return domain.EventPage{}, fmt.Errorf("failed to decode event properties: %w", err)
			}
			e.Timestamp = time.Unix(0, tsNanos).UTC()
			page.Events = append(page.Events, &e)
			page.NextSeq = e.Seq
		}
		if err := rows.Err(); err != nil {
			return domain.EventPage{}, fmt.Errorf("failed to query events: %w", err)
		}
		page.Done = len(page.Events) < limit
		return page, nil
	})
}

func buildPageQuery(q domain.EventQuery, afterSeq int64, limit int) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT seq, experiment_id, entity_id, event_type, properties, timestamp_ns
		FROM events WHERE experiment_id = ? AND seq > ?`)
	args := []any{q.ExperimentID, afterSeq}

	if len(q.EventTypes) > 0 {
		b.WriteString(` AND event_type IN (?` + strings.Repeat(", ?", len(q.EventTypes)-1) + `)`)
		for _, t := range q.EventTypes {
			args = append(args, t)
		}
	}
	if !q.From.IsZero() {
		b.WriteString(` AND timestamp_ns >= ?`)
		args = append(args, q.From.UTC().UnixNano())
	}
	if !q.To.IsZero() {
		b.WriteString(` AND timestamp_ns < ?`)
		args = append(args, q.To.UTC().UnixNano())
	}
	b.WriteString(` ORDER BY seq LIMIT ?`)
	args = append(args, limit)
	return b.String(), args
}

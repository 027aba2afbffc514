package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/capstan/internal/scheduling/domain"
	sharedDomain "github.com/felixgeelhaar/capstan/internal/shared/domain"
	sharedPersistence "github.com/felixgeelhaar/capstan/internal/shared/infrastructure/persistence"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSchedulingStore implements domain.SchedulingStore using PostgreSQL.
type PostgresSchedulingStore struct {
	pool *pgxpool.Pool
}

// NewPostgresSchedulingStore creates a new PostgreSQL scheduling store.
func NewPostgresSchedulingStore(pool *pgxpool.Pool) *PostgresSchedulingStore {
	return &PostgresSchedulingStore{pool: pool}
}

const pgEventColumns = `id, agent_id, start_time, end_time, presenters, media_package,
	source, status, recording_started, created_at, updated_at`

// GetEvent retrieves a committed event by id.
func (s *PostgresSchedulingStore) GetEvent(ctx context.Context, id string) (*domain.ScheduledEvent, error) {
	execer := sharedPersistence.Executor(ctx, s.pool)
	row := execer.QueryRow(ctx,
		`SELECT `+pgEventColumns+` FROM scheduled_events WHERE id = $1`, id)

	event, err := scanPgEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, sharedDomain.ErrNotFound)
	}
	return event, err
}

// ListEventsForAgent retrieves all committed events on a capture agent,
// ordered by start time.
func (s *PostgresSchedulingStore) ListEventsForAgent(ctx context.Context, agentID string) ([]*domain.ScheduledEvent, error) {
	execer := sharedPersistence.Executor(ctx, s.pool)
	rows, err := execer.Query(ctx,
		`SELECT `+pgEventColumns+` FROM scheduled_events WHERE agent_id = $1 ORDER BY start_time, id`,
		agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.ScheduledEvent
	for rows.Next() {
		event, err := scanPgEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// PersistEvents stores the given events as committed entries.
func (s *PostgresSchedulingStore) PersistEvents(ctx context.Context, events []*domain.ScheduledEvent) error {
	execer := sharedPersistence.Executor(ctx, s.pool)
	for _, event := range events {
		_, err := execer.Exec(ctx, `
			INSERT INTO scheduled_events (`+pgEventColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			event.ID(),
			event.AgentID(),
			event.Period().Start(),
			event.Period().End(),
			event.Presenters(),
			event.MediaPackage(),
			event.Source(),
			event.Status(),
			event.RecordingStarted(),
			event.CreatedAt(),
			event.UpdatedAt(),
		)
		if err != nil {
			return fmt.Errorf("persist event %s: %w", event.ID(), err)
		}
	}
	return nil
}

// UpdateEvent applies a partial update to a committed event.
func (s *PostgresSchedulingStore) UpdateEvent(ctx context.Context, id string, changes domain.EventChanges) error {
	if changes.IsEmpty() {
		return nil
	}

	event, err := s.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	if err := event.Apply(changes); err != nil {
		return err
	}

	execer := sharedPersistence.Executor(ctx, s.pool)
	_, err = execer.Exec(ctx, `
		UPDATE scheduled_events
		SET agent_id = $1, start_time = $2, end_time = $3, presenters = $4,
		    media_package = $5, status = $6, updated_at = $7
		WHERE id = $8`,
		event.AgentID(),
		event.Period().Start(),
		event.Period().End(),
		event.Presenters(),
		event.MediaPackage(),
		event.Status(),
		event.UpdatedAt(),
		id,
	)
	return err
}

// RemoveEvent deletes a committed event.
func (s *PostgresSchedulingStore) RemoveEvent(ctx context.Context, id string) error {
	execer := sharedPersistence.Executor(ctx, s.pool)
	tag, err := execer.Exec(ctx, `DELETE FROM scheduled_events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event %s: %w", id, sharedDomain.ErrNotFound)
	}
	return nil
}

func scanPgEvent(row pgx.Row) (*domain.ScheduledEvent, error) {
	var (
		id, agentID, mediaPackage string
		presenters                []string
		start, end                time.Time
		createdAt, updatedAt      time.Time
		source, status            *string
		recordingStarted          bool
	)
	err := row.Scan(&id, &agentID, &start, &end, &presenters, &mediaPackage,
		&source, &status, &recordingStarted, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	period, err := domain.NewPeriod(start, end)
	if err != nil {
		return nil, err
	}

	return domain.RehydrateScheduledEvent(id, agentID, period, presenters,
		mediaPackage, deref(source), deref(status), recordingStarted,
		createdAt, updatedAt), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/capstan/internal/scheduling/domain"
	sharedDomain "github.com/felixgeelhaar/capstan/internal/shared/domain"
	sharedPersistence "github.com/felixgeelhaar/capstan/internal/shared/infrastructure/persistence"
)

const timeLayout = time.RFC3339

// SQLiteSchedulingStore implements domain.SchedulingStore using SQLite.
type SQLiteSchedulingStore struct {
	dbConn *sql.DB
}

// NewSQLiteSchedulingStore creates a new SQLite scheduling store.
func NewSQLiteSchedulingStore(dbConn *sql.DB) *SQLiteSchedulingStore {
	return &SQLiteSchedulingStore{dbConn: dbConn}
}

const eventColumns = `id, agent_id, start_time, end_time, presenters, media_package,
	source, status, recording_started, created_at, updated_at`

// GetEvent retrieves a committed event by id.
func (s *SQLiteSchedulingStore) GetEvent(ctx context.Context, id string) (*domain.ScheduledEvent, error) {
	querier := sharedPersistence.QuerierFromContext(ctx, s.dbConn)
	row := querier.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM scheduled_events WHERE id = ?`, id)

	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, sharedDomain.ErrNotFound)
	}
	return event, err
}

// ListEventsForAgent retrieves all committed events on a capture agent,
// ordered by start time.
func (s *SQLiteSchedulingStore) ListEventsForAgent(ctx context.Context, agentID string) ([]*domain.ScheduledEvent, error) {
	querier := sharedPersistence.QuerierFromContext(ctx, s.dbConn)
	rows, err := querier.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM scheduled_events WHERE agent_id = ? ORDER BY start_time, id`,
		agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.ScheduledEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// PersistEvents stores the given events as committed entries.
func (s *SQLiteSchedulingStore) PersistEvents(ctx context.Context, events []*domain.ScheduledEvent) error {
	querier := sharedPersistence.QuerierFromContext(ctx, s.dbConn)
	for _, event := range events {
		if err := insertEvent(ctx, querier, event); err != nil {
			return fmt.Errorf("persist event %s: %w", event.ID(), err)
		}
	}
	return nil
}

// UpdateEvent applies a partial update to a committed event.
func (s *SQLiteSchedulingStore) UpdateEvent(ctx context.Context, id string, changes domain.EventChanges) error {
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

	presenters, err := json.Marshal(event.Presenters())
	if err != nil {
		return err
	}

	querier := sharedPersistence.QuerierFromContext(ctx, s.dbConn)
	_, err = querier.ExecContext(ctx, `
		UPDATE scheduled_events
		SET agent_id = ?, start_time = ?, end_time = ?, presenters = ?,
		    media_package = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		event.AgentID(),
		event.Period().Start().Format(timeLayout),
		event.Period().End().Format(timeLayout),
		string(presenters),
		event.MediaPackage(),
		event.Status(),
		event.UpdatedAt().UTC().Format(timeLayout),
		id,
	)
	return err
}

// RemoveEvent deletes a committed event.
func (s *SQLiteSchedulingStore) RemoveEvent(ctx context.Context, id string) error {
	querier := sharedPersistence.QuerierFromContext(ctx, s.dbConn)
	result, err := querier.ExecContext(ctx, `DELETE FROM scheduled_events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("event %s: %w", id, sharedDomain.ErrNotFound)
	}
	return nil
}

func insertEvent(ctx context.Context, querier sharedPersistence.Querier, event *domain.ScheduledEvent) error {
	presenters, err := json.Marshal(event.Presenters())
	if err != nil {
		return err
	}

	_, err = querier.ExecContext(ctx, `
		INSERT INTO scheduled_events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID(),
		event.AgentID(),
		event.Period().Start().Format(timeLayout),
		event.Period().End().Format(timeLayout),
		string(presenters),
		event.MediaPackage(),
		event.Source(),
		event.Status(),
		boolToInt(event.RecordingStarted()),
		event.CreatedAt().UTC().Format(timeLayout),
		event.UpdatedAt().UTC().Format(timeLayout),
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.ScheduledEvent, error) {
	var (
		id, agentID, presentersJSON, mediaPackage string
		startStr, endStr, createdStr, updatedStr  string
		source, status                            sql.NullString
		recordingStarted                          int
	)
	err := row.Scan(&id, &agentID, &startStr, &endStr, &presentersJSON, &mediaPackage,
		&source, &status, &recordingStarted, &createdStr, &updatedStr)
	if err != nil {
		return nil, err
	}

	start, err := time.Parse(timeLayout, startStr)
	if err != nil {
		return nil, fmt.Errorf("parse start_time: %w", err)
	}
	end, err := time.Parse(timeLayout, endStr)
	if err != nil {
		return nil, fmt.Errorf("parse end_time: %w", err)
	}
	createdAt, err := time.Parse(timeLayout, createdStr)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	updatedAt, err := time.Parse(timeLayout, updatedStr)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	period, err := domain.NewPeriod(start, end)
	if err != nil {
		return nil, err
	}

	var presenters []string
	if err := json.Unmarshal([]byte(presentersJSON), &presenters); err != nil {
		return nil, fmt.Errorf("parse presenters: %w", err)
	}

	return domain.RehydrateScheduledEvent(id, agentID, period, presenters,
		mediaPackage, source.String, status.String, recordingStarted != 0,
		createdAt, updatedAt), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

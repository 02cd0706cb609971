package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aperturelab/proofing/cmd/proofing/models"
	"github.com/aperturelab/proofing/common/db"
	"github.com/google/uuid"
)

// HistoryRepository persists the append-only collection log.
// Rows are keyed by (collection, second) so two events can never
// share a timestamp within one collection.
type HistoryRepository struct {
	db *db.DB
}

func NewHistoryRepository(database *db.DB) *HistoryRepository {
	return &HistoryRepository{db: database}
}

// Insert appends one event. The caller resolves timestamp collisions first.
func (r *HistoryRepository) Insert(ctx context.Context, e *models.HistoryEvent) error {
	query := `
		INSERT INTO collection_history (collection_id, event_time, event, data, meta)
		VALUES ($1, $2, $3, $4, $5::jsonb)`

	meta, err := json.Marshal(emptyList(e.Meta))
	if err != nil {
		return fmt.Errorf("failed to encode history meta: %w", err)
	}

	_, err = r.db.Exec(ctx, query, e.CollectionID, e.Time, e.Event, e.Data, meta)
	if err != nil {
		return fmt.Errorf("failed to insert history event: %w", err)
	}

	return nil
}

// HasTime reports whether an event already occupies the given second
func (r *HistoryRepository) HasTime(ctx context.Context, collectionID uuid.UUID, ts int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM collection_history WHERE collection_id = $1 AND event_time = $2)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, collectionID, ts).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check history slot: %w", err)
	}

	return exists, nil
}

// List retrieves a collection's log, newest first
func (r *HistoryRepository) List(ctx context.Context, collectionID uuid.UUID) ([]*models.HistoryEvent, error) {
	query := `
		SELECT collection_id, event_time, event, data, meta
		FROM collection_history
		WHERE collection_id = $1
		ORDER BY event_time DESC`

	rows, err := r.db.Query(ctx, query, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var events []*models.HistoryEvent
	for rows.Next() {
		var (
			e    models.HistoryEvent
			meta []byte
		)
		if err := rows.Scan(&e.CollectionID, &e.Time, &e.Event, &e.Data, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan history event: %w", err)
		}
		if err := json.Unmarshal(meta, &e.Meta); err != nil {
			return nil, fmt.Errorf("failed to decode history meta: %w", err)
		}
		events = append(events, &e)
	}

	return events, rows.Err()
}

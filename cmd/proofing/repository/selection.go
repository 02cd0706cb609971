package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aperturelab/proofing/cmd/proofing/models"
	"github.com/aperturelab/proofing/common/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SelectionRepository persists per-client selections
type SelectionRepository struct {
	db *db.DB
}

func NewSelectionRepository(database *db.DB) *SelectionRepository {
	return &SelectionRepository{db: database}
}

// Put upserts a client's selection snapshot
func (r *SelectionRepository) Put(ctx context.Context, s *models.Selection) error {
	query := `
		INSERT INTO client_selection (collection_id, ident, selected, markers, stars, approval_fields, saved_at)
		VALUES ($1, $2, $3::jsonb, $4::jsonb, $5::jsonb, $6::jsonb, $7)
		ON CONFLICT (collection_id, ident) DO UPDATE
		SET selected = EXCLUDED.selected,
		    markers = EXCLUDED.markers,
		    stars = EXCLUDED.stars,
		    approval_fields = EXCLUDED.approval_fields,
		    saved_at = EXCLUDED.saved_at`

	selected, err := json.Marshal(emptyList(s.Selected))
	if err != nil {
		return fmt.Errorf("failed to encode selection: %w", err)
	}
	markers, err := json.Marshal(s.Markers)
	if err != nil {
		return fmt.Errorf("failed to encode markers: %w", err)
	}
	stars, err := json.Marshal(s.Stars)
	if err != nil {
		return fmt.Errorf("failed to encode stars: %w", err)
	}
	fields, err := json.Marshal(s.ApprovalFields)
	if err != nil {
		return fmt.Errorf("failed to encode approval fields: %w", err)
	}

	_, err = r.db.Exec(ctx, query, s.CollectionID, s.Ident, selected, markers, stars, fields, s.Time)
	if err != nil {
		return fmt.Errorf("failed to put selection: %w", err)
	}

	return nil
}

// Get retrieves a client's selection
func (r *SelectionRepository) Get(ctx context.Context, collectionID uuid.UUID, ident string) (*models.Selection, error) {
	query := `
		SELECT collection_id, ident, selected, markers, stars, approval_fields, saved_at
		FROM client_selection
		WHERE collection_id = $1 AND ident = $2`

	s, err := scanSelection(r.db.QueryRow(ctx, query, collectionID, ident))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get selection: %w", err)
	}

	return s, nil
}

// List retrieves every saved selection of a collection
func (r *SelectionRepository) List(ctx context.Context, collectionID uuid.UUID) ([]*models.Selection, error) {
	query := `
		SELECT collection_id, ident, selected, markers, stars, approval_fields, saved_at
		FROM client_selection
		WHERE collection_id = $1
		ORDER BY ident ASC`

	rows, err := r.db.Query(ctx, query, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list selections: %w", err)
	}
	defer rows.Close()

	var selections []*models.Selection
	for rows.Next() {
		s, err := scanSelection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan selection: %w", err)
		}
		selections = append(selections, s)
	}

	return selections, rows.Err()
}

// Delete removes a client's selection. Missing rows are not an error.
func (r *SelectionRepository) Delete(ctx context.Context, collectionID uuid.UUID, ident string) error {
	query := `DELETE FROM client_selection WHERE collection_id = $1 AND ident = $2`

	if _, err := r.db.Exec(ctx, query, collectionID, ident); err != nil {
		return fmt.Errorf("failed to delete selection: %w", err)
	}

	return nil
}

func scanSelection(row pgx.Row) (*models.Selection, error) {
	var (
		s        models.Selection
		selected []byte
		markers  []byte
		stars    []byte
		fields   []byte
	)

	err := row.Scan(&s.CollectionID, &s.Ident, &selected, &markers, &stars, &fields, &s.Time)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(selected, &s.Selected); err != nil {
		return nil, fmt.Errorf("failed to decode selection: %w", err)
	}
	if err := json.Unmarshal(markers, &s.Markers); err != nil {
		return nil, fmt.Errorf("failed to decode markers: %w", err)
	}
	if err := json.Unmarshal(stars, &s.Stars); err != nil {
		return nil, fmt.Errorf("failed to decode stars: %w", err)
	}
	if err := json.Unmarshal(fields, &s.ApprovalFields); err != nil {
		return nil, fmt.Errorf("failed to decode approval fields: %w", err)
	}

	return &s, nil
}

func emptyList(l []string) []string {
	if l == nil {
		return []string{}
	}
	return l
}

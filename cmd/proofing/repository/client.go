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

// ClientRepository persists the per-collection client registry
type ClientRepository struct {
	db *db.DB
}

func NewClientRepository(database *db.DB) *ClientRepository {
	return &ClientRepository{db: database}
}

// Put upserts a client keyed by (collection, ident)
func (r *ClientRepository) Put(ctx context.Context, c *models.Client) error {
	query := `
		INSERT INTO collection_client (collection_id, ident, name, email, status, status_time, extra)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
		ON CONFLICT (collection_id, ident) DO UPDATE
		SET name = EXCLUDED.name,
		    email = EXCLUDED.email,
		    status = EXCLUDED.status,
		    status_time = EXCLUDED.status_time,
		    extra = EXCLUDED.extra`

	extra, err := json.Marshal(emptyMap(c.Extra))
	if err != nil {
		return fmt.Errorf("failed to encode client extra: %w", err)
	}

	_, err = r.db.Exec(ctx, query, c.CollectionID, c.Ident, c.Name, c.Email, string(c.Status), c.Time, extra)
	if err != nil {
		return fmt.Errorf("failed to put client: %w", err)
	}

	return nil
}

// Get retrieves a client by ident
func (r *ClientRepository) Get(ctx context.Context, collectionID uuid.UUID, ident string) (*models.Client, error) {
	query := `
		SELECT collection_id, ident, name, email, status, status_time, extra
		FROM collection_client
		WHERE collection_id = $1 AND ident = $2`

	c, err := scanClient(r.db.QueryRow(ctx, query, collectionID, ident))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	return c, nil
}

// List retrieves all clients of a collection in registration order
func (r *ClientRepository) List(ctx context.Context, collectionID uuid.UUID) ([]*models.Client, error) {
	query := `
		SELECT collection_id, ident, name, email, status, status_time, extra
		FROM collection_client
		WHERE collection_id = $1
		ORDER BY status_time ASC, ident ASC`

	rows, err := r.db.Query(ctx, query, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}

	return clients, rows.Err()
}

// UpdateStatus moves a client to a new status and records when
func (r *ClientRepository) UpdateStatus(ctx context.Context, collectionID uuid.UUID, ident string, status models.ClientStatus) error {
	query := `
		UPDATE collection_client
		SET status = $3, status_time = NOW()
		WHERE collection_id = $1 AND ident = $2`

	tag, err := r.db.Exec(ctx, query, collectionID, ident, string(status))
	if err != nil {
		return fmt.Errorf("failed to update client status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// Remove deletes a client from the registry
func (r *ClientRepository) Remove(ctx context.Context, collectionID uuid.UUID, ident string) error {
	query := `DELETE FROM collection_client WHERE collection_id = $1 AND ident = $2`

	tag, err := r.db.Exec(ctx, query, collectionID, ident)
	if err != nil {
		return fmt.Errorf("failed to remove client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func scanClient(row pgx.Row) (*models.Client, error) {
	var (
		c      models.Client
		status string
		extra  []byte
	)

	err := row.Scan(&c.CollectionID, &c.Ident, &c.Name, &c.Email, &status, &c.Time, &extra)
	if err != nil {
		return nil, err
	}

	c.Status = models.ClientStatus(status)
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &c.Extra); err != nil {
			return nil, fmt.Errorf("failed to decode client extra: %w", err)
		}
	}

	return &c, nil
}

func emptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

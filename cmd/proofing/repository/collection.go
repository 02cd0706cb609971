package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aperturelab/proofing/cmd/proofing/models"
	"github.com/aperturelab/proofing/common/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CollectionRepository persists proofing collections
type CollectionRepository struct {
	db *db.DB
}

func NewCollectionRepository(database *db.DB) *CollectionRepository {
	return &CollectionRepository{db: database}
}

// Create inserts a new collection
func (r *CollectionRepository) Create(ctx context.Context, c *models.Collection) error {
	query := `
		INSERT INTO collection (id, title, status, item_ids, delivery_item_ids, delivery_option, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at`

	var expires *time.Time
	if !c.ExpiresAt.IsZero() {
		expires = &c.ExpiresAt
	}

	err := r.db.QueryRow(ctx, query,
		c.ID,
		c.Title,
		string(c.Status),
		strings.Join(c.ItemIDs, ","),
		strings.Join(c.DeliveryItemIDs, ","),
		string(c.DeliveryOption),
		expires,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

// Get retrieves a collection by ID
func (r *CollectionRepository) Get(ctx context.Context, id uuid.UUID) (*models.Collection, error) {
	query := `
		SELECT id, title, status, item_ids, delivery_item_ids, delivery_option, expires_at, created_at, updated_at
		FROM collection
		WHERE id = $1`

	c, err := scanCollection(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}

	return c, nil
}

// List retrieves collections, optionally filtered by status
func (r *CollectionRepository) List(ctx context.Context, status models.CollectionStatus) ([]*models.Collection, error) {
	query := `
		SELECT id, title, status, item_ids, delivery_item_ids, delivery_option, expires_at, created_at, updated_at
		FROM collection`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var collections []*models.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, c)
	}

	return collections, rows.Err()
}

// ListExpired retrieves sent collections whose expiration has passed
func (r *CollectionRepository) ListExpired(ctx context.Context, now time.Time) ([]*models.Collection, error) {
	query := `
		SELECT id, title, status, item_ids, delivery_item_ids, delivery_option, expires_at, created_at, updated_at
		FROM collection
		WHERE status = $1 AND expires_at IS NOT NULL AND expires_at < $2
		ORDER BY expires_at ASC`

	rows, err := r.db.Query(ctx, query, string(models.StatusSent), now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired collections: %w", err)
	}
	defer rows.Close()

	var collections []*models.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, c)
	}

	return collections, rows.Err()
}

// Update persists title, items, delivery settings and expiration
func (r *CollectionRepository) Update(ctx context.Context, c *models.Collection) error {
	query := `
		UPDATE collection
		SET title = $2, item_ids = $3, delivery_item_ids = $4, delivery_option = $5, expires_at = $6, updated_at = NOW()
		WHERE id = $1`

	var expires *time.Time
	if !c.ExpiresAt.IsZero() {
		expires = &c.ExpiresAt
	}

	tag, err := r.db.Exec(ctx, query,
		c.ID,
		c.Title,
		strings.Join(c.ItemIDs, ","),
		strings.Join(c.DeliveryItemIDs, ","),
		string(c.DeliveryOption),
		expires,
	)
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// UpdateStatus transitions a collection to a new status
func (r *CollectionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.CollectionStatus) error {
	query := `UPDATE collection SET status = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update collection status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// Touch bumps the collection's updated-at to the given time
func (r *CollectionRepository) Touch(ctx context.Context, id uuid.UUID, t time.Time) error {
	query := `UPDATE collection SET updated_at = $2 WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, id, t); err != nil {
		return fmt.Errorf("failed to touch collection: %w", err)
	}

	return nil
}

// Delete removes a collection. Clients, selections and history cascade.
func (r *CollectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM collection WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func scanCollection(row pgx.Row) (*models.Collection, error) {
	var (
		c        models.Collection
		status   string
		items    string
		delivery string
		option   string
		expires  *time.Time
	)

	err := row.Scan(&c.ID, &c.Title, &status, &items, &delivery, &option, &expires, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.Status = models.CollectionStatus(status)
	c.DeliveryOption = models.DeliveryOption(option)
	c.ItemIDs = splitItemIDs(items)
	c.DeliveryItemIDs = splitItemIDs(delivery)
	if expires != nil {
		c.ExpiresAt = *expires
	}

	return &c, nil
}

func splitItemIDs(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}

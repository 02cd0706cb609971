package service

import (
	"context"
	"time"

	"github.com/aperturelab/proofing/cmd/proofing/models"
	"github.com/google/uuid"
)

// Storage interfaces consumed by the services. The pgx repositories
// satisfy these; tests substitute in-memory fakes.

type CollectionStore interface {
	Create(ctx context.Context, c *models.Collection) error
	Get(ctx context.Context, id uuid.UUID) (*models.Collection, error)
	List(ctx context.Context, status models.CollectionStatus) ([]*models.Collection, error)
	ListExpired(ctx context.Context, now time.Time) ([]*models.Collection, error)
	Update(ctx context.Context, c *models.Collection) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.CollectionStatus) error
	Touch(ctx context.Context, id uuid.UUID, t time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type ClientStore interface {
	Put(ctx context.Context, c *models.Client) error
	Get(ctx context.Context, collectionID uuid.UUID, ident string) (*models.Client, error)
	List(ctx context.Context, collectionID uuid.UUID) ([]*models.Client, error)
	UpdateStatus(ctx context.Context, collectionID uuid.UUID, ident string, status models.ClientStatus) error
	Remove(ctx context.Context, collectionID uuid.UUID, ident string) error
}

type SelectionStore interface {
	Put(ctx context.Context, s *models.Selection) error
	Get(ctx context.Context, collectionID uuid.UUID, ident string) (*models.Selection, error)
	List(ctx context.Context, collectionID uuid.UUID) ([]*models.Selection, error)
	Delete(ctx context.Context, collectionID uuid.UUID, ident string) error
}

type HistoryStore interface {
	Insert(ctx context.Context, e *models.HistoryEvent) error
	HasTime(ctx context.Context, collectionID uuid.UUID, ts int64) (bool, error)
	List(ctx context.Context, collectionID uuid.UUID) ([]*models.HistoryEvent, error)
}

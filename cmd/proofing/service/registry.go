package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aperturelab/proofing/cmd/proofing/models"
	"github.com/aperturelab/proofing/common/logger"
	"github.com/google/uuid"
)

// RegistryService manages the per-collection client registry
type RegistryService struct {
	collections CollectionStore
	clients     ClientStore
	selections  SelectionStore
	history     *HistoryService
	log         *logger.Logger
	now         func() time.Time
}

func NewRegistryService(collections CollectionStore, clients ClientStore, selections SelectionStore, history *HistoryService, log *logger.Logger) *RegistryService {
	return &RegistryService{
		collections: collections,
		clients:     clients,
		selections:  selections,
		history:     history,
		log:         log,
		now:         time.Now,
	}
}

// AddClient registers a recipient and hands back their access token.
// A client with neither name nor email is rejected. When the email is
// already registered the existing record is updated in place and keeps
// its token.
func (s *RegistryService) AddClient(ctx context.Context, collectionID uuid.UUID, name, email string, extra map[string]string) (*models.Client, error) {
	name = models.SanitizeText(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" && email == "" {
		return nil, models.ErrNoIdentifyingInfo
	}

	collection, err := s.collections.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	existing, err := s.identByEmail(ctx, collectionID, email)
	if err != nil {
		return nil, err
	}

	c := &models.Client{
		CollectionID: collectionID,
		Name:         name,
		Email:        email,
		Status:       models.ClientSent,
		Time:         s.now(),
		Extra:        extra,
	}
	if existing != nil {
		c.Ident = existing.Ident
		c.Status = existing.Status
	} else {
		c.Ident = models.NewIdent()
	}

	if err := s.clients.Put(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to register client: %w", err)
	}

	if existing == nil {
		// Joining a collection that already went out means this client
		// got their link after the fact
		event := models.EventNewClientRegistered
		if collection.Status == models.StatusSent {
			event = models.EventSentToNewClient
		}
		if _, err := s.history.Append(ctx, collectionID, event,
			models.CombineNameEmail(name, email), nil); err != nil {
			s.log.WarnContext(ctx, "failed to record client registration",
				"collection_id", collectionID, "error", err)
		}
	}

	return c, nil
}

// RemoveClient drops a recipient and purges their selection so shared
// views no longer count their choices
func (s *RegistryService) RemoveClient(ctx context.Context, collectionID uuid.UUID, ident string) error {
	c, err := s.clients.Get(ctx, collectionID, ident)
	if err != nil {
		return err
	}

	if err := s.clients.Remove(ctx, collectionID, ident); err != nil {
		return fmt.Errorf("failed to remove client: %w", err)
	}
	if err := s.selections.Delete(ctx, collectionID, ident); err != nil {
		return fmt.Errorf("failed to purge removed client's selection: %w", err)
	}

	if _, err := s.history.Append(ctx, collectionID, models.EventRemovedClient,
		models.CombineNameEmail(c.Name, c.Email), nil); err != nil {
		s.log.WarnContext(ctx, "failed to record client removal",
			"collection_id", collectionID, "ident", ident, "error", err)
	}

	return nil
}

// Client looks up one recipient by token
func (s *RegistryService) Client(ctx context.Context, collectionID uuid.UUID, ident string) (*models.Client, error) {
	return s.clients.Get(ctx, collectionID, ident)
}

// Clients lists a collection's recipients
func (s *RegistryService) Clients(ctx context.Context, collectionID uuid.UUID) ([]*models.Client, error) {
	return s.clients.List(ctx, collectionID)
}

// IdentByEmail finds the token registered for an email address
func (s *RegistryService) IdentByEmail(ctx context.Context, collectionID uuid.UUID, email string) (string, error) {
	c, err := s.identByEmail(ctx, collectionID, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", models.ErrNotFound
	}
	return c.Ident, nil
}

// MarkApproved flips a recipient to approved
func (s *RegistryService) MarkApproved(ctx context.Context, collectionID uuid.UUID, ident string) error {
	return s.clients.UpdateStatus(ctx, collectionID, ident, models.ClientApproved)
}

func (s *RegistryService) identByEmail(ctx context.Context, collectionID uuid.UUID, email string) (*models.Client, error) {
	if email == "" {
		return nil, nil
	}
	clients, err := s.clients.List(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	for _, c := range clients {
		if c.Email == email {
			return c, nil
		}
	}
	return nil, nil
}

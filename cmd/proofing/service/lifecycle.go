package service

import (
	"context"
	"fmt"
	"time"

	"github.com/aperturelab/proofing/cmd/proofing/models"
	"github.com/aperturelab/proofing/common/config"
	"github.com/aperturelab/proofing/common/logger"
	"github.com/google/uuid"
)

// NoticeChecker reports whether unresolved error notices are pending.
// Publishing is blocked while any exist.
type NoticeChecker interface {
	HasPendingErrors(ctx context.Context) (bool, error)
}

// LifecycleService drives collections through their state machine:
// draft -> sent -> approved | expired | closed-manually, with a
// parallel delivery-draft -> delivered track.
type LifecycleService struct {
	collections CollectionStore
	clients     ClientStore
	history     *HistoryService
	hooks       *Hooks
	notices     NoticeChecker
	cfg         config.ProofingConfig
	log         *logger.Logger
	now         func() time.Time
}

func NewLifecycleService(
	collections CollectionStore,
	clients ClientStore,
	history *HistoryService,
	hooks *Hooks,
	notices NoticeChecker,
	cfg config.ProofingConfig,
	log *logger.Logger,
) *LifecycleService {
	return &LifecycleService{
		collections: collections,
		clients:     clients,
		history:     history,
		hooks:       hooks,
		notices:     notices,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
	}
}

// CreateCollection starts a new draft
func (s *LifecycleService) CreateCollection(ctx context.Context, title string, itemIDs []string) (*models.Collection, error) {
	c := &models.Collection{
		ID:             uuid.New(),
		Title:          models.SanitizeText(title),
		Status:         models.StatusDraft,
		ItemIDs:        models.CanonicalItemIDs(itemIDs),
		DeliveryOption: models.DeliveryUpload,
	}
	if err := s.collections.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Collection fetches one collection
func (s *LifecycleService) Collection(ctx context.Context, id uuid.UUID) (*models.Collection, error) {
	return s.collections.Get(ctx, id)
}

// Collections lists collections, optionally filtered by status
func (s *LifecycleService) Collections(ctx context.Context, status models.CollectionStatus) ([]*models.Collection, error) {
	return s.collections.List(ctx, status)
}

// UpdateItems replaces the collection's item set. The change is logged
// so the proofing view can tell clients the gallery changed underneath
// them; the caller prunes stale selections afterwards.
func (s *LifecycleService) UpdateItems(ctx context.Context, id uuid.UUID, itemIDs []string) (*models.Collection, error) {
	c, err := s.collections.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsClosed() {
		return nil, fmt.Errorf("%w: collection is closed", models.ErrNotAuthorized)
	}

	c.ItemIDs = models.CanonicalItemIDs(itemIDs)
	if err := s.collections.Update(ctx, c); err != nil {
		return nil, err
	}

	if c.Status == models.StatusSent {
		if _, err := s.history.Append(ctx, id, models.EventImagesUpdated, "", nil); err != nil {
			s.log.WarnContext(ctx, "failed to record item update", "collection_id", id, "error", err)
		}
	}

	return c, nil
}

// Publish takes a draft live. Guards: the collection needs a title, at
// least one item, and no unresolved error notices may be pending.
// A delivery draft goes straight to delivered; a proofing draft goes
// to sent and gains an expiration when one is configured. Collections
// without any registered client get a default placeholder client so
// single-recipient links work immediately.
func (s *LifecycleService) Publish(ctx context.Context, id uuid.UUID, expirationDays int) (*models.Collection, error) {
	c, err := s.collections.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch c.Status {
	case models.StatusDraft, models.StatusDeliveryDraft:
	default:
		return nil, fmt.Errorf("%w: only drafts can be published", models.ErrValidationFailed)
	}
	if c.Title == "" {
		return nil, fmt.Errorf("%w: collection needs a title", models.ErrValidationFailed)
	}
	if len(c.ActiveItemIDs()) == 0 {
		return nil, fmt.Errorf("%w: collection has no items", models.ErrValidationFailed)
	}
	if pending, err := s.notices.HasPendingErrors(ctx); err == nil && pending {
		return nil, fmt.Errorf("%w: unresolved delivery errors, resolve them before publishing", models.ErrValidationFailed)
	}

	if c.Status == models.StatusDeliveryDraft {
		return s.publishDelivery(ctx, c)
	}

	if expirationDays < 0 {
		expirationDays = s.cfg.ExpirationDays
	}
	if expirationDays > 0 {
		c.ExpiresAt = expirationTime(s.now(), expirationDays)
		if err := s.collections.Update(ctx, c); err != nil {
			return nil, err
		}
	}

	if err := s.ensureDefaultClient(ctx, c); err != nil {
		return nil, err
	}

	if err := s.collections.UpdateStatus(ctx, id, models.StatusSent); err != nil {
		return nil, err
	}
	c.Status = models.StatusSent

	if _, err := s.history.Append(ctx, id, models.EventPublished, "", nil); err != nil {
		s.log.WarnContext(ctx, "failed to record publish", "collection_id", id, "error", err)
	}

	s.hooks.Broadcast(ctx, HookPublished, HookNotice{Collection: c})
	return c, nil
}

// Close ends proofing manually. Clients who never finalized are marked
// failed, same as on expiry; their selections stay readable for the
// summary.
func (s *LifecycleService) Close(ctx context.Context, id uuid.UUID) error {
	c, err := s.collections.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != models.StatusSent {
		return fmt.Errorf("%w: only sent collections can be closed", models.ErrValidationFailed)
	}

	if err := s.collections.UpdateStatus(ctx, id, models.StatusClosedManually); err != nil {
		return err
	}
	c.Status = models.StatusClosedManually

	if _, err := s.history.Append(ctx, id, models.EventClosedManually, "", nil); err != nil {
		s.log.WarnContext(ctx, "failed to record manual close", "collection_id", id, "error", err)
	}

	if err := s.failPendingClients(ctx, id); err != nil {
		return err
	}

	s.hooks.Broadcast(ctx, HookClosed, HookNotice{Collection: c})
	return nil
}

// Reopen reverts a closed collection to sent and lets every approved
// client edit again
func (s *LifecycleService) Reopen(ctx context.Context, id uuid.UUID) error {
	c, err := s.collections.Get(ctx, id)
	if err != nil {
		return err
	}
	if !c.IsClosed() {
		return fmt.Errorf("%w: collection is not closed", models.ErrValidationFailed)
	}

	if err := s.collections.UpdateStatus(ctx, id, models.StatusSent); err != nil {
		return err
	}
	c.Status = models.StatusSent

	clients, err := s.clients.List(ctx, id)
	if err != nil {
		return err
	}
	for _, client := range clients {
		if client.Status != models.ClientSent {
			if err := s.clients.UpdateStatus(ctx, id, client.Ident, models.ClientSent); err != nil {
				return fmt.Errorf("failed to reopen client %s: %w", client.Ident, err)
			}
		}
	}

	if _, err := s.history.Append(ctx, id, models.EventReopened, "", nil); err != nil {
		s.log.WarnContext(ctx, "failed to record reopen", "collection_id", id, "error", err)
	}

	s.hooks.Broadcast(ctx, HookReopened, HookNotice{Collection: c})
	return nil
}

// ReopenForClient reverts one client to sent so they can change their
// mind. A closed collection goes back to sent alongside.
func (s *LifecycleService) ReopenForClient(ctx context.Context, id uuid.UUID, ident string) error {
	c, err := s.collections.Get(ctx, id)
	if err != nil {
		return err
	}
	client, err := s.clients.Get(ctx, id, ident)
	if err != nil {
		return err
	}

	if c.IsClosed() {
		if err := s.collections.UpdateStatus(ctx, id, models.StatusSent); err != nil {
			return err
		}
		c.Status = models.StatusSent
	}

	if err := s.clients.UpdateStatus(ctx, id, ident, models.ClientSent); err != nil {
		return err
	}

	if _, err := s.history.Append(ctx, id, models.EventReopenedForClient,
		models.CombineNameEmail(client.Name, client.Email), nil); err != nil {
		s.log.WarnContext(ctx, "failed to record client reopen", "collection_id", id, "error", err)
	}

	s.hooks.Broadcast(ctx, HookReopened, HookNotice{Collection: c, Ident: ident})
	return nil
}

// RevertToDraft pulls a sent collection back to draft, dropping its
// expiration. Saved selections survive for when it is published again.
func (s *LifecycleService) RevertToDraft(ctx context.Context, id uuid.UUID) error {
	c, err := s.collections.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != models.StatusSent && c.Status != models.StatusDelivered {
		return fmt.Errorf("%w: only live collections can revert to draft", models.ErrValidationFailed)
	}

	event := models.EventReopenedToDraft
	target := models.StatusDraft
	if c.Status == models.StatusDelivered {
		event = models.EventReopenedToDeliveryDraft
		target = models.StatusDeliveryDraft
	}

	c.ExpiresAt = time.Time{}
	if err := s.collections.Update(ctx, c); err != nil {
		return err
	}
	if err := s.collections.UpdateStatus(ctx, id, target); err != nil {
		return err
	}

	if _, err := s.history.Append(ctx, id, event, "", nil); err != nil {
		s.log.WarnContext(ctx, "failed to record revert to draft", "collection_id", id, "error", err)
	}

	return nil
}

// AllClientsApproved reports whether every registered client approved.
// A collection without clients is never "all approved".
func (s *LifecycleService) AllClientsApproved(ctx context.Context, id uuid.UUID) (bool, error) {
	clients, err := s.clients.List(ctx, id)
	if err != nil {
		return false, err
	}
	if len(clients) == 0 {
		return false, nil
	}
	for _, c := range clients {
		if c.Status != models.ClientApproved {
			return false, nil
		}
	}
	return true, nil
}

// ApproveIfComplete closes the collection as approved once every
// client has approved. Reports whether it closed.
func (s *LifecycleService) ApproveIfComplete(ctx context.Context, id uuid.UUID) (bool, error) {
	c, err := s.collections.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if c.Status != models.StatusSent {
		return false, nil
	}

	complete, err := s.AllClientsApproved(ctx, id)
	if err != nil || !complete {
		return false, err
	}

	if err := s.collections.UpdateStatus(ctx, id, models.StatusApproved); err != nil {
		return false, err
	}
	c.Status = models.StatusApproved

	if _, err := s.history.Append(ctx, id, models.EventApproved, "", nil); err != nil {
		s.log.WarnContext(ctx, "failed to record approval", "collection_id", id, "error", err)
	}

	s.hooks.Broadcast(ctx, HookApproved, HookNotice{Collection: c})
	return true, nil
}

// ExpireSweep closes every sent collection whose expiration has
// passed. One broken collection never stops the rest; the sweep
// reports how many collections it expired.
func (s *LifecycleService) ExpireSweep(ctx context.Context) (int, error) {
	expired, err := s.collections.ListExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to scan for expired collections: %w", err)
	}

	count := 0
	for _, c := range expired {
		if err := s.expireOne(ctx, c); err != nil {
			s.log.ErrorContext(ctx, "failed to expire collection", "collection_id", c.ID, "error", err)
			continue
		}
		count++
	}

	return count, nil
}

// DeleteCollection removes a collection along with its clients,
// selections and history
func (s *LifecycleService) DeleteCollection(ctx context.Context, id uuid.UUID) error {
	return s.collections.Delete(ctx, id)
}

func (s *LifecycleService) expireOne(ctx context.Context, c *models.Collection) error {
	if err := s.collections.UpdateStatus(ctx, c.ID, models.StatusExpired); err != nil {
		return err
	}
	c.Status = models.StatusExpired

	if _, err := s.history.Append(ctx, c.ID, models.EventExpired, "", nil); err != nil {
		s.log.WarnContext(ctx, "failed to record expiration", "collection_id", c.ID, "error", err)
	}

	if err := s.failPendingClients(ctx, c.ID); err != nil {
		return err
	}

	s.hooks.Broadcast(ctx, HookExpired, HookNotice{Collection: c})
	return nil
}

// failPendingClients marks every still-sent client failed. Runs when a
// collection ends without them finalizing, at closing or expiry time.
func (s *LifecycleService) failPendingClients(ctx context.Context, id uuid.UUID) error {
	clients, err := s.clients.List(ctx, id)
	if err != nil {
		return err
	}
	for _, client := range clients {
		if client.Status != models.ClientSent {
			continue
		}
		if err := s.clients.UpdateStatus(ctx, id, client.Ident, models.ClientFailed); err != nil {
			return fmt.Errorf("failed to fail client %s: %w", client.Ident, err)
		}
	}
	return nil
}

func (s *LifecycleService) publishDelivery(ctx context.Context, c *models.Collection) (*models.Collection, error) {
	if err := s.collections.UpdateStatus(ctx, c.ID, models.StatusDelivered); err != nil {
		return nil, err
	}
	c.Status = models.StatusDelivered

	if _, err := s.history.Append(ctx, c.ID, models.EventDeliveryPublished, "", nil); err != nil {
		s.log.WarnContext(ctx, "failed to record delivery publish", "collection_id", c.ID, "error", err)
	}

	s.hooks.Broadcast(ctx, HookDelivered, HookNotice{Collection: c})
	return c, nil
}

func (s *LifecycleService) ensureDefaultClient(ctx context.Context, c *models.Collection) error {
	clients, err := s.clients.List(ctx, c.ID)
	if err != nil {
		return err
	}
	if len(clients) > 0 {
		return nil
	}

	client := &models.Client{
		CollectionID: c.ID,
		Ident:        models.NewIdent(),
		Name:         s.cfg.DefaultClientName,
		Status:       models.ClientSent,
		Time:         s.now(),
	}
	if err := s.clients.Put(ctx, client); err != nil {
		return fmt.Errorf("failed to add default client: %w", err)
	}
	return nil
}

// expirationTime rounds now up to the next 5-minute boundary and adds
// the configured number of days, so expirations land on the sweep grid
func expirationTime(now time.Time, days int) time.Time {
	grid := (now.Unix() + 299) / 300 * 300
	return time.Unix(grid+int64(days)*86400, 0)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aperturelab/proofing/cmd/proofing/models"
	"github.com/aperturelab/proofing/cmd/proofing/notify"
	"github.com/aperturelab/proofing/common/logger"
	"github.com/aperturelab/proofing/common/queue"
	"github.com/google/uuid"
)

// SaveIntent tells Save whether the client is stashing work in
// progress or finalizing their selection
type SaveIntent string

const (
	IntentSave    SaveIntent = "save"
	IntentApprove SaveIntent = "approve"
	IntentOrder   SaveIntent = "order"
)

// IsFinal reports whether the intent closes the client's proofing
func (i SaveIntent) IsFinal() bool {
	return i == IntentApprove || i == IntentOrder
}

// SaveInput is an untrusted selection payload from a client
type SaveInput struct {
	Selected       []string                        `json:"selection"`
	Markers        map[string][]models.Marker      `json:"markers"`
	Stars          map[string]int                  `json:"stars"`
	ApprovalFields map[string]models.ApprovalField `json:"approval_fields"`
	Intent         SaveIntent                      `json:"intent"`
	Message        string                          `json:"message"`
}

// AggregationMode selects how per-client selections combine
type AggregationMode string

const (
	// AtLeastOnce unions every saved selection
	AtLeastOnce AggregationMode = "at_least_once"
	// ByAll intersects the selections of clients who saved at least once
	ByAll AggregationMode = "by_all"
)

// SelectionService handles client selection saves and aggregation
type SelectionService struct {
	collections CollectionStore
	registry    *RegistryService
	selections  SelectionStore
	history     *HistoryService
	lifecycle   *LifecycleService
	hooks       *Hooks
	queue       queue.Queue
	log         *logger.Logger
	now         func() time.Time
}

func NewSelectionService(
	collections CollectionStore,
	registry *RegistryService,
	selections SelectionStore,
	history *HistoryService,
	lifecycle *LifecycleService,
	hooks *Hooks,
	q queue.Queue,
	log *logger.Logger,
) *SelectionService {
	return &SelectionService{
		collections: collections,
		registry:    registry,
		selections:  selections,
		history:     history,
		lifecycle:   lifecycle,
		hooks:       hooks,
		queue:       q,
		log:         log,
		now:         time.Now,
	}
}

// Save validates and persists a client's selection. Finalizing intents
// additionally require a non-empty selection, flip the client to
// approved, log the approval and may close the whole collection once
// every client has approved.
func (s *SelectionService) Save(ctx context.Context, collectionID uuid.UUID, ident string, in SaveInput) (*models.Selection, error) {
	c, err := s.collections.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	switch {
	case c.Status == models.StatusDraft || c.Status == models.StatusDeliveryDraft:
		return nil, fmt.Errorf("%w: collection is a preview, selections are not accepted yet", models.ErrValidationFailed)
	case !c.IsLive():
		return nil, fmt.Errorf("%w: collection is no longer open for proofing", models.ErrNotAuthorized)
	}

	client, err := s.registry.Client(ctx, collectionID, ident)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown client", models.ErrNotAuthorized)
	}
	if !client.CanEdit() {
		return nil, fmt.Errorf("%w: client already finalized their selection", models.ErrNotAuthorized)
	}

	sel := s.sanitize(c, ident, in)

	// Approval-field answers from earlier saves survive a payload that
	// omits them, so a client can finalize from a view that never
	// rendered those inputs.
	prev, err := s.selections.Get(ctx, collectionID, ident)
	if err == nil {
		for key, field := range prev.ApprovalFields {
			if _, ok := sel.ApprovalFields[key]; !ok {
				sel.ApprovalFields[key] = field
			}
		}
	}

	if in.Intent.IsFinal() && !sel.HasSelection() {
		return nil, fmt.Errorf("%w: cannot approve an empty selection", models.ErrValidationFailed)
	}

	if err := s.selections.Put(ctx, sel); err != nil {
		return nil, fmt.Errorf("failed to save selection: %w", err)
	}

	s.hooks.Broadcast(ctx, HookSelectionSaved, HookNotice{Collection: c, Ident: ident})

	if in.Intent.IsFinal() {
		if err := s.finalize(ctx, c, client, models.SanitizeText(in.Message)); err != nil {
			return nil, err
		}
	}

	return sel, nil
}

// Selection returns one client's saved selection
func (s *SelectionService) Selection(ctx context.Context, collectionID uuid.UUID, ident string) (*models.Selection, error) {
	return s.selections.Get(ctx, collectionID, ident)
}

// SelectionCount returns how many items a client has selected.
// A client who never saved counts zero.
func (s *SelectionService) SelectionCount(ctx context.Context, collectionID uuid.UUID, ident string) (int, error) {
	sel, err := s.selections.Get(ctx, collectionID, ident)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return len(sel.Selected), nil
}

// SelectedItems aggregates the collection's saved selections. Clients
// without a non-empty selection are skipped in both modes, so neither a
// fresh recipient nor a stars-only save empties the by_all intersection.
func (s *SelectionService) SelectedItems(ctx context.Context, collectionID uuid.UUID, mode AggregationMode) ([]string, error) {
	c, err := s.collections.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	saved, err := s.selections.List(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, sel := range saved {
		for _, id := range sel.Selected {
			counts[id]++
		}
	}

	need := 1
	if mode == ByAll {
		need = 0
		for _, sel := range saved {
			if len(sel.Selected) > 0 {
				need++
			}
		}
	}

	var out []string
	for _, id := range c.ActiveItemIDs() {
		if counts[id] >= need && counts[id] > 0 {
			out = append(out, id)
		}
	}
	return out, nil
}

// PruneRemovedItems drops references to items no longer in the
// collection from every saved selection. Running it twice is a no-op.
func (s *SelectionService) PruneRemovedItems(ctx context.Context, collectionID uuid.UUID) error {
	c, err := s.collections.Get(ctx, collectionID)
	if err != nil {
		return err
	}

	active := make(map[string]struct{}, len(c.ActiveItemIDs()))
	for _, id := range c.ActiveItemIDs() {
		active[id] = struct{}{}
	}

	saved, err := s.selections.List(ctx, collectionID)
	if err != nil {
		return err
	}

	for _, sel := range saved {
		changed := false

		kept := sel.Selected[:0]
		for _, id := range sel.Selected {
			if _, ok := active[id]; ok {
				kept = append(kept, id)
			} else {
				changed = true
			}
		}
		sel.Selected = kept

		for id := range sel.Markers {
			if _, ok := active[id]; !ok {
				delete(sel.Markers, id)
				changed = true
			}
		}
		for id := range sel.Stars {
			if _, ok := active[id]; !ok {
				delete(sel.Stars, id)
				changed = true
			}
		}

		if !changed {
			continue
		}
		if err := s.selections.Put(ctx, sel); err != nil {
			return fmt.Errorf("failed to prune selection of %s: %w", sel.Ident, err)
		}
	}

	return nil
}

// sanitize coerces an untrusted payload into a storable selection,
// limited to items the collection actually contains
func (s *SelectionService) sanitize(c *models.Collection, ident string, in SaveInput) *models.Selection {
	active := make(map[string]struct{}, len(c.ActiveItemIDs()))
	for _, id := range c.ActiveItemIDs() {
		active[id] = struct{}{}
	}

	sel := &models.Selection{
		CollectionID:   c.ID,
		Ident:          ident,
		Markers:        make(map[string][]models.Marker),
		Stars:          make(map[string]int),
		ApprovalFields: make(map[string]models.ApprovalField),
		Time:           s.now(),
	}

	for _, id := range models.CanonicalItemIDs(in.Selected) {
		if _, ok := active[id]; ok {
			sel.Selected = append(sel.Selected, id)
		}
	}

	for rawID, markers := range in.Markers {
		id := models.CanonicalItemID(rawID)
		if _, ok := active[id]; !ok {
			continue
		}
		for _, m := range markers {
			m.Comment = models.SanitizeText(m.Comment)
			sel.Markers[id] = append(sel.Markers[id], m)
		}
	}

	for rawID, stars := range in.Stars {
		id := models.CanonicalItemID(rawID)
		if _, ok := active[id]; !ok {
			continue
		}
		sel.Stars[id] = models.ClampStars(stars)
	}

	for key, field := range in.ApprovalFields {
		field.Label = models.SanitizeText(field.Label)
		field.Value = models.SanitizeText(field.Value)
		sel.ApprovalFields[key] = field
	}

	return sel
}

// finalize commits a client's approval after their selection is saved
func (s *SelectionService) finalize(ctx context.Context, c *models.Collection, client *models.Client, message string) error {
	if err := s.registry.MarkApproved(ctx, c.ID, client.Ident); err != nil {
		return fmt.Errorf("failed to approve client: %w", err)
	}

	var meta []string
	if message != "" {
		meta = []string{message}
	}
	if _, err := s.history.Append(ctx, c.ID, models.EventApprovedByClient,
		models.CombineNameEmail(client.Name, client.Email), meta); err != nil {
		s.log.WarnContext(ctx, "failed to record client approval",
			"collection_id", c.ID, "ident", client.Ident, "error", err)
	}

	s.hooks.Broadcast(ctx, HookApprovedByClient, HookNotice{Collection: c, Ident: client.Ident})

	complete, err := s.lifecycle.ApproveIfComplete(ctx, c.ID)
	if err != nil {
		return err
	}

	err = notify.PublishApproval(ctx, s.queue, notify.ApprovalNotice{
		CollectionID: c.ID.String(),
		Title:        c.Title,
		Ident:        client.Ident,
		Client:       models.CombineNameEmail(client.Name, client.Email),
		Message:      message,
		Complete:     complete,
	})
	if err != nil {
		s.log.WarnContext(ctx, "failed to enqueue approval notice",
			"collection_id", c.ID, "error", err)
	}

	return nil
}

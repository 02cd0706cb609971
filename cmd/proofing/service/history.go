package service

import (
	"context"
	"fmt"
	"time"

	"github.com/aperturelab/proofing/cmd/proofing/models"
	"github.com/aperturelab/proofing/common/logger"
	"github.com/google/uuid"
)

// HistoryService maintains the append-only per-collection event log
type HistoryService struct {
	history     HistoryStore
	collections CollectionStore
	log         *logger.Logger
	now         func() time.Time
}

func NewHistoryService(history HistoryStore, collections CollectionStore, log *logger.Logger) *HistoryService {
	return &HistoryService{
		history:     history,
		collections: collections,
		log:         log,
		now:         time.Now,
	}
}

// Append records one event. The log key is the current unix second;
// if that second is already taken within the collection the key is
// bumped forward one second at a time until a free slot is found, so
// recorded order always matches insertion order. The collection's
// updated-at is moved to the chosen slot.
func (s *HistoryService) Append(ctx context.Context, collectionID uuid.UUID, event models.EventKind, data string, meta []string) (*models.HistoryEvent, error) {
	ts := s.now().Unix()
	for {
		taken, err := s.history.HasTime(ctx, collectionID, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to find history slot: %w", err)
		}
		if !taken {
			break
		}
		ts++
	}

	e := &models.HistoryEvent{
		CollectionID: collectionID,
		Time:         ts,
		Event:        event,
		Data:         data,
		Meta:         meta,
	}
	if err := s.history.Insert(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to append history event: %w", err)
	}

	if err := s.collections.Touch(ctx, collectionID, time.Unix(ts, 0)); err != nil {
		s.log.WarnContext(ctx, "failed to touch collection after history append",
			"collection_id", collectionID, "error", err)
	}

	return e, nil
}

// Events returns the collection's log, newest first
func (s *HistoryService) Events(ctx context.Context, collectionID uuid.UUID) ([]*models.HistoryEvent, error) {
	return s.history.List(ctx, collectionID)
}

// LastEvent returns the newest log entry. An empty log yields a
// synthetic "last-modified" event carrying the collection's updated-at.
func (s *HistoryService) LastEvent(ctx context.Context, collectionID uuid.UUID) (*models.HistoryEvent, error) {
	events, err := s.history.List(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if len(events) > 0 {
		return events[0], nil
	}

	c, err := s.collections.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	return &models.HistoryEvent{
		CollectionID: collectionID,
		Time:         c.UpdatedAt.Unix(),
		Event:        models.EventLastModified,
	}, nil
}

// TimeOfLast returns the time of the newest occurrence of the given
// event kind, or zero when the kind never happened.
func (s *HistoryService) TimeOfLast(ctx context.Context, collectionID uuid.UUID, event models.EventKind) (time.Time, error) {
	events, err := s.history.List(ctx, collectionID)
	if err != nil {
		return time.Time{}, err
	}
	for _, e := range events {
		if e.Event == event {
			return time.Unix(e.Time, 0), nil
		}
	}
	return time.Time{}, nil
}

// HasBeenClosed reports whether the log records any terminal event
func (s *HistoryService) HasBeenClosed(ctx context.Context, collectionID uuid.UUID) (bool, error) {
	events, err := s.history.List(ctx, collectionID)
	if err != nil {
		return false, err
	}
	for _, e := range events {
		switch e.Event {
		case models.EventApproved, models.EventClosedManually, models.EventExpired:
			return true, nil
		}
	}
	return false, nil
}

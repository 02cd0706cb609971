package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/aperturelab/proofing/cmd/proofing/models"
	"github.com/aperturelab/proofing/cmd/proofing/notify"
	"github.com/aperturelab/proofing/cmd/proofing/service"
	"github.com/aperturelab/proofing/common/logger"
	"github.com/aperturelab/proofing/common/queue"
	redisclient "github.com/aperturelab/proofing/common/redis"
	"github.com/google/uuid"
)

// ReminderMarks remembers which clients were already reminded so a
// client is nudged at most once per collection
type ReminderMarks interface {
	Marked(ctx context.Context, collectionID uuid.UUID, ident string) (bool, error)
	Mark(ctx context.Context, collectionID uuid.UUID, ident string) error
}

// RedisMarks keeps reminder marks in redis. Marks outlive the typical
// collection lifetime and expire on their own.
type RedisMarks struct {
	redis *redisclient.Client
	ttl   time.Duration
}

func NewRedisMarks(r *redisclient.Client, ttl time.Duration) *RedisMarks {
	return &RedisMarks{redis: r, ttl: ttl}
}

func (m *RedisMarks) Marked(ctx context.Context, collectionID uuid.UUID, ident string) (bool, error) {
	return m.redis.Exists(ctx, markKey(collectionID, ident))
}

func (m *RedisMarks) Mark(ctx context.Context, collectionID uuid.UUID, ident string) error {
	return m.redis.SetWithExpiry(ctx, markKey(collectionID, ident), "1", m.ttl)
}

func markKey(collectionID uuid.UUID, ident string) string {
	return fmt.Sprintf("reminder:sent:%s:%s", collectionID, ident)
}

// ReminderSweeper nudges clients who saved a selection but never
// approved it. A client qualifies once their last save is older than
// the threshold; each client is reminded at most once.
type ReminderSweeper struct {
	collections service.CollectionStore
	clients     service.ClientStore
	selections  service.SelectionStore
	marks       ReminderMarks
	queue       queue.Queue
	threshold   time.Duration
	interval    time.Duration
	log         *logger.Logger
	now         func() time.Time
}

// ReminderOption configures a ReminderSweeper
type ReminderOption func(*ReminderSweeper)

// WithReminderInterval overrides how often the scan runs
func WithReminderInterval(d time.Duration) ReminderOption {
	return func(s *ReminderSweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithReminderThreshold overrides how stale a save must be
func WithReminderThreshold(d time.Duration) ReminderOption {
	return func(s *ReminderSweeper) {
		if d > 0 {
			s.threshold = d
		}
	}
}

func NewReminderSweeper(
	collections service.CollectionStore,
	clients service.ClientStore,
	selections service.SelectionStore,
	marks ReminderMarks,
	q queue.Queue,
	log *logger.Logger,
	opts ...ReminderOption,
) *ReminderSweeper {
	s := &ReminderSweeper{
		collections: collections,
		clients:     clients,
		selections:  selections,
		marks:       marks,
		queue:       q,
		threshold:   24 * time.Hour,
		interval:    24 * time.Hour,
		log:         log,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run scans on every tick until ctx is cancelled
func (s *ReminderSweeper) Run(ctx context.Context) {
	s.log.Info("reminder sweeper started", "interval", s.interval, "threshold", s.threshold)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("reminder sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Scan(ctx); err != nil {
				s.log.ErrorContext(ctx, "reminder scan failed", "error", err)
			}
		}
	}
}

// Scan walks every sent collection and enqueues reminders for stale
// unapproved selections. Reports how many reminders it enqueued.
func (s *ReminderSweeper) Scan(ctx context.Context) (int, error) {
	collections, err := s.collections.List(ctx, models.StatusSent)
	if err != nil {
		return 0, fmt.Errorf("failed to list sent collections: %w", err)
	}

	cutoff := s.now().Add(-s.threshold)
	count := 0

	for _, c := range collections {
		n, err := s.scanCollection(ctx, c, cutoff)
		if err != nil {
			s.log.ErrorContext(ctx, "failed to scan collection for reminders",
				"collection_id", c.ID, "error", err)
			continue
		}
		count += n
	}

	return count, nil
}

func (s *ReminderSweeper) scanCollection(ctx context.Context, c *models.Collection, cutoff time.Time) (int, error) {
	clients, err := s.clients.List(ctx, c.ID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, client := range clients {
		if client.Status != models.ClientSent || client.Email == "" {
			continue
		}

		sel, err := s.selections.Get(ctx, c.ID, client.Ident)
		if err != nil {
			// Never saved; nothing to remind about
			continue
		}
		if sel.Time.After(cutoff) {
			continue
		}

		marked, err := s.marks.Marked(ctx, c.ID, client.Ident)
		if err != nil {
			return count, err
		}
		if marked {
			continue
		}

		err = notify.PublishReminder(ctx, s.queue, notify.ReminderNotice{
			CollectionID: c.ID.String(),
			Title:        c.Title,
			Ident:        client.Ident,
			Email:        client.Email,
			Name:         client.Name,
		})
		if err != nil {
			return count, err
		}
		if err := s.marks.Mark(ctx, c.ID, client.Ident); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

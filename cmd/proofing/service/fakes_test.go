package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aperturelab/proofing/cmd/proofing/models"
	"github.com/aperturelab/proofing/common/config"
	"github.com/aperturelab/proofing/common/logger"
	"github.com/aperturelab/proofing/common/queue"
	"github.com/google/uuid"
)

// In-memory store fakes backing the service tests.

type fakeCollections struct {
	mu sync.Mutex
	m  map[uuid.UUID]*models.Collection
}

func newFakeCollections() *fakeCollections {
	return &fakeCollections{m: make(map[uuid.UUID]*models.Collection)}
}

func (f *fakeCollections) Create(ctx context.Context, c *models.Collection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	f.m[c.ID] = &cp
	return nil
}

func (f *fakeCollections) Get(ctx context.Context, id uuid.UUID) (*models.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.m[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCollections) List(ctx context.Context, status models.CollectionStatus) ([]*models.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Collection
	for _, c := range f.m {
		if status != "" && c.Status != status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeCollections) ListExpired(ctx context.Context, now time.Time) ([]*models.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Collection
	for _, c := range f.m {
		if c.Status == models.StatusSent && !c.ExpiresAt.IsZero() && c.ExpiresAt.Before(now) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeCollections) Update(ctx context.Context, c *models.Collection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.m[c.ID]
	if !ok {
		return models.ErrNotFound
	}
	cur.Title = c.Title
	cur.ItemIDs = append([]string(nil), c.ItemIDs...)
	cur.DeliveryItemIDs = append([]string(nil), c.DeliveryItemIDs...)
	cur.DeliveryOption = c.DeliveryOption
	cur.ExpiresAt = c.ExpiresAt
	cur.UpdatedAt = time.Now()
	return nil
}

func (f *fakeCollections) UpdateStatus(ctx context.Context, id uuid.UUID, status models.CollectionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.m[id]
	if !ok {
		return models.ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now()
	return nil
}

func (f *fakeCollections) Touch(ctx context.Context, id uuid.UUID, t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.m[id]
	if !ok {
		return models.ErrNotFound
	}
	c.UpdatedAt = t
	return nil
}

func (f *fakeCollections) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.m[id]; !ok {
		return models.ErrNotFound
	}
	delete(f.m, id)
	return nil
}

type clientKey struct {
	collection uuid.UUID
	ident      string
}

type fakeClients struct {
	mu    sync.Mutex
	m     map[clientKey]*models.Client
	order []clientKey
}

func newFakeClients() *fakeClients {
	return &fakeClients{m: make(map[clientKey]*models.Client)}
}

func (f *fakeClients) Put(ctx context.Context, c *models.Client) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := clientKey{c.CollectionID, c.Ident}
	if _, ok := f.m[k]; !ok {
		f.order = append(f.order, k)
	}
	cp := *c
	f.m[k] = &cp
	return nil
}

func (f *fakeClients) Get(ctx context.Context, collectionID uuid.UUID, ident string) (*models.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.m[clientKey{collectionID, ident}]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeClients) List(ctx context.Context, collectionID uuid.UUID) ([]*models.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Client
	for _, k := range f.order {
		if k.collection != collectionID {
			continue
		}
		if c, ok := f.m[k]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeClients) UpdateStatus(ctx context.Context, collectionID uuid.UUID, ident string, status models.ClientStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.m[clientKey{collectionID, ident}]
	if !ok {
		return models.ErrNotFound
	}
	c.Status = status
	c.Time = time.Now()
	return nil
}

func (f *fakeClients) Remove(ctx context.Context, collectionID uuid.UUID, ident string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := clientKey{collectionID, ident}
	if _, ok := f.m[k]; !ok {
		return models.ErrNotFound
	}
	delete(f.m, k)
	return nil
}

type fakeSelections struct {
	mu sync.Mutex
	m  map[clientKey]*models.Selection
}

func newFakeSelections() *fakeSelections {
	return &fakeSelections{m: make(map[clientKey]*models.Selection)}
}

func (f *fakeSelections) Put(ctx context.Context, s *models.Selection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.m[clientKey{s.CollectionID, s.Ident}] = &cp
	return nil
}

func (f *fakeSelections) Get(ctx context.Context, collectionID uuid.UUID, ident string) (*models.Selection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.m[clientKey{collectionID, ident}]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSelections) List(ctx context.Context, collectionID uuid.UUID) ([]*models.Selection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []clientKey
	for k := range f.m {
		if k.collection == collectionID {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ident < keys[j].ident })
	var out []*models.Selection
	for _, k := range keys {
		cp := *f.m[k]
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeSelections) Delete(ctx context.Context, collectionID uuid.UUID, ident string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.m, clientKey{collectionID, ident})
	return nil
}

type fakeHistory struct {
	mu     sync.Mutex
	events []*models.HistoryEvent
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{}
}

func (f *fakeHistory) Insert(ctx context.Context, e *models.HistoryEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.events {
		if ev.CollectionID == e.CollectionID && ev.Time == e.Time {
			return fmt.Errorf("duplicate history slot %d", e.Time)
		}
	}
	cp := *e
	f.events = append(f.events, &cp)
	return nil
}

func (f *fakeHistory) HasTime(ctx context.Context, collectionID uuid.UUID, ts int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.CollectionID == collectionID && e.Time == ts {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeHistory) List(ctx context.Context, collectionID uuid.UUID) ([]*models.HistoryEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.HistoryEvent
	for _, e := range f.events {
		if e.CollectionID == collectionID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time > out[j].Time })
	return out, nil
}

// fakeQueue records published messages instead of delivering them
type fakeQueue struct {
	mu        sync.Mutex
	published []fakeMessage
}

type fakeMessage struct {
	topic string
	key   string
	value []byte
}

func (q *fakeQueue) Publish(ctx context.Context, topic string, key string, message []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, fakeMessage{topic, key, message})
	return nil
}

func (q *fakeQueue) Subscribe(ctx context.Context, topic string, handler queue.MessageHandler) error {
	return nil
}

func (q *fakeQueue) Close() error { return nil }

func (q *fakeQueue) byTopic(topic string) []fakeMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []fakeMessage
	for _, m := range q.published {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// allowAllNotices never blocks publishing
type allowAllNotices struct{}

func (allowAllNotices) HasPendingErrors(ctx context.Context) (bool, error) { return false, nil }

// blockedNotices simulates a pending delivery error
type blockedNotices struct{}

func (blockedNotices) HasPendingErrors(ctx context.Context) (bool, error) { return true, nil }

func testLogger() *logger.Logger {
	return logger.New("error", "text")
}

// testEnv wires the services over the in-memory fakes with a
// controllable clock
type testEnv struct {
	collections  *fakeCollections
	clients      *fakeClients
	selections   *fakeSelections
	historyStore *fakeHistory
	queue        *fakeQueue
	hooks        *Hooks

	history   *HistoryService
	registry  *RegistryService
	lifecycle *LifecycleService
	selection *SelectionService
	summary   *SummaryService

	mu  sync.Mutex
	now time.Time
}

func newTestEnv() *testEnv {
	env := &testEnv{
		collections:  newFakeCollections(),
		clients:      newFakeClients(),
		selections:   newFakeSelections(),
		historyStore: newFakeHistory(),
		queue:        &fakeQueue{},
		hooks:        NewHooks(),
		now:          time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}

	log := testLogger()
	cfg := config.ProofingConfig{
		ExpirationDays:    30,
		DefaultClientName: "Client",
	}

	env.history = NewHistoryService(env.historyStore, env.collections, log)
	env.history.now = env.clock
	env.registry = NewRegistryService(env.collections, env.clients, env.selections, env.history, log)
	env.registry.now = env.clock
	env.lifecycle = NewLifecycleService(env.collections, env.clients, env.history, env.hooks, allowAllNotices{}, cfg, log)
	env.lifecycle.now = env.clock
	env.selection = NewSelectionService(env.collections, env.registry, env.selections, env.history, env.lifecycle, env.hooks, env.queue, log)
	env.selection.now = env.clock
	env.summary = NewSummaryService(env.collections, env.clients, env.selections, env.history)

	return env
}

func (e *testEnv) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *testEnv) advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = e.now.Add(d)
}

// sentCollection seeds a published collection with the given items and
// one registered client per name, returning the collection and idents
func (e *testEnv) sentCollection(t testingT, items []string, names ...string) (*models.Collection, []string) {
	ctx := context.Background()

	c, err := e.lifecycle.CreateCollection(ctx, "Summer wedding", items)
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	var idents []string
	for _, name := range names {
		client, err := e.registry.AddClient(ctx, c.ID, name, name+"@example.com", nil)
		if err != nil {
			t.Fatalf("AddClient(%s): %v", name, err)
		}
		idents = append(idents, client.Ident)
	}

	c, err = e.lifecycle.Publish(ctx, c.ID, -1)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	return c, idents
}

// testingT is the subset of *testing.T the helpers need
type testingT interface {
	Fatalf(format string, args ...any)
}

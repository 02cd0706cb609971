package service

import (
	"context"
	"errors"
	"testing"

	"github.com/aperturelab/proofing/cmd/proofing/models"
	"github.com/google/uuid"
)

func TestAddClientRequiresNameOrEmail(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	c, err := env.lifecycle.CreateCollection(ctx, "Wedding", []string{"1"})
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	_, err = env.registry.AddClient(ctx, c.ID, "  ", "", nil)
	if !errors.Is(err, models.ErrNoIdentifyingInfo) {
		t.Fatalf("err = %v, want ErrNoIdentifyingInfo", err)
	}

	// Either field alone is enough
	if _, err := env.registry.AddClient(ctx, c.ID, "Jo", "", nil); err != nil {
		t.Errorf("name only: %v", err)
	}
	if _, err := env.registry.AddClient(ctx, c.ID, "", "sam@example.com", nil); err != nil {
		t.Errorf("email only: %v", err)
	}
}

func TestAddClientSameEmailKeepsIdent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	c, err := env.lifecycle.CreateCollection(ctx, "Wedding", []string{"1"})
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	first, err := env.registry.AddClient(ctx, c.ID, "Jo", "jo@example.com", nil)
	if err != nil {
		t.Fatalf("AddClient: %v", err)
	}

	// Re-registering the same address updates in place; the ident, and
	// with it the client's proofing link, stays valid. Email matching
	// ignores case and padding.
	second, err := env.registry.AddClient(ctx, c.ID, "Johanna", " JO@example.com ", nil)
	if err != nil {
		t.Fatalf("AddClient again: %v", err)
	}
	if second.Ident != first.Ident {
		t.Errorf("ident changed: %s then %s", first.Ident, second.Ident)
	}
	if second.Name != "Johanna" {
		t.Errorf("name = %q, want updated name", second.Name)
	}

	clients, err := env.registry.Clients(ctx, c.ID)
	if err != nil {
		t.Fatalf("Clients: %v", err)
	}
	if len(clients) != 1 {
		t.Fatalf("got %d clients, want 1", len(clients))
	}
}

func TestAddClientEventDependsOnCollectionStatus(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	// Registered before publishing: a plain registration
	c, err := env.lifecycle.CreateCollection(ctx, "Wedding", []string{"1"})
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if _, err := env.registry.AddClient(ctx, c.ID, "Jo", "jo@example.com", nil); err != nil {
		t.Fatalf("AddClient: %v", err)
	}
	if _, err := env.lifecycle.Publish(ctx, c.ID, -1); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// Added once the collection is out: the new client gets their link
	// after the fact
	if _, err := env.registry.AddClient(ctx, c.ID, "Sam", "sam@example.com", nil); err != nil {
		t.Fatalf("AddClient after publish: %v", err)
	}

	events, err := env.history.Events(ctx, c.ID)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	counts := make(map[models.EventKind]int)
	for _, e := range events {
		counts[e.Event]++
	}
	if counts[models.EventNewClientRegistered] != 1 {
		t.Errorf("new-client-registered count = %d, want 1", counts[models.EventNewClientRegistered])
	}
	if counts[models.EventSentToNewClient] != 1 {
		t.Errorf("sent-to-new-client count = %d, want 1", counts[models.EventSentToNewClient])
	}
}

func TestAddClientUnknownCollection(t *testing.T) {
	env := newTestEnv()

	_, err := env.registry.AddClient(context.Background(), uuid.New(), "Jo", "", nil)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRemoveClientPurgesSelection(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	c, idents := env.sentCollection(t, []string{"1", "2"}, "Jo", "Sam")

	if _, err := env.selection.Save(ctx, c.ID, idents[0], SaveInput{Selected: []string{"1"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := env.selection.Save(ctx, c.ID, idents[1], SaveInput{Selected: []string{"2"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := env.registry.RemoveClient(ctx, c.ID, idents[0]); err != nil {
		t.Fatalf("RemoveClient: %v", err)
	}

	if _, err := env.registry.Client(ctx, c.ID, idents[0]); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("client lookup err = %v, want ErrNotFound", err)
	}
	if _, err := env.selection.Selection(ctx, c.ID, idents[0]); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("selection lookup err = %v, want ErrNotFound", err)
	}

	// The shared view no longer counts the removed client's choices
	union, err := env.selection.SelectedItems(ctx, c.ID, AtLeastOnce)
	if err != nil {
		t.Fatalf("SelectedItems: %v", err)
	}
	if len(union) != 1 || union[0] != "2" {
		t.Errorf("union = %v, want [2]", union)
	}

	// Removal lands in the log
	events, err := env.history.Events(ctx, c.ID)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	found := false
	for _, e := range events {
		if e.Event == models.EventRemovedClient {
			found = true
		}
	}
	if !found {
		t.Error("no removed-client event recorded")
	}
}

func TestIdentByEmail(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	c, err := env.lifecycle.CreateCollection(ctx, "Wedding", []string{"1"})
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	client, err := env.registry.AddClient(ctx, c.ID, "Jo", "jo@example.com", nil)
	if err != nil {
		t.Fatalf("AddClient: %v", err)
	}

	ident, err := env.registry.IdentByEmail(ctx, c.ID, "Jo@Example.COM")
	if err != nil {
		t.Fatalf("IdentByEmail: %v", err)
	}
	if ident != client.Ident {
		t.Errorf("ident = %s, want %s", ident, client.Ident)
	}

	if _, err := env.registry.IdentByEmail(ctx, c.ID, "nobody@example.com"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestNewIdentShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ident := models.NewIdent()
		if len(ident) != 10 {
			t.Fatalf("ident %q has length %d", ident, len(ident))
		}
		if seen[ident] {
			t.Fatalf("duplicate ident %q", ident)
		}
		seen[ident] = true
	}
}

func TestRemoveClientUnknownCollection(t *testing.T) {
	env := newTestEnv()

	err := env.registry.RemoveClient(context.Background(), uuid.New(), "whatever")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/aperturelab/proofing/cmd/proofing/models"
	"github.com/aperturelab/proofing/cmd/proofing/notify"
)

func TestSaveRejectsUnknownClient(t *testing.T) {
	env := newTestEnv()
	c, _ := env.sentCollection(t, []string{"1", "2"}, "Jo")

	_, err := env.selection.Save(context.Background(), c.ID, "nosuchident", SaveInput{Selected: []string{"1"}})
	if !errors.Is(err, models.ErrNotAuthorized) {
		t.Fatalf("err = %v, want ErrNotAuthorized", err)
	}
}

func TestSaveRejectsDraftCollection(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	c, err := env.lifecycle.CreateCollection(ctx, "Test", []string{"1"})
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	client, err := env.registry.AddClient(ctx, c.ID, "Jo", "", nil)
	if err != nil {
		t.Fatalf("AddClient: %v", err)
	}

	// Drafts are a preview; the closed-collection errors stay
	// not-authorized but this one is the studio's to fix
	_, err = env.selection.Save(ctx, c.ID, client.Ident, SaveInput{Selected: []string{"1"}})
	if !errors.Is(err, models.ErrValidationFailed) {
		t.Fatalf("err = %v, want ErrValidationFailed", err)
	}
}

func TestSaveRejectsClosedCollection(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	c, idents := env.sentCollection(t, []string{"1"}, "Jo", "Sam")

	if err := env.lifecycle.Close(ctx, c.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}

	_, err := env.selection.Save(ctx, c.ID, idents[0], SaveInput{Selected: []string{"1"}})
	if !errors.Is(err, models.ErrNotAuthorized) {
		t.Fatalf("err = %v, want ErrNotAuthorized", err)
	}
}

func TestSaveRejectsApprovedClient(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	c, idents := env.sentCollection(t, []string{"1", "2"}, "Jo", "Sam")

	_, err := env.selection.Save(ctx, c.ID, idents[0], SaveInput{
		Selected: []string{"1"},
		Intent:   IntentApprove,
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}

	_, err = env.selection.Save(ctx, c.ID, idents[0], SaveInput{Selected: []string{"2"}})
	if !errors.Is(err, models.ErrNotAuthorized) {
		t.Fatalf("save after approval: err = %v, want ErrNotAuthorized", err)
	}
}

func TestSaveSanitizesInput(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	c, idents := env.sentCollection(t, []string{"1", "2", "3"}, "Jo")

	sel, err := env.selection.Save(ctx, c.ID, idents[0], SaveInput{
		// "007" canonicalizes to "7" which is not in the collection,
		// "abc" to the dropped "0" sentinel, "2" repeats
		Selected: []string{"2", "007", "abc", "2", "3"},
		Markers: map[string][]models.Marker{
			"2":  {{X: 0.5, Y: 0.25, Comment: "too \x00dark\tplease  brighten"}},
			"99": {{X: 0.1, Y: 0.1, Comment: "gone"}},
		},
		Stars: map[string]int{"3": 11, "2": -4, "99": 5},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if want := []string{"2", "3"}; !reflect.DeepEqual(sel.Selected, want) {
		t.Errorf("Selected = %v, want %v", sel.Selected, want)
	}
	if _, ok := sel.Markers["99"]; ok {
		t.Error("marker on removed item survived")
	}
	if got := sel.Markers["2"][0].Comment; got != "too dark please brighten" {
		t.Errorf("marker comment = %q", got)
	}
	if sel.Stars["3"] != 5 || sel.Stars["2"] != 0 {
		t.Errorf("stars = %v, want clamped to 0..5", sel.Stars)
	}
	if _, ok := sel.Stars["99"]; ok {
		t.Error("stars on removed item survived")
	}
}

func TestSaveCarriesForwardApprovalFields(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	c, idents := env.sentCollection(t, []string{"1", "2"}, "Jo")

	_, err := env.selection.Save(ctx, c.ID, idents[0], SaveInput{
		Selected: []string{"1"},
		ApprovalFields: map[string]models.ApprovalField{
			"phone": {Label: "Phone", Value: "555-0100"},
		},
	})
	if err != nil {
		t.Fatalf("first save: %v", err)
	}

	// Second save omits the field entirely; the stored answer survives
	sel, err := env.selection.Save(ctx, c.ID, idents[0], SaveInput{Selected: []string{"1", "2"}})
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if got := sel.ApprovalFields["phone"].Value; got != "555-0100" {
		t.Errorf("carried field = %q, want 555-0100", got)
	}

	// An explicit new answer wins
	sel, err = env.selection.Save(ctx, c.ID, idents[0], SaveInput{
		Selected: []string{"1"},
		ApprovalFields: map[string]models.ApprovalField{
			"phone": {Label: "Phone", Value: "555-0199"},
		},
	})
	if err != nil {
		t.Fatalf("third save: %v", err)
	}
	if got := sel.ApprovalFields["phone"].Value; got != "555-0199" {
		t.Errorf("updated field = %q, want 555-0199", got)
	}
}

func TestApproveEmptySelectionFails(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	c, idents := env.sentCollection(t, []string{"1", "2"}, "Jo")

	for _, intent := range []SaveIntent{IntentApprove, IntentOrder} {
		_, err := env.selection.Save(ctx, c.ID, idents[0], SaveInput{Intent: intent})
		if !errors.Is(err, models.ErrValidationFailed) {
			t.Errorf("intent %s: err = %v, want ErrValidationFailed", intent, err)
		}
	}

	// The failed attempts must not have flipped the client
	client, err := env.registry.Client(ctx, c.ID, idents[0])
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	if client.Status != models.ClientSent {
		t.Errorf("client status = %s, want sent", client.Status)
	}
}

func TestApproveFlowSingleClient(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	c, idents := env.sentCollection(t, []string{"1", "2"}, "Jo")

	var hookFired bool
	env.hooks.Register(HookApprovedByClient, func(ctx context.Context, n HookNotice) {
		hookFired = true
	})

	_, err := env.selection.Save(ctx, c.ID, idents[0], SaveInput{
		Selected: []string{"1"},
		Intent:   IntentApprove,
		Message:  "Looks \x00great,  thanks!",
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	client, err := env.registry.Client(ctx, c.ID, idents[0])
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	if client.Status != models.ClientApproved {
		t.Errorf("client status = %s, want approved", client.Status)
	}

	// The only client approved, so the collection closes as approved
	got, err := env.lifecycle.Collection(ctx, c.ID)
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	if got.Status != models.StatusApproved {
		t.Errorf("collection status = %s, want approved", got.Status)
	}

	events, err := env.history.Events(ctx, c.ID)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	var byClient *models.HistoryEvent
	for _, e := range events {
		if e.Event == models.EventApprovedByClient {
			byClient = e
		}
	}
	if byClient == nil {
		t.Fatal("no approved-by-client event recorded")
	}
	if byClient.Data != "Jo (jo@example.com)" {
		t.Errorf("event data = %q", byClient.Data)
	}
	if len(byClient.Meta) != 1 || byClient.Meta[0] != "Looks great, thanks!" {
		t.Errorf("event meta = %v", byClient.Meta)
	}

	if !hookFired {
		t.Error("approved-by-client hook never fired")
	}

	notices := env.queue.byTopic(notify.TopicApproval)
	if len(notices) != 1 {
		t.Fatalf("got %d approval notices, want 1", len(notices))
	}
	var n notify.ApprovalNotice
	if err := json.Unmarshal(notices[0].value, &n); err != nil {
		t.Fatalf("decode notice: %v", err)
	}
	if !n.Complete {
		t.Error("notice should report the collection complete")
	}
	if n.Client != "Jo (jo@example.com)" {
		t.Errorf("notice client = %q", n.Client)
	}
}

func TestApproveFlowTwoClients(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	c, idents := env.sentCollection(t, []string{"1", "2", "3"}, "Jo", "Sam")

	if _, err := env.selection.Save(ctx, c.ID, idents[0], SaveInput{
		Selected: []string{"1", "2"},
		Intent:   IntentApprove,
	}); err != nil {
		t.Fatalf("first approve: %v", err)
	}

	// One of two approved; collection stays open
	got, err := env.lifecycle.Collection(ctx, c.ID)
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	if got.Status != models.StatusSent {
		t.Errorf("collection status = %s, want sent", got.Status)
	}

	env.advance(time.Minute)
	if _, err := env.selection.Save(ctx, c.ID, idents[1], SaveInput{
		Selected: []string{"2", "3"},
		Intent:   IntentApprove,
	}); err != nil {
		t.Fatalf("second approve: %v", err)
	}

	got, err = env.lifecycle.Collection(ctx, c.ID)
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	if got.Status != models.StatusApproved {
		t.Errorf("collection status = %s, want approved", got.Status)
	}

	// Union and intersection of {1,2} and {2,3}
	union, err := env.selection.SelectedItems(ctx, c.ID, AtLeastOnce)
	if err != nil {
		t.Fatalf("SelectedItems(at_least_once): %v", err)
	}
	if want := []string{"1", "2", "3"}; !reflect.DeepEqual(union, want) {
		t.Errorf("at_least_once = %v, want %v", union, want)
	}

	byAll, err := env.selection.SelectedItems(ctx, c.ID, ByAll)
	if err != nil {
		t.Fatalf("SelectedItems(by_all): %v", err)
	}
	if want := []string{"2"}; !reflect.DeepEqual(byAll, want) {
		t.Errorf("by_all = %v, want %v", byAll, want)
	}
}

func TestSelectedItemsSkipsClientsWhoNeverSaved(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	c, idents := env.sentCollection(t, []string{"1", "2"}, "Jo", "Sam", "Alex")

	// Only Jo saves; Sam and Alex never touch the gallery
	if _, err := env.selection.Save(ctx, c.ID, idents[0], SaveInput{Selected: []string{"2"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	byAll, err := env.selection.SelectedItems(ctx, c.ID, ByAll)
	if err != nil {
		t.Fatalf("SelectedItems: %v", err)
	}
	if want := []string{"2"}; !reflect.DeepEqual(byAll, want) {
		t.Errorf("by_all = %v, want %v (silent clients are skipped)", byAll, want)
	}
}

func TestSelectedItemsSkipsEmptySavedSelections(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	c, idents := env.sentCollection(t, []string{"1", "2"}, "Jo", "Sam")

	// Jo picks an item; Sam only rates and selects nothing
	if _, err := env.selection.Save(ctx, c.ID, idents[0], SaveInput{Selected: []string{"2"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := env.selection.Save(ctx, c.ID, idents[1], SaveInput{
		Stars: map[string]int{"1": 3},
	}); err != nil {
		t.Fatalf("stars-only save: %v", err)
	}

	byAll, err := env.selection.SelectedItems(ctx, c.ID, ByAll)
	if err != nil {
		t.Fatalf("SelectedItems: %v", err)
	}
	if want := []string{"2"}; !reflect.DeepEqual(byAll, want) {
		t.Errorf("by_all = %v, want %v (empty saved selections are skipped)", byAll, want)
	}
}

func TestSelectedItemsEmptyCollection(t *testing.T) {
	env := newTestEnv()
	c, _ := env.sentCollection(t, []string{"1"}, "Jo")

	for _, mode := range []AggregationMode{AtLeastOnce, ByAll} {
		items, err := env.selection.SelectedItems(context.Background(), c.ID, mode)
		if err != nil {
			t.Fatalf("SelectedItems(%s): %v", mode, err)
		}
		if len(items) != 0 {
			t.Errorf("%s = %v, want empty", mode, items)
		}
	}
}

func TestPruneRemovedItems(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	c, idents := env.sentCollection(t, []string{"1", "2", "3"}, "Jo")

	if _, err := env.selection.Save(ctx, c.ID, idents[0], SaveInput{
		Selected: []string{"1", "3"},
		Markers:  map[string][]models.Marker{"3": {{X: 0.5, Y: 0.5, Comment: "crop"}}},
		Stars:    map[string]int{"3": 4, "1": 2},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Item 3 is pulled from the collection
	if _, err := env.lifecycle.UpdateItems(ctx, c.ID, []string{"1", "2"}); err != nil {
		t.Fatalf("UpdateItems: %v", err)
	}
	if err := env.selection.PruneRemovedItems(ctx, c.ID); err != nil {
		t.Fatalf("PruneRemovedItems: %v", err)
	}

	sel, err := env.selection.Selection(ctx, c.ID, idents[0])
	if err != nil {
		t.Fatalf("Selection: %v", err)
	}
	if want := []string{"1"}; !reflect.DeepEqual(sel.Selected, want) {
		t.Errorf("Selected = %v, want %v", sel.Selected, want)
	}
	if _, ok := sel.Markers["3"]; ok {
		t.Error("markers on removed item survived prune")
	}
	if _, ok := sel.Stars["3"]; ok {
		t.Error("stars on removed item survived prune")
	}
	if sel.Stars["1"] != 2 {
		t.Error("stars on kept item lost")
	}

	// Pruning again changes nothing
	before := *sel
	if err := env.selection.PruneRemovedItems(ctx, c.ID); err != nil {
		t.Fatalf("second prune: %v", err)
	}
	after, err := env.selection.Selection(ctx, c.ID, idents[0])
	if err != nil {
		t.Fatalf("Selection: %v", err)
	}
	if !reflect.DeepEqual(before.Selected, after.Selected) {
		t.Errorf("prune not idempotent: %v then %v", before.Selected, after.Selected)
	}

	// by_all over the pruned state no longer reports the removed item
	byAll, err := env.selection.SelectedItems(ctx, c.ID, ByAll)
	if err != nil {
		t.Fatalf("SelectedItems: %v", err)
	}
	if want := []string{"1"}; !reflect.DeepEqual(byAll, want) {
		t.Errorf("by_all = %v, want %v", byAll, want)
	}
}

func TestSelectionCountNeverSavedIsZero(t *testing.T) {
	env := newTestEnv()
	c, idents := env.sentCollection(t, []string{"1"}, "Jo")

	count, err := env.selection.SelectionCount(context.Background(), c.ID, idents[0])
	if err != nil {
		t.Fatalf("SelectionCount: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

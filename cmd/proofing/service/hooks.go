package service

import (
	"context"
	"sync"

	"github.com/aperturelab/proofing/cmd/proofing/models"
)

// LifecycleEvent identifies a broadcast point in the collection lifecycle
type LifecycleEvent string

const (
	HookPublished        LifecycleEvent = "published"
	HookSelectionSaved   LifecycleEvent = "selection-saved"
	HookApprovedByClient LifecycleEvent = "approved-by-client"
	HookApproved         LifecycleEvent = "approved"
	HookExpired          LifecycleEvent = "expired"
	HookClosed           LifecycleEvent = "closed"
	HookReopened         LifecycleEvent = "reopened"
	HookDelivered        LifecycleEvent = "delivered"
)

// HookNotice carries the subject of a lifecycle broadcast
type HookNotice struct {
	Collection *models.Collection
	Ident      string
	Event      LifecycleEvent
}

// HookFunc observes lifecycle events. Hooks run synchronously after the
// transition is committed, in registration order; they must not block.
type HookFunc func(ctx context.Context, n HookNotice)

// Hooks is an ordered registry of lifecycle observers
type Hooks struct {
	mu        sync.RWMutex
	callbacks map[LifecycleEvent][]HookFunc
}

func NewHooks() *Hooks {
	return &Hooks{callbacks: make(map[LifecycleEvent][]HookFunc)}
}

// Register appends a callback for the given event
func (h *Hooks) Register(event LifecycleEvent, fn HookFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callbacks[event] = append(h.callbacks[event], fn)
}

// Broadcast invokes the event's callbacks in registration order
func (h *Hooks) Broadcast(ctx context.Context, event LifecycleEvent, n HookNotice) {
	h.mu.RLock()
	callbacks := h.callbacks[event]
	h.mu.RUnlock()

	n.Event = event
	for _, fn := range callbacks {
		fn(ctx, n)
	}
}

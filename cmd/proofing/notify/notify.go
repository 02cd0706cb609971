package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aperturelab/proofing/common/logger"
	"github.com/aperturelab/proofing/common/queue"
)

// Queue topics for outbound notifications
const (
	TopicApproval = "notify.approval"
	TopicReminder = "notify.reminder"
)

// ApprovalNotice tells the studio a client approved their selection
type ApprovalNotice struct {
	CollectionID string `json:"collection_id"`
	Title        string `json:"title"`
	Ident        string `json:"ident"`
	Client       string `json:"client"`
	Message      string `json:"message,omitempty"`
	Complete     bool   `json:"complete"`
}

// ReminderNotice nudges a client who selected but never approved
type ReminderNotice struct {
	CollectionID string `json:"collection_id"`
	Title        string `json:"title"`
	Ident        string `json:"ident"`
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
}

// Notifier delivers notices to their recipients
type Notifier interface {
	SendApprovalNotice(ctx context.Context, n ApprovalNotice) error
	SendReminder(ctx context.Context, n ReminderNotice) error
}

// PublishApproval enqueues an approval notice
func PublishApproval(ctx context.Context, q queue.Queue, n ApprovalNotice) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode approval notice: %w", err)
	}
	return q.Publish(ctx, TopicApproval, n.CollectionID, payload)
}

// PublishReminder enqueues a reminder notice
func PublishReminder(ctx context.Context, q queue.Queue, n ReminderNotice) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode reminder notice: %w", err)
	}
	return q.Publish(ctx, TopicReminder, n.CollectionID, payload)
}

// Dispatcher drains notification topics and hands notices to a Notifier
type Dispatcher struct {
	queue    queue.Queue
	notifier Notifier
	log      *logger.Logger
}

func NewDispatcher(q queue.Queue, n Notifier, log *logger.Logger) *Dispatcher {
	return &Dispatcher{queue: q, notifier: n, log: log}
}

// Start subscribes to the notification topics. Delivery runs until ctx
// is cancelled; a failing notice is logged and dropped, never retried.
func (d *Dispatcher) Start(ctx context.Context) error {
	err := d.queue.Subscribe(ctx, TopicApproval, func(ctx context.Context, key string, value []byte) error {
		var n ApprovalNotice
		if err := json.Unmarshal(value, &n); err != nil {
			return fmt.Errorf("failed to decode approval notice: %w", err)
		}
		return d.notifier.SendApprovalNotice(ctx, n)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", TopicApproval, err)
	}

	err = d.queue.Subscribe(ctx, TopicReminder, func(ctx context.Context, key string, value []byte) error {
		var n ReminderNotice
		if err := json.Unmarshal(value, &n); err != nil {
			return fmt.Errorf("failed to decode reminder notice: %w", err)
		}
		return d.notifier.SendReminder(ctx, n)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", TopicReminder, err)
	}

	return nil
}

// LogNotifier writes notices to the service log. Stands in for a mail
// transport in deployments without one.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendApprovalNotice(ctx context.Context, notice ApprovalNotice) error {
	n.log.Info("approval received",
		"collection_id", notice.CollectionID,
		"client", notice.Client,
		"message", notice.Message,
		"all_approved", notice.Complete,
	)
	return nil
}

func (n *LogNotifier) SendReminder(ctx context.Context, notice ReminderNotice) error {
	n.log.Info("sending selection reminder",
		"collection_id", notice.CollectionID,
		"ident", notice.Ident,
		"email", notice.Email,
	)
	return nil
}

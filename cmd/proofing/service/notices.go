package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aperturelab/proofing/common/cache"
	"github.com/aperturelab/proofing/common/logger"
)

const (
	noticesKey = "admin:notices"
	noticesTTL = 7 * 24 * time.Hour
)

// NoticeLevel grades an admin notice
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// AdminNotice is a message surfaced to the studio, e.g. a failed
// delivery email
type AdminNotice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	Time    time.Time   `json:"time"`
}

// AdminNotices keeps pending studio notices in the shared cache.
// Error-level notices block publishing until dismissed.
type AdminNotices struct {
	cache cache.Cache
	log   *logger.Logger
}

func NewAdminNotices(c cache.Cache, log *logger.Logger) *AdminNotices {
	return &AdminNotices{cache: c, log: log}
}

// Add appends a notice
func (n *AdminNotices) Add(ctx context.Context, level NoticeLevel, message string) error {
	notices, err := n.list(ctx)
	if err != nil {
		return err
	}

	notices = append(notices, AdminNotice{
		Level:   level,
		Message: message,
		Time:    time.Now(),
	})

	payload, err := json.Marshal(notices)
	if err != nil {
		return fmt.Errorf("failed to encode notices: %w", err)
	}
	return n.cache.Set(ctx, noticesKey, payload, noticesTTL)
}

// List returns the pending notices
func (n *AdminNotices) List(ctx context.Context) ([]AdminNotice, error) {
	return n.list(ctx)
}

// Dismiss clears all pending notices
func (n *AdminNotices) Dismiss(ctx context.Context) error {
	return n.cache.Delete(ctx, noticesKey)
}

// HasPendingErrors reports whether any error-level notice is pending
func (n *AdminNotices) HasPendingErrors(ctx context.Context) (bool, error) {
	notices, err := n.list(ctx)
	if err != nil {
		return false, err
	}
	for _, notice := range notices {
		if notice.Level == NoticeError {
			return true, nil
		}
	}
	return false, nil
}

func (n *AdminNotices) list(ctx context.Context) ([]AdminNotice, error) {
	payload, found, err := n.cache.Get(ctx, noticesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read notices: %w", err)
	}
	if !found {
		return nil, nil
	}

	var notices []AdminNotice
	if err := json.Unmarshal(payload, &notices); err != nil {
		return nil, fmt.Errorf("failed to decode notices: %w", err)
	}
	return notices, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aperturelab/proofing/common/db"
)

// schema holds the tables owned by the proofing service.
// Applied idempotently at startup via the bootstrap DB init hook.
const schema = `
CREATE TABLE IF NOT EXISTS collection (
	id UUID PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'draft',
	item_ids TEXT NOT NULL DEFAULT '',
	delivery_item_ids TEXT NOT NULL DEFAULT '',
	delivery_option TEXT NOT NULL DEFAULT 'upload',
	expires_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS collection_client (
	collection_id UUID NOT NULL REFERENCES collection(id) ON DELETE CASCADE,
	ident TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'sent',
	status_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	extra JSONB NOT NULL DEFAULT '{}',
	PRIMARY KEY (collection_id, ident)
);

CREATE TABLE IF NOT EXISTS client_selection (
	collection_id UUID NOT NULL REFERENCES collection(id) ON DELETE CASCADE,
	ident TEXT NOT NULL DEFAULT '',
	selected JSONB NOT NULL DEFAULT '[]',
	markers JSONB NOT NULL DEFAULT '{}',
	stars JSONB NOT NULL DEFAULT '{}',
	approval_fields JSONB NOT NULL DEFAULT '{}',
	saved_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (collection_id, ident)
);

CREATE TABLE IF NOT EXISTS collection_history (
	collection_id UUID NOT NULL REFERENCES collection(id) ON DELETE CASCADE,
	event_time BIGINT NOT NULL,
	event TEXT NOT NULL,
	data TEXT NOT NULL DEFAULT '',
	meta JSONB NOT NULL DEFAULT '[]',
	PRIMARY KEY (collection_id, event_time)
);

CREATE INDEX IF NOT EXISTS idx_collection_status_expires
	ON collection (status, expires_at);
`

// InitSchema creates the proofing tables if they do not exist yet
func InitSchema(database *db.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := database.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	return nil
}

package store

import (
	"context"
	"fmt"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS connectors (
  id           uuid PRIMARY KEY,
  label        text NOT NULL,
  service_name text NOT NULL,
  endpoint     text,
  username     text,
  password     text,
  created_at   timestamptz NOT NULL DEFAULT now(),
  updated_at   timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS forms (
  id         text PRIMARY KEY,
  label      text NOT NULL,
  fields     jsonb NOT NULL DEFAULT '[]',
  updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS form_connectors (
  form_id      text NOT NULL REFERENCES forms(id) ON DELETE CASCADE,
  connector_id uuid NOT NULL REFERENCES connectors(id) ON DELETE CASCADE,
  settings     jsonb NOT NULL DEFAULT '{}',
  enabled      boolean NOT NULL DEFAULT true,
  updated_at   timestamptz NOT NULL DEFAULT now(),
  PRIMARY KEY (form_id, connector_id)
);

CREATE TABLE IF NOT EXISTS deliveries (
  id           uuid PRIMARY KEY,
  form_id      text NOT NULL,
  connector_id uuid NOT NULL,
  message      jsonb NOT NULL,
  status       text NOT NULL,
  attempts     integer NOT NULL DEFAULT 0,
  last_error   text,
  created_at   timestamptz NOT NULL DEFAULT now(),
  updated_at   timestamptz NOT NULL DEFAULT now(),
  delivered_at timestamptz
);

CREATE INDEX IF NOT EXISTS deliveries_pending_idx
  ON deliveries (created_at) WHERE status = 'pending';
CREATE INDEX IF NOT EXISTS deliveries_status_created_idx
  ON deliveries (status, created_at DESC);
`

// EnsureSchema creates the store's tables and indexes if they are missing.
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

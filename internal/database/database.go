// Package database opens the hosted Postgres database that backs the remote
// record store.
package database

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS vibrate_data (
	id               BIGSERIAL PRIMARY KEY,
	unit_type        TEXT        NOT NULL,
	equipment_id     TEXT        NOT NULL,
	measurement_date DATE        NOT NULL,
	parameters       JSONB       NOT NULL,
	notes            TEXT        NOT NULL DEFAULT '',
	user_id          TEXT        NOT NULL,
	user_name        TEXT        NOT NULL DEFAULT '',
	local_timestamp  TIMESTAMPTZ,
	server_timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (unit_type, equipment_id, measurement_date)
);

CREATE INDEX IF NOT EXISTS idx_vibrate_data_user ON vibrate_data(user_id);
CREATE INDEX IF NOT EXISTS idx_vibrate_data_date ON vibrate_data(measurement_date DESC);

CREATE TABLE IF NOT EXISTS user_settings (
	user_id    TEXT PRIMARY KEY,
	settings   JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func Connect() (*sqlx.DB, error) {
	return sqlx.Connect("pgx", config.DBDSN())
}

// Migrate creates the remote tables if they are missing.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate remote schema: %w", err)
	}
	return nil
}

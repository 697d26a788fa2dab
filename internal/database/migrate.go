// internal/database/migrate.go
//
// Schema bootstrap for the site registry.  The DDL is deliberately kept
// to the portable subset all three supported drivers accept; timestamps
// are assigned by the application, never by column defaults.

package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const createSiteTable = `
CREATE TABLE IF NOT EXISTS site (
    id           VARCHAR(36)  PRIMARY KEY,
    name         VARCHAR(80)  NOT NULL UNIQUE,
    owner_id     BIGINT       NULL,
    content_url  VARCHAR(255) NOT NULL DEFAULT '',
    status       VARCHAR(16)  NOT NULL DEFAULT 'pending',
    error_detail TEXT         NULL,
    is_published BOOLEAN      NOT NULL DEFAULT TRUE,
    created_at   TIMESTAMP    NOT NULL,
    updated_at   TIMESTAMP    NOT NULL
)`

// Migrate creates the site table when absent.  Safe to run on every
// boot.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, createSiteTable); err != nil {
		return fmt.Errorf("create site table: %w", err)
	}
	return nil
}

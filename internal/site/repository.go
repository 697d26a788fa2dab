// internal/site/repository.go
//
// sqlx repository for the site table.
//
// Queries are written with `?` placeholders and rebound per driver, so
// the same code serves MySQL, PostgreSQL, and SQLite.  Name uniqueness
// is enforced both by a pre-write check and by translating the driver's
// duplicate-key error, closing the race between the two.

package site

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	// ErrNotFound reports a missing id or name.
	ErrNotFound = errors.New("site not found")
	// ErrNameExists reports a create or rename that would collide.
	ErrNameExists = errors.New("site name already exists")
)

// Repository owns every read and write against the site table.  It is
// the single source of truth for ingestion status; no in-memory cache
// of status is authoritative.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const selectCols = `id, name, owner_id, content_url, status, error_detail,
       is_published, created_at, updated_at`

// now returns the server-assigned timestamp value.
func now() time.Time { return time.Now().UTC().Truncate(time.Second) }

// Create inserts a fresh row.  Status and timestamps are assigned here:
// a new site always starts pending with an empty content URL.
func (r *Repository) Create(ctx context.Context, rec *Record) error {
	if exists, err := r.nameTaken(ctx, rec.Name, ""); err != nil {
		return err
	} else if exists {
		return ErrNameExists
	}

	ts := now()
	rec.Status = StatusPending
	rec.ContentURL = ""
	rec.CreatedAt, rec.UpdatedAt = ts, ts

	const q = `
        INSERT INTO site (id, name, owner_id, content_url, status,
                          is_published, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, r.db.Rebind(q),
		rec.ID, rec.Name, rec.OwnerID, rec.ContentURL, rec.Status,
		rec.IsPublished, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrNameExists
		}
		return fmt.Errorf("insert site: %w", err)
	}
	return nil
}

// ByID fetches a single row.
func (r *Repository) ByID(ctx context.Context, id string) (*Record, error) {
	q := `SELECT ` + selectCols + ` FROM site WHERE id = ?`
	var rec Record
	if err := r.db.GetContext(ctx, &rec, r.db.Rebind(q), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select site %q: %w", id, err)
	}
	return &rec, nil
}

// ByName fetches a single row by its unique display name.
func (r *Repository) ByName(ctx context.Context, name string) (*Record, error) {
	q := `SELECT ` + selectCols + ` FROM site WHERE name = ?`
	var rec Record
	if err := r.db.GetContext(ctx, &rec, r.db.Rebind(q), name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select site by name %q: %w", name, err)
	}
	return &rec, nil
}

// List returns every row, newest first.  This is the administrative
// view; the per-principal view is ListByOwner.
func (r *Repository) List(ctx context.Context) ([]Record, error) {
	q := `SELECT ` + selectCols + ` FROM site ORDER BY created_at DESC`
	var rows []Record
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	return rows, nil
}

// ListByOwner returns one principal's rows, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID int64) ([]Record, error) {
	q := `SELECT ` + selectCols + ` FROM site WHERE owner_id = ? ORDER BY created_at DESC`
	var rows []Record
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), ownerID); err != nil {
		return nil, fmt.Errorf("list sites for owner %d: %w", ownerID, err)
	}
	return rows, nil
}

// Rename changes the display name.  Collisions with any other row are
// rejected before the row mutates.
func (r *Repository) Rename(ctx context.Context, id, newName string) error {
	if exists, err := r.nameTaken(ctx, newName, id); err != nil {
		return err
	} else if exists {
		return ErrNameExists
	}

	const q = `UPDATE site SET name = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), newName, now(), id)
	if err != nil {
		if isDuplicate(err) {
			return ErrNameExists
		}
		return fmt.Errorf("rename site %q: %w", id, err)
	}
	return mustAffect(res, id)
}

// SetPublished flips the third-party read gate.
func (r *Repository) SetPublished(ctx context.Context, id string, published bool) error {
	const q = `UPDATE site SET is_published = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), published, now(), id)
	if err != nil {
		return fmt.Errorf("set published on %q: %w", id, err)
	}
	return mustAffect(res, id)
}

// MarkCompleted finalizes a successful ingestion.  The content URL and
// the status flip land in one UPDATE.
func (r *Repository) MarkCompleted(ctx context.Context, id, contentURL string) error {
	const q = `
        UPDATE site
        SET    status = ?, content_url = ?, error_detail = NULL, updated_at = ?
        WHERE  id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q),
		StatusCompleted, contentURL, now(), id)
	if err != nil {
		return fmt.Errorf("mark completed %q: %w", id, err)
	}
	return mustAffect(res, id)
}

// MarkFailed records the triggering error on the row.
func (r *Repository) MarkFailed(ctx context.Context, id, detail string) error {
	const q = `
        UPDATE site
        SET    status = ?, error_detail = ?, updated_at = ?
        WHERE  id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q),
		StatusFailed, detail, now(), id)
	if err != nil {
		return fmt.Errorf("mark failed %q: %w", id, err)
	}
	return mustAffect(res, id)
}

// Delete removes the row.  A second delete of the same id reports
// ErrNotFound.
func (r *Repository) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM site WHERE id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), id)
	if err != nil {
		return fmt.Errorf("delete site %q: %w", id, err)
	}
	return mustAffect(res, id)
}

// Ping backs the liveness probe.
func (r *Repository) Ping(ctx context.Context) error {
	var one int
	return r.db.GetContext(ctx, &one, `SELECT 1`)
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// nameTaken reports whether another row (id != exceptID) holds name.
func (r *Repository) nameTaken(ctx context.Context, name, exceptID string) (bool, error) {
	q := `SELECT id FROM site WHERE name = ?`
	var id string
	err := r.db.GetContext(ctx, &id, r.db.Rebind(q), name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("check name %q: %w", name, err)
	}
	return id != exceptID, nil
}

// mustAffect converts a zero-row UPDATE or DELETE into ErrNotFound.
func mustAffect(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %q: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// isDuplicate recognises MySQL (error 1062), Postgres (23505), and
// SQLite (UNIQUE constraint) duplicate-key errors without importing
// driver-specific types.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "1062") ||
		strings.Contains(msg, "23505") ||
		strings.Contains(msg, "UNIQUE constraint")
}

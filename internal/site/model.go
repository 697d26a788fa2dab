// internal/site/model.go
//
// The Site Registry row.  One record per hosted site; the row is the
// durable record of how far an ingestion unit got, so no separate
// in-memory task table exists anywhere in the process.

package site

import "time"

// Status is the ingestion lifecycle state of a site.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record mirrors one row in the persistent `site` table.
//
// ContentURL stays empty while Status is pending; the pipeline writes it
// in the same UPDATE that flips Status to completed, so a reader never
// observes a completed row with a placeholder URL.  ErrorDetail is set
// only on failed rows.
type Record struct {
	ID          string    `db:"id"           json:"id"`
	Name        string    `db:"name"         json:"name"`
	OwnerID     *int64    `db:"owner_id"     json:"owner_id,omitempty"`
	ContentURL  string    `db:"content_url"  json:"content_url"`
	Status      Status    `db:"status"       json:"status"`
	ErrorDetail *string   `db:"error_detail" json:"error_detail,omitempty"`
	IsPublished bool      `db:"is_published" json:"is_published"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"   json:"updated_at"`
}

// OwnedBy reports whether the record belongs to userID.  Legacy rows
// without an owner belong to nobody.
func (r *Record) OwnedBy(userID int64) bool {
	return r.OwnerID != nil && *r.OwnerID == userID
}

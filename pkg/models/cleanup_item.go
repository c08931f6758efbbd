package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	// CleanupTypeRetryUpload re-attempts a failed optimistic upload.
	CleanupTypeRetryUpload = "retry_upload"
	// CleanupTypePurgeRemote deletes an asset from the asset store after
	// a catalog-side delete.
	CleanupTypePurgeRemote = "purge_remote"
	// CleanupTypeOrphanImport imports an asset present in the store but
	// missing from the catalog.
	CleanupTypeOrphanImport = "orphan_import"
	// CleanupTypePurgeCatalog hard-deletes catalog rows whose soft-delete
	// grace period has elapsed.
	CleanupTypePurgeCatalog = "purge_catalog"
)

const (
	CleanupStatusPending    = "pending"
	CleanupStatusInProgress = "in_progress"
	CleanupStatusCompleted  = "completed"
	CleanupStatusFailed     = "failed"
)

// CleanupItem is one corrective action in the scheduler's bounded-retry
// queue. Items are claimed pending -> in_progress with a compare-and-set
// so a scheduler tick and a manual force-cleanup never double-process.
type CleanupItem struct {
	bun.BaseModel `bun:"table:cleanup_queue,alias:cq"`

	ID            int        `bun:",pk,nullzero" json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Type          string     `bun:",nullzero" json:"type"`
	Status        string     `bun:",nullzero,default:'pending'" json:"status"`
	AssetID       *int       `json:"asset_id,omitempty"`
	ExternalID    *string    `json:"external_id,omitempty"`
	Reason        string     `json:"reason"`
	Attempts      int        `json:"attempts"`
	MaxAttempts   int        `bun:",nullzero,default:3" json:"max_attempts"`
	NextAttemptAt time.Time  `json:"next_attempt_at"`
	LastError     *string    `json:"last_error,omitempty"`
	ClaimedBy     *string    `json:"claimed_by,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// Exhausted reports whether the item has used up its retry budget.
func (ci *CleanupItem) Exhausted() bool {
	return ci.Attempts >= ci.MaxAttempts
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	SyncStatusPending = "pending"
	SyncStatusSynced  = "synced"
	SyncStatusError   = "error"
)

type MediaAsset struct {
	bun.BaseModel `bun:"table:media_assets,alias:ma"`

	ID            int        `bun:",pk,nullzero" json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ExternalID    *string    `bun:",unique,nullzero" json:"external_id"`
	CorrelationID *string    `bun:",unique,nullzero" json:"correlation_id,omitempty"`
	Filename      string     `bun:",nullzero" json:"filename"`
	Folder        string     `json:"folder"`
	ResourceType  string     `bun:",nullzero,default:'image'" json:"resource_type"`
	MimeType      *string    `json:"mime_type"`
	SizeBytes     int64      `json:"size_bytes"`
	Checksum      *string    `json:"checksum"`
	Version       int64      `json:"version"`
	SyncStatus    string     `bun:",nullzero,default:'pending'" json:"sync_status"`
	ErrorDetail   *string    `json:"error_detail,omitempty"`
	DeletedAt     *time.Time `bun:",soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// IsActive reports whether the asset should appear in active listings.
func (ma *MediaAsset) IsActive() bool {
	return ma.DeletedAt == nil || ma.DeletedAt.IsZero()
}

// IsSynced reports whether the asset is durably confirmed in the asset
// store. A synced asset always has an external id.
func (ma *MediaAsset) IsSynced() bool {
	return ma.SyncStatus == SyncStatusSynced && ma.ExternalID != nil
}

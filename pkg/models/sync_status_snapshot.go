package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

const (
	SnapshotTriggerScheduled = "scheduled"
	SnapshotTriggerManual    = "manual"
	SnapshotTriggerError     = "error"
)

// SyncStatusSnapshot is an append-only rollup of catalog health, written
// periodically and on demand. Never mutated after creation.
type SyncStatusSnapshot struct {
	bun.BaseModel `bun:"table:sync_status_snapshots,alias:ss"`

	ID               int       `bun:",pk,nullzero" json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	TotalAssets      int       `json:"total_assets"`
	SyncedAssets     int       `json:"synced_assets"`
	PendingAssets    int       `json:"pending_assets"`
	ErrorAssets      int       `json:"error_assets"`
	ActiveOperations int       `json:"active_operations"`
	Health           string    `bun:",nullzero,default:'healthy'" json:"health"`
	ErrorRate        float64   `json:"error_rate"`
	AvgSyncLatencyMs float64   `json:"avg_sync_latency_ms"`
	Trigger          string    `bun:"triggered_by,nullzero,default:'scheduled'" json:"trigger"`
}

package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

const (
	OperationTypeUpload   = "upload"
	OperationTypeDelete   = "delete"
	OperationTypeUpdate   = "update"
	OperationTypeFullSync = "full_sync"
	OperationTypeWebhook  = "webhook"
)

const (
	OperationStatusPending    = "pending"
	OperationStatusInProgress = "in_progress"
	OperationStatusCompleted  = "completed"
	OperationStatusFailed     = "failed"
	OperationStatusCancelled  = "cancelled"
)

const (
	OperationSourceManual    = "manual"
	OperationSourceWebhook   = "webhook"
	OperationSourceAPI       = "api"
	OperationSourceScheduled = "scheduled"
)

// SyncOperation is the audit record for one asynchronous action against
// the asset store. Rows that reach a terminal status are never mutated
// again.
type SyncOperation struct {
	bun.BaseModel `bun:"table:sync_operations,alias:so"`

	ID             int         `bun:",pk,nullzero" json:"id"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	Type           string      `bun:",nullzero" json:"type"`
	Status         string      `bun:",nullzero,default:'pending'" json:"status"`
	Source         string      `bun:",nullzero,default:'api'" json:"source"`
	Progress       int         `json:"progress"`
	TotalItems     int         `json:"total_items"`
	ProcessedItems int         `json:"processed_items"`
	FailedItems    int         `json:"failed_items"`
	Detail         string      `json:"-"`
	DetailParsed   interface{} `bun:"-" json:"detail,omitempty"`
	ErrorDetail    *string     `json:"error_detail,omitempty"`
	StartedAt      *time.Time  `json:"started_at,omitempty"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the operation has reached a status that
// must never transition again.
func (op *SyncOperation) IsTerminal() bool {
	switch op.Status {
	case OperationStatusCompleted, OperationStatusFailed, OperationStatusCancelled:
		return true
	}
	return false
}

func (op *SyncOperation) UnmarshalDetail() error {
	if op.Detail == "" {
		return nil
	}

	op.DetailParsed = map[string]interface{}{}
	err := json.Unmarshal([]byte(op.Detail), &op.DetailParsed)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

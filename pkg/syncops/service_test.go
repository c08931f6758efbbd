package syncops

import (
	"context"
	"database/sql"
	"testing"

	"github.com/davemejos/mediasync/pkg/migrations"
	"github.com/davemejos/mediasync/pkg/models"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestCreateOperationMarshalsDetail(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	op := &models.SyncOperation{
		Type:         models.OperationTypeUpload,
		Status:       models.OperationStatusPending,
		Source:       models.OperationSourceAPI,
		DetailParsed: map[string]interface{}{"filename": "a.jpg"},
	}
	require.NoError(t, svc.CreateOperation(ctx, op))
	assert.NotZero(t, op.ID)
	assert.NotNil(t, op.StartedAt)

	got, err := svc.RetrieveOperation(ctx, RetrieveOperationOptions{ID: &op.ID})
	require.NoError(t, err)
	detail, ok := got.DetailParsed.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "a.jpg", detail["filename"])
}

func TestUpdateOperationCompletedForcesProgress(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	op := &models.SyncOperation{
		Type:   models.OperationTypeUpload,
		Status: models.OperationStatusInProgress,
		Source: models.OperationSourceAPI,
	}
	require.NoError(t, svc.CreateOperation(ctx, op))

	op.Status = models.OperationStatusCompleted
	op.Progress = 80
	require.NoError(t, svc.UpdateOperation(ctx, op, UpdateOperationOptions{
		Columns: []string{"status", "progress"},
	}))

	got, err := svc.RetrieveOperation(ctx, RetrieveOperationOptions{ID: &op.ID})
	require.NoError(t, err)
	assert.Equal(t, models.OperationStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.NotNil(t, got.CompletedAt)
}

func TestUpdateOperationTerminalIsImmutable(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	op := &models.SyncOperation{
		Type:   models.OperationTypeDelete,
		Status: models.OperationStatusPending,
		Source: models.OperationSourceWebhook,
	}
	require.NoError(t, svc.CreateOperation(ctx, op))

	op.Status = models.OperationStatusFailed
	op.ErrorDetail = pointerutil.String("provider unavailable")
	require.NoError(t, svc.UpdateOperation(ctx, op, UpdateOperationOptions{
		Columns: []string{"status", "error_detail"},
	}))

	// No status regression out of a terminal state.
	op.Status = models.OperationStatusInProgress
	err := svc.UpdateOperation(ctx, op, UpdateOperationOptions{
		Columns: []string{"status"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already finished")
}

func TestListOperationsFilters(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	for _, op := range []*models.SyncOperation{
		{Type: models.OperationTypeUpload, Status: models.OperationStatusCompleted, Source: models.OperationSourceAPI, Progress: 100},
		{Type: models.OperationTypeWebhook, Status: models.OperationStatusCompleted, Source: models.OperationSourceWebhook, Progress: 100},
		{Type: models.OperationTypeFullSync, Status: models.OperationStatusInProgress, Source: models.OperationSourceScheduled},
	} {
		require.NoError(t, svc.CreateOperation(ctx, op))
	}

	ops, total, err := svc.ListOperationsWithTotal(ctx, ListOperationsOptions{
		Limit:    pointerutil.Int(10),
		Statuses: []string{models.OperationStatusCompleted},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, ops, 2)

	active, err := svc.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, active)
}

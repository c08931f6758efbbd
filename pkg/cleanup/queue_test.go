package cleanup

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/davemejos/mediasync/pkg/migrations"
	"github.com/davemejos/mediasync/pkg/models"
	"github.com/pkg/errors"
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

func TestEnqueueCollapsesDuplicates(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	q := NewQueue(db)
	ctx := context.Background()

	first := &models.CleanupItem{
		Type:    models.CleanupTypePurgeRemote,
		AssetID: pointerutil.Int(7),
		Reason:  "asset deleted",
	}
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, &models.CleanupItem{
		Type:    models.CleanupTypePurgeRemote,
		AssetID: pointerutil.Int(7),
		Reason:  "asset deleted again",
	}))

	items, err := q.ListItems(ctx, ListItemsOptions{})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestClaimDueIsExclusive(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	q := NewQueue(db)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, &models.CleanupItem{
		Type:   models.CleanupTypeOrphanImport,
		Reason: "remote-only asset",
	}))

	claimed, err := q.ClaimDue(ctx, "worker-a", 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, models.CleanupStatusInProgress, claimed[0].Status)
	require.NotNil(t, claimed[0].ClaimedBy)
	assert.Equal(t, "worker-a", *claimed[0].ClaimedBy)

	again, err := q.ClaimDue(ctx, "worker-b", 10)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestClaimDueSkipsFutureItems(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	q := NewQueue(db)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, &models.CleanupItem{
		Type:          models.CleanupTypeRetryUpload,
		Reason:        "transient upload failure",
		NextAttemptAt: time.Now().Add(time.Hour),
	}))

	claimed, err := q.ClaimDue(ctx, "worker-a", 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestFailBacksOffThenParks(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	q := NewQueue(db)
	ctx := context.Background()

	item := &models.CleanupItem{
		Type:        models.CleanupTypePurgeRemote,
		Reason:      "asset deleted",
		MaxAttempts: 2,
	}
	require.NoError(t, q.Enqueue(ctx, item))

	cause := errors.New("provider unavailable")

	before := time.Now()
	require.NoError(t, q.Fail(ctx, item, cause, time.Minute))
	assert.Equal(t, models.CleanupStatusPending, item.Status)
	assert.Equal(t, 1, item.Attempts)
	assert.True(t, item.NextAttemptAt.After(before))

	require.NoError(t, q.Fail(ctx, item, cause, time.Minute))
	assert.Equal(t, models.CleanupStatusFailed, item.Status)
	assert.Equal(t, 2, item.Attempts)

	claimed, err := q.ClaimDue(ctx, "worker-a", 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	n, err := q.Requeue(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	counts, err := q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.CleanupStatusPending])
}

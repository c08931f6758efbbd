package snapshots

import (
	"context"
	"database/sql"
	"testing"

	"github.com/davemejos/mediasync/pkg/media"
	"github.com/davemejos/mediasync/pkg/migrations"
	"github.com/davemejos/mediasync/pkg/models"
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

func seedAssets(t *testing.T, db *bun.DB, synced, pending, errored int) {
	t.Helper()

	svc := media.NewService(db)
	ctx := context.Background()
	n := 0

	create := func(status string, withExternal bool) {
		n++
		asset := &models.MediaAsset{
			Filename:   "asset.jpg",
			Folder:     "seed",
			SyncStatus: status,
		}
		if withExternal {
			id := "seed/" + string(rune('a'+n))
			asset.ExternalID = &id
		}
		require.NoError(t, svc.CreateAsset(ctx, asset))
	}

	for i := 0; i < synced; i++ {
		create(models.SyncStatusSynced, true)
	}
	for i := 0; i < pending; i++ {
		create(models.SyncStatusPending, false)
	}
	for i := 0; i < errored; i++ {
		create(models.SyncStatusError, false)
	}
}

func TestTakeSnapshotClassifiesHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		synced  int
		errored int
		health  string
	}{
		{name: "healthy", synced: 100, errored: 0, health: models.HealthHealthy},
		{name: "warning", synced: 90, errored: 10, health: models.HealthWarning},
		{name: "critical", synced: 60, errored: 40, health: models.HealthCritical},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db := newTestDB(t)
			seedAssets(t, db, tt.synced, 0, tt.errored)

			svc := NewService(db)
			snapshot, err := svc.TakeSnapshot(context.Background(), models.SnapshotTriggerManual)
			require.NoError(t, err)

			assert.Equal(t, tt.synced+tt.errored, snapshot.TotalAssets)
			assert.Equal(t, tt.errored, snapshot.ErrorAssets)
			assert.Equal(t, tt.health, snapshot.Health)
			assert.Equal(t, models.SnapshotTriggerManual, snapshot.Trigger)
		})
	}
}

func TestSnapshotsAreAppendOnly(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	seedAssets(t, db, 2, 1, 0)

	svc := NewService(db)
	ctx := context.Background()

	first, err := svc.TakeSnapshot(ctx, models.SnapshotTriggerScheduled)
	require.NoError(t, err)
	second, err := svc.TakeSnapshot(ctx, models.SnapshotTriggerManual)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	latest, err := svc.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)

	all, err := svc.ListSnapshots(ctx, ListSnapshotsOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLatestIsNilOnEmptyTable(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db)

	latest, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, latest)
}

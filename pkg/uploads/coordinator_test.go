package uploads

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/davemejos/mediasync/pkg/assetstore"
	"github.com/davemejos/mediasync/pkg/config"
	"github.com/davemejos/mediasync/pkg/media"
	"github.com/davemejos/mediasync/pkg/migrations"
	"github.com/davemejos/mediasync/pkg/models"
	"github.com/davemejos/mediasync/pkg/realtime"
	"github.com/davemejos/mediasync/pkg/syncops"
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

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AssetStoreTimeout: 2 * time.Second,
		UploadStagingDir:  t.TempDir(),
		Scheduler:         config.Scheduler{MaxRetries: 3},
	}
}

type fakeStore struct {
	uploadFn func(ctx context.Context, params assetstore.UploadParams) (*assetstore.RemoteAsset, error)
}

func (s *fakeStore) Upload(ctx context.Context, params assetstore.UploadParams) (*assetstore.RemoteAsset, error) {
	return s.uploadFn(ctx, params)
}

func (s *fakeStore) Delete(_ context.Context, _ string) error {
	return nil
}

func (s *fakeStore) List(_ context.Context, _ string, _ int) (*assetstore.ListPage, error) {
	return &assetstore.ListPage{}, nil
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (b *recordingBroadcaster) Broadcast(event realtime.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]string, len(b.events))
	for i, e := range b.events {
		types[i] = e.Type
	}
	return types
}

func TestSubmitConfirmsOptimisticUpload(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	cfg := newTestConfig(t)
	broadcaster := &recordingBroadcaster{}
	store := &fakeStore{
		uploadFn: func(_ context.Context, params assetstore.UploadParams) (*assetstore.RemoteAsset, error) {
			return &assetstore.RemoteAsset{
				ExternalID:   params.Folder + "/" + params.Filename,
				Filename:     params.Filename,
				Folder:       params.Folder,
				ResourceType: "image",
				MimeType:     params.MimeType,
				SizeBytes:    int64(len(params.Data)),
				Version:      1,
			}, nil
		},
	}
	co := NewCoordinator(cfg, db, store, broadcaster)
	ctx := context.Background()

	asset, op, err := co.Submit(ctx, SubmitParams{
		Filename: "cat.png",
		Folder:   "pets",
		Data:     pngBytes(),
	})
	require.NoError(t, err)
	require.NotNil(t, asset.CorrelationID)
	assert.Equal(t, models.SyncStatusPending, asset.SyncStatus)
	assert.Equal(t, models.OperationStatusInProgress, op.Status)

	// Payload is staged until the store confirms.
	_, err = os.Stat(StagingPath(cfg.UploadStagingDir, *asset.CorrelationID))
	require.NoError(t, err)

	co.Wait()

	mediaService := media.NewService(db)
	confirmed, err := mediaService.RetrieveAsset(ctx, media.RetrieveAssetOptions{ID: &asset.ID})
	require.NoError(t, err)
	assert.True(t, confirmed.IsSynced())
	require.NotNil(t, confirmed.ExternalID)
	assert.Equal(t, "pets/cat.png", *confirmed.ExternalID)

	opService := syncops.NewService(db)
	done, err := opService.RetrieveOperation(ctx, syncops.RetrieveOperationOptions{ID: &op.ID})
	require.NoError(t, err)
	assert.Equal(t, models.OperationStatusCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)
	assert.Equal(t, 1, done.ProcessedItems)

	_, err = os.Stat(StagingPath(cfg.UploadStagingDir, *asset.CorrelationID))
	assert.True(t, os.IsNotExist(err))

	assert.Equal(t, []string{realtime.EventMediaCreated, realtime.EventMediaSynced}, broadcaster.types())
}

func TestSubmitTransientFailureQueuesRetry(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	cfg := newTestConfig(t)
	broadcaster := &recordingBroadcaster{}
	store := &fakeStore{
		uploadFn: func(_ context.Context, _ assetstore.UploadParams) (*assetstore.RemoteAsset, error) {
			return nil, &assetstore.APIError{StatusCode: 503, Message: "try later"}
		},
	}
	co := NewCoordinator(cfg, db, store, broadcaster)
	ctx := context.Background()

	asset, op, err := co.Submit(ctx, SubmitParams{
		Filename: "cat.png",
		Folder:   "pets",
		Data:     pngBytes(),
	})
	require.NoError(t, err)

	co.Wait()

	mediaService := media.NewService(db)
	failed, err := mediaService.RetrieveAsset(ctx, media.RetrieveAssetOptions{ID: &asset.ID})
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusError, failed.SyncStatus)
	require.NotNil(t, failed.ErrorDetail)

	opService := syncops.NewService(db)
	done, err := opService.RetrieveOperation(ctx, syncops.RetrieveOperationOptions{ID: &op.ID})
	require.NoError(t, err)
	assert.Equal(t, models.OperationStatusFailed, done.Status)
	assert.Equal(t, 1, done.FailedItems)

	items := []*models.CleanupItem{}
	require.NoError(t, db.NewSelect().Model(&items).Scan(ctx))
	require.Len(t, items, 1)
	assert.Equal(t, models.CleanupTypeRetryUpload, items[0].Type)
	require.NotNil(t, items[0].AssetID)
	assert.Equal(t, asset.ID, *items[0].AssetID)

	// Staged payload survives for the retry.
	_, err = os.Stat(StagingPath(cfg.UploadStagingDir, *asset.CorrelationID))
	require.NoError(t, err)

	assert.Equal(t, []string{realtime.EventMediaCreated, realtime.EventMediaError}, broadcaster.types())
}

func TestSubmitPermanentFailureDoesNotRetry(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	cfg := newTestConfig(t)
	broadcaster := &recordingBroadcaster{}
	store := &fakeStore{
		uploadFn: func(_ context.Context, _ assetstore.UploadParams) (*assetstore.RemoteAsset, error) {
			return nil, &assetstore.APIError{StatusCode: 400, Message: "invalid file"}
		},
	}
	co := NewCoordinator(cfg, db, store, broadcaster)
	ctx := context.Background()

	asset, _, err := co.Submit(ctx, SubmitParams{
		Filename: "cat.png",
		Folder:   "pets",
		Data:     pngBytes(),
	})
	require.NoError(t, err)

	co.Wait()

	items := []*models.CleanupItem{}
	require.NoError(t, db.NewSelect().Model(&items).Scan(ctx))
	assert.Empty(t, items)

	// Nothing will retry this, so the staged payload is gone.
	_, err = os.Stat(StagingPath(cfg.UploadStagingDir, *asset.CorrelationID))
	assert.True(t, os.IsNotExist(err))
}

func TestSubmitStoreTimeoutStillRollsBack(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	cfg := newTestConfig(t)
	cfg.AssetStoreTimeout = 100 * time.Millisecond
	broadcaster := &recordingBroadcaster{}
	store := &fakeStore{
		uploadFn: func(ctx context.Context, _ assetstore.UploadParams) (*assetstore.RemoteAsset, error) {
			// Hang until the store deadline fires, like a stalled provider.
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	co := NewCoordinator(cfg, db, store, broadcaster)
	ctx := context.Background()

	asset, op, err := co.Submit(ctx, SubmitParams{
		Filename: "cat.png",
		Folder:   "pets",
		Data:     pngBytes(),
	})
	require.NoError(t, err)

	co.Wait()

	// The rollback writes must land even though the store context is
	// already past its deadline.
	mediaService := media.NewService(db)
	failed, err := mediaService.RetrieveAsset(ctx, media.RetrieveAssetOptions{ID: &asset.ID})
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusError, failed.SyncStatus)

	opService := syncops.NewService(db)
	done, err := opService.RetrieveOperation(ctx, syncops.RetrieveOperationOptions{ID: &op.ID})
	require.NoError(t, err)
	assert.Equal(t, models.OperationStatusFailed, done.Status)

	items := []*models.CleanupItem{}
	require.NoError(t, db.NewSelect().Model(&items).Scan(ctx))
	require.Len(t, items, 1)
	assert.Equal(t, models.CleanupTypeRetryUpload, items[0].Type)
	assert.Equal(t, models.CleanupStatusPending, items[0].Status)

	// Timeouts are transient, so the staged payload stays for the retry.
	_, err = os.Stat(StagingPath(cfg.UploadStagingDir, *asset.CorrelationID))
	require.NoError(t, err)
}

func TestSubmitStagingFailureRollsBack(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	cfg := newTestConfig(t)
	// A regular file where the staging directory should be makes every
	// staging write fail.
	blocker := StagingPath(cfg.UploadStagingDir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	cfg.UploadStagingDir = blocker
	broadcaster := &recordingBroadcaster{}
	store := &fakeStore{
		uploadFn: func(_ context.Context, _ assetstore.UploadParams) (*assetstore.RemoteAsset, error) {
			t.Error("store should never be called when staging fails")
			return nil, nil
		},
	}
	co := NewCoordinator(cfg, db, store, broadcaster)
	ctx := context.Background()

	_, _, err := co.Submit(ctx, SubmitParams{
		Filename: "cat.png",
		Folder:   "pets",
		Data:     pngBytes(),
	})
	require.Error(t, err)

	co.Wait()

	// No pending row lingers, not even soft-deleted.
	assets := []*models.MediaAsset{}
	require.NoError(t, db.NewSelect().Model(&assets).WhereAllWithDeleted().Scan(ctx))
	assert.Empty(t, assets)

	ops := []*models.SyncOperation{}
	require.NoError(t, db.NewSelect().Model(&ops).Scan(ctx))
	require.Len(t, ops, 1)
	assert.Equal(t, models.OperationStatusFailed, ops[0].Status)
	require.NotNil(t, ops[0].ErrorDetail)
}

func pngBytes() []byte {
	return []byte("\x89PNG\r\n\x1a\n0000000000")
}

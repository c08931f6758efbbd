package scheduler

import (
	"context"
	"os"
	"time"

	"github.com/davemejos/mediasync/pkg/assetstore"
	"github.com/davemejos/mediasync/pkg/errcodes"
	"github.com/davemejos/mediasync/pkg/media"
	"github.com/davemejos/mediasync/pkg/models"
	"github.com/davemejos/mediasync/pkg/realtime"
	"github.com/davemejos/mediasync/pkg/uploads"
	"github.com/pkg/errors"
)

func (s *Scheduler) execute(ctx context.Context, item *models.CleanupItem) error {
	ctx, cancel := context.WithTimeout(ctx, s.appConfig.AssetStoreTimeout)
	defer cancel()

	switch item.Type {
	case models.CleanupTypeRetryUpload:
		return s.retryUpload(ctx, item)
	case models.CleanupTypePurgeRemote:
		return s.purgeRemote(ctx, item)
	case models.CleanupTypeOrphanImport:
		return s.orphanImport(ctx, item)
	case models.CleanupTypePurgeCatalog:
		return s.purgeCatalog(ctx, item)
	}
	return errors.Errorf("unknown cleanup type %q", item.Type)
}

// retryUpload re-pushes a staged payload whose original upload failed
// transiently, then confirms the catalog row the same way the original
// confirmation would have.
func (s *Scheduler) retryUpload(ctx context.Context, item *models.CleanupItem) error {
	if item.AssetID == nil {
		return errors.New("retry_upload item has no asset id")
	}

	asset, err := s.mediaService.RetrieveAsset(ctx, media.RetrieveAssetOptions{
		ID:             item.AssetID,
		IncludeDeleted: true,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	if asset.IsSynced() || asset.DeletedAt != nil {
		// Confirmed by a webhook, or deleted, in the meantime.
		return nil
	}
	if asset.CorrelationID == nil {
		return errors.New("retry_upload asset has no correlation id")
	}

	path := uploads.StagingPath(s.appConfig.UploadStagingDir, *asset.CorrelationID)
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WithStack(err)
	}

	mime := ""
	if asset.MimeType != nil {
		mime = *asset.MimeType
	}
	remote, err := s.store.Upload(ctx, assetstore.UploadParams{
		Filename: asset.Filename,
		Folder:   asset.Folder,
		MimeType: mime,
		Data:     data,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	confirmed, _, err := s.mediaService.ConfirmRemote(ctx, remote, asset.CorrelationID)
	if err != nil {
		return errors.WithStack(err)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.log.Err(err).Error("remove staged payload error")
	}

	s.broadcaster.Broadcast(realtime.NewEvent(realtime.EventMediaSynced, confirmed))
	return nil
}

// purgeRemote deletes the store's copy of an asset removed from the
// catalog. A copy that's already gone counts as success.
func (s *Scheduler) purgeRemote(ctx context.Context, item *models.CleanupItem) error {
	if item.ExternalID == nil {
		return errors.New("purge_remote item has no external id")
	}

	err := s.store.Delete(ctx, *item.ExternalID)
	if err != nil && !assetstore.IsNotFound(err) {
		return errors.WithStack(err)
	}
	return nil
}

// orphanImport mirrors a store-only asset into the catalog.
func (s *Scheduler) orphanImport(ctx context.Context, item *models.CleanupItem) error {
	if item.ExternalID == nil {
		return errors.New("orphan_import item has no external id")
	}

	remoteAssets, err := assetstore.ListAll(ctx, s.store)
	if err != nil {
		return errors.WithStack(err)
	}

	for _, remote := range remoteAssets {
		if remote.ExternalID != *item.ExternalID {
			continue
		}
		asset, changed, err := s.mediaService.ConfirmRemote(ctx, remote, nil)
		if err != nil {
			return errors.WithStack(err)
		}
		if changed {
			s.broadcaster.Broadcast(realtime.NewEvent(realtime.EventMediaSynced, asset))
		}
		return nil
	}

	// No longer in the store either; nothing to import.
	return nil
}

// purgeCatalog hard-deletes a row whose remote copy is confirmed gone
// and whose retention grace period has elapsed. A row that has become
// synced again since the item was queued is left alone.
func (s *Scheduler) purgeCatalog(ctx context.Context, item *models.CleanupItem) error {
	if item.AssetID == nil {
		return errors.New("purge_catalog item has no asset id")
	}

	asset, err := s.mediaService.RetrieveAsset(ctx, media.RetrieveAssetOptions{
		ID:             item.AssetID,
		IncludeDeleted: true,
	})
	if err != nil {
		if errcodes.IsNotFound(err) {
			return nil
		}
		return errors.WithStack(err)
	}

	if asset.IsSynced() {
		return nil
	}
	if time.Since(asset.UpdatedAt) < s.appConfig.PurgeGracePeriod && asset.DeletedAt == nil {
		// Flagged again recently; give the reconciler another chance
		// before destroying the row.
		return errors.New("retention grace period not yet elapsed")
	}

	return errors.WithStack(s.mediaService.HardDeleteAsset(ctx, asset))
}

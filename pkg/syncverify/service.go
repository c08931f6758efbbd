package syncverify

import (
	"context"
	"fmt"
	"time"

	"github.com/davemejos/mediasync/pkg/assetstore"
	"github.com/davemejos/mediasync/pkg/cleanup"
	"github.com/davemejos/mediasync/pkg/config"
	"github.com/davemejos/mediasync/pkg/media"
	"github.com/davemejos/mediasync/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// Conflict is one external id whose catalog metadata diverges from the
// store's.
type Conflict struct {
	ExternalID string `json:"external_id"`
	Field      string `json:"field"`
	Store      string `json:"store"`
	Catalog    string `json:"catalog"`
}

// Report is the outcome of one reconciliation pass. When Partial is
// set, the store listing failed midway; MissingInCloud is left empty in
// that case because an incomplete listing can't prove absence.
type Report struct {
	CloudCount     int        `json:"cloud_count"`
	DBCount        int        `json:"db_count"`
	MissingInDB    []string   `json:"missing_in_db"`
	MissingInCloud []string   `json:"missing_in_cloud"`
	Conflicts      []Conflict `json:"conflicts"`
	Partial        bool       `json:"partial"`

	remote map[string]*assetstore.RemoteAsset
	byID   map[string]*models.MediaAsset
}

// InSync reports whether the pass found no discrepancies.
func (r *Report) InSync() bool {
	return len(r.MissingInDB) == 0 && len(r.MissingInCloud) == 0 && len(r.Conflicts) == 0
}

// FixResult counts the corrections applied by an auto-fix pass.
type FixResult struct {
	Imported    int `json:"imported"`
	Flagged     int `json:"flagged"`
	Overwritten int `json:"overwritten"`
	Failed      int `json:"failed"`
}

type Service struct {
	config *config.Config
	log    logger.Logger

	store        assetstore.Client
	mediaService *media.Service
	queue        *cleanup.Queue
}

func NewService(cfg *config.Config, db *bun.DB, store assetstore.Client) *Service {
	return &Service{
		config:       cfg,
		log:          logger.New(),
		store:        store,
		mediaService: media.NewService(db),
		queue:        cleanup.NewQueue(db),
	}
}

// Verify diffs the store's listing against the catalog. It tolerates a
// partial store listing by reporting whatever was retrievable instead
// of failing the whole pass.
func (svc *Service) Verify(ctx context.Context) (*Report, error) {
	remoteAssets, listErr := assetstore.ListAll(ctx, svc.store)
	if listErr != nil && len(remoteAssets) == 0 {
		return nil, errors.WithStack(listErr)
	}
	if listErr != nil {
		svc.log.Err(listErr).Warn("partial asset store listing")
	}

	synced, err := svc.mediaService.ListAssets(ctx, media.ListAssetsOptions{
		Statuses: []string{models.SyncStatusSynced},
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	report := &Report{
		CloudCount:     len(remoteAssets),
		DBCount:        len(synced),
		MissingInDB:    []string{},
		MissingInCloud: []string{},
		Conflicts:      []Conflict{},
		Partial:        listErr != nil,
		remote:         map[string]*assetstore.RemoteAsset{},
		byID:           map[string]*models.MediaAsset{},
	}

	for _, remote := range remoteAssets {
		report.remote[remote.ExternalID] = remote
	}
	for _, asset := range synced {
		if asset.ExternalID != nil {
			report.byID[*asset.ExternalID] = asset
		}
	}

	for _, remote := range remoteAssets {
		asset, ok := report.byID[remote.ExternalID]
		if !ok {
			report.MissingInDB = append(report.MissingInDB, remote.ExternalID)
			continue
		}
		if conflict, ok := diff(remote, asset); ok {
			report.Conflicts = append(report.Conflicts, conflict)
		}
	}

	// An incomplete listing can't prove a catalog row is gone from the
	// store, so absence is only classified on a full listing.
	if !report.Partial {
		for id := range report.byID {
			if _, ok := report.remote[id]; !ok {
				report.MissingInCloud = append(report.MissingInCloud, id)
			}
		}
	}

	return report, nil
}

// AutoFix applies the corrective policy to a verification report:
// store-only assets are imported as synced rows, catalog rows missing
// from the store are flagged and queued for retention cleanup rather
// than deleted outright, and conflicting metadata is overwritten with
// the store's.
func (svc *Service) AutoFix(ctx context.Context, report *Report) (*FixResult, error) {
	result := &FixResult{}

	for _, id := range report.MissingInDB {
		remote := report.remote[id]
		if remote == nil {
			continue
		}
		if _, _, err := svc.mediaService.ConfirmRemote(ctx, remote, nil); err != nil {
			svc.log.Err(err).Error("import store-only asset error", logger.Data{"external_id": id})
			// Hand the import to the scheduler so the store-only asset
			// isn't lost until the next manual verification.
			externalID := id
			qErr := svc.queue.Enqueue(ctx, &models.CleanupItem{
				Type:        models.CleanupTypeOrphanImport,
				ExternalID:  &externalID,
				Reason:      "import failed during reconciliation: " + err.Error(),
				MaxAttempts: svc.config.Scheduler.MaxRetries,
			})
			if qErr != nil {
				svc.log.Err(qErr).Error("enqueue orphan import error", logger.Data{"external_id": id})
			}
			result.Failed++
			continue
		}
		result.Imported++
	}

	for _, id := range report.MissingInCloud {
		asset := report.byID[id]
		if asset == nil {
			continue
		}
		if err := svc.mediaService.MarkSyncError(ctx, asset, "asset missing from store listing"); err != nil {
			svc.log.Err(err).Error("flag missing asset error", logger.Data{"external_id": id})
			result.Failed++
			continue
		}
		// The purge only becomes due after the retention grace period,
		// so a transient listing gap never destroys data.
		err := svc.queue.Enqueue(ctx, &models.CleanupItem{
			Type:          models.CleanupTypePurgeCatalog,
			AssetID:       &asset.ID,
			ExternalID:    asset.ExternalID,
			Reason:        "missing from store listing",
			NextAttemptAt: time.Now().Add(svc.config.PurgeGracePeriod),
		})
		if err != nil {
			svc.log.Err(err).Error("enqueue retention cleanup error", logger.Data{"external_id": id})
			result.Failed++
			continue
		}
		result.Flagged++
	}

	for _, conflict := range report.Conflicts {
		asset := report.byID[conflict.ExternalID]
		remote := report.remote[conflict.ExternalID]
		if asset == nil || remote == nil {
			continue
		}
		if err := svc.mediaService.OverwriteRemote(ctx, asset, remote); err != nil {
			svc.log.Err(err).Error("overwrite conflicting asset error", logger.Data{"external_id": conflict.ExternalID})
			result.Failed++
			continue
		}
		result.Overwritten++
	}

	return result, nil
}

func diff(remote *assetstore.RemoteAsset, asset *models.MediaAsset) (Conflict, bool) {
	if remote.SizeBytes > 0 && asset.SizeBytes > 0 && remote.SizeBytes != asset.SizeBytes {
		return Conflict{
			ExternalID: remote.ExternalID,
			Field:      "size_bytes",
			Store:      fmt.Sprintf("%d", remote.SizeBytes),
			Catalog:    fmt.Sprintf("%d", asset.SizeBytes),
		}, true
	}
	if remote.Checksum != "" && asset.Checksum != nil && remote.Checksum != *asset.Checksum {
		return Conflict{
			ExternalID: remote.ExternalID,
			Field:      "checksum",
			Store:      remote.Checksum,
			Catalog:    *asset.Checksum,
		}, true
	}
	if remote.Filename != "" && asset.Filename != "" && remote.Filename != asset.Filename {
		return Conflict{
			ExternalID: remote.ExternalID,
			Field:      "filename",
			Store:      remote.Filename,
			Catalog:    asset.Filename,
		}, true
	}
	return Conflict{}, false
}

package media

import (
	"context"
	"database/sql"
	"time"

	"github.com/davemejos/mediasync/pkg/assetstore"
	"github.com/davemejos/mediasync/pkg/cleanup"
	"github.com/davemejos/mediasync/pkg/errcodes"
	"github.com/davemejos/mediasync/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveAssetOptions struct {
	ID             *int
	ExternalID     *string
	CorrelationID  *string
	IncludeDeleted bool
}

type ListAssetsOptions struct {
	Limit          *int
	Offset         *int
	Statuses       []string
	Folder         *string
	ResourceType   *string
	IncludeDeleted bool

	includeTotal bool
}

type UpdateAssetOptions struct {
	Columns []string
}

// Service is the catalog store. It owns all reads and writes of
// media_assets and is the single place where the version gate lives.
type Service struct {
	db    *bun.DB
	queue *cleanup.Queue
}

func NewService(db *bun.DB) *Service {
	return &Service{
		db:    db,
		queue: cleanup.NewQueue(db),
	}
}

func (svc *Service) CreateAsset(ctx context.Context, asset *models.MediaAsset) error {
	now := time.Now()
	asset.CreatedAt = now
	asset.UpdatedAt = now

	_, err := svc.db.
		NewInsert().
		Model(asset).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) RetrieveAsset(ctx context.Context, opts RetrieveAssetOptions) (*models.MediaAsset, error) {
	asset := &models.MediaAsset{}

	q := svc.db.
		NewSelect().
		Model(asset)

	if opts.IncludeDeleted {
		q = q.WhereAllWithDeleted()
	}
	if opts.ID != nil {
		q = q.Where("ma.id = ?", *opts.ID)
	}
	if opts.ExternalID != nil {
		q = q.Where("ma.external_id = ?", *opts.ExternalID)
	}
	if opts.CorrelationID != nil {
		q = q.Where("ma.correlation_id = ?", *opts.CorrelationID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Media asset")
		}
		return nil, errors.WithStack(err)
	}

	return asset, nil
}

func (svc *Service) ListAssets(ctx context.Context, opts ListAssetsOptions) ([]*models.MediaAsset, error) {
	assets, _, err := svc.listAssetsWithTotal(ctx, opts)
	return assets, errors.WithStack(err)
}

func (svc *Service) ListAssetsWithTotal(ctx context.Context, opts ListAssetsOptions) ([]*models.MediaAsset, int, error) {
	opts.includeTotal = true
	return svc.listAssetsWithTotal(ctx, opts)
}

func (svc *Service) listAssetsWithTotal(ctx context.Context, opts ListAssetsOptions) ([]*models.MediaAsset, int, error) {
	assets := []*models.MediaAsset{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&assets).
		Order("ma.created_at DESC")

	if opts.IncludeDeleted {
		q = q.WhereAllWithDeleted()
	}
	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if len(opts.Statuses) > 0 {
		q = q.Where("ma.sync_status IN (?)", bun.In(opts.Statuses))
	}
	if opts.Folder != nil {
		q = q.Where("ma.folder = ?", *opts.Folder)
	}
	if opts.ResourceType != nil {
		q = q.Where("ma.resource_type = ?", *opts.ResourceType)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return assets, total, nil
}

func (svc *Service) UpdateAsset(ctx context.Context, asset *models.MediaAsset, opts UpdateAssetOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	asset.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(asset).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// SoftDeleteAsset removes the asset from active listings and, when it
// has a confirmed remote copy, queues a purge of that copy. The remote
// delete always happens through the queue so a provider outage can't
// fail the user-facing request.
func (svc *Service) SoftDeleteAsset(ctx context.Context, asset *models.MediaAsset) error {
	_, err := svc.db.
		NewDelete().
		Model(asset).
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	now := time.Now()
	asset.DeletedAt = &now

	if asset.ExternalID != nil {
		err = svc.queue.Enqueue(ctx, &models.CleanupItem{
			Type:       models.CleanupTypePurgeRemote,
			AssetID:    &asset.ID,
			ExternalID: asset.ExternalID,
			Reason:     "asset deleted from catalog",
		})
		if err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}

// HardDeleteAsset removes the row permanently. Only the retention
// cleanup path uses this; everything else soft-deletes.
func (svc *Service) HardDeleteAsset(ctx context.Context, asset *models.MediaAsset) error {
	_, err := svc.db.
		NewDelete().
		Model(asset).
		WherePK().
		ForceDelete().
		Exec(ctx)
	return errors.WithStack(err)
}

// ConfirmRemote applies a confirmed remote state to the catalog. It is
// the shared upsert behind webhook events, upload confirmations, and
// reconciliation imports, and it is idempotent: a replayed or stale
// notification (version at or below what the catalog already holds)
// changes nothing.
//
// Resolution order: the correlation id pins the row created by an
// optimistic upload; otherwise the external id matches an existing
// mirror row; otherwise a new synced row is created.
func (svc *Service) ConfirmRemote(ctx context.Context, remote *assetstore.RemoteAsset, correlationID *string) (*models.MediaAsset, bool, error) {
	if correlationID != nil {
		asset, err := svc.RetrieveAsset(ctx, RetrieveAssetOptions{
			CorrelationID:  correlationID,
			IncludeDeleted: true,
		})
		if err == nil {
			return svc.applyRemote(ctx, asset, remote)
		}
		if !errcodes.IsNotFound(err) {
			return nil, false, errors.WithStack(err)
		}
	}

	asset, err := svc.RetrieveAsset(ctx, RetrieveAssetOptions{
		ExternalID:     &remote.ExternalID,
		IncludeDeleted: true,
	})
	if err == nil {
		return svc.applyRemote(ctx, asset, remote)
	}
	if !errcodes.IsNotFound(err) {
		return nil, false, errors.WithStack(err)
	}

	asset = &models.MediaAsset{
		ExternalID:   &remote.ExternalID,
		Filename:     remote.Filename,
		Folder:       remote.Folder,
		ResourceType: remote.ResourceType,
		SizeBytes:    remote.SizeBytes,
		Version:      remote.Version,
		SyncStatus:   models.SyncStatusSynced,
	}
	if remote.MimeType != "" {
		asset.MimeType = &remote.MimeType
	}
	if remote.Checksum != "" {
		asset.Checksum = &remote.Checksum
	}
	if err := svc.CreateAsset(ctx, asset); err != nil {
		return nil, false, errors.WithStack(err)
	}
	return asset, true, nil
}

func (svc *Service) applyRemote(ctx context.Context, asset *models.MediaAsset, remote *assetstore.RemoteAsset) (*models.MediaAsset, bool, error) {
	// Anything at or below the stored version on a synced row is a
	// replay. A pending row accepts its own version so a provider that
	// doesn't bump versions can still confirm the optimistic upload.
	if asset.IsSynced() {
		if remote.Version <= asset.Version {
			return asset, false, nil
		}
	} else if remote.Version < asset.Version {
		return asset, false, nil
	}

	asset.ExternalID = &remote.ExternalID
	asset.Version = remote.Version
	asset.SyncStatus = models.SyncStatusSynced
	asset.ErrorDetail = nil
	columns := []string{"external_id", "version", "sync_status", "error_detail"}

	if remote.Filename != "" {
		asset.Filename = remote.Filename
		columns = append(columns, "filename")
	}
	if remote.Folder != "" {
		asset.Folder = remote.Folder
		columns = append(columns, "folder")
	}
	if remote.ResourceType != "" {
		asset.ResourceType = remote.ResourceType
		columns = append(columns, "resource_type")
	}
	if remote.MimeType != "" {
		asset.MimeType = &remote.MimeType
		columns = append(columns, "mime_type")
	}
	if remote.SizeBytes > 0 {
		asset.SizeBytes = remote.SizeBytes
		columns = append(columns, "size_bytes")
	}
	if remote.Checksum != "" {
		asset.Checksum = &remote.Checksum
		columns = append(columns, "checksum")
	}

	// A newer remote version resurrects a soft-deleted row. The store
	// is the source of truth for existence.
	if asset.DeletedAt != nil {
		asset.DeletedAt = nil
		columns = append(columns, "deleted_at")
	}

	if err := svc.UpdateAsset(ctx, asset, UpdateAssetOptions{Columns: columns}); err != nil {
		return nil, false, errors.WithStack(err)
	}
	return asset, true, nil
}

// RemoveRemote handles a confirmed remote deletion. Stale events
// (version below what the catalog holds) are ignored; unknown external
// ids are a no-op. It returns the affected asset when anything changed.
func (svc *Service) RemoveRemote(ctx context.Context, externalID string, version int64) (*models.MediaAsset, bool, error) {
	asset, err := svc.RetrieveAsset(ctx, RetrieveAssetOptions{
		ExternalID: &externalID,
	})
	if err != nil {
		if errcodes.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, errors.WithStack(err)
	}

	if version > 0 && version < asset.Version {
		return asset, false, nil
	}

	_, err = svc.db.
		NewDelete().
		Model(asset).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, false, errors.WithStack(err)
	}
	now := time.Now()
	asset.DeletedAt = &now

	return asset, true, nil
}

// OverwriteRemote replaces the catalog row's metadata with the store's,
// skipping the version gate. Used for conflict resolution, where the
// store is authoritative no matter what version the catalog holds.
func (svc *Service) OverwriteRemote(ctx context.Context, asset *models.MediaAsset, remote *assetstore.RemoteAsset) error {
	asset.ExternalID = &remote.ExternalID
	asset.Filename = remote.Filename
	asset.Folder = remote.Folder
	asset.SizeBytes = remote.SizeBytes
	asset.Version = remote.Version
	asset.SyncStatus = models.SyncStatusSynced
	asset.ErrorDetail = nil
	columns := []string{"external_id", "filename", "folder", "size_bytes", "version", "sync_status", "error_detail"}

	if remote.ResourceType != "" {
		asset.ResourceType = remote.ResourceType
		columns = append(columns, "resource_type")
	}
	if remote.MimeType != "" {
		asset.MimeType = &remote.MimeType
		columns = append(columns, "mime_type")
	}
	if remote.Checksum != "" {
		asset.Checksum = &remote.Checksum
		columns = append(columns, "checksum")
	}

	return errors.WithStack(svc.UpdateAsset(ctx, asset, UpdateAssetOptions{Columns: columns}))
}

// MarkSyncError flags the asset as out of sync with the store.
func (svc *Service) MarkSyncError(ctx context.Context, asset *models.MediaAsset, detail string) error {
	asset.SyncStatus = models.SyncStatusError
	asset.ErrorDetail = &detail
	return errors.WithStack(svc.UpdateAsset(ctx, asset, UpdateAssetOptions{
		Columns: []string{"sync_status", "error_detail"},
	}))
}

// CountByStatus returns active asset counts keyed by sync status.
func (svc *Service) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows := []struct {
		SyncStatus string `bun:"sync_status"`
		Count      int    `bun:"count"`
	}{}

	err := svc.db.NewSelect().
		Model((*models.MediaAsset)(nil)).
		Column("sync_status").
		ColumnExpr("count(*) AS count").
		Group("sync_status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	counts := map[string]int{}
	for _, row := range rows {
		counts[row.SyncStatus] = row.Count
	}
	return counts, nil
}

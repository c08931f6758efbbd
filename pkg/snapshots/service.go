package snapshots

import (
	"context"
	"time"

	"github.com/davemejos/mediasync/pkg/media"
	"github.com/davemejos/mediasync/pkg/models"
	"github.com/davemejos/mediasync/pkg/syncops"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/uptrace/bun"
)

// Error-rate thresholds for the computed health classification.
const (
	warningErrorRate  = 0.05
	criticalErrorRate = 0.25
)

type ListSnapshotsOptions struct {
	Limit  *int
	Offset *int
}

type Service struct {
	db           *bun.DB
	log          logger.Logger
	mediaService *media.Service
	opService    *syncops.Service
}

func NewService(db *bun.DB) *Service {
	return &Service{
		db:           db,
		log:          logger.New(),
		mediaService: media.NewService(db),
		opService:    syncops.NewService(db),
	}
}

// TakeSnapshot computes and persists one rollup row. Snapshots are
// append-only; there is no update path.
func (svc *Service) TakeSnapshot(ctx context.Context, trigger string) (*models.SyncStatusSnapshot, error) {
	counts, err := svc.mediaService.CountByStatus(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	active, err := svc.opService.CountActive(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	latency, err := svc.avgSyncLatencyMs(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	snapshot := &models.SyncStatusSnapshot{
		CreatedAt:        time.Now(),
		SyncedAssets:     counts[models.SyncStatusSynced],
		PendingAssets:    counts[models.SyncStatusPending],
		ErrorAssets:      counts[models.SyncStatusError],
		ActiveOperations: active,
		AvgSyncLatencyMs: latency,
		Trigger:          trigger,
	}
	snapshot.TotalAssets = snapshot.SyncedAssets + snapshot.PendingAssets + snapshot.ErrorAssets
	if snapshot.TotalAssets > 0 {
		snapshot.ErrorRate = float64(snapshot.ErrorAssets) / float64(snapshot.TotalAssets)
	}
	snapshot.Health = classify(snapshot.ErrorRate)

	_, err = svc.db.
		NewInsert().
		Model(snapshot).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return snapshot, nil
}

// Latest returns the most recent snapshot, or nil when none exists yet.
func (svc *Service) Latest(ctx context.Context) (*models.SyncStatusSnapshot, error) {
	snapshots, err := svc.ListSnapshots(ctx, ListSnapshotsOptions{Limit: pointerutil.Int(1)})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	return snapshots[0], nil
}

func (svc *Service) ListSnapshots(ctx context.Context, opts ListSnapshotsOptions) ([]*models.SyncStatusSnapshot, error) {
	snapshots := []*models.SyncStatusSnapshot{}

	q := svc.db.
		NewSelect().
		Model(&snapshots).
		Order("ss.created_at DESC").
		Order("ss.id DESC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, errors.WithStack(err)
	}
	return snapshots, nil
}

// avgSyncLatencyMs averages created-to-confirmed time over completed
// upload operations, the closest durable proxy for how long a sync
// takes end to end.
func (svc *Service) avgSyncLatencyMs(ctx context.Context) (float64, error) {
	ops := []*models.SyncOperation{}
	err := svc.db.
		NewSelect().
		Model(&ops).
		Column("started_at", "completed_at").
		Where("so.type = ?", models.OperationTypeUpload).
		Where("so.status = ?", models.OperationStatusCompleted).
		Where("so.completed_at IS NOT NULL").
		Order("so.id DESC").
		Limit(100).
		Scan(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	if len(ops) == 0 {
		return 0, nil
	}

	var total float64
	for _, op := range ops {
		if op.StartedAt == nil || op.CompletedAt == nil {
			continue
		}
		total += float64(op.CompletedAt.Sub(*op.StartedAt).Milliseconds())
	}
	return total / float64(len(ops)), nil
}

// Run writes a snapshot on the given interval until the context is
// cancelled. Used by the server for the periodic rollup.
func (svc *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.TakeSnapshot(ctx, models.SnapshotTriggerScheduled); err != nil {
				svc.log.Err(err).Error("take scheduled snapshot error")
			}
		}
	}
}

func classify(errorRate float64) string {
	switch {
	case errorRate > criticalErrorRate:
		return models.HealthCritical
	case errorRate > warningErrorRate:
		return models.HealthWarning
	}
	return models.HealthHealthy
}

package cleanup

import (
	"context"
	"time"

	"github.com/davemejos/mediasync/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type ListItemsOptions struct {
	Limit    *int
	Offset   *int
	Statuses []string
	Types    []string
}

// Queue is the persistent corrective-action queue shared by the upload
// coordinator, webhook ingestor, reconciler, and scheduler. Items move
// pending -> in_progress -> completed/failed, with a bounded number of
// retries and exponential backoff between attempts.
type Queue struct {
	db *bun.DB
}

func NewQueue(db *bun.DB) *Queue {
	return &Queue{db}
}

// Enqueue inserts a pending item. Duplicate pending items for the same
// asset and type are collapsed so repeated failures don't pile up work.
func (q *Queue) Enqueue(ctx context.Context, item *models.CleanupItem) error {
	if item.AssetID != nil {
		count, err := q.db.NewSelect().
			Model((*models.CleanupItem)(nil)).
			Where("type = ?", item.Type).
			Where("asset_id = ?", *item.AssetID).
			Where("status IN (?)", bun.In([]string{models.CleanupStatusPending, models.CleanupStatusInProgress})).
			Count(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if count > 0 {
			return nil
		}
	}

	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.Status = models.CleanupStatusPending
	if item.NextAttemptAt.IsZero() {
		item.NextAttemptAt = now
	}

	_, err := q.db.NewInsert().
		Model(item).
		Returning("*").
		Exec(ctx)
	return errors.WithStack(err)
}

// ClaimDue atomically claims up to limit due pending items for the given
// worker. The claim is a compare-and-set on status, so concurrent ticks
// and a manual force-cleanup never hand out the same item twice.
func (q *Queue) ClaimDue(ctx context.Context, claimedBy string, limit int) ([]*models.CleanupItem, error) {
	candidates := []*models.CleanupItem{}
	err := q.db.NewSelect().
		Model(&candidates).
		Where("cq.status = ?", models.CleanupStatusPending).
		Where("cq.next_attempt_at <= ?", time.Now()).
		Order("cq.next_attempt_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	claimed := make([]*models.CleanupItem, 0, len(candidates))
	for _, item := range candidates {
		item.Status = models.CleanupStatusInProgress
		item.ClaimedBy = &claimedBy
		item.UpdatedAt = time.Now()

		res, err := q.db.NewUpdate().
			Model(item).
			Column("status", "claimed_by", "updated_at").
			Where("cq.id = ?", item.ID).
			Where("cq.status = ?", models.CleanupStatusPending).
			Exec(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if n == 1 {
			claimed = append(claimed, item)
		}
	}

	return claimed, nil
}

// Complete marks a claimed item as done.
func (q *Queue) Complete(ctx context.Context, item *models.CleanupItem) error {
	now := time.Now()
	item.Status = models.CleanupStatusCompleted
	item.CompletedAt = &now
	item.UpdatedAt = now

	_, err := q.db.NewUpdate().
		Model(item).
		Column("status", "completed_at", "updated_at").
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}

// Fail records a failed attempt. The item goes back to pending with an
// exponentially backed-off next_attempt_at until its retry budget runs
// out, at which point it is parked as failed.
func (q *Queue) Fail(ctx context.Context, item *models.CleanupItem, cause error, backoff time.Duration) error {
	now := time.Now()
	item.Attempts++
	item.UpdatedAt = now
	msg := cause.Error()
	item.LastError = &msg
	item.ClaimedBy = nil

	if item.Exhausted() {
		item.Status = models.CleanupStatusFailed
	} else {
		item.Status = models.CleanupStatusPending
		item.NextAttemptAt = now.Add(backoff << (item.Attempts - 1))
	}

	_, err := q.db.NewUpdate().
		Model(item).
		Column("status", "attempts", "next_attempt_at", "last_error", "claimed_by", "updated_at").
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}

// Requeue resets failed items of the given types back to pending with a
// fresh retry budget. With no types it resets everything failed.
func (q *Queue) Requeue(ctx context.Context, types []string) (int, error) {
	uq := q.db.NewUpdate().
		Model((*models.CleanupItem)(nil)).
		Set("status = ?", models.CleanupStatusPending).
		Set("attempts = 0").
		Set("next_attempt_at = ?", time.Now()).
		Set("updated_at = ?", time.Now()).
		Where("status = ?", models.CleanupStatusFailed)
	if len(types) > 0 {
		uq = uq.Where("type IN (?)", bun.In(types))
	}

	res, err := uq.Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return int(n), nil
}

func (q *Queue) ListItems(ctx context.Context, opts ListItemsOptions) ([]*models.CleanupItem, error) {
	items := []*models.CleanupItem{}

	sq := q.db.NewSelect().
		Model(&items).
		Order("cq.next_attempt_at ASC")

	if opts.Limit != nil {
		sq = sq.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		sq = sq.Offset(*opts.Offset)
	}
	if len(opts.Statuses) > 0 {
		sq = sq.Where("cq.status IN (?)", bun.In(opts.Statuses))
	}
	if len(opts.Types) > 0 {
		sq = sq.Where("cq.type IN (?)", bun.In(opts.Types))
	}

	if err := sq.Scan(ctx); err != nil {
		return nil, errors.WithStack(err)
	}
	return items, nil
}

// Counts returns the number of items per status, for health snapshots.
func (q *Queue) Counts(ctx context.Context) (map[string]int, error) {
	rows := []struct {
		Status string `bun:"status"`
		Count  int    `bun:"count"`
	}{}

	err := q.db.NewSelect().
		Model((*models.CleanupItem)(nil)).
		Column("status").
		ColumnExpr("count(*) AS count").
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	counts := map[string]int{}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

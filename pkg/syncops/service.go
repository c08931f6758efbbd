package syncops

import (
	"context"
	"database/sql"
	"time"

	"github.com/davemejos/mediasync/pkg/errcodes"
	"github.com/davemejos/mediasync/pkg/models"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

type RetrieveOperationOptions struct {
	ID *int
}

type ListOperationsOptions struct {
	Limit    *int
	Offset   *int
	Statuses []string
	Type     *string
	Source   *string

	includeTotal bool
}

type UpdateOperationOptions struct {
	Columns []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateOperation(ctx context.Context, op *models.SyncOperation) error {
	now := time.Now()
	if op.CreatedAt.IsZero() {
		op.CreatedAt = now
	}
	op.UpdatedAt = op.CreatedAt
	if op.StartedAt == nil {
		op.StartedAt = &now
	}

	if op.Detail == "" && op.DetailParsed != nil {
		data, err := json.Marshal(op.DetailParsed)
		if err != nil {
			return errors.WithStack(err)
		}
		op.Detail = string(data)
	}

	_, err := svc.db.
		NewInsert().
		Model(op).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) RetrieveOperation(ctx context.Context, opts RetrieveOperationOptions) (*models.SyncOperation, error) {
	op := &models.SyncOperation{}

	q := svc.db.
		NewSelect().
		Model(op)

	if opts.ID != nil {
		q = q.Where("so.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Sync operation")
		}
		return nil, errors.WithStack(err)
	}

	if err := op.UnmarshalDetail(); err != nil {
		return nil, errors.WithStack(err)
	}

	return op, nil
}

func (svc *Service) ListOperations(ctx context.Context, opts ListOperationsOptions) ([]*models.SyncOperation, error) {
	ops, _, err := svc.listOperationsWithTotal(ctx, opts)
	return ops, errors.WithStack(err)
}

func (svc *Service) ListOperationsWithTotal(ctx context.Context, opts ListOperationsOptions) ([]*models.SyncOperation, int, error) {
	opts.includeTotal = true
	return svc.listOperationsWithTotal(ctx, opts)
}

func (svc *Service) listOperationsWithTotal(ctx context.Context, opts ListOperationsOptions) ([]*models.SyncOperation, int, error) {
	ops := []*models.SyncOperation{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&ops).
		Order("so.created_at DESC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if opts.Statuses != nil {
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			for _, s := range opts.Statuses {
				sq = sq.WhereOr("so.status = ?", s)
			}
			return sq
		})
	}
	if opts.Type != nil {
		q = q.Where("so.type = ?", *opts.Type)
	}
	if opts.Source != nil {
		q = q.Where("so.source = ?", *opts.Source)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	for _, op := range ops {
		if err := op.UnmarshalDetail(); err != nil {
			return nil, 0, errors.WithStack(err)
		}
	}

	return ops, total, nil
}

// CountActive returns the number of operations that haven't reached a
// terminal status yet.
func (svc *Service) CountActive(ctx context.Context) (int, error) {
	count, err := svc.db.NewSelect().
		Model((*models.SyncOperation)(nil)).
		WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Where("status = ?", models.OperationStatusPending).
				WhereOr("status = ?", models.OperationStatusInProgress)
		}).
		Count(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return count, nil
}

// UpdateOperation persists the given columns. Operations that already
// reached a terminal status are immutable; attempting to transition one
// is a conflict. Completing an operation forces progress to 100.
func (svc *Service) UpdateOperation(ctx context.Context, op *models.SyncOperation, opts UpdateOperationOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	current := &models.SyncOperation{}
	err := svc.db.
		NewSelect().
		Model(current).
		Column("status").
		Where("so.id = ?", op.ID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Sync operation")
		}
		return errors.WithStack(err)
	}
	if current.IsTerminal() {
		return errcodes.Conflict("Sync operation has already finished.")
	}

	now := time.Now()
	op.UpdatedAt = now
	columns := append(opts.Columns, "updated_at")

	if op.Status == models.OperationStatusCompleted {
		op.Progress = 100
		columns = appendIfMissing(columns, "progress")
	}
	if op.IsTerminal() && op.CompletedAt == nil {
		op.CompletedAt = &now
		columns = appendIfMissing(columns, "completed_at")
	}

	_, err = svc.db.
		NewUpdate().
		Model(op).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func appendIfMissing(columns []string, column string) []string {
	for _, c := range columns {
		if c == column {
			return columns
		}
	}
	return append(columns, column)
}

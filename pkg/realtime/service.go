package realtime

import (
	"context"
	"time"

	"github.com/davemejos/mediasync/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type ListConnectionsOptions struct {
	Statuses []string
}

// Service persists connection lifecycle rows so the admin UI can observe
// who is subscribed and how healthy their connections are.
type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// UpsertConnection records a connect or heartbeat for the given client.
func (svc *Service) UpsertConnection(ctx context.Context, conn *models.ConnectionStatus) error {
	now := time.Now()
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now
	if conn.LastPingAt.IsZero() {
		conn.LastPingAt = now
	}

	_, err := svc.db.
		NewInsert().
		Model(conn).
		On("CONFLICT (client_id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("last_ping_at = EXCLUDED.last_ping_at").
		Set("reconnect_attempts = EXCLUDED.reconnect_attempts").
		Set("latency_ms = EXCLUDED.latency_ms").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// MarkDisconnected flips the row for the given client without deleting
// it, so reconnect counts survive across sessions.
func (svc *Service) MarkDisconnected(ctx context.Context, clientID string) error {
	_, err := svc.db.
		NewUpdate().
		Model((*models.ConnectionStatus)(nil)).
		Set("status = ?", models.ConnectionStatusDisconnected).
		Set("updated_at = ?", time.Now()).
		Where("client_id = ?", clientID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) ListConnections(ctx context.Context, opts ListConnectionsOptions) ([]*models.ConnectionStatus, error) {
	conns := []*models.ConnectionStatus{}

	q := svc.db.
		NewSelect().
		Model(&conns).
		Order("cs.client_id ASC")

	if opts.Statuses != nil {
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			for _, s := range opts.Statuses {
				sq = sq.WhereOr("cs.status = ?", s)
			}
			return sq
		})
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return conns, nil
}

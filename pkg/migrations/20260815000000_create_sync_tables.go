package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE media_assets (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				external_id TEXT,
				correlation_id TEXT,
				filename TEXT NOT NULL,
				folder TEXT NOT NULL DEFAULT '',
				resource_type TEXT NOT NULL DEFAULT 'image',
				mime_type TEXT,
				size_bytes INTEGER NOT NULL DEFAULT 0,
				checksum TEXT,
				version INTEGER NOT NULL DEFAULT 0,
				sync_status TEXT NOT NULL DEFAULT 'pending',
				error_detail TEXT,
				deleted_at TIMESTAMPTZ
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		// external_id is unique among rows that have one; rows created
		// optimistically before first sync don't.
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_media_assets_external_id ON media_assets(external_id) WHERE external_id IS NOT NULL`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_media_assets_correlation_id ON media_assets(correlation_id) WHERE correlation_id IS NOT NULL`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_media_assets_sync_status ON media_assets(sync_status)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE sync_operations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				type TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending',
				source TEXT NOT NULL DEFAULT 'api',
				progress INTEGER NOT NULL DEFAULT 0,
				total_items INTEGER NOT NULL DEFAULT 0,
				processed_items INTEGER NOT NULL DEFAULT 0,
				failed_items INTEGER NOT NULL DEFAULT 0,
				detail TEXT,
				error_detail TEXT,
				started_at TIMESTAMPTZ,
				completed_at TIMESTAMPTZ
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE INDEX ix_sync_operations_status_created_at ON sync_operations(status, created_at)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE connection_status (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				client_id TEXT NOT NULL UNIQUE,
				status TEXT NOT NULL DEFAULT 'connected',
				last_ping_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				reconnect_attempts INTEGER NOT NULL DEFAULT 0,
				latency_ms INTEGER NOT NULL DEFAULT 0
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE sync_status_snapshots (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				total_assets INTEGER NOT NULL DEFAULT 0,
				synced_assets INTEGER NOT NULL DEFAULT 0,
				pending_assets INTEGER NOT NULL DEFAULT 0,
				error_assets INTEGER NOT NULL DEFAULT 0,
				active_operations INTEGER NOT NULL DEFAULT 0,
				health TEXT NOT NULL DEFAULT 'healthy',
				error_rate REAL NOT NULL DEFAULT 0,
				avg_sync_latency_ms REAL NOT NULL DEFAULT 0,
				triggered_by TEXT NOT NULL DEFAULT 'scheduled'
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE cleanup_queue (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				type TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending',
				asset_id INTEGER REFERENCES media_assets(id) ON DELETE SET NULL,
				external_id TEXT,
				reason TEXT NOT NULL DEFAULT '',
				attempts INTEGER NOT NULL DEFAULT 0,
				max_attempts INTEGER NOT NULL DEFAULT 3,
				next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				last_error TEXT,
				claimed_by TEXT,
				completed_at TIMESTAMPTZ
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		// Claim query scans by status and due time.
		_, err = db.Exec(`CREATE INDEX ix_cleanup_queue_status_next_attempt_at ON cleanup_queue(status, next_attempt_at)`)
		if err != nil {
			return errors.WithStack(err)
		}

		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		for _, table := range []string{
			"cleanup_queue",
			"sync_status_snapshots",
			"connection_status",
			"sync_operations",
			"media_assets",
		} {
			_, err := db.Exec(`DROP TABLE IF EXISTS ` + table)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}

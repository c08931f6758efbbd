package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/davemejos/mediasync/pkg/assetstore"
	"github.com/davemejos/mediasync/pkg/config"
	"github.com/davemejos/mediasync/pkg/database"
	"github.com/davemejos/mediasync/pkg/errcodes"
	"github.com/davemejos/mediasync/pkg/migrations"
	"github.com/davemejos/mediasync/pkg/realtime"
	"github.com/davemejos/mediasync/pkg/scheduler"
	"github.com/davemejos/mediasync/pkg/server"
	"github.com/davemejos/mediasync/pkg/snapshots"
	"github.com/davemejos/mediasync/pkg/uploads"
	"github.com/davemejos/mediasync/pkg/version"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting mediasync", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	if err := os.MkdirAll(cfg.UploadStagingDir, 0o755); err != nil {
		log.Err(err).Fatal("staging directory error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	store := assetstore.New(cfg)

	hub := realtime.NewHub(db)
	hub.Start()

	coordinator := uploads.NewCoordinator(cfg, db, store, hub)
	sched := scheduler.New(cfg, db, store, hub)

	srv, err := server.New(cfg, db, hub, store, coordinator, sched)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}

		log.Info("server started", logger.Data{"port": listener.Addr().(*net.TCPAddr).Port})

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	if cfg.Scheduler.Enabled {
		if err := sched.Start(); err != nil {
			log.Err(err).Fatal("scheduler start error")
		}
		log.Info("scheduler started")
	}

	snapshotCtx, stopSnapshots := context.WithCancel(ctx)
	go snapshots.NewService(db).Run(snapshotCtx, cfg.SnapshotInterval)
	log.Info("snapshot writer started", logger.Data{"interval": cfg.SnapshotInterval.String()})

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	coordinator.Wait()
	log.Info("in-flight uploads drained")

	// Stop returns a conflict when the scheduler was never started or an
	// operator already stopped it through the API.
	if err := sched.Stop(); err != nil && !errcodes.IsConflict(err) {
		log.Err(err).Error("scheduler stop error")
	}
	log.Info("scheduler shutdown")

	stopSnapshots()
	hub.Stop()
	log.Info("realtime hub shutdown")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}

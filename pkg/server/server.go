package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/davemejos/mediasync/pkg/assetstore"
	"github.com/davemejos/mediasync/pkg/binder"
	"github.com/davemejos/mediasync/pkg/config"
	"github.com/davemejos/mediasync/pkg/errcodes"
	"github.com/davemejos/mediasync/pkg/media"
	"github.com/davemejos/mediasync/pkg/realtime"
	"github.com/davemejos/mediasync/pkg/scheduler"
	"github.com/davemejos/mediasync/pkg/snapshots"
	"github.com/davemejos/mediasync/pkg/syncops"
	"github.com/davemejos/mediasync/pkg/syncverify"
	"github.com/davemejos/mediasync/pkg/testutils"
	"github.com/davemejos/mediasync/pkg/uploads"
	"github.com/davemejos/mediasync/pkg/webhooks"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/uptrace/bun"
)

// New wires all routes onto one echo server. The hub, coordinator, and
// scheduler are constructed by the caller because their lifecycles
// (start, drain, stop) belong to the process, not to a request.
func New(cfg *config.Config, db *bun.DB, hub *realtime.Hub, store assetstore.Client, coordinator *uploads.Coordinator, sched *scheduler.Scheduler) (*http.Server, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)

	media.RegisterRoutes(e, db, hub)
	uploads.RegisterRoutes(e, coordinator)
	webhooks.RegisterRoutes(e, db, cfg, hub)
	syncops.RegisterRoutes(e, db)
	syncverify.RegisterRoutes(e, db, cfg, store)
	snapshots.RegisterRoutes(e, db)
	scheduler.RegisterRoutes(e, sched)
	realtime.RegisterRoutes(e, db, hub)

	if cfg.Environment == "test" {
		testutils.RegisterRoutes(e, db)
	}

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}

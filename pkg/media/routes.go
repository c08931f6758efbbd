package media

import (
	"github.com/davemejos/mediasync/pkg/realtime"
	"github.com/davemejos/mediasync/pkg/syncops"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers all media catalog routes.
func RegisterRoutes(e *echo.Echo, db *bun.DB, broadcaster realtime.Broadcaster) {
	h := &handler{
		mediaService: NewService(db),
		opService:    syncops.NewService(db),
		broadcaster:  broadcaster,
	}

	e.GET("/media", h.list)
	e.GET("/media/:id", h.retrieve)
	e.DELETE("/media/:id", h.destroy)
}

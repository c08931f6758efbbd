package snapshots

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers the sync status rollup routes.
func RegisterRoutes(e *echo.Echo, db *bun.DB) {
	h := &handler{snapshotService: NewService(db)}

	e.GET("/sync/status", h.status)
	e.POST("/sync/status", h.take)
	e.GET("/sync/status/history", h.list)
}

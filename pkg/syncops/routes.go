package syncops

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers the sync operation audit routes.
func RegisterRoutes(e *echo.Echo, db *bun.DB) {
	h := &handler{
		operationService: NewService(db),
	}

	ops := e.Group("/operations")
	ops.GET("", h.list)
	ops.GET("/:id", h.retrieve)
}

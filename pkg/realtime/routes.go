package realtime

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers the websocket upgrade endpoint and the
// connection observability routes.
func RegisterRoutes(e *echo.Echo, db *bun.DB, hub *Hub) {
	h := &handler{
		hub:     hub,
		service: NewService(db),
	}

	rt := e.Group("/realtime")
	rt.GET("/ws", h.subscribe)
	rt.GET("/connections", h.listConnections)
}

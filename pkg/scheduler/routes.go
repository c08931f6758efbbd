package scheduler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the scheduler control routes. The scheduler
// itself is constructed by the server so its lifecycle outlives any
// single request.
func RegisterRoutes(e *echo.Echo, s *Scheduler) {
	h := &handler{scheduler: s}

	e.POST("/scheduler", h.control)
	e.POST("/scheduler/config", h.updateConfig)
	e.POST("/scheduler/cleanup", h.forceCleanup)
	e.GET("/scheduler/status", h.status)
}

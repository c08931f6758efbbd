package uploads

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the upload submission route. The coordinator
// is shared with the server so shutdown can wait for in-flight
// confirmations.
func RegisterRoutes(e *echo.Echo, coordinator *Coordinator) {
	h := &handler{coordinator: coordinator}

	e.POST("/media", h.submit)
}

package webhooks

import (
	"github.com/davemejos/mediasync/pkg/config"
	"github.com/davemejos/mediasync/pkg/media"
	"github.com/davemejos/mediasync/pkg/realtime"
	"github.com/davemejos/mediasync/pkg/syncops"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers the provider webhook endpoint.
func RegisterRoutes(e *echo.Echo, db *bun.DB, cfg *config.Config, broadcaster realtime.Broadcaster) {
	h := &handler{
		config:       cfg,
		mediaService: media.NewService(db),
		opService:    syncops.NewService(db),
		broadcaster:  broadcaster,
	}

	e.POST("/webhooks/asset-provider", h.receive)
}

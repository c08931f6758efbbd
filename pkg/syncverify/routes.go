package syncverify

import (
	"github.com/davemejos/mediasync/pkg/assetstore"
	"github.com/davemejos/mediasync/pkg/config"
	"github.com/davemejos/mediasync/pkg/syncops"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers the reconciliation endpoints.
func RegisterRoutes(e *echo.Echo, db *bun.DB, cfg *config.Config, store assetstore.Client) {
	h := &handler{
		verifyService: NewService(cfg, db, store),
		opService:     syncops.NewService(db),
	}

	e.GET("/sync/verify", h.verify)
	e.POST("/sync/verify", h.verifyAndFix)
}

package media

import (
	"net/http"
	"strconv"

	"github.com/davemejos/mediasync/pkg/errcodes"
	"github.com/davemejos/mediasync/pkg/models"
	"github.com/davemejos/mediasync/pkg/realtime"
	"github.com/davemejos/mediasync/pkg/syncops"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	mediaService *Service
	opService    *syncops.Service
	broadcaster  realtime.Broadcaster
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Media asset")
	}

	asset, err := h.mediaService.RetrieveAsset(ctx, RetrieveAssetOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, asset))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := ListMediaQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	assets, total, err := h.mediaService.ListAssetsWithTotal(ctx, ListAssetsOptions{
		Limit:          &params.Limit,
		Offset:         &params.Offset,
		Statuses:       params.Statuses,
		Folder:         params.Folder,
		ResourceType:   params.ResourceType,
		IncludeDeleted: params.IncludeDeleted,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Media []*models.MediaAsset `json:"media"`
		Total int                  `json:"total"`
	}{assets, total}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) destroy(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Media asset")
	}

	asset, err := h.mediaService.RetrieveAsset(ctx, RetrieveAssetOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	if err := h.mediaService.SoftDeleteAsset(ctx, asset); err != nil {
		return errors.WithStack(err)
	}

	// The catalog side of the delete is done; the remote purge runs
	// through the cleanup queue.
	op := &models.SyncOperation{
		Type:   models.OperationTypeDelete,
		Status: models.OperationStatusCompleted,
		Source: models.OperationSourceAPI,
		DetailParsed: map[string]interface{}{
			"asset_id":     asset.ID,
			"external_id":  asset.ExternalID,
			"purge_queued": asset.ExternalID != nil,
		},
	}
	if err := h.opService.CreateOperation(ctx, op); err != nil {
		return errors.WithStack(err)
	}

	h.broadcaster.Broadcast(realtime.NewEvent(realtime.EventMediaDeleted, asset))

	return errors.WithStack(c.JSON(http.StatusOK, asset))
}

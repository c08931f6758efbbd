package testutils

import (
	"net/http"

	"github.com/davemejos/mediasync/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type handler struct {
	db *bun.DB
}

// createAssetRequest is the request body for seeding a catalog row.
type createAssetRequest struct {
	ExternalID   *string `json:"external_id"`
	Filename     string  `json:"filename"`
	Folder       string  `json:"folder"`
	ResourceType string  `json:"resource_type"`
	SyncStatus   string  `json:"sync_status"`
	SizeBytes    int64   `json:"size_bytes"`
	Version      int64   `json:"version"`
}

// createAsset seeds a media asset row directly, bypassing the upload
// pipeline so e2e suites can set up arbitrary catalog states.
// POST /test/assets.
func (h *handler) createAsset(c echo.Context) error {
	ctx := c.Request().Context()

	var req createAssetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	if req.Filename == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Filename is required")
	}
	if req.SyncStatus == "" {
		req.SyncStatus = models.SyncStatusSynced
	}
	if req.ResourceType == "" {
		req.ResourceType = "image"
	}

	asset := &models.MediaAsset{
		ExternalID:   req.ExternalID,
		Filename:     req.Filename,
		Folder:       req.Folder,
		ResourceType: req.ResourceType,
		SyncStatus:   req.SyncStatus,
		SizeBytes:    req.SizeBytes,
		Version:      req.Version,
	}

	_, err := h.db.NewInsert().Model(asset).Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to create asset")
	}

	return c.JSON(http.StatusCreated, asset)
}

// deletedResponse is the response body for the wipe endpoints.
type deletedResponse struct {
	Deleted int `json:"deleted"`
}

// deleteAllAssets hard-deletes every media asset, including soft-deleted
// rows.
// DELETE /test/assets.
func (h *handler) deleteAllAssets(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.db.NewDelete().
		Model((*models.MediaAsset)(nil)).
		Where("1=1").
		ForceDelete().
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to delete assets")
	}

	deleted, _ := result.RowsAffected()

	return c.JSON(http.StatusOK, deletedResponse{
		Deleted: int(deleted),
	})
}

// deleteAllOperations wipes the sync operation log and status snapshots.
// DELETE /test/operations.
func (h *handler) deleteAllOperations(c echo.Context) error {
	ctx := c.Request().Context()

	_, err := h.db.NewDelete().
		Model((*models.SyncStatusSnapshot)(nil)).
		Where("1=1").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to delete snapshots")
	}

	result, err := h.db.NewDelete().
		Model((*models.SyncOperation)(nil)).
		Where("1=1").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to delete operations")
	}

	deleted, _ := result.RowsAffected()

	return c.JSON(http.StatusOK, deletedResponse{
		Deleted: int(deleted),
	})
}

// deleteCleanupQueue wipes the cleanup queue.
// DELETE /test/cleanup-queue.
func (h *handler) deleteCleanupQueue(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.db.NewDelete().
		Model((*models.CleanupItem)(nil)).
		Where("1=1").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to delete cleanup items")
	}

	deleted, _ := result.RowsAffected()

	return c.JSON(http.StatusOK, deletedResponse{
		Deleted: int(deleted),
	})
}

package snapshots

import (
	"net/http"

	"github.com/davemejos/mediasync/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	snapshotService *Service
}

// status returns the latest snapshot, computing one on the fly when the
// table is still empty.
func (h *handler) status(c echo.Context) error {
	ctx := c.Request().Context()

	snapshot, err := h.snapshotService.Latest(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if snapshot == nil {
		snapshot, err = h.snapshotService.TakeSnapshot(ctx, models.SnapshotTriggerManual)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	return errors.WithStack(c.JSON(http.StatusOK, snapshot))
}

func (h *handler) take(c echo.Context) error {
	ctx := c.Request().Context()

	snapshot, err := h.snapshotService.TakeSnapshot(ctx, models.SnapshotTriggerManual)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, snapshot))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListSnapshotsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	snapshots, err := h.snapshotService.ListSnapshots(ctx, ListSnapshotsOptions{
		Limit:  &params.Limit,
		Offset: &params.Offset,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Snapshots []*models.SyncStatusSnapshot `json:"snapshots"`
	}{snapshots}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

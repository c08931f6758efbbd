package syncops

import (
	"net/http"
	"strconv"

	"github.com/davemejos/mediasync/pkg/errcodes"
	"github.com/davemejos/mediasync/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	operationService *Service
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Sync operation")
	}

	op, err := h.operationService.RetrieveOperation(ctx, RetrieveOperationOptions{
		ID: &id,
	})
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, op))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListOperationsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	ops, total, err := h.operationService.ListOperationsWithTotal(ctx, ListOperationsOptions{
		Limit:    &params.Limit,
		Offset:   &params.Offset,
		Statuses: params.Status,
		Type:     params.Type,
		Source:   params.Source,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Operations []*models.SyncOperation `json:"operations"`
		Total      int                     `json:"total"`
	}{ops, total}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

package syncverify

import (
	"net/http"

	"github.com/davemejos/mediasync/pkg/models"
	"github.com/davemejos/mediasync/pkg/syncops"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
)

type handler struct {
	verifyService *Service
	opService     *syncops.Service
}

func (h *handler) verify(c echo.Context) error {
	ctx := c.Request().Context()

	report, err := h.verifyService.Verify(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, report))
}

func (h *handler) verifyAndFix(c echo.Context) error {
	ctx := c.Request().Context()
	log := logger.FromEchoContext(c)

	params := VerifyPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	op := &models.SyncOperation{
		Type:   models.OperationTypeFullSync,
		Status: models.OperationStatusInProgress,
		Source: models.OperationSourceManual,
		DetailParsed: map[string]interface{}{
			"auto_fix": params.AutoFix,
		},
	}
	if err := h.opService.CreateOperation(ctx, op); err != nil {
		return errors.WithStack(err)
	}

	report, err := h.verifyService.Verify(ctx)
	if err != nil {
		h.failOperation(c, op, err)
		return errors.WithStack(err)
	}

	resp := struct {
		Report *Report    `json:"report"`
		Fixed  *FixResult `json:"fixed,omitempty"`
	}{Report: report}

	op.TotalItems = len(report.MissingInDB) + len(report.MissingInCloud) + len(report.Conflicts)

	if params.AutoFix {
		fixed, err := h.verifyService.AutoFix(ctx, report)
		if err != nil {
			h.failOperation(c, op, err)
			return errors.WithStack(err)
		}
		resp.Fixed = fixed
		op.ProcessedItems = fixed.Imported + fixed.Flagged + fixed.Overwritten
		op.FailedItems = fixed.Failed
	}

	op.Status = models.OperationStatusCompleted
	err = h.opService.UpdateOperation(ctx, op, syncops.UpdateOperationOptions{
		Columns: []string{"status", "total_items", "processed_items", "failed_items"},
	})
	if err != nil {
		log.Err(err).Error("complete full sync operation error")
	}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) failOperation(c echo.Context, op *models.SyncOperation, cause error) {
	msg := cause.Error()
	op.Status = models.OperationStatusFailed
	op.ErrorDetail = &msg
	err := h.opService.UpdateOperation(c.Request().Context(), op, syncops.UpdateOperationOptions{
		Columns: []string{"status", "error_detail"},
	})
	if err != nil {
		logger.FromEchoContext(c).Err(err).Error("fail full sync operation error")
	}
}

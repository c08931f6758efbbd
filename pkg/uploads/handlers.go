package uploads

import (
	"io"
	"net/http"

	"github.com/davemejos/mediasync/pkg/errcodes"
	"github.com/davemejos/mediasync/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// maxUploadBytes caps a single submission. The asset store enforces its
// own limit as well; this one just keeps payloads out of memory early.
const maxUploadBytes = 100 << 20

type handler struct {
	coordinator *Coordinator
}

func (h *handler) submit(c echo.Context) error {
	ctx := c.Request().Context()

	params := SubmitUploadPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	header, ok := params.FormFiles["file"]
	if !ok {
		return errcodes.ValidationError("A file is required.")
	}
	if header.Size > maxUploadBytes {
		return errcodes.ValidationError("File is too large.")
	}

	file, err := header.Open()
	if err != nil {
		return errors.WithStack(err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return errors.WithStack(err)
	}

	asset, op, err := h.coordinator.Submit(ctx, SubmitParams{
		Filename: header.Filename,
		Folder:   params.Folder,
		Data:     data,
		Source:   models.OperationSourceAPI,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Media     *models.MediaAsset    `json:"media"`
		Operation *models.SyncOperation `json:"operation"`
	}{asset, op}

	// 202: the upload is confirmed asynchronously over the event
	// stream, keyed by the asset's correlation id.
	return errors.WithStack(c.JSON(http.StatusAccepted, resp))
}

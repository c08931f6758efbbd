package scheduler

import (
	"net/http"
	"time"

	"github.com/davemejos/mediasync/pkg/errcodes"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	scheduler *Scheduler
}

func (h *handler) control(c echo.Context) error {
	ctx := c.Request().Context()

	params := ControlPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	var err error
	switch params.Action {
	case "start":
		err = h.scheduler.Start()
	case "stop":
		err = h.scheduler.Stop()
	default:
		return errcodes.ValidationError("Action must be start or stop.")
	}
	if err != nil {
		return errors.WithStack(err)
	}

	status, err := h.scheduler.Status(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, status))
}

func (h *handler) updateConfig(c echo.Context) error {
	ctx := c.Request().Context()

	params := UpdateConfigPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	cfg := h.scheduler.Config()

	if params.Enabled != nil {
		cfg.Enabled = *params.Enabled
	}
	if params.IntervalSeconds != nil {
		cfg.Interval = time.Duration(*params.IntervalSeconds) * time.Second
	}
	if params.BatchSize != nil {
		cfg.BatchSize = *params.BatchSize
	}
	if params.MaxRetries != nil {
		cfg.MaxRetries = *params.MaxRetries
	}
	if params.HealthCheckIntervalSeconds != nil {
		cfg.HealthCheckInterval = time.Duration(*params.HealthCheckIntervalSeconds) * time.Second
	}
	if params.QueueWarnThreshold != nil {
		cfg.QueueWarnThreshold = *params.QueueWarnThreshold
	}
	if params.FailureWarnThreshold != nil {
		cfg.FailureWarnThreshold = *params.FailureWarnThreshold
	}

	if err := h.scheduler.UpdateConfig(cfg); err != nil {
		return errors.WithStack(err)
	}

	status, err := h.scheduler.Status(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, status))
}

func (h *handler) status(c echo.Context) error {
	status, err := h.scheduler.Status(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, status))
}

func (h *handler) forceCleanup(c echo.Context) error {
	processed, failed, err := h.scheduler.ForceCleanup(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Processed int `json:"processed"`
		Failed    int `json:"failed"`
	}{processed, failed}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

package ops

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"booklend/service/lifecycle"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Runner is the slice of the scheduler driver the ops surface needs.
type Runner interface {
	RunOverdueSweepOnce(ctx context.Context, now time.Time) (lifecycle.Summary, error)
	RunDueSoonSweepOnce(ctx context.Context, now time.Time) (lifecycle.Summary, error)
}

type Controller struct {
	Sched Runner
	V     *validator.Validate
	Log   *slog.Logger
}

// POST /v1/ops/sweeps/overdue
func (h *Controller) RunOverdue(c echo.Context) error {
	return h.run(c, "overdue", h.Sched.RunOverdueSweepOnce)
}

// POST /v1/ops/sweeps/due-soon
func (h *Controller) RunDueSoon(c echo.Context) error {
	return h.run(c, "due_soon", h.Sched.RunDueSoonSweepOnce)
}

func (h *Controller) run(c echo.Context, sweep string, fn func(context.Context, time.Time) (lifecycle.Summary, error)) error {
	var req RunSweepReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "validation error",
			"errors":  err.Error(),
		})
	}

	now := time.Now().UTC()
	if req.AsOf != "" {
		// Format already validated; error is unreachable here.
		now, _ = time.Parse(time.RFC3339, req.AsOf)
	}

	sum, err := fn(c.Request().Context(), now)
	if err != nil {
		h.Log.Error("manual sweep", "sweep", sweep, "err", err)
		switch lifecycle.Code(err) {
		case lifecycle.ErrSweepRunning:
			return c.JSON(http.StatusConflict, echo.Map{"message": "sweep already running"})
		case lifecycle.ErrStoreUnavailable:
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"message": "rental store unavailable"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"sweep": sweep, "summary": sum})
}

package recalc

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/brightsteps/assess/internal/platform/auth"
)

type Handler struct {
	runner           *Runner
	defaultBatchSize int
}

func NewHandler(runner *Runner, defaultBatchSize int) *Handler {
	return &Handler{runner: runner, defaultBatchSize: defaultBatchSize}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/recalc", auth.RequireRole("admin"))
	g.POST("/backfill", h.RunBackfill)
}

type backfillRequest struct {
	BatchSize int `json:"batch_size"`
}

// RunBackfill runs the score backfill synchronously and returns the run
// summary. Runs are re-runnable: a second call only sees the rows the
// first one failed to heal.
func (h *Handler) RunBackfill(c echo.Context) error {
	req := backfillRequest{BatchSize: h.defaultBatchSize}
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	summary, err := h.runner.Run(c.Request().Context(), req.BatchSize)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, summary)
}

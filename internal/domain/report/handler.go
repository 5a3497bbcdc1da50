package report

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/brightsteps/assess/internal/domain/assessment"
	"github.com/brightsteps/assess/internal/platform/auth"
	"github.com/brightsteps/assess/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports/children/:childID", auth.RequireRole("therapist", "doctor", "hod"))
	g.GET("/pools", h.ListPoolSummaries)
	g.GET("/pools/:poolID", h.GetPoolSummary)
	g.POST("/pools/:poolID/generate", h.GeneratePoolSummary)
	g.GET("/final", h.GetFinalReport)
	g.POST("/final/generate", h.GenerateFinalReport)
	g.POST("/final/generate-missing", h.GenerateMissing)
	g.POST("/final/review/doctor", h.ReviewDoctor, auth.RequireRole("doctor"))
	g.POST("/final/review/hod", h.ReviewHOD, auth.RequireRole("hod"))
}

func childPoolParams(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	childID, err := uuid.Parse(c.Param("childID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid child id")
	}
	poolID, err := uuid.Parse(c.Param("poolID"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid pool id")
	}
	return childID, poolID, nil
}

func childParam(c echo.Context) (uuid.UUID, error) {
	childID, err := uuid.Parse(c.Param("childID"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid child id")
	}
	return childID, nil
}

func (h *Handler) ListPoolSummaries(c echo.Context) error {
	childID, err := childParam(c)
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListPoolSummaries(c.Request().Context(), childID, p.Limit, p.Offset)
	if err != nil {
		return mapReportError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) GetPoolSummary(c echo.Context) error {
	childID, poolID, err := childPoolParams(c)
	if err != nil {
		return err
	}
	sum, err := h.svc.GetPoolSummary(c.Request().Context(), childID, poolID)
	if err != nil {
		return mapReportError(err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) GeneratePoolSummary(c echo.Context) error {
	childID, poolID, err := childPoolParams(c)
	if err != nil {
		return err
	}
	sum, err := h.svc.GeneratePoolSummary(c.Request().Context(), childID, poolID)
	if err != nil {
		return mapReportError(err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) GetFinalReport(c echo.Context) error {
	childID, err := childParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	fr, err := h.svc.GetFinalReport(ctx, childID)
	if err != nil {
		return mapReportError(err)
	}
	// HOD reviewers only see reports the doctor has already signed off.
	if auth.HasRole(ctx, "hod") && !auth.HasRole(ctx, "doctor") && fr.ReviewState() == StateUnreviewed {
		return echo.NewHTTPError(http.StatusForbidden, "report awaiting doctor review")
	}
	return c.JSON(http.StatusOK, fr)
}

func (h *Handler) GenerateFinalReport(c echo.Context) error {
	childID, err := childParam(c)
	if err != nil {
		return err
	}
	fr, err := h.svc.GenerateFinalReport(c.Request().Context(), childID)
	if err != nil {
		return mapReportError(err)
	}
	return c.JSON(http.StatusOK, fr)
}

func (h *Handler) GenerateMissing(c echo.Context) error {
	childID, err := childParam(c)
	if err != nil {
		return err
	}
	fr, err := h.svc.GenerateMissing(c.Request().Context(), childID)
	if err != nil {
		return mapReportError(err)
	}
	return c.JSON(http.StatusOK, fr)
}

func (h *Handler) ReviewDoctor(c echo.Context) error {
	return h.advance(c, StageDoctor)
}

func (h *Handler) ReviewHOD(c echo.Context) error {
	return h.advance(c, StageHOD)
}

func (h *Handler) advance(c echo.Context, stage ReviewStage) error {
	childID, err := childParam(c)
	if err != nil {
		return err
	}
	fr, err := h.svc.AdvanceReview(c.Request().Context(), childID, stage, time.Now().UTC())
	if err != nil {
		return mapReportError(err)
	}
	return c.JSON(http.StatusOK, fr)
}

func mapReportError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, assessment.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrOrderingViolation):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrConflict):
		// Both attempts lost the race; the client can simply retry.
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

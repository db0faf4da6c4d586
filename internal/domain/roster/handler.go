package roster

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/auth"
	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/jobs"
	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/middleware"
	"github.com/moonlitpsych/moonlit-scheduler/pkg/date"
)

// Queue submits rebuilds to the background worker.
type Queue interface {
	EnqueueRosterRebuild(ctx context.Context, p jobs.RosterRebuildPayload) (string, error)
}

type Handler struct {
	svc   *Service
	queue Queue
}

// NewHandler builds the roster handler. With a nil queue rebuilds run inline.
func NewHandler(svc *Service, queue Queue) *Handler {
	return &Handler{svc: svc, queue: queue}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/roster/bookable", h.ListBookable,
		auth.RequireCapability(auth.CapRosterRead, auth.CapRosterRebuild),
		middleware.ETag(middleware.DefaultETagConfig()))
	api.POST("/admin/roster/rebuild", h.Rebuild, auth.RequireCapability(auth.CapRosterRebuild))
}

func (h *Handler) ListBookable(c echo.Context) error {
	var payerID *uuid.UUID
	if v := c.QueryParam("payer_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid payer_id")
		}
		payerID = &id
	}
	items, err := h.svc.ListBookable(c.Request().Context(), payerID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
}

type rebuildRequest struct {
	AsOf date.Date `json:"as_of"`
}

func (h *Handler) Rebuild(c echo.Context) error {
	var req rebuildRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()

	if h.queue != nil {
		taskID, err := h.queue.EnqueueRosterRebuild(ctx, jobs.RosterRebuildPayload{
			AsOf:        req.AsOf.String(),
			RequestedBy: auth.EmailFromContext(ctx),
		})
		switch {
		case errors.Is(err, jobs.ErrAlreadyQueued):
			return c.JSON(http.StatusAccepted, map[string]string{"status": "already_queued"})
		case err != nil:
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		return c.JSON(http.StatusAccepted, map[string]string{"task_id": taskID, "status": "queued"})
	}

	res, err := h.svc.Rebuild(ctx, req.AsOf)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

package booking

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/auth"
	"github.com/moonlitpsych/moonlit-scheduler/pkg/date"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the public booking flow and the staff patient search.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	b := api.Group("/booking")
	b.GET("/availability", h.Availability)
	b.POST("/select", h.Select)
	b.POST("/appointments", h.Book)

	api.GET("/patients/search", h.SearchPatients, auth.RequireCapability(auth.CapPatientsSearch))
}

func writeError(err error) error {
	switch {
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSlotNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSlotTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusBadGateway, err.Error())
}

func (h *Handler) Availability(c echo.Context) error {
	var q AvailabilityQuery
	if v := c.QueryParam("date"); v != "" {
		d, err := date.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid date")
		}
		q.Date = d
	}
	if v := c.QueryParam("payer_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid payer_id")
		}
		q.PayerID = id
	}
	avail, err := h.svc.Availability(c.Request().Context(), q)
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, avail)
}

type selectResponse struct {
	Slots    []ConsolidatedTimeSlot `json:"slots"`
	Selected TimeSlot               `json:"selected"`
}

func (h *Handler) Select(c echo.Context) error {
	var req SelectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	groups, slot, err := h.svc.Select(c.Request().Context(), req.AvailabilityQuery, req.Time)
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, selectResponse{Slots: groups, Selected: slot})
}

func (h *Handler) Book(c echo.Context) error {
	var req BookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	conf, err := h.svc.Book(c.Request().Context(), req)
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusCreated, conf)
}

func (h *Handler) SearchPatients(c echo.Context) error {
	patients, err := h.svc.SearchPatients(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": patients})
}

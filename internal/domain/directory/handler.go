package directory

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/auth"
	"github.com/moonlitpsych/moonlit-scheduler/pkg/date"
	"github.com/moonlitpsych/moonlit-scheduler/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireCapability(auth.CapDirectoryRead, auth.CapDirectoryWrite))
	readGroup.GET("/providers", h.ListProviders)
	readGroup.GET("/providers/:id", h.GetProvider)
	readGroup.GET("/payers", h.ListPayers)
	readGroup.GET("/payers/:id", h.GetPayer)
	readGroup.GET("/networks", h.ListNetworks)
	readGroup.GET("/networks/:id", h.GetNetwork)

	writeGroup := api.Group("", auth.RequireCapability(auth.CapDirectoryWrite))
	writeGroup.POST("/providers", h.CreateProvider)
	writeGroup.PUT("/providers/:id", h.UpdateProvider)
	writeGroup.DELETE("/providers/:id", h.DeleteProvider)
	writeGroup.POST("/payers", h.CreatePayer)
	writeGroup.PUT("/payers/:id", h.UpdatePayer)
	writeGroup.DELETE("/payers/:id", h.DeletePayer)

	networkGroup := api.Group("", auth.RequireCapability(auth.CapNetworksWrite))
	networkGroup.POST("/networks", h.CreateNetwork)
	networkGroup.PUT("/networks/:id", h.UpdateNetwork)
	networkGroup.DELETE("/networks/:id", h.DeleteNetwork)
	networkGroup.POST("/networks/:id/status", h.AdvanceNetwork)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// writeError maps service errors; anything unrecognized is a validation
// failure.
func writeError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

func queryUUID(c echo.Context, name string) (*uuid.UUID, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &id, nil
}

// -- Provider Handlers --

func (h *Handler) CreateProvider(c echo.Context) error {
	var p Provider
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateProvider(c.Request().Context(), &p); err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetProvider(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetProvider(c.Request().Context(), id)
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListProviders(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ProviderFilter{Role: c.QueryParam("role"), BookableOnly: c.QueryParam("bookable") == "true"}
	items, total, err := h.svc.ListProviders(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateProvider(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var p Provider
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.UpdateProvider(c.Request().Context(), &p); err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeleteProvider(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteProvider(c.Request().Context(), id); err != nil {
		return writeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Payer Handlers --

func (h *Handler) CreatePayer(c echo.Context) error {
	p := Payer{IsActive: true}
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePayer(c.Request().Context(), &p); err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPayer(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPayer(c.Request().Context(), id)
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPayers(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPayers(c.Request().Context(), c.QueryParam("active") == "true", pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdatePayer(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var p Payer
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.UpdatePayer(c.Request().Context(), &p); err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePayer(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeletePayer(c.Request().Context(), id); err != nil {
		return writeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Network Handlers --

func (h *Handler) CreateNetwork(c echo.Context) error {
	var n Network
	if err := c.Bind(&n); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateNetwork(c.Request().Context(), &n); err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *Handler) GetNetwork(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	n, err := h.svc.GetNetwork(c.Request().Context(), id)
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) ListNetworks(c echo.Context) error {
	pg := pagination.FromContext(c)
	var f NetworkFilter
	var err error
	if f.ProviderID, err = queryUUID(c, "provider_id"); err != nil {
		return err
	}
	if f.PayerID, err = queryUUID(c, "payer_id"); err != nil {
		return err
	}
	f.Status = NetworkStatus(c.QueryParam("status"))
	items, total, err := h.svc.ListNetworks(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateNetwork(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var n Network
	if err := c.Bind(&n); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n.ID = id
	if err := h.svc.UpdateNetwork(c.Request().Context(), &n); err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) DeleteNetwork(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteNetwork(c.Request().Context(), id); err != nil {
		return writeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type statusRequest struct {
	Status        NetworkStatus `json:"status"`
	EffectiveDate *date.Date    `json:"effective_date"`
}

func (h *Handler) AdvanceNetwork(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status is required")
	}
	n, err := h.svc.AdvanceNetwork(c.Request().Context(), id, req.Status, req.EffectiveDate)
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, n)
}

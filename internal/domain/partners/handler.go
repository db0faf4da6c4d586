package partners

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/auth"
	"github.com/moonlitpsych/moonlit-scheduler/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/partners")

	read := g.Group("", auth.RequireCapability(auth.CapPartnersRead, auth.CapPartnersWrite))
	read.GET("", h.ListOrganizations)
	read.GET("/:id", h.GetOrganization)
	read.GET("/:id/contacts", h.ListContacts)

	write := g.Group("", auth.RequireCapability(auth.CapPartnersWrite))
	write.POST("", h.CreateOrganization)
	write.PATCH("/:id", h.UpdateOrganization)
	write.DELETE("/:id", h.DeleteOrganization)
	write.POST("/:id/contacts", h.CreateContact)
	write.DELETE("/:id/contacts/:contact_id", h.DeleteContact)
}

func parseParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func writeError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

func (h *Handler) ListOrganizations(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListOrganizations(c.Request().Context(), c.QueryParam("status"), pg)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetOrganization(c echo.Context) error {
	id, err := parseParam(c, "id")
	if err != nil {
		return err
	}
	org, err := h.svc.GetOrganization(c.Request().Context(), id)
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, org)
}

func (h *Handler) CreateOrganization(c echo.Context) error {
	var in OrganizationInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	org, err := h.svc.CreateOrganization(c.Request().Context(), in)
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusCreated, org)
}

func (h *Handler) UpdateOrganization(c echo.Context) error {
	id, err := parseParam(c, "id")
	if err != nil {
		return err
	}
	var in OrganizationInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	org, err := h.svc.UpdateOrganization(c.Request().Context(), id, in)
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, org)
}

func (h *Handler) DeleteOrganization(c echo.Context) error {
	id, err := parseParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteOrganization(c.Request().Context(), id); err != nil {
		return writeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListContacts(c echo.Context) error {
	id, err := parseParam(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListContacts(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items})
}

func (h *Handler) CreateContact(c echo.Context) error {
	id, err := parseParam(c, "id")
	if err != nil {
		return err
	}
	var in ContactInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	contact, err := h.svc.CreateContact(c.Request().Context(), id, in)
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusCreated, contact)
}

func (h *Handler) DeleteContact(c echo.Context) error {
	orgID, err := parseParam(c, "id")
	if err != nil {
		return err
	}
	contactID, err := parseParam(c, "contact_id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteContact(c.Request().Context(), orgID, contactID); err != nil {
		return writeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

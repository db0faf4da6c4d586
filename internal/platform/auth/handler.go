package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Handler serves the caller's identity and the admin role grants.
type Handler struct {
	store RoleStore
	table RoleTable
}

func NewHandler(store RoleStore, table RoleTable) *Handler {
	return &Handler{store: store, table: table}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/me", h.Me)

	admin := api.Group("/admin/roles", RequireCapability(CapRolesManage))
	admin.GET("", h.ListGrants)
	admin.POST("", h.Grant)
	admin.DELETE("/:email/:role", h.Revoke)
}

type meResponse struct {
	Identity
	Capabilities []Capability `json:"capabilities"`
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	id := IdentityFromContext(ctx)
	if id.Subject == "" && id.Email == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return c.JSON(http.StatusOK, meResponse{
		Identity:     id,
		Capabilities: CapabilitiesFromContext(ctx).List(),
	})
}

func (h *Handler) ListGrants(c echo.Context) error {
	grants, err := h.store.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": grants})
}

type grantRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *Handler) Grant(c echo.Context) error {
	var req grantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}
	if !h.table.KnownRole(req.Role) {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown role: "+req.Role)
	}
	by := EmailFromContext(c.Request().Context())
	if err := h.store.Grant(c.Request().Context(), req.Email, req.Role, by); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, req)
}

func (h *Handler) Revoke(c echo.Context) error {
	if err := h.store.Revoke(c.Request().Context(), c.Param("email"), c.Param("role")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

package supervision

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
	g := api.Group("/supervision")

	read := g.Group("", auth.RequireCapability(auth.CapSupervisionRead, auth.CapSupervisionWrite))
	read.GET("", h.List)
	read.GET("/:id", h.Get)

	write := g.Group("", auth.RequireCapability(auth.CapSupervisionWrite))
	write.POST("", h.Create)
	write.POST("/validate", h.Validate)
	write.PUT("/:id", h.Update)
	write.DELETE("/:id", h.Delete)
	write.POST("/:id/deactivate", h.Deactivate)
	write.POST("/:id/activate", h.Activate)
}

// relationshipInput accepts provider ids as strings so a missing id reaches
// Validate as a readable error instead of a bind failure.
type relationshipInput struct {
	ResidentProviderID  string      `json:"resident_provider_id"`
	AttendingProviderID string      `json:"attending_provider_id"`
	Designation         Designation `json:"designation"`
	EffectiveDate       date.Date   `json:"effective_date"`
	ExpirationDate      *date.Date  `json:"expiration_date"`
	ModalityConstraints []string    `json:"modality_constraints"`
	ConcurrencyCap      *int        `json:"concurrency_cap"`
	Notes               *string     `json:"notes"`
	EditingID           string      `json:"editing_id,omitempty"`
}

func optionalUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+field)
	}
	return id, nil
}

func bindCandidate(c echo.Context) (Candidate, string, error) {
	var in relationshipInput
	if err := c.Bind(&in); err != nil {
		return Candidate{}, "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resident, err := optionalUUID(in.ResidentProviderID, "resident_provider_id")
	if err != nil {
		return Candidate{}, "", err
	}
	attending, err := optionalUUID(in.AttendingProviderID, "attending_provider_id")
	if err != nil {
		return Candidate{}, "", err
	}
	return Candidate{
		ResidentProviderID:  resident,
		AttendingProviderID: attending,
		Designation:         in.Designation,
		EffectiveDate:       in.EffectiveDate,
		ExpirationDate:      in.ExpirationDate,
		ModalityConstraints: in.ModalityConstraints,
		ConcurrencyCap:      in.ConcurrencyCap,
		Notes:               in.Notes,
	}, in.EditingID, nil
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func writeError(err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]interface{}{"errors": verr.Errors})
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) Create(c echo.Context) error {
	cand, _, err := bindCandidate(c)
	if err != nil {
		return err
	}
	rel, err := h.svc.Create(c.Request().Context(), cand)
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusCreated, rel)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	rel, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, rel)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	var f ListFilter
	for param, dst := range map[string]**uuid.UUID{
		"resident_id":  &f.ResidentID,
		"attending_id": &f.AttendingID,
	} {
		if v := c.QueryParam(param); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid "+param)
			}
			*dst = &id
		}
	}
	f.ActiveOnly = c.QueryParam("active") == "true"

	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	cand, _, err := bindCandidate(c)
	if err != nil {
		return err
	}
	rel, err := h.svc.Update(c.Request().Context(), id, cand)
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, rel)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return writeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Deactivate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Deactivate(c.Request().Context(), id); err != nil {
		return writeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Activate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	rel, err := h.svc.Activate(c.Request().Context(), id)
	if err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, rel)
}

type validateResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Validate previews a create or edit. Pass editing_id when checking an edit.
func (h *Handler) Validate(c echo.Context) error {
	cand, editing, err := bindCandidate(c)
	if err != nil {
		return err
	}
	if editing != "" {
		id, err := optionalUUID(editing, "editing_id")
		if err != nil {
			return err
		}
		cand.EditingID = &id
	}
	errs, err := h.svc.Preview(c.Request().Context(), cand)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, validateResponse{Valid: len(errs) == 0, Errors: errs})
}

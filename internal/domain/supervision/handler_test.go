package supervision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *Service) {
	svc, _, _ := newTestService()
	return NewHandler(svc), svc
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func expectHTTPStatus(t *testing.T, err error, code int) *echo.HTTPError {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected HTTPError %d, got %v", code, err)
	}
	if he.Code != code {
		t.Fatalf("expected status %d, got %d (%v)", code, he.Code, he.Message)
	}
	return he
}

func TestHandler_Create(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()
	body := `{"resident_provider_id":"` + uuid.NewString() + `","attending_provider_id":"` + uuid.NewString() +
		`","designation":"primary","effective_date":"2025-01-01","concurrency_cap":3}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/supervision", body), rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var rel Relationship
	json.Unmarshal(rec.Body.Bytes(), &rel)
	if rel.ID == uuid.Nil || rel.Designation != DesignationPrimary {
		t.Errorf("unexpected response: %s", rec.Body.String())
	}
}

func TestHandler_CreateValidationErrors(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()
	id := uuid.NewString()
	body := `{"resident_provider_id":"` + id + `","attending_provider_id":"` + id +
		`","designation":"primary","effective_date":"2025-01-01","concurrency_cap":0}`
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/supervision", body), httptest.NewRecorder())

	he := expectHTTPStatus(t, h.Create(c), http.StatusUnprocessableEntity)
	msg, ok := he.Message.(map[string]interface{})
	if !ok {
		t.Fatalf("expected map message, got %T", he.Message)
	}
	errs, _ := msg["errors"].([]string)
	if len(errs) != 2 {
		t.Errorf("expected self-supervision and cap errors, got %v", msg["errors"])
	}
}

func TestHandler_CreateMissingProvidersIsValidationError(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/supervision",
		`{"designation":"secondary","effective_date":"2025-01-01"}`), httptest.NewRecorder())
	expectHTTPStatus(t, h.Create(c), http.StatusUnprocessableEntity)
}

func TestHandler_CreateMalformedID(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/supervision",
		`{"resident_provider_id":"nope","attending_provider_id":"`+uuid.NewString()+`"}`), httptest.NewRecorder())
	expectHTTPStatus(t, h.Create(c), http.StatusBadRequest)
}

func TestHandler_GetNotFound(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())
	expectHTTPStatus(t, h.Get(c), http.StatusNotFound)
}

func TestHandler_GetInvalidID(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	expectHTTPStatus(t, h.Get(c), http.StatusBadRequest)
}

func TestHandler_ListFilters(t *testing.T) {
	h, svc := newTestHandler()
	resident := uuid.New()
	svc.Create(context.Background(), primaryCandidate(resident))
	svc.Create(context.Background(), primaryCandidate(uuid.New()))

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/supervision?resident_id="+resident.String(), nil), rec)
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Total int `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 {
		t.Errorf("expected 1 relationship for resident, got %d", resp.Total)
	}
}

func TestHandler_ListBadFilter(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/supervision?attending_id=x", nil), httptest.NewRecorder())
	expectHTTPStatus(t, h.List(c), http.StatusBadRequest)
}

func TestHandler_Validate(t *testing.T) {
	h, svc := newTestHandler()
	resident := uuid.New()
	existing, _ := svc.Create(context.Background(), primaryCandidate(resident))

	e := echo.New()
	body := `{"resident_provider_id":"` + resident.String() + `","attending_provider_id":"` + uuid.NewString() +
		`","designation":"primary","effective_date":"2025-03-01"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/supervision/validate", body), rec)
	if err := h.Validate(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp validateResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Valid || len(resp.Errors) == 0 {
		t.Errorf("expected invalid preview, got %+v", resp)
	}

	// The same payload as an edit of the existing row is valid.
	body = strings.TrimSuffix(body, "}") + `,"editing_id":"` + existing.ID.String() + `"}`
	rec = httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodPost, "/api/v1/supervision/validate", body), rec)
	if err := h.Validate(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp = validateResponse{}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Valid || resp.Errors == nil {
		t.Errorf("expected valid preview with empty errors, got %s", rec.Body.String())
	}
}

func TestHandler_UpdateAndDeactivate(t *testing.T) {
	h, svc := newTestHandler()
	rel, _ := svc.Create(context.Background(), primaryCandidate(uuid.New()))
	e := echo.New()

	body := `{"resident_provider_id":"` + rel.ResidentProviderID.String() + `","attending_provider_id":"` +
		rel.AttendingProviderID.String() + `","designation":"secondary","effective_date":"2025-02-01"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPut, "/", body), rec)
	c.SetParamNames("id")
	c.SetParamValues(rel.ID.String())
	if err := h.Update(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(rel.ID.String())
	if err := h.Deactivate(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	got, _ := svc.Get(context.Background(), rel.ID)
	if got.IsActive {
		t.Error("expected relationship to be inactive")
	}
}

func TestWriteError_Conflict(t *testing.T) {
	expectHTTPStatus(t, writeError(ErrConflict), http.StatusConflict)
}

package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHandler_Me(t *testing.T) {
	h := NewHandler(newMockRoleStore(), DefaultRoleTable())
	e := echo.New()
	req := contextWithIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/me", nil),
		Identity{Subject: "u1", Email: "a@example.com"})
	req = req.WithContext(WithCapabilities(req.Context(), CapabilitySet{CapBookingRead: true}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Me(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Email        string       `json:"email"`
		Capabilities []Capability `json:"capabilities"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Email != "a@example.com" {
		t.Errorf("expected email in response, got %q", body.Email)
	}
	if len(body.Capabilities) != 1 || body.Capabilities[0] != CapBookingRead {
		t.Errorf("unexpected capabilities: %v", body.Capabilities)
	}
}

func TestHandler_MeUnauthenticated(t *testing.T) {
	h := NewHandler(newMockRoleStore(), DefaultRoleTable())
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/me", nil), httptest.NewRecorder())
	expectStatus(t, h.Me(c), http.StatusUnauthorized)
}

func TestHandler_Grant(t *testing.T) {
	store := newMockRoleStore()
	h := NewHandler(store, DefaultRoleTable())
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/roles",
		strings.NewReader(`{"email":"New@Example.com","role":"staff"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Grant(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if roles := store.grants["new@example.com"]; len(roles) != 1 || roles[0] != RoleStaff {
		t.Errorf("expected staff grant, got %v", roles)
	}
}

func TestHandler_GrantUnknownRole(t *testing.T) {
	h := NewHandler(newMockRoleStore(), DefaultRoleTable())
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/roles",
		strings.NewReader(`{"email":"x@example.com","role":"owner"}`))
	req.Header.Set("Content-Type", "application/json")
	c := e.NewContext(req, httptest.NewRecorder())

	expectStatus(t, h.Grant(c), http.StatusBadRequest)
}

func TestHandler_Revoke(t *testing.T) {
	store := newMockRoleStore()
	store.grants["x@example.com"] = []string{RoleStaff, RolePartner}
	h := NewHandler(store, DefaultRoleTable())
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("email", "role")
	c.SetParamValues("x@example.com", RoleStaff)

	if err := h.Revoke(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if roles := store.grants["x@example.com"]; len(roles) != 1 || roles[0] != RolePartner {
		t.Errorf("expected only partner to remain, got %v", roles)
	}
}

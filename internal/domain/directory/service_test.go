package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/moonlitpsych/moonlit-scheduler/pkg/date"
)

func newTestService() (*Service, *mockProviderRepo, *mockPayerRepo, *mockNetworkRepo) {
	pr, py, nw := newMockProviderRepo(), newMockPayerRepo(), newMockNetworkRepo()
	svc := NewService(pr, py, nw, time.UTC)
	svc.now = func() time.Time { return time.Date(2025, 4, 15, 18, 0, 0, 0, time.UTC) }
	return svc, pr, py, nw
}

func strPtr(s string) *string { return &s }

func seedNetwork(t *testing.T, svc *Service) *Network {
	t.Helper()
	ctx := context.Background()
	p := &Provider{FirstName: "Rufus", LastName: "Sweeney", Role: RoleAttending, IsBookable: true}
	if err := svc.CreateProvider(ctx, p); err != nil {
		t.Fatalf("create provider: %v", err)
	}
	py := &Payer{Name: "Utah Medicaid", IsActive: true}
	if err := svc.CreatePayer(ctx, py); err != nil {
		t.Fatalf("create payer: %v", err)
	}
	n := &Network{ProviderID: p.ID, PayerID: py.ID}
	if err := svc.CreateNetwork(ctx, n); err != nil {
		t.Fatalf("create network: %v", err)
	}
	return n
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to NetworkStatus
		ok       bool
	}{
		{StatusNotStarted, StatusApplied, true},
		{StatusApplied, StatusPending, true},
		{StatusPending, StatusInNetwork, true},
		{StatusPending, StatusDenied, true},
		{StatusDenied, StatusApplied, true},
		{StatusInNetwork, StatusTerminated, true},
		{StatusNotStarted, StatusInNetwork, false},
		{StatusApplied, StatusInNetwork, false},
		{StatusTerminated, StatusApplied, false},
		{StatusInNetwork, StatusPending, false},
		{StatusDenied, StatusInNetwork, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.ok {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.ok, got)
		}
	}
}

func TestService_CreateProviderValidation(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	if err := svc.CreateProvider(ctx, &Provider{LastName: "X"}); err == nil {
		t.Error("expected error for missing first name")
	}
	if err := svc.CreateProvider(ctx, &Provider{FirstName: "A", LastName: "B", Role: "nurse"}); err == nil {
		t.Error("expected error for unknown role")
	}
	if err := svc.CreateProvider(ctx, &Provider{FirstName: "A", LastName: "B", NPI: strPtr("123")}); err == nil {
		t.Error("expected error for short NPI")
	}
	p := &Provider{FirstName: " A ", LastName: "B", NPI: strPtr("1234567890"), Email: strPtr(" A@Example.COM ")}
	if err := svc.CreateProvider(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Role != RoleIndependent || p.FirstName != "A" || *p.Email != "a@example.com" {
		t.Errorf("unexpected normalization: %+v", p)
	}
}

func TestService_CreatePayerValidation(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	if err := svc.CreatePayer(ctx, &Payer{}); err == nil {
		t.Error("expected error for missing name")
	}
	if err := svc.CreatePayer(ctx, &Payer{Name: "X", PayerType: "cash"}); err == nil {
		t.Error("expected error for unknown payer type")
	}
	if err := svc.CreatePayer(ctx, &Payer{Name: "X", State: strPtr("Utah")}); err == nil {
		t.Error("expected error for long state")
	}
	p := &Payer{Name: "Cash", PayerType: PayerSelfPay, State: strPtr("ut")}
	if err := svc.CreatePayer(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *p.State != "UT" {
		t.Errorf("expected upper-cased state, got %s", *p.State)
	}
}

func TestService_CreateNetworkDefaults(t *testing.T) {
	svc, _, _, _ := newTestService()
	n := seedNetwork(t, svc)
	if n.Status != StatusNotStarted || n.BillingMode != BillingDirect {
		t.Errorf("unexpected defaults: %s %s", n.Status, n.BillingMode)
	}
}

func TestService_CreateNetworkUnknownProvider(t *testing.T) {
	svc, _, _, _ := newTestService()
	err := svc.CreateNetwork(context.Background(), &Network{ProviderID: uuid.New(), PayerID: uuid.New()})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_AdvanceNetworkWorkflow(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	n := seedNetwork(t, svc)

	if _, err := svc.AdvanceNetwork(ctx, n.ID, StatusInNetwork, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition skipping steps, got %v", err)
	}
	for _, to := range []NetworkStatus{StatusApplied, StatusPending} {
		if _, err := svc.AdvanceNetwork(ctx, n.ID, to, nil); err != nil {
			t.Fatalf("advance to %s: %v", to, err)
		}
	}
	got, err := svc.AdvanceNetwork(ctx, n.ID, StatusInNetwork, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.EffectiveDate == nil || got.EffectiveDate.String() != "2025-04-15" {
		t.Errorf("expected effective date stamped today, got %v", got.EffectiveDate)
	}
	if !got.CoversOn(date.MustParse("2025-04-15")) {
		t.Error("expected contract to cover its effective date")
	}

	got, err = svc.AdvanceNetwork(ctx, n.ID, StatusTerminated, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ExpirationDate == nil || !got.ExpirationDate.After(*got.EffectiveDate) {
		t.Errorf("expected expiration after effective date, got %v", got.ExpirationDate)
	}
	if got.CoversOn(date.MustParse("2025-04-15")) {
		t.Error("terminated contract covers nothing")
	}
}

func TestService_AdvanceNetworkExplicitEffective(t *testing.T) {
	svc, _, _, nw := newTestService()
	n := seedNetwork(t, svc)
	nw.store[n.ID].Status = StatusPending

	eff := date.MustParse("2025-01-01")
	got, err := svc.AdvanceNetwork(context.Background(), n.ID, StatusInNetwork, &eff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.EffectiveDate.String() != "2025-01-01" {
		t.Errorf("expected explicit effective date, got %s", got.EffectiveDate)
	}
}

func TestService_AdvanceNetworkUnknownStatus(t *testing.T) {
	svc, _, _, _ := newTestService()
	n := seedNetwork(t, svc)
	if _, err := svc.AdvanceNetwork(context.Background(), n.ID, "approved", nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestService_UpdateNetworkKeepsStatus(t *testing.T) {
	svc, _, _, _ := newTestService()
	n := seedNetwork(t, svc)
	edit := &Network{ID: n.ID, Status: StatusInNetwork, BillingMode: BillingSupervised, Notes: strPtr("via attending")}
	if err := svc.UpdateNetwork(context.Background(), edit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := svc.GetNetwork(context.Background(), n.ID)
	if got.Status != StatusNotStarted {
		t.Errorf("update must not change status, got %s", got.Status)
	}
	if got.BillingMode != BillingSupervised {
		t.Errorf("expected supervised billing, got %s", got.BillingMode)
	}
}

func TestPayer_AcceptingOn(t *testing.T) {
	eff := date.MustParse("2025-05-01")
	p := &Payer{IsActive: true, EffectiveDate: &eff}
	if p.AcceptingOn(date.MustParse("2025-04-30")) {
		t.Error("payer is not effective before its date")
	}
	if !p.AcceptingOn(eff) {
		t.Error("payer is effective on its date")
	}
	p.IsActive = false
	if p.AcceptingOn(eff) {
		t.Error("inactive payer accepts nothing")
	}
}

package roster

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/moonlitpsych/moonlit-scheduler/internal/domain/directory"
	"github.com/moonlitpsych/moonlit-scheduler/internal/domain/supervision"
	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/jobs"
	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/memo"
	"github.com/moonlitpsych/moonlit-scheduler/pkg/date"
)

type mockRepo struct {
	mu       sync.Mutex
	rows     []Bookable
	replaced int
	lookups  int
}

func (m *mockRepo) Replace(_ context.Context, rows []Bookable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append([]Bookable(nil), rows...)
	m.replaced++
	return nil
}

func (m *mockRepo) List(_ context.Context, payerID *uuid.UUID) ([]Bookable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Bookable{}
	for _, b := range m.rows {
		if payerID == nil || b.PayerID == *payerID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockRepo) ProvidersForPayer(_ context.Context, payerID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	var ids []uuid.UUID
	for _, b := range m.rows {
		if b.PayerID == payerID {
			ids = append(ids, b.ProviderID)
		}
	}
	return ids, nil
}

type mockTx struct{ locks []string }

func (m *mockTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
func (m *mockTx) Lock(_ context.Context, key string) error {
	m.locks = append(m.locks, key)
	return nil
}

type mockDirectory struct {
	in  Inputs
	err error
}

func (m *mockDirectory) AllProviders(context.Context) ([]*directory.Provider, error) {
	return m.in.Providers, m.err
}
func (m *mockDirectory) AllPayers(context.Context) ([]*directory.Payer, error) {
	return m.in.Payers, nil
}
func (m *mockDirectory) AllNetworks(context.Context) ([]*directory.Network, error) {
	return m.in.Networks, nil
}

type mockSupervision struct{ rels []*supervision.Relationship }

func (m *mockSupervision) ListActive(context.Context) ([]*supervision.Relationship, error) {
	return m.rels, nil
}

func newTestService() (*Service, *mockRepo, *mockTx, *mockDirectory) {
	in := baseInputs()
	repo := &mockRepo{}
	tx := &mockTx{}
	dir := &mockDirectory{in: in}
	svc := NewService(repo, tx, dir, &mockSupervision{rels: in.Supervisions}, memo.NewMemoryStore(), time.UTC, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc, repo, tx, dir
}

func TestService_Rebuild(t *testing.T) {
	svc, repo, tx, _ := newTestService()
	res, err := svc.Rebuild(context.Background(), date.Date{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AsOf.String() != "2025-06-01" {
		t.Errorf("expected today as default, got %s", res.AsOf)
	}
	if res.Total != 2 || res.Direct != 1 || res.Supervised != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
	if repo.replaced != 1 || len(repo.rows) != 2 {
		t.Errorf("expected table replaced with 2 rows, got %d rows", len(repo.rows))
	}
	if len(tx.locks) != 1 || tx.locks[0] != rebuildLockKey {
		t.Errorf("expected rebuild lock, got %v", tx.locks)
	}
}

func TestService_RebuildLoadError(t *testing.T) {
	svc, repo, _, dir := newTestService()
	dir.err = errors.New("db down")
	if _, err := svc.Rebuild(context.Background(), date.Date{}); err == nil {
		t.Fatal("expected error")
	}
	if repo.replaced != 0 {
		t.Error("table must not be replaced on failure")
	}
}

func TestService_BookableProvidersCachedUntilRebuild(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()

	ids, err := svc.BookableProviders(ctx, payerA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ids == nil || len(ids) != 0 {
		t.Errorf("expected empty list before any rebuild, got %v", ids)
	}
	svc.BookableProviders(ctx, payerA)
	if repo.lookups != 1 {
		t.Errorf("expected cached second lookup, got %d lookups", repo.lookups)
	}

	if _, err := svc.Rebuild(ctx, date.Date{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids, _ = svc.BookableProviders(ctx, payerA)
	if len(ids) != 2 {
		t.Errorf("expected fresh providers after rebuild, got %v", ids)
	}
}

func TestService_RunTask(t *testing.T) {
	svc, repo, _, _ := newTestService()
	if err := svc.RunTask(context.Background(), jobs.RosterRebuildPayload{AsOf: "2025-06-01"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.rows) != 2 || repo.rows[0].AsOf.String() != "2025-06-01" {
		t.Errorf("unexpected rows: %+v", repo.rows)
	}
	if err := svc.RunTask(context.Background(), jobs.RosterRebuildPayload{AsOf: "June"}); err == nil {
		t.Error("expected error for bad as_of")
	}
}

type mockQueue struct {
	payloads []jobs.RosterRebuildPayload
	err      error
}

func (m *mockQueue) EnqueueRosterRebuild(_ context.Context, p jobs.RosterRebuildPayload) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.payloads = append(m.payloads, p)
	return "task-1", nil
}

func TestHandler_RebuildEnqueues(t *testing.T) {
	svc, repo, _, _ := newTestService()
	q := &mockQueue{}
	h := NewHandler(svc, q)
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/roster/rebuild", strings.NewReader(`{"as_of":"2025-06-01"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	if err := h.Rebuild(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", rec.Code)
	}
	if len(q.payloads) != 1 || q.payloads[0].AsOf != "2025-06-01" {
		t.Errorf("unexpected payloads: %+v", q.payloads)
	}
	if repo.replaced != 0 {
		t.Error("queued rebuild must not run inline")
	}
}

func TestHandler_RebuildAlreadyQueued(t *testing.T) {
	svc, repo, _, _ := newTestService()
	h := NewHandler(svc, &mockQueue{err: fmt.Errorf("enqueue: %w", jobs.ErrAlreadyQueued)})
	e := echo.New()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/roster/rebuild", nil)
	if err := h.Rebuild(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"already_queued"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if repo.replaced != 0 {
		t.Error("duplicate request must not run inline")
	}
}

func TestHandler_RebuildQueueDown(t *testing.T) {
	svc, _, _, _ := newTestService()
	h := NewHandler(svc, &mockQueue{err: errors.New("dial tcp: connection refused")})
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/v1/admin/roster/rebuild", nil), httptest.NewRecorder())
	var he *echo.HTTPError
	if err := h.Rebuild(c); !errors.As(err, &he) || he.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %v", err)
	}
}

func TestHandler_RebuildInline(t *testing.T) {
	svc, repo, _, _ := newTestService()
	h := NewHandler(svc, nil)
	e := echo.New()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/roster/rebuild", nil)
	if err := h.Rebuild(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK || repo.replaced != 1 {
		t.Errorf("expected inline rebuild, got status %d", rec.Code)
	}
}

func TestHandler_ListBookable(t *testing.T) {
	svc, _, _, _ := newTestService()
	svc.Rebuild(context.Background(), date.Date{})
	h := NewHandler(svc, nil)
	e := echo.New()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/roster/bookable?payer_id="+payerB.String(), nil)
	if err := h.ListBookable(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":0`) {
		t.Errorf("expected no pairs for payer B, got %s", rec.Body.String())
	}
}

package booking

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/ehr"
)

// upstreamCalendar is a fake EHR: it lists open slots and refuses bookings
// for providers marked taken.
type upstreamCalendar struct {
	mu    sync.Mutex
	slots []ehr.Slot
	taken map[string]bool
}

func (u *upstreamCalendar) markTaken(providerID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.taken[providerID] = true
}

func (u *upstreamCalendar) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	defer u.mu.Unlock()
	switch r.URL.Path {
	case "/availability":
		open := []ehr.Slot{}
		for _, s := range u.slots {
			if !u.taken[s.ProviderID] {
				open = append(open, s)
			}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"slots": open})
	case "/appointments":
		var req ehr.BookingRequest
		json.NewDecoder(r.Body).Decode(&req)
		if u.taken[req.ProviderID] {
			w.WriteHeader(http.StatusConflict)
			return
		}
		u.taken[req.ProviderID] = true
		json.NewEncoder(w).Encode(ehr.Confirmation{
			AppointmentID: "appt-1", ProviderID: req.ProviderID, Status: "booked",
			Start: req.Start, End: req.End,
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestService_BookRetriesWhenTakenUpstream(t *testing.T) {
	f := newFixture()
	nine := time.Date(2025, 3, 10, 9, 0, 0, 0, testLoc)
	cal := &upstreamCalendar{
		slots: []ehr.Slot{
			{ProviderID: f.provA.String(), Start: nine, End: nine.Add(time.Hour), Available: true},
			{ProviderID: f.provB.String(), Start: nine, End: nine.Add(time.Hour), Available: true},
		},
		taken: map[string]bool{},
	}
	srv := httptest.NewServer(cal)
	defer srv.Close()

	client := ehr.NewHTTPClient(ehr.HTTPConfig{BaseURL: srv.URL, CacheTTL: time.Minute}, nil, zerolog.New(io.Discard))
	providers := &mockProviders{byPayer: map[uuid.UUID][]uuid.UUID{f.payer: {f.provA, f.provB}}}
	svc := NewService(providers, client, testLoc, zerolog.Nop())

	// Warm the availability cache, then book A outside this service.
	if _, err := svc.Availability(context.Background(), f.query()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cal.markTaken(f.provA.String())

	conf, err := svc.Book(context.Background(), BookingRequest{
		AvailabilityQuery: f.query(),
		Time:              "09:00",
		Patient:           ehr.Patient{FirstName: "Ada", LastName: "Lovelace"},
	})
	if err != nil {
		t.Fatalf("expected booking with the other provider, got %v", err)
	}
	if conf.ProviderID != f.provB.String() {
		t.Errorf("expected provider B, got %s", conf.ProviderID)
	}
}

func TestUntried(t *testing.T) {
	a := TimeSlot{ProviderID: "a"}
	b := TimeSlot{ProviderID: "b"}
	groups := []ConsolidatedTimeSlot{{Time: "09:00", AvailableSlots: []TimeSlot{a, b}, IsSelected: true}}

	if got, ok := untried(groups, a, map[string]bool{}); !ok || got.ProviderID != "a" {
		t.Errorf("expected a, got %+v %v", got, ok)
	}
	if got, ok := untried(groups, a, map[string]bool{"a": true}); !ok || got.ProviderID != "b" {
		t.Errorf("expected fallback to b, got %+v %v", got, ok)
	}
	if _, ok := untried(groups, a, map[string]bool{"a": true, "b": true}); ok {
		t.Error("expected no slot when every provider was refused")
	}
}

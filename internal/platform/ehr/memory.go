package ehr

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryClient is an in-process EHR for development and tests. Booked slots
// stay in the calendar with Available=false.
type MemoryClient struct {
	mu           sync.RWMutex
	loc          *time.Location
	slots        map[string]*Slot // slotKey -> slot
	patients     map[string]Patient
	appointments map[string]*Confirmation
	slotBookings map[string]string // slotKey -> appointment ID
}

func NewMemoryClient(loc *time.Location) *MemoryClient {
	if loc == nil {
		loc = time.UTC
	}
	return &MemoryClient{
		loc:          loc,
		slots:        make(map[string]*Slot),
		patients:     make(map[string]Patient),
		appointments: make(map[string]*Confirmation),
		slotBookings: make(map[string]string),
	}
}

func slotKey(providerID string, start time.Time) string {
	return providerID + "|" + start.UTC().Format(time.RFC3339)
}

func (m *MemoryClient) AddSlot(s Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := s
	m.slots[slotKey(s.ProviderID, s.Start)] = &cp
}

func (m *MemoryClient) AddPatient(p Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	m.patients[p.ID] = p
}

func (m *MemoryClient) Availability(_ context.Context, req AvailabilityRequest) ([]Slot, error) {
	want := make(map[string]bool, len(req.ProviderIDs))
	for _, id := range req.ProviderIDs {
		want[id] = true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Slot
	for key, s := range m.slots {
		if len(want) > 0 && !want[s.ProviderID] {
			continue
		}
		if req.Date != "" && s.Start.In(m.loc).Format("2006-01-02") != req.Date {
			continue
		}
		cp := *s
		if _, booked := m.slotBookings[key]; booked {
			cp.Available = false
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ProviderID < out[j].ProviderID
	})
	return out, nil
}

func (m *MemoryClient) SearchPatients(_ context.Context, query string) ([]Patient, error) {
	q := strings.ToLower(strings.TrimSpace(query))

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Patient
	for _, p := range m.patients {
		hay := strings.ToLower(p.FirstName + " " + p.LastName + " " + p.Email)
		if q == "" || strings.Contains(hay, q) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return out, nil
}

func (m *MemoryClient) BookAppointment(_ context.Context, req BookingRequest) (*Confirmation, error) {
	if err := validateBooking(req); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := slotKey(req.ProviderID, req.Start)
	slot, ok := m.slots[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !slot.Available {
		return nil, ErrConflict
	}
	if _, booked := m.slotBookings[key]; booked {
		return nil, ErrConflict
	}

	patient := req.Patient
	if patient.ID == "" {
		patient.ID = uuid.NewString()
	}
	m.patients[patient.ID] = patient

	conf := &Confirmation{
		AppointmentID: uuid.NewString(),
		ProviderID:    req.ProviderID,
		PatientID:     patient.ID,
		Status:        "booked",
		Start:         slot.Start,
		End:           slot.End,
		CreatedAt:     time.Now(),
	}
	m.appointments[conf.AppointmentID] = conf
	m.slotBookings[key] = conf.AppointmentID
	return conf, nil
}

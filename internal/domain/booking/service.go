package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/ehr"
	"github.com/moonlitpsych/moonlit-scheduler/pkg/date"
)

// ProviderSource lists providers a patient with the given payer may book.
type ProviderSource interface {
	BookableProviders(ctx context.Context, payerID uuid.UUID) ([]uuid.UUID, error)
}

const minPatientQuery = 2

type Service struct {
	providers ProviderSource
	ehr       ehr.Client
	loc       *time.Location
	logger    zerolog.Logger
}

func NewService(providers ProviderSource, client ehr.Client, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{providers: providers, ehr: client, loc: loc, logger: logger}
}

func validateQuery(q AvailabilityQuery) error {
	if q.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalid)
	}
	if q.PayerID == uuid.Nil {
		return fmt.Errorf("%w: payer_id is required", ErrInvalid)
	}
	return nil
}

// Slots returns the open, localized slots for the query, ordered by start
// time then provider.
func (s *Service) Slots(ctx context.Context, q AvailabilityQuery) ([]TimeSlot, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	providerIDs, err := s.providers.BookableProviders(ctx, q.PayerID)
	if err != nil {
		return nil, fmt.Errorf("bookable providers: %w", err)
	}
	if len(providerIDs) == 0 {
		return []TimeSlot{}, nil
	}
	ids := make([]string, len(providerIDs))
	for i, id := range providerIDs {
		ids[i] = id.String()
	}

	raw, err := s.ehr.Availability(ctx, ehr.AvailabilityRequest{Date: q.Date.String(), ProviderIDs: ids})
	if err != nil {
		return nil, fmt.Errorf("ehr availability: %w", err)
	}

	open := make([]ehr.Slot, 0, len(raw))
	for _, sl := range raw {
		if !sl.Available {
			continue
		}
		// Consolidation assumes one calendar day in the booking zone.
		if !date.Of(sl.Start.In(s.loc)).Equal(q.Date) {
			continue
		}
		open = append(open, sl)
	}
	sort.SliceStable(open, func(i, j int) bool {
		if !open[i].Start.Equal(open[j].Start) {
			return open[i].Start.Before(open[j].Start)
		}
		return open[i].ProviderID < open[j].ProviderID
	})

	out := make([]TimeSlot, len(open))
	for i, sl := range open {
		out[i] = TimeSlot{
			StartTime:  sl.Start.In(s.loc).Format(time.RFC3339),
			EndTime:    sl.End.In(s.loc).Format(time.RFC3339),
			ProviderID: sl.ProviderID,
			Available:  true,
		}
	}
	return out, nil
}

func (s *Service) Availability(ctx context.Context, q AvailabilityQuery) (*Availability, error) {
	slots, err := s.Slots(ctx, q)
	if err != nil {
		return nil, err
	}
	return &Availability{Date: q.Date, Slots: ConsolidateSlots(slots)}, nil
}

// Select binds the requested clock time to the first provider offering it.
func (s *Service) Select(ctx context.Context, q AvailabilityQuery, hhmm string) ([]ConsolidatedTimeSlot, TimeSlot, error) {
	if hhmm == "" {
		return nil, TimeSlot{}, fmt.Errorf("%w: time is required", ErrInvalid)
	}
	avail, err := s.Availability(ctx, q)
	if err != nil {
		return nil, TimeSlot{}, err
	}
	groups, slot, ok := SelectSlot(avail.Slots, hhmm)
	if !ok {
		return nil, TimeSlot{}, ErrSlotNotFound
	}
	return groups, slot, nil
}

// bookAttempts bounds how often Book re-reads availability after the EHR
// reports the chosen provider as taken.
const bookAttempts = 2

func (s *Service) Book(ctx context.Context, req BookingRequest) (*ehr.Confirmation, error) {
	if strings.TrimSpace(req.Patient.FirstName) == "" || strings.TrimSpace(req.Patient.LastName) == "" {
		return nil, fmt.Errorf("%w: patient first and last name are required", ErrInvalid)
	}

	tried := make(map[string]bool)
	for attempt := 1; ; attempt++ {
		groups, slot, err := s.Select(ctx, req.AvailabilityQuery, req.Time)
		if err != nil {
			return nil, err
		}
		slot, ok := untried(groups, slot, tried)
		if !ok {
			return nil, ErrSlotTaken
		}
		conf, err := s.bookSlot(ctx, req, slot)
		if errors.Is(err, ErrSlotTaken) && attempt < bookAttempts {
			tried[slot.ProviderID] = true
			s.logger.Info().
				Str("provider_id", slot.ProviderID).
				Str("time", req.Time).
				Msg("slot taken upstream, retrying with fresh availability")
			continue
		}
		return conf, err
	}
}

// untried returns slot, or the next provider at the same time when slot's
// provider was already refused.
func untried(groups []ConsolidatedTimeSlot, slot TimeSlot, tried map[string]bool) (TimeSlot, bool) {
	if !tried[slot.ProviderID] {
		return slot, true
	}
	for _, g := range groups {
		if !g.IsSelected {
			continue
		}
		for _, alt := range g.AvailableSlots {
			if !tried[alt.ProviderID] {
				return alt, true
			}
		}
	}
	return TimeSlot{}, false
}

func (s *Service) bookSlot(ctx context.Context, req BookingRequest, slot TimeSlot) (*ehr.Confirmation, error) {
	start, err := time.Parse(time.RFC3339, slot.StartTime)
	if err != nil {
		return nil, fmt.Errorf("parse slot start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, slot.EndTime)
	if err != nil {
		return nil, fmt.Errorf("parse slot end: %w", err)
	}

	conf, err := s.ehr.BookAppointment(ctx, ehr.BookingRequest{
		ProviderID: slot.ProviderID,
		Start:      start,
		End:        end,
		PayerID:    req.PayerID.String(),
		Patient:    req.Patient,
		Reason:     req.Reason,
	})
	switch {
	case errors.Is(err, ehr.ErrConflict):
		return nil, ErrSlotTaken
	case errors.Is(err, ehr.ErrNotFound):
		return nil, ErrSlotNotFound
	case errors.Is(err, ehr.ErrInvalid):
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	case err != nil:
		return nil, fmt.Errorf("ehr book: %w", err)
	}

	s.logger.Info().
		Str("appointment_id", conf.AppointmentID).
		Str("provider_id", conf.ProviderID).
		Str("payer_id", req.PayerID.String()).
		Time("start", conf.Start).
		Msg("appointment booked")
	return conf, nil
}

func (s *Service) SearchPatients(ctx context.Context, query string) ([]ehr.Patient, error) {
	query = strings.TrimSpace(query)
	if len(query) < minPatientQuery {
		return nil, fmt.Errorf("%w: search query must be at least %d characters", ErrInvalid, minPatientQuery)
	}
	patients, err := s.ehr.SearchPatients(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ehr patient search: %w", err)
	}
	if patients == nil {
		patients = []ehr.Patient{}
	}
	return patients, nil
}

package booking

import (
	"errors"

	"github.com/google/uuid"

	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/ehr"
	"github.com/moonlitpsych/moonlit-scheduler/pkg/date"
)

var (
	ErrSlotNotFound = errors.New("no availability at the selected time")
	ErrSlotTaken    = errors.New("the selected time was just booked")
	ErrInvalid      = errors.New("invalid booking request")
)

// TimeSlot is one provider's open interval. Times are ISO-8601 strings
// already localized to the booking time zone.
type TimeSlot struct {
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	ProviderID string `json:"provider_id"`
	Available  bool   `json:"available"`
}

// ConsolidatedTimeSlot groups every TimeSlot starting at the same clock time.
type ConsolidatedTimeSlot struct {
	Time           string     `json:"time"`
	DisplayTime    string     `json:"display_time"`
	AvailableSlots []TimeSlot `json:"available_slots"`
	IsSelected     bool       `json:"is_selected"`
}

type AvailabilityQuery struct {
	Date    date.Date `json:"date"`
	PayerID uuid.UUID `json:"payer_id"`
}

type SelectRequest struct {
	AvailabilityQuery
	Time string `json:"time"`
}

type BookingRequest struct {
	AvailabilityQuery
	Time    string      `json:"time"`
	Patient ehr.Patient `json:"patient"`
	Reason  string      `json:"reason,omitempty"`
}

type Availability struct {
	Date  date.Date              `json:"date"`
	Slots []ConsolidatedTimeSlot `json:"slots"`
}

// Package ehr talks to the external EHR that owns provider calendars,
// patient records and real appointments.
package ehr

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound = errors.New("ehr: not found")
	ErrConflict = errors.New("ehr: slot already booked")
	ErrInvalid  = errors.New("ehr: invalid request")
)

// APIError is a non-2xx response that maps to no sentinel.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ehr: status %d: %s", e.StatusCode, e.Message)
}

// Slot is one provider's open interval as reported by the EHR.
type Slot struct {
	ProviderID string    `json:"provider_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Available  bool      `json:"available"`
}

type AvailabilityRequest struct {
	Date        string   `json:"date"` // YYYY-MM-DD
	ProviderIDs []string `json:"provider_ids"`
}

type Patient struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

type BookingRequest struct {
	ProviderID string    `json:"provider_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	PayerID    string    `json:"payer_id,omitempty"`
	Patient    Patient   `json:"patient"`
	Reason     string    `json:"reason,omitempty"`
}

type Confirmation struct {
	AppointmentID string    `json:"appointment_id"`
	ProviderID    string    `json:"provider_id"`
	PatientID     string    `json:"patient_id"`
	Status        string    `json:"status"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	CreatedAt     time.Time `json:"created_at"`
}

type Client interface {
	Availability(ctx context.Context, req AvailabilityRequest) ([]Slot, error)
	SearchPatients(ctx context.Context, query string) ([]Patient, error)
	BookAppointment(ctx context.Context, req BookingRequest) (*Confirmation, error)
}

func validateBooking(req BookingRequest) error {
	switch {
	case req.ProviderID == "":
		return fmt.Errorf("%w: provider_id is required", ErrInvalid)
	case req.Start.IsZero() || !req.End.After(req.Start):
		return fmt.Errorf("%w: start and end are required and end must follow start", ErrInvalid)
	case req.Patient.FirstName == "" || req.Patient.LastName == "":
		return fmt.Errorf("%w: patient first and last name are required", ErrInvalid)
	}
	return nil
}

package supervision

import (
	"time"

	"github.com/google/uuid"

	"github.com/moonlitpsych/moonlit-scheduler/pkg/date"
)

type Designation string

const (
	DesignationPrimary   Designation = "primary"
	DesignationSecondary Designation = "secondary"
)

func (d Designation) Valid() bool {
	return d == DesignationPrimary || d == DesignationSecondary
}

// Relationship maps to the supervision_relationships table. The active period
// is the half-open range [EffectiveDate, ExpirationDate); a nil expiration is
// open-ended.
type Relationship struct {
	ID                  uuid.UUID   `db:"id" json:"id"`
	ResidentProviderID  uuid.UUID   `db:"resident_provider_id" json:"resident_provider_id"`
	AttendingProviderID uuid.UUID   `db:"attending_provider_id" json:"attending_provider_id"`
	Designation         Designation `db:"designation" json:"designation"`
	EffectiveDate       date.Date   `db:"effective_date" json:"effective_date"`
	ExpirationDate      *date.Date  `db:"expiration_date" json:"expiration_date,omitempty"`
	ModalityConstraints []string    `db:"modality_constraints" json:"modality_constraints"`
	ConcurrencyCap      *int        `db:"concurrency_cap" json:"concurrency_cap,omitempty"`
	IsActive            bool        `db:"is_active" json:"is_active"`
	Notes               *string     `db:"notes" json:"notes,omitempty"`
	CreatedAt           time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time   `db:"updated_at" json:"updated_at"`
}

// Covers reports whether the relationship is active on d.
func (r *Relationship) Covers(d date.Date) bool {
	return r.IsActive && date.Within(d, r.EffectiveDate, r.ExpirationDate)
}

// Candidate is a proposed create or edit. EditingID names the relationship
// being edited so it is not compared against itself.
type Candidate struct {
	EditingID           *uuid.UUID  `json:"-"`
	ResidentProviderID  uuid.UUID   `json:"resident_provider_id"`
	AttendingProviderID uuid.UUID   `json:"attending_provider_id"`
	Designation         Designation `json:"designation"`
	EffectiveDate       date.Date   `json:"effective_date"`
	ExpirationDate      *date.Date  `json:"expiration_date,omitempty"`
	ModalityConstraints []string    `json:"modality_constraints,omitempty"`
	ConcurrencyCap      *int        `json:"concurrency_cap,omitempty"`
	Notes               *string     `json:"notes,omitempty"`
}

func (c Candidate) apply(r *Relationship) {
	r.ResidentProviderID = c.ResidentProviderID
	r.AttendingProviderID = c.AttendingProviderID
	r.Designation = c.Designation
	r.EffectiveDate = c.EffectiveDate
	r.ExpirationDate = c.ExpirationDate
	r.ModalityConstraints = c.ModalityConstraints
	if r.ModalityConstraints == nil {
		r.ModalityConstraints = []string{}
	}
	r.ConcurrencyCap = c.ConcurrencyCap
	r.Notes = c.Notes
}

// ListFilter narrows List. Zero fields match everything.
type ListFilter struct {
	ResidentID  *uuid.UUID
	AttendingID *uuid.UUID
	ActiveOnly  bool
}

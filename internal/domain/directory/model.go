package directory

import (
	"time"

	"github.com/google/uuid"

	"github.com/moonlitpsych/moonlit-scheduler/pkg/date"
)

// Provider roles.
const (
	RoleResident    = "resident"
	RoleAttending   = "attending"
	RoleIndependent = "independent"
)

type Provider struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	FirstName          string    `db:"first_name" json:"first_name"`
	LastName           string    `db:"last_name" json:"last_name"`
	NPI                *string   `db:"npi" json:"npi,omitempty"`
	Role               string    `db:"role" json:"role"`
	Email              *string   `db:"email" json:"email,omitempty"`
	IsBookable         bool      `db:"is_bookable" json:"is_bookable"`
	AcceptsNewPatients bool      `db:"accepts_new_patients" json:"accepts_new_patients"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

func (p *Provider) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Payer types.
const (
	PayerInsurance = "insurance"
	PayerSelfPay   = "self_pay"
)

type Payer struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	PayerType     string     `db:"payer_type" json:"payer_type"`
	State         *string    `db:"state" json:"state,omitempty"`
	EffectiveDate *date.Date `db:"effective_date" json:"effective_date,omitempty"`
	IsActive      bool       `db:"is_active" json:"is_active"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// AcceptingOn reports whether the payer is active and effective on d. A payer
// with no effective date is effective immediately.
func (p *Payer) AcceptingOn(d date.Date) bool {
	if !p.IsActive {
		return false
	}
	return p.EffectiveDate == nil || !p.EffectiveDate.After(d)
}

type NetworkStatus string

const (
	StatusNotStarted NetworkStatus = "not_started"
	StatusApplied    NetworkStatus = "applied"
	StatusPending    NetworkStatus = "pending"
	StatusInNetwork  NetworkStatus = "in_network"
	StatusDenied     NetworkStatus = "denied"
	StatusTerminated NetworkStatus = "terminated"
)

type BillingMode string

const (
	BillingDirect     BillingMode = "direct"
	BillingSupervised BillingMode = "supervised"
)

// Network is a provider's contract with a payer. Supervised billing means
// claims go out under a supervising attending.
type Network struct {
	ID             uuid.UUID     `db:"id" json:"id"`
	ProviderID     uuid.UUID     `db:"provider_id" json:"provider_id"`
	PayerID        uuid.UUID     `db:"payer_id" json:"payer_id"`
	Status         NetworkStatus `db:"status" json:"status"`
	BillingMode    BillingMode   `db:"billing_mode" json:"billing_mode"`
	EffectiveDate  *date.Date    `db:"effective_date" json:"effective_date,omitempty"`
	ExpirationDate *date.Date    `db:"expiration_date" json:"expiration_date,omitempty"`
	Notes          *string       `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// CoversOn reports whether the contract is in force on d.
func (n *Network) CoversOn(d date.Date) bool {
	if n.Status != StatusInNetwork || n.EffectiveDate == nil {
		return false
	}
	return date.Within(d, *n.EffectiveDate, n.ExpirationDate)
}

type ProviderFilter struct {
	Role         string
	BookableOnly bool
}

type NetworkFilter struct {
	ProviderID *uuid.UUID
	PayerID    *uuid.UUID
	Status     NetworkStatus
}

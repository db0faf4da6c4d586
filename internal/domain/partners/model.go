package partners

import (
	"time"

	"github.com/google/uuid"
)

const (
	tableOrganizations = "partner_organizations"
	tableContacts      = "partner_contacts"
)

var validOrgTypes = map[string]bool{
	"clinic": true, "hospital": true, "community": true, "school": true, "other": true,
}

var validStatuses = map[string]bool{
	"prospect": true, "active": true, "inactive": true,
}

type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	OrgType   string    `json:"org_type"`
	Status    string    `json:"status"`
	City      *string   `json:"city,omitempty"`
	State     *string   `json:"state,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Website   *string   `json:"website,omitempty"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrganizationInput is a create or partial update. Nil fields are left out
// of the written row.
type OrganizationInput struct {
	Name    *string `json:"name,omitempty"`
	OrgType *string `json:"org_type,omitempty"`
	Status  *string `json:"status,omitempty"`
	City    *string `json:"city,omitempty"`
	State   *string `json:"state,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Website *string `json:"website,omitempty"`
	Notes   *string `json:"notes,omitempty"`
}

type Contact struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Email          *string   `json:"email,omitempty"`
	Phone          *string   `json:"phone,omitempty"`
	Title          *string   `json:"title,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type ContactInput struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Email          *string   `json:"email,omitempty"`
	Phone          *string   `json:"phone,omitempty"`
	Title          *string   `json:"title,omitempty"`
}

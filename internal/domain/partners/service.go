package partners

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/rowstore"
	"github.com/moonlitpsych/moonlit-scheduler/pkg/pagination"
)

var ErrNotFound = errors.New("partner record not found")

// Service passes partner records through to the row store.
type Service struct {
	rows rowstore.Store
}

func NewService(rows rowstore.Store) *Service {
	return &Service{rows: rows}
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}

func validateOrganization(in *OrganizationInput, create bool) error {
	in.Name = trimmed(in.Name)
	if create && (in.Name == nil || *in.Name == "") {
		return fmt.Errorf("name is required")
	}
	if in.Name != nil && *in.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if in.OrgType != nil && !validOrgTypes[*in.OrgType] {
		return fmt.Errorf("unknown org_type %q", *in.OrgType)
	}
	if in.Status != nil && !validStatuses[*in.Status] {
		return fmt.Errorf("unknown status %q", *in.Status)
	}
	return nil
}

// ListOrganizations returns one page, optionally filtered by status. Partner
// tables are small, so the page is cut after the filtered read.
func (s *Service) ListOrganizations(ctx context.Context, status string, p pagination.Params) ([]Organization, int, error) {
	f := rowstore.Filter{}
	if status != "" {
		f = rowstore.Where("status", status)
	}
	var orgs []Organization
	if err := s.rows.Select(ctx, tableOrganizations, f.Order("name", false), &orgs); err != nil {
		return nil, 0, err
	}
	page, total := pagination.Slice(orgs, p)
	return page, total, nil
}

func (s *Service) GetOrganization(ctx context.Context, id uuid.UUID) (*Organization, error) {
	var orgs []Organization
	if err := s.rows.Select(ctx, tableOrganizations, rowstore.Where("id", id), &orgs); err != nil {
		return nil, err
	}
	if len(orgs) == 0 {
		return nil, ErrNotFound
	}
	return &orgs[0], nil
}

func (s *Service) CreateOrganization(ctx context.Context, in OrganizationInput) (*Organization, error) {
	if in.OrgType == nil {
		other := "other"
		in.OrgType = &other
	}
	if in.Status == nil {
		prospect := "prospect"
		in.Status = &prospect
	}
	if err := validateOrganization(&in, true); err != nil {
		return nil, err
	}
	var out []Organization
	if err := s.rows.Insert(ctx, tableOrganizations, in, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("insert returned no row")
	}
	return &out[0], nil
}

func (s *Service) UpdateOrganization(ctx context.Context, id uuid.UUID, in OrganizationInput) (*Organization, error) {
	if err := validateOrganization(&in, false); err != nil {
		return nil, err
	}
	var out []Organization
	if err := s.rows.Update(ctx, tableOrganizations, rowstore.Where("id", id), in, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

// DeleteOrganization removes the organization and its contacts.
func (s *Service) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	if _, err := s.rows.Delete(ctx, tableContacts, rowstore.Where("organization_id", id)); err != nil {
		return err
	}
	n, err := s.rows.Delete(ctx, tableOrganizations, rowstore.Where("id", id))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) ListContacts(ctx context.Context, orgID uuid.UUID) ([]Contact, error) {
	contacts := []Contact{}
	err := s.rows.Select(ctx, tableContacts, rowstore.Where("organization_id", orgID).Order("name", false), &contacts)
	return contacts, err
}

func (s *Service) CreateContact(ctx context.Context, orgID uuid.UUID, in ContactInput) (*Contact, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if in.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*in.Email))
		if !strings.Contains(e, "@") {
			return nil, fmt.Errorf("email is not valid")
		}
		in.Email = &e
	}
	if _, err := s.GetOrganization(ctx, orgID); err != nil {
		return nil, err
	}
	in.OrganizationID = orgID

	var out []Contact
	if err := s.rows.Insert(ctx, tableContacts, in, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("insert returned no row")
	}
	return &out[0], nil
}

func (s *Service) DeleteContact(ctx context.Context, orgID, contactID uuid.UUID) error {
	n, err := s.rows.Delete(ctx, tableContacts, rowstore.Where("id", contactID).And("organization_id", orgID))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

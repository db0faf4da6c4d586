package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/moonlitpsych/moonlit-scheduler/pkg/date"
)

type Service struct {
	providers ProviderRepository
	payers    PayerRepository
	networks  NetworkRepository
	now       func() time.Time
	loc       *time.Location
}

func NewService(providers ProviderRepository, payers PayerRepository, networks NetworkRepository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{providers: providers, payers: payers, networks: networks, now: time.Now, loc: loc}
}

func (s *Service) today() date.Date {
	return date.Of(s.now().In(s.loc))
}

// -- Provider --

var validProviderRoles = map[string]bool{
	RoleResident: true, RoleAttending: true, RoleIndependent: true,
}

func validateProvider(p *Provider) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if !validProviderRoles[p.Role] {
		return fmt.Errorf("role must be resident, attending or independent")
	}
	if p.NPI != nil && *p.NPI != "" && !isNPI(*p.NPI) {
		return fmt.Errorf("npi must be 10 digits")
	}
	if p.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*p.Email))
		p.Email = &e
	}
	return nil
}

func isNPI(s string) bool {
	if len(s) != 10 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (s *Service) CreateProvider(ctx context.Context, p *Provider) error {
	if p.Role == "" {
		p.Role = RoleIndependent
	}
	if err := validateProvider(p); err != nil {
		return err
	}
	return s.providers.Create(ctx, p)
}

func (s *Service) GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	return s.providers.GetByID(ctx, id)
}

func (s *Service) UpdateProvider(ctx context.Context, p *Provider) error {
	if err := validateProvider(p); err != nil {
		return err
	}
	return s.providers.Update(ctx, p)
}

func (s *Service) DeleteProvider(ctx context.Context, id uuid.UUID) error {
	return s.providers.Delete(ctx, id)
}

func (s *Service) ListProviders(ctx context.Context, f ProviderFilter, limit, offset int) ([]*Provider, int, error) {
	return s.providers.List(ctx, f, limit, offset)
}

func (s *Service) AllProviders(ctx context.Context) ([]*Provider, error) {
	return s.providers.ListAll(ctx)
}

// -- Payer --

func validatePayer(p *Payer) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.PayerType != PayerInsurance && p.PayerType != PayerSelfPay {
		return fmt.Errorf("payer_type must be insurance or self_pay")
	}
	if p.State != nil {
		st := strings.ToUpper(strings.TrimSpace(*p.State))
		if len(st) != 2 {
			return fmt.Errorf("state must be a two-letter code")
		}
		p.State = &st
	}
	return nil
}

func (s *Service) CreatePayer(ctx context.Context, p *Payer) error {
	if p.PayerType == "" {
		p.PayerType = PayerInsurance
	}
	if err := validatePayer(p); err != nil {
		return err
	}
	return s.payers.Create(ctx, p)
}

func (s *Service) GetPayer(ctx context.Context, id uuid.UUID) (*Payer, error) {
	return s.payers.GetByID(ctx, id)
}

func (s *Service) UpdatePayer(ctx context.Context, p *Payer) error {
	if err := validatePayer(p); err != nil {
		return err
	}
	return s.payers.Update(ctx, p)
}

func (s *Service) DeletePayer(ctx context.Context, id uuid.UUID) error {
	return s.payers.Delete(ctx, id)
}

func (s *Service) ListPayers(ctx context.Context, activeOnly bool, limit, offset int) ([]*Payer, int, error) {
	return s.payers.List(ctx, activeOnly, limit, offset)
}

func (s *Service) AllPayers(ctx context.Context) ([]*Payer, error) {
	return s.payers.ListAll(ctx)
}

// -- Network --

func validateNetwork(n *Network) error {
	if n.ProviderID == uuid.Nil {
		return fmt.Errorf("provider_id is required")
	}
	if n.PayerID == uuid.Nil {
		return fmt.Errorf("payer_id is required")
	}
	if n.BillingMode != BillingDirect && n.BillingMode != BillingSupervised {
		return fmt.Errorf("billing_mode must be direct or supervised")
	}
	if !n.Status.Valid() {
		return fmt.Errorf("unknown status %q", n.Status)
	}
	if n.EffectiveDate != nil && n.ExpirationDate != nil && !n.ExpirationDate.After(*n.EffectiveDate) {
		return fmt.Errorf("expiration_date must be after effective_date")
	}
	return nil
}

// CreateNetwork starts a contract record. New records begin at not_started
// unless the caller is backfilling an existing contract.
func (s *Service) CreateNetwork(ctx context.Context, n *Network) error {
	if n.Status == "" {
		n.Status = StatusNotStarted
	}
	if n.BillingMode == "" {
		n.BillingMode = BillingDirect
	}
	if err := validateNetwork(n); err != nil {
		return err
	}
	if _, err := s.providers.GetByID(ctx, n.ProviderID); err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	if _, err := s.payers.GetByID(ctx, n.PayerID); err != nil {
		return fmt.Errorf("payer: %w", err)
	}
	return s.networks.Create(ctx, n)
}

func (s *Service) GetNetwork(ctx context.Context, id uuid.UUID) (*Network, error) {
	return s.networks.GetByID(ctx, id)
}

// UpdateNetwork edits the contract details. Status only moves through
// AdvanceNetwork.
func (s *Service) UpdateNetwork(ctx context.Context, n *Network) error {
	current, err := s.networks.GetByID(ctx, n.ID)
	if err != nil {
		return err
	}
	n.ProviderID = current.ProviderID
	n.PayerID = current.PayerID
	n.Status = current.Status
	if n.BillingMode == "" {
		n.BillingMode = current.BillingMode
	}
	if err := validateNetwork(n); err != nil {
		return err
	}
	return s.networks.Update(ctx, n)
}

// AdvanceNetwork moves a contract along the application workflow. Entering
// in_network stamps the effective date when none was recorded; termination
// closes the contract today.
func (s *Service) AdvanceNetwork(ctx context.Context, id uuid.UUID, to NetworkStatus, effective *date.Date) (*Network, error) {
	n, err := s.networks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(n.Status, to); err != nil {
		return nil, err
	}

	switch to {
	case StatusInNetwork:
		if effective != nil {
			n.EffectiveDate = effective
		} else if n.EffectiveDate == nil {
			today := s.today()
			n.EffectiveDate = &today
		}
		n.ExpirationDate = nil
	case StatusTerminated:
		end := s.today()
		if n.EffectiveDate != nil && !end.After(*n.EffectiveDate) {
			end = n.EffectiveDate.AddDays(1)
		}
		n.ExpirationDate = &end
	}
	n.Status = to
	if err := s.networks.Update(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) DeleteNetwork(ctx context.Context, id uuid.UUID) error {
	return s.networks.Delete(ctx, id)
}

func (s *Service) ListNetworks(ctx context.Context, f NetworkFilter, limit, offset int) ([]*Network, int, error) {
	return s.networks.List(ctx, f, limit, offset)
}

func (s *Service) AllNetworks(ctx context.Context) ([]*Network, error) {
	return s.networks.ListAll(ctx)
}

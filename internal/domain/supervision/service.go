package supervision

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/db"
)

// Service writes supervision relationships. Every write takes a per-resident
// lock, re-reads that resident's active relationships inside the transaction
// and validates against that read, so concurrent admins cannot both pass
// validation. The table constraints back this up.
type Service struct {
	repo   Repository
	tx     db.Transactor
	logger zerolog.Logger
}

func NewService(repo Repository, tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, logger: logger}
}

func residentLockKey(id uuid.UUID) string {
	return "supervision:resident:" + id.String()
}

// lockResidents locks in a fixed order so two edits moving relationships
// between the same residents cannot deadlock.
func (s *Service) lockResidents(ctx context.Context, ids ...uuid.UUID) error {
	keys := make([]string, 0, len(ids))
	seen := map[uuid.UUID]bool{}
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		keys = append(keys, residentLockKey(id))
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := s.tx.Lock(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) validateFresh(ctx context.Context, c Candidate) error {
	var existing []*Relationship
	if c.ResidentProviderID != uuid.Nil {
		var err error
		existing, err = s.repo.ListActiveByResident(ctx, c.ResidentProviderID)
		if err != nil {
			return err
		}
	}
	if errs := Validate(c, existing); len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func (s *Service) Create(ctx context.Context, c Candidate) (*Relationship, error) {
	c.EditingID = nil
	rel := &Relationship{IsActive: true}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.lockResidents(ctx, c.ResidentProviderID); err != nil {
			return err
		}
		if err := s.validateFresh(ctx, c); err != nil {
			return err
		}
		c.apply(rel)
		return s.repo.Create(ctx, rel)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("id", rel.ID.String()).
		Str("resident", rel.ResidentProviderID.String()).
		Str("attending", rel.AttendingProviderID.String()).
		Str("designation", string(rel.Designation)).
		Msg("supervision relationship created")
	return rel, nil
}

// Update replaces the editable fields of id. Inactive relationships are not
// checked for overlap since they do not count against the resident.
func (s *Service) Update(ctx context.Context, id uuid.UUID, c Candidate) (*Relationship, error) {
	c.EditingID = &id
	var rel *Relationship
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.lockResidents(ctx, current.ResidentProviderID, c.ResidentProviderID); err != nil {
			return err
		}
		if current.IsActive {
			if err := s.validateFresh(ctx, c); err != nil {
				return err
			}
		} else if errs := Validate(c, nil); len(errs) > 0 {
			return &ValidationError{Errors: errs}
		}
		c.apply(current)
		rel = current
		return s.repo.Update(ctx, current)
	})
	if err != nil {
		return nil, err
	}
	return rel, nil
}

// Preview validates against a fresh read without writing. The answer can be
// stale by the time the caller submits; Create and Update re-check.
func (s *Service) Preview(ctx context.Context, c Candidate) ([]string, error) {
	var existing []*Relationship
	if c.ResidentProviderID != uuid.Nil {
		var err error
		if existing, err = s.repo.ListActiveByResident(ctx, c.ResidentProviderID); err != nil {
			return nil, err
		}
	}
	return Validate(c, existing), nil
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.logger.Info().Str("id", id.String()).Msg("supervision relationship deactivated")
	return nil
}

// Activate re-enables a relationship, which must again fit the resident's
// active set.
func (s *Service) Activate(ctx context.Context, id uuid.UUID) (*Relationship, error) {
	var rel *Relationship
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if current.IsActive {
			rel = current
			return nil
		}
		if err := s.lockResidents(ctx, current.ResidentProviderID); err != nil {
			return err
		}
		if err := s.validateFresh(ctx, candidateOf(current)); err != nil {
			return err
		}
		if err := s.repo.SetActive(ctx, id, true); err != nil {
			return err
		}
		current.IsActive = true
		rel = current
		return nil
	})
	return rel, err
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Relationship, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Relationship, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// ListActive returns every active relationship. Used by the roster rebuild.
func (s *Service) ListActive(ctx context.Context) ([]*Relationship, error) {
	return s.repo.ListActive(ctx)
}

func candidateOf(r *Relationship) Candidate {
	id := r.ID
	return Candidate{
		EditingID:           &id,
		ResidentProviderID:  r.ResidentProviderID,
		AttendingProviderID: r.AttendingProviderID,
		Designation:         r.Designation,
		EffectiveDate:       r.EffectiveDate,
		ExpirationDate:      r.ExpirationDate,
		ModalityConstraints: r.ModalityConstraints,
		ConcurrencyCap:      r.ConcurrencyCap,
		Notes:               r.Notes,
	}
}

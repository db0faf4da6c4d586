package roster

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/moonlitpsych/moonlit-scheduler/internal/domain/directory"
	"github.com/moonlitpsych/moonlit-scheduler/internal/domain/supervision"
	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/db"
	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/jobs"
	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/memo"
	"github.com/moonlitpsych/moonlit-scheduler/pkg/date"
)

// DirectorySource supplies providers, payers and contracts for a rebuild.
type DirectorySource interface {
	AllProviders(ctx context.Context) ([]*directory.Provider, error)
	AllPayers(ctx context.Context) ([]*directory.Payer, error)
	AllNetworks(ctx context.Context) ([]*directory.Network, error)
}

type SupervisionSource interface {
	ListActive(ctx context.Context) ([]*supervision.Relationship, error)
}

const rebuildLockKey = "roster:rebuild"

type Service struct {
	repo        Repository
	tx          db.Transactor
	directory   DirectorySource
	supervision SupervisionSource
	providers   *memo.Cache[[]uuid.UUID]
	loc         *time.Location
	now         func() time.Time
	logger      zerolog.Logger
}

// NewService builds the roster service. Bookable provider lookups are cached
// in store until the next rebuild.
func NewService(repo Repository, tx db.Transactor, dir DirectorySource, sup SupervisionSource,
	store memo.Store, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:        repo,
		tx:          tx,
		directory:   dir,
		supervision: sup,
		providers:   memo.New[[]uuid.UUID](store, memo.Options{TTL: 10 * time.Minute, Logger: logger}),
		loc:         loc,
		now:         time.Now,
		logger:      logger,
	}
}

func (s *Service) Today() date.Date {
	return date.Of(s.now().In(s.loc))
}

func (s *Service) loadInputs(ctx context.Context) (Inputs, error) {
	var in Inputs
	var err error
	if in.Providers, err = s.directory.AllProviders(ctx); err != nil {
		return in, fmt.Errorf("load providers: %w", err)
	}
	if in.Payers, err = s.directory.AllPayers(ctx); err != nil {
		return in, fmt.Errorf("load payers: %w", err)
	}
	if in.Networks, err = s.directory.AllNetworks(ctx); err != nil {
		return in, fmt.Errorf("load networks: %w", err)
	}
	if in.Supervisions, err = s.supervision.ListActive(ctx); err != nil {
		return in, fmt.Errorf("load supervision: %w", err)
	}
	return in, nil
}

// Rebuild recomputes the bookable table as of asOf (today when zero) and
// replaces it in one transaction. Concurrent rebuilds run one at a time.
func (s *Service) Rebuild(ctx context.Context, asOf date.Date) (*Result, error) {
	if asOf.IsZero() {
		asOf = s.Today()
	}
	start := time.Now()

	var rows []Bookable
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.tx.Lock(ctx, rebuildLockKey); err != nil {
			return err
		}
		in, err := s.loadInputs(ctx)
		if err != nil {
			return err
		}
		rows = ComputeBookable(in, asOf)
		return s.repo.Replace(ctx, rows)
	})
	if err != nil {
		return nil, err
	}
	if err := s.providers.Purge(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("purge bookable provider cache")
	}

	res := &Result{AsOf: asOf, Total: len(rows), Duration: time.Since(start)}
	for _, b := range rows {
		if b.BillingMode == directory.BillingSupervised {
			res.Supervised++
		} else {
			res.Direct++
		}
	}
	s.logger.Info().
		Str("as_of", asOf.String()).
		Int("total", res.Total).
		Int("direct", res.Direct).
		Int("supervised", res.Supervised).
		Dur("duration", res.Duration).
		Msg("roster rebuilt")
	return res, nil
}

// RunTask adapts Rebuild to the job worker.
func (s *Service) RunTask(ctx context.Context, p jobs.RosterRebuildPayload) error {
	var asOf date.Date
	if p.AsOf != "" {
		d, err := date.Parse(p.AsOf)
		if err != nil {
			return err
		}
		asOf = d
	}
	_, err := s.Rebuild(ctx, asOf)
	return err
}

func (s *Service) ListBookable(ctx context.Context, payerID *uuid.UUID) ([]Bookable, error) {
	return s.repo.List(ctx, payerID)
}

// BookableProviders returns the providers booking may offer for payerID.
func (s *Service) BookableProviders(ctx context.Context, payerID uuid.UUID) ([]uuid.UUID, error) {
	return s.providers.Get(ctx, memo.Key("bookable", payerID.String()), func(ctx context.Context) ([]uuid.UUID, error) {
		ids, err := s.repo.ProvidersForPayer(ctx, payerID)
		if err != nil {
			return nil, err
		}
		if ids == nil {
			ids = []uuid.UUID{}
		}
		return ids, nil
	})
}

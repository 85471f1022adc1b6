package companies

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Domenick1991/skybooking/internal/clock"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/logging"
	"github.com/Domenick1991/skybooking/internal/policy"
	"github.com/Domenick1991/skybooking/internal/repository"
)

type CompanyUseCase interface {
	List(ctx context.Context, activeOnly bool) ([]domain.Company, error)
	GetByID(ctx context.Context, id int64) (*domain.Company, error)
	Create(ctx context.Context, actor policy.Actor, input CompanyInput) (*domain.Company, error)
	Update(ctx context.Context, actor policy.Actor, id int64, input CompanyInput) (*domain.Company, error)
	Delete(ctx context.Context, actor policy.Actor, id int64) error
}

// FlightsCache is dropped when a company is renamed or removed, since cached
// flights carry the company name.
type FlightsCache interface {
	InvalidateFlights(ctx context.Context) error
}

type CompanyInput struct {
	Name *string
}

type CompanyService struct {
	companies repository.CompanyRepository
	cache     FlightsCache
	clock     clock.Clock
	log       *slog.Logger
}

type Option func(*CompanyService)

func WithCache(c FlightsCache) Option {
	return func(s *CompanyService) { s.cache = c }
}

func WithClock(c clock.Clock) Option {
	return func(s *CompanyService) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *CompanyService) { s.log = l }
}

func NewCompanyService(companies repository.CompanyRepository, opts ...Option) *CompanyService {
	s := &CompanyService{companies: companies, clock: clock.NewSystem(), log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List orders companies by name. activeOnly keeps companies with at least one
// flight that has not departed yet.
func (s *CompanyService) List(ctx context.Context, activeOnly bool) ([]domain.Company, error) {
	var filter repository.CompanyFilter
	if activeOnly {
		now := s.clock.Now()
		filter.ActiveAfter = &now
	}
	return s.companies.List(ctx, filter)
}

func (s *CompanyService) GetByID(ctx context.Context, id int64) (*domain.Company, error) {
	return s.companies.GetByID(ctx, id)
}

func (s *CompanyService) Create(ctx context.Context, actor policy.Actor, input CompanyInput) (*domain.Company, error) {
	if err := policy.Authorize(actor, policy.Create, policy.Companies, nil); err != nil {
		return nil, err
	}
	c := domain.Company{}
	if input.Name != nil {
		c.Name = strings.TrimSpace(*input.Name)
	}
	if err := s.validate(ctx, c); err != nil {
		return nil, err
	}
	if err := s.companies.Create(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CompanyService) Update(ctx context.Context, actor policy.Actor, id int64, input CompanyInput) (*domain.Company, error) {
	current, err := s.companies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.Update, policy.Companies, nil); err != nil {
		return nil, err
	}
	if input.Name != nil {
		current.Name = strings.TrimSpace(*input.Name)
	}
	if err := s.validate(ctx, *current); err != nil {
		return nil, err
	}
	if err := s.companies.Update(ctx, current); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return current, nil
}

// Delete removes the company together with its flights.
func (s *CompanyService) Delete(ctx context.Context, actor policy.Actor, id int64) error {
	if _, err := s.companies.GetByID(ctx, id); err != nil {
		return err
	}
	if err := policy.Authorize(actor, policy.Delete, policy.Companies, nil); err != nil {
		return err
	}
	if err := s.companies.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *CompanyService) validate(ctx context.Context, c domain.Company) error {
	if c.Name == "" {
		return domain.FieldError(nil, "can't be blank", "name")
	}
	taken, err := s.companies.NameTaken(ctx, c.Name, c.ID)
	if err != nil {
		return err
	}
	if taken {
		return domain.FieldError(domain.ErrNameTaken, "has already been taken", "name")
	}
	return nil
}

func (s *CompanyService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlights(ctx); err != nil {
		logging.FromContext(ctx, s.log).WarnContext(ctx, "flight cache invalidation failed", slog.Any("error", err))
	}
}

var _ CompanyUseCase = (*CompanyService)(nil)

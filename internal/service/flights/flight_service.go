package flights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Domenick1991/skybooking/internal/clock"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/kafka"
	"github.com/Domenick1991/skybooking/internal/logging"
	"github.com/Domenick1991/skybooking/internal/policy"
	"github.com/Domenick1991/skybooking/internal/pricing"
	"github.com/Domenick1991/skybooking/internal/repository"
	"github.com/Domenick1991/skybooking/internal/schedule"
)

type FlightUseCase interface {
	List(ctx context.Context, filter repository.FlightFilter) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	Create(ctx context.Context, actor policy.Actor, input FlightInput) (*domain.Flight, error)
	Update(ctx context.Context, actor policy.Actor, id int64, input FlightInput) (*domain.Flight, error)
	Delete(ctx context.Context, actor policy.Actor, id int64) error
}

// Cache holds the unfiltered listing. GetFlights reports the cache
// generation it looked at; a fill is stored under that generation.
type Cache interface {
	GetFlights(ctx context.Context) ([]domain.Flight, int64, error)
	SetFlights(ctx context.Context, gen int64, flights []domain.Flight) error
	InvalidateFlights(ctx context.Context) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

// FlightInput is a partial flight. Create requires every field, Update
// applies the non-nil ones.
type FlightInput struct {
	CompanyID *int64
	Name      *string
	Capacity  *int
	BaseFare  *int64
	DepartsAt *time.Time
	ArrivesAt *time.Time
}

type FlightService struct {
	flights   repository.FlightRepository
	companies repository.CompanyRepository
	bookings  repository.BookingRepository
	cache     Cache
	producer  Producer
	topic     string
	clock     clock.Clock
	log       *slog.Logger
}

type Option func(*FlightService)

func WithCache(c Cache) Option {
	return func(s *FlightService) { s.cache = c }
}

func WithProducer(p Producer, topic string) Option {
	return func(s *FlightService) {
		s.producer = p
		s.topic = topic
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *FlightService) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *FlightService) { s.log = l }
}

func NewFlightService(
	flights repository.FlightRepository,
	companies repository.CompanyRepository,
	bookings repository.BookingRepository,
	opts ...Option,
) *FlightService {
	s := &FlightService{
		flights:   flights,
		companies: companies,
		bookings:  bookings,
		clock:     clock.NewSystem(),
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List serves the unfiltered listing from cache when one is configured.
// Prices are always computed against the current time.
func (s *FlightService) List(ctx context.Context, filter repository.FlightFilter) ([]domain.Flight, error) {
	cacheable := filter.IsZero() && s.cache != nil
	var gen int64
	if cacheable {
		cached, g, err := s.cache.GetFlights(ctx)
		gen = g
		if err != nil {
			s.logger(ctx).WarnContext(ctx, "flight cache read failed", slog.Any("error", err))
			cacheable = false
		} else if cached != nil {
			return s.priced(cached), nil
		}
	}

	flights, err := s.flights.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if cacheable {
		if err := s.cache.SetFlights(ctx, gen, flights); err != nil {
			s.logger(ctx).WarnContext(ctx, "flight cache write failed", slog.Any("error", err))
		}
	}
	return s.priced(flights), nil
}

func (s *FlightService) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	f, err := s.flights.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	f.CurrentPrice = pricing.CurrentPrice(f.BaseFare, f.DepartsAt, s.clock.Now())
	return f, nil
}

func (s *FlightService) Create(ctx context.Context, actor policy.Actor, input FlightInput) (*domain.Flight, error) {
	if err := policy.Authorize(actor, policy.Create, policy.Flights, nil); err != nil {
		return nil, err
	}

	candidate := domain.Flight{}
	apply(&candidate, input)
	if err := validate(candidate, input, true); err != nil {
		return nil, err
	}

	err := s.flights.WithTx(ctx, func(ctx context.Context) error {
		if err := s.checkSchedule(ctx, candidate, candidate.CompanyID); err != nil {
			return err
		}
		return s.flights.Create(ctx, &candidate)
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, kafka.FlightCreated, candidate)
	return s.GetByID(ctx, candidate.ID)
}

// Update locks the flight row first and builds the new version from that
// locked row, then locks the old and new company and checks the target
// company's schedule and that capacity still covers the bookings. Locks are
// always taken flight before company.
func (s *FlightService) Update(ctx context.Context, actor policy.Actor, id int64, input FlightInput) (*domain.Flight, error) {
	if _, err := s.flights.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.Update, policy.Flights, nil); err != nil {
		return nil, err
	}

	var updated domain.Flight
	err := s.flights.WithTx(ctx, func(ctx context.Context) error {
		locked, err := s.flights.LockForUpdate(ctx, id)
		if err != nil {
			return err
		}
		current := locked[0]

		updated = current
		apply(&updated, input)
		if err := validate(updated, input, false); err != nil {
			return err
		}

		if err := s.checkSchedule(ctx, updated, current.CompanyID); err != nil {
			return err
		}
		booked, err := s.bookings.SumSeats(ctx, id)
		if err != nil {
			return err
		}
		if updated.Capacity < booked {
			return domain.FieldError(domain.ErrOverbooking,
				fmt.Sprintf("can't be less than booked seats (%d)", booked), "no_of_seats")
		}
		return s.flights.Update(ctx, &updated)
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, kafka.FlightUpdated, updated)
	return s.GetByID(ctx, id)
}

func (s *FlightService) Delete(ctx context.Context, actor policy.Actor, id int64) error {
	f, err := s.flights.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.Authorize(actor, policy.Delete, policy.Flights, nil); err != nil {
		return err
	}
	if err := s.flights.Delete(ctx, id); err != nil {
		return err
	}
	s.afterWrite(ctx, kafka.FlightDeleted, *f)
	return nil
}

// checkSchedule runs inside the caller's transaction. It locks the companies
// involved, then rejects a name clash or an overlapping flight.
func (s *FlightService) checkSchedule(ctx context.Context, candidate domain.Flight, previousCompany int64) error {
	if err := s.companies.LockForUpdate(ctx, candidate.CompanyID, previousCompany); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.FieldError(domain.ErrNotFound, "must exist", "company")
		}
		return err
	}

	taken, err := s.flights.NameTaken(ctx, candidate.CompanyID, candidate.Name, candidate.ID)
	if err != nil {
		return err
	}
	if taken {
		return domain.FieldError(domain.ErrNameTaken, "has already been taken", "name")
	}

	existing, err := s.flights.ListByCompany(ctx, candidate.CompanyID)
	if err != nil {
		return err
	}
	return schedule.CheckAvailability(candidate, existing)
}

func (s *FlightService) afterWrite(ctx context.Context, eventType string, f domain.Flight) {
	if s.cache != nil {
		if err := s.cache.InvalidateFlights(ctx); err != nil {
			s.logger(ctx).WarnContext(ctx, "flight cache invalidation failed", slog.Any("error", err))
		}
	}
	if s.producer == nil || s.topic == "" {
		return
	}
	event := kafka.NewFlightEvent(eventType, f, s.clock.Now())
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), kafka.PublishTimeout)
	defer cancel()
	if err := s.producer.Publish(pubCtx, s.topic, event.Key(), event); err != nil {
		s.logger(ctx).WarnContext(ctx, "failed to publish flight event",
			slog.String("type", eventType), slog.Int64("flight_id", f.ID), slog.Any("error", err))
	}
}

func (s *FlightService) priced(flights []domain.Flight) []domain.Flight {
	now := s.clock.Now()
	out := make([]domain.Flight, len(flights))
	for i, f := range flights {
		f.CurrentPrice = pricing.CurrentPrice(f.BaseFare, f.DepartsAt, now)
		out[i] = f
	}
	return out
}

func (s *FlightService) logger(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.log)
}

func apply(f *domain.Flight, in FlightInput) {
	if in.CompanyID != nil {
		f.CompanyID = *in.CompanyID
	}
	if in.Name != nil {
		f.Name = strings.TrimSpace(*in.Name)
	}
	if in.Capacity != nil {
		f.Capacity = *in.Capacity
	}
	if in.BaseFare != nil {
		f.BaseFare = *in.BaseFare
	}
	if in.DepartsAt != nil {
		f.DepartsAt = in.DepartsAt.UTC()
	}
	if in.ArrivesAt != nil {
		f.ArrivesAt = in.ArrivesAt.UTC()
	}
}

func validate(f domain.Flight, in FlightInput, create bool) error {
	v := domain.NewValidationError()
	blank := func(field string, missing bool) bool {
		if missing {
			v.Add(field, "can't be blank")
		}
		return missing
	}

	if create {
		blank("company", in.CompanyID == nil)
	}
	blank("name", f.Name == "")
	if !blank("no_of_seats", create && in.Capacity == nil) && f.Capacity <= 0 {
		v.Add("no_of_seats", "must be greater than 0")
	}
	if !blank("base_price", create && in.BaseFare == nil) && f.BaseFare <= 0 {
		v.Add("base_price", "must be greater than 0")
	}
	missingDeparts := blank("departs_at", f.DepartsAt.IsZero())
	missingArrives := blank("arrives_at", f.ArrivesAt.IsZero())
	if !missingDeparts && !missingArrives && !f.ArrivesAt.After(f.DepartsAt) {
		v.Add("departs_at", "must be before arrival time")
	}
	return v.OrNil()
}

var _ FlightUseCase = (*FlightService)(nil)

package booking

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Domenick1991/skybooking/internal/clock"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/inventory"
	"github.com/Domenick1991/skybooking/internal/kafka"
	"github.com/Domenick1991/skybooking/internal/logging"
	"github.com/Domenick1991/skybooking/internal/policy"
	"github.com/Domenick1991/skybooking/internal/repository"
)

type BookingUseCase interface {
	List(ctx context.Context, actor policy.Actor, activeOnly bool) ([]domain.Booking, error)
	GetByID(ctx context.Context, actor policy.Actor, id int64) (*domain.Booking, error)
	Create(ctx context.Context, actor policy.Actor, input BookingInput) (*domain.Booking, error)
	Update(ctx context.Context, actor policy.Actor, id int64, input BookingInput) (*domain.Booking, error)
	Delete(ctx context.Context, actor policy.Actor, id int64) error
}

// FlightsCache is invalidated whenever booked seat totals change.
type FlightsCache interface {
	InvalidateFlights(ctx context.Context) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

// BookingInput is a partial booking. A traveler creating a booking without a
// user id books for themself.
type BookingInput struct {
	FlightID  *int64
	UserID    *int64
	Seats     *int
	SeatPrice *int64
}

type BookingService struct {
	bookings repository.BookingRepository
	flights  repository.FlightRepository
	cache    FlightsCache
	producer Producer
	topic    string
	clock    clock.Clock
	log      *slog.Logger
}

type Option func(*BookingService)

func WithCache(c FlightsCache) Option {
	return func(s *BookingService) { s.cache = c }
}

func WithProducer(p Producer, topic string) Option {
	return func(s *BookingService) {
		s.producer = p
		s.topic = topic
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *BookingService) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *BookingService) { s.log = l }
}

func NewBookingService(bookings repository.BookingRepository, flights repository.FlightRepository, opts ...Option) *BookingService {
	s := &BookingService{
		bookings: bookings,
		flights:  flights,
		clock:    clock.NewSystem(),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the bookings visible to actor, ordered by flight departure.
// activeOnly keeps bookings whose flight has not departed yet.
func (s *BookingService) List(ctx context.Context, actor policy.Actor, activeOnly bool) ([]domain.Booking, error) {
	scope := policy.Scope(actor, policy.Bookings)
	if scope.Err != nil {
		return nil, scope.Err
	}
	filter := repository.BookingFilter{UserID: scope.OwnerID}
	if activeOnly {
		now := s.clock.Now()
		filter.ActiveAfter = &now
	}
	return s.bookings.List(ctx, filter)
}

func (s *BookingService) GetByID(ctx context.Context, actor policy.Actor, id int64) (*domain.Booking, error) {
	if err := policy.Authorize(actor, policy.List, policy.Bookings, nil); err != nil {
		return nil, err
	}
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.Read, policy.Bookings, b.UserID); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *BookingService) Create(ctx context.Context, actor policy.Actor, input BookingInput) (*domain.Booking, error) {
	if input.UserID == nil {
		if _, isTraveler := actor.(policy.Traveler); isTraveler {
			id, _ := policy.UserID(actor)
			input.UserID = &id
		}
	}
	if err := policy.Authorize(actor, policy.Create, policy.Bookings, input.UserID); err != nil {
		return nil, err
	}

	b := domain.Booking{}
	apply(&b, input)
	if err := validate(b, input, true); err != nil {
		return nil, err
	}

	err := s.bookings.WithTx(ctx, func(ctx context.Context) error {
		if err := s.reserve(ctx, b, nil); err != nil {
			return err
		}
		return s.bookings.Create(ctx, &b)
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, kafka.BookingCreated, b)
	return &b, nil
}

// Update re-checks departure and inventory on every change, crediting the
// booking's own seats when it stays on the same flight.
func (s *BookingService) Update(ctx context.Context, actor policy.Actor, id int64, input BookingInput) (*domain.Booking, error) {
	current, err := s.GetByID(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.Update, policy.Bookings, current.UserID); err != nil {
		return nil, err
	}
	if input.UserID != nil {
		if err := policy.Authorize(actor, policy.Create, policy.Bookings, input.UserID); err != nil {
			return nil, err
		}
	}

	var updated domain.Booking
	err = s.bookings.WithTx(ctx, func(ctx context.Context) error {
		locked, err := s.bookings.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		updated = *locked
		apply(&updated, input)
		if err := validate(updated, input, false); err != nil {
			return err
		}
		if err := s.reserve(ctx, updated, locked); err != nil {
			return err
		}
		return s.bookings.Update(ctx, &updated)
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, kafka.BookingUpdated, updated)
	return &updated, nil
}

func (s *BookingService) Delete(ctx context.Context, actor policy.Actor, id int64) error {
	b, err := s.GetByID(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := policy.Authorize(actor, policy.Delete, policy.Bookings, b.UserID); err != nil {
		return err
	}
	if err := s.bookings.Delete(ctx, id); err != nil {
		return err
	}
	s.afterWrite(ctx, kafka.BookingDeleted, *b)
	return nil
}

// reserve runs inside the caller's transaction. It locks the target flight,
// and the previous one when the booking moves, in ascending id order, then
// applies the departure and seat checks against the live booking total.
func (s *BookingService) reserve(ctx context.Context, b domain.Booking, prior *domain.Booking) error {
	if b.FlightID == nil {
		return domain.FieldError(domain.ErrNotFound, "must exist", "flight")
	}
	target := *b.FlightID

	ids := []int64{target}
	if prior != nil && prior.FlightID != nil && *prior.FlightID != target {
		ids = append(ids, *prior.FlightID)
	}
	locked, err := s.flights.LockForUpdate(ctx, ids...)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.FieldError(domain.ErrNotFound, "must exist", "flight")
		}
		return err
	}

	var flight *domain.Flight
	for i := range locked {
		if locked[i].ID == target {
			flight = &locked[i]
		}
	}
	if flight == nil {
		return domain.FieldError(domain.ErrNotFound, "must exist", "flight")
	}

	if err := inventory.CheckDeparture(flight.DepartsAt, s.clock.Now()); err != nil {
		return err
	}

	booked, err := s.bookings.SumSeats(ctx, target)
	if err != nil {
		return err
	}
	priorSeats := 0
	if prior != nil && prior.FlightID != nil && *prior.FlightID == target {
		priorSeats = prior.Seats
	}
	ledger := inventory.Ledger{Capacity: flight.Capacity, Booked: booked}
	return ledger.Reserve(b.Seats, priorSeats)
}

func (s *BookingService) afterWrite(ctx context.Context, eventType string, b domain.Booking) {
	if s.cache != nil {
		if err := s.cache.InvalidateFlights(ctx); err != nil {
			s.logger(ctx).WarnContext(ctx, "flight cache invalidation failed", slog.Any("error", err))
		}
	}
	if s.producer == nil || s.topic == "" {
		return
	}
	event := kafka.NewBookingEvent(eventType, b, s.clock.Now())
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), kafka.PublishTimeout)
	defer cancel()
	if err := s.producer.Publish(pubCtx, s.topic, event.Key(), event); err != nil {
		s.logger(ctx).WarnContext(ctx, "failed to publish booking event",
			slog.String("type", eventType), slog.Int64("booking_id", b.ID), slog.Any("error", err))
	}
}

func (s *BookingService) logger(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.log)
}

func apply(b *domain.Booking, in BookingInput) {
	if in.FlightID != nil {
		id := *in.FlightID
		b.FlightID = &id
	}
	if in.UserID != nil {
		id := *in.UserID
		b.UserID = &id
	}
	if in.Seats != nil {
		b.Seats = *in.Seats
	}
	if in.SeatPrice != nil {
		b.SeatPrice = *in.SeatPrice
	}
}

func validate(b domain.Booking, in BookingInput, create bool) error {
	v := domain.NewValidationError()
	if create && in.Seats == nil {
		v.Add("no_of_seats", "can't be blank")
	} else if b.Seats <= 0 {
		v.Add("no_of_seats", "must be greater than 0")
	}
	if create && in.SeatPrice == nil {
		v.Add("seat_price", "can't be blank")
	} else if b.SeatPrice <= 0 {
		v.Add("seat_price", "must be greater than 0")
	}
	if b.UserID == nil {
		v.Add("user", "must exist")
	}
	if b.FlightID == nil {
		v.Add("flight", "must exist")
	}
	return v.OrNil()
}

var _ BookingUseCase = (*BookingService)(nil)

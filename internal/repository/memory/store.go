// Package memory is a process-local implementation of the repository
// interfaces. A transaction holds the store lock for its whole duration, which
// serializes every atomic section, and is rolled back by restoring a snapshot.
package memory

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/repository"
)

type txKey struct{}

type state struct {
	companies map[int64]domain.Company
	flights   map[int64]domain.Flight
	bookings  map[int64]domain.Booking
	users     map[int64]domain.User
	events    map[string]domain.EventLogEntry
	nextID    int64
}

func (s state) clone() state {
	return state{
		companies: maps.Clone(s.companies),
		flights:   maps.Clone(s.flights),
		bookings:  maps.Clone(s.bookings),
		users:     maps.Clone(s.users),
		events:    maps.Clone(s.events),
		nextID:    s.nextID,
	}
}

type Store struct {
	mu  sync.Mutex
	st  state
	now func() time.Time
}

func New() *Store {
	return &Store{
		st: state{
			companies: map[int64]domain.Company{},
			flights:   map[int64]domain.Flight{},
			bookings:  map[int64]domain.Booking{},
			users:     map[int64]domain.User{},
			events:    map[string]domain.EventLogEntry{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Companies() repository.CompanyRepository { return companyRepo{s} }
func (s *Store) Flights() repository.FlightRepository    { return flightRepo{s} }
func (s *Store) Bookings() repository.BookingRepository  { return bookingRepo{s} }
func (s *Store) Users() repository.UserRepository        { return userRepo{s} }
func (s *Store) EventLog() repository.EventLogRepository { return eventLogRepo{s} }

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// do runs fn under the store lock unless ctx already holds it.
func (s *Store) do(ctx context.Context, fn func() error) error {
	if inTx(ctx) {
		return fn()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

func (s *Store) id() int64 {
	s.st.nextID++
	return s.st.nextID
}

func (s *Store) bookedSeats(flightID int64) int {
	total := 0
	for _, b := range s.st.bookings {
		if b.FlightID != nil && *b.FlightID == flightID {
			total += b.Seats
		}
	}
	return total
}

func (s *Store) summary(f domain.Flight) domain.Flight {
	f.CompanyName = s.st.companies[f.CompanyID].Name
	f.BookedSeats = s.bookedSeats(f.ID)
	return f
}

func (s *Store) nullifyBookings(match func(domain.Booking) bool, clear func(*domain.Booking)) {
	for id, b := range s.st.bookings {
		if match(b) {
			clear(&b)
			s.st.bookings[id] = b
		}
	}
}

func sameFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// nameLess orders names case-insensitively first, close to what the
// database's linguistic collation does. Exact order of accented or
// punctuated names may still differ from Postgres.
func nameLess(a, b string) bool {
	if la, lb := strings.ToLower(a), strings.ToLower(b); la != lb {
		return la < lb
	}
	return a < b
}

// companies

type companyRepo struct{ *Store }

func (r companyRepo) List(ctx context.Context, filter repository.CompanyFilter) ([]domain.Company, error) {
	out := make([]domain.Company, 0)
	err := r.do(ctx, func() error {
		for _, c := range r.st.companies {
			if filter.ActiveAfter != nil && !r.hasFlightAfter(c.ID, *filter.ActiveAfter) {
				continue
			}
			out = append(out, c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return nameLess(out[i].Name, out[j].Name)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (r companyRepo) hasFlightAfter(companyID int64, t time.Time) bool {
	for _, f := range r.st.flights {
		if f.CompanyID == companyID && f.DepartsAt.After(t) {
			return true
		}
	}
	return false
}

func (r companyRepo) GetByID(ctx context.Context, id int64) (*domain.Company, error) {
	var out *domain.Company
	err := r.do(ctx, func() error {
		c, ok := r.st.companies[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (r companyRepo) LockForUpdate(ctx context.Context, ids ...int64) error {
	return r.do(ctx, func() error {
		for _, id := range ids {
			if _, ok := r.st.companies[id]; !ok {
				return domain.ErrNotFound
			}
		}
		return nil
	})
}

func (r companyRepo) NameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	var taken bool
	err := r.do(ctx, func() error {
		taken = r.nameTaken(name, excludeID)
		return nil
	})
	return taken, err
}

func (r companyRepo) nameTaken(name string, excludeID int64) bool {
	for _, c := range r.st.companies {
		if c.ID != excludeID && sameFold(c.Name, name) {
			return true
		}
	}
	return false
}

func (r companyRepo) Create(ctx context.Context, company *domain.Company) error {
	return r.do(ctx, func() error {
		if r.nameTaken(company.Name, 0) {
			return domain.FieldError(domain.ErrNameTaken, "has already been taken", "name")
		}
		company.ID = r.id()
		company.CreatedAt = r.now()
		company.UpdatedAt = company.CreatedAt
		r.st.companies[company.ID] = *company
		return nil
	})
}

func (r companyRepo) Update(ctx context.Context, company *domain.Company) error {
	return r.do(ctx, func() error {
		existing, ok := r.st.companies[company.ID]
		if !ok {
			return domain.ErrNotFound
		}
		if r.nameTaken(company.Name, company.ID) {
			return domain.FieldError(domain.ErrNameTaken, "has already been taken", "name")
		}
		company.CreatedAt = existing.CreatedAt
		company.UpdatedAt = r.now()
		r.st.companies[company.ID] = *company
		return nil
	})
}

func (r companyRepo) Delete(ctx context.Context, id int64) error {
	return r.do(ctx, func() error {
		if _, ok := r.st.companies[id]; !ok {
			return domain.ErrNotFound
		}
		for fid, f := range r.st.flights {
			if f.CompanyID == id {
				flightRepo(r).deleteFlight(fid)
			}
		}
		delete(r.st.companies, id)
		return nil
	})
}

// flights

type flightRepo struct{ *Store }

func (r flightRepo) List(ctx context.Context, filter repository.FlightFilter) ([]domain.Flight, error) {
	out := make([]domain.Flight, 0)
	err := r.do(ctx, func() error {
		for _, f := range r.st.flights {
			f = r.summary(f)
			if matchFlight(f, filter) {
				out = append(out, f)
			}
		}
		return nil
	})
	sortFlights(out)
	return out, err
}

func matchFlight(f domain.Flight, filter repository.FlightFilter) bool {
	if filter.CompanyID != nil && f.CompanyID != *filter.CompanyID {
		return false
	}
	if filter.NameContains != "" && !strings.Contains(strings.ToLower(f.Name), strings.ToLower(filter.NameContains)) {
		return false
	}
	if filter.DepartsAt != nil && !f.DepartsAt.Truncate(time.Second).Equal(filter.DepartsAt.Truncate(time.Second)) {
		return false
	}
	if filter.MinAvailableSeats != nil && f.AvailableSeats() < *filter.MinAvailableSeats {
		return false
	}
	return true
}

func sortFlights(flights []domain.Flight) {
	sort.Slice(flights, func(i, j int) bool {
		a, b := flights[i], flights[j]
		if !a.DepartsAt.Equal(b.DepartsAt) {
			return a.DepartsAt.Before(b.DepartsAt)
		}
		if a.Name != b.Name {
			return nameLess(a.Name, b.Name)
		}
		return a.ID < b.ID
	})
}

func (r flightRepo) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	var out *domain.Flight
	err := r.do(ctx, func() error {
		f, ok := r.st.flights[id]
		if !ok {
			return domain.ErrNotFound
		}
		f = r.summary(f)
		out = &f
		return nil
	})
	return out, err
}

func (r flightRepo) ListByCompany(ctx context.Context, companyID int64) ([]domain.Flight, error) {
	out := make([]domain.Flight, 0)
	err := r.do(ctx, func() error {
		for _, f := range r.st.flights {
			if f.CompanyID == companyID {
				out = append(out, f)
			}
		}
		return nil
	})
	sortFlights(out)
	return out, err
}

func (r flightRepo) LockForUpdate(ctx context.Context, ids ...int64) ([]domain.Flight, error) {
	var out []domain.Flight
	err := r.do(ctx, func() error {
		seen := map[int64]bool{}
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			f, ok := r.st.flights[id]
			if !ok {
				return domain.ErrNotFound
			}
			out = append(out, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r flightRepo) NameTaken(ctx context.Context, companyID int64, name string, excludeID int64) (bool, error) {
	var taken bool
	err := r.do(ctx, func() error {
		taken = r.nameTaken(companyID, name, excludeID)
		return nil
	})
	return taken, err
}

func (r flightRepo) nameTaken(companyID int64, name string, excludeID int64) bool {
	for _, f := range r.st.flights {
		if f.ID != excludeID && f.CompanyID == companyID && sameFold(f.Name, name) {
			return true
		}
	}
	return false
}

func (r flightRepo) write(flight *domain.Flight) error {
	if _, ok := r.st.companies[flight.CompanyID]; !ok {
		return domain.FieldError(domain.ErrNotFound, "must exist", "company")
	}
	if r.nameTaken(flight.CompanyID, flight.Name, flight.ID) {
		return domain.FieldError(domain.ErrNameTaken, "has already been taken", "name")
	}
	stored := *flight
	stored.CompanyName, stored.BookedSeats, stored.CurrentPrice = "", 0, 0
	r.st.flights[flight.ID] = stored
	return nil
}

func (r flightRepo) Create(ctx context.Context, flight *domain.Flight) error {
	return r.do(ctx, func() error {
		if _, ok := r.st.companies[flight.CompanyID]; !ok {
			return domain.FieldError(domain.ErrNotFound, "must exist", "company")
		}
		flight.ID = r.id()
		flight.CreatedAt = r.now()
		flight.UpdatedAt = flight.CreatedAt
		if err := r.write(flight); err != nil {
			r.st.nextID--
			return err
		}
		return nil
	})
}

func (r flightRepo) Update(ctx context.Context, flight *domain.Flight) error {
	return r.do(ctx, func() error {
		existing, ok := r.st.flights[flight.ID]
		if !ok {
			return domain.ErrNotFound
		}
		flight.CreatedAt = existing.CreatedAt
		flight.UpdatedAt = r.now()
		return r.write(flight)
	})
}

func (r flightRepo) Delete(ctx context.Context, id int64) error {
	return r.do(ctx, func() error {
		if _, ok := r.st.flights[id]; !ok {
			return domain.ErrNotFound
		}
		r.deleteFlight(id)
		return nil
	})
}

func (r flightRepo) deleteFlight(id int64) {
	r.nullifyBookings(
		func(b domain.Booking) bool { return b.FlightID != nil && *b.FlightID == id },
		func(b *domain.Booking) { b.FlightID = nil },
	)
	delete(r.st.flights, id)
}

// bookings

type bookingRepo struct{ *Store }

func (r bookingRepo) List(ctx context.Context, filter repository.BookingFilter) ([]domain.Booking, error) {
	type row struct {
		b      domain.Booking
		flight *domain.Flight
	}
	rows := make([]row, 0)
	err := r.do(ctx, func() error {
		for _, b := range r.st.bookings {
			if filter.UserID != nil && (b.UserID == nil || *b.UserID != *filter.UserID) {
				continue
			}
			var fl *domain.Flight
			if b.FlightID != nil {
				if f, ok := r.st.flights[*b.FlightID]; ok {
					fl = &f
				}
			}
			if filter.ActiveAfter != nil && (fl == nil || !fl.DepartsAt.After(*filter.ActiveAfter)) {
				continue
			}
			rows = append(rows, row{b: b, flight: fl})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch {
		case a.flight != nil && b.flight == nil:
			return true
		case a.flight == nil && b.flight != nil:
			return false
		case a.flight != nil && b.flight != nil:
			if !a.flight.DepartsAt.Equal(b.flight.DepartsAt) {
				return a.flight.DepartsAt.Before(b.flight.DepartsAt)
			}
			if a.flight.Name != b.flight.Name {
				return nameLess(a.flight.Name, b.flight.Name)
			}
		}
		if !a.b.CreatedAt.Equal(b.b.CreatedAt) {
			return a.b.CreatedAt.Before(b.b.CreatedAt)
		}
		return a.b.ID < b.b.ID
	})

	out := make([]domain.Booking, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.b)
	}
	return out, nil
}

func (r bookingRepo) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	var out *domain.Booking
	err := r.do(ctx, func() error {
		b, ok := r.st.bookings[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = &b
		return nil
	})
	return out, err
}

func (r bookingRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r bookingRepo) SumSeats(ctx context.Context, flightID int64) (int, error) {
	var total int
	err := r.do(ctx, func() error {
		total = r.bookedSeats(flightID)
		return nil
	})
	return total, err
}

func (r bookingRepo) checkRefs(b *domain.Booking) error {
	if b.FlightID != nil {
		if _, ok := r.st.flights[*b.FlightID]; !ok {
			return domain.FieldError(domain.ErrNotFound, "must exist", "flight")
		}
	}
	if b.UserID != nil {
		if _, ok := r.st.users[*b.UserID]; !ok {
			return domain.FieldError(domain.ErrNotFound, "must exist", "user")
		}
	}
	return nil
}

func (r bookingRepo) Create(ctx context.Context, booking *domain.Booking) error {
	return r.do(ctx, func() error {
		if err := r.checkRefs(booking); err != nil {
			return err
		}
		booking.ID = r.id()
		booking.CreatedAt = r.now()
		booking.UpdatedAt = booking.CreatedAt
		r.st.bookings[booking.ID] = *booking
		return nil
	})
}

func (r bookingRepo) Update(ctx context.Context, booking *domain.Booking) error {
	return r.do(ctx, func() error {
		existing, ok := r.st.bookings[booking.ID]
		if !ok {
			return domain.ErrNotFound
		}
		if err := r.checkRefs(booking); err != nil {
			return err
		}
		booking.CreatedAt = existing.CreatedAt
		booking.UpdatedAt = r.now()
		r.st.bookings[booking.ID] = *booking
		return nil
	})
}

func (r bookingRepo) Delete(ctx context.Context, id int64) error {
	return r.do(ctx, func() error {
		if _, ok := r.st.bookings[id]; !ok {
			return domain.ErrNotFound
		}
		delete(r.st.bookings, id)
		return nil
	})
}

// users

type userRepo struct{ *Store }

func (r userRepo) List(ctx context.Context) ([]domain.User, error) {
	out := make([]domain.User, 0)
	err := r.do(ctx, func() error {
		for _, u := range r.st.users {
			out = append(out, u)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r userRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var out *domain.User
	err := r.do(ctx, func() error {
		u, ok := r.st.users[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var out *domain.User
	err := r.do(ctx, func() error {
		for _, u := range r.st.users {
			if sameFold(u.Email, email) {
				out = &u
				return nil
			}
		}
		return domain.ErrNotFound
	})
	return out, err
}

func (r userRepo) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	var taken bool
	err := r.do(ctx, func() error {
		taken = r.emailTaken(email, excludeID)
		return nil
	})
	return taken, err
}

func (r userRepo) emailTaken(email string, excludeID int64) bool {
	for _, u := range r.st.users {
		if u.ID != excludeID && sameFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (r userRepo) Create(ctx context.Context, user *domain.User) error {
	return r.do(ctx, func() error {
		if r.emailTaken(user.Email, 0) {
			return domain.FieldError(domain.ErrNameTaken, "has already been taken", "email")
		}
		user.ID = r.id()
		user.TokenVersion = 0
		user.CreatedAt = r.now()
		user.UpdatedAt = user.CreatedAt
		r.st.users[user.ID] = *user
		return nil
	})
}

func (r userRepo) Update(ctx context.Context, user *domain.User) error {
	return r.do(ctx, func() error {
		existing, ok := r.st.users[user.ID]
		if !ok {
			return domain.ErrNotFound
		}
		if r.emailTaken(user.Email, user.ID) {
			return domain.FieldError(domain.ErrNameTaken, "has already been taken", "email")
		}
		user.TokenVersion = existing.TokenVersion
		user.CreatedAt = existing.CreatedAt
		user.UpdatedAt = r.now()
		r.st.users[user.ID] = *user
		return nil
	})
}

func (r userRepo) Delete(ctx context.Context, id int64) error {
	return r.do(ctx, func() error {
		if _, ok := r.st.users[id]; !ok {
			return domain.ErrNotFound
		}
		r.nullifyBookings(
			func(b domain.Booking) bool { return b.UserID != nil && *b.UserID == id },
			func(b *domain.Booking) { b.UserID = nil },
		)
		delete(r.st.users, id)
		return nil
	})
}

func (r userRepo) RotateTokenVersion(ctx context.Context, id int64) (int, error) {
	var version int
	err := r.do(ctx, func() error {
		u, ok := r.st.users[id]
		if !ok {
			return domain.ErrNotFound
		}
		u.TokenVersion++
		u.UpdatedAt = r.now()
		r.st.users[id] = u
		version = u.TokenVersion
		return nil
	})
	return version, err
}

// event log

type eventLogRepo struct{ *Store }

func (r eventLogRepo) Append(ctx context.Context, entry domain.EventLogEntry) error {
	return r.do(ctx, func() error {
		if _, ok := r.st.events[entry.ID]; !ok {
			r.st.events[entry.ID] = entry
		}
		return nil
	})
}

// Events returns the stored event log entries ordered by occurrence.
func (s *Store) Events() []domain.EventLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EventLogEntry, 0, len(s.st.events))
	for _, e := range s.st.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out
}

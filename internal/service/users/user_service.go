package users

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/policy"
	"github.com/Domenick1991/skybooking/internal/repository"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@([^@\s]+\.)+[^@\s]+$`)

const maxPasswordBytes = 72

type UserUseCase interface {
	List(ctx context.Context, actor policy.Actor) ([]domain.User, error)
	GetByID(ctx context.Context, actor policy.Actor, id int64) (*domain.User, error)
	Create(ctx context.Context, actor policy.Actor, input UserInput) (*domain.User, error)
	Update(ctx context.Context, actor policy.Actor, id int64, input UserInput) (*domain.User, error)
	Delete(ctx context.Context, actor policy.Actor, id int64) error
}

// Hasher hides the password hashing cost from the service.
type Hasher func(plain string) (string, error)

type UserInput struct {
	FirstName *string
	LastName  *string
	Email     *string
	Password  *string
	Role      *domain.Role
}

type UserService struct {
	users repository.UserRepository
	hash  Hasher
}

func NewUserService(users repository.UserRepository, hash Hasher) *UserService {
	return &UserService{users: users, hash: hash}
}

func (s *UserService) List(ctx context.Context, actor policy.Actor) ([]domain.User, error) {
	if err := policy.Authorize(actor, policy.List, policy.Users, nil); err != nil {
		return nil, err
	}
	return s.users.List(ctx)
}

func (s *UserService) GetByID(ctx context.Context, actor policy.Actor, id int64) (*domain.User, error) {
	if _, ok := actor.(policy.Anonymous); ok {
		return nil, domain.ErrUnauthorized
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.Read, policy.Users, &u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

// Create is open to anyone. Only an admin may choose the role; everyone else
// signs up as a traveler.
func (s *UserService) Create(ctx context.Context, actor policy.Actor, input UserInput) (*domain.User, error) {
	if err := policy.Authorize(actor, policy.Create, policy.Users, nil); err != nil {
		return nil, err
	}
	if input.Role != nil && *input.Role != domain.RoleTraveler && !policy.IsAdmin(actor) {
		return nil, domain.ErrForbidden
	}

	u := domain.User{Role: domain.RoleTraveler}
	if err := s.apply(ctx, &u, input, true); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserService) Update(ctx context.Context, actor policy.Actor, id int64, input UserInput) (*domain.User, error) {
	u, err := s.GetByID(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.Update, policy.Users, &u.ID); err != nil {
		return nil, err
	}
	if input.Role != nil && *input.Role != u.Role && !policy.IsAdmin(actor) {
		return nil, domain.ErrForbidden
	}

	if err := s.apply(ctx, u, input, false); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Delete leaves the user's bookings in place without an owner.
func (s *UserService) Delete(ctx context.Context, actor policy.Actor, id int64) error {
	u, err := s.GetByID(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := policy.Authorize(actor, policy.Delete, policy.Users, &u.ID); err != nil {
		return err
	}
	return s.users.Delete(ctx, id)
}

func (s *UserService) apply(ctx context.Context, u *domain.User, in UserInput, create bool) error {
	if in.FirstName != nil {
		u.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		u.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Email != nil {
		u.Email = strings.TrimSpace(*in.Email)
	}
	if in.Role != nil {
		u.Role = *in.Role
	}

	v := domain.NewValidationError()
	switch {
	case u.FirstName == "":
		v.Add("first_name", "can't be blank")
	case utf8.RuneCountInString(u.FirstName) < 2:
		v.Add("first_name", "is too short (minimum is 2 characters)")
	}
	switch {
	case u.Email == "":
		v.Add("email", "can't be blank")
	case !emailPattern.MatchString(u.Email):
		v.Add("email", "is invalid")
	default:
		taken, err := s.users.EmailTaken(ctx, u.Email, u.ID)
		if err != nil {
			return err
		}
		if taken {
			v.Add("email", "has already been taken")
			v.Cause = domain.ErrNameTaken
		}
	}
	if !u.Role.Valid() {
		v.Add("role", "is not included in the list")
	}
	switch {
	case in.Password == nil && create, in.Password != nil && *in.Password == "":
		v.Add("password", "can't be blank")
	case in.Password != nil && len(*in.Password) > maxPasswordBytes:
		v.Add("password", "is too long (maximum is 72 characters)")
	}
	if err := v.OrNil(); err != nil {
		return err
	}

	if in.Password != nil {
		digest, err := s.hash(*in.Password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		u.PasswordDigest = digest
	}
	return nil
}

var _ UserUseCase = (*UserService)(nil)

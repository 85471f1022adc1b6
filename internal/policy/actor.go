package policy

import "github.com/Domenick1991/skybooking/internal/domain"

// Actor is the resolved caller of an operation: Anonymous, Traveler or Admin.
type Actor interface {
	isActor()
}

type Anonymous struct{}

type Traveler struct {
	ID int64
}

type Admin struct {
	ID int64
}

func (Anonymous) isActor() {}
func (Traveler) isActor()  {}
func (Admin) isActor()     {}

// FromUser maps a persisted user to its actor variant. A nil user is anonymous.
func FromUser(u *domain.User) Actor {
	if u == nil {
		return Anonymous{}
	}
	if u.Role == domain.RoleAdmin {
		return Admin{ID: u.ID}
	}
	return Traveler{ID: u.ID}
}

// UserID returns the id behind an authenticated actor.
func UserID(a Actor) (int64, bool) {
	switch v := a.(type) {
	case Traveler:
		return v.ID, true
	case Admin:
		return v.ID, true
	}
	return 0, false
}

func IsAdmin(a Actor) bool {
	_, ok := a.(Admin)
	return ok
}

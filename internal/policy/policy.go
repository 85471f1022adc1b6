package policy

import "github.com/Domenick1991/skybooking/internal/domain"

type Resource string

const (
	Companies Resource = "companies"
	Flights   Resource = "flights"
	Bookings  Resource = "bookings"
	Users     Resource = "users"
)

type Action string

const (
	List   Action = "list"
	Read   Action = "read"
	Create Action = "create"
	Update Action = "update"
	Delete Action = "delete"
)

// Predicate restricts which rows of a resource an actor may see or touch.
// Err set means nothing is visible; OwnerID set limits rows to that owner.
type Predicate struct {
	Err     error
	OwnerID *int64
}

// Allows reports whether a row owned by owner is inside the predicate.
func (p Predicate) Allows(owner *int64) bool {
	if p.Err != nil {
		return false
	}
	if p.OwnerID == nil {
		return true
	}
	return owner != nil && *owner == *p.OwnerID
}

// Scope is the visibility rule of every resource for every actor.
func Scope(actor Actor, resource Resource) Predicate {
	switch resource {
	case Flights, Companies:
		return Predicate{}
	}
	switch a := actor.(type) {
	case Admin:
		return Predicate{}
	case Traveler:
		id := a.ID
		return Predicate{OwnerID: &id}
	default:
		return Predicate{Err: domain.ErrUnauthorized}
	}
}

// Authorize is the single decision point for every operation. owner is the
// owning user of the row being acted on; for Create it is the user the new row
// will belong to.
func Authorize(actor Actor, action Action, resource Resource, owner *int64) error {
	if err := roleGate(actor, action, resource); err != nil {
		return err
	}
	if action == List || (resource == Users && action == Create) {
		return nil
	}
	if !Scope(actor, resource).Allows(owner) {
		return domain.ErrForbidden
	}
	return nil
}

func roleGate(actor Actor, action Action, resource Resource) error {
	if IsAdmin(actor) {
		return nil
	}
	_, authenticated := actor.(Traveler)

	switch resource {
	case Flights, Companies:
		if action == List || action == Read {
			return nil
		}
		if !authenticated {
			return domain.ErrUnauthorized
		}
		return domain.ErrForbidden
	case Users:
		if action == Create {
			return nil
		}
		if !authenticated {
			return domain.ErrUnauthorized
		}
		if action == List {
			return domain.ErrForbidden
		}
		return nil
	default:
		if !authenticated {
			return domain.ErrUnauthorized
		}
		return nil
	}
}

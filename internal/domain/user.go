package domain

import "time"

type Role string

const (
	RoleTraveler Role = "traveler"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleTraveler || r == RoleAdmin
}

type User struct {
	ID             int64
	FirstName      string
	LastName       string
	Email          string
	Role           Role
	PasswordDigest string
	TokenVersion   int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

package policy

import (
	"testing"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/stretchr/testify/assert"
)

func ptr(v int64) *int64 { return &v }

func TestAuthorize_Bookings(t *testing.T) {
	t1 := Traveler{ID: 1}
	t2 := Traveler{ID: 2}
	admin := Admin{ID: 99}

	testCases := []struct {
		name   string
		actor  Actor
		action Action
		owner  *int64
		want   error
	}{
		{"traveler reads own booking", t1, Read, ptr(1), nil},
		{"traveler reads foreign booking", t1, Read, ptr(2), domain.ErrForbidden},
		{"traveler updates foreign booking", t2, Update, ptr(1), domain.ErrForbidden},
		{"traveler deletes foreign booking", t2, Delete, ptr(1), domain.ErrForbidden},
		{"traveler books for self", t1, Create, ptr(1), nil},
		{"traveler books for someone else", t1, Create, ptr(2), domain.ErrForbidden},
		{"traveler touches orphaned booking", t1, Update, nil, domain.ErrForbidden},
		{"admin reads foreign booking", admin, Read, ptr(1), nil},
		{"admin books for anyone", admin, Create, ptr(5), nil},
		{"admin deletes orphaned booking", admin, Delete, nil, nil},
		{"anonymous lists bookings", Anonymous{}, List, nil, domain.ErrUnauthorized},
		{"anonymous creates booking", Anonymous{}, Create, ptr(1), domain.ErrUnauthorized},
		{"anonymous deletes booking", Anonymous{}, Delete, ptr(1), domain.ErrUnauthorized},
		{"traveler lists bookings", t1, List, nil, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Authorize(tc.actor, tc.action, Bookings, tc.owner))
		})
	}
}

func TestAuthorize_AdminOnlyWrites(t *testing.T) {
	for _, resource := range []Resource{Flights, Companies} {
		for _, action := range []Action{Create, Update, Delete} {
			assert.Equal(t, domain.ErrForbidden, Authorize(Traveler{ID: 1}, action, resource, nil))
			assert.Equal(t, domain.ErrUnauthorized, Authorize(Anonymous{}, action, resource, nil))
			assert.NoError(t, Authorize(Admin{ID: 1}, action, resource, nil))
		}
		for _, action := range []Action{List, Read} {
			assert.NoError(t, Authorize(Anonymous{}, action, resource, nil))
			assert.NoError(t, Authorize(Traveler{ID: 1}, action, resource, nil))
		}
	}
}

func TestAuthorize_Users(t *testing.T) {
	assert.NoError(t, Authorize(Anonymous{}, Create, Users, nil))
	assert.NoError(t, Authorize(Traveler{ID: 3}, Create, Users, nil))
	assert.Equal(t, domain.ErrUnauthorized, Authorize(Anonymous{}, Read, Users, ptr(3)))
	assert.Equal(t, domain.ErrForbidden, Authorize(Traveler{ID: 3}, List, Users, nil))
	assert.NoError(t, Authorize(Traveler{ID: 3}, Read, Users, ptr(3)))
	assert.Equal(t, domain.ErrForbidden, Authorize(Traveler{ID: 3}, Update, Users, ptr(4)))
	assert.NoError(t, Authorize(Admin{ID: 1}, List, Users, nil))
}

func TestScope(t *testing.T) {
	p := Scope(Traveler{ID: 4}, Bookings)
	assert.NoError(t, p.Err)
	if assert.NotNil(t, p.OwnerID) {
		assert.Equal(t, int64(4), *p.OwnerID)
	}
	assert.True(t, p.Allows(ptr(4)))
	assert.False(t, p.Allows(ptr(5)))
	assert.False(t, p.Allows(nil))

	admin := Scope(Admin{ID: 1}, Bookings)
	assert.Nil(t, admin.OwnerID)
	assert.True(t, admin.Allows(nil))

	anon := Scope(Anonymous{}, Bookings)
	assert.Equal(t, domain.ErrUnauthorized, anon.Err)
	assert.False(t, anon.Allows(ptr(1)))

	assert.True(t, Scope(Anonymous{}, Flights).Allows(nil))
}

func TestFromUser(t *testing.T) {
	assert.Equal(t, Anonymous{}, FromUser(nil))
	assert.Equal(t, Admin{ID: 1}, FromUser(&domain.User{ID: 1, Role: domain.RoleAdmin}))
	assert.Equal(t, Traveler{ID: 2}, FromUser(&domain.User{ID: 2, Role: domain.RoleTraveler}))

	id, ok := UserID(Traveler{ID: 2})
	assert.True(t, ok)
	assert.Equal(t, int64(2), id)
	_, ok = UserID(Anonymous{})
	assert.False(t, ok)
}

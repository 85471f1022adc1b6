package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flight(id, companyID int64, start, end time.Time) domain.Flight {
	return domain.Flight{ID: id, CompanyID: companyID, DepartsAt: start, ArrivesAt: end}
}

func TestDetectConflict(t *testing.T) {
	t0 := time.Date(2030, 5, 1, 8, 0, 0, 0, time.UTC)
	t1 := t0.Add(3 * time.Hour)
	t2 := t1.Add(3 * time.Hour)
	a := flight(1, 7, t0, t1)

	t.Run("adjacent flight does not conflict", func(t *testing.T) {
		_, found := DetectConflict(flight(0, 7, t1, t2), []domain.Flight{a})
		assert.False(t, found)
	})

	t.Run("overlapping flight conflicts", func(t *testing.T) {
		other, found := DetectConflict(flight(0, 7, t0.Add(time.Second), t1.Add(time.Second)), []domain.Flight{a})
		require.True(t, found)
		assert.Equal(t, int64(1), other.ID)
	})

	t.Run("other company is ignored", func(t *testing.T) {
		_, found := DetectConflict(flight(0, 8, t0, t1), []domain.Flight{a})
		assert.False(t, found)
	})

	t.Run("update skips its own row", func(t *testing.T) {
		_, found := DetectConflict(flight(1, 7, t0.Add(time.Minute), t1.Add(time.Minute)), []domain.Flight{a})
		assert.False(t, found)
	})
}

func TestCheckAvailability(t *testing.T) {
	t0 := time.Date(2030, 5, 1, 8, 0, 0, 0, time.UTC)
	existing := []domain.Flight{flight(1, 7, t0, t0.Add(time.Hour))}

	err := CheckAvailability(flight(0, 7, t0.Add(30*time.Minute), t0.Add(2*time.Hour)), existing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrScheduleConflict))

	var vErr *domain.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, []string{"no available aircrafts"}, vErr.Fields["departs_at"])
	assert.Equal(t, []string{"no available aircrafts"}, vErr.Fields["arrives_at"])

	assert.NoError(t, CheckAvailability(flight(0, 7, t0.Add(time.Hour), t0.Add(2*time.Hour)), existing))
}

package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCurrentPrice(t *testing.T) {
	now := time.Date(2030, 3, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name      string
		baseFare  int64
		departure time.Time
		want      int64
	}{
		{"far out keeps base fare", 200, now.Add(20 * 24 * time.Hour), 200},
		{"exactly fifteen days", 200, now.Add(15 * 24 * time.Hour), 200},
		{"ten days out", 200, now.Add(10 * 24 * time.Hour), 267},
		{"fourteen days out", 200, now.Add(14 * 24 * time.Hour), 213},
		{"one day out", 300, now.Add(24 * time.Hour), 580},
		{"less than a day out doubles", 200, now.Add(23 * time.Hour), 400},
		{"departed a second ago doubles", 200, now.Add(-time.Second), 400},
		{"long departed doubles", 150, now.Add(-48 * time.Hour), 300},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CurrentPrice(tc.baseFare, tc.departure, now))
		})
	}
}

func TestCurrentPrice_Rounding(t *testing.T) {
	now := time.Date(2030, 3, 1, 12, 0, 0, 0, time.UTC)
	// 3*25/15 = 5, 1*23/15 = 1.53, 9*23/15 = 13.8
	assert.Equal(t, int64(5), CurrentPrice(3, now.Add(5*24*time.Hour), now))
	assert.Equal(t, int64(2), CurrentPrice(1, now.Add(7*24*time.Hour), now))
	assert.Equal(t, int64(14), CurrentPrice(9, now.Add(7*24*time.Hour), now))
	assert.Equal(t, int64(29), CurrentPrice(15, now.Add(24*time.Hour), now))
}

func TestDaysLeft(t *testing.T) {
	now := time.Date(2030, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, int64(0), DaysLeft(now.Add(time.Hour), now))
	assert.Equal(t, int64(-1), DaysLeft(now.Add(-time.Hour), now))
	assert.Equal(t, int64(2), DaysLeft(now.Add(49*time.Hour), now))
	assert.Equal(t, int64(-2), DaysLeft(now.Add(-25*time.Hour), now))
}

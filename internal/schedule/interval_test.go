package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOverlaps(t *testing.T) {
	t0 := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(2 * time.Hour)
	t2 := t1.Add(2 * time.Hour)

	testCases := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"touching boundary", Interval{t0, t1}, Interval{t1, t2}, false},
		{"touching boundary reversed", Interval{t1, t2}, Interval{t0, t1}, false},
		{"shifted by a second", Interval{t0, t1}, Interval{t0.Add(time.Second), t1.Add(time.Second)}, true},
		{"contained", Interval{t0, t2}, Interval{t0.Add(time.Hour), t1}, true},
		{"identical", Interval{t0, t1}, Interval{t0, t1}, true},
		{"disjoint", Interval{t0, t0.Add(time.Minute)}, Interval{t1, t2}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overlaps(tc.a, tc.b))
		})
	}
}

func TestInterval_Valid(t *testing.T) {
	now := time.Now()
	assert.True(t, Interval{Start: now, End: now.Add(time.Second)}.Valid())
	assert.False(t, Interval{Start: now, End: now}.Valid())
	assert.False(t, Interval{Start: now, End: now.Add(-time.Second)}.Valid())
}

package schedule

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Valid() bool {
	return i.End.After(i.Start)
}

// Overlaps reports whether the two intervals share any instant. Intervals that
// only touch at a boundary do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

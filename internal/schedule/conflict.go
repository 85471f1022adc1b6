package schedule

import "github.com/Domenick1991/skybooking/internal/domain"

// DetectConflict returns the first flight of the candidate's company whose
// window overlaps the candidate's. The candidate itself (same non-zero id) and
// flights of other companies are skipped.
func DetectConflict(candidate domain.Flight, existing []domain.Flight) (*domain.Flight, bool) {
	want := Interval{Start: candidate.DepartsAt, End: candidate.ArrivesAt}
	for i := range existing {
		other := existing[i]
		if candidate.ID != 0 && other.ID == candidate.ID {
			continue
		}
		if other.CompanyID != candidate.CompanyID {
			continue
		}
		if Overlaps(want, Interval{Start: other.DepartsAt, End: other.ArrivesAt}) {
			return &other, true
		}
	}
	return nil, false
}

// CheckAvailability wraps DetectConflict into the validation error surfaced
// to callers.
func CheckAvailability(candidate domain.Flight, existing []domain.Flight) error {
	if _, found := DetectConflict(candidate, existing); found {
		return domain.FieldError(domain.ErrScheduleConflict, "no available aircrafts", "departs_at", "arrives_at")
	}
	return nil
}

package pricing

import "time"

const (
	secondsInDay = 86400
	// Window is the number of days before departure in which the fare rises.
	Window = 15
)

// DaysLeft returns floor((departure - now) / 1 day).
func DaysLeft(departure, now time.Time) int64 {
	secs := int64(departure.Sub(now) / time.Second)
	days := secs / secondsInDay
	if secs < 0 && secs%secondsInDay != 0 {
		days--
	}
	return days
}

// CurrentPrice rises linearly from baseFare (15+ days out) to twice baseFare
// at departure. The result is rounded half away from zero to whole units.
func CurrentPrice(baseFare int64, departure, now time.Time) int64 {
	days := DaysLeft(departure, now)
	switch {
	case days <= 0:
		return baseFare * 2
	case days >= Window:
		return baseFare
	}
	// baseFare * (1 + (Window-days)/Window) == baseFare * (2*Window-days) / Window
	num := baseFare * (2*Window - days)
	return roundDiv(num, Window)
}

func roundDiv(num, den int64) int64 {
	if num < 0 {
		return -roundDiv(-num, den)
	}
	return (2*num + den) / (2 * den)
}

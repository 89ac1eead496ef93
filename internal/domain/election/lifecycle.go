package election

import "time"

// DeriveStatus places now on the election timeline. The window is [start, end):
// the instant equal to start is already ongoing and the instant equal to end is ended.
func DeriveStatus(now, start, end time.Time) Status {
	switch {
	case now.Before(start):
		return StatusUpcoming
	case !now.Before(end):
		return StatusEnded
	default:
		return StatusOngoing
	}
}

// Refresh recomputes e.Status for now and reports whether the stored value was stale.
func Refresh(e *Election, now time.Time) (bool, Status) {
	status := DeriveStatus(now, e.StartDate, e.EndDate)
	if status == e.Status {
		return false, status
	}
	e.Status = status
	return true, status
}

package lifecycle

import "time"

// Phase is the time-derived state of an auction.
type Phase string

const (
	Upcoming Phase = "UPCOMING"
	Live     Phase = "LIVE"
	Ended    Phase = "ENDED"
)

// PhaseAt derives the phase of an auction from its start and end times.
// The bounds are inclusive: an auction is LIVE at exactly startTime and at
// exactly endTime, and ENDED strictly after endTime. Stored status fields
// must never be trusted over this function, since the phase changes with
// the passage of time alone.
func PhaseAt(startTime, endTime, now time.Time) Phase {
	if now.Before(startTime) {
		return Upcoming
	}
	if now.After(endTime) {
		return Ended
	}
	return Live
}

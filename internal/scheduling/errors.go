package scheduling

import "errors"

var (
	// ErrNotFound is returned when an appointment does not exist.
	ErrNotFound = errors.New("scheduling: appointment not found")

	// ErrSlotUnavailable is returned when a slot conflicts with an existing booking
	// or is no longer in the future.
	ErrSlotUnavailable = errors.New("scheduling: slot no longer available")

	// ErrInvalidSchedule is returned for malformed working hours or exceptions.
	ErrInvalidSchedule = errors.New("scheduling: invalid schedule")

	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("scheduling: invalid status transition")

	// ErrInvalidBooking is returned when a booking request misses a participant or start.
	ErrInvalidBooking = errors.New("scheduling: invalid booking request")
)

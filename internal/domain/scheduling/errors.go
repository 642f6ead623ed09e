package scheduling

import "errors"

var (
	ErrSlotNotFound        = errors.New("slot not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	ErrInvalidInterval = errors.New("slot start time must be before end time")
	ErrPastStartTime   = errors.New("slot start time must not be in the past")
	ErrInvalidDate     = errors.New("invalid date format, expected YYYY-MM-DD")
	ErrInvalidTime     = errors.New("invalid time format, expected HH:MM:SS")
	ErrInvalidStatus   = errors.New("invalid appointment status")

	ErrTimeConflict    = errors.New("slot overlaps an existing slot for this doctor")
	ErrSlotUnavailable = errors.New("slot is already booked")
	ErrSlotBooked      = errors.New("cannot delete a booked slot")
)

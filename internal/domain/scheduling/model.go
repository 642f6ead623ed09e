package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Slot maps to the slot table. A slot is either available or booked; booking
// an appointment flips it to booked, cancelling the appointment releases it.
type Slot struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
	Available bool      `db:"available" json:"available"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Overlaps reports whether two slots collide: same doctor, same calendar date,
// and overlapping half-open intervals. Touching endpoints do not overlap.
// Availability is irrelevant; a booked slot still blocks its time range.
func (sl *Slot) Overlaps(other *Slot) bool {
	if sl.DoctorID != other.DoctorID {
		return false
	}
	if !sameDate(sl.StartTime, other.StartTime) {
		return false
	}
	return sl.StartTime.Before(other.EndTime) && other.StartTime.Before(sl.EndTime)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Appointment maps to the appointment table. DoctorID is denormalized from
// the booked slot so appointment queries do not need a join.
type Appointment struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	SlotID    uuid.UUID `db:"slot_id" json:"slot_id"`
	Status    string    `db:"status" json:"status"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Appointment status labels. These are flat labels: membership is validated,
// transition ordering is not.
const (
	StatusPending     = "PENDING"
	StatusScheduled   = "SCHEDULED"
	StatusConfirmed   = "CONFIRMED"
	StatusInProgress  = "IN_PROGRESS"
	StatusCompleted   = "COMPLETED"
	StatusCancelled   = "CANCELLED"
	StatusNoShow      = "NO_SHOW"
	StatusRescheduled = "RESCHEDULED"
	StatusUrgent      = "URGENT"
	StatusOnHold      = "ON_HOLD"
)

var validAppointmentStatuses = map[string]bool{
	StatusPending: true, StatusScheduled: true, StatusConfirmed: true,
	StatusInProgress: true, StatusCompleted: true, StatusCancelled: true,
	StatusNoShow: true, StatusRescheduled: true, StatusUrgent: true,
	StatusOnHold: true,
}

// SlotQuery carries the raw slot list filters as received from the client.
// Filters compose: doctor, then date, then time window, then availability.
type SlotQuery struct {
	DoctorID  *uuid.UUID
	Date      string // 2006-01-02
	Start     string // 15:04:05, requires Date
	End       string // optional; defaults to Start + 1 hour
	Available *bool
}

// SlotFilter is the resolved form of SlotQuery handed to the repository.
type SlotFilter struct {
	DoctorID    *uuid.UUID
	Date        *time.Time
	WindowStart *time.Time
	WindowEnd   *time.Time
	Available   *bool
}

// AppointmentQuery carries the raw appointment list filters.
type AppointmentQuery struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    string
	DateFrom  string // 2006-01-02
	DateTo    string
}

// AppointmentFilter is the resolved form of AppointmentQuery handed to the
// repository.
type AppointmentFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    string
	DateFrom  *time.Time
	DateTo    *time.Time
}

package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type SlotRepository interface {
	Create(ctx context.Context, sl *Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	Update(ctx context.Context, sl *Slot) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f SlotFilter, limit, offset int) ([]*Slot, int, error)
	// FindOverlapping returns the doctor's slots on the calendar date of start
	// whose half-open interval overlaps [start, end). A slot with id exclude is
	// skipped, which lets an update re-check conflicts against everything but
	// the slot's own row.
	FindOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time, exclude uuid.UUID) ([]*Slot, error)
}

type AppointmentRepository interface {
	// Book atomically marks the slot unavailable and inserts the appointment.
	// Returns ErrSlotUnavailable when the slot was already taken; under
	// concurrent bookings of one slot exactly one caller succeeds.
	Book(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	// Delete removes the appointment and releases its slot in one transaction.
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error)
}

// DoctorDirectory resolves doctor existence. Implemented by the doctor domain.
type DoctorDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// PatientDirectory resolves patient existence. Implemented by the user domain.
type PatientDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

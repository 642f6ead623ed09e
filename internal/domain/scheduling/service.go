package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"

	// Window applied when a list filter gives a start time but no end time.
	defaultWindow = time.Hour
)

type Service struct {
	slots        SlotRepository
	appointments AppointmentRepository
	doctors      DoctorDirectory
	patients     PatientDirectory
}

func NewService(slots SlotRepository, appts AppointmentRepository, doctors DoctorDirectory, patients PatientDirectory) *Service {
	return &Service{slots: slots, appointments: appts, doctors: doctors, patients: patients}
}

// -- Slot lifecycle --

// CreateSlot validates and persists a new slot. Checks run in a fixed order:
// doctor existence, interval sanity, past start, then overlap against the
// doctor's other slots on the same date. New slots are always available.
func (s *Service) CreateSlot(ctx context.Context, sl *Slot) error {
	if sl.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required")
	}
	if sl.StartTime.IsZero() {
		return fmt.Errorf("start_time is required")
	}
	if sl.EndTime.IsZero() {
		return fmt.Errorf("end_time is required")
	}

	if err := s.resolveDoctor(ctx, sl.DoctorID); err != nil {
		return err
	}
	if err := validateInterval(sl.StartTime, sl.EndTime); err != nil {
		return err
	}
	if err := s.checkConflict(ctx, sl.DoctorID, sl.StartTime, sl.EndTime, uuid.Nil); err != nil {
		return err
	}

	sl.Available = true
	return s.slots.Create(ctx, sl)
}

// UpdateSlot rewrites a slot's doctor and interval. The overlap check excludes
// the slot's own row so a slot can be rewritten in place. Availability is
// owned by the booking engine and never changes here.
func (s *Service) UpdateSlot(ctx context.Context, sl *Slot) error {
	existing, err := s.slots.GetByID(ctx, sl.ID)
	if err != nil {
		return err
	}

	if sl.DoctorID == uuid.Nil {
		sl.DoctorID = existing.DoctorID
	}
	if sl.StartTime.IsZero() {
		sl.StartTime = existing.StartTime
	}
	if sl.EndTime.IsZero() {
		sl.EndTime = existing.EndTime
	}

	if sl.DoctorID != existing.DoctorID {
		if err := s.resolveDoctor(ctx, sl.DoctorID); err != nil {
			return err
		}
	}
	if err := validateInterval(sl.StartTime, sl.EndTime); err != nil {
		return err
	}
	if err := s.checkConflict(ctx, sl.DoctorID, sl.StartTime, sl.EndTime, sl.ID); err != nil {
		return err
	}

	sl.Available = existing.Available
	return s.slots.Update(ctx, sl)
}

// DeleteSlot removes an available slot. A booked slot cannot be deleted, even
// if its appointment reached a terminal status; the appointment must be
// cancelled first, which releases the slot.
func (s *Service) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	sl, err := s.slots.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !sl.Available {
		return ErrSlotBooked
	}
	return s.slots.Delete(ctx, id)
}

func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.slots.GetByID(ctx, id)
}

// ListSlots resolves the query's date and time-window strings and delegates to
// the repository. A window start without an end defaults to a one-hour window.
func (s *Service) ListSlots(ctx context.Context, q SlotQuery, limit, offset int) ([]*Slot, int, error) {
	f := SlotFilter{DoctorID: q.DoctorID, Available: q.Available}

	if q.DoctorID != nil {
		if err := s.resolveDoctor(ctx, *q.DoctorID); err != nil {
			return nil, 0, err
		}
	}

	if q.Date != "" {
		date, err := time.Parse(dateLayout, q.Date)
		if err != nil {
			return nil, 0, ErrInvalidDate
		}
		f.Date = &date

		if q.Start != "" {
			start, err := time.Parse(timeLayout, q.Start)
			if err != nil {
				return nil, 0, ErrInvalidTime
			}
			windowStart := date.Add(time.Duration(start.Hour())*time.Hour +
				time.Duration(start.Minute())*time.Minute +
				time.Duration(start.Second())*time.Second)
			windowEnd := windowStart.Add(defaultWindow)
			if q.End != "" {
				end, err := time.Parse(timeLayout, q.End)
				if err != nil {
					return nil, 0, ErrInvalidTime
				}
				windowEnd = date.Add(time.Duration(end.Hour())*time.Hour +
					time.Duration(end.Minute())*time.Minute +
					time.Duration(end.Second())*time.Second)
			}
			f.WindowStart = &windowStart
			f.WindowEnd = &windowEnd
		}
	} else if q.Start != "" {
		return nil, 0, ErrInvalidDate
	}

	return s.slots.List(ctx, f, limit, offset)
}

// -- Booking engine --

// CreateAppointment books a slot for a patient. Validation resolves the slot,
// its doctor, and the patient before handing off to the repository, which
// flips availability and inserts the appointment atomically. The availability
// pre-check gives early feedback; the conditional update inside Book is what
// actually guarantees single occupancy under concurrency.
func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.SlotID == uuid.Nil {
		return fmt.Errorf("slot_id is required")
	}
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}

	sl, err := s.slots.GetByID(ctx, a.SlotID)
	if err != nil {
		return err
	}
	if !sl.Available {
		return ErrSlotUnavailable
	}

	if err := s.resolveDoctor(ctx, sl.DoctorID); err != nil {
		return err
	}
	ok, err := s.patients.Exists(ctx, a.PatientID)
	if err != nil {
		return fmt.Errorf("resolve patient: %w", err)
	}
	if !ok {
		return ErrPatientNotFound
	}

	if a.Status == "" {
		a.Status = StatusPending
	}
	if !validAppointmentStatuses[a.Status] {
		return ErrInvalidStatus
	}

	a.DoctorID = sl.DoctorID
	return s.appointments.Book(ctx, a)
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

// UpdateAppointment changes the status label and notes. The slot binding and
// parties are immutable once booked.
func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, status string, notes *string) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if status != "" {
		if !validAppointmentStatuses[status] {
			return nil, ErrInvalidStatus
		}
		a.Status = status
	}
	if notes != nil {
		a.Notes = notes
	}
	if err := s.appointments.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteAppointment cancels a booking and releases its slot.
func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	return s.appointments.Delete(ctx, id)
}

// ListAppointments resolves the query's date-range strings and delegates to
// the repository.
func (s *Service) ListAppointments(ctx context.Context, q AppointmentQuery, limit, offset int) ([]*Appointment, int, error) {
	if q.Status != "" && !validAppointmentStatuses[q.Status] {
		return nil, 0, ErrInvalidStatus
	}

	f := AppointmentFilter{PatientID: q.PatientID, DoctorID: q.DoctorID, Status: q.Status}
	if q.DateFrom != "" {
		from, err := time.Parse(dateLayout, q.DateFrom)
		if err != nil {
			return nil, 0, ErrInvalidDate
		}
		f.DateFrom = &from
	}
	if q.DateTo != "" {
		to, err := time.Parse(dateLayout, q.DateTo)
		if err != nil {
			return nil, 0, ErrInvalidDate
		}
		// Inclusive end date: the filter is start_time < the following midnight.
		to = to.AddDate(0, 0, 1)
		f.DateTo = &to
	}

	return s.appointments.Search(ctx, f, limit, offset)
}

// -- helpers --

func (s *Service) resolveDoctor(ctx context.Context, id uuid.UUID) error {
	ok, err := s.doctors.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("resolve doctor: %w", err)
	}
	if !ok {
		return ErrDoctorNotFound
	}
	return nil
}

func validateInterval(start, end time.Time) error {
	if !start.Before(end) {
		return ErrInvalidInterval
	}
	if start.Before(time.Now()) {
		return ErrPastStartTime
	}
	return nil
}

func (s *Service) checkConflict(ctx context.Context, doctorID uuid.UUID, start, end time.Time, exclude uuid.UUID) error {
	overlapping, err := s.slots.FindOverlapping(ctx, doctorID, start, end, exclude)
	if err != nil {
		return fmt.Errorf("check overlap: %w", err)
	}
	if len(overlapping) > 0 {
		return ErrTimeConflict
	}
	return nil
}

package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repositories --

type mockSlotRepo struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*Slot
}

func newMockSlotRepo() *mockSlotRepo {
	return &mockSlotRepo{slots: make(map[uuid.UUID]*Slot)}
}

func (m *mockSlotRepo) Create(_ context.Context, sl *Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl.ID = uuid.New()
	sl.CreatedAt = time.Now()
	sl.UpdatedAt = time.Now()
	m.slots[sl.ID] = sl
	return nil
}

func (m *mockSlotRepo) GetByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	cp := *sl
	return &cp, nil
}

func (m *mockSlotRepo) Update(_ context.Context, sl *Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[sl.ID]; !ok {
		return ErrSlotNotFound
	}
	m.slots[sl.ID] = sl
	return nil
}

func (m *mockSlotRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[id]; !ok {
		return ErrSlotNotFound
	}
	delete(m.slots, id)
	return nil
}

func (m *mockSlotRepo) List(_ context.Context, f SlotFilter, limit, offset int) ([]*Slot, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Slot
	for _, sl := range m.slots {
		if f.DoctorID != nil && sl.DoctorID != *f.DoctorID {
			continue
		}
		if f.Date != nil && !sameDate(sl.StartTime, *f.Date) {
			continue
		}
		if f.WindowStart != nil && f.WindowEnd != nil {
			if sl.StartTime.Before(*f.WindowStart) || !sl.StartTime.Before(*f.WindowEnd) {
				continue
			}
		}
		if f.Available != nil && sl.Available != *f.Available {
			continue
		}
		cp := *sl
		result = append(result, &cp)
	}
	return result, len(result), nil
}

func (m *mockSlotRepo) FindOverlapping(_ context.Context, doctorID uuid.UUID, start, end time.Time, exclude uuid.UUID) ([]*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	probe := &Slot{DoctorID: doctorID, StartTime: start, EndTime: end}
	var result []*Slot
	for _, sl := range m.slots {
		if sl.ID == exclude {
			continue
		}
		if sl.Overlaps(probe) {
			cp := *sl
			result = append(result, &cp)
		}
	}
	return result, nil
}

type mockAppointmentRepo struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*Appointment
	slots *mockSlotRepo
}

func newMockAppointmentRepo(slots *mockSlotRepo) *mockAppointmentRepo {
	return &mockAppointmentRepo{appts: make(map[uuid.UUID]*Appointment), slots: slots}
}

func (m *mockAppointmentRepo) Book(_ context.Context, a *Appointment) error {
	m.slots.mu.Lock()
	defer m.slots.mu.Unlock()
	sl, ok := m.slots.slots[a.SlotID]
	if !ok || !sl.Available {
		return ErrSlotUnavailable
	}
	sl.Available = false

	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = time.Now()
	m.appts[a.ID] = a
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAppointmentRepo) Update(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appts[a.ID]; !ok {
		return ErrAppointmentNotFound
	}
	m.appts[a.ID] = a
	return nil
}

func (m *mockAppointmentRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	a, ok := m.appts[id]
	if !ok {
		m.mu.Unlock()
		return ErrAppointmentNotFound
	}
	delete(m.appts, id)
	m.mu.Unlock()

	m.slots.mu.Lock()
	defer m.slots.mu.Unlock()
	if sl, ok := m.slots.slots[a.SlotID]; ok {
		sl.Available = true
	}
	return nil
}

func (m *mockAppointmentRepo) Search(_ context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Appointment
	for _, a := range m.appts {
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		cp := *a
		result = append(result, &cp)
	}
	return result, len(result), nil
}

type mockDirectory struct {
	ids map[uuid.UUID]bool
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{ids: make(map[uuid.UUID]bool)}
}

func (m *mockDirectory) add() uuid.UUID {
	id := uuid.New()
	m.ids[id] = true
	return id
}

func (m *mockDirectory) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return m.ids[id], nil
}

func newTestService() (*Service, *mockSlotRepo, *mockAppointmentRepo, *mockDirectory, *mockDirectory) {
	slots := newMockSlotRepo()
	appts := newMockAppointmentRepo(slots)
	doctors := newMockDirectory()
	patients := newMockDirectory()
	return NewService(slots, appts, doctors, patients), slots, appts, doctors, patients
}

func futureSlot(doctorID uuid.UUID, dayOffset, startHour, endHour int) *Slot {
	base := time.Now().UTC().AddDate(0, 0, 2+dayOffset).Truncate(24 * time.Hour)
	return &Slot{
		DoctorID:  doctorID,
		StartTime: base.Add(time.Duration(startHour) * time.Hour),
		EndTime:   base.Add(time.Duration(endHour) * time.Hour),
	}
}

// -- Slot lifecycle --

func TestCreateSlot(t *testing.T) {
	svc, _, _, doctors, _ := newTestService()
	doctorID := doctors.add()

	sl := futureSlot(doctorID, 0, 9, 10)
	if err := svc.CreateSlot(context.Background(), sl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sl.ID == uuid.Nil {
		t.Error("expected slot ID to be assigned")
	}
	if !sl.Available {
		t.Error("expected new slot to be available")
	}
}

func TestCreateSlot_DoctorNotFound(t *testing.T) {
	svc, _, _, _, _ := newTestService()

	sl := futureSlot(uuid.New(), 0, 9, 10)
	if err := svc.CreateSlot(context.Background(), sl); !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}
}

func TestCreateSlot_DoctorCheckedBeforeInterval(t *testing.T) {
	svc, _, _, _, _ := newTestService()

	// Both the doctor and the interval are wrong; the doctor error wins.
	sl := futureSlot(uuid.New(), 0, 10, 9)
	if err := svc.CreateSlot(context.Background(), sl); !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}
}

func TestCreateSlot_RequiredFields(t *testing.T) {
	svc, _, _, doctors, _ := newTestService()
	doctorID := doctors.add()

	if err := svc.CreateSlot(context.Background(), &Slot{}); err == nil {
		t.Error("expected error for missing doctor_id")
	}
	if err := svc.CreateSlot(context.Background(), &Slot{DoctorID: doctorID}); err == nil {
		t.Error("expected error for missing start_time")
	}
	if err := svc.CreateSlot(context.Background(), &Slot{
		DoctorID:  doctorID,
		StartTime: time.Now().Add(time.Hour),
	}); err == nil {
		t.Error("expected error for missing end_time")
	}
}

func TestCreateSlot_InvalidInterval(t *testing.T) {
	svc, _, _, doctors, _ := newTestService()
	doctorID := doctors.add()

	sl := futureSlot(doctorID, 0, 10, 9)
	if err := svc.CreateSlot(context.Background(), sl); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval for start > end, got %v", err)
	}

	sl = futureSlot(doctorID, 0, 9, 9)
	if err := svc.CreateSlot(context.Background(), sl); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval for zero-length slot, got %v", err)
	}
}

func TestCreateSlot_PastStartTime(t *testing.T) {
	svc, _, _, doctors, _ := newTestService()
	doctorID := doctors.add()

	sl := &Slot{
		DoctorID:  doctorID,
		StartTime: time.Now().Add(-2 * time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
	}
	if err := svc.CreateSlot(context.Background(), sl); !errors.Is(err, ErrPastStartTime) {
		t.Fatalf("expected ErrPastStartTime, got %v", err)
	}
}

func TestCreateSlot_TimeConflict(t *testing.T) {
	svc, _, _, doctors, _ := newTestService()
	doctorID := doctors.add()

	if err := svc.CreateSlot(context.Background(), futureSlot(doctorID, 0, 9, 11)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Overlapping interval, same doctor, same day
	if err := svc.CreateSlot(context.Background(), futureSlot(doctorID, 0, 10, 12)); !errors.Is(err, ErrTimeConflict) {
		t.Fatalf("expected ErrTimeConflict, got %v", err)
	}

	// Contained interval also conflicts
	if err := svc.CreateSlot(context.Background(), futureSlot(doctorID, 0, 9, 10)); !errors.Is(err, ErrTimeConflict) {
		t.Fatalf("expected ErrTimeConflict for contained interval, got %v", err)
	}
}

func TestCreateSlot_TouchingEndpointsDoNotConflict(t *testing.T) {
	svc, _, _, doctors, _ := newTestService()
	doctorID := doctors.add()

	if err := svc.CreateSlot(context.Background(), futureSlot(doctorID, 0, 9, 10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.CreateSlot(context.Background(), futureSlot(doctorID, 0, 10, 11)); err != nil {
		t.Fatalf("expected back-to-back slots to be allowed, got %v", err)
	}
}

func TestCreateSlot_NoConflictAcrossDoctors(t *testing.T) {
	svc, _, _, doctors, _ := newTestService()
	doctorA := doctors.add()
	doctorB := doctors.add()

	if err := svc.CreateSlot(context.Background(), futureSlot(doctorA, 0, 9, 10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.CreateSlot(context.Background(), futureSlot(doctorB, 0, 9, 10)); err != nil {
		t.Fatalf("expected no conflict across doctors, got %v", err)
	}
}

func TestCreateSlot_NoConflictAcrossDates(t *testing.T) {
	svc, _, _, doctors, _ := newTestService()
	doctorID := doctors.add()

	if err := svc.CreateSlot(context.Background(), futureSlot(doctorID, 0, 9, 10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.CreateSlot(context.Background(), futureSlot(doctorID, 1, 9, 10)); err != nil {
		t.Fatalf("expected no conflict on a different date, got %v", err)
	}
}

func TestCreateSlot_BookedSlotStillConflicts(t *testing.T) {
	svc, slots, _, doctors, patients := newTestService()
	doctorID := doctors.add()
	patientID := patients.add()

	sl := futureSlot(doctorID, 0, 9, 10)
	if err := svc.CreateSlot(context.Background(), sl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.CreateAppointment(context.Background(), &Appointment{
		SlotID: sl.ID, PatientID: patientID,
	}); err != nil {
		t.Fatalf("unexpected booking error: %v", err)
	}

	got, _ := slots.GetByID(context.Background(), sl.ID)
	if got.Available {
		t.Fatal("expected slot to be booked")
	}
	if err := svc.CreateSlot(context.Background(), futureSlot(doctorID, 0, 9, 10)); !errors.Is(err, ErrTimeConflict) {
		t.Fatalf("expected booked slot to still block its time range, got %v", err)
	}
}

func TestUpdateSlot(t *testing.T) {
	svc, slots, _, doctors, _ := newTestService()
	doctorID := doctors.add()

	sl := futureSlot(doctorID, 0, 9, 10)
	if err := svc.CreateSlot(context.Background(), sl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	upd := futureSlot(doctorID, 0, 14, 15)
	upd.ID = sl.ID
	if err := svc.UpdateSlot(context.Background(), upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := slots.GetByID(context.Background(), sl.ID)
	if got.StartTime.Hour() != 14 {
		t.Errorf("expected start hour 14, got %d", got.StartTime.Hour())
	}
}

func TestUpdateSlot_NotFound(t *testing.T) {
	svc, _, _, doctors, _ := newTestService()
	doctorID := doctors.add()

	upd := futureSlot(doctorID, 0, 9, 10)
	upd.ID = uuid.New()
	if err := svc.UpdateSlot(context.Background(), upd); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound, got %v", err)
	}
}

func TestUpdateSlot_ExcludesOwnInterval(t *testing.T) {
	svc, _, _, doctors, _ := newTestService()
	doctorID := doctors.add()

	sl := futureSlot(doctorID, 0, 9, 10)
	if err := svc.CreateSlot(context.Background(), sl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Rewriting the slot over its own interval must not be a conflict.
	upd := futureSlot(doctorID, 0, 9, 10)
	upd.ID = sl.ID
	if err := svc.UpdateSlot(context.Background(), upd); err != nil {
		t.Fatalf("expected in-place rewrite to succeed, got %v", err)
	}
}

func TestUpdateSlot_ConflictWithOtherSlot(t *testing.T) {
	svc, _, _, doctors, _ := newTestService()
	doctorID := doctors.add()

	a := futureSlot(doctorID, 0, 9, 10)
	b := futureSlot(doctorID, 0, 11, 12)
	if err := svc.CreateSlot(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.CreateSlot(context.Background(), b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	upd := futureSlot(doctorID, 0, 9, 12)
	upd.ID = b.ID
	if err := svc.UpdateSlot(context.Background(), upd); !errors.Is(err, ErrTimeConflict) {
		t.Fatalf("expected ErrTimeConflict, got %v", err)
	}
}

func TestUpdateSlot_ReassignDoctor(t *testing.T) {
	svc, slots, _, doctors, _ := newTestService()
	doctorA := doctors.add()
	doctorB := doctors.add()

	sl := futureSlot(doctorA, 0, 9, 10)
	if err := svc.CreateSlot(context.Background(), sl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	upd := futureSlot(doctorB, 0, 9, 10)
	upd.ID = sl.ID
	if err := svc.UpdateSlot(context.Background(), upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := slots.GetByID(context.Background(), sl.ID)
	if got.DoctorID != doctorB {
		t.Error("expected slot to be reassigned")
	}

	upd2 := futureSlot(uuid.New(), 0, 9, 10)
	upd2.ID = sl.ID
	if err := svc.UpdateSlot(context.Background(), upd2); !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}
}

func TestUpdateSlot_PreservesAvailability(t *testing.T) {
	svc, slots, _, doctors, patients := newTestService()
	doctorID := doctors.add()
	patientID := patients.add()

	sl := futureSlot(doctorID, 0, 9, 10)
	if err := svc.CreateSlot(context.Background(), sl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.CreateAppointment(context.Background(), &Appointment{
		SlotID: sl.ID, PatientID: patientID,
	}); err != nil {
		t.Fatalf("unexpected booking error: %v", err)
	}

	upd := futureSlot(doctorID, 0, 14, 15)
	upd.ID = sl.ID
	upd.Available = true // must be ignored
	if err := svc.UpdateSlot(context.Background(), upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := slots.GetByID(context.Background(), sl.ID)
	if got.Available {
		t.Error("expected booked slot to stay booked after update")
	}
}

func TestDeleteSlot(t *testing.T) {
	svc, slots, _, doctors, _ := newTestService()
	doctorID := doctors.add()

	sl := futureSlot(doctorID, 0, 9, 10)
	if err := svc.CreateSlot(context.Background(), sl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.DeleteSlot(context.Background(), sl.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := slots.GetByID(context.Background(), sl.ID); !errors.Is(err, ErrSlotNotFound) {
		t.Error("expected slot to be deleted")
	}
}

func TestDeleteSlot_NotFound(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	if err := svc.DeleteSlot(context.Background(), uuid.New()); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound, got %v", err)
	}
}

func TestDeleteSlot_Booked(t *testing.T) {
	svc, _, _, doctors, patients := newTestService()
	doctorID := doctors.add()
	patientID := patients.add()

	sl := futureSlot(doctorID, 0, 9, 10)
	if err := svc.CreateSlot(context.Background(), sl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := &Appointment{SlotID: sl.ID, PatientID: patientID}
	if err := svc.CreateAppointment(context.Background(), a); err != nil {
		t.Fatalf("unexpected booking error: %v", err)
	}

	if err := svc.DeleteSlot(context.Background(), sl.ID); !errors.Is(err, ErrSlotBooked) {
		t.Fatalf("expected ErrSlotBooked, got %v", err)
	}

	// A terminal appointment status does not make the slot deletable.
	if _, err := svc.UpdateAppointment(context.Background(), a.ID, StatusCompleted, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.DeleteSlot(context.Background(), sl.ID); !errors.Is(err, ErrSlotBooked) {
		t.Fatalf("expected ErrSlotBooked for completed appointment, got %v", err)
	}
}

// -- Slot listing --

func TestListSlots_ByDoctor(t *testing.T) {
	svc, _, _, doctors, _ := newTestService()
	doctorA := doctors.add()
	doctorB := doctors.add()

	svc.CreateSlot(context.Background(), futureSlot(doctorA, 0, 9, 10))
	svc.CreateSlot(context.Background(), futureSlot(doctorA, 0, 11, 12))
	svc.CreateSlot(context.Background(), futureSlot(doctorB, 0, 9, 10))

	items, total, err := svc.ListSlots(context.Background(), SlotQuery{DoctorID: &doctorA}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Errorf("expected 2 slots, got %d", total)
	}
}

func TestListSlots_DoctorNotFound(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	unknown := uuid.New()
	if _, _, err := svc.ListSlots(context.Background(), SlotQuery{DoctorID: &unknown}, 20, 0); !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}
}

func TestListSlots_InvalidDate(t *testing.T) {
	svc, _, _, doctors, _ := newTestService()
	doctorID := doctors.add()

	_, _, err := svc.ListSlots(context.Background(), SlotQuery{DoctorID: &doctorID, Date: "31-12-2030"}, 20, 0)
	if !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestListSlots_StartWithoutDate(t *testing.T) {
	svc, _, _, doctors, _ := newTestService()
	doctorID := doctors.add()

	_, _, err := svc.ListSlots(context.Background(), SlotQuery{DoctorID: &doctorID, Start: "09:00:00"}, 20, 0)
	if !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestListSlots_InvalidTime(t *testing.T) {
	svc, _, _, doctors, _ := newTestService()
	doctorID := doctors.add()

	_, _, err := svc.ListSlots(context.Background(), SlotQuery{
		DoctorID: &doctorID, Date: "2030-12-31", Start: "9am",
	}, 20, 0)
	if !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("expected ErrInvalidTime, got %v", err)
	}
}

func TestListSlots_DefaultWindow(t *testing.T) {
	svc, _, _, doctors, _ := newTestService()
	doctorID := doctors.add()

	day := time.Now().UTC().AddDate(0, 0, 7).Truncate(24 * time.Hour)
	mk := func(startHour, endHour int) *Slot {
		return &Slot{
			DoctorID:  doctorID,
			StartTime: day.Add(time.Duration(startHour) * time.Hour),
			EndTime:   day.Add(time.Duration(endHour) * time.Hour),
		}
	}
	svc.CreateSlot(context.Background(), mk(9, 10))
	svc.CreateSlot(context.Background(), mk(10, 11))
	svc.CreateSlot(context.Background(), mk(12, 13))

	// A start with no end covers one hour.
	items, _, err := svc.ListSlots(context.Background(), SlotQuery{
		DoctorID: &doctorID,
		Date:     day.Format("2006-01-02"),
		Start:    "09:00:00",
	}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 slot in the default window, got %d", len(items))
	}
	if items[0].StartTime.Hour() != 9 {
		t.Errorf("expected the 09:00 slot, got start hour %d", items[0].StartTime.Hour())
	}

	// An explicit end widens the window.
	items, _, err = svc.ListSlots(context.Background(), SlotQuery{
		DoctorID: &doctorID,
		Date:     day.Format("2006-01-02"),
		Start:    "09:00:00",
		End:      "12:30:00",
	}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("expected 3 slots in the widened window, got %d", len(items))
	}
}

func TestListSlots_AvailabilityFilter(t *testing.T) {
	svc, _, _, doctors, patients := newTestService()
	doctorID := doctors.add()
	patientID := patients.add()

	a := futureSlot(doctorID, 0, 9, 10)
	b := futureSlot(doctorID, 0, 11, 12)
	svc.CreateSlot(context.Background(), a)
	svc.CreateSlot(context.Background(), b)
	if err := svc.CreateAppointment(context.Background(), &Appointment{
		SlotID: a.ID, PatientID: patientID,
	}); err != nil {
		t.Fatalf("unexpected booking error: %v", err)
	}

	avail := true
	items, _, err := svc.ListSlots(context.Background(), SlotQuery{DoctorID: &doctorID, Available: &avail}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].ID != b.ID {
		t.Errorf("expected only the free slot, got %d items", len(items))
	}
}

// -- Booking engine --

func TestCreateAppointment(t *testing.T) {
	svc, slots, _, doctors, patients := newTestService()
	doctorID := doctors.add()
	patientID := patients.add()

	sl := futureSlot(doctorID, 0, 9, 10)
	if err := svc.CreateSlot(context.Background(), sl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := &Appointment{SlotID: sl.ID, PatientID: patientID}
	if err := svc.CreateAppointment(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a.Status != StatusPending {
		t.Errorf("expected default status PENDING, got %s", a.Status)
	}
	if a.DoctorID != doctorID {
		t.Error("expected doctor to be taken from the slot")
	}
	got, _ := slots.GetByID(context.Background(), sl.ID)
	if got.Available {
		t.Error("expected slot to be unavailable after booking")
	}
}

func TestCreateAppointment_ExplicitStatus(t *testing.T) {
	svc, _, _, doctors, patients := newTestService()
	doctorID := doctors.add()
	patientID := patients.add()

	sl := futureSlot(doctorID, 0, 9, 10)
	svc.CreateSlot(context.Background(), sl)

	a := &Appointment{SlotID: sl.ID, PatientID: patientID, Status: StatusUrgent}
	if err := svc.CreateAppointment(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusUrgent {
		t.Errorf("expected URGENT, got %s", a.Status)
	}
}

func TestCreateAppointment_InvalidStatus(t *testing.T) {
	svc, _, _, doctors, patients := newTestService()
	doctorID := doctors.add()
	patientID := patients.add()

	sl := futureSlot(doctorID, 0, 9, 10)
	svc.CreateSlot(context.Background(), sl)

	a := &Appointment{SlotID: sl.ID, PatientID: patientID, Status: "BOOKED"}
	if err := svc.CreateAppointment(context.Background(), a); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestCreateAppointment_SlotNotFound(t *testing.T) {
	svc, _, _, _, patients := newTestService()
	patientID := patients.add()

	a := &Appointment{SlotID: uuid.New(), PatientID: patientID}
	if err := svc.CreateAppointment(context.Background(), a); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound, got %v", err)
	}
}

func TestCreateAppointment_SlotUnavailable(t *testing.T) {
	svc, _, _, doctors, patients := newTestService()
	doctorID := doctors.add()
	patientID := patients.add()

	sl := futureSlot(doctorID, 0, 9, 10)
	svc.CreateSlot(context.Background(), sl)

	if err := svc.CreateAppointment(context.Background(), &Appointment{
		SlotID: sl.ID, PatientID: patientID,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.CreateAppointment(context.Background(), &Appointment{
		SlotID: sl.ID, PatientID: patients.add(),
	}); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestCreateAppointment_PatientNotFound(t *testing.T) {
	svc, _, _, doctors, _ := newTestService()
	doctorID := doctors.add()

	sl := futureSlot(doctorID, 0, 9, 10)
	svc.CreateSlot(context.Background(), sl)

	a := &Appointment{SlotID: sl.ID, PatientID: uuid.New()}
	if err := svc.CreateAppointment(context.Background(), a); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestCreateAppointment_DoctorDeletedAfterSlotCreation(t *testing.T) {
	svc, _, _, doctors, patients := newTestService()
	doctorID := doctors.add()
	patientID := patients.add()

	sl := futureSlot(doctorID, 0, 9, 10)
	svc.CreateSlot(context.Background(), sl)

	delete(doctors.ids, doctorID)

	a := &Appointment{SlotID: sl.ID, PatientID: patientID}
	if err := svc.CreateAppointment(context.Background(), a); !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}
}

func TestCreateAppointment_ConcurrentSingleWinner(t *testing.T) {
	svc, _, appts, doctors, patients := newTestService()
	doctorID := doctors.add()

	sl := futureSlot(doctorID, 0, 9, 10)
	if err := svc.CreateSlot(context.Background(), sl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const n = 16
	patientIDs := make([]uuid.UUID, n)
	for i := range patientIDs {
		patientIDs[i] = patients.add()
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.CreateAppointment(context.Background(), &Appointment{
				SlotID: sl.ID, PatientID: patientIDs[i],
			})
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrSlotUnavailable):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("expected exactly one winning booking, got %d", won)
	}
	if len(appts.appts) != 1 {
		t.Errorf("expected exactly one appointment, got %d", len(appts.appts))
	}
}

func TestUpdateAppointment(t *testing.T) {
	svc, _, _, doctors, patients := newTestService()
	doctorID := doctors.add()
	patientID := patients.add()

	sl := futureSlot(doctorID, 0, 9, 10)
	svc.CreateSlot(context.Background(), sl)
	a := &Appointment{SlotID: sl.ID, PatientID: patientID}
	svc.CreateAppointment(context.Background(), a)

	notes := "patient called ahead"
	got, err := svc.UpdateAppointment(context.Background(), a.ID, StatusConfirmed, &notes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusConfirmed {
		t.Errorf("expected CONFIRMED, got %s", got.Status)
	}
	if got.Notes == nil || *got.Notes != notes {
		t.Error("expected notes to be updated")
	}
}

func TestUpdateAppointment_StatusIsFlatLabel(t *testing.T) {
	svc, _, _, doctors, patients := newTestService()
	doctorID := doctors.add()
	patientID := patients.add()

	sl := futureSlot(doctorID, 0, 9, 10)
	svc.CreateSlot(context.Background(), sl)
	a := &Appointment{SlotID: sl.ID, PatientID: patientID}
	svc.CreateAppointment(context.Background(), a)

	// No transition rules: COMPLETED back to PENDING is allowed.
	if _, err := svc.UpdateAppointment(context.Background(), a.ID, StatusCompleted, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.UpdateAppointment(context.Background(), a.ID, StatusPending, nil); err != nil {
		t.Fatalf("expected free status change, got %v", err)
	}
}

func TestUpdateAppointment_InvalidStatus(t *testing.T) {
	svc, _, _, doctors, patients := newTestService()
	doctorID := doctors.add()
	patientID := patients.add()

	sl := futureSlot(doctorID, 0, 9, 10)
	svc.CreateSlot(context.Background(), sl)
	a := &Appointment{SlotID: sl.ID, PatientID: patientID}
	svc.CreateAppointment(context.Background(), a)

	if _, err := svc.UpdateAppointment(context.Background(), a.ID, "DONE", nil); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestUpdateAppointment_NotFound(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	if _, err := svc.UpdateAppointment(context.Background(), uuid.New(), StatusConfirmed, nil); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestDeleteAppointment_ReleasesSlot(t *testing.T) {
	svc, slots, _, doctors, patients := newTestService()
	doctorID := doctors.add()
	patientID := patients.add()

	sl := futureSlot(doctorID, 0, 9, 10)
	svc.CreateSlot(context.Background(), sl)
	a := &Appointment{SlotID: sl.ID, PatientID: patientID}
	if err := svc.CreateAppointment(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.DeleteAppointment(context.Background(), a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := slots.GetByID(context.Background(), sl.ID)
	if !got.Available {
		t.Error("expected slot to be released after cancellation")
	}

	// The released slot can be booked again.
	if err := svc.CreateAppointment(context.Background(), &Appointment{
		SlotID: sl.ID, PatientID: patientID,
	}); err != nil {
		t.Fatalf("expected rebooking to succeed, got %v", err)
	}
}

func TestDeleteAppointment_NotFound(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	if err := svc.DeleteAppointment(context.Background(), uuid.New()); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
}

// -- Appointment listing --

func TestListAppointments_ByPatient(t *testing.T) {
	svc, _, _, doctors, patients := newTestService()
	doctorID := doctors.add()
	patientA := patients.add()
	patientB := patients.add()

	slA := futureSlot(doctorID, 0, 9, 10)
	slB := futureSlot(doctorID, 0, 11, 12)
	svc.CreateSlot(context.Background(), slA)
	svc.CreateSlot(context.Background(), slB)
	svc.CreateAppointment(context.Background(), &Appointment{SlotID: slA.ID, PatientID: patientA})
	svc.CreateAppointment(context.Background(), &Appointment{SlotID: slB.ID, PatientID: patientB})

	items, total, err := svc.ListAppointments(context.Background(), AppointmentQuery{PatientID: &patientA}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("expected 1 appointment, got %d", total)
	}
	if items[0].PatientID != patientA {
		t.Error("expected patient A's appointment")
	}
}

func TestListAppointments_InvalidStatus(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	if _, _, err := svc.ListAppointments(context.Background(), AppointmentQuery{Status: "nope"}, 20, 0); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestListAppointments_InvalidDateRange(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	if _, _, err := svc.ListAppointments(context.Background(), AppointmentQuery{DateFrom: "01/02/2030"}, 20, 0); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

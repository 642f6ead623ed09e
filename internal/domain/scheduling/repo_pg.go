package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// =========== Slot Repository ===========

type slotRepoPG struct{ pool *pgxpool.Pool }

func NewSlotRepoPG(pool *pgxpool.Pool) SlotRepository { return &slotRepoPG{pool: pool} }

const slotCols = `id, doctor_id, start_time, end_time, available, created_at, updated_at`

func (r *slotRepoPG) scanSlot(row pgx.Row) (*Slot, error) {
	var sl Slot
	err := row.Scan(&sl.ID, &sl.DoctorID, &sl.StartTime, &sl.EndTime, &sl.Available,
		&sl.CreatedAt, &sl.UpdatedAt)
	return &sl, err
}

func (r *slotRepoPG) Create(ctx context.Context, sl *Slot) error {
	sl.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO slot (id, doctor_id, start_time, end_time, available)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at, updated_at`,
		sl.ID, sl.DoctorID, sl.StartTime, sl.EndTime, sl.Available,
	).Scan(&sl.CreatedAt, &sl.UpdatedAt)
}

func (r *slotRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	sl, err := r.scanSlot(r.pool.QueryRow(ctx, `SELECT `+slotCols+` FROM slot WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, err
	}
	return sl, nil
}

func (r *slotRepoPG) Update(ctx context.Context, sl *Slot) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE slot SET doctor_id=$2, start_time=$3, end_time=$4, updated_at=NOW()
		WHERE id = $1`,
		sl.ID, sl.DoctorID, sl.StartTime, sl.EndTime)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *slotRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM slot WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *slotRepoPG) List(ctx context.Context, f SlotFilter, limit, offset int) ([]*Slot, int, error) {
	query := `SELECT ` + slotCols + ` FROM slot WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM slot WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.DoctorID != nil {
		query += fmt.Sprintf(` AND doctor_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND doctor_id = $%d`, idx)
		args = append(args, *f.DoctorID)
		idx++
	}
	if f.Date != nil {
		query += fmt.Sprintf(` AND start_time::date = $%d::date`, idx)
		countQuery += fmt.Sprintf(` AND start_time::date = $%d::date`, idx)
		args = append(args, *f.Date)
		idx++
	}
	if f.WindowStart != nil && f.WindowEnd != nil {
		query += fmt.Sprintf(` AND start_time >= $%d AND start_time < $%d`, idx, idx+1)
		countQuery += fmt.Sprintf(` AND start_time >= $%d AND start_time < $%d`, idx, idx+1)
		args = append(args, *f.WindowStart, *f.WindowEnd)
		idx += 2
	}
	if f.Available != nil {
		query += fmt.Sprintf(` AND available = $%d`, idx)
		countQuery += fmt.Sprintf(` AND available = $%d`, idx)
		args = append(args, *f.Available)
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY start_time ASC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Slot
	for rows.Next() {
		sl, err := r.scanSlot(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, sl)
	}
	return items, total, nil
}

func (r *slotRepoPG) FindOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time, exclude uuid.UUID) ([]*Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotCols+` FROM slot
		WHERE doctor_id = $1
		  AND start_time::date = $2::date
		  AND start_time < $3
		  AND end_time > $4
		  AND id <> $5
		ORDER BY start_time ASC`,
		doctorID, start, end, start, exclude)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Slot
	for rows.Next() {
		sl, err := r.scanSlot(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, sl)
	}
	return items, rows.Err()
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const apptCols = `id, patient_id, doctor_id, slot_id, status, notes, created_at, updated_at`

func (r *appointmentRepoPG) scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.SlotID, &a.Status, &a.Notes,
		&a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *appointmentRepoPG) Book(ctx context.Context, a *Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Conditional flip: only one concurrent booking can see available=true.
	tag, err := tx.Exec(ctx, `
		UPDATE slot SET available = false, updated_at = NOW()
		WHERE id = $1 AND available = true`, a.SlotID)
	if err != nil {
		return fmt.Errorf("reserve slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotUnavailable
	}

	a.ID = uuid.New()
	if err := tx.QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, doctor_id, slot_id, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.SlotID, a.Status, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := r.scanAppt(r.pool.QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointment SET status=$2, notes=$3, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.Status, a.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var slotID uuid.UUID
	err = tx.QueryRow(ctx, `DELETE FROM appointment WHERE id = $1 RETURNING slot_id`, id).Scan(&slotID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAppointmentNotFound
	}
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE slot SET available = true, updated_at = NOW()
		WHERE id = $1`, slotID); err != nil {
		return fmt.Errorf("release slot: %w", err)
	}

	return tx.Commit(ctx)
}

const apptSearchCols = `a.id, a.patient_id, a.doctor_id, a.slot_id, a.status, a.notes, a.created_at, a.updated_at`

func (r *appointmentRepoPG) Search(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	// Date filters apply to the booked slot's start time, not the booking time.
	from := ` FROM appointment a JOIN slot s ON s.id = a.slot_id WHERE 1=1`
	query := `SELECT ` + apptSearchCols + from
	countQuery := `SELECT COUNT(*)` + from
	var args []interface{}
	idx := 1

	if f.PatientID != nil {
		query += fmt.Sprintf(` AND a.patient_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND a.patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.DoctorID != nil {
		query += fmt.Sprintf(` AND a.doctor_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND a.doctor_id = $%d`, idx)
		args = append(args, *f.DoctorID)
		idx++
	}
	if f.Status != "" {
		query += fmt.Sprintf(` AND a.status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND a.status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}
	if f.DateFrom != nil {
		query += fmt.Sprintf(` AND s.start_time >= $%d`, idx)
		countQuery += fmt.Sprintf(` AND s.start_time >= $%d`, idx)
		args = append(args, *f.DateFrom)
		idx++
	}
	if f.DateTo != nil {
		query += fmt.Sprintf(` AND s.start_time < $%d`, idx)
		countQuery += fmt.Sprintf(` AND s.start_time < $%d`, idx)
		args = append(args, *f.DateTo)
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY s.start_time DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}

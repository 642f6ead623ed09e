package doctor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doctorhub/doctorhub/internal/domain/user"
)

type doctorRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &doctorRepoPG{pool: pool}
}

const doctorCols = `d.id, d.user_id, u.name, u.email, d.specialization, d.license_number,
	d.rating, d.rating_count, d.created_at, d.updated_at`

const doctorFrom = ` FROM doctor d JOIN users u ON u.id = d.user_id`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.Email, &d.Specialization, &d.LicenseNumber,
		&d.Rating, &d.RatingCount, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("scan doctor: %w", err)
	}
	return &d, nil
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor, passwordHash string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	d.UserID = uuid.New()
	if _, err := tx.Exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)`,
		d.UserID, d.Name, d.Email, passwordHash, user.RoleDoctor,
	); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	d.ID = uuid.New()
	if err := tx.QueryRow(ctx, `
		INSERT INTO doctor (id, user_id, specialization, license_number)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		d.ID, d.UserID, d.Specialization, d.LicenseNumber,
	).Scan(&d.CreatedAt, &d.UpdatedAt); err != nil {
		return fmt.Errorf("insert doctor: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(r.pool.QueryRow(ctx, `SELECT `+doctorCols+doctorFrom+` WHERE d.id = $1`, id))
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE doctor SET specialization = $2, license_number = $3, updated_at = NOW()
		WHERE id = $1`,
		d.ID, d.Specialization, d.LicenseNumber,
	)
	if err != nil {
		return fmt.Errorf("update doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}

	if _, err := tx.Exec(ctx, `
		UPDATE users SET name = $2, email = $3, updated_at = NOW()
		WHERE id = $1`,
		d.UserID, d.Name, d.Email,
	); err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *doctorRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var userID uuid.UUID
	if err := tx.QueryRow(ctx, `DELETE FROM doctor WHERE id = $1 RETURNING user_id`, id).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDoctorNotFound
		}
		return fmt.Errorf("delete doctor: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *doctorRepoPG) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM doctor`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+doctorCols+doctorFrom+`
		ORDER BY d.created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	doctors, err := collectDoctors(rows)
	if err != nil {
		return nil, 0, err
	}
	return doctors, total, nil
}

func (r *doctorRepoPG) ListBySpecialization(ctx context.Context, spec string, limit, offset int) ([]*Doctor, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM doctor WHERE LOWER(specialization) = LOWER($1)`, spec,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+doctorCols+doctorFrom+`
		WHERE LOWER(d.specialization) = LOWER($1)
		ORDER BY d.created_at DESC
		LIMIT $2 OFFSET $3`, spec, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	doctors, err := collectDoctors(rows)
	if err != nil {
		return nil, 0, err
	}
	return doctors, total, nil
}

func (r *doctorRepoPG) TopRated(ctx context.Context, limit int) ([]*Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+doctorCols+doctorFrom+`
		ORDER BY d.rating DESC NULLS LAST, d.rating_count DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("top rated doctors: %w", err)
	}
	defer rows.Close()

	return collectDoctors(rows)
}

func collectDoctors(rows pgx.Rows) ([]*Doctor, error) {
	var doctors []*Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.UserID, &d.Name, &d.Email, &d.Specialization, &d.LicenseNumber,
			&d.Rating, &d.RatingCount, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan doctor: %w", err)
		}
		doctors = append(doctors, &d)
	}
	return doctors, rows.Err()
}

func (r *doctorRepoPG) UpdateRating(ctx context.Context, id uuid.UUID, rating float64, count int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE doctor SET rating = $2, rating_count = $3, updated_at = NOW()
		WHERE id = $1`,
		id, rating, count,
	)
	if err != nil {
		return fmt.Errorf("update rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

func (r *doctorRepoPG) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM doctor WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("doctor exists: %w", err)
	}
	return exists, nil
}

func (r *doctorRepoPG) LicenseTaken(ctx context.Context, license string, exclude uuid.UUID) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM doctor WHERE license_number = $1 AND id <> $2)`,
		license, exclude,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("license taken: %w", err)
	}
	return taken, nil
}

func (r *doctorRepoPG) EmailTaken(ctx context.Context, email string) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("email taken: %w", err)
	}
	return taken, nil
}

package doctor

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create inserts the owned user account (role DOCTOR) and the doctor row
	// in one transaction.
	Create(ctx context.Context, d *Doctor, passwordHash string) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	// Update writes specialization and license to the doctor row and name
	// and email to the owned user, in one transaction.
	Update(ctx context.Context, d *Doctor) error
	// Delete removes the doctor row and its owned user in one transaction.
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Doctor, int, error)
	ListBySpecialization(ctx context.Context, spec string, limit, offset int) ([]*Doctor, int, error)
	// TopRated returns doctors ordered by rating descending, unrated last.
	TopRated(ctx context.Context, limit int) ([]*Doctor, error)
	UpdateRating(ctx context.Context, id uuid.UUID, rating float64, count int) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	LicenseTaken(ctx context.Context, license string, exclude uuid.UUID) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
}

package doctor

import (
	"time"

	"github.com/google/uuid"
)

// Doctor is a directory entry owning its account 1:1. Name and email live on
// the users table and are joined in on reads.
type Doctor struct {
	ID             uuid.UUID `db:"id" json:"id"`
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	Specialization string    `db:"specialization" json:"specialization"`
	LicenseNumber  string    `db:"license_number" json:"license_number"`
	Rating         *float64  `db:"rating" json:"rating"`
	RatingCount    int       `db:"rating_count" json:"rating_count"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

package user

import (
	"time"

	"github.com/google/uuid"
)

// User is an account in the registry. Patients book appointments under their
// user ID; doctors get a companion directory entry owning the account.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

const (
	RolePatient = "PATIENT"
	RoleDoctor  = "DOCTOR"
	RoleAdmin   = "ADMIN"
)

var validRoles = map[string]bool{
	RolePatient: true,
	RoleDoctor:  true,
	RoleAdmin:   true,
}

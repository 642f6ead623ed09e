package user

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
	ListByRole(ctx context.Context, role string, limit, offset int) ([]*User, int, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	// EmailTaken reports whether another user (excluding the given id)
	// already holds the email.
	EmailTaken(ctx context.Context, email string, exclude uuid.UUID) (bool, error)
}

package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	users Repository
}

func NewService(users Repository) *Service {
	return &Service{users: users}
}

// Register creates an account with a bcrypt-hashed password. The role
// defaults to PATIENT.
func (s *Service) Register(ctx context.Context, u *User, password string) error {
	if u.Name == "" {
		return fmt.Errorf("name is required")
	}
	if u.Email == "" {
		return fmt.Errorf("email is required")
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if u.Role == "" {
		u.Role = RolePatient
	}
	if !validRoles[u.Role] {
		return ErrInvalidRole
	}

	taken, err := s.users.EmailTaken(ctx, u.Email, uuid.Nil)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return s.users.Create(ctx, u)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.users.GetByEmail(ctx, email)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

func (s *Service) ListByRole(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	if !validRoles[role] {
		return nil, 0, ErrInvalidRole
	}
	return s.users.ListByRole(ctx, role, limit, offset)
}

// Update changes name and email. Role and password are managed separately.
func (s *Service) Update(ctx context.Context, id uuid.UUID, name, email string) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != "" {
		u.Name = name
	}
	if email != "" && email != u.Email {
		taken, err := s.users.EmailTaken(ctx, email, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrEmailTaken
		}
		u.Email = email
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ChangePassword verifies the current password before storing the new one.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	if next == "" {
		return fmt.Errorf("new password is required")
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return ErrWrongPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.UpdatePassword(ctx, id, string(hash))
}

// VerifyCredentials checks an email/password pair. It does not issue tokens;
// callers decide what a successful check means.
func (s *Service) VerifyCredentials(ctx context.Context, email, password string) (*User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrWrongPassword
	}
	return u, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.users.Delete(ctx, id)
}

// Exists reports whether a user with the given id is registered.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.users.Exists(ctx, id)
}

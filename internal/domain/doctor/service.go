package doctor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	doctors Repository
}

func NewService(doctors Repository) *Service {
	return &Service{doctors: doctors}
}

// Create registers a doctor together with its owned account. The password is
// bcrypt-hashed here so the repository only ever sees the hash.
func (s *Service) Create(ctx context.Context, d *Doctor, password string) error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if d.Email == "" {
		return fmt.Errorf("email is required")
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if d.Specialization == "" {
		return fmt.Errorf("specialization is required")
	}
	if d.LicenseNumber == "" {
		return fmt.Errorf("license number is required")
	}

	taken, err := s.doctors.EmailTaken(ctx, d.Email)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailTaken
	}
	taken, err = s.doctors.LicenseTaken(ctx, d.LicenseNumber, uuid.Nil)
	if err != nil {
		return err
	}
	if taken {
		return ErrLicenseTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	d.Rating = nil
	d.RatingCount = 0
	return s.doctors.Create(ctx, d, string(hash))
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, limit, offset)
}

func (s *Service) ListBySpecialization(ctx context.Context, spec string, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.ListBySpecialization(ctx, spec, limit, offset)
}

func (s *Service) TopRated(ctx context.Context, limit int) ([]*Doctor, error) {
	return s.doctors.TopRated(ctx, limit)
}

// Update changes name, specialization and license number. Empty fields keep
// their current values. License uniqueness is re-checked against other
// doctors.
func (s *Service) Update(ctx context.Context, id uuid.UUID, name, spec, license string) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != "" {
		d.Name = name
	}
	if spec != "" {
		d.Specialization = spec
	}
	if license != "" && license != d.LicenseNumber {
		taken, err := s.doctors.LicenseTaken(ctx, license, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrLicenseTaken
		}
		d.LicenseNumber = license
	}
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Rate folds a score into the running average kept on the doctor row.
func (s *Service) Rate(ctx context.Context, id uuid.UUID, score float64) (*Doctor, error) {
	if score < 0 || score > 5 {
		return nil, ErrInvalidRating
	}
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	sum := score
	if d.Rating != nil {
		sum += *d.Rating * float64(d.RatingCount)
	}
	count := d.RatingCount + 1
	avg := sum / float64(count)

	if err := s.doctors.UpdateRating(ctx, id, avg, count); err != nil {
		return nil, err
	}
	d.Rating = &avg
	d.RatingCount = count
	return d, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.doctors.Delete(ctx, id)
}

// Exists reports whether the doctor is in the directory. Scheduling uses it
// to resolve slot owners.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.doctors.Exists(ctx, id)
}

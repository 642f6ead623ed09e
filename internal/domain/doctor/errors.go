package doctor

import "errors"

var (
	ErrDoctorNotFound = errors.New("doctor not found")
	ErrLicenseTaken   = errors.New("license number is already registered")
	ErrEmailTaken     = errors.New("email is already registered")
	ErrInvalidRating  = errors.New("rating must be between 0 and 5")
)

package user

import "errors"

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailTaken    = errors.New("email is already registered")
	ErrWrongPassword = errors.New("wrong password")
	ErrInvalidRole   = errors.New("invalid role")
)

package services

import (
	"errors"
	"regexp"
)

var (
	ErrUserExists      = errors.New("user already exists")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidToken    = errors.New("invalid token")
	ErrSessionNotFound = errors.New("game session not found")
)

// InputError is a validation failure whose message is safe to show users.
// It matches ErrInvalidInput under errors.Is.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }

func invalid(msg string) error {
	return &InputError{Msg: msg}
}

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	idPattern       = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)
)

func ValidEmail(email string) bool       { return emailPattern.MatchString(email) }
func ValidID(id string) bool             { return idPattern.MatchString(id) }
func ValidUsername(username string) bool { return usernamePattern.MatchString(username) }

package domain

import (
	"errors"
	"strings"
)

var (
	// ErrDuplicateEmail is returned when registering an email that already belongs to an account.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials is returned when the email/password combination is incorrect.
	// Unknown emails and wrong passwords are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrValidation is returned when a required form field is missing.
	ErrValidation = errors.New("validation failed")
)

// Account represents a registered student.
type Account struct {
	ID           string // Store-assigned identifier
	Name         string // Display name
	Email        string // Normalized (lowercase) email, unique
	PasswordHash string // argon2id PHC string
	Phone        string // Optional phone number
	CreatedAt    int64  // Unix timestamp of account creation
}

// NormalizeEmail trims surrounding whitespace and lowercases the email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Registration holds the raw input of the registration form.
type Registration struct {
	Name     string
	Email    string
	Password string
	Phone    string
}

// Validate checks that all required registration fields are present.
func (reg Registration) Validate() error {
	var errs []error

	if strings.TrimSpace(reg.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}

	if NormalizeEmail(reg.Email) == "" {
		errs = append(errs, errors.New("email is required"))
	}

	if reg.Password == "" {
		errs = append(errs, errors.New("password is required"))
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrValidation}, errs...)...)
	}

	return nil
}

// Credentials holds the raw input of the login form.
type Credentials struct {
	Email    string
	Password string
}

// Validate checks that both email and password are present.
func (c Credentials) Validate() error {
	if NormalizeEmail(c.Email) == "" || c.Password == "" {
		return errors.Join(ErrValidation, errors.New("email and password are required"))
	}

	return nil
}

package account

import (
	"context"

	"github.com/mkrupp/studentportal/internal/domain"
)

// Repository defines the interface for student account persistence.
type Repository interface {
	// Register creates a new account. The email is normalized before it is checked and stored.
	// Returns ErrValidation if a required field is missing, ErrDuplicateEmail if the
	// normalized email is already registered.
	Register(ctx context.Context, name, email, password, phone string) (*domain.Account, error)

	// Authenticate returns the account matching the credentials.
	// Unknown emails and wrong passwords both return ErrInvalidCredentials.
	Authenticate(ctx context.Context, email, password string) (*domain.Account, error)

	// GetByID retrieves an account by its identifier.
	// Returns the account and true if found, or nil and false for unknown or malformed ids.
	// Returns an error only if the store fails.
	GetByID(ctx context.Context, id string) (*domain.Account, bool, error)

	// Ping checks that the underlying store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the repository.
	// Returns an error if cleanup fails.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
// Returns an error if initialization fails.
type RepositoryFactory func(ctx context.Context) (Repository, error)

package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/mkrupp/studentportal/internal/domain"
)

// IDField is the reserved document field holding the store-assigned identifier.
const IDField = "_id"

var (
	// ErrNoDocument is returned by FindOne when no document matches the filter.
	ErrNoDocument = errors.New("no document")
	// ErrDuplicateKey is returned by InsertOne when a unique index rejects the document.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrInvalidID is returned when an "_id" filter value is not a well-formed identifier
	// for the backend.
	ErrInvalidID = errors.New("invalid document id")
	// ErrInvalidName is returned for collection or field names outside [A-Za-z_][A-Za-z0-9_]*.
	ErrInvalidName = errors.New("invalid collection or field name")
	// ErrUnknownDriver is returned by Factory for an unsupported driver name.
	ErrUnknownDriver = errors.New("unknown store driver")
)

//nolint:gochecknoglobals
var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Document is a schema-less record. Values must be JSON/BSON encodable scalars.
type Document map[string]any

// String returns the string value of field, or "" if missing or not a string.
func (d Document) String(field string) string {
	s, _ := d[field].(string)

	return s
}

// Int64 returns the integer value of field, accepting the numeric types backends decode to.
func (d Document) Int64(field string) int64 {
	switch v := d[field].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// Filter selects documents by equality on top-level fields.
// A filter on IDField matches the store-assigned identifier.
type Filter map[string]any

// Store is a minimal document database.
type Store interface {
	// FindOne returns the first document of collection matching filter.
	// Returns ErrNoDocument if nothing matches, ErrInvalidID for a malformed "_id" filter.
	FindOne(ctx context.Context, collection string, filter Filter) (Document, error)

	// InsertOne stores doc in collection and returns its identifier. An IDField value
	// in doc is ignored; the store always assigns a fresh identifier.
	// Returns ErrDuplicateKey if a unique index rejects the document.
	InsertOne(ctx context.Context, collection string, doc Document) (string, error)

	// EnsureUniqueIndex creates a unique index on field of collection if it does not exist.
	EnsureUniqueIndex(ctx context.Context, collection, field string) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the store's connections.
	Close() error
}

// StoreFactory is a function that creates a new Store instance.
type StoreFactory func(ctx context.Context) (Store, error)

// Config selects and configures the document store backend.
type Config struct {
	// Driver is "sqlite" or "mongo"
	Driver string `env:"DRIVER" default:"sqlite"`

	// OperationTimeout bounds every single store call
	OperationTimeout time.Duration `env:"OPERATION_TIMEOUT" default:"5s"`

	SQLite SQLiteDocumentStoreConfig `envPrefix:"SQLITE_"`
	Mongo  MongoDocumentStoreConfig  `envPrefix:"MONGO_"`
}

// Factory returns the StoreFactory for the configured driver.
func Factory(cfg Config) (StoreFactory, error) {
	switch cfg.Driver {
	case "sqlite":
		return func(context.Context) (Store, error) {
			return NewSQLiteDocumentStore(cfg.SQLite, cfg.OperationTimeout)
		}, nil
	case "mongo":
		return func(ctx context.Context) (Store, error) {
			return NewMongoDocumentStore(ctx, cfg.Mongo, cfg.OperationTimeout)
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// Open creates the configured store. When the store cannot be reached, or the mongo
// driver has no URL, it returns an UnavailableStore holding the cause together with
// that cause, so callers can keep serving in a degraded state.
// Any other error is returned with a nil Store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	factory, err := Factory(cfg)
	if err != nil {
		return nil, err
	}

	store, err := factory(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			return &UnavailableStore{Cause: err}, err
		}

		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}

	return store, nil
}

func validateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return nil
}

func validateFilter(filter Filter) error {
	for field := range filter {
		if field == IDField {
			continue
		}

		if err := validateName(field); err != nil {
			return err
		}
	}

	return nil
}

// withTimeout bounds ctx by timeout when timeout is positive.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}

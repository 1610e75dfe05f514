package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkrupp/studentportal/internal/domain"
)

// UnavailableStore stands in for a store whose startup connection failed.
// Every call returns domain.ErrStoreUnavailable joined with the original cause,
// so routes can degrade to a "try again later" state instead of the process exiting.
type UnavailableStore struct {
	Cause error
}

var _ Store = (*UnavailableStore)(nil)

func (s *UnavailableStore) err() error {
	return errors.Join(domain.ErrStoreUnavailable, fmt.Errorf("startup connection failed: %w", s.Cause))
}

// FindOne implements Store.
func (s *UnavailableStore) FindOne(context.Context, string, Filter) (Document, error) {
	return nil, s.err()
}

// InsertOne implements Store.
func (s *UnavailableStore) InsertOne(context.Context, string, Document) (string, error) {
	return "", s.err()
}

// EnsureUniqueIndex implements Store.
func (s *UnavailableStore) EnsureUniqueIndex(context.Context, string, string) error {
	return s.err()
}

// Ping implements Store.
func (s *UnavailableStore) Ping(context.Context) error {
	return s.err()
}

// Close implements Store.
func (s *UnavailableStore) Close() error {
	return nil
}

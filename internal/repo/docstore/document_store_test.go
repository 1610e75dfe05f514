package docstore_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/studentportal/internal/domain"
	"github.com/mkrupp/studentportal/internal/repo/docstore"
)

func TestDocument_Accessors(t *testing.T) {
	t.Parallel()

	doc := docstore.Document{
		"s":   "value",
		"i":   int64(3),
		"i32": int32(4),
		"f":   float64(5),
		"n":   nil,
	}

	assert.Equal(t, "value", doc.String("s"))
	assert.Equal(t, "", doc.String("i"))
	assert.Equal(t, "", doc.String("missing"))
	assert.Equal(t, int64(3), doc.Int64("i"))
	assert.Equal(t, int64(4), doc.Int64("i32"))
	assert.Equal(t, int64(5), doc.Int64("f"))
	assert.Equal(t, int64(0), doc.Int64("n"))
}

func TestFactory(t *testing.T) {
	t.Parallel()

	_, err := docstore.Factory(docstore.Config{Driver: "postgres"})
	require.ErrorIs(t, err, docstore.ErrUnknownDriver)

	factory, err := docstore.Factory(docstore.Config{
		Driver:           "sqlite",
		OperationTimeout: time.Second,
		SQLite:           docstore.SQLiteDocumentStoreConfig{DatabasePath: filepath.Join(t.TempDir(), "f.db")},
	})
	require.NoError(t, err)

	store, err := factory(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	factory, err = docstore.Factory(docstore.Config{Driver: "mongo"})
	require.NoError(t, err)

	_, err = factory(context.Background())
	assert.ErrorIs(t, err, docstore.ErrNoMongoURL)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	store, err := docstore.Open(ctx, docstore.Config{
		Driver: "sqlite",
		SQLite: docstore.SQLiteDocumentStoreConfig{DatabasePath: filepath.Join(t.TempDir(), "open.db")},
	})
	require.NoError(t, err)
	assert.IsType(t, &docstore.SQLiteDocumentStore{}, store)
	require.NoError(t, store.Close())

	// Missing mongo URL degrades instead of failing.
	store, err = docstore.Open(ctx, docstore.Config{Driver: "mongo"})
	require.ErrorIs(t, err, docstore.ErrNoMongoURL)
	require.IsType(t, &docstore.UnavailableStore{}, store)
	assert.ErrorIs(t, store.Ping(ctx), domain.ErrStoreUnavailable)
	assert.ErrorIs(t, store.Ping(ctx), docstore.ErrNoMongoURL)

	store, err = docstore.Open(ctx, docstore.Config{Driver: "postgres"})
	require.ErrorIs(t, err, docstore.ErrUnknownDriver)
	assert.Nil(t, store)
}

func TestMongoDocumentStore_Unreachable(t *testing.T) {
	t.Parallel()

	_, err := docstore.NewMongoDocumentStore(context.Background(), docstore.MongoDocumentStoreConfig{
		URL:            "mongodb://127.0.0.1:1/?directConnection=true",
		Database:       "student_app",
		ConnectTimeout: 200 * time.Millisecond,
	}, time.Second)

	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestUnavailableStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cause := errors.New("connection refused")
	store := &docstore.UnavailableStore{Cause: cause}

	_, err := store.FindOne(ctx, "accounts", docstore.Filter{})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)

	_, err = store.InsertOne(ctx, "accounts", docstore.Document{})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	assert.ErrorIs(t, store.EnsureUniqueIndex(ctx, "accounts", "email"), domain.ErrStoreUnavailable)
	assert.ErrorIs(t, store.Ping(ctx), domain.ErrStoreUnavailable)
	assert.NoError(t, store.Close())
}

package docstore

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mkrupp/studentportal/internal/domain"
	"github.com/mkrupp/studentportal/internal/infra/logging"
)

// SQLiteDocumentStoreConfig holds configuration for the SQLite document store.
type SQLiteDocumentStoreConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/portalsvc.db"`
}

// SQLiteDocumentStore implements Store on a single SQLite table of JSON documents.
// Identifiers are ULIDs; unique indexes are partial expression indexes over json_extract.
type SQLiteDocumentStore struct {
	db        *sql.DB
	log       logging.Logger
	timeout   time.Duration
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes

	entropyLock sync.Mutex
	entropy     *ulid.MonotonicEntropy
}

var _ Store = (*SQLiteDocumentStore)(nil)

// NewSQLiteDocumentStore opens (and if needed creates) the database at cfg.DatabasePath.
// Returns an error if the database cannot be opened or initialized.
func NewSQLiteDocumentStore(cfg SQLiteDocumentStoreConfig, timeout time.Duration) (*SQLiteDocumentStore, error) {
	log := logging.GetLogger("repo.docstore.sqlite_document_store").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := cfg.DatabasePath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	ctx, cancel := withTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, errors.Join(domain.ErrStoreUnavailable, fmt.Errorf("ping db: %w", err))
	}

	if err := initializeDB(ctx, db); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("initialize db: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	log.Debug("document store opened")

	return &SQLiteDocumentStore{
		db:        db,
		log:       log,
		timeout:   timeout,
		writeLock: new(sync.Mutex),
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}, nil
}

func initializeDB(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT    NOT NULL,
			id         TEXT    NOT NULL,
			body       TEXT    NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (collection, id)
		)
	`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

func (s *SQLiteDocumentStore) newID() string {
	s.entropyLock.Lock()
	defer s.entropyLock.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// FindOne implements Store.FindOne using SQLite.
func (s *SQLiteDocumentStore) FindOne(ctx context.Context, collection string, filter Filter) (Document, error) {
	if err := validateName(collection); err != nil {
		return nil, err
	}

	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	var (
		query strings.Builder
		args  = []any{collection}
	)

	query.WriteString("SELECT id, body FROM documents WHERE collection = ?")

	for _, field := range slices.Sorted(maps.Keys(filter)) {
		value := filter[field]

		if field == IDField {
			id, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %v", ErrInvalidID, value)
			}

			if _, err := ulid.ParseStrict(id); err != nil {
				return nil, errors.Join(ErrInvalidID, err)
			}

			query.WriteString(" AND id = ?")
			args = append(args, strings.ToUpper(id))

			continue
		}

		query.WriteString(" AND json_extract(body, '$." + field + "') = ?")
		args = append(args, value)
	}

	query.WriteString(" LIMIT 1")

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var (
		id   string
		body string
	)

	if err := s.db.QueryRowContext(ctx, query.String(), args...).Scan(&id, &body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoDocument
		}

		return nil, fmt.Errorf("query document: %w", classify(err))
	}

	doc := Document{}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}

	doc[IDField] = id

	return doc, nil
}

// InsertOne implements Store.InsertOne using SQLite.
func (s *SQLiteDocumentStore) InsertOne(ctx context.Context, collection string, doc Document) (string, error) {
	if err := validateName(collection); err != nil {
		return "", err
	}

	body := maps.Clone(doc)
	delete(body, IDField)

	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}

	id := s.newID()

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (collection, id, body, created_at) VALUES (?, ?, ?, ?)",
		collection,
		id,
		string(bodyJSON),
		time.Now().Unix(),
	); err != nil {
		return "", fmt.Errorf("insert document: %w", classify(err))
	}

	return id, nil
}

// EnsureUniqueIndex implements Store.EnsureUniqueIndex with a partial expression index.
func (s *SQLiteDocumentStore) EnsureUniqueIndex(ctx context.Context, collection, field string) error {
	if err := validateName(collection); err != nil {
		return err
	}

	if err := validateName(field); err != nil {
		return err
	}

	// Names are validated above; SQLite does not accept bound parameters in index definitions.
	stmt := fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS documents_%[1]s_%[2]s_unique "+
			"ON documents (json_extract(body, '$.%[2]s')) WHERE collection = '%[1]s'",
		collection, field,
	)

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create unique index: %w", classify(err))
	}

	s.log.DebugContext(ctx, "unique index ensured", "collection", collection, "field", field)

	return nil
}

// Ping implements Store.Ping.
func (s *SQLiteDocumentStore) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return errors.Join(domain.ErrStoreUnavailable, fmt.Errorf("ping db: %w", err))
	}

	return nil
}

// Close implements Store.Close by closing the database connection.
func (s *SQLiteDocumentStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}

// classify joins driver errors with the store's sentinel errors.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return errors.Join(domain.ErrStoreUnavailable, err)
	}

	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return err
	}

	switch liteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return errors.Join(ErrDuplicateKey, err)
	}

	//nolint:mnd
	switch liteErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_CANTOPEN:
		return errors.Join(domain.ErrStoreUnavailable, err)
	}

	return err
}

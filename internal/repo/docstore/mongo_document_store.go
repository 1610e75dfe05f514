package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/mkrupp/studentportal/internal/domain"
	"github.com/mkrupp/studentportal/internal/infra/logging"
)

// ErrNoMongoURL is returned when the mongo driver is selected without a connection URL.
var ErrNoMongoURL = errors.New("mongo url not set")

// MongoDocumentStoreConfig holds configuration for the MongoDB document store.
type MongoDocumentStoreConfig struct {
	// URL is the MongoDB connection string
	URL string `env:"URL" default:""`
	// Database is the database holding the collections
	Database string `env:"DATABASE" default:"student_app"`
	// ConnectTimeout bounds server selection and the startup ping
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" default:"5s"`
}

// MongoDocumentStore implements Store on a MongoDB database.
// Identifiers are ObjectIDs rendered as 24-character hex strings.
type MongoDocumentStore struct {
	client  *mongo.Client
	db      *mongo.Database
	log     logging.Logger
	timeout time.Duration
}

var _ Store = (*MongoDocumentStore)(nil)

// NewMongoDocumentStore connects to cfg.URL and pings the primary once.
// A missing URL is reported as domain.ErrStoreUnavailable joined with ErrNoMongoURL.
// A failed ping is reported as domain.ErrStoreUnavailable; no reconnect is attempted here,
// the driver keeps monitoring the deployment in the background.
func NewMongoDocumentStore(ctx context.Context, cfg MongoDocumentStoreConfig, timeout time.Duration) (*MongoDocumentStore, error) {
	if cfg.URL == "" {
		return nil, errors.Join(domain.ErrStoreUnavailable, ErrNoMongoURL)
	}

	log := logging.GetLogger("repo.docstore.mongo_document_store").With(
		logging.Group("db", "database", cfg.Database),
	)

	client, err := mongo.Connect(options.Client().
		ApplyURI(cfg.URL).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))

		return nil, errors.Join(domain.ErrStoreUnavailable, fmt.Errorf("ping: %w", err))
	}

	log.InfoContext(ctx, "connected to mongodb")

	return &MongoDocumentStore{
		client:  client,
		db:      client.Database(cfg.Database),
		log:     log,
		timeout: timeout,
	}, nil
}

func toBSONFilter(filter Filter) (bson.M, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	out := make(bson.M, len(filter))

	for field, value := range filter {
		if field != IDField {
			out[field] = value

			continue
		}

		hex, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrInvalidID, value)
		}

		oid, err := bson.ObjectIDFromHex(hex)
		if err != nil {
			return nil, errors.Join(ErrInvalidID, err)
		}

		out[IDField] = oid
	}

	return out, nil
}

func fromBSON(raw bson.M) Document {
	doc := make(Document, len(raw))

	for field, value := range raw {
		if oid, ok := value.(bson.ObjectID); ok {
			doc[field] = oid.Hex()

			continue
		}

		doc[field] = value
	}

	return doc
}

// FindOne implements Store.FindOne using MongoDB.
func (s *MongoDocumentStore) FindOne(ctx context.Context, collection string, filter Filter) (Document, error) {
	if err := validateName(collection); err != nil {
		return nil, err
	}

	bsonFilter, err := toBSONFilter(filter)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var raw bson.M
	if err := s.db.Collection(collection).FindOne(ctx, bsonFilter).Decode(&raw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoDocument
		}

		return nil, fmt.Errorf("find one: %w", classifyMongo(err))
	}

	return fromBSON(raw), nil
}

// InsertOne implements Store.InsertOne using MongoDB.
func (s *MongoDocumentStore) InsertOne(ctx context.Context, collection string, doc Document) (string, error) {
	if err := validateName(collection); err != nil {
		return "", err
	}

	oid := bson.NewObjectID()

	record := make(bson.M, len(doc)+1)
	for field, value := range doc {
		record[field] = value
	}

	record[IDField] = oid

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.Collection(collection).InsertOne(ctx, record); err != nil {
		return "", fmt.Errorf("insert one: %w", classifyMongo(err))
	}

	return oid.Hex(), nil
}

// EnsureUniqueIndex implements Store.EnsureUniqueIndex using MongoDB.
func (s *MongoDocumentStore) EnsureUniqueIndex(ctx context.Context, collection, field string) error {
	if err := validateName(collection); err != nil {
		return err
	}

	if err := validateName(field); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	name, err := s.db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetUnique(true).SetName(field + "_unique"),
	})
	if err != nil {
		return fmt.Errorf("create unique index: %w", classifyMongo(err))
	}

	s.log.DebugContext(ctx, "unique index ensured", "collection", collection, "index", name)

	return nil
}

// Ping implements Store.Ping.
func (s *MongoDocumentStore) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return errors.Join(domain.ErrStoreUnavailable, fmt.Errorf("ping: %w", err))
	}

	return nil
}

// Close implements Store.Close by disconnecting the client.
func (s *MongoDocumentStore) Close() error {
	ctx, cancel := withTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}

	return nil
}

func classifyMongo(err error) error {
	switch {
	case mongo.IsDuplicateKeyError(err):
		return errors.Join(ErrDuplicateKey, err)
	case mongo.IsTimeout(err),
		mongo.IsNetworkError(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, mongo.ErrClientDisconnected):
		return errors.Join(domain.ErrStoreUnavailable, err)
	default:
		return err
	}
}

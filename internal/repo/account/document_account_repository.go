package account

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mkrupp/studentportal/internal/domain"
	"github.com/mkrupp/studentportal/internal/infra/logging"
	"github.com/mkrupp/studentportal/internal/repo/docstore"
	"github.com/mkrupp/studentportal/internal/util/password"
)

// Collection is the document store collection holding accounts.
const Collection = "accounts"

const (
	fieldName         = "name"
	fieldEmail        = "email"
	fieldPasswordHash = "password_hash"
	fieldPhone        = "phone"
	fieldCreatedAt    = "created_at"
)

// DocumentAccountRepository implements Repository on top of a docstore.Store.
type DocumentAccountRepository struct {
	store  docstore.Store
	hasher *password.Hasher
	log    logging.Logger

	// dummyHash is verified against for unknown emails so that the
	// response time does not reveal whether an email is registered.
	dummyHash func() (string, error)

	indexMu sync.Mutex
	indexed bool // unique email index confirmed by the store
}

var _ Repository = (*DocumentAccountRepository)(nil)

// DocumentAccountRepositoryFactory creates a factory function that returns a new DocumentAccountRepository.
// The factory function implements the RepositoryFactory type.
func DocumentAccountRepositoryFactory(store docstore.Store, hasher *password.Hasher) RepositoryFactory {
	return func(ctx context.Context) (Repository, error) {
		return NewDocumentAccountRepository(ctx, store, hasher)
	}
}

// NewDocumentAccountRepository creates a repository backed by store and ensures the
// unique email index exists. If the store is unavailable the index is ensured again
// before the first registration; no account is inserted until it exists.
func NewDocumentAccountRepository(
	ctx context.Context,
	store docstore.Store,
	hasher *password.Hasher,
) (*DocumentAccountRepository, error) {
	repo := &DocumentAccountRepository{
		store:  store,
		hasher: hasher,
		log:    logging.GetLogger("repo.account.document_account_repository"),
		dummyHash: sync.OnceValues(func() (string, error) {
			return hasher.Hash(rand.Text())
		}),
	}

	if err := repo.ensureIndex(ctx); err != nil {
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			return nil, err
		}

		repo.log.WarnContext(ctx, "email index deferred, store unavailable", "error", err)
	}

	return repo, nil
}

// ensureIndex creates the unique email index once. Failures are not cached.
func (r *DocumentAccountRepository) ensureIndex(ctx context.Context) error {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()

	if r.indexed {
		return nil
	}

	if err := r.store.EnsureUniqueIndex(ctx, Collection, fieldEmail); err != nil {
		return fmt.Errorf("ensure email index: %w", err)
	}

	r.indexed = true

	return nil
}

// Register implements Repository.Register.
func (r *DocumentAccountRepository) Register(
	ctx context.Context,
	name, email, pass, phone string,
) (*domain.Account, error) {
	reg := domain.Registration{Name: name, Email: email, Password: pass, Phone: phone}
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	if err := r.ensureIndex(ctx); err != nil {
		return nil, err
	}

	account := &domain.Account{
		Name:      strings.TrimSpace(name),
		Email:     domain.NormalizeEmail(email),
		Phone:     strings.TrimSpace(phone),
		CreatedAt: time.Now().Unix(),
	}

	switch _, err := r.store.FindOne(ctx, Collection, docstore.Filter{fieldEmail: account.Email}); {
	case err == nil:
		return nil, domain.ErrDuplicateEmail
	case !errors.Is(err, docstore.ErrNoDocument):
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := r.hasher.Hash(pass)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account.PasswordHash = hash

	doc := docstore.Document{
		fieldName:         account.Name,
		fieldEmail:        account.Email,
		fieldPasswordHash: account.PasswordHash,
		fieldCreatedAt:    account.CreatedAt,
	}

	if account.Phone != "" {
		doc[fieldPhone] = account.Phone
	}

	id, err := r.store.InsertOne(ctx, Collection, doc)
	if err != nil {
		if errors.Is(err, docstore.ErrDuplicateKey) {
			return nil, errors.Join(domain.ErrDuplicateEmail, err)
		}

		return nil, fmt.Errorf("insert account: %w", err)
	}

	account.ID = id

	r.log.InfoContext(ctx, "account registered", "account.id", id)

	return account, nil
}

// Authenticate implements Repository.Authenticate.
func (r *DocumentAccountRepository) Authenticate(ctx context.Context, email, pass string) (*domain.Account, error) {
	doc, err := r.store.FindOne(ctx, Collection, docstore.Filter{fieldEmail: domain.NormalizeEmail(email)})
	if err != nil {
		if !errors.Is(err, docstore.ErrNoDocument) {
			return nil, fmt.Errorf("find account: %w", err)
		}

		if dummy, err := r.dummyHash(); err == nil {
			_, _ = r.hasher.Verify(pass, dummy)
		}

		return nil, domain.ErrInvalidCredentials
	}

	account := accountFromDocument(doc)

	ok, err := r.hasher.Verify(pass, account.PasswordHash)
	if err != nil {
		r.log.ErrorContext(ctx, "stored password hash unreadable", "account.id", account.ID, "error", err)

		return nil, domain.ErrInvalidCredentials
	}

	if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	return account, nil
}

// GetByID implements Repository.GetByID.
func (r *DocumentAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, bool, error) {
	if id == "" {
		return nil, false, nil
	}

	doc, err := r.store.FindOne(ctx, Collection, docstore.Filter{docstore.IDField: id})
	if err != nil {
		if errors.Is(err, docstore.ErrNoDocument) || errors.Is(err, docstore.ErrInvalidID) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("find account: %w", err)
	}

	return accountFromDocument(doc), true, nil
}

// Ping implements Repository.Ping.
func (r *DocumentAccountRepository) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}

	return nil
}

// Close implements Repository.Close by closing the underlying store.
func (r *DocumentAccountRepository) Close() error {
	if err := r.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	return nil
}

func accountFromDocument(doc docstore.Document) *domain.Account {
	return &domain.Account{
		ID:           doc.String(docstore.IDField),
		Name:         doc.String(fieldName),
		Email:        doc.String(fieldEmail),
		PasswordHash: doc.String(fieldPasswordHash),
		Phone:        doc.String(fieldPhone),
		CreatedAt:    doc.Int64(fieldCreatedAt),
	}
}

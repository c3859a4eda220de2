// Package service implements the identity provider: accounts, password
// login, JWT issuance, logout through the revocation list and the signed-in
// user's profile.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"organograma/internal/audit"
	"organograma/internal/auth/models"
	dirmodels "organograma/internal/directory/models"
	dirservice "organograma/internal/directory/service"
	jwttoken "organograma/internal/jwt_token"
	dErrors "organograma/pkg/domain-errors"
	"organograma/pkg/platform/sentinel"
	"organograma/pkg/requestcontext"
)

const defaultTokenTTL = 8 * time.Hour

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// RevocationList records logged-out token ids until they expire.
type RevocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
}

type TokenIssuer interface {
	GenerateAccessToken(subject jwttoken.Subject, expiresIn time.Duration) (*jwttoken.IssuedToken, error)
}

// Directory is the slice of the personnel directory a user may touch through
// their own profile.
type Directory interface {
	GetPerson(ctx context.Context, id string) (*dirmodels.Person, error)
	GetSector(ctx context.Context, id string) (*dirmodels.Sector, error)
	UpdateContact(ctx context.Context, id string, c dirservice.ContactFields) (*dirmodels.Person, error)
	SetPhoto(ctx context.Context, id, photoURL string) (*dirmodels.Person, error)
}

type PhotoStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

// Lockout throttles repeated failed logins per email and client address.
type Lockout interface {
	Check(ctx context.Context, email, ip string) error
	RecordFailure(ctx context.Context, email, ip string) (bool, error)
	Clear(ctx context.Context, email, ip string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	users          UserStore
	revocations    RevocationList
	tokens         TokenIssuer
	directory      Directory
	photos         PhotoStore
	lockout        Lockout
	auditPublisher AuditPublisher
	logger         *slog.Logger
	tokenTTL       time.Duration
	maxPhotoBytes  int64
	bcryptCost     int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithDirectory links accounts to personnel records.
func WithDirectory(d Directory) Option {
	return func(s *Service) {
		s.directory = d
	}
}

func WithPhotoStore(store PhotoStore, maxBytes int64) Option {
	return func(s *Service) {
		s.photos = store
		s.maxPhotoBytes = maxBytes
	}
}

func WithLockout(l Lockout) Option {
	return func(s *Service) {
		s.lockout = l
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithBcryptCost lowers the hashing cost in tests.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

func New(users UserStore, revocations RevocationList, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{
		users:       users,
		revocations: revocations,
		tokens:      tokens,
		logger:      slog.Default(),
		tokenTTL:    defaultTokenTTL,
		bcryptCost:  defaultBcryptCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"subject", event.Subject,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func (s *Service) findUser(ctx context.Context, id string) (*models.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return u, nil
}

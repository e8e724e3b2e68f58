package local

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	authcard "github.com/goliatone/go-authcard"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

const (
	invalidCredentials = "Invalid login credentials"
	alreadyRegistered  = "User already registered"

	defaultTokenTTL = time.Hour
	defaultIssuer   = "authcard-local"
)

// Backend implements authcard.Backend on the account and profile
// repositories.
type Backend struct {
	accounts   Accounts
	profiles   repository.Repository[*Profile]
	signingKey []byte
	tokenTTL   time.Duration
	issuer     string
	hashCost   int
	useHashid  bool
	now        func() time.Time
}

var _ authcard.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithTokenTTL sets the session token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(b *Backend) {
		if ttl > 0 {
			b.tokenTTL = ttl
		}
	}
}

// WithIssuer sets the iss claim of session tokens.
func WithIssuer(issuer string) Option {
	return func(b *Backend) {
		if issuer != "" {
			b.issuer = issuer
		}
	}
}

// WithHashCost sets the bcrypt cost.
func WithHashCost(cost int) Option {
	return func(b *Backend) {
		b.hashCost = cost
	}
}

// WithHashIDs derives user ids from the email address instead of random
// uuids, so the same email always maps to the same id.
func WithHashIDs(enabled bool) Option {
	return func(b *Backend) {
		b.useHashid = enabled
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a backend. signingKey signs the HS256 session tokens.
func New(db *bun.DB, signingKey []byte, opts ...Option) (*Backend, error) {
	if db == nil {
		return nil, fmt.Errorf("local: backend database is required")
	}
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("local: backend signing key is required")
	}

	b := &Backend{
		accounts:   NewAccountsRepository(db),
		profiles:   NewProfilesRepository(db),
		signingKey: signingKey,
		tokenTTL:   defaultTokenTTL,
		issuer:     defaultIssuer,
		hashCost:   14,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// SignIn implements authcard.Authenticator.
func (b *Backend) SignIn(ctx context.Context, email, password string) (*authcard.AuthResult, error) {
	account, err := b.accounts.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, credentialsError()
		}
		return nil, fmt.Errorf("local: find account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, credentialsError()
		}
		return nil, fmt.Errorf("local: compare password: %w", err)
	}

	session, err := b.issue(account)
	if err != nil {
		return nil, err
	}

	return &authcard.AuthResult{
		User:    &authcard.User{ID: account.ID.String(), Email: account.Email},
		Session: session,
	}, nil
}

// SignUp implements authcard.Authenticator.
func (b *Backend) SignUp(ctx context.Context, email, password string, opts authcard.SignUpOptions) (*authcard.AuthResult, error) {
	email = normalizeEmail(email)

	exists, err := b.accounts.ExistsEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("local: find account: %w", err)
	}
	if exists {
		return nil, registeredError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.hashCost)
	if err != nil {
		return nil, fmt.Errorf("local: hash password: %w", err)
	}

	account, err := b.accounts.Create(ctx, &Account{
		ID:           b.newID(email),
		Email:        email,
		DisplayName:  opts.DisplayName,
		PasswordHash: string(hash),
		CreatedAt:    b.now().UTC(),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, registeredError()
		}
		return nil, fmt.Errorf("local: create account: %w", err)
	}

	session, err := b.issue(account)
	if err != nil {
		return nil, err
	}

	return &authcard.AuthResult{
		User:    &authcard.User{ID: account.ID.String(), Email: account.Email},
		Session: session,
	}, nil
}

// InsertProfile implements authcard.ProfileStore.
func (b *Backend) InsertProfile(ctx context.Context, record authcard.ProfileRecord) error {
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return fmt.Errorf("local: insert profile: invalid user id %q: %w", record.ID, err)
	}
	_, err = b.profiles.Create(ctx, &Profile{
		ID:        id,
		Name:      record.Name,
		Email:     record.Email,
		CreatedAt: record.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("local: insert profile: %w", err)
	}
	return nil
}

// Profile loads the profile row for id.
func (b *Backend) Profile(ctx context.Context, id string) (*Profile, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, repository.NewRecordNotFound()
	}
	return b.profiles.Get(ctx, byID(uid))
}

// Claims are the session token claims.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

func (b *Backend) issue(account *Account) (*authcard.Session, error) {
	now := b.now()
	expires := now.Add(b.tokenTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    b.issuer,
			Subject:   account.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Email: account.Email,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.signingKey)
	if err != nil {
		return nil, fmt.Errorf("local: failed to sign JWT: %w", err)
	}

	return &authcard.Session{
		AccessToken: token,
		ExpiresAt:   expires.UTC(),
	}, nil
}

// ParseToken validates a session token issued by this backend.
func (b *Backend) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return b.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(b.issuer),
		jwt.WithTimeFunc(b.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (b *Backend) newID(email string) uuid.UUID {
	if b.useHashid {
		if id, err := hashid.NewUUID(email); err == nil {
			if parsed, perr := uuid.Parse(id.String()); perr == nil {
				return parsed
			}
		}
	}
	return uuid.New()
}

func credentialsError() error {
	return &authcard.AuthError{
		Status:  http.StatusBadRequest,
		Code:    "invalid_credentials",
		Message: invalidCredentials,
	}
}

func registeredError() error {
	return &authcard.AuthError{
		Status:  http.StatusUnprocessableEntity,
		Code:    "user_already_exists",
		Message: alreadyRegistered,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed: unique")
}

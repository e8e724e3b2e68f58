package local

import (
	"context"
	"testing"
	"time"

	authcard "github.com/goliatone/go-authcard"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

func setupBackend(t *testing.T, opts ...Option) (*Backend, *bun.DB) {
	t.Helper()

	client, err := Open(":memory:")
	require.NoError(t, err)
	db := client.DB()
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(context.Background(), client))

	opts = append([]Option{WithHashCost(bcrypt.MinCost)}, opts...)
	backend, err := New(db, []byte("test-signing-key"), opts...)
	require.NoError(t, err)
	return backend, db
}

func TestNew_RequiresDatabaseAndKey(t *testing.T) {
	_, err := New(nil, []byte("key"))
	require.Error(t, err)

	client, err := Open(":memory:")
	require.NoError(t, err)
	defer client.DB().Close()

	_, err = New(client.DB(), nil)
	require.Error(t, err)
}

func TestBackend_SignUpThenSignIn(t *testing.T) {
	backend, _ := setupBackend(t)
	ctx := context.Background()

	res, err := backend.SignUp(ctx, " Ann@Example.com ", "Password1", authcard.SignUpOptions{DisplayName: "Ann"})
	require.NoError(t, err)
	require.NotNil(t, res.User)
	assert.NotEmpty(t, res.User.ID)
	assert.Equal(t, "ann@example.com", res.User.Email)
	require.NotNil(t, res.Session)
	assert.NotEmpty(t, res.Session.AccessToken)

	signedIn, err := backend.SignIn(ctx, "ann@example.com", "Password1")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, signedIn.User.ID)

	claims, err := backend.ParseToken(signedIn.Session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.Subject)
	assert.Equal(t, "ann@example.com", claims.Email)
	assert.Equal(t, defaultIssuer, claims.Issuer)
}

func TestBackend_SignInInvalidCredentials(t *testing.T) {
	backend, _ := setupBackend(t)
	ctx := context.Background()

	_, err := backend.SignIn(ctx, "nobody@example.com", "Password1")
	require.Error(t, err)
	assert.True(t, authcard.IsInvalidCredentials(err))

	_, err = backend.SignUp(ctx, "ann@example.com", "Password1", authcard.SignUpOptions{})
	require.NoError(t, err)

	_, err = backend.SignIn(ctx, "ann@example.com", "WrongPass1")
	require.Error(t, err)
	assert.True(t, authcard.IsInvalidCredentials(err))
	assert.Equal(t, "Invalid email or password. Please try again.", authcard.SignInErrorMessage(err))
}

func TestBackend_SignUpAlreadyRegistered(t *testing.T) {
	backend, _ := setupBackend(t)
	ctx := context.Background()

	_, err := backend.SignUp(ctx, "ann@example.com", "Password1", authcard.SignUpOptions{})
	require.NoError(t, err)

	_, err = backend.SignUp(ctx, "ANN@example.com", "Password2", authcard.SignUpOptions{})
	require.Error(t, err)
	assert.True(t, authcard.IsAlreadyRegistered(err))
	assert.Equal(t, "This email is already registered. Try signing in instead.", authcard.SignUpErrorMessage(err))
}

func TestBackend_HashIDsAreDeterministic(t *testing.T) {
	first, _ := setupBackend(t, WithHashIDs(true))
	second, _ := setupBackend(t, WithHashIDs(true))
	ctx := context.Background()

	a, err := first.SignUp(ctx, "ann@example.com", "Password1", authcard.SignUpOptions{})
	require.NoError(t, err)
	b, err := second.SignUp(ctx, "ann@example.com", "Password1", authcard.SignUpOptions{})
	require.NoError(t, err)

	assert.Equal(t, a.User.ID, b.User.ID)
}

func TestBackend_InsertProfile(t *testing.T) {
	backend, _ := setupBackend(t)
	ctx := context.Background()

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	id := uuid.NewString()
	record := authcard.NewProfileRecord(id, "  Ann Lee ", " Ann@Example.com", created)
	require.NoError(t, backend.InsertProfile(ctx, record))

	profile, err := backend.Profile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", profile.Name)
	assert.Equal(t, "ann@example.com", profile.Email)
	assert.True(t, created.Equal(profile.CreatedAt))

	err = backend.InsertProfile(ctx, record)
	require.Error(t, err)

	err = backend.InsertProfile(ctx, authcard.NewProfileRecord("user-1", "Ann", "ann@example.com", created))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid user id")

	_, err = backend.Profile(ctx, uuid.NewString())
	require.Error(t, err)
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestMigrate_IsRepeatable(t *testing.T) {
	client, err := Open(":memory:")
	require.NoError(t, err)
	defer client.DB().Close()

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, client))
	require.NoError(t, Migrate(ctx, client))

	for _, table := range []string{"auth_accounts", "users"} {
		var count int
		err := client.DB().NewSelect().
			ColumnExpr("count(*)").
			TableExpr("sqlite_master").
			Where("type = 'table' AND name = ?", table).
			Scan(ctx, &count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, table)
	}
}

func TestBackend_UsesRepositories(t *testing.T) {
	backend, db := setupBackend(t)
	ctx := context.Background()

	res, err := backend.SignUp(ctx, "ann@example.com", "Password1", authcard.SignUpOptions{DisplayName: "Ann"})
	require.NoError(t, err)

	account, err := NewAccountsRepository(db).GetByEmail(ctx, " ANN@example.com")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, account.ID.String())
	assert.Equal(t, "Ann", account.DisplayName)
	assert.NotEqual(t, "Password1", account.PasswordHash)

	_, err = NewAccountsRepository(db).GetByEmail(ctx, "bob@example.com")
	require.Error(t, err)
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestBackend_TokenExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	backend, _ := setupBackend(t, WithTokenTTL(time.Minute), WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	res, err := backend.SignUp(ctx, "ann@example.com", "Password1", authcard.SignUpOptions{})
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), res.Session.ExpiresAt)

	_, err = backend.ParseToken(res.Session.AccessToken)
	require.NoError(t, err)

	clock = now.Add(2 * time.Minute)
	_, err = backend.ParseToken(res.Session.AccessToken)
	require.Error(t, err)
}

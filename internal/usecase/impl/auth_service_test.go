package impl

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"gatepass/config"
	"gatepass/internal/domain/entity"
	domainerrors "gatepass/internal/domain/errors"
	"gatepass/internal/domain/repository"
	"gatepass/internal/infra/auth"
	"gatepass/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// memoryUserStore is an in-memory UserRepository with the same optimistic
// version check the real store performs. It deliberately does not serialize
// whole read-modify-write cycles, so concurrent mutations genuinely race and
// exercise the retry path.
type memoryUserStore struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*entity.User
	byEmail map[string]uuid.UUID
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{
		users:   make(map[uuid.UUID]*entity.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func cloneUser(user *entity.User) *entity.User {
	cloned := *user
	cloned.RefreshTokens = append([]entity.RefreshToken(nil), user.RefreshTokens...)

	return &cloned
}

func (s *memoryUserStore) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	return cloneUser(user), nil
}

func (s *memoryUserStore) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	return cloneUser(s.users[id]), nil
}

func (s *memoryUserStore) Create(ctx context.Context, user *entity.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[user.Email]; exists {
		return repository.ErrDuplicateEmail
	}

	user.ID = uuid.New()
	user.Version = 1
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	s.users[user.ID] = cloneUser(user)
	s.byEmail[user.Email] = user.ID

	return nil
}

func (s *memoryUserStore) Update(ctx context.Context, user *entity.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[user.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	if stored.Version != user.Version {
		return repository.ErrVersionConflict
	}

	user.Version++
	user.UpdatedAt = time.Now()
	s.users[user.ID] = cloneUser(user)

	return nil
}

// tokensOf reads the current refresh-token collection of a user.
func (s *memoryUserStore) tokensOf(t *testing.T, id uuid.UUID) []entity.RefreshToken {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	require.True(t, ok, "user must exist")

	return append([]entity.RefreshToken(nil), user.RefreshTokens...)
}

// expireToken rewrites a stored token's expiry, bypassing the repository.
func (s *memoryUserStore) expireToken(t *testing.T, id uuid.UUID, tokenHash string) {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.users[id]
	for i := range user.RefreshTokens {
		if user.RefreshTokens[i].TokenHash == tokenHash {
			user.RefreshTokens[i].ExpiresOn = time.Now().Add(-time.Minute)

			return
		}
	}
	t.Fatalf("token %s not found", tokenHash)
}

type memoryRepoFactory struct {
	store *memoryUserStore
}

func (f *memoryRepoFactory) UserRepo() repository.UserRepository {
	return f.store
}

type memoryTxManager struct {
	store *memoryUserStore
}

func (m *memoryTxManager) Execute(ctx context.Context, fn func(txRepoFactory repository.RepositoryFactory) error) error {
	return fn(&memoryRepoFactory{store: m.store})
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.SecretKey.Access = "test-secret"
	cfg.Auth = &config.AuthConfig{
		BcryptCost:     bcrypt.MinCost,
		AccessTokenTTL: time.Minute,
		// The fake store races for real, so give the version-conflict retry
		// loop enough headroom for the concurrency tests.
		AppendMaxRetries: 32,
	}

	return cfg
}

func newTestService(t *testing.T) (usecase.AuthUsecase, *memoryUserStore) {
	t.Helper()

	cfg := testConfig()
	issuer, err := auth.NewJWTIssuer(cfg)
	require.NoError(t, err)

	store := newMemoryUserStore()
	svc := NewAuthService(AuthServiceParams{
		TxManager: &memoryTxManager{store: store},
		UserRepo:  store,
		Hasher:    auth.NewBcryptHasher(cfg),
		Tokens:    issuer,
		Config:    cfg,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	return svc, store
}

func registerUser(t *testing.T, svc usecase.AuthUsecase, email string) *usecase.AuthResponse {
	t.Helper()

	result, err := svc.Register(context.Background(), &usecase.RegisterInput{
		Email:     email,
		Password:  "correct horse",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)
	require.True(t, result.IsSuccess())

	return result.Value()
}

func TestRegister(t *testing.T) {
	t.Run("creates account and issues token pair", func(t *testing.T) {
		svc, store := newTestService(t)

		response := registerUser(t, svc, "ada@example.com")

		assert.Equal(t, "ada@example.com", response.Email)
		assert.NotEmpty(t, response.AccessToken)
		assert.NotEmpty(t, response.RefreshToken)
		assert.Positive(t, response.AccessTokenExpiresIn)

		tokens := store.tokensOf(t, response.UserID)
		require.Len(t, tokens, 1)
		// The raw refresh token never touches storage, only its hash.
		assert.NotEqual(t, response.RefreshToken, tokens[0].TokenHash)
		assert.WithinDuration(t, time.Now().Add(14*24*time.Hour), response.RefreshTokenExpiresOn, time.Minute)
	})

	t.Run("duplicate email is a domain failure", func(t *testing.T) {
		svc, _ := newTestService(t)
		registerUser(t, svc, "ada@example.com")

		result, err := svc.Register(context.Background(), &usecase.RegisterInput{
			Email:     "ada@example.com",
			Password:  "another pass",
			FirstName: "Ada",
			LastName:  "Lovelace",
		})
		require.NoError(t, err)
		require.True(t, result.IsFailure())
		assert.Equal(t, domainerrors.ErrDuplicateEmail, result.Err())
	})
}

func TestIssueToken(t *testing.T) {
	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		svc, _ := newTestService(t)
		registerUser(t, svc, "ada@example.com")

		unknown, err := svc.IssueToken(context.Background(), &usecase.IssueTokenInput{
			Email:    "nobody@example.com",
			Password: "correct horse",
		})
		require.NoError(t, err)
		require.True(t, unknown.IsFailure())

		wrongPassword, err := svc.IssueToken(context.Background(), &usecase.IssueTokenInput{
			Email:    "ada@example.com",
			Password: "wrong pass",
		})
		require.NoError(t, err)
		require.True(t, wrongPassword.IsFailure())

		assert.Equal(t, domainerrors.ErrInvalidCredentials, unknown.Err())
		assert.Equal(t, unknown.Err(), wrongPassword.Err())
	})

	t.Run("valid credentials issue a fresh token pair", func(t *testing.T) {
		svc, store := newTestService(t)
		registered := registerUser(t, svc, "ada@example.com")

		result, err := svc.IssueToken(context.Background(), &usecase.IssueTokenInput{
			Email:    "ada@example.com",
			Password: "correct horse",
		})
		require.NoError(t, err)
		require.True(t, result.IsSuccess())

		response := result.Value()
		assert.Equal(t, registered.UserID, response.UserID)
		assert.NotEqual(t, registered.RefreshToken, response.RefreshToken)

		// Registration token plus login token.
		assert.Len(t, store.tokensOf(t, response.UserID), 2)
	})

	t.Run("cancelled context is an infrastructure error", func(t *testing.T) {
		svc, _ := newTestService(t)
		registerUser(t, svc, "ada@example.com")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := svc.IssueToken(ctx, &usecase.IssueTokenInput{
			Email:    "ada@example.com",
			Password: "correct horse",
		})
		require.Error(t, err)
	})

	t.Run("concurrent logins all land", func(t *testing.T) {
		svc, store := newTestService(t)
		registered := registerUser(t, svc, "ada@example.com")

		const logins = 8
		var wg sync.WaitGroup
		errs := make([]error, logins)
		failed := make([]bool, logins)
		for i := range logins {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result, err := svc.IssueToken(context.Background(), &usecase.IssueTokenInput{
					Email:    "ada@example.com",
					Password: "correct horse",
				})
				errs[i] = err
				failed[i] = err == nil && result.IsFailure()
			}()
		}
		wg.Wait()

		for i := range logins {
			require.NoError(t, errs[i], "login %d", i)
			require.False(t, failed[i], "login %d", i)
		}

		// One from registration plus one per concurrent login; a lost update
		// would leave fewer.
		assert.Len(t, store.tokensOf(t, registered.UserID), logins+1)
	})
}

func TestRenewToken(t *testing.T) {
	t.Run("rotates the refresh token", func(t *testing.T) {
		svc, store := newTestService(t)
		registered := registerUser(t, svc, "ada@example.com")

		result, err := svc.RenewToken(context.Background(), &usecase.RenewTokenInput{
			AccessToken:  registered.AccessToken,
			RefreshToken: registered.RefreshToken,
		})
		require.NoError(t, err)
		require.True(t, result.IsSuccess())

		renewed := result.Value()
		assert.NotEqual(t, registered.RefreshToken, renewed.RefreshToken)

		// Consumed token replaced, not accumulated.
		assert.Len(t, store.tokensOf(t, registered.UserID), 1)
	})

	t.Run("a rotated-out token cannot be replayed", func(t *testing.T) {
		svc, _ := newTestService(t)
		registered := registerUser(t, svc, "ada@example.com")

		first, err := svc.RenewToken(context.Background(), &usecase.RenewTokenInput{
			AccessToken:  registered.AccessToken,
			RefreshToken: registered.RefreshToken,
		})
		require.NoError(t, err)
		require.True(t, first.IsSuccess())

		replay, err := svc.RenewToken(context.Background(), &usecase.RenewTokenInput{
			AccessToken:  first.Value().AccessToken,
			RefreshToken: registered.RefreshToken,
		})
		require.NoError(t, err)
		require.True(t, replay.IsFailure())
		assert.Equal(t, domainerrors.ErrInvalidRefreshToken, replay.Err())
	})

	t.Run("expired refresh token is rejected", func(t *testing.T) {
		svc, store := newTestService(t)
		registered := registerUser(t, svc, "ada@example.com")

		tokens := store.tokensOf(t, registered.UserID)
		require.Len(t, tokens, 1)
		store.expireToken(t, registered.UserID, tokens[0].TokenHash)

		result, err := svc.RenewToken(context.Background(), &usecase.RenewTokenInput{
			AccessToken:  registered.AccessToken,
			RefreshToken: registered.RefreshToken,
		})
		require.NoError(t, err)
		require.True(t, result.IsFailure())
		assert.Equal(t, domainerrors.ErrInvalidRefreshToken, result.Err())
	})

	t.Run("garbage access token is rejected", func(t *testing.T) {
		svc, _ := newTestService(t)
		registered := registerUser(t, svc, "ada@example.com")

		result, err := svc.RenewToken(context.Background(), &usecase.RenewTokenInput{
			AccessToken:  "not-a-jwt",
			RefreshToken: registered.RefreshToken,
		})
		require.NoError(t, err)
		require.True(t, result.IsFailure())
		assert.Equal(t, domainerrors.ErrInvalidAccessToken, result.Err())
	})
}

func TestRevokeToken(t *testing.T) {
	t.Run("removes the refresh token", func(t *testing.T) {
		svc, store := newTestService(t)
		registered := registerUser(t, svc, "ada@example.com")

		result, err := svc.RevokeToken(context.Background(), &usecase.RevokeTokenInput{
			AccessToken:  registered.AccessToken,
			RefreshToken: registered.RefreshToken,
		})
		require.NoError(t, err)
		require.True(t, result.IsSuccess())

		assert.Empty(t, store.tokensOf(t, registered.UserID))

		// A revoked token cannot be used to renew.
		renewed, err := svc.RenewToken(context.Background(), &usecase.RenewTokenInput{
			AccessToken:  registered.AccessToken,
			RefreshToken: registered.RefreshToken,
		})
		require.NoError(t, err)
		require.True(t, renewed.IsFailure())
	})

	t.Run("unknown refresh token is a domain failure", func(t *testing.T) {
		svc, _ := newTestService(t)
		registered := registerUser(t, svc, "ada@example.com")

		result, err := svc.RevokeToken(context.Background(), &usecase.RevokeTokenInput{
			AccessToken:  registered.AccessToken,
			RefreshToken: "never-issued",
		})
		require.NoError(t, err)
		require.True(t, result.IsFailure())
		assert.Equal(t, domainerrors.ErrInvalidRefreshToken, result.Err())
	})

	t.Run("invalid access token is rejected", func(t *testing.T) {
		svc, _ := newTestService(t)
		registered := registerUser(t, svc, "ada@example.com")

		result, err := svc.RevokeToken(context.Background(), &usecase.RevokeTokenInput{
			AccessToken:  "not-a-jwt",
			RefreshToken: registered.RefreshToken,
		})
		require.NoError(t, err)
		require.True(t, result.IsFailure())
		assert.Equal(t, domainerrors.ErrInvalidAccessToken, result.Err())
	})
}

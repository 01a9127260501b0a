// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"
	"time"

	"gatepass/config"
	deliverycontext "gatepass/internal/delivery/context"
	"gatepass/internal/domain/entity"
	domainerrors "gatepass/internal/domain/errors"
	"gatepass/internal/domain/outcome"
	"gatepass/internal/domain/repository"
	"gatepass/internal/domain/service"
	"gatepass/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"
	"go.uber.org/fx"
)

const (
	defaultRefreshTokenTTL  = 14 * 24 * time.Hour
	defaultAppendMaxRetries = 3
	versionRetryDelay       = 10 * time.Millisecond
)

// errRefreshTokenConsumed signals that the refresh token being rotated was
// already removed by a concurrent renewal. Surfaced to the caller as the
// invalid-refresh-token domain failure, not as an infrastructure error.
var errRefreshTokenConsumed = errors.New("refresh token already consumed")

// authService implements the AuthUsecase interface.
type authService struct {
	txManager  repository.TransactionManager
	userRepo   repository.UserRepository
	hasher     service.PasswordHasher
	tokens     service.TokenIssuer
	refreshTTL time.Duration
	maxRetries uint64
	logger     *slog.Logger
}

// AuthServiceParams holds dependencies for the auth service, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	UserRepo  repository.UserRepository
	Hasher    service.PasswordHasher
	Tokens    service.TokenIssuer
	Config    *config.Config
	Logger    *slog.Logger
}

// NewAuthService is the constructor for authService. It receives all
// dependencies as interfaces.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	refreshTTL := defaultRefreshTokenTTL
	maxRetries := uint64(defaultAppendMaxRetries)
	if params.Config != nil && params.Config.Auth != nil {
		if params.Config.Auth.RefreshTokenTTL > 0 {
			refreshTTL = params.Config.Auth.RefreshTokenTTL
		}
		if params.Config.Auth.AppendMaxRetries > 0 {
			maxRetries = params.Config.Auth.AppendMaxRetries
		}
	}

	return &authService{
		txManager:  params.TxManager,
		userRepo:   params.UserRepo,
		hasher:     params.Hasher,
		tokens:     params.Tokens,
		refreshTTL: refreshTTL,
		maxRetries: maxRetries,
		logger:     params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to
// the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Register creates a new account and issues its first token pair.
func (srv *authService) Register(ctx context.Context, input *usecase.RegisterInput) (outcome.Of[*usecase.AuthResponse], error) {
	srv.log(ctx).Debug("Starting registration", slog.String("email", input.Email))

	var failed outcome.Of[*usecase.AuthResponse]

	hashedPassword, err := srv.hasher.Hash(input.Password)
	if err != nil {
		return failed, errors.Wrap(err, "failed to hash password during registration")
	}

	if err := ctx.Err(); err != nil {
		return failed, errors.Wrap(err, "registration cancelled")
	}

	newUser := &entity.User{
		Email:        input.Email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PasswordHash: hashedPassword,
	}

	if err := srv.userRepo.Create(ctx, newUser); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			srv.log(ctx).Warn("Registration rejected", slog.String("email", input.Email))

			return outcome.Err[*usecase.AuthResponse](domainerrors.ErrDuplicateEmail), nil
		}

		return failed, errors.Wrap(err, "failed to create user during registration")
	}

	response, err := srv.issueTokenPair(ctx, newUser, "")
	if err != nil {
		return failed, errors.Wrap(err, "failed to issue tokens after registration")
	}

	srv.log(ctx).Debug("Registration completed", slog.Any("userID", newUser.ID))

	return outcome.Ok(response), nil
}

// IssueToken verifies the presented credentials and issues a token pair.
func (srv *authService) IssueToken(ctx context.Context, input *usecase.IssueTokenInput) (outcome.Of[*usecase.AuthResponse], error) {
	srv.log(ctx).Debug("Starting token issuance", slog.String("email", input.Email))

	var failed outcome.Of[*usecase.AuthResponse]

	user, err := srv.userRepo.FindByEmail(ctx, input.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		srv.log(ctx).Warn("Token issuance failed", slog.String("email", input.Email))

		return outcome.Err[*usecase.AuthResponse](domainerrors.ErrInvalidCredentials), nil
	}
	if err != nil {
		return failed, errors.Wrap(err, "failed to find user by email")
	}

	if err := ctx.Err(); err != nil {
		return failed, errors.Wrap(err, "token issuance cancelled")
	}

	// Password check runs outside any transaction (bcrypt is CPU-bound).
	// The failure is the same value as for an unknown email so a caller
	// cannot tell the two apart.
	if !srv.hasher.Check(input.Password, user.PasswordHash) {
		srv.log(ctx).Warn("Token issuance failed", slog.String("email", input.Email))

		return outcome.Err[*usecase.AuthResponse](domainerrors.ErrInvalidCredentials), nil
	}

	response, err := srv.issueTokenPair(ctx, user, "")
	if err != nil {
		return failed, errors.Wrap(err, "failed to issue tokens during login")
	}

	srv.log(ctx).Debug("Token issued", slog.Any("userID", user.ID))

	return outcome.Ok(response), nil
}

// RenewToken exchanges an unexpired refresh token for a new token pair,
// invalidating the consumed token.
func (srv *authService) RenewToken(ctx context.Context, input *usecase.RenewTokenInput) (outcome.Of[*usecase.AuthResponse], error) {
	srv.log(ctx).Debug("Starting token renewal")

	var failed outcome.Of[*usecase.AuthResponse]

	// The access token identifies the session owner. It may be expired; the
	// signature still has to verify.
	claims, err := srv.tokens.ParseAccessToken(input.AccessToken, true)
	if err != nil {
		srv.log(ctx).Warn("Token renewal with invalid access token", slog.Any("error", err))

		return outcome.Err[*usecase.AuthResponse](domainerrors.ErrInvalidAccessToken), nil
	}

	user, err := srv.userRepo.FindByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return outcome.Err[*usecase.AuthResponse](domainerrors.ErrInvalidAccessToken), nil
	}
	if err != nil {
		return failed, errors.Wrap(err, "failed to find user for token renewal")
	}

	tokenHash := srv.tokens.HashToken(input.RefreshToken)

	token, found := user.FindRefreshToken(tokenHash)
	if !found || token.ExpiredAt(time.Now()) {
		srv.log(ctx).Warn("Token renewal rejected", slog.Any("userID", user.ID))

		return outcome.Err[*usecase.AuthResponse](domainerrors.ErrInvalidRefreshToken), nil
	}

	response, err := srv.issueTokenPair(ctx, user, tokenHash)
	if errors.Is(err, errRefreshTokenConsumed) {
		// A concurrent renewal won the rotation race; presenting the token
		// again is indistinguishable from reuse.
		return outcome.Err[*usecase.AuthResponse](domainerrors.ErrInvalidRefreshToken), nil
	}
	if err != nil {
		return failed, errors.Wrap(err, "failed to issue tokens during renewal")
	}

	srv.log(ctx).Debug("Token renewed", slog.Any("userID", user.ID))

	return outcome.Ok(response), nil
}

// RevokeToken removes the named refresh token from the user's collection.
func (srv *authService) RevokeToken(ctx context.Context, input *usecase.RevokeTokenInput) (outcome.Outcome, error) {
	srv.log(ctx).Debug("Starting token revocation")

	// Revocation requires a currently valid access token.
	claims, err := srv.tokens.ParseAccessToken(input.AccessToken, false)
	if err != nil {
		srv.log(ctx).Warn("Token revocation with invalid access token", slog.Any("error", err))

		return outcome.Failure(domainerrors.ErrInvalidAccessToken), nil
	}

	tokenHash := srv.tokens.HashToken(input.RefreshToken)
	now := time.Now()

	err = srv.mutateUser(ctx, claims.UserID, func(user *entity.User) error {
		token, found := user.FindRefreshToken(tokenHash)
		if !found || token.ExpiredAt(now) {
			return errRefreshTokenConsumed
		}
		user.RemoveRefreshToken(tokenHash)

		return nil
	})
	if errors.Is(err, errRefreshTokenConsumed) || errors.Is(err, repository.ErrUserNotFound) {
		return outcome.Failure(domainerrors.ErrInvalidRefreshToken), nil
	}
	if err != nil {
		return outcome.Outcome{}, errors.Wrap(err, "failed to revoke refresh token")
	}

	srv.log(ctx).Debug("Token revoked", slog.Any("userID", claims.UserID))

	return outcome.Success(), nil
}

// issueTokenPair mints an access token and a fresh refresh token for the
// user and persists the refresh token in the user's collection. When
// consumedHash is non-empty the entry it names is removed in the same write
// (rotation).
func (srv *authService) issueTokenPair(ctx context.Context, user *entity.User, consumedHash string) (*usecase.AuthResponse, error) {
	accessToken, expiresIn, err := srv.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate access token")
	}

	refreshValue, err := srv.tokens.NewRefreshToken()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate refresh token")
	}

	now := time.Now()
	entry := entity.RefreshToken{
		TokenHash: srv.tokens.HashToken(refreshValue),
		ExpiresOn: now.Add(srv.refreshTTL),
		CreatedAt: now,
	}

	err = srv.mutateUser(ctx, user.ID, func(stored *entity.User) error {
		if consumedHash != "" && !stored.RemoveRefreshToken(consumedHash) {
			return errRefreshTokenConsumed
		}
		stored.AppendRefreshToken(entry)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &usecase.AuthResponse{
		UserID:                user.ID,
		Email:                 user.Email,
		FirstName:             user.FirstName,
		LastName:              user.LastName,
		AccessToken:           accessToken,
		AccessTokenExpiresIn:  int64(expiresIn.Seconds()),
		RefreshToken:          refreshValue,
		RefreshTokenExpiresOn: entry.ExpiresOn,
	}, nil
}

// mutateUser runs a read-modify-write of the user record inside a
// transaction, retrying on optimistic-version conflicts. Two concurrent
// logins for the same user both land: the loser of the version race simply
// reloads and appends again. Cancellation is honored between attempts but
// not once a write has been handed to the store.
func (srv *authService) mutateUser(ctx context.Context, userID uuid.UUID, mutate func(user *entity.User) error) error {
	backoff := retry.WithMaxRetries(srv.maxRetries, retry.NewConstant(versionRetryDelay))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "user update cancelled")
		}

		txErr := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
			userRepo := repoFactory.UserRepo()

			user, err := userRepo.FindByID(ctx, userID)
			if err != nil {
				return errors.Wrap(err, "failed to reload user for update")
			}

			if err := mutate(user); err != nil {
				return err
			}

			return userRepo.Update(ctx, user)
		})
		if errors.Is(txErr, repository.ErrVersionConflict) {
			srv.log(ctx).Debug("User version conflict, retrying", slog.Any("userID", userID))

			return retry.RetryableError(txErr)
		}

		return txErr
	})
}

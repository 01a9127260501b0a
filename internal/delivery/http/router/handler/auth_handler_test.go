package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gatepass/internal/delivery/http/response"
	"gatepass/internal/delivery/http/validator"
	domainerrors "gatepass/internal/domain/errors"
	"gatepass/internal/domain/outcome"
	"gatepass/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubUsecase returns canned outcomes so handler tests can exercise the
// outcome-to-HTTP mapping without a real service.
type stubUsecase struct {
	tokenResult outcome.Of[*usecase.AuthResponse]
	plainResult outcome.Outcome
	err         error
}

func (s *stubUsecase) Register(context.Context, *usecase.RegisterInput) (outcome.Of[*usecase.AuthResponse], error) {
	return s.tokenResult, s.err
}

func (s *stubUsecase) IssueToken(context.Context, *usecase.IssueTokenInput) (outcome.Of[*usecase.AuthResponse], error) {
	return s.tokenResult, s.err
}

func (s *stubUsecase) RenewToken(context.Context, *usecase.RenewTokenInput) (outcome.Of[*usecase.AuthResponse], error) {
	return s.tokenResult, s.err
}

func (s *stubUsecase) RevokeToken(context.Context, *usecase.RevokeTokenInput) (outcome.Outcome, error) {
	return s.plainResult, s.err
}

func invoke(t *testing.T, uc usecase.AuthUsecase, handle func(h *AuthHandler) echo.HandlerFunc, body string) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()

	e := echo.New()
	e.Validator = validator.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewAuthHandler(uc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := handle(h)(c)
	if err != nil {
		e.HTTPErrorHandler(err, c)
	}

	var envelope response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))

	return rec, envelope
}

func TestLoginHandler(t *testing.T) {
	loginBody := `{"email":"ada@example.com","password":"correct horse"}`

	t.Run("domain failure maps to registered status and code", func(t *testing.T) {
		uc := &stubUsecase{
			tokenResult: outcome.Err[*usecase.AuthResponse](domainerrors.ErrInvalidCredentials),
		}

		rec, envelope := invoke(t, uc, func(h *AuthHandler) echo.HandlerFunc { return h.Login }, loginBody)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, envelope.Success)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "User.InvalidCredentials", envelope.Error.Code)
	})

	t.Run("success wraps the token pair", func(t *testing.T) {
		uc := &stubUsecase{
			tokenResult: outcome.Ok(&usecase.AuthResponse{Email: "ada@example.com", AccessToken: "token"}),
		}

		rec, envelope := invoke(t, uc, func(h *AuthHandler) echo.HandlerFunc { return h.Login }, loginBody)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, envelope.Success)
		assert.Nil(t, envelope.Error)
	})

	t.Run("missing fields fail validation", func(t *testing.T) {
		uc := &stubUsecase{}

		rec, envelope := invoke(t, uc, func(h *AuthHandler) echo.HandlerFunc { return h.Login }, `{"email":"ada@example.com"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, envelope.Success)
	})
}

func TestRevokeHandler(t *testing.T) {
	revokeBody := `{"accessToken":"token","refreshToken":"value"}`

	t.Run("domain failure maps to 401", func(t *testing.T) {
		uc := &stubUsecase{
			plainResult: outcome.Failure(domainerrors.ErrInvalidRefreshToken),
		}

		rec, envelope := invoke(t, uc, func(h *AuthHandler) echo.HandlerFunc { return h.Revoke }, revokeBody)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "User.InvalidRefreshToken", envelope.Error.Code)
	})

	t.Run("success responds 200", func(t *testing.T) {
		uc := &stubUsecase{plainResult: outcome.Success()}

		rec, envelope := invoke(t, uc, func(h *AuthHandler) echo.HandlerFunc { return h.Revoke }, revokeBody)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, envelope.Success)
	})
}

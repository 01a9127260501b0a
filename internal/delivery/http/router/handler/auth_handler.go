// Package handler contains the HTTP handlers for the application.
package handler

import (
	"log/slog"
	"net/http"

	"gatepass/internal/delivery/http/response"
	"gatepass/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// AuthHandler holds dependencies for authentication handlers.
type AuthHandler struct {
	uc     usecase.AuthUsecase
	logger *slog.Logger
}

// NewAuthHandler is the constructor for AuthHandler, injected by Fx.
func NewAuthHandler(uc usecase.AuthUsecase, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		uc:     uc,
		logger: logger,
	}
}

// Register handles account creation. A successful registration responds with
// a full token pair, the same shape login returns.
func (h *AuthHandler) Register(c echo.Context) error {
	var input *usecase.RegisterInput
	if err := c.Bind(&input); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid registration input")
	}
	if err := c.Validate(input); err != nil {
		return err
	}

	result, err := h.uc.Register(c.Request().Context(), input)
	if err != nil {
		// Infrastructure failure: let echo's error handler answer 500.
		return errors.WithStack(err)
	}
	if result.IsFailure() {
		return response.DomainFailure(c, result.Err())
	}

	return response.Success(c, http.StatusCreated, result.Value(), "User registered successfully")
}

// Login handles credential verification and token issuance.
func (h *AuthHandler) Login(c echo.Context) error {
	var input *usecase.IssueTokenInput
	if err := c.Bind(&input); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid login input")
	}
	if err := c.Validate(input); err != nil {
		return err
	}

	result, err := h.uc.IssueToken(c.Request().Context(), input)
	if err != nil {
		return errors.WithStack(err)
	}
	if result.IsFailure() {
		return response.DomainFailure(c, result.Err())
	}

	return response.Success(c, http.StatusOK, result.Value(), "Login successful")
}

// Refresh handles refresh-token rotation.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var input *usecase.RenewTokenInput
	if err := c.Bind(&input); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid refresh input")
	}
	if err := c.Validate(input); err != nil {
		return err
	}

	result, err := h.uc.RenewToken(c.Request().Context(), input)
	if err != nil {
		return errors.WithStack(err)
	}
	if result.IsFailure() {
		return response.DomainFailure(c, result.Err())
	}

	return response.Success(c, http.StatusOK, result.Value(), "Token refreshed successfully")
}

// Revoke handles refresh-token revocation (logout of one session).
func (h *AuthHandler) Revoke(c echo.Context) error {
	var input *usecase.RevokeTokenInput
	if err := c.Bind(&input); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid revoke input")
	}
	if err := c.Validate(input); err != nil {
		return err
	}

	result, err := h.uc.RevokeToken(c.Request().Context(), input)
	if err != nil {
		return errors.WithStack(err)
	}
	if result.IsFailure() {
		return response.DomainFailure(c, result.Err())
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Refresh token revoked"}, "Revoke successful")
}

// HealthCheck is a simple handler to check if the service is up.
func HealthCheck(c echo.Context) error {
	return response.Success(c, http.StatusOK, map[string]string{"status": "ok"}, "Service is healthy")
}

package services

import (
	"errors"
	"net/http"

	"github.com/charlesng35/taskpad/internal/auth"
	"github.com/charlesng35/taskpad/internal/store"
	apperrors "github.com/charlesng35/taskpad/pkg/errors"
)

// Account lifecycle failures. Each carries a stable code for API clients.
var (
	ErrDuplicateAccount     = apperrors.New("ACCOUNT_EXISTS", "An account with this email already exists", http.StatusConflict)
	ErrUnknownAccount       = apperrors.New("ACCOUNT_NOT_FOUND", "Account not found", http.StatusNotFound)
	ErrInvalidCredentials   = apperrors.ErrInvalidCredentials
	ErrNotVerified          = apperrors.New("ACCOUNT_NOT_VERIFIED", "Please verify your email before logging in", http.StatusForbidden)
	ErrAlreadyVerified      = apperrors.New("ACCOUNT_ALREADY_VERIFIED", "This email is already verified", http.StatusConflict)
	ErrInvalidOrExpiredCode = apperrors.New("INVALID_OR_EXPIRED_CODE", "The code is invalid or has expired", http.StatusBadRequest)
	ErrEmailDeliveryFailed  = apperrors.New("EMAIL_DELIVERY_FAILED", "We could not send the email, please try again", http.StatusBadGateway)
	ErrTaskNotFound         = apperrors.New("TASK_NOT_FOUND", "Task not found", http.StatusNotFound)
)

// internalError hides a storage or hashing cause behind the generic 500.
func internalError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.ErrInternalServer.WithInternal(err)
}

// tokenError maps token validation failures onto their client-facing kinds.
func tokenError(err error) error {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return apperrors.ErrTokenExpired.WithInternal(err)
	case errors.Is(err, auth.ErrTokenInvalid):
		return apperrors.ErrTokenInvalid.WithInternal(err)
	default:
		return internalError(err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

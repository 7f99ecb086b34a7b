package sessionerrors

import (
	"errors"
	"net/http"

	"izin-talep/internal/shared/apperror"
)

var (
	ErrInvalidUser = apperror.New(
		apperror.CodeInvalidInput,
		"user id, name and a valid role are required",
		http.StatusBadRequest,
	)
	ErrInvalidSessionID = apperror.New(
		apperror.CodeInvalidInput,
		"session id is required",
		http.StatusBadRequest,
	)
	ErrNoSession = apperror.New(
		apperror.CodeUnauthorized,
		"no active session",
		http.StatusUnauthorized,
	)
	ErrInvalidToken = apperror.New(
		apperror.CodeUnauthorized,
		"invalid session token",
		http.StatusUnauthorized,
	)
	ErrTokenExpired = apperror.New(
		apperror.CodeUnauthorized,
		"session token expired",
		http.StatusUnauthorized,
	)
	ErrTokenGenerationFailed = apperror.New(
		apperror.CodeInternalError,
		"could not issue session token",
		http.StatusInternalServerError,
	)
)

// ErrCorruptData is returned by repositories when a stored user cannot be decoded.
var ErrCorruptData = errors.New("session: corrupt persisted user")

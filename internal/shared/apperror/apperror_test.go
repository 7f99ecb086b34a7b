package apperror_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"izin-talep/internal/shared/apperror"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestToHTTP(t *testing.T) {
	t.Run("app error keeps its status and code", func(t *testing.T) {
		got := apperror.ToHTTP(fmt.Errorf("wrapped: %w", apperror.ErrForbidden))
		assert.Equal(t, http.StatusForbidden, got.Status)
		assert.Equal(t, apperror.CodeForbidden, got.Code)
		assert.Equal(t, apperror.ErrForbidden.Message, got.Message)
	})

	t.Run("unknown error becomes internal", func(t *testing.T) {
		got := apperror.ToHTTP(errors.New("boom"))
		assert.Equal(t, http.StatusInternalServerError, got.Status)
		assert.Equal(t, apperror.CodeInternalError, got.Code)
		assert.Equal(t, "Internal server error", got.Message)
	})
}

func TestPersistence(t *testing.T) {
	cause := errors.New("connection refused")
	err := apperror.Persistence(cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, apperror.ErrStorageUnavailable)
	assert.True(t, apperror.HasCode(err, apperror.CodeServiceUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, apperror.ToHTTP(err).Status)
}

func TestMapValidationError(t *testing.T) {
	apperror.Init()
	v := validator.New()

	type payload struct {
		StartDate string `json:"start_date" validate:"required"`
		Kind      string `json:"kind" validate:"omitempty,oneof=ANNUAL SICK"`
		Email     string `json:"email" validate:"omitempty,email"`
	}

	t.Run("required", func(t *testing.T) {
		err := apperror.MapValidationError(v.Struct(payload{}))
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
		assert.Contains(t, err.Error(), "is required")
	})

	t.Run("oneof", func(t *testing.T) {
		err := apperror.MapValidationError(v.Struct(payload{StartDate: "2024-01-01", Kind: "X"}))
		assert.Equal(t, "Kind must be one of ANNUAL, SICK", err.Error())
	})

	t.Run("invalid", func(t *testing.T) {
		err := apperror.MapValidationError(v.Struct(payload{StartDate: "2024-01-01", Email: "nope"}))
		assert.Equal(t, "Email is invalid", err.Error())
	})

	t.Run("non validation error", func(t *testing.T) {
		err := apperror.MapValidationError(errors.New("EOF"))
		assert.Equal(t, "Invalid input", err.Error())
	})
}

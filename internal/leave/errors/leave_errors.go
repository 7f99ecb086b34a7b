package leaveerrors

import (
	"errors"
	"net/http"

	"izin-talep/internal/shared/apperror"
)

var (
	ErrInvalidEmployeeID = apperror.New(
		apperror.CodeInvalidInput,
		"employee id is required",
		http.StatusBadRequest,
	)
	ErrInvalidKind = apperror.New(
		apperror.CodeInvalidInput,
		"kind must be one of ANNUAL, SICK, UNPAID, OTHER",
		http.StatusBadRequest,
	)
	ErrInvalidDateFormat = apperror.New(
		apperror.CodeInvalidInput,
		"invalid date format, expected YYYY-MM-DD",
		http.StatusBadRequest,
	)
	ErrInvalidDateRange = apperror.New(
		apperror.CodeInvalidInput,
		"start_date must be before or equal end_date",
		http.StatusBadRequest,
	)
	ErrLeaveNotFound = apperror.New(
		apperror.CodeNotFound,
		"leave request not found",
		http.StatusNotFound,
	)
	ErrInvalidStatusTransition = apperror.New(
		apperror.CodeInvalidState,
		"leave request is no longer pending",
		http.StatusConflict,
	)
	ErrNotOwner = apperror.New(
		apperror.CodeForbidden,
		"only the employee who submitted the leave request can do this",
		http.StatusForbidden,
	)
)

// ErrCorruptData is returned by repositories when stored records cannot be decoded.
var ErrCorruptData = errors.New("leave: corrupt persisted data")

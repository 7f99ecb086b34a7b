package guarderrors

import (
	"net/http"

	"izin-talep/internal/shared/apperror"
)

var ErrInvalidPath = apperror.New(
	apperror.CodeInvalidInput,
	"path must start with /",
	http.StatusBadRequest,
)

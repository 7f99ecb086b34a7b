package guard

import (
	"net/http"
	"strings"

	"izin-talep/internal/domain"
	guarderrors "izin-talep/internal/guard/errors"
	"izin-talep/internal/middleware"
	"izin-talep/internal/shared/apperror"
	"izin-talep/internal/shared/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger ...*zap.Logger) *Handler {
	l := zap.L().Named("guard.handler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("guard.handler")
	}
	return &Handler{service: service, logger: l}
}

// Authorize answers for the signed-in caller. Anonymous callers may name a
// role explicitly; without one they get the login redirect.
func (h *Handler) Authorize(c *gin.Context) {
	var req AuthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("http authorize validation failed", zap.Error(err))
		response.Error(c, http.StatusBadRequest, apperror.CodeValidation, "Invalid input", apperror.MapValidationError(err).Error())
		return
	}
	if !strings.HasPrefix(req.Path, "/") {
		httpErr := apperror.ToHTTP(guarderrors.ErrInvalidPath)
		response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
		return
	}

	var role domain.Role
	if p, ok := middleware.PrincipalFrom(c); ok {
		role = p.Role
	} else if req.Role != "" {
		role, _ = domain.ParseRole(req.Role)
	}

	response.Success(c, http.StatusOK, h.service.Authorize(req.Path, role), nil)
}

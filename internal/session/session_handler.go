package session

import (
	"net/http"
	"os"

	"izin-talep/internal/middleware"
	"izin-talep/internal/shared/apperror"
	"izin-talep/internal/shared/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const accessTokenCookie = "access_token"

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger ...*zap.Logger) *Handler {
	l := zap.L().Named("session.handler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("session.handler")
	}
	return &Handler{service: service, logger: l}
}

func (h *Handler) writeServiceError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	h.logger.Warn("session request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", httpErr.Status),
		zap.String("code", httpErr.Code),
		zap.String("message", httpErr.Message),
	)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("http login validation failed", zap.Error(err))
		response.Error(c, http.StatusBadRequest, apperror.CodeValidation, "Invalid input", apperror.MapValidationError(err).Error())
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessTokenCookie, resp.AccessToken, 0, "/", "", secureCookies(), true)

	response.Success(c, http.StatusCreated, resp, nil)
}

func (h *Handler) Me(c *gin.Context) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		h.writeServiceError(c, apperror.ErrUnauthorized)
		return
	}

	u, err := h.service.CurrentUser(c.Request.Context(), p.SessionID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if u == nil {
		h.writeServiceError(c, apperror.ErrUnauthorized)
		return
	}

	response.Success(c, http.StatusOK, mapToUserResponse(*u), nil)
}

func (h *Handler) Logout(c *gin.Context) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		h.writeServiceError(c, apperror.ErrUnauthorized)
		return
	}

	if err := h.service.Logout(c.Request.Context(), p.SessionID); err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessTokenCookie, "", -1, "/", "", secureCookies(), true)

	response.Success(c, http.StatusOK, gin.H{"message": "logged out"}, nil)
}

func secureCookies() bool {
	return os.Getenv("APP_ENV") == "production"
}

package leave

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"izin-talep/internal/domain"
	leaveerrors "izin-talep/internal/leave/errors"
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
	l := zap.L().Named("leave.handler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leave.handler")
	}
	return &Handler{service: service, logger: l}
}

func (h *Handler) writeServiceError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	h.logger.Warn("leave request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", httpErr.Status),
		zap.String("code", httpErr.Code),
		zap.String("message", httpErr.Message),
	)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

func (h *Handler) writeValidationError(c *gin.Context, err error) {
	h.logger.Warn("http leave validation failed", zap.Error(err))
	response.Error(c, http.StatusBadRequest, apperror.CodeValidation, "Invalid input", apperror.MapValidationError(err).Error())
}

func (h *Handler) principal(c *gin.Context) (domain.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		h.writeServiceError(c, apperror.ErrUnauthorized)
	}
	return p, ok
}

func (h *Handler) Create(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}

	var req CreateLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeValidationError(c, err)
		return
	}
	req.EmployeeID = p.UserID
	req.EmployeeName = p.Name

	resp, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, resp, nil)
}

func (h *Handler) Approve(c *gin.Context) {
	note, ok := h.bindDecision(c)
	if !ok {
		return
	}

	resp, err := h.service.Approve(c.Request.Context(), c.Param("id"), note)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) Reject(c *gin.Context) {
	note, ok := h.bindDecision(c)
	if !ok {
		return
	}

	resp, err := h.service.Reject(c.Request.Context(), c.Param("id"), note)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

// bindDecision reads the optional note. An empty body is accepted.
func (h *Handler) bindDecision(c *gin.Context) (string, bool) {
	var req DecisionRequest
	if c.Request.ContentLength == 0 {
		return "", true
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeValidationError(c, err)
		return "", false
	}
	return req.Note, true
}

func (h *Handler) Cancel(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}

	resp, err := h.service.Cancel(c.Request.Context(), c.Param("id"), p.UserID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) GetByID(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}

	resp, err := h.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if p.Role != domain.RoleManager && resp.EmployeeID != p.UserID {
		h.writeServiceError(c, leaveerrors.ErrNotOwner)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

// GetAll lists in insertion order. Managers may filter by employee_id;
// employees always see their own records.
func (h *Handler) GetAll(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var (
		resp []LeaveResponse
		err  error
	)
	employeeID := strings.TrimSpace(c.Query("employee_id"))
	switch {
	case p.Role != domain.RoleManager:
		resp, err = h.service.ListByEmployee(ctx, p.UserID)
	case employeeID != "":
		resp, err = h.service.ListByEmployee(ctx, employeeID)
	default:
		resp, err = h.service.ListAll(ctx)
	}
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	if status := strings.ToUpper(strings.TrimSpace(c.Query("status"))); status != "" {
		filtered := make([]LeaveResponse, 0, len(resp))
		for _, l := range resp {
			if l.Status == status {
				filtered = append(filtered, l)
			}
		}
		resp = filtered
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	start, end := response.Paginate(len(resp), page, pageSize)
	meta := response.NewPaginationMeta(int64(len(resp)), page, pageSize)
	response.Success(c, http.StatusOK, resp[start:end], &meta)
}

func (h *Handler) Reload(c *gin.Context) {
	if err := h.service.Reload(c.Request.Context()); err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "leave requests reloaded"}, nil)
}

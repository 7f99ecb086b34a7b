package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"izin-talep/internal/domain"
	"izin-talep/internal/middleware"
	"izin-talep/internal/shared/apperror"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiEnvelope struct {
	Ok    bool      `json:"ok"`
	Error *apiError `json:"error"`
}

func decodeEnvelope(t *testing.T, body []byte) apiEnvelope {
	t.Helper()
	var env apiEnvelope
	assert.NoError(t, json.Unmarshal(body, &env))
	return env
}

type fakeResolver struct {
	resolveFn func(ctx context.Context, token string) (domain.Principal, error)
}

func (f *fakeResolver) ResolveToken(ctx context.Context, token string) (domain.Principal, error) {
	return f.resolveFn(ctx, token)
}

type fakeChecker struct {
	canFn func(role domain.Role, resource, action string) (bool, error)
}

func (f *fakeChecker) Can(role domain.Role, resource, action string) (bool, error) {
	return f.canFn(role, resource, action)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAuthMiddleware(t *testing.T) {
	employee := domain.Principal{SessionID: "s-1", UserID: "u-1", Name: "Ayse", Role: domain.RoleEmployee}
	resolver := &fakeResolver{
		resolveFn: func(ctx context.Context, token string) (domain.Principal, error) {
			if token == "good" {
				return employee, nil
			}
			return domain.Principal{}, apperror.ErrUnauthorized
		},
	}

	newRouter := func(mw gin.HandlerFunc) *gin.Engine {
		r := gin.New()
		r.GET("/me", mw, func(c *gin.Context) {
			p, ok := middleware.PrincipalFrom(c)
			if !ok {
				c.String(http.StatusOK, "anonymous")
				return
			}
			c.String(http.StatusOK, p.UserID+":"+c.GetString("role"))
		})
		return r
	}

	t.Run("success bearer token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer good")
		newRouter(middleware.AuthMiddleware(resolver)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "u-1:EMPLOYEE", w.Body.String())
	})

	t.Run("success cookie token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: "good"})
		newRouter(middleware.AuthMiddleware(resolver)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("negative missing token", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(middleware.AuthMiddleware(resolver)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.False(t, env.Ok)
		assert.Equal(t, apperror.CodeUnauthorized, env.Error.Code)
	})

	t.Run("negative invalid token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer bad")
		newRouter(middleware.AuthMiddleware(resolver)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("optional auth lets anonymous through", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer bad")
		newRouter(middleware.OptionalAuth(resolver)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "anonymous", w.Body.String())
	})
}

func TestAuthorize(t *testing.T) {
	checker := &fakeChecker{
		canFn: func(role domain.Role, resource, action string) (bool, error) {
			return role == domain.RoleManager && resource == "leave" && action == "approve", nil
		},
	}

	run := func(p *domain.Principal) *httptest.ResponseRecorder {
		r := gin.New()
		r.PATCH("/requests/:id/approve", func(c *gin.Context) {
			if p != nil {
				middleware.SetPrincipal(c, *p)
			}
			c.Next()
		}, middleware.Authorize(checker, "leave", "approve"), func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/requests/1/approve", nil))
		return w
	}

	t.Run("success manager", func(t *testing.T) {
		w := run(&domain.Principal{UserID: "m-1", Role: domain.RoleManager})
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("negative employee forbidden", func(t *testing.T) {
		w := run(&domain.Principal{UserID: "e-1", Role: domain.RoleEmployee})
		assert.Equal(t, http.StatusForbidden, w.Code)
		env := decodeEnvelope(t, w.Body.Bytes())
		assert.Equal(t, apperror.CodeForbidden, env.Error.Code)
	})

	t.Run("negative no principal", func(t *testing.T) {
		w := run(nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRateLimitByIP(t *testing.T) {
	r := gin.New()
	r.POST("/session", middleware.RateLimitByIP(0.001, 1), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/session", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/session", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, apperror.CodeTooMany, decodeEnvelope(t, w.Body.Bytes()).Error.Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.GET("/ping", middleware.RequestID(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	t.Run("propagates caller id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(middleware.RequestIDHeader, "rid-42")
		r.ServeHTTP(w, req)

		assert.Equal(t, "rid-42", w.Body.String())
		assert.Equal(t, "rid-42", w.Header().Get(middleware.RequestIDHeader))
	})

	t.Run("replaces unusable id", func(t *testing.T) {
		for _, rid := range []string{"", "has space", strings.Repeat("x", 65)} {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			req.Header.Set(middleware.RequestIDHeader, rid)
			r.ServeHTTP(w, req)

			_, err := uuid.Parse(w.Body.String())
			assert.NoError(t, err, rid)
		}
	})
}

func TestIdempotency(t *testing.T) {
	const route = "/requests"
	cacheKey := middleware.IdempotencyCacheKey(route, "", "key-1")
	lockKey := cacheKey + ":lock"

	newRouter := func(calls *int, db gin.HandlerFunc) *gin.Engine {
		r := gin.New()
		r.POST(route, db, func(c *gin.Context) {
			*calls++
			c.String(http.StatusCreated, "created")
		})
		return r
	}
	post := func(r *gin.Engine) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, route, nil)
		req.Header.Set(middleware.IdempotencyHeader, "key-1")
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("first request is stored", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		mock.ExpectGet(cacheKey).RedisNil()
		mock.ExpectSetNX(lockKey, "locked", 30*time.Second).SetVal(true)
		mock.ExpectSet(cacheKey, `{"status":201,"content_type":"text/plain; charset=utf-8","body":"created"}`, 24*time.Hour).SetVal("OK")
		mock.ExpectDel(lockKey).SetVal(1)

		calls := 0
		w := post(newRouter(&calls, middleware.Idempotency(rdb)))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, 1, calls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("repeat is replayed", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		mock.ExpectGet(cacheKey).SetVal(`{"status":201,"content_type":"text/plain; charset=utf-8","body":"created"}`)

		calls := 0
		w := post(newRouter(&calls, middleware.Idempotency(rdb)))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "created", w.Body.String())
		assert.Equal(t, "true", w.Header().Get("X-Idempotent-Replay"))
		assert.Equal(t, 0, calls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("negative concurrent duplicate", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		mock.ExpectGet(cacheKey).RedisNil()
		mock.ExpectSetNX(lockKey, "locked", 30*time.Second).SetVal(false)

		calls := 0
		w := post(newRouter(&calls, middleware.Idempotency(rdb)))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, 0, calls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil client passes through", func(t *testing.T) {
		calls := 0
		w := post(newRouter(&calls, middleware.Idempotency(nil)))
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, 1, calls)
	})
}

package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"izin-talep/internal/domain"
	"izin-talep/internal/metrics"
	sessionerrors "izin-talep/internal/session/errors"
	"izin-talep/internal/shared/apperror"
	"izin-talep/internal/shared/connection"
	"izin-talep/internal/shared/contextutil"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"
)

type Service interface {
	Login(ctx context.Context, req LoginRequest) (LoginResponse, error)
	SetCurrentUser(ctx context.Context, sessionID string, user User) error
	CurrentUser(ctx context.Context, sessionID string) (*User, error)
	LoadFromStorage(ctx context.Context, sessionID string) (*User, error)
	Logout(ctx context.Context, sessionID string) error
	ResolveToken(ctx context.Context, token string) (domain.Principal, error)
}

type ServiceConfig struct {
	Timeout      time.Duration
	Retries      int
	Metrics      *metrics.Metrics
	NewSessionID func() string
}

const retryBackoff = 200 * time.Millisecond

type service struct {
	repo   Repository
	tokens *TokenManager
	cfg    ServiceConfig
	logger *zap.Logger
	group  singleflight.Group

	mu      sync.RWMutex
	users   map[string]User
	loading map[string]*pendingLoad
}

// pendingLoad marks a storage read in flight. A write or logout for the
// same session during the read makes its result stale.
type pendingLoad struct {
	stale bool
}

func NewService(repo Repository, tokens *TokenManager, cfg ServiceConfig, logger ...*zap.Logger) Service {
	l := zap.L().Named("session.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("session.service")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.NewSessionID == nil {
		cfg.NewSessionID = uuid.NewString
	}
	return &service{
		repo:   repo,
		tokens: tokens,
		cfg:    cfg,
		logger: l,
		users:   make(map[string]User),
		loading: make(map[string]*pendingLoad),
	}
}

func (s *service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return LoginResponse{}, sessionerrors.ErrInvalidUser
	}

	user := User{
		ID:    strings.TrimSpace(req.ID),
		Name:  strings.TrimSpace(req.Name),
		Role:  role,
		Email: strings.TrimSpace(req.Email),
	}
	if req.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return LoginResponse{}, err
		}
		user.PasswordHash = string(hashed)
	}

	sessionID := s.cfg.NewSessionID()
	if err := s.SetCurrentUser(ctx, sessionID, user); err != nil {
		return LoginResponse{}, err
	}

	token, expiresAt, err := s.tokens.Issue(sessionID, user)
	if err != nil {
		s.logger.Error("issue session token failed", zap.String("session_id", sessionID), zap.Error(err))
		return LoginResponse{}, err
	}

	return LoginResponse{
		User:        mapToUserResponse(user),
		SessionID:   sessionID,
		AccessToken: token,
		ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

// SetCurrentUser persists user for the session and then keeps it in memory.
func (s *service) SetCurrentUser(ctx context.Context, sessionID string, user User) error {
	log := contextutil.GetLogger(ctx, s.logger)
	if sessionID == "" {
		return sessionerrors.ErrInvalidSessionID
	}
	if err := user.Validate(); err != nil {
		log.Warn("set current user validation failed", zap.Error(err))
		return sessionerrors.ErrInvalidUser
	}

	if err := s.withStorage(ctx, "save_user", func(ctx context.Context) error {
		return s.repo.SaveUser(ctx, sessionID, user)
	}); err != nil {
		return err
	}

	s.mu.Lock()
	s.users[sessionID] = user
	s.markStale(sessionID)
	s.mu.Unlock()

	log.Info("session user set",
		zap.String("session_id", sessionID),
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)
	return nil
}

// CurrentUser returns nil when the session has no user.
func (s *service) CurrentUser(ctx context.Context, sessionID string) (*User, error) {
	s.mu.RLock()
	u, ok := s.users[sessionID]
	s.mu.RUnlock()
	if ok {
		return &u, nil
	}
	return s.LoadFromStorage(ctx, sessionID)
}

// LoadFromStorage hydrates the session from storage. A corrupt entry is
// cleared and reported as no user.
func (s *service) LoadFromStorage(ctx context.Context, sessionID string) (*User, error) {
	if sessionID == "" {
		return nil, nil
	}

	v, err, _ := s.group.Do(sessionID, func() (any, error) {
		pending := s.beginLoad(sessionID)
		defer s.endLoad(sessionID, pending)

		var loaded *User
		err := s.withStorage(ctx, "load_user", func(ctx context.Context) error {
			var err error
			loaded, err = s.repo.LoadUser(ctx, sessionID)
			return err
		})

		if errors.Is(err, sessionerrors.ErrCorruptData) {
			s.logger.Warn("stored session user is corrupt, discarding",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
			if clearErr := s.clearStorage(ctx, sessionID); clearErr != nil {
				s.logger.Warn("clear corrupt session user failed", zap.String("session_id", sessionID), zap.Error(clearErr))
			}
			s.forget(sessionID)
			return (*User)(nil), nil
		}
		if err != nil {
			return nil, err
		}
		if loaded == nil {
			s.forget(sessionID)
			return (*User)(nil), nil
		}
		if verr := loaded.Validate(); verr != nil {
			s.logger.Warn("stored session user is invalid, discarding", zap.String("session_id", sessionID), zap.Error(verr))
			s.forget(sessionID)
			return (*User)(nil), nil
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if pending.stale {
			if u, ok := s.users[sessionID]; ok {
				return &u, nil
			}
			return (*User)(nil), nil
		}
		s.users[sessionID] = *loaded
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}

	u := v.(*User)
	if u == nil {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// Logout clears storage first so a failed call leaves the session intact.
func (s *service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return sessionerrors.ErrInvalidSessionID
	}
	if err := s.clearStorage(ctx, sessionID); err != nil {
		return err
	}
	s.forget(sessionID)

	contextutil.GetLogger(ctx, s.logger).Info("session logged out", zap.String("session_id", sessionID))
	return nil
}

func (s *service) ResolveToken(ctx context.Context, token string) (domain.Principal, error) {
	sessionID, err := s.tokens.Parse(token)
	if err != nil {
		return domain.Principal{}, err
	}

	u, err := s.CurrentUser(ctx, sessionID)
	if err != nil {
		return domain.Principal{}, err
	}
	if u == nil {
		return domain.Principal{}, sessionerrors.ErrNoSession
	}

	return domain.Principal{
		SessionID: sessionID,
		UserID:    u.ID,
		Name:      u.Name,
		Role:      u.Role,
	}, nil
}

func (s *service) clearStorage(ctx context.Context, sessionID string) error {
	return s.withStorage(ctx, "clear_user", func(ctx context.Context) error {
		return s.repo.ClearUser(ctx, sessionID)
	})
}

func (s *service) forget(sessionID string) {
	s.mu.Lock()
	delete(s.users, sessionID)
	s.markStale(sessionID)
	s.mu.Unlock()
}

func (s *service) beginLoad(sessionID string) *pendingLoad {
	p := &pendingLoad{}
	s.mu.Lock()
	s.loading[sessionID] = p
	s.mu.Unlock()
	return p
}

func (s *service) endLoad(sessionID string, p *pendingLoad) {
	s.mu.Lock()
	if s.loading[sessionID] == p {
		delete(s.loading, sessionID)
	}
	s.mu.Unlock()
}

// markStale must be called with mu held.
func (s *service) markStale(sessionID string) {
	if p := s.loading[sessionID]; p != nil {
		p.stale = true
	}
}

// withStorage runs fn with the configured timeout and retries. Corrupt
// data passes through untouched; other failures become persistence errors.
func (s *service) withStorage(ctx context.Context, op string, fn func(context.Context) error) error {
	err := connection.WithRetry(ctx, s.cfg.Retries, retryBackoff, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
		return fn(callCtx)
	})
	if err == nil || errors.Is(err, sessionerrors.ErrCorruptData) {
		return err
	}

	s.cfg.Metrics.PersistenceError(op)
	contextutil.GetLogger(ctx, s.logger).Error("session storage call failed",
		zap.String("op", op),
		zap.Error(err),
	)
	return apperror.Persistence(err)
}

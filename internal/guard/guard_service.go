package guard

import (
	"fmt"
	"strings"
	"sync"

	"izin-talep/internal/domain"
	"izin-talep/internal/metrics"

	"github.com/casbin/casbin/v2"
	"go.uber.org/zap"
)

// Service decides access without touching any state. An empty role means
// there is no current user.
type Service interface {
	Authorize(path string, role domain.Role) Decision
	Can(role domain.Role, resource, action string) (bool, error)
}

type ServiceConfig struct {
	LoginPath   string
	Rules       []Rule
	Permissions []Permission
	Metrics     *metrics.Metrics
}

type service struct {
	enforcer  *casbin.Enforcer
	rules     []Rule
	loginPath string
	metrics   *metrics.Metrics
	logger    *zap.Logger
	mu        sync.Mutex
}

func NewService(enforcer *casbin.Enforcer, cfg ServiceConfig, logger ...*zap.Logger) (Service, error) {
	l := zap.L().Named("guard.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("guard.service")
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.Rules == nil {
		cfg.Rules = DefaultRules()
	}
	if cfg.Permissions == nil {
		cfg.Permissions = DefaultPermissions()
	}

	s := &service{
		enforcer:  enforcer,
		rules:     cfg.Rules,
		loginPath: cfg.LoginPath,
		metrics:   cfg.Metrics,
		logger:    l,
	}
	if err := s.loadPolicy(cfg.Permissions); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *service) loadPolicy(perms []Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enforcer.ClearPolicy()
	for _, r := range s.rules {
		if _, err := s.enforcer.AddPolicy(string(r.Role), r.Prefix+"*", actionView); err != nil {
			return fmt.Errorf("add page rule %s: %w", r.Prefix, err)
		}
	}
	for _, p := range perms {
		if _, err := s.enforcer.AddPolicy(string(p.Role), p.Resource, p.Action); err != nil {
			return fmt.Errorf("add permission %s:%s: %w", p.Resource, p.Action, err)
		}
	}

	s.logger.Info("guard policy loaded",
		zap.Int("page_rules", len(s.rules)),
		zap.Int("permissions", len(perms)),
	)
	return nil
}

// Authorize applies the first rule whose prefix matches path. Paths no
// rule covers are open to any signed-in user.
func (s *service) Authorize(path string, role domain.Role) Decision {
	d := s.decide(path, role)
	s.metrics.GuardDecision(string(d.Outcome))
	if !d.Allowed() {
		s.logger.Debug("guard decision",
			zap.String("path", path),
			zap.String("role", string(role)),
			zap.String("outcome", string(d.Outcome)),
		)
	}
	return d
}

func (s *service) decide(path string, role domain.Role) Decision {
	if !role.Valid() {
		return redirect(s.loginPath)
	}

	for _, r := range s.rules {
		if !strings.HasPrefix(path, r.Prefix) {
			continue
		}
		ok, err := s.enforce(string(role), path, actionView)
		if err != nil {
			s.logger.Error("guard enforce failed", zap.String("path", path), zap.Error(err))
			return deny(r.Reason)
		}
		if !ok {
			return deny(r.Reason)
		}
		return allow()
	}
	return allow()
}

func (s *service) Can(role domain.Role, resource, action string) (bool, error) {
	if !role.Valid() {
		return false, nil
	}
	return s.enforce(string(role), resource, action)
}

func (s *service) enforce(sub, obj, act string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enforcer.Enforce(sub, obj, act)
}

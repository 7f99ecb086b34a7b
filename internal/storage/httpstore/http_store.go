package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"time"

	"izin-talep/internal/leave"
	leaveerrors "izin-talep/internal/leave/errors"
	"izin-talep/internal/session"
	sessionerrors "izin-talep/internal/session/errors"
	"izin-talep/internal/shared/connection"
	"izin-talep/internal/storage/legacy"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const maxBody = 8 << 20

type Config struct {
	BaseURL      string
	LeavesPath   string
	SessionsPath string
	// Timeout bounds a whole HTTP exchange and is also the breaker cool-down.
	Timeout time.Duration
}

// StatusError is an unexpected response from the remote endpoint. Server
// side failures can be retried.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Code)
}

func (e *StatusError) Retryable() bool {
	return e.Code >= http.StatusInternalServerError || e.Code == http.StatusTooManyRequests
}

// oturum is one session entry on the remote endpoint.
type oturum struct {
	ID        string            `json:"id"`
	Kullanici *legacy.Kullanici `json:"kullanici"`
}

// Store talks to a json-server style endpoint. The remote API only offers
// per-record writes, so Save sends POST for records it has not seen and
// PATCH for records whose decision fields changed.
type Store struct {
	client  *http.Client
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger

	mu    sync.Mutex
	known map[string]legacy.Izin
	// unsure holds ids whose POST may have reached the server without the
	// reply reaching us.
	unsure map[string]struct{}
}

func New(cfg Config, logger ...*zap.Logger) *Store {
	l := zap.L().Named("storage.http")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("storage.http")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Store{
		client:  &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		breaker: connection.NewCircuitBreaker("remote-store", cfg.Timeout),
		logger:  l,
		known:   make(map[string]legacy.Izin),
		unsure:  make(map[string]struct{}),
	}
}

func (s *Store) Load(ctx context.Context) ([]leave.LeaveRequest, error) {
	status, body, err := s.do(ctx, http.MethodGet, s.cfg.LeavesPath, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		s.resetKnown(nil)
		return nil, nil
	}

	var raw []legacy.Izin
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", leaveerrors.ErrCorruptData, err)
	}
	records, err := legacy.DecodeLeaves(raw)
	if err != nil {
		return nil, err
	}
	s.resetKnown(records)
	return records, nil
}

func (s *Store) Save(ctx context.Context, records []leave.LeaveRequest) error {
	for _, rec := range records {
		enc := legacy.EncodeLeave(rec)

		s.mu.Lock()
		prev, seen := s.known[rec.ID]
		s.mu.Unlock()

		switch {
		case !seen:
			if err := s.create(ctx, rec, enc); err != nil {
				return err
			}
		case !reflect.DeepEqual(prev, enc):
			if err := s.patch(ctx, rec); err != nil {
				return err
			}
		default:
			continue
		}

		s.mu.Lock()
		s.known[rec.ID] = enc
		s.mu.Unlock()
	}
	return nil
}

// Reset deletes every stored leave record one by one, since the remote API
// has no bulk delete. Records are only read for their ids, so it works on
// data that does not decode.
func (s *Store) Reset(ctx context.Context) error {
	status, body, err := s.do(ctx, http.MethodGet, s.cfg.LeavesPath, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		s.resetKnown(nil)
		return nil
	}
	if err := checkStatus(http.MethodGet, s.cfg.LeavesPath, status, http.StatusOK); err != nil {
		return err
	}

	var rows []struct {
		ID any `json:"id"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return fmt.Errorf("list stored leave ids: %w", err)
	}
	for _, row := range rows {
		if row.ID == nil {
			return fmt.Errorf("stored leave without id cannot be removed")
		}
		path := s.leavePath(fmt.Sprint(row.ID))
		if err := s.expect(ctx, http.MethodDelete, path, nil, http.StatusOK, http.StatusNoContent, http.StatusNotFound); err != nil {
			return err
		}
	}

	s.logger.Warn("remote leave collection cleared", zap.Int("records", len(rows)))
	s.resetKnown(nil)
	return nil
}

// create POSTs a new record. After a POST with an unknown outcome the id
// is looked up first so a retry never sends a duplicate.
func (s *Store) create(ctx context.Context, rec leave.LeaveRequest, enc legacy.Izin) error {
	s.mu.Lock()
	_, unsure := s.unsure[rec.ID]
	s.mu.Unlock()

	if unsure {
		status, _, err := s.do(ctx, http.MethodGet, s.leavePath(rec.ID), nil)
		if err != nil {
			return err
		}
		if status == http.StatusOK {
			s.logger.Info("leave already created by an earlier attempt", zap.String("leave_id", rec.ID))
			if err := s.patch(ctx, rec); err != nil {
				return err
			}
			s.settle(rec.ID)
			return nil
		}
	}

	status, _, err := s.do(ctx, http.MethodPost, s.cfg.LeavesPath, enc)
	if err != nil {
		s.mu.Lock()
		s.unsure[rec.ID] = struct{}{}
		s.mu.Unlock()
		return err
	}
	if err := checkStatus(http.MethodPost, s.cfg.LeavesPath, status, http.StatusOK, http.StatusCreated); err != nil {
		return err
	}
	s.settle(rec.ID)
	return nil
}

func (s *Store) patch(ctx context.Context, rec leave.LeaveRequest) error {
	return s.expect(ctx, http.MethodPatch, s.leavePath(rec.ID), legacy.PatchFor(rec), http.StatusOK, http.StatusNoContent)
}

func (s *Store) settle(id string) {
	s.mu.Lock()
	delete(s.unsure, id)
	s.mu.Unlock()
}

func (s *Store) LoadUser(ctx context.Context, sessionID string) (*session.User, error) {
	status, body, err := s.do(ctx, http.MethodGet, s.sessionPath(sessionID), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}

	var entry oturum
	if err := json.Unmarshal(body, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", sessionerrors.ErrCorruptData, err)
	}
	if entry.Kullanici == nil {
		return nil, nil
	}
	u, err := legacy.DecodeUser(*entry.Kullanici)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SaveUser replaces the session entry, creating it when the remote side
// does not know the session yet.
func (s *Store) SaveUser(ctx context.Context, sessionID string, user session.User) error {
	enc := legacy.EncodeUser(user)
	entry := oturum{ID: sessionID, Kullanici: &enc}

	status, _, err := s.do(ctx, http.MethodPut, s.sessionPath(sessionID), entry)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return s.expect(ctx, http.MethodPost, s.cfg.SessionsPath, entry, http.StatusOK, http.StatusCreated)
	}
	return checkStatus(http.MethodPut, s.sessionPath(sessionID), status, http.StatusOK, http.StatusNoContent)
}

func (s *Store) ClearUser(ctx context.Context, sessionID string) error {
	return s.expect(ctx, http.MethodDelete, s.sessionPath(sessionID), nil, http.StatusOK, http.StatusNoContent, http.StatusNotFound)
}

func (s *Store) Ping(ctx context.Context) error {
	status, _, err := s.do(ctx, http.MethodGet, s.cfg.LeavesPath, nil)
	if err != nil {
		return err
	}
	return checkStatus(http.MethodGet, s.cfg.LeavesPath, status, http.StatusOK, http.StatusNotFound)
}

func (s *Store) leavePath(id string) string {
	return s.cfg.LeavesPath + "/" + url.PathEscape(id)
}

func (s *Store) sessionPath(sessionID string) string {
	return s.cfg.SessionsPath + "/" + url.PathEscape(sessionID)
}

// resetKnown records what the remote side holds, in canonical encoding so
// that formatting differences never look like changes.
func (s *Store) resetKnown(records []leave.LeaveRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known = make(map[string]legacy.Izin, len(records))
	for _, r := range records {
		s.known[r.ID] = legacy.EncodeLeave(r)
		delete(s.unsure, r.ID)
	}
}

func (s *Store) expect(ctx context.Context, method, path string, body any, ok ...int) error {
	status, _, err := s.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	return checkStatus(method, path, status, ok...)
}

func checkStatus(method, path string, status int, ok ...int) error {
	for _, code := range ok {
		if status == code {
			return nil
		}
	}
	return &StatusError{Method: method, URL: path, Code: status}
}

// do runs one exchange through the breaker. Only transport failures and
// 5xx responses count against the breaker; other statuses are returned
// for the caller to judge.
func (s *Store) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	type result struct {
		status int
		body   []byte
	}

	out, err := s.breaker.Execute(func() (any, error) {
		var reader io.Reader
		if body != nil {
			b, err := json.Marshal(body)
			if err != nil {
				return nil, err
			}
			reader = bytes.NewReader(b)
		}

		req, err := http.NewRequestWithContext(ctx, method, s.cfg.BaseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, &StatusError{Method: method, URL: path, Code: resp.StatusCode}
		}
		return result{status: resp.StatusCode, body: payload}, nil
	})
	if err != nil {
		s.logger.Warn("remote store call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return 0, nil, err
	}

	r := out.(result)
	return r.status, r.body, nil
}

package leave

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"izin-talep/internal/domain"
	"izin-talep/internal/events"
	leaveerrors "izin-talep/internal/leave/errors"
	"izin-talep/internal/metrics"
	"izin-talep/internal/shared/apperror"
	"izin-talep/internal/shared/connection"
	"izin-talep/internal/shared/contextutil"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

//go:generate mockgen -source=leave_service.go -destination=mock/leave_service_mock.go -package=mock
type Service interface {
	Create(ctx context.Context, req CreateLeaveRequest) (LeaveResponse, error)
	Approve(ctx context.Context, id, note string) (LeaveResponse, error)
	Reject(ctx context.Context, id, note string) (LeaveResponse, error)
	Cancel(ctx context.Context, id, requesterID string) (LeaveResponse, error)
	GetByID(ctx context.Context, id string) (LeaveResponse, error)
	ListAll(ctx context.Context) ([]LeaveResponse, error)
	ListByEmployee(ctx context.Context, employeeID string) ([]LeaveResponse, error)
	Reload(ctx context.Context) error
}

type ServiceConfig struct {
	// Timeout bounds every single persistence call.
	Timeout time.Duration
	// Retries is the number of attempts for a retryable persistence failure.
	Retries   int
	Publisher EventPublisher
	Metrics   *metrics.Metrics
	Now       func() time.Time
	NewID     func() string
}

const retryBackoff = 200 * time.Millisecond

// service owns the in-memory collection. writeMu serializes mutations so
// there is a single writer; mu guards the slice swap so readers never wait
// on storage.
type service struct {
	repo    Repository
	cfg     ServiceConfig
	logger  *zap.Logger
	loadGrp singleflight.Group

	writeMu sync.Mutex

	mu      sync.RWMutex
	loaded  bool
	version uint64
	records []LeaveRequest
	nextSeq int64
}

func NewService(repo Repository, cfg ServiceConfig, logger ...*zap.Logger) Service {
	l := zap.L().Named("leave.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leave.service")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.Publisher == nil {
		cfg.Publisher = NewNoopEventPublisher()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &service{repo: repo, cfg: cfg, logger: l}
}

func (s *service) Create(ctx context.Context, req CreateLeaveRequest) (LeaveResponse, error) {
	log := contextutil.GetLogger(ctx, s.logger)
	log.Debug("create leave requested",
		zap.String("employee_id", req.EmployeeID),
		zap.String("kind", req.Kind),
		zap.String("start_date", req.StartDate),
		zap.String("end_date", req.EndDate),
	)

	draft, err := validateCreateRequest(req)
	if err != nil {
		log.Warn("create leave validation failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	if err := s.ensureLoaded(ctx); err != nil {
		return LeaveResponse{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, seq := s.snapshot()
	draft.ID = s.cfg.NewID()
	draft.Seq = seq
	draft.Status = domain.LeaveStatusPending
	draft.CreatedAt = s.cfg.Now().UTC()

	next := append(current, draft)
	event := s.lifecycleEvent(ctx, events.LeaveCreated, draft)
	if err := s.persist(ctx, "create", next, event); err != nil {
		return LeaveResponse{}, err
	}
	s.commit(next)

	log.Info("create leave success",
		zap.String("leave_id", draft.ID),
		zap.String("employee_id", draft.EmployeeID),
	)
	s.afterCommit(ctx, event)

	return mapToResponse(draft), nil
}

func (s *service) Approve(ctx context.Context, id, note string) (LeaveResponse, error) {
	return s.transition(ctx, id, domain.LeaveStatusApproved, note, "")
}

func (s *service) Reject(ctx context.Context, id, note string) (LeaveResponse, error) {
	return s.transition(ctx, id, domain.LeaveStatusRejected, note, "")
}

func (s *service) Cancel(ctx context.Context, id, requesterID string) (LeaveResponse, error) {
	if requesterID == "" {
		return LeaveResponse{}, leaveerrors.ErrNotOwner
	}
	return s.transition(ctx, id, domain.LeaveStatusCancelled, "", requesterID)
}

// transition moves a pending record to target. A non-empty requesterID
// restricts the change to the record owner.
func (s *service) transition(ctx context.Context, id string, target domain.LeaveStatus, note, requesterID string) (LeaveResponse, error) {
	log := contextutil.GetLogger(ctx, s.logger)
	log.Debug("transition leave requested",
		zap.String("leave_id", id),
		zap.String("target_status", string(target)),
	)

	if err := s.ensureLoaded(ctx); err != nil {
		return LeaveResponse{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, _ := s.snapshot()
	idx := indexOf(current, id)
	if idx < 0 {
		return LeaveResponse{}, leaveerrors.ErrLeaveNotFound
	}

	rec := current[idx]
	if requesterID != "" && rec.EmployeeID != requesterID {
		log.Warn("transition leave rejected, requester is not owner",
			zap.String("leave_id", id),
			zap.String("requester_id", requesterID),
		)
		return LeaveResponse{}, leaveerrors.ErrNotOwner
	}
	if !isAllowedStatusTransition(rec.Status, target) {
		log.Warn("transition leave invalid",
			zap.String("leave_id", id),
			zap.String("from_status", string(rec.Status)),
			zap.String("to_status", string(target)),
		)
		return LeaveResponse{}, leaveerrors.ErrInvalidStatusTransition
	}

	now := s.cfg.Now().UTC()
	rec.Status = target
	rec.DecidedAt = &now
	if n := strings.TrimSpace(note); n != "" {
		rec.Note = &n
	}

	next := make([]LeaveRequest, len(current))
	copy(next, current)
	next[idx] = rec

	event := s.lifecycleEvent(ctx, eventTypeFor(target), rec)
	if err := s.persist(ctx, strings.ToLower(string(target)), next, event); err != nil {
		return LeaveResponse{}, err
	}
	s.commit(next)

	log.Info("transition leave success",
		zap.String("leave_id", id),
		zap.String("status", string(target)),
	)
	s.afterCommit(ctx, event)

	return mapToResponse(rec), nil
}

func isAllowedStatusTransition(current, target domain.LeaveStatus) bool {
	if current != domain.LeaveStatusPending {
		return false
	}
	switch target {
	case domain.LeaveStatusApproved, domain.LeaveStatusRejected, domain.LeaveStatusCancelled:
		return true
	default:
		return false
	}
}

func (s *service) GetByID(ctx context.Context, id string) (LeaveResponse, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return LeaveResponse{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := indexOf(s.records, id)
	if idx < 0 {
		return LeaveResponse{}, leaveerrors.ErrLeaveNotFound
	}
	return mapToResponse(s.records[idx]), nil
}

func (s *service) ListAll(ctx context.Context) ([]LeaveResponse, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return mapToListResponse(s.records, func(LeaveRequest) bool { return true }), nil
}

func (s *service) ListByEmployee(ctx context.Context, employeeID string) ([]LeaveResponse, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return mapToListResponse(s.records, func(l LeaveRequest) bool {
		return l.EmployeeID == employeeID
	}), nil
}

// Reload replaces the in-memory collection with what storage holds. A
// result fetched while a local mutation committed is dropped, since the
// local state is newer. Corrupt storage never replaces a loaded
// collection: storage is rewritten from memory instead.
func (s *service) Reload(ctx context.Context) error {
	_, err, _ := s.loadGrp.Do("reload", func() (any, error) {
		s.mu.RLock()
		startVersion, loaded := s.version, s.loaded
		s.mu.RUnlock()

		records, corrupt, err := s.fetch(ctx)
		if err != nil {
			return nil, err
		}
		if corrupt {
			if loaded {
				return nil, s.repair(ctx)
			}
			if err := s.discard(ctx); err != nil {
				return nil, err
			}
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.loaded && s.version != startVersion {
			s.logger.Info("reload result discarded, collection changed meanwhile")
			return nil, nil
		}
		s.install(records)
		return nil, nil
	})
	return err
}

func (s *service) ensureLoaded(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	_, err, _ := s.loadGrp.Do("load", func() (any, error) {
		s.mu.RLock()
		loaded := s.loaded
		s.mu.RUnlock()
		if loaded {
			return nil, nil
		}

		records, corrupt, err := s.fetch(ctx)
		if err != nil {
			return nil, err
		}
		if corrupt {
			if err := s.discard(ctx); err != nil {
				return nil, err
			}
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.loaded {
			s.install(records)
		}
		return nil, nil
	})
	return err
}

// fetch reads storage. corrupt reports stored data that cannot be used;
// records is then empty. Any other failure is a persistence error.
func (s *service) fetch(ctx context.Context) (records []LeaveRequest, corrupt bool, err error) {
	err = connection.WithRetry(ctx, s.cfg.Retries, retryBackoff, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()

		var err error
		records, err = s.repo.Load(callCtx)
		return err
	})

	if errors.Is(err, leaveerrors.ErrCorruptData) {
		s.logger.Warn("stored leave data is corrupt", zap.Error(err))
		return nil, true, nil
	}
	if err != nil {
		s.cfg.Metrics.PersistenceError("load")
		s.logger.Error("load leaves failed", zap.Error(err))
		return nil, false, apperror.Persistence(err)
	}

	for i := range records {
		if err := records[i].Validate(); err != nil {
			s.logger.Warn("stored leave record is invalid",
				zap.String("leave_id", records[i].ID),
				zap.Error(err),
			)
			return nil, true, nil
		}
	}
	return records, false, nil
}

// discard clears corrupt storage so the empty collection that replaces it
// is also what the next load sees. Until it succeeds nothing is loaded.
func (s *service) discard(ctx context.Context) error {
	if err := s.withStorage(ctx, "discard", s.repo.Reset); err != nil {
		return err
	}
	s.logger.Warn("corrupt leave data discarded, starting with an empty collection")
	return nil
}

// repair rewrites corrupt storage from the loaded collection.
func (s *service) repair(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, _ := s.snapshot()
	err := s.withStorage(ctx, "repair", func(ctx context.Context) error {
		if err := s.repo.Reset(ctx); err != nil {
			return err
		}
		return s.repo.Save(ctx, current)
	})
	if err != nil {
		return err
	}
	s.logger.Warn("corrupt leave data replaced with the loaded collection", zap.Int("records", len(current)))
	return nil
}

// install must be called with mu held.
func (s *service) install(records []LeaveRequest) {
	var maxSeq int64
	for i := range records {
		if records[i].Seq == 0 {
			records[i].Seq = int64(i + 1)
		}
		if records[i].Seq > maxSeq {
			maxSeq = records[i].Seq
		}
	}
	s.records = records
	s.nextSeq = maxSeq + 1
	s.loaded = true
	s.version++
}

// snapshot returns a private copy of the collection and the next sequence.
func (s *service) snapshot() ([]LeaveRequest, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LeaveRequest, len(s.records), len(s.records)+1)
	copy(out, s.records)
	return out, s.nextSeq
}

func (s *service) commit(next []LeaveRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(next); n > 0 && next[n-1].Seq >= s.nextSeq {
		s.nextSeq = next[n-1].Seq + 1
	}
	s.records = next
	s.version++
}

// persist saves next, together with event when the repository can store
// both in one transaction.
func (s *service) persist(ctx context.Context, op string, next []LeaveRequest, event events.LeaveLifecycleEvent) error {
	store, transactional := s.repo.(EventStore)
	return s.withStorage(ctx, op, func(ctx context.Context) error {
		if transactional {
			return store.SaveWithEvent(ctx, next, event)
		}
		return s.repo.Save(ctx, next)
	})
}

// withStorage runs fn with the configured timeout and retries. Failures
// leave the in-memory collection untouched.
func (s *service) withStorage(ctx context.Context, op string, fn func(context.Context) error) error {
	err := connection.WithRetry(ctx, s.cfg.Retries, retryBackoff, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
		return fn(callCtx)
	})
	if err != nil {
		s.cfg.Metrics.PersistenceError(op)
		contextutil.GetLogger(ctx, s.logger).Error("persist leaves failed, in-memory state unchanged",
			zap.String("op", op),
			zap.Error(err),
		)
		return apperror.Persistence(err)
	}
	return nil
}

func (s *service) lifecycleEvent(ctx context.Context, eventType string, rec LeaveRequest) events.LeaveLifecycleEvent {
	return events.LeaveLifecycleEvent{
		EventType:  eventType,
		LeaveID:    rec.ID,
		EmployeeID: rec.EmployeeID,
		Kind:       string(rec.Kind),
		Status:     string(rec.Status),
		StartDate:  FormatDate(rec.StartDate),
		EndDate:    FormatDate(rec.EndDate),
		Note:       rec.Note,
		RequestID:  contextutil.GetRequestID(ctx),
		OccurredAt: s.cfg.Now().UTC(),
	}
}

// afterCommit hands the event to the publisher. With an outbox repository
// the event is already stored and the publisher is a no-op.
func (s *service) afterCommit(ctx context.Context, event events.LeaveLifecycleEvent) {
	s.cfg.Metrics.LeaveTransition(event.Status)

	if err := s.cfg.Publisher.PublishLeaveEvent(ctx, event); err != nil {
		contextutil.GetLogger(ctx, s.logger).Warn("publish leave event failed",
			zap.String("leave_id", event.LeaveID),
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
	}
}

func eventTypeFor(status domain.LeaveStatus) string {
	switch status {
	case domain.LeaveStatusApproved:
		return events.LeaveApproved
	case domain.LeaveStatusRejected:
		return events.LeaveRejected
	case domain.LeaveStatusCancelled:
		return events.LeaveCancelled
	default:
		return events.LeaveCreated
	}
}

func validateCreateRequest(req CreateLeaveRequest) (LeaveRequest, error) {
	employeeID := strings.TrimSpace(req.EmployeeID)
	if employeeID == "" {
		return LeaveRequest{}, leaveerrors.ErrInvalidEmployeeID
	}
	kind, err := domain.ParseLeaveKind(req.Kind)
	if err != nil {
		return LeaveRequest{}, leaveerrors.ErrInvalidKind
	}
	startDate, err := parseDate(req.StartDate)
	if err != nil {
		return LeaveRequest{}, err
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		return LeaveRequest{}, err
	}
	if startDate.After(endDate) {
		return LeaveRequest{}, leaveerrors.ErrInvalidDateRange
	}

	return LeaveRequest{
		EmployeeID:   employeeID,
		EmployeeName: strings.TrimSpace(req.EmployeeName),
		Kind:         kind,
		StartDate:    startDate,
		EndDate:      endDate,
		Description:  req.Description,
	}, nil
}

func parseDate(v string) (time.Time, error) {
	t, err := ParseDate(v)
	if err != nil {
		return time.Time{}, leaveerrors.ErrInvalidDateFormat
	}
	return t, nil
}

func indexOf(records []LeaveRequest, id string) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}

func mapToResponse(l LeaveRequest) LeaveResponse {
	resp := LeaveResponse{
		ID:           l.ID,
		EmployeeID:   l.EmployeeID,
		EmployeeName: l.EmployeeName,
		Kind:         string(l.Kind),
		StartDate:    FormatDate(l.StartDate),
		EndDate:      FormatDate(l.EndDate),
		TotalDays:    l.TotalDays(),
		Description:  l.Description,
		Status:       string(l.Status),
		Note:         l.Note,
		CreatedAt:    l.CreatedAt.Format(time.RFC3339),
	}
	if l.DecidedAt != nil {
		v := l.DecidedAt.Format(time.RFC3339)
		resp.DecidedAt = &v
	}
	return resp
}

func mapToListResponse(records []LeaveRequest, keep func(LeaveRequest) bool) []LeaveResponse {
	resp := make([]LeaveResponse, 0, len(records))
	for _, l := range records {
		if keep(l) {
			resp = append(resp, mapToResponse(l))
		}
	}
	return resp
}

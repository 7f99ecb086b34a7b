package leave_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"izin-talep/internal/domain"
	"izin-talep/internal/events"
	"izin-talep/internal/leave"
	leaveerrors "izin-talep/internal/leave/errors"
	"izin-talep/internal/leave/mock"
	"izin-talep/internal/metrics"
	"izin-talep/internal/shared/apperror"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

type fakeLeaveRepository struct {
	mu     sync.Mutex
	stored []leave.LeaveRequest
	saves  int
	resets int

	loadFn  func(ctx context.Context) ([]leave.LeaveRequest, error)
	saveFn  func(ctx context.Context, records []leave.LeaveRequest) error
	resetFn func(ctx context.Context) error
}

func (f *fakeLeaveRepository) Load(ctx context.Context) ([]leave.LeaveRequest, error) {
	if f.loadFn != nil {
		return f.loadFn(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]leave.LeaveRequest(nil), f.stored...), nil
}

func (f *fakeLeaveRepository) Save(ctx context.Context, records []leave.LeaveRequest) error {
	if f.saveFn != nil {
		if err := f.saveFn(ctx, records); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append([]leave.LeaveRequest(nil), records...)
	f.saves++
	return nil
}

func (f *fakeLeaveRepository) Reset(ctx context.Context) error {
	if f.resetFn != nil {
		if err := f.resetFn(ctx); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = nil
	f.resets++
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.LeaveLifecycleEvent
	err    error
}

func (f *fakePublisher) PublishLeaveEvent(_ context.Context, event events.LeaveLifecycleEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.EventType)
	}
	return out
}

type leaveServiceDeps struct {
	service   leave.Service
	repo      *fakeLeaveRepository
	publisher *fakePublisher
	metrics   *metrics.Metrics
}

func setupLeaveServiceTest(t *testing.T) *leaveServiceDeps {
	t.Helper()

	repo := &fakeLeaveRepository{}
	publisher := &fakePublisher{}
	m := metrics.New()

	var (
		idMu sync.Mutex
		next int
	)
	svc := leave.NewService(repo, leave.ServiceConfig{
		Timeout:   time.Second,
		Retries:   1,
		Publisher: publisher,
		Metrics:   m,
		Now: func() time.Time {
			return time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
		},
		NewID: func() string {
			idMu.Lock()
			defer idMu.Unlock()
			next++
			return fmt.Sprintf("leave-%d", next)
		},
	})

	return &leaveServiceDeps{service: svc, repo: repo, publisher: publisher, metrics: m}
}

func createReq(employeeID, start, end string) leave.CreateLeaveRequest {
	return leave.CreateLeaveRequest{
		EmployeeID:   employeeID,
		EmployeeName: "Ayşe",
		Kind:         "ANNUAL",
		StartDate:    start,
		EndDate:      end,
	}
}

func TestLeaveService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)

		res, err := deps.service.Create(ctx, createReq("e1", "2024-01-01", "2024-01-03"))
		assert.NoError(t, err)
		assert.Equal(t, "leave-1", res.ID)
		assert.Equal(t, string(domain.LeaveStatusPending), res.Status)
		assert.Equal(t, 3, res.TotalDays)
		assert.Nil(t, res.DecidedAt)

		assert.Len(t, deps.repo.stored, 1)
		assert.Equal(t, int64(1), deps.repo.stored[0].Seq)
		assert.Equal(t, []string{events.LeaveCreated}, deps.publisher.types())
	})

	t.Run("unique ids under concurrency", func(t *testing.T) {
		repo := &fakeLeaveRepository{}
		svc := leave.NewService(repo, leave.ServiceConfig{Timeout: time.Second})

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Create(ctx, createReq("e1", "2024-02-01", "2024-02-02"))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		all, err := svc.ListAll(ctx)
		assert.NoError(t, err)
		assert.Len(t, all, 20)

		seen := map[string]bool{}
		for _, l := range all {
			assert.False(t, seen[l.ID])
			seen[l.ID] = true
		}
		assert.Len(t, repo.stored, 20)
	})

	t.Run("negative invalid input", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)

		cases := []struct {
			name string
			req  leave.CreateLeaveRequest
			want error
		}{
			{"missing employee", createReq(" ", "2024-01-01", "2024-01-02"), leaveerrors.ErrInvalidEmployeeID},
			{"bad kind", leave.CreateLeaveRequest{EmployeeID: "e1", Kind: "HOLIDAY", StartDate: "2024-01-01", EndDate: "2024-01-01"}, leaveerrors.ErrInvalidKind},
			{"bad date", createReq("e1", "01/01/2024", "2024-01-02"), leaveerrors.ErrInvalidDateFormat},
			{"end before start", createReq("e1", "2024-01-05", "2024-01-02"), leaveerrors.ErrInvalidDateRange},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := deps.service.Create(ctx, tc.req)
				assert.ErrorIs(t, err, tc.want)
			})
		}
		assert.Zero(t, deps.repo.saves)
	})

	t.Run("negative storage failure keeps state", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		deps.repo.saveFn = func(context.Context, []leave.LeaveRequest) error {
			return errors.New("disk full")
		}

		_, err := deps.service.Create(ctx, createReq("e1", "2024-01-01", "2024-01-03"))
		assert.ErrorIs(t, err, apperror.ErrStorageUnavailable)

		all, err := deps.service.ListAll(ctx)
		assert.NoError(t, err)
		assert.Empty(t, all)
		assert.Empty(t, deps.publisher.types())

		count, err := testutil.GatherAndCount(deps.metrics.Gatherer(), "izin_persistence_errors_total")
		assert.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestLeaveService_Transitions(t *testing.T) {
	ctx := context.Background()

	t.Run("approve then cancel is rejected", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		created, err := deps.service.Create(ctx, createReq("e1", "2024-01-01", "2024-01-03"))
		assert.NoError(t, err)

		approved, err := deps.service.Approve(ctx, created.ID, "  ok  ")
		assert.NoError(t, err)
		assert.Equal(t, string(domain.LeaveStatusApproved), approved.Status)
		assert.Equal(t, "ok", *approved.Note)
		assert.NotNil(t, approved.DecidedAt)

		_, err = deps.service.Cancel(ctx, created.ID, "e1")
		assert.ErrorIs(t, err, leaveerrors.ErrInvalidStatusTransition)

		got, err := deps.service.GetByID(ctx, created.ID)
		assert.NoError(t, err)
		assert.Equal(t, string(domain.LeaveStatusApproved), got.Status)
		assert.Equal(t, []string{events.LeaveCreated, events.LeaveApproved}, deps.publisher.types())
	})

	t.Run("reject with empty note keeps note unset", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		created, _ := deps.service.Create(ctx, createReq("e1", "2024-01-01", "2024-01-01"))

		rejected, err := deps.service.Reject(ctx, created.ID, "   ")
		assert.NoError(t, err)
		assert.Equal(t, string(domain.LeaveStatusRejected), rejected.Status)
		assert.Nil(t, rejected.Note)
	})

	t.Run("owner cancels pending", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		created, _ := deps.service.Create(ctx, createReq("e1", "2024-01-01", "2024-01-01"))

		cancelled, err := deps.service.Cancel(ctx, created.ID, "e1")
		assert.NoError(t, err)
		assert.Equal(t, string(domain.LeaveStatusCancelled), cancelled.Status)
		assert.Equal(t, domain.LeaveStatusCancelled, deps.repo.stored[0].Status)
	})

	t.Run("negative cancel by someone else", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		created, _ := deps.service.Create(ctx, createReq("e1", "2024-01-01", "2024-01-01"))

		_, err := deps.service.Cancel(ctx, created.ID, "e2")
		assert.ErrorIs(t, err, leaveerrors.ErrNotOwner)

		_, err = deps.service.Cancel(ctx, created.ID, "")
		assert.ErrorIs(t, err, leaveerrors.ErrNotOwner)
	})

	t.Run("negative unknown id", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)

		_, err := deps.service.Approve(ctx, "missing", "")
		assert.ErrorIs(t, err, leaveerrors.ErrLeaveNotFound)
		_, err = deps.service.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, leaveerrors.ErrLeaveNotFound)
	})

	t.Run("negative storage failure keeps pending", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		created, _ := deps.service.Create(ctx, createReq("e1", "2024-01-01", "2024-01-01"))
		deps.repo.saveFn = func(context.Context, []leave.LeaveRequest) error {
			return errors.New("connection reset")
		}

		_, err := deps.service.Approve(ctx, created.ID, "ok")
		assert.ErrorIs(t, err, apperror.ErrStorageUnavailable)

		got, err := deps.service.GetByID(ctx, created.ID)
		assert.NoError(t, err)
		assert.Equal(t, string(domain.LeaveStatusPending), got.Status)
		assert.Equal(t, domain.LeaveStatusPending, deps.repo.stored[0].Status)

		deps.repo.saveFn = nil
		_, err = deps.service.Approve(ctx, created.ID, "ok")
		assert.NoError(t, err)
	})

	t.Run("publish failure does not undo commit", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		deps.publisher.err = errors.New("broker down")

		created, err := deps.service.Create(ctx, createReq("e1", "2024-01-01", "2024-01-01"))
		assert.NoError(t, err)
		assert.Len(t, deps.repo.stored, 1)
		assert.Equal(t, created.ID, deps.repo.stored[0].ID)
	})
}

func TestLeaveService_TerminalRecordsNeverChange(t *testing.T) {
	ctx := context.Background()
	day, _ := leave.ParseDate("2024-01-01")
	decided := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)

	ops := map[string]func(svc leave.Service, id string) error{
		"approve": func(svc leave.Service, id string) error {
			_, err := svc.Approve(ctx, id, "again")
			return err
		},
		"reject": func(svc leave.Service, id string) error {
			_, err := svc.Reject(ctx, id, "again")
			return err
		},
		"cancel": func(svc leave.Service, id string) error {
			_, err := svc.Cancel(ctx, id, "e1")
			return err
		},
	}
	statuses := []domain.LeaveStatus{
		domain.LeaveStatusApproved,
		domain.LeaveStatusRejected,
		domain.LeaveStatusCancelled,
	}

	for _, status := range statuses {
		for name, op := range ops {
			t.Run(fmt.Sprintf("%s on %s", name, status), func(t *testing.T) {
				deps := setupLeaveServiceTest(t)
				deps.repo.stored = []leave.LeaveRequest{{
					ID: "t1", Seq: 1, EmployeeID: "e1", Kind: domain.LeaveKindAnnual,
					StartDate: day, EndDate: day, Status: status, DecidedAt: &decided,
				}}

				err := op(deps.service, "t1")
				assert.ErrorIs(t, err, leaveerrors.ErrInvalidStatusTransition)

				got, err := deps.service.GetByID(ctx, "t1")
				assert.NoError(t, err)
				assert.Equal(t, string(status), got.Status)
				assert.Nil(t, got.Note)
				assert.Zero(t, deps.repo.saves)
				assert.Equal(t, status, deps.repo.stored[0].Status)
				assert.Empty(t, deps.publisher.types())
			})
		}
	}
}

func TestLeaveService_Lists(t *testing.T) {
	ctx := context.Background()
	deps := setupLeaveServiceTest(t)

	a, _ := deps.service.Create(ctx, createReq("e1", "2024-01-01", "2024-01-01"))
	_, _ = deps.service.Create(ctx, createReq("e2", "2024-01-02", "2024-01-02"))
	c, _ := deps.service.Create(ctx, createReq("e1", "2024-01-03", "2024-01-04"))

	mine, err := deps.service.ListByEmployee(ctx, "e1")
	assert.NoError(t, err)
	assert.Len(t, mine, 2)
	assert.Equal(t, a.ID, mine[0].ID)
	assert.Equal(t, c.ID, mine[1].ID)

	none, err := deps.service.ListByEmployee(ctx, "nobody")
	assert.NoError(t, err)
	assert.Empty(t, none)

	all, err := deps.service.ListAll(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLeaveService_Load(t *testing.T) {
	ctx := context.Background()
	start, _ := leave.ParseDate("2024-03-01")
	stored := []leave.LeaveRequest{
		{ID: "x", Seq: 7, EmployeeID: "e1", Kind: domain.LeaveKindSick, StartDate: start, EndDate: start, Status: domain.LeaveStatusPending},
	}

	t.Run("continues sequence after stored records", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		deps.repo.stored = stored

		_, err := deps.service.Create(ctx, createReq("e2", "2024-03-02", "2024-03-02"))
		assert.NoError(t, err)
		assert.Len(t, deps.repo.stored, 2)
		assert.Equal(t, int64(8), deps.repo.stored[1].Seq)
	})

	t.Run("corrupt data is discarded from storage", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		corrupt := true
		deps.repo.loadFn = func(context.Context) ([]leave.LeaveRequest, error) {
			if corrupt {
				return nil, fmt.Errorf("%w: bad json", leaveerrors.ErrCorruptData)
			}
			return append([]leave.LeaveRequest(nil), deps.repo.stored...), nil
		}
		deps.repo.resetFn = func(context.Context) error {
			corrupt = false
			return nil
		}

		all, err := deps.service.ListAll(ctx)
		assert.NoError(t, err)
		assert.Empty(t, all)
		assert.Equal(t, 1, deps.repo.resets)
	})

	t.Run("records created after a corrupt load survive a restart", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		deps.repo.stored = []leave.LeaveRequest{{ID: "y", EmployeeID: "e1", Kind: "VACATION", Status: domain.LeaveStatusPending}}

		created, err := deps.service.Create(ctx, createReq("e2", "2024-03-02", "2024-03-04"))
		assert.NoError(t, err)
		assert.Equal(t, 1, deps.repo.resets)

		restarted := leave.NewService(deps.repo, leave.ServiceConfig{Timeout: time.Second})
		all, err := restarted.ListAll(ctx)
		assert.NoError(t, err)
		assert.Len(t, all, 1)
		assert.Equal(t, created.ID, all[0].ID)
		assert.Equal(t, created.StartDate, all[0].StartDate)
		assert.Equal(t, created.EndDate, all[0].EndDate)
	})

	t.Run("negative discard failure loads nothing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mock.NewMockRepository(ctrl)
		corrupt := fmt.Errorf("%w: bad json", leaveerrors.ErrCorruptData)

		gomock.InOrder(
			repo.EXPECT().Load(gomock.Any()).Return(nil, corrupt),
			repo.EXPECT().Reset(gomock.Any()).Return(errors.New("read only")),
			repo.EXPECT().Load(gomock.Any()).Return(nil, corrupt),
			repo.EXPECT().Reset(gomock.Any()).Return(nil),
			repo.EXPECT().Save(gomock.Any(), gomock.Len(1)).Return(nil),
		)

		svc := leave.NewService(repo, leave.ServiceConfig{Timeout: time.Second})
		_, err := svc.Create(ctx, createReq("e1", "2024-03-02", "2024-03-02"))
		assert.ErrorIs(t, err, apperror.ErrStorageUnavailable)

		_, err = svc.Create(ctx, createReq("e1", "2024-03-02", "2024-03-02"))
		assert.NoError(t, err)
	})

	t.Run("negative load failure is retried on next call", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		deps.repo.loadFn = func(context.Context) ([]leave.LeaveRequest, error) {
			return nil, errors.New("timeout")
		}

		_, err := deps.service.ListAll(ctx)
		assert.ErrorIs(t, err, apperror.ErrStorageUnavailable)

		deps.repo.loadFn = nil
		deps.repo.stored = stored
		all, err := deps.service.ListAll(ctx)
		assert.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("reload over corrupt storage keeps the collection", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		created, err := deps.service.Create(ctx, createReq("e1", "2024-03-02", "2024-03-02"))
		assert.NoError(t, err)

		deps.repo.stored = append(deps.repo.stored, leave.LeaveRequest{ID: "junk", Status: "???"})
		assert.NoError(t, deps.service.Reload(ctx))

		all, err := deps.service.ListAll(ctx)
		assert.NoError(t, err)
		assert.Len(t, all, 1)
		assert.Equal(t, created.ID, all[0].ID)

		assert.Equal(t, 1, deps.repo.resets)
		assert.Len(t, deps.repo.stored, 1)
		assert.Equal(t, created.ID, deps.repo.stored[0].ID)
	})

	t.Run("reload picks up external changes", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		all, err := deps.service.ListAll(ctx)
		assert.NoError(t, err)
		assert.Empty(t, all)

		deps.repo.stored = stored
		assert.NoError(t, deps.service.Reload(ctx))

		all, err = deps.service.ListAll(ctx)
		assert.NoError(t, err)
		assert.Len(t, all, 1)
		assert.Equal(t, "x", all[0].ID)
	})
}

func TestLeaveService_EventStore(t *testing.T) {
	ctx := context.Background()

	t.Run("event is saved with the collection", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mock.NewMockEventStore(ctrl)
		publisher := &fakePublisher{}

		repo.EXPECT().Load(gomock.Any()).Return(nil, nil)
		repo.EXPECT().
			SaveWithEvent(gomock.Any(), gomock.Len(1), gomock.Any()).
			DoAndReturn(func(_ context.Context, records []leave.LeaveRequest, e events.LeaveLifecycleEvent) error {
				assert.Equal(t, events.LeaveCreated, e.EventType)
				assert.Equal(t, records[0].ID, e.LeaveID)
				assert.Equal(t, "PENDING", e.Status)
				return nil
			})

		svc := leave.NewService(repo, leave.ServiceConfig{Timeout: time.Second, Publisher: publisher})
		_, err := svc.Create(ctx, createReq("e1", "2024-03-02", "2024-03-02"))
		assert.NoError(t, err)
		assert.Equal(t, []string{events.LeaveCreated}, publisher.types())
	})

	t.Run("negative failed transaction commits nothing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mock.NewMockEventStore(ctrl)
		publisher := &fakePublisher{}

		repo.EXPECT().Load(gomock.Any()).Return(nil, nil)
		repo.EXPECT().SaveWithEvent(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("outbox insert failed"))

		svc := leave.NewService(repo, leave.ServiceConfig{Timeout: time.Second, Publisher: publisher})
		_, err := svc.Create(ctx, createReq("e1", "2024-03-02", "2024-03-02"))
		assert.ErrorIs(t, err, apperror.ErrStorageUnavailable)

		all, err := svc.ListAll(ctx)
		assert.NoError(t, err)
		assert.Empty(t, all)
		assert.Empty(t, publisher.types())
	})
}

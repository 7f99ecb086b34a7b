package redisstore

import (
	"context"
	"errors"
	"time"

	"izin-talep/internal/leave"
	"izin-talep/internal/session"
	"izin-talep/internal/storage/legacy"

	"github.com/redis/go-redis/v9"
)

const (
	LeavesKey     = "izinler"
	userKeyPrefix = "kullanici:"
)

func UserKey(sessionID string) string {
	return userKeyPrefix + sessionID
}

// Store keeps the leave collection as one JSON array and each session
// user under its own key. It serves both leave.Repository and
// session.Repository.
type Store struct {
	rdb     *redis.Client
	userTTL time.Duration
}

// New returns a Store. A zero userTTL keeps session users until logout.
func New(rdb *redis.Client, userTTL time.Duration) *Store {
	return &Store{rdb: rdb, userTTL: userTTL}
}

func (s *Store) Load(ctx context.Context) ([]leave.LeaveRequest, error) {
	b, err := s.rdb.Get(ctx, LeavesKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return legacy.UnmarshalLeaves(b)
}

func (s *Store) Save(ctx context.Context, records []leave.LeaveRequest) error {
	b, err := legacy.MarshalLeaves(records)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, LeavesKey, b, 0).Err()
}

func (s *Store) Reset(ctx context.Context) error {
	return s.rdb.Del(ctx, LeavesKey).Err()
}

func (s *Store) LoadUser(ctx context.Context, sessionID string) (*session.User, error) {
	b, err := s.rdb.Get(ctx, UserKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	u, err := legacy.UnmarshalUser(b)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) SaveUser(ctx context.Context, sessionID string, user session.User) error {
	b, err := legacy.MarshalUser(user)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, UserKey(sessionID), b, s.userTTL).Err()
}

func (s *Store) ClearUser(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, UserKey(sessionID)).Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

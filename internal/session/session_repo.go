package session

import (
	"context"
	"errors"
	"fmt"

	sessionerrors "izin-talep/internal/session/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository stores the current user of each session. LoadUser returns
// nil, nil when the session has no user.
//
//go:generate mockgen -source=session_repo.go -destination=mock/session_repo_mock.go -package=mock
type Repository interface {
	LoadUser(ctx context.Context, sessionID string) (*User, error)
	SaveUser(ctx context.Context, sessionID string, user User) error
	ClearUser(ctx context.Context, sessionID string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&SessionUser{})
}

func (r *repository) LoadUser(ctx context.Context, sessionID string) (*User, error) {
	var row SessionUser
	err := r.db.WithContext(ctx).First(&row, "session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	u := fromRow(row)
	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("%w: session %q: %v", sessionerrors.ErrCorruptData, sessionID, err)
	}
	return &u, nil
}

func (r *repository) SaveUser(ctx context.Context, sessionID string, user User) error {
	row := toRow(sessionID, user)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (r *repository) ClearUser(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Delete(&SessionUser{}, "session_id = ?", sessionID).Error
}

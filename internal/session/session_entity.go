package session

import (
	"fmt"
	"time"

	"izin-talep/internal/domain"
)

// User is the identity bound to a session. PasswordHash holds a bcrypt
// digest when the client supplied a secret; it is never checked.
type User struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Role         domain.Role `json:"role"`
	Email        string      `json:"email,omitempty"`
	PasswordHash string      `json:"-"`
}

func (u User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("missing user id")
	}
	if u.Name == "" {
		return fmt.Errorf("missing user name")
	}
	if !u.Role.Valid() {
		return fmt.Errorf("invalid role %q", u.Role)
	}
	return nil
}

// SessionUser is the SQL row for the user of one session.
type SessionUser struct {
	SessionID    string      `gorm:"type:varchar(36);primaryKey"`
	UserID       string      `gorm:"type:varchar(64);not null"`
	Name         string      `gorm:"type:varchar(255);not null"`
	Role         domain.Role `gorm:"type:varchar(20);not null"`
	Email        *string     `gorm:"type:varchar(255)"`
	PasswordHash *string     `gorm:"type:varchar(100)"`
	UpdatedAt    time.Time
}

func (SessionUser) TableName() string {
	return "session_users"
}

func toRow(sessionID string, u User) SessionUser {
	row := SessionUser{
		SessionID: sessionID,
		UserID:    u.ID,
		Name:      u.Name,
		Role:      u.Role,
	}
	if u.Email != "" {
		row.Email = &u.Email
	}
	if u.PasswordHash != "" {
		row.PasswordHash = &u.PasswordHash
	}
	return row
}

func fromRow(row SessionUser) User {
	u := User{
		ID:   row.UserID,
		Name: row.Name,
		Role: row.Role,
	}
	if row.Email != nil {
		u.Email = *row.Email
	}
	if row.PasswordHash != nil {
		u.PasswordHash = *row.PasswordHash
	}
	return u
}

package leave

import (
	"fmt"
	"time"

	"izin-talep/internal/domain"
)

const dateLayout = "2006-01-02"

// LeaveRequest is one employee leave record. Seq keeps insertion order
// across storage backends.
type LeaveRequest struct {
	ID           string             `gorm:"type:varchar(36);primaryKey"`
	Seq          int64              `gorm:"not null;index:idx_leave_requests_seq"`
	EmployeeID   string             `gorm:"type:varchar(64);not null;index:idx_leave_requests_employee"`
	EmployeeName string             `gorm:"type:varchar(255)"`
	Kind         domain.LeaveKind   `gorm:"type:varchar(20);not null"`
	StartDate    time.Time          `gorm:"type:date;not null"`
	EndDate      time.Time          `gorm:"type:date;not null"`
	Description  string             `gorm:"type:text"`
	Status       domain.LeaveStatus `gorm:"type:varchar(20);not null;index:idx_leave_requests_status"`
	Note         *string            `gorm:"type:text"`
	CreatedAt    time.Time          `gorm:"not null"`
	DecidedAt    *time.Time
}

func (LeaveRequest) TableName() string {
	return "leave_requests"
}

// Validate checks the invariants every stored record must hold.
func (l LeaveRequest) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("missing id")
	}
	if l.EmployeeID == "" {
		return fmt.Errorf("missing employee id")
	}
	if !l.Kind.Valid() {
		return fmt.Errorf("invalid kind %q", l.Kind)
	}
	if !l.Status.Valid() {
		return fmt.Errorf("invalid status %q", l.Status)
	}
	if civilDate(l.EndDate).Before(civilDate(l.StartDate)) {
		return fmt.Errorf("end date before start date")
	}
	return nil
}

func (l LeaveRequest) TotalDays() int {
	return DurationDays(l.StartDate, l.EndDate)
}

// DurationDays counts calendar days from start to end, both inclusive.
// The order of the arguments does not matter.
func DurationDays(start, end time.Time) int {
	days := int(civilDate(end).Sub(civilDate(start)).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days + 1
}

// civilDate drops the clock so that DST or zone offsets never shift a day.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(v string) (time.Time, error) {
	return time.Parse(dateLayout, v)
}

func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

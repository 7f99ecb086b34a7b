package events

import "time"

const (
	LeaveLifecycleTopic = "izin.leave.lifecycle.v1"
	LeaveAggregateType  = "leave_request"
)

const (
	LeaveCreated   = "leave_created"
	LeaveApproved  = "leave_approved"
	LeaveRejected  = "leave_rejected"
	LeaveCancelled = "leave_cancelled"
)

type LeaveLifecycleEvent struct {
	EventType  string    `json:"event_type"`
	LeaveID    string    `json:"leave_id"`
	EmployeeID string    `json:"employee_id"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	StartDate  string    `json:"start_date"`
	EndDate    string    `json:"end_date"`
	Note       *string   `json:"note,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func IsLeaveEventType(v string) bool {
	switch v {
	case LeaveCreated, LeaveApproved, LeaveRejected, LeaveCancelled:
		return true
	}
	return false
}

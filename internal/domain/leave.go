package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

type LeaveStatus string

const (
	LeaveStatusPending   LeaveStatus = "PENDING"
	LeaveStatusApproved  LeaveStatus = "APPROVED"
	LeaveStatusRejected  LeaveStatus = "REJECTED"
	LeaveStatusCancelled LeaveStatus = "CANCELLED"
)

func (s LeaveStatus) Valid() bool {
	switch s {
	case LeaveStatusPending, LeaveStatusApproved, LeaveStatusRejected, LeaveStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s LeaveStatus) Terminal() bool {
	return s == LeaveStatusApproved || s == LeaveStatusRejected || s == LeaveStatusCancelled
}

func ParseLeaveStatus(v string) (LeaveStatus, error) {
	s := LeaveStatus(strings.ToUpper(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown leave status %q", v)
	}
	return s, nil
}

func (s *LeaveStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseLeaveStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type LeaveKind string

const (
	LeaveKindAnnual LeaveKind = "ANNUAL"
	LeaveKindSick   LeaveKind = "SICK"
	LeaveKindUnpaid LeaveKind = "UNPAID"
	LeaveKindOther  LeaveKind = "OTHER"
)

func (k LeaveKind) Valid() bool {
	switch k {
	case LeaveKindAnnual, LeaveKindSick, LeaveKindUnpaid, LeaveKindOther:
		return true
	}
	return false
}

func ParseLeaveKind(v string) (LeaveKind, error) {
	k := LeaveKind(strings.ToUpper(strings.TrimSpace(v)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown leave kind %q", v)
	}
	return k, nil
}

func (k *LeaveKind) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseLeaveKind(raw)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

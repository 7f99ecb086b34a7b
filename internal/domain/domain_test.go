package domain_test

import (
	"encoding/json"
	"testing"

	"izin-talep/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		r, err := domain.ParseRole(" manager ")
		assert.NoError(t, err)
		assert.Equal(t, domain.RoleManager, r)
	})

	t.Run("negative unknown role", func(t *testing.T) {
		_, err := domain.ParseRole("ADMIN")
		assert.Error(t, err)
	})
}

func TestRole_UnmarshalJSON(t *testing.T) {
	var payload struct {
		Role domain.Role `json:"role"`
	}

	assert.NoError(t, json.Unmarshal([]byte(`{"role":"EMPLOYEE"}`), &payload))
	assert.Equal(t, domain.RoleEmployee, payload.Role)

	assert.Error(t, json.Unmarshal([]byte(`{"role":"root"}`), &payload))
}

func TestLeaveStatus(t *testing.T) {
	for _, s := range []domain.LeaveStatus{domain.LeaveStatusApproved, domain.LeaveStatusRejected, domain.LeaveStatusCancelled} {
		assert.True(t, s.Terminal(), s)
	}
	assert.False(t, domain.LeaveStatusPending.Terminal())

	var s domain.LeaveStatus
	assert.Error(t, json.Unmarshal([]byte(`"DONE"`), &s))
	assert.NoError(t, json.Unmarshal([]byte(`"pending"`), &s))
	assert.Equal(t, domain.LeaveStatusPending, s)
}

func TestParseLeaveKind(t *testing.T) {
	k, err := domain.ParseLeaveKind("sick")
	assert.NoError(t, err)
	assert.Equal(t, domain.LeaveKindSick, k)

	_, err = domain.ParseLeaveKind("VACATION")
	assert.Error(t, err)
}

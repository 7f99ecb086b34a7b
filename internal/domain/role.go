package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the closed set of user roles. The zero value means "no user".
type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleManager  Role = "MANAGER"
)

func (r Role) Valid() bool {
	return r == RoleEmployee || r == RoleManager
}

func (r Role) String() string {
	return string(r)
}

func ParseRole(v string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(v)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", v)
	}
	return r, nil
}

func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Principal is the authenticated caller attached to a request.
type Principal struct {
	SessionID string
	UserID    string
	Name      string
	Role      Role
}

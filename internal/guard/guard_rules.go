package guard

import "izin-talep/internal/domain"

// Rule restricts every path starting with Prefix to a single role.
type Rule struct {
	Prefix string
	Role   domain.Role
	Reason string
}

func DefaultRules() []Rule {
	return []Rule{
		{Prefix: "/employee", Role: domain.RoleEmployee, Reason: "Only employees may access this page"},
		{Prefix: "/manager", Role: domain.RoleManager, Reason: "Only managers may access this page"},
	}
}

// Permission grants one role an action on an API resource.
type Permission struct {
	Role     domain.Role
	Resource string
	Action   string
}

const (
	ResourceLeave = "leave"

	ActionCreate  = "create"
	ActionCancel  = "cancel"
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionRead    = "read"
	ActionReload  = "reload"

	actionView = "view"
)

func DefaultPermissions() []Permission {
	return []Permission{
		{Role: domain.RoleEmployee, Resource: ResourceLeave, Action: ActionCreate},
		{Role: domain.RoleEmployee, Resource: ResourceLeave, Action: ActionCancel},
		{Role: domain.RoleEmployee, Resource: ResourceLeave, Action: ActionRead},
		{Role: domain.RoleManager, Resource: ResourceLeave, Action: ActionApprove},
		{Role: domain.RoleManager, Resource: ResourceLeave, Action: ActionReject},
		{Role: domain.RoleManager, Resource: ResourceLeave, Action: ActionRead},
		{Role: domain.RoleManager, Resource: ResourceLeave, Action: ActionReload},
	}
}

package guard

import "net/http"

type Outcome string

const (
	OutcomeAllow    Outcome = "allow"
	OutcomeRedirect Outcome = "redirect"
	OutcomeDeny     Outcome = "deny"
)

// Decision is the result of a page check. Redirect is set only for
// OutcomeRedirect and Reason only for OutcomeDeny.
type Decision struct {
	Outcome  Outcome `json:"outcome"`
	Status   int     `json:"status"`
	Reason   string  `json:"reason,omitempty"`
	Redirect string  `json:"redirect,omitempty"`
}

func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}

func allow() Decision {
	return Decision{Outcome: OutcomeAllow, Status: http.StatusOK}
}

func redirect(to string) Decision {
	return Decision{Outcome: OutcomeRedirect, Status: http.StatusUnauthorized, Redirect: to}
}

func deny(reason string) Decision {
	return Decision{Outcome: OutcomeDeny, Status: http.StatusForbidden, Reason: reason}
}

type AuthorizeRequest struct {
	Path string `json:"path" binding:"required,max=2048"`
	Role string `json:"role" binding:"omitempty,oneof=EMPLOYEE MANAGER"`
}

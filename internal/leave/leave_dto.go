package leave

// CreateLeaveRequest is the draft submitted by an employee. EmployeeID and
// EmployeeName are taken from the session when the handler fills them.
type CreateLeaveRequest struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
	Kind         string `json:"kind" binding:"required,oneof=ANNUAL SICK UNPAID OTHER"`
	StartDate    string `json:"start_date" binding:"required,isodate"`
	EndDate      string `json:"end_date" binding:"required,isodate"`
	Description  string `json:"description" binding:"max=2000"`
}

type DecisionRequest struct {
	Note string `json:"note" binding:"max=1000"`
}

type LeaveResponse struct {
	ID           string  `json:"id"`
	EmployeeID   string  `json:"employee_id"`
	EmployeeName string  `json:"employee_name"`
	Kind         string  `json:"kind"`
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
	TotalDays    int     `json:"total_days"`
	Description  string  `json:"description"`
	Status       string  `json:"status"`
	Note         *string `json:"note,omitempty"`
	CreatedAt    string  `json:"created_at"`
	DecidedAt    *string `json:"decided_at,omitempty"`
}

package domain

import "time"

// Leave request status values as synced from the HR system.
const (
	LeaveApproved = "approved"
	LeavePending  = "pending"
	LeaveRejected = "rejected"
)

// Employee links an HR employee id to an adviser email.
type Employee struct {
	EmployeeID string `json:"employee_id" db:"employee_id"`
	Email      string `json:"email" db:"email"`
}

// LeaveRequest is a personal leave period cached from the HR system.
// Only approved requests participate in the capacity model.
type LeaveRequest struct {
	EmployeeID string    `json:"employee_id" db:"employee_id"`
	StartDate  time.Time `json:"start_date" db:"start_date"` // civil date, inclusive
	EndDate    time.Time `json:"end_date" db:"end_date"`     // civil date, inclusive
	Status     string    `json:"status" db:"status"`
}

// Approved reports whether the request counts toward out-of-office time.
func (l LeaveRequest) Approved() bool {
	return l.Status == LeaveApproved
}

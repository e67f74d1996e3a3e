package repository

import (
	"context"
	"time"

	"adviser-allocation/internal/domain"
)

// LeaveRepository reads the HR-synced employee and leave cache. The sync
// job owns writes; the capacity engine only reads.
type LeaveRepository interface {
	// GetEmployeeByEmail resolves an adviser email to the HR employee id.
	GetEmployeeByEmail(ctx context.Context, email string) (*domain.Employee, error)

	// ListLeaveRequests returns the employee's approved leave intersecting
	// [from, to], ordered by start date.
	ListLeaveRequests(ctx context.Context, employeeID string, from, to time.Time) ([]domain.LeaveRequest, error)

	// ReplaceEmployeeLeave replaces the cached employee row and its leave
	// requests in one transaction (used by the HR sync).
	ReplaceEmployeeLeave(ctx context.Context, employee domain.Employee, requests []domain.LeaveRequest) error
}

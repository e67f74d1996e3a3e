package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"adviser-allocation/internal/domain"
)

// PostgresLeaveRepository implements LeaveRepository on the employees and
// leave_requests tables.
type PostgresLeaveRepository struct {
	db *sql.DB
}

func NewPostgresLeaveRepository(db *sql.DB) *PostgresLeaveRepository {
	return &PostgresLeaveRepository{db: db}
}

var _ LeaveRepository = (*PostgresLeaveRepository)(nil)

func (r *PostgresLeaveRepository) GetEmployeeByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	const op = "leave.get_employee"
	query := `SELECT employee_id, email FROM employees WHERE LOWER(email) = LOWER($1)`

	var e domain.Employee
	err := r.db.QueryRowContext(ctx, query, email).Scan(&e.EmployeeID, &e.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, NotFound(op)
		}
		return nil, Unavailable(op, err)
	}
	return &e, nil
}

func (r *PostgresLeaveRepository) ListLeaveRequests(ctx context.Context, employeeID string, from, to time.Time) ([]domain.LeaveRequest, error) {
	const op = "leave.list"
	query := `
		SELECT employee_id, start_date, end_date, status
		FROM leave_requests
		WHERE employee_id = $1
		  AND status = $2
		  AND start_date <= $4
		  AND end_date >= $3
		ORDER BY start_date
	`
	rows, err := r.db.QueryContext(ctx, query, employeeID, domain.LeaveApproved, from, to)
	if err != nil {
		return nil, Unavailable(op, err)
	}
	defer rows.Close()

	requests := []domain.LeaveRequest{}
	for rows.Next() {
		var l domain.LeaveRequest
		if err := rows.Scan(&l.EmployeeID, &l.StartDate, &l.EndDate, &l.Status); err != nil {
			return nil, Unavailable(op, fmt.Errorf("scan leave request: %w", err))
		}
		l.StartDate = l.StartDate.UTC()
		l.EndDate = l.EndDate.UTC()
		requests = append(requests, l)
	}
	if err := rows.Err(); err != nil {
		return nil, Unavailable(op, err)
	}
	return requests, nil
}

func (r *PostgresLeaveRepository) ReplaceEmployeeLeave(ctx context.Context, employee domain.Employee, requests []domain.LeaveRequest) error {
	const op = "leave.replace"
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Unavailable(op, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO employees (employee_id, email)
		VALUES ($1, LOWER($2))
		ON CONFLICT (employee_id) DO UPDATE SET email = EXCLUDED.email
	`, employee.EmployeeID, employee.Email)
	if err != nil {
		return Unavailable(op, fmt.Errorf("upsert employee: %w", err))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM leave_requests WHERE employee_id = $1`, employee.EmployeeID); err != nil {
		return Unavailable(op, fmt.Errorf("clear leave: %w", err))
	}

	for _, l := range requests {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO leave_requests (employee_id, start_date, end_date, status)
			VALUES ($1, $2, $3, $4)
		`, employee.EmployeeID, l.StartDate, l.EndDate, l.Status)
		if err != nil {
			return Unavailable(op, fmt.Errorf("insert leave: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return Unavailable(op, err)
	}
	return nil
}

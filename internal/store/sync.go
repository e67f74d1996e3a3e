package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"adviser-allocation/internal/calendar"
)

// SyncLeave refreshes the cached employee roster and approved leave from
// HR. The engine only ever reads the cached records, so a failed sync
// degrades to slightly stale leave rather than failed allocations.
func (s *Store) SyncLeave(ctx context.Context, horizonWeeks int) error {
	employees, err := s.hr.ListEmployees(ctx)
	if err != nil {
		return err
	}

	today := calendar.CivilDate(time.Now(), time.UTC)
	from := calendar.AddWeeks(calendar.MondayOf(today), -8)
	to := calendar.AddWeeks(calendar.MondayOf(today), horizonWeeks)

	synced := 0
	for _, employee := range employees {
		leave, err := s.hr.ListApprovedLeave(ctx, employee.EmployeeID, from, to)
		if err != nil {
			s.logger.Warn("Failed to fetch leave for employee",
				zap.String("employee_id", employee.EmployeeID),
				zap.Error(err),
			)
			continue
		}
		if err := s.leave.ReplaceEmployeeLeave(ctx, employee, leave); err != nil {
			s.logger.Warn("Failed to persist leave for employee",
				zap.String("employee_id", employee.EmployeeID),
				zap.Error(err),
			)
			continue
		}
		synced++
	}

	s.logger.Info("Leave sync complete",
		zap.Int("employees", len(employees)),
		zap.Int("synced", synced),
	)
	return nil
}

// RunLeaveSync runs SyncLeave on a fixed interval until ctx is cancelled.
func (s *Store) RunLeaveSync(ctx context.Context, interval time.Duration, horizonWeeks int) {
	if err := s.SyncLeave(ctx, horizonWeeks); err != nil {
		s.logger.Error("Initial leave sync failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SyncLeave(ctx, horizonWeeks); err != nil {
				s.logger.Error("Leave sync failed", zap.Error(err))
			}
		}
	}
}

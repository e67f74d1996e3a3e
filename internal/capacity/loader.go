package capacity

import (
	"context"
	"fmt"
	"time"

	"adviser-allocation/internal/calendar"
	"adviser-allocation/internal/domain"
)

// Source is the slice of the store the engine reads from.
type Source interface {
	GetMeetings(ctx context.Context, adviserID string, fromMonday, toMonday time.Time) ([]domain.Meeting, error)
	GetDealsWithoutClarify(ctx context.Context, adviserID string, beforeMonday time.Time) ([]domain.Deal, error)
	GetLeaveRequests(ctx context.Context, adviserEmail string, from, to time.Time) ([]domain.LeaveRequest, error)
	GetGlobalClosures(ctx context.Context, from, to time.Time) ([]domain.OfficeClosure, error)
	GetAdviserClosures(ctx context.Context, adviserEmail string, from, to time.Time) ([]domain.OfficeClosure, error)
	ListCapacityOverrides(ctx context.Context, adviserEmail string) ([]domain.CapacityOverride, error)
}

// LoadOptions tune the projection.
type LoadOptions struct {
	PrestartWeeks int
	HorizonWeeks  int
	HistoryWeeks  int // pre-baseline display weeks (meetings window)
}

// meetingsHistoryWeeks is how far before the baseline meetings are fetched.
const meetingsHistoryWeeks = 8

// Load fetches one adviser's inputs from the store and builds the schedule
// at the given baseline Monday.
func Load(ctx context.Context, src Source, adviser domain.Adviser, baseline time.Time, opts LoadOptions) (*Schedule, error) {
	horizon := opts.HorizonWeeks
	if horizon <= 0 {
		horizon = DefaultHorizonWeeks
	}
	history := opts.HistoryWeeks
	if history < 0 || history > meetingsHistoryWeeks {
		history = meetingsHistoryWeeks
	}

	from := calendar.AddWeeks(baseline, -meetingsHistoryWeeks)
	to := calendar.AddWeeks(baseline, horizon)

	meetings, err := src.GetMeetings(ctx, adviser.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load meetings for %s: %w", adviser.Email, err)
	}
	openDeals, err := src.GetDealsWithoutClarify(ctx, adviser.ID, to)
	if err != nil {
		return nil, fmt.Errorf("load open deals for %s: %w", adviser.Email, err)
	}
	leave, err := src.GetLeaveRequests(ctx, adviser.Email, from, to)
	if err != nil {
		return nil, fmt.Errorf("load leave for %s: %w", adviser.Email, err)
	}
	global, err := src.GetGlobalClosures(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load global closures: %w", err)
	}
	scoped, err := src.GetAdviserClosures(ctx, adviser.Email, from, to)
	if err != nil {
		return nil, fmt.Errorf("load adviser closures for %s: %w", adviser.Email, err)
	}
	overrides, err := src.ListCapacityOverrides(ctx, adviser.Email)
	if err != nil {
		return nil, fmt.Errorf("load overrides for %s: %w", adviser.Email, err)
	}

	in := Inputs{
		Adviser:       adviser,
		PrestartWeeks: opts.PrestartWeeks,
		HorizonWeeks:  horizon,
		HistoryWeeks:  history,
		Meetings:      meetings,
		OpenDeals:     openDeals,
		Leave:         leave,
		Closures:      append(global, scoped...),
		Overrides:     overrides,
	}
	return Build(in, baseline), nil
}

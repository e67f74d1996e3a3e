package repository

import (
	"context"
	"time"

	"adviser-allocation/internal/domain"
)

// OverridesRepository manages adviser capacity overrides.
type OverridesRepository interface {
	GetOverride(ctx context.Context, id string) (*domain.CapacityOverride, error)

	// GetActiveOverride returns the override with the greatest effective
	// date on or before asOf, or a KindNotFound failure when none applies.
	GetActiveOverride(ctx context.Context, adviserEmail string, asOf time.Time) (*domain.CapacityOverride, error)

	// ListOverridesForAdviser returns the adviser's overrides ordered by
	// effective date ascending (the engine walks this schedule per week).
	ListOverridesForAdviser(ctx context.Context, adviserEmail string) ([]domain.CapacityOverride, error)

	// ListOverrides returns every override ordered by adviser then date.
	ListOverrides(ctx context.Context) ([]domain.CapacityOverride, error)

	CreateOverride(ctx context.Context, o *domain.CapacityOverride) (string, error)
	UpdateOverride(ctx context.Context, id string, o *domain.CapacityOverride) error
	DeleteOverride(ctx context.Context, id string) error
}

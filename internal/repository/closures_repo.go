package repository

import (
	"context"
	"time"

	"adviser-allocation/internal/domain"
)

// ClosuresRepository manages office closures (global and adviser-scoped).
// Reads are range queries over [from, to] on civil dates; a closure is
// returned when its period intersects the range.
type ClosuresRepository interface {
	GetClosure(ctx context.Context, id string) (*domain.OfficeClosure, error)

	// ListGlobalClosures returns office-wide closures intersecting [from, to].
	ListGlobalClosures(ctx context.Context, from, to time.Time) ([]domain.OfficeClosure, error)

	// ListAdviserClosures returns closures scoped to the adviser email
	// intersecting [from, to].
	ListAdviserClosures(ctx context.Context, adviserEmail string, from, to time.Time) ([]domain.OfficeClosure, error)

	// ListClosures returns every closure ordered by start date (admin view).
	ListClosures(ctx context.Context) ([]domain.OfficeClosure, error)

	CreateClosure(ctx context.Context, c *domain.OfficeClosure) (string, error)
	UpdateClosure(ctx context.Context, id string, c *domain.OfficeClosure) error
	DeleteClosure(ctx context.Context, id string) error
}

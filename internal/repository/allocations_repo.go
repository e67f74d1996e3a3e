package repository

import (
	"context"

	"adviser-allocation/internal/domain"
)

// AllocationsRepository persists allocation records. PutAllocationRecord is
// idempotent per deal: re-issuing for the same deal updates the existing
// record in place, last writer wins by decided_at.
type AllocationsRepository interface {
	PutAllocationRecord(ctx context.Context, record *domain.AllocationRecord) (string, error)
	GetAllocationByDeal(ctx context.Context, dealID string) (*domain.AllocationRecord, error)
	ListAllocations(ctx context.Context, limit int) ([]domain.AllocationRecord, error)
}

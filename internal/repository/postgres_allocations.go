package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"adviser-allocation/internal/domain"
)

// PostgresAllocationsRepository implements AllocationsRepository on the
// allocation_records table. deal_id carries a unique constraint; the upsert
// keeps the original allocation_id so repeated allocations of one deal
// return a stable record id.
type PostgresAllocationsRepository struct {
	db *sql.DB
}

func NewPostgresAllocationsRepository(db *sql.DB) *PostgresAllocationsRepository {
	return &PostgresAllocationsRepository{db: db}
}

var _ AllocationsRepository = (*PostgresAllocationsRepository)(nil)

const allocationColumns = `
	allocation_id::text,
	deal_id,
	adviser_id,
	adviser_email,
	service_package,
	COALESCE(household_type, '') AS household_type,
	earliest_week,
	decided_at,
	COALESCE(requester_ip, '') AS requester_ip,
	COALESCE(user_agent, '') AS user_agent,
	COALESCE(extra, '{}'::jsonb) AS extra
`

func (r *PostgresAllocationsRepository) PutAllocationRecord(ctx context.Context, record *domain.AllocationRecord) (string, error) {
	const op = "allocations.put"
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	// Conditional write: the existing row is only replaced by a decision
	// taken at the same time or later (last-writer-wins by decided_at).
	query := `
		INSERT INTO allocation_records
			(allocation_id, deal_id, adviser_id, adviser_email, service_package,
			 household_type, earliest_week, decided_at, requester_ip, user_agent, extra)
		VALUES ($1::uuid, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11)
		ON CONFLICT (deal_id) DO UPDATE SET
			adviser_id = EXCLUDED.adviser_id,
			adviser_email = EXCLUDED.adviser_email,
			service_package = EXCLUDED.service_package,
			household_type = EXCLUDED.household_type,
			earliest_week = EXCLUDED.earliest_week,
			decided_at = EXCLUDED.decided_at,
			requester_ip = EXCLUDED.requester_ip,
			user_agent = EXCLUDED.user_agent,
			extra = EXCLUDED.extra
		WHERE allocation_records.decided_at <= EXCLUDED.decided_at
		RETURNING allocation_id::text
	`
	extra := record.Extra
	if len(extra) == 0 {
		extra = []byte(`{}`)
	}
	var id string
	err := r.db.QueryRowContext(ctx, query,
		record.ID, record.DealID, record.AdviserID, record.AdviserEmail, record.ServicePackage,
		record.HouseholdType, record.EarliestWeek, record.DecidedAt, record.RequesterIP,
		record.UserAgent, []byte(extra),
	).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			// A newer decision already exists for this deal.
			return "", NewFailure(KindConflict, op, fmt.Errorf("deal %s has a newer record", record.DealID))
		}
		return "", Unavailable(op, err)
	}
	record.ID = id
	return id, nil
}

func (r *PostgresAllocationsRepository) GetAllocationByDeal(ctx context.Context, dealID string) (*domain.AllocationRecord, error) {
	const op = "allocations.get_by_deal"
	query := fmt.Sprintf(`SELECT %s FROM allocation_records WHERE deal_id = $1`, allocationColumns)

	rec, err := scanAllocation(r.db.QueryRowContext(ctx, query, dealID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, NotFound(op)
		}
		return nil, Unavailable(op, err)
	}
	return rec, nil
}

func (r *PostgresAllocationsRepository) ListAllocations(ctx context.Context, limit int) ([]domain.AllocationRecord, error) {
	const op = "allocations.list"
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
		SELECT %s FROM allocation_records
		ORDER BY decided_at DESC
		LIMIT $1
	`, allocationColumns)

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, Unavailable(op, err)
	}
	defer rows.Close()

	records := []domain.AllocationRecord{}
	for rows.Next() {
		rec, err := scanAllocation(rows)
		if err != nil {
			return nil, Unavailable(op, fmt.Errorf("scan allocation: %w", err))
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, Unavailable(op, err)
	}
	return records, nil
}

func scanAllocation(row interface{ Scan(...any) error }) (*domain.AllocationRecord, error) {
	var rec domain.AllocationRecord
	var extra []byte
	if err := row.Scan(
		&rec.ID, &rec.DealID, &rec.AdviserID, &rec.AdviserEmail, &rec.ServicePackage,
		&rec.HouseholdType, &rec.EarliestWeek, &rec.DecidedAt, &rec.RequesterIP,
		&rec.UserAgent, &extra,
	); err != nil {
		return nil, err
	}
	rec.EarliestWeek = rec.EarliestWeek.UTC()
	rec.DecidedAt = rec.DecidedAt.UTC()
	rec.Extra = extra
	return &rec, nil
}

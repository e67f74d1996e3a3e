package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"adviser-allocation/internal/domain"
)

// PostgresOverridesRepository implements OverridesRepository on the
// capacity_overrides table.
type PostgresOverridesRepository struct {
	db *sql.DB
}

func NewPostgresOverridesRepository(db *sql.DB) *PostgresOverridesRepository {
	return &PostgresOverridesRepository{db: db}
}

var _ OverridesRepository = (*PostgresOverridesRepository)(nil)

const overrideColumns = `
	override_id::text,
	adviser_email,
	effective_date,
	client_limit_monthly,
	COALESCE(pod_type, '') AS pod_type,
	COALESCE(notes, '') AS notes
`

func scanOverride(row interface{ Scan(...any) error }) (*domain.CapacityOverride, error) {
	var o domain.CapacityOverride
	if err := row.Scan(&o.ID, &o.AdviserEmail, &o.EffectiveDate, &o.ClientLimitMonthly, &o.PodType, &o.Notes); err != nil {
		return nil, err
	}
	o.EffectiveDate = o.EffectiveDate.UTC()
	return &o, nil
}

func (r *PostgresOverridesRepository) GetOverride(ctx context.Context, id string) (*domain.CapacityOverride, error) {
	const op = "overrides.get"
	query := fmt.Sprintf(`SELECT %s FROM capacity_overrides WHERE override_id = $1::uuid`, overrideColumns)

	o, err := scanOverride(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, NotFound(op)
		}
		return nil, Unavailable(op, err)
	}
	return o, nil
}

func (r *PostgresOverridesRepository) GetActiveOverride(ctx context.Context, adviserEmail string, asOf time.Time) (*domain.CapacityOverride, error) {
	const op = "overrides.get_active"
	query := fmt.Sprintf(`
		SELECT %s
		FROM capacity_overrides
		WHERE LOWER(adviser_email) = LOWER($1)
		  AND effective_date <= $2
		ORDER BY effective_date DESC
		LIMIT 1
	`, overrideColumns)

	o, err := scanOverride(r.db.QueryRowContext(ctx, query, adviserEmail, asOf))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, NotFound(op)
		}
		return nil, Unavailable(op, err)
	}
	return o, nil
}

func (r *PostgresOverridesRepository) ListOverridesForAdviser(ctx context.Context, adviserEmail string) ([]domain.CapacityOverride, error) {
	const op = "overrides.list_adviser"
	query := fmt.Sprintf(`
		SELECT %s
		FROM capacity_overrides
		WHERE LOWER(adviser_email) = LOWER($1)
		ORDER BY effective_date
	`, overrideColumns)
	return r.queryOverrides(ctx, op, query, adviserEmail)
}

func (r *PostgresOverridesRepository) ListOverrides(ctx context.Context) ([]domain.CapacityOverride, error) {
	const op = "overrides.list"
	query := fmt.Sprintf(`
		SELECT %s
		FROM capacity_overrides
		ORDER BY adviser_email, effective_date
	`, overrideColumns)
	return r.queryOverrides(ctx, op, query)
}

func (r *PostgresOverridesRepository) queryOverrides(ctx context.Context, op, query string, args ...any) ([]domain.CapacityOverride, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Unavailable(op, err)
	}
	defer rows.Close()

	overrides := []domain.CapacityOverride{}
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, Unavailable(op, fmt.Errorf("scan override: %w", err))
		}
		overrides = append(overrides, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, Unavailable(op, err)
	}
	return overrides, nil
}

func (r *PostgresOverridesRepository) CreateOverride(ctx context.Context, o *domain.CapacityOverride) (string, error) {
	const op = "overrides.create"
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	query := `
		INSERT INTO capacity_overrides (override_id, adviser_email, effective_date, client_limit_monthly, pod_type, notes)
		VALUES ($1::uuid, LOWER($2), $3, $4, NULLIF($5, ''), NULLIF($6, ''))
	`
	_, err := r.db.ExecContext(ctx, query,
		o.ID, o.AdviserEmail, o.EffectiveDate, o.ClientLimitMonthly, o.PodType, o.Notes)
	if err != nil {
		return "", Unavailable(op, err)
	}
	return o.ID, nil
}

func (r *PostgresOverridesRepository) UpdateOverride(ctx context.Context, id string, o *domain.CapacityOverride) error {
	const op = "overrides.update"
	query := `
		UPDATE capacity_overrides
		SET adviser_email = LOWER($2), effective_date = $3, client_limit_monthly = $4,
		    pod_type = NULLIF($5, ''), notes = NULLIF($6, '')
		WHERE override_id = $1::uuid
	`
	res, err := r.db.ExecContext(ctx, query,
		id, o.AdviserEmail, o.EffectiveDate, o.ClientLimitMonthly, o.PodType, o.Notes)
	if err != nil {
		return Unavailable(op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NotFound(op)
	}
	return nil
}

func (r *PostgresOverridesRepository) DeleteOverride(ctx context.Context, id string) error {
	const op = "overrides.delete"
	res, err := r.db.ExecContext(ctx, `DELETE FROM capacity_overrides WHERE override_id = $1::uuid`, id)
	if err != nil {
		return Unavailable(op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NotFound(op)
	}
	return nil
}

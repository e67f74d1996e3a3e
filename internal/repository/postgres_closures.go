package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"adviser-allocation/internal/domain"
)

// PostgresClosuresRepository implements ClosuresRepository on the
// office_closures table.
type PostgresClosuresRepository struct {
	db *sql.DB
}

func NewPostgresClosuresRepository(db *sql.DB) *PostgresClosuresRepository {
	return &PostgresClosuresRepository{db: db}
}

var _ ClosuresRepository = (*PostgresClosuresRepository)(nil)

const closureColumns = `
	closure_id::text,
	start_date,
	end_date,
	COALESCE(description, '') AS description,
	COALESCE(tags, '{}') AS tags,
	COALESCE(adviser_email, '') AS adviser_email
`

func scanClosure(row interface{ Scan(...any) error }) (*domain.OfficeClosure, error) {
	var c domain.OfficeClosure
	var tags pq.StringArray
	if err := row.Scan(&c.ID, &c.StartDate, &c.EndDate, &c.Description, &tags, &c.AdviserEmail); err != nil {
		return nil, err
	}
	c.Tags = tags
	c.StartDate = c.StartDate.UTC()
	c.EndDate = c.EndDate.UTC()
	return &c, nil
}

func (r *PostgresClosuresRepository) GetClosure(ctx context.Context, id string) (*domain.OfficeClosure, error) {
	const op = "closures.get"
	query := fmt.Sprintf(`SELECT %s FROM office_closures WHERE closure_id = $1::uuid`, closureColumns)

	c, err := scanClosure(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, NotFound(op)
		}
		return nil, Unavailable(op, err)
	}
	return c, nil
}

func (r *PostgresClosuresRepository) ListGlobalClosures(ctx context.Context, from, to time.Time) ([]domain.OfficeClosure, error) {
	const op = "closures.list_global"
	query := fmt.Sprintf(`
		SELECT %s
		FROM office_closures
		WHERE adviser_email IS NULL
		  AND start_date <= $2
		  AND end_date >= $1
		ORDER BY start_date
	`, closureColumns)
	return r.queryClosures(ctx, op, query, from, to)
}

func (r *PostgresClosuresRepository) ListAdviserClosures(ctx context.Context, adviserEmail string, from, to time.Time) ([]domain.OfficeClosure, error) {
	const op = "closures.list_adviser"
	query := fmt.Sprintf(`
		SELECT %s
		FROM office_closures
		WHERE LOWER(adviser_email) = LOWER($3)
		  AND start_date <= $2
		  AND end_date >= $1
		ORDER BY start_date
	`, closureColumns)
	return r.queryClosures(ctx, op, query, from, to, adviserEmail)
}

func (r *PostgresClosuresRepository) ListClosures(ctx context.Context) ([]domain.OfficeClosure, error) {
	const op = "closures.list"
	query := fmt.Sprintf(`SELECT %s FROM office_closures ORDER BY start_date, closure_id`, closureColumns)
	return r.queryClosures(ctx, op, query)
}

func (r *PostgresClosuresRepository) queryClosures(ctx context.Context, op, query string, args ...any) ([]domain.OfficeClosure, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Unavailable(op, err)
	}
	defer rows.Close()

	closures := []domain.OfficeClosure{}
	for rows.Next() {
		c, err := scanClosure(rows)
		if err != nil {
			return nil, Unavailable(op, fmt.Errorf("scan closure: %w", err))
		}
		closures = append(closures, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, Unavailable(op, err)
	}
	return closures, nil
}

func (r *PostgresClosuresRepository) CreateClosure(ctx context.Context, c *domain.OfficeClosure) (string, error) {
	const op = "closures.create"
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	query := `
		INSERT INTO office_closures (closure_id, start_date, end_date, description, tags, adviser_email)
		VALUES ($1::uuid, $2, $3, $4, $5, NULLIF($6, ''))
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.StartDate, c.EndDate, c.Description, pq.StringArray(c.Tags), c.AdviserEmail)
	if err != nil {
		return "", Unavailable(op, err)
	}
	return c.ID, nil
}

func (r *PostgresClosuresRepository) UpdateClosure(ctx context.Context, id string, c *domain.OfficeClosure) error {
	const op = "closures.update"
	query := `
		UPDATE office_closures
		SET start_date = $2, end_date = $3, description = $4, tags = $5, adviser_email = NULLIF($6, '')
		WHERE closure_id = $1::uuid
	`
	res, err := r.db.ExecContext(ctx, query,
		id, c.StartDate, c.EndDate, c.Description, pq.StringArray(c.Tags), c.AdviserEmail)
	if err != nil {
		return Unavailable(op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NotFound(op)
	}
	return nil
}

func (r *PostgresClosuresRepository) DeleteClosure(ctx context.Context, id string) error {
	const op = "closures.delete"
	res, err := r.db.ExecContext(ctx, `DELETE FROM office_closures WHERE closure_id = $1::uuid`, id)
	if err != nil {
		return Unavailable(op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NotFound(op)
	}
	return nil
}

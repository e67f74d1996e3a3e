package repository

import (
	"context"
	"database/sql"
	"strconv"
)

// SettingsRepository reads the system_settings key/value table. Adjacent
// subsystems own most keys; this service reads prestart_weeks only.
type SettingsRepository interface {
	// GetInt returns the integer value for key, or def when the key is
	// absent or not an integer.
	GetInt(ctx context.Context, key string, def int) (int, error)
}

const SettingPrestartWeeks = "prestart_weeks"

// PostgresSettingsRepository implements SettingsRepository.
type PostgresSettingsRepository struct {
	db *sql.DB
}

func NewPostgresSettingsRepository(db *sql.DB) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{db: db}
}

var _ SettingsRepository = (*PostgresSettingsRepository)(nil)

func (r *PostgresSettingsRepository) GetInt(ctx context.Context, key string, def int) (int, error) {
	const op = "settings.get_int"
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM system_settings WHERE key = $1`, key).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return def, nil
		}
		return def, Unavailable(op, err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def, nil
	}
	return v, nil
}

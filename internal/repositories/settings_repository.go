package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/jmoiron/sqlx"
)

const maintenanceKey = "maintenance_mode"

// SettingsRepository reads process-wide switches.
type SettingsRepository interface {
	GetMaintenanceFlag(ctx context.Context) (bool, error)
}

// SettingsRepo is a sqlx implementation of SettingsRepository.
type SettingsRepo struct {
	db *sqlx.DB
}

// NewSettingsRepo constructs a SettingsRepo.
func NewSettingsRepo(db *sqlx.DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

// GetMaintenanceFlag reports whether maintenance mode is on. A missing row means off.
func (r *SettingsRepo) GetMaintenanceFlag(ctx context.Context) (bool, error) {
	var value string
	err := r.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key=$1`, maintenanceKey)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return false, err
	}
	return enabled, nil
}

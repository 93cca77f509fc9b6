package persistence

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lotledger/backend/internal/domain/shared"
)

// TenantSetting is a tenant-scoped key-value row, addressed by group and key.
// The lot counter lives here under group "inventory".
type TenantSetting struct {
	shared.BaseEntity
	TenantID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uniq_tenant_settings_key,priority:1"`
	SettingGroup string    `gorm:"type:varchar(50);not null;uniqueIndex:uniq_tenant_settings_key,priority:2"`
	SettingKey   string    `gorm:"type:varchar(100);not null;uniqueIndex:uniq_tenant_settings_key,priority:3"`
	Value        string    `gorm:"type:varchar(1000);not null"`
}

// TableName returns the table name for GORM
func (TenantSetting) TableName() string {
	return "tenant_settings"
}

// GormSettingsRepository implements shared.SettingsStore using GORM
type GormSettingsRepository struct {
	db *gorm.DB
}

// NewGormSettingsRepository creates a new GormSettingsRepository
func NewGormSettingsRepository(db *gorm.DB) *GormSettingsRepository {
	return &GormSettingsRepository{db: db}
}

// Get reads a setting value. A missing key returns shared.ErrNotFound.
func (r *GormSettingsRepository) Get(ctx context.Context, tenantID uuid.UUID, group, key string) (string, error) {
	var setting TenantSetting
	if err := r.db.WithContext(ctx).
		First(&setting, "tenant_id = ? AND setting_group = ? AND setting_key = ?", tenantID, group, key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", shared.ErrNotFound
		}
		return "", err
	}
	return setting.Value, nil
}

// Set writes a setting value, inserting or overwriting as needed.
func (r *GormSettingsRepository) Set(ctx context.Context, tenantID uuid.UUID, group, key, value string) error {
	setting := TenantSetting{
		BaseEntity:   shared.NewBaseEntity(),
		TenantID:     tenantID,
		SettingGroup: group,
		SettingKey:   key,
		Value:        value,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "setting_group"}, {Name: "setting_key"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"value":      value,
				"updated_at": time.Now(),
			}),
		}).
		Create(&setting).Error
}

// Increment advances a numeric setting by one and returns the new value. The
// advance runs as a single upsert in the database, so concurrent increments
// for the same key each get a distinct value. A missing key counts as zero,
// which makes the first increment return 1.
func (r *GormSettingsRepository) Increment(ctx context.Context, tenantID uuid.UUID, group, key string) (int64, error) {
	setting := TenantSetting{
		BaseEntity:   shared.NewBaseEntity(),
		TenantID:     tenantID,
		SettingGroup: group,
		SettingKey:   key,
		Value:        "1",
	}
	if err := r.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns: []clause.Column{{Name: "tenant_id"}, {Name: "setting_group"}, {Name: "setting_key"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"value":      gorm.Expr("CAST(CAST(tenant_settings.value AS BIGINT) + 1 AS VARCHAR)"),
					"updated_at": time.Now(),
				}),
			},
			clause.Returning{Columns: []clause.Column{{Name: "value"}}},
		).
		Create(&setting).Error; err != nil {
		return 0, err
	}

	value, err := strconv.ParseInt(setting.Value, 10, 64)
	if err != nil {
		return 0, err
	}
	return value, nil
}

// Ensure GormSettingsRepository implements shared.SettingsStore
var _ shared.SettingsStore = (*GormSettingsRepository)(nil)

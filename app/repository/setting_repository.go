package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/Bizdir/app/models"
)

// settingRepository implements the SettingRepository interface
type settingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a new setting repository instance
func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &settingRepository{db: db}
}

// GetValue retrieves a specific setting value by key; a missing setting
// reads as the empty string
func (r *settingRepository) GetValue(ctx context.Context, key string) (string, error) {
	var setting models.Setting
	res := r.db.WithContext(ctx).Where("setting_key = ?", key).Limit(1).Find(&setting)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", nil
	}
	return setting.Value, nil
}

// SetValue upserts a setting in a single statement so concurrent admin
// writes cannot interleave a read and a write.
func (r *settingRepository) SetValue(ctx context.Context, key, value string) error {
	setting := models.Setting{
		Key:   key,
		Value: value,
		Type:  models.SettingType(key),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "type", "updated_at"}),
	}).Create(&setting).Error
}

package settings

import (
	"context"

	"github.com/angelmondragon/tabletloan-backend/internal/repo"
	"github.com/angelmondragon/tabletloan-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository reads and writes the global settings row.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Find(ctx context.Context) (*models.GlobalSettings, error) {
	var row models.GlobalSettings
	if err := r.DB(ctx).Where("id = ?", models.GlobalSettingsID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Upsert writes the singleton row, creating it on first use.
func (r *Repository) Upsert(ctx context.Context, row *models.GlobalSettings) error {
	row.ID = models.GlobalSettingsID
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"device_model_label", "stylus_label", "updated_at"}),
	}).Create(row).Error
}

package exports

import (
	"context"
	"strings"

	"github.com/angelmondragon/tabletloan-backend/internal/repo"
	"github.com/angelmondragon/tabletloan-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) ListDevices(ctx context.Context) ([]models.Device, error) {
	var rows []models.Device
	err := r.DB(ctx).Order("asset_tag").Find(&rows).Error
	return rows, err
}

// ListActive returns active assignments narrowed by filter, ordered by
// borrower name.
func (r *Repository) ListActive(ctx context.Context, filter Filter) ([]models.Assignment, error) {
	query := r.DB(ctx).
		Model(&models.Assignment{}).
		Select("assignments.*").
		Joins("JOIN persons ON persons.id = assignments.person_id").
		Where("assignments.is_active = ?", true)
	if v := strings.TrimSpace(filter.FirstName); v != "" {
		query = query.Where("persons.first_name_key LIKE ?", "%"+models.NameKey(v)+"%")
	}
	if v := strings.TrimSpace(filter.LastName); v != "" {
		query = query.Where("persons.last_name_key LIKE ?", "%"+models.NameKey(v)+"%")
	}
	if v := strings.TrimSpace(filter.ClassName); v != "" {
		query = query.Where("persons.class_key = ?", models.NameKey(v))
	}
	if v := strings.TrimSpace(filter.AssetTag); v != "" {
		query = query.Where("assignments.asset_tag = ?", v)
	}
	var rows []models.Assignment
	err := query.
		Order("persons.last_name").
		Order("persons.first_name").
		Order("assignments.asset_tag").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListActiveAll(ctx context.Context) ([]models.Assignment, error) {
	var rows []models.Assignment
	err := r.DB(ctx).Where("is_active = ?", true).Find(&rows).Error
	return rows, err
}

func (r *Repository) DevicesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Device, error) {
	out := make(map[uuid.UUID]models.Device, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Device
	if err := r.DB(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *Repository) PersonsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Person, error) {
	out := make(map[uuid.UUID]models.Person, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Person
	if err := r.DB(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

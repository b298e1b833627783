package devices

import (
	"context"
	"strings"

	"github.com/angelmondragon/tabletloan-backend/internal/repo"
	"github.com/angelmondragon/tabletloan-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists devices.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, device *models.Device) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Device, error)
	FindByTag(ctx context.Context, tag string) (*models.Device, error)
	List(ctx context.Context, filter Filter) ([]models.Device, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindActiveAssignment(ctx context.Context, deviceID uuid.UUID) (*models.Assignment, error)
	ListAssignments(ctx context.Context, deviceID uuid.UUID) ([]models.Assignment, error)
	ListContracts(ctx context.Context, assignmentIDs []uuid.UUID) ([]models.Contract, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds a devices repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, device *models.Device) error {
	return r.DB(ctx).Create(device).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	var row models.Device
	if err := r.DB(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindByTag(ctx context.Context, tag string) (*models.Device, error) {
	var row models.Device
	if err := r.DB(ctx).Where("asset_tag = ?", strings.TrimSpace(tag)).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) List(ctx context.Context, filter Filter) ([]models.Device, error) {
	query := r.DB(ctx).Model(&models.Device{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	var rows []models.Device
	if err := query.Order("created_at").Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.DB(ctx).Model(&models.Device{}).Where("id = ?", id).Updates(fields).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).Where("id = ?", id).Delete(&models.Device{}).Error
}

func (r *repository) FindActiveAssignment(ctx context.Context, deviceID uuid.UUID) (*models.Assignment, error) {
	var row models.Assignment
	if err := r.DB(ctx).Where("device_id = ? AND is_active = ?", deviceID, true).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListAssignments(ctx context.Context, deviceID uuid.UUID) ([]models.Assignment, error) {
	var rows []models.Assignment
	err := r.DB(ctx).
		Where("device_id = ?", deviceID).
		Order("assigned_at DESC").Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListContracts(ctx context.Context, assignmentIDs []uuid.UUID) ([]models.Contract, error) {
	if len(assignmentIDs) == 0 {
		return nil, nil
	}
	var rows []models.Contract
	err := r.DB(ctx).
		Where("assignment_id IN ?", assignmentIDs).
		Order("uploaded_at DESC").
		Find(&rows).Error
	return rows, err
}

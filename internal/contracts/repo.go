package contracts

import (
	"context"

	"github.com/angelmondragon/tabletloan-backend/internal/repo"
	"github.com/angelmondragon/tabletloan-backend/pkg/db/models"
	"github.com/angelmondragon/tabletloan-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists contracts and the assignment columns they drive.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, contract *models.Contract) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	ListUnmatched(ctx context.Context) ([]models.Contract, error)
	FindAssignment(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	FindActiveByTagAndName(ctx context.Context, assetTag, firstName, lastName string) ([]models.Assignment, error)
	FindActiveByName(ctx context.Context, firstName, lastName string) ([]models.Assignment, error)
	DeactivateActive(ctx context.Context, assignmentID uuid.UUID) error
	Claim(ctx context.Context, contractID uuid.UUID, assignment *models.Assignment, matchedBy enums.ContractMatch) (bool, error)
	LinkAssignment(ctx context.Context, assignmentID, contractID uuid.UUID, warning bool) (bool, error)
	Unlink(ctx context.Context, contractID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, contract *models.Contract) error {
	return r.DB(ctx).Create(contract).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	var row models.Contract
	if err := r.DB(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListUnmatched(ctx context.Context) ([]models.Contract, error) {
	var rows []models.Contract
	err := r.DB(ctx).
		Where("assignment_id IS NULL").
		Order("uploaded_at DESC").
		Order("id").
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindAssignment(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	var row models.Assignment
	if err := r.DB(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) activeByName(ctx context.Context, firstName, lastName string) *gorm.DB {
	return r.DB(ctx).
		Model(&models.Assignment{}).
		Select("assignments.*").
		Joins("JOIN persons ON persons.id = assignments.person_id").
		Where("assignments.is_active = ?", true).
		Where("persons.first_name_key = ? AND persons.last_name_key = ?", models.NameKey(firstName), models.NameKey(lastName))
}

func (r *repository) FindActiveByTagAndName(ctx context.Context, assetTag, firstName, lastName string) ([]models.Assignment, error) {
	var rows []models.Assignment
	err := r.activeByName(ctx, firstName, lastName).
		Where("assignments.asset_tag = ?", assetTag).
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindActiveByName(ctx context.Context, firstName, lastName string) ([]models.Assignment, error) {
	var rows []models.Assignment
	err := r.activeByName(ctx, firstName, lastName).
		Order("assignments.assigned_at").
		Find(&rows).Error
	return rows, err
}

func (r *repository) DeactivateActive(ctx context.Context, assignmentID uuid.UUID) error {
	return r.DB(ctx).Model(&models.Contract{}).
		Where("assignment_id = ? AND is_active = ?", assignmentID, true).
		Update("is_active", false).Error
}

// Claim binds an unmatched contract to assignment and snapshots its names.
func (r *repository) Claim(ctx context.Context, contractID uuid.UUID, assignment *models.Assignment, matchedBy enums.ContractMatch) (bool, error) {
	return repo.Affected(r.DB(ctx).Model(&models.Contract{}).
		Where("id = ? AND assignment_id IS NULL", contractID).
		Updates(map[string]any{
			"assignment_id": assignment.ID,
			"asset_tag":     assignment.AssetTag,
			"person_name":   assignment.PersonName,
			"matched_by":    matchedBy,
			"is_active":     true,
		}))
}

// LinkAssignment points an active assignment at contractID and resets the
// dismissal so a fresh warning is visible again.
func (r *repository) LinkAssignment(ctx context.Context, assignmentID, contractID uuid.UUID, warning bool) (bool, error) {
	return repo.Affected(r.DB(ctx).Model(&models.Assignment{}).
		Where("id = ? AND is_active = ?", assignmentID, true).
		Updates(map[string]any{
			"contract_id":       contractID,
			"contract_warning":  warning,
			"warning_dismissed": false,
		}))
}

func (r *repository) Unlink(ctx context.Context, contractID uuid.UUID) error {
	return r.DB(ctx).Model(&models.Assignment{}).
		Where("contract_id = ?", contractID).
		Updates(map[string]any{
			"contract_id":       nil,
			"contract_warning":  false,
			"warning_dismissed": false,
		}).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).Where("id = ?", id).Delete(&models.Contract{}).Error
}

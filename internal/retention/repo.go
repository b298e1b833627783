package retention

import (
	"context"
	"time"

	"github.com/angelmondragon/tabletloan-backend/internal/repo"
	"github.com/angelmondragon/tabletloan-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	BackfillPersons(ctx context.Context, at time.Time) (int64, error)
	BackfillContracts(ctx context.Context, at time.Time) (int64, error)
	ListExpiredPersons(ctx context.Context, cutoff time.Time) ([]models.Person, error)
	ListExpiredContracts(ctx context.Context, cutoff time.Time) ([]models.Contract, error)
	FindPerson(ctx context.Context, id uuid.UUID) (*models.Person, error)
	HasActiveAssignment(ctx context.Context, personID uuid.UUID) (bool, error)
	DeletePerson(ctx context.Context, id uuid.UUID) error
	UnlinkContract(ctx context.Context, contractID uuid.UUID) error
	DeleteContract(ctx context.Context, id uuid.UUID) (bool, error)
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

func (r *repository) BackfillPersons(ctx context.Context, at time.Time) (int64, error) {
	res := r.DB(ctx).Model(&models.Person{}).Where("created_at IS NULL").Update("created_at", at)
	return res.RowsAffected, res.Error
}

func (r *repository) BackfillContracts(ctx context.Context, at time.Time) (int64, error) {
	res := r.DB(ctx).Model(&models.Contract{}).Where("uploaded_at IS NULL").Update("uploaded_at", at)
	return res.RowsAffected, res.Error
}

func (r *repository) ListExpiredPersons(ctx context.Context, cutoff time.Time) ([]models.Person, error) {
	var rows []models.Person
	err := r.DB(ctx).
		Where("created_at < ?", cutoff).
		Where("current_assignment_id IS NULL").
		Where("NOT EXISTS (SELECT 1 FROM assignments a WHERE a.person_id = persons.id AND a.is_active = ?)", true).
		Order("created_at").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListExpiredContracts(ctx context.Context, cutoff time.Time) ([]models.Contract, error) {
	var rows []models.Contract
	err := r.DB(ctx).Where("uploaded_at < ?", cutoff).Order("uploaded_at").Find(&rows).Error
	return rows, err
}

func (r *repository) FindPerson(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	var row models.Person
	if err := r.DB(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) HasActiveAssignment(ctx context.Context, personID uuid.UUID) (bool, error) {
	var n int64
	err := r.DB(ctx).Model(&models.Assignment{}).
		Where("person_id = ? AND is_active = ?", personID, true).
		Count(&n).Error
	return n > 0, err
}

func (r *repository) DeletePerson(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).Where("id = ?", id).Delete(&models.Person{}).Error
}

func (r *repository) UnlinkContract(ctx context.Context, contractID uuid.UUID) error {
	return r.DB(ctx).Model(&models.Assignment{}).
		Where("contract_id = ?", contractID).
		Updates(map[string]any{
			"contract_id":       nil,
			"contract_warning":  false,
			"warning_dismissed": false,
		}).Error
}

func (r *repository) DeleteContract(ctx context.Context, id uuid.UUID) (bool, error) {
	return repo.Affected(r.DB(ctx).Where("id = ?", id).Delete(&models.Contract{}))
}

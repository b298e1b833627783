package persons

import (
	"context"
	"strings"

	"github.com/angelmondragon/tabletloan-backend/internal/repo"
	"github.com/angelmondragon/tabletloan-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists persons.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, person *models.Person) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Person, error)
	FindByKey(ctx context.Context, key Key) ([]models.Person, error)
	List(ctx context.Context, filter Filter) ([]models.Person, error)
	Save(ctx context.Context, person *models.Person) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindActiveAssignment(ctx context.Context, personID uuid.UUID) (*models.Assignment, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds a persons repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, person *models.Person) error {
	return r.DB(ctx).Create(person).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	var row models.Person
	if err := r.DB(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByKey matches names case-insensitively; the class only narrows the
// match when the key carries one.
func (r *repository) FindByKey(ctx context.Context, key Key) ([]models.Person, error) {
	query := r.DB(ctx).
		Where("first_name_key = ? AND last_name_key = ?", models.NameKey(key.FirstName), models.NameKey(key.LastName))
	if key.ClassName != "" {
		query = query.Where("class_key = ?", models.NameKey(key.ClassName))
	}
	var rows []models.Person
	if err := query.Order("created_at IS NULL").Order("created_at").Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) List(ctx context.Context, filter Filter) ([]models.Person, error) {
	query := r.DB(ctx).Model(&models.Person{})
	if v := strings.TrimSpace(filter.FirstName); v != "" {
		query = query.Where("first_name_key LIKE ?", "%"+models.NameKey(v)+"%")
	}
	if v := strings.TrimSpace(filter.LastName); v != "" {
		query = query.Where("last_name_key LIKE ?", "%"+models.NameKey(v)+"%")
	}
	if v := strings.TrimSpace(filter.ClassName); v != "" {
		query = query.Where("class_key = ?", models.NameKey(v))
	}
	var rows []models.Person
	if err := query.Order("last_name").Order("first_name").Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Save writes attribute columns only; the assignment pointer belongs to the
// lifecycle.
func (r *repository) Save(ctx context.Context, person *models.Person) error {
	person.SetKeys()
	return r.DB(ctx).Model(person).Select(
		"short_name", "last_name", "first_name", "class_name", "street", "postal_code", "city", "birth_date",
		"first_name_key", "last_name_key", "class_key",
		"guardian1_last_name", "guardian1_first_name", "guardian1_street", "guardian1_postal_code", "guardian1_city",
		"guardian2_last_name", "guardian2_first_name", "guardian2_street", "guardian2_postal_code", "guardian2_city",
		"updated_at",
	).Updates(person).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).Where("id = ?", id).Delete(&models.Person{}).Error
}

func (r *repository) FindActiveAssignment(ctx context.Context, personID uuid.UUID) (*models.Assignment, error) {
	var row models.Assignment
	if err := r.DB(ctx).Where("person_id = ? AND is_active = ?", personID, true).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

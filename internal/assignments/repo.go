package assignments

import (
	"context"
	"time"

	"github.com/angelmondragon/tabletloan-backend/internal/repo"
	"github.com/angelmondragon/tabletloan-backend/pkg/db/models"
	"github.com/angelmondragon/tabletloan-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists assignments and the device/person back-pointers that
// mirror them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, assignment *models.Assignment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	FindActiveByDevice(ctx context.Context, deviceID uuid.UUID) (*models.Assignment, error)
	List(ctx context.Context, filter ListFilter) ([]models.Assignment, error)
	ListActiveWithoutContract(ctx context.Context) ([]models.Assignment, error)
	FindDevice(ctx context.Context, id uuid.UUID) (*models.Device, error)
	FindPerson(ctx context.Context, id uuid.UUID) (*models.Person, error)
	ClaimDevice(ctx context.Context, deviceID, assignmentID uuid.UUID) (bool, error)
	ClaimPerson(ctx context.Context, personID, assignmentID uuid.UUID) (bool, error)
	Deactivate(ctx context.Context, id uuid.UUID, at time.Time, by *string) (bool, error)
	DeactivateContracts(ctx context.Context, assignmentID uuid.UUID) error
	ReleaseDevice(ctx context.Context, deviceID, assignmentID uuid.UUID, status enums.DeviceStatus) error
	ReleasePerson(ctx context.Context, personID, assignmentID uuid.UUID) error
	SetIdleDeviceStatus(ctx context.Context, deviceID uuid.UUID, status enums.DeviceStatus) (bool, error)
	ListDanglingDevices(ctx context.Context) ([]models.Device, error)
	ClearDanglingPointer(ctx context.Context, deviceID uuid.UUID) (bool, error)
	ListUnassignedPersons(ctx context.Context) ([]models.Person, error)
	ListAvailableDevices(ctx context.Context) ([]models.Device, error)
	DismissWarning(ctx context.Context, id uuid.UUID) (bool, error)
	ListIDs(ctx context.Context, scope PurgeScope) ([]uuid.UUID, error)
	ListContractsForPurge(ctx context.Context, assignmentIDs []uuid.UUID, personName string) ([]models.Contract, error)
	DeleteContracts(ctx context.Context, ids []uuid.UUID) (int64, error)
	DeleteAssignments(ctx context.Context, ids []uuid.UUID) (int64, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds an assignments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.DB(ctx).Create(assignment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	var row models.Assignment
	if err := r.DB(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindActiveByDevice(ctx context.Context, deviceID uuid.UUID) (*models.Assignment, error) {
	var row models.Assignment
	err := r.DB(ctx).
		Where("device_id = ? AND is_active = ?", deviceID, true).
		Order("assigned_at DESC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Assignment, error) {
	query := r.DB(ctx).Model(&models.Assignment{})
	if !filter.IncludeInactive {
		query = query.Where("is_active = ?", true)
	}
	if filter.DeviceID != nil {
		query = query.Where("device_id = ?", *filter.DeviceID)
	}
	if filter.PersonID != nil {
		query = query.Where("person_id = ?", *filter.PersonID)
	}
	var rows []models.Assignment
	if err := query.Order("assigned_at DESC").Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListActiveWithoutContract(ctx context.Context) ([]models.Assignment, error) {
	var rows []models.Assignment
	err := r.DB(ctx).
		Where("is_active = ? AND contract_id IS NULL", true).
		Order("person_name").Order("id").
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindDevice(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	var row models.Device
	if err := r.DB(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindPerson(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	var row models.Person
	if err := r.DB(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ClaimDevice(ctx context.Context, deviceID, assignmentID uuid.UUID) (bool, error) {
	return repo.Affected(r.DB(ctx).Model(&models.Device{}).
		Where("id = ? AND status = ? AND current_assignment_id IS NULL", deviceID, enums.DeviceStatusAvailable).
		Updates(map[string]any{
			"status":                enums.DeviceStatusAssigned,
			"current_assignment_id": assignmentID,
		}))
}

func (r *repository) ClaimPerson(ctx context.Context, personID, assignmentID uuid.UUID) (bool, error) {
	return repo.Affected(r.DB(ctx).Model(&models.Person{}).
		Where("id = ? AND current_assignment_id IS NULL", personID).
		Update("current_assignment_id", assignmentID))
}

func (r *repository) Deactivate(ctx context.Context, id uuid.UUID, at time.Time, by *string) (bool, error) {
	return repo.Affected(r.DB(ctx).Model(&models.Assignment{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]any{
			"is_active":    false,
			"dissolved_at": at,
			"dissolved_by": by,
		}))
}

func (r *repository) DeactivateContracts(ctx context.Context, assignmentID uuid.UUID) error {
	return r.DB(ctx).Model(&models.Contract{}).
		Where("assignment_id = ? AND is_active = ?", assignmentID, true).
		Update("is_active", false).Error
}

// ReleaseDevice clears the device pointer if it still names assignmentID.
// Devices whose pointer was already cleared only take the new status.
func (r *repository) ReleaseDevice(ctx context.Context, deviceID, assignmentID uuid.UUID, status enums.DeviceStatus) error {
	return r.DB(ctx).Model(&models.Device{}).
		Where("id = ? AND (current_assignment_id = ? OR current_assignment_id IS NULL)", deviceID, assignmentID).
		Updates(map[string]any{
			"status":                status,
			"current_assignment_id": nil,
		}).Error
}

func (r *repository) ReleasePerson(ctx context.Context, personID, assignmentID uuid.UUID) error {
	return r.DB(ctx).Model(&models.Person{}).
		Where("id = ? AND current_assignment_id = ?", personID, assignmentID).
		Update("current_assignment_id", nil).Error
}

func (r *repository) SetIdleDeviceStatus(ctx context.Context, deviceID uuid.UUID, status enums.DeviceStatus) (bool, error) {
	return repo.Affected(r.DB(ctx).Model(&models.Device{}).
		Where("id = ? AND current_assignment_id IS NULL", deviceID).
		Update("status", status))
}

func (r *repository) ListDanglingDevices(ctx context.Context) ([]models.Device, error) {
	var rows []models.Device
	err := r.DB(ctx).
		Where("status = ? AND current_assignment_id IS NOT NULL", enums.DeviceStatusAvailable).
		Order("id").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ClearDanglingPointer(ctx context.Context, deviceID uuid.UUID) (bool, error) {
	return repo.Affected(r.DB(ctx).Model(&models.Device{}).
		Where("id = ? AND status = ? AND current_assignment_id IS NOT NULL", deviceID, enums.DeviceStatusAvailable).
		Update("current_assignment_id", nil))
}

func (r *repository) ListUnassignedPersons(ctx context.Context) ([]models.Person, error) {
	var rows []models.Person
	err := r.DB(ctx).
		Where("current_assignment_id IS NULL").
		Order("created_at IS NULL").Order("created_at").Order("id").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListAvailableDevices(ctx context.Context) ([]models.Device, error) {
	var rows []models.Device
	err := r.DB(ctx).
		Where("status = ? AND current_assignment_id IS NULL", enums.DeviceStatusAvailable).
		Order("created_at").Order("id").
		Find(&rows).Error
	return rows, err
}

func (r *repository) DismissWarning(ctx context.Context, id uuid.UUID) (bool, error) {
	return repo.Affected(r.DB(ctx).Model(&models.Assignment{}).
		Where("id = ?", id).
		Update("warning_dismissed", true))
}

func (r *repository) ListIDs(ctx context.Context, scope PurgeScope) ([]uuid.UUID, error) {
	query := r.DB(ctx).Model(&models.Assignment{})
	switch {
	case scope.DeviceID != nil:
		query = query.Where("device_id = ?", *scope.DeviceID)
	case scope.PersonID != nil:
		query = query.Where("person_id = ?", *scope.PersonID)
	default:
		return nil, nil
	}
	var ids []uuid.UUID
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) ListContractsForPurge(ctx context.Context, assignmentIDs []uuid.UUID, personName string) ([]models.Contract, error) {
	if len(assignmentIDs) == 0 && personName == "" {
		return nil, nil
	}
	query := r.DB(ctx).Model(&models.Contract{})
	switch {
	case len(assignmentIDs) > 0 && personName != "":
		query = query.Where("assignment_id IN ? OR LOWER(person_name) = LOWER(?)", assignmentIDs, personName)
	case len(assignmentIDs) > 0:
		query = query.Where("assignment_id IN ?", assignmentIDs)
	default:
		query = query.Where("LOWER(person_name) = LOWER(?)", personName)
	}
	var rows []models.Contract
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) DeleteContracts(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if err := r.DB(ctx).Model(&models.Assignment{}).
		Where("contract_id IN ?", ids).
		Update("contract_id", nil).Error; err != nil {
		return 0, err
	}
	result := r.DB(ctx).Where("id IN ?", ids).Delete(&models.Contract{})
	return result.RowsAffected, result.Error
}

func (r *repository) DeleteAssignments(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if err := r.DB(ctx).Model(&models.Device{}).
		Where("current_assignment_id IN ?", ids).
		Updates(map[string]any{"status": enums.DeviceStatusAvailable, "current_assignment_id": nil}).Error; err != nil {
		return 0, err
	}
	if err := r.DB(ctx).Model(&models.Person{}).
		Where("current_assignment_id IN ?", ids).
		Update("current_assignment_id", nil).Error; err != nil {
		return 0, err
	}
	result := r.DB(ctx).Where("id IN ?", ids).Delete(&models.Assignment{})
	return result.RowsAffected, result.Error
}

package devices

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/tabletloan-backend/internal/assignments"
	"github.com/angelmondragon/tabletloan-backend/pkg/db"
	"github.com/angelmondragon/tabletloan-backend/pkg/db/models"
	"github.com/angelmondragon/tabletloan-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tabletloan-backend/pkg/errors"
	"github.com/angelmondragon/tabletloan-backend/pkg/keylock"
	"github.com/angelmondragon/tabletloan-backend/pkg/logger"
	"github.com/angelmondragon/tabletloan-backend/pkg/outbox"
	"github.com/angelmondragon/tabletloan-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tabletloan-backend/pkg/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxAssetTagLen = 64

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type lifecycle interface {
	DissolveTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, opts assignments.DissolveOptions) (*models.Assignment, error)
	SetDeviceStatus(ctx context.Context, deviceID uuid.UUID, status enums.DeviceStatus) (*assignments.StatusChangeResult, error)
	PurgeHistoryTx(ctx context.Context, tx *gorm.DB, scope assignments.PurgeScope) (*assignments.PurgeResult, error)
}

// Service is the device half of the entity store.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Device, error)
	CreateTx(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Device, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Device, error)
	FindByTag(ctx context.Context, tag string) (*models.Device, error)
	FindByTagTx(ctx context.Context, tx *gorm.DB, tag string) (*models.Device, error)
	List(ctx context.Context, filter Filter) ([]models.Device, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Device, error)
	UpdateTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, input UpdateInput) (*models.Device, error)
	SetStatus(ctx context.Context, id uuid.UUID, status enums.DeviceStatus) (*assignments.StatusChangeResult, error)
	History(ctx context.Context, id uuid.UUID) (*History, error)
	Delete(ctx context.Context, id uuid.UUID) (*DeleteResult, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	lifecycle lifecycle
	blobs     storage.ObjectStore
	outbox    outbox.Emitter
	locks     *keylock.Locker
	logg      *logger.Logger
}

func NewService(repo Repository, tx txRunner, lc lifecycle, blobs storage.ObjectStore, emitter outbox.Emitter, locks *keylock.Locker, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("devices repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if lc == nil {
		return nil, fmt.Errorf("assignment lifecycle required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("object store required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if locks == nil {
		return nil, fmt.Errorf("key locker required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		lifecycle: lc,
		blobs:     blobs,
		outbox:    emitter,
		locks:     locks,
		logg:      logg,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Device, error) {
	var created *models.Device
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		created, err = s.CreateTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, serviceErr(err, "create device")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"device_id": created.ID.String(),
		"asset_tag": created.AssetTag,
	}), "device created")
	return created, nil
}

// CreateTx inserts a device inside tx. New devices are always available.
func (s *service) CreateTx(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Device, error) {
	device := input.model()
	if device.AssetTag == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "asset_tag is required")
	}
	if len(device.AssetTag) > maxAssetTagLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "asset_tag is too long").
			WithDetails(map[string]any{"max_length": maxAssetTagLen})
	}

	repo := s.repo.WithTx(tx)
	if _, err := repo.FindByTag(ctx, device.AssetTag); err == nil {
		return nil, duplicateTag(device.AssetTag)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check asset tag")
	}

	if err := repo.Create(ctx, device); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, duplicateTag(device.AssetTag)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert device")
	}
	return device, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	device, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err)
	}
	return device, nil
}

func (s *service) FindByTag(ctx context.Context, tag string) (*models.Device, error) {
	return s.FindByTagTx(ctx, nil, tag)
}

func (s *service) FindByTagTx(ctx context.Context, tx *gorm.DB, tag string) (*models.Device, error) {
	device, err := s.repo.WithTx(tx).FindByTag(ctx, tag)
	if err != nil {
		return nil, lookupErr(err)
	}
	return device, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]models.Device, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", *filter.Status))
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list devices")
	}
	return rows, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Device, error) {
	unlock := s.locks.Lock(keylock.DeviceKey(id.String()))
	defer unlock()

	var updated *models.Device
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		updated, err = s.UpdateTx(ctx, tx, id, input)
		return err
	})
	if err != nil {
		return nil, serviceErr(err, "update device")
	}
	return updated, nil
}

// UpdateTx patches device attributes inside tx. Renaming the asset tag onto
// another device's tag is a DUPLICATE_KEY error.
func (s *service) UpdateTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, input UpdateInput) (*models.Device, error) {
	repo := s.repo.WithTx(tx)
	current, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err)
	}

	fields := input.fields()
	if tag, ok := fields["asset_tag"].(string); ok {
		if tag == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "asset_tag cannot be blank")
		}
		if tag == current.AssetTag {
			delete(fields, "asset_tag")
		} else if other, err := repo.FindByTag(ctx, tag); err == nil && other.ID != id {
			return nil, duplicateTag(tag)
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check asset tag")
		}
	}

	if err := repo.UpdateFields(ctx, id, fields); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, duplicateTag(fmt.Sprint(fields["asset_tag"]))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update device")
	}
	updated, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload device")
	}
	return updated, nil
}

// SetStatus changes the device status, dissolving an active loan first.
func (s *service) SetStatus(ctx context.Context, id uuid.UUID, status enums.DeviceStatus) (*assignments.StatusChangeResult, error) {
	return s.lifecycle.SetDeviceStatus(ctx, id, status)
}

func (s *service) History(ctx context.Context, id uuid.UUID) (*History, error) {
	device, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListAssignments(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list device assignments")
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	contracts, err := s.repo.ListContracts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list device contracts")
	}
	byAssignment := map[uuid.UUID][]models.Contract{}
	for _, c := range contracts {
		if c.AssignmentID != nil {
			byAssignment[*c.AssignmentID] = append(byAssignment[*c.AssignmentID], c)
		}
	}

	history := &History{Device: device, Entries: make([]HistoryEntry, 0, len(rows))}
	for _, row := range rows {
		entry := HistoryEntry{Assignment: row, Contracts: byAssignment[row.ID]}
		if entry.Contracts == nil {
			entry.Contracts = []models.Contract{}
		}
		history.Entries = append(history.Entries, entry)
	}
	return history, nil
}

// Delete dissolves the active loan, removes the device's assignment history
// and contracts, then the device itself. Documents are removed from the
// object store after commit.
func (s *service) Delete(ctx context.Context, id uuid.UUID) (*DeleteResult, error) {
	device, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	keys := []string{keylock.DeviceKey(id.String())}
	observed, err := s.repo.FindActiveAssignment(ctx, id)
	switch {
	case err == nil:
		keys = append(keys, keylock.PersonKey(observed.PersonID.String()), keylock.AssignmentKey(observed.ID.String()))
	case errors.Is(err, gorm.ErrRecordNotFound):
		observed = nil
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup active assignment")
	}

	unlock := s.locks.Lock(keys...)
	defer unlock()

	result := &DeleteResult{DeviceID: id}
	var storageKeys []string
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		active, err := repo.FindActiveAssignment(ctx, id)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup active assignment")
		}
		if err == nil && (observed == nil || active.ID != observed.ID) {
			return pkgerrors.New(pkgerrors.CodeConflict, "device was assigned concurrently")
		}
		if err == nil {
			if _, err := s.lifecycle.DissolveTx(ctx, tx, active.ID, assignments.DissolveOptions{}); err != nil {
				return err
			}
			result.DissolvedActiveAssignment = true
		}

		purged, err := s.lifecycle.PurgeHistoryTx(ctx, tx, assignments.PurgeScope{DeviceID: &id})
		if err != nil {
			return err
		}
		result.AssignmentsDeleted = purged.AssignmentsDeleted
		result.ContractsDeleted = purged.ContractsDeleted
		storageKeys = purged.StorageKeys

		if err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete device")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeviceDeleted,
			AggregateType: enums.AggregateDevice,
			AggregateID:   id,
			Actor:         outbox.ActorFromContext(ctx, "devices"),
			Data: payloads.DeviceDeletedEvent{
				DeviceID:                  id,
				AssetTag:                  device.AssetTag,
				DissolvedActiveAssignment: result.DissolvedActiveAssignment,
				AssignmentsDeleted:        result.AssignmentsDeleted,
				ContractsDeleted:          result.ContractsDeleted,
			},
		})
	})
	if err != nil {
		return nil, serviceErr(err, "delete device")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"device_id":           id.String(),
		"assignments_deleted": result.AssignmentsDeleted,
		"contracts_deleted":   result.ContractsDeleted,
	})
	if err := storage.DeleteAll(ctx, s.blobs, storageKeys); err != nil {
		s.logg.Error(logCtx, "failed to remove contract documents", err)
	}
	s.logg.Info(logCtx, "device deleted")
	return result, nil
}

func duplicateTag(tag string) error {
	return pkgerrors.New(pkgerrors.CodeDuplicateKey, "asset tag already exists").
		WithDetails(map[string]any{"asset_tag": tag})
}

func lookupErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "device not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup device")
}

func serviceErr(err error, action string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

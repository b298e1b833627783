package assignments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/tabletloan-backend/pkg/auth"
	"github.com/angelmondragon/tabletloan-backend/pkg/db"
	"github.com/angelmondragon/tabletloan-backend/pkg/db/models"
	"github.com/angelmondragon/tabletloan-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tabletloan-backend/pkg/errors"
	"github.com/angelmondragon/tabletloan-backend/pkg/keylock"
	"github.com/angelmondragon/tabletloan-backend/pkg/logger"
	"github.com/angelmondragon/tabletloan-backend/pkg/metrics"
	"github.com/angelmondragon/tabletloan-backend/pkg/outbox"
	"github.com/angelmondragon/tabletloan-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const eventSource = "assignments"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns the assignment state machine (NONE -> ACTIVE -> DISSOLVED) and
// keeps device status and both back-pointers consistent with it.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Assignment, error)
	CreateTx(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Assignment, error)
	Dissolve(ctx context.Context, id uuid.UUID, opts DissolveOptions) (*models.Assignment, error)
	DissolveTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, opts DissolveOptions) (*models.Assignment, error)
	SetDeviceStatus(ctx context.Context, deviceID uuid.UUID, status enums.DeviceStatus) (*StatusChangeResult, error)
	RepairStatuses(ctx context.Context) (*RepairReport, error)
	AutoAssign(ctx context.Context) (*AutoAssignResult, error)
	List(ctx context.Context, filter ListFilter) ([]models.Assignment, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	AvailableForContracts(ctx context.Context) ([]models.Assignment, error)
	DismissWarning(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	PurgeHistoryTx(ctx context.Context, tx *gorm.DB, scope PurgeScope) (*PurgeResult, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outbox.Emitter
	locks   *keylock.Locker
	metrics *metrics.LendingMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the lifecycle service. metrics may be nil.
func NewService(repo Repository, tx txRunner, emitter outbox.Emitter, locks *keylock.Locker, m *metrics.LendingMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("assignments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
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
		repo:    repo,
		tx:      tx,
		outbox:  emitter,
		locks:   locks,
		metrics: m,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Assignment, error) {
	if input.DeviceID == uuid.Nil || input.PersonID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device_id and person_id are required")
	}

	unlock := s.locks.Lock(keylock.DeviceKey(input.DeviceID.String()), keylock.PersonKey(input.PersonID.String()))
	defer unlock()

	var created *models.Assignment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		created, err = s.CreateTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, serviceErr(err, "create assignment")
	}

	s.metrics.AssignmentCreated()
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"assignment_id": created.ID.String(),
		"device_id":     created.DeviceID.String(),
		"person_id":     created.PersonID.String(),
	})
	s.logg.Info(logCtx, "assignment created")
	return created, nil
}

// CreateTx performs the NONE -> ACTIVE transition inside tx. Callers that
// run it outside Create are responsible for their own key locking.
func (s *service) CreateTx(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Assignment, error) {
	repo := s.repo.WithTx(tx)

	device, err := repo.FindDevice(ctx, input.DeviceID)
	if err != nil {
		return nil, lookupErr(err, "device")
	}
	person, err := repo.FindPerson(ctx, input.PersonID)
	if err != nil {
		return nil, lookupErr(err, "person")
	}
	if device.Status != enums.DeviceStatusAvailable || device.CurrentAssignmentID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "device is not available").
			WithDetails(map[string]any{"device_id": device.ID, "status": device.Status})
	}
	if person.CurrentAssignmentID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "person already has an active assignment").
			WithDetails(map[string]any{"person_id": person.ID})
	}

	assignedAt := s.now()
	if input.AssignedAt != nil && !input.AssignedAt.IsZero() {
		assignedAt = input.AssignedAt.UTC()
	}
	assignment := &models.Assignment{
		DeviceID:   device.ID,
		PersonID:   person.ID,
		AssetTag:   device.AssetTag,
		PersonName: person.FullName(),
		IsActive:   true,
		AssignedAt: assignedAt,
		CreatedBy:  auth.OperatorPtr(ctx),
	}
	if err := repo.Create(ctx, assignment); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "device or person already has an active assignment")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert assignment")
	}

	ok, err := repo.ClaimDevice(ctx, device.ID, assignment.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim device")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "device was assigned concurrently")
	}
	ok, err = repo.ClaimPerson(ctx, person.ID, assignment.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim person")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "person was assigned concurrently")
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventAssignmentCreated,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   assignment.ID,
		Actor:         outbox.ActorFromContext(ctx, eventSource),
		Data: payloads.AssignmentCreatedEvent{
			AssignmentID: assignment.ID,
			DeviceID:     assignment.DeviceID,
			PersonID:     assignment.PersonID,
			AssetTag:     assignment.AssetTag,
			PersonName:   assignment.PersonName,
			AssignedAt:   assignment.AssignedAt,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit assignment_created")
	}
	return assignment, nil
}

func (s *service) Dissolve(ctx context.Context, id uuid.UUID, opts DissolveOptions) (*models.Assignment, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "assignment is not active")
	}

	unlock := s.locks.Lock(
		keylock.DeviceKey(current.DeviceID.String()),
		keylock.PersonKey(current.PersonID.String()),
		keylock.AssignmentKey(id.String()),
	)
	defer unlock()

	var dissolved *models.Assignment
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		dissolved, err = s.DissolveTx(ctx, tx, id, opts)
		return err
	})
	if err != nil {
		return nil, serviceErr(err, "dissolve assignment")
	}

	s.metrics.AssignmentDissolved(string(targetStatus(opts)))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"assignment_id": id.String(),
		"device_id":     dissolved.DeviceID.String(),
		"device_status": targetStatus(opts),
	})
	s.logg.Info(logCtx, "assignment dissolved")
	return dissolved, nil
}

// DissolveTx performs the ACTIVE -> DISSOLVED transition inside tx.
func (s *service) DissolveTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, opts DissolveOptions) (*models.Assignment, error) {
	target := targetStatus(opts)
	if !target.IsValid() || target == enums.DeviceStatusAssigned {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid target status %q", target))
	}

	repo := s.repo.WithTx(tx)
	assignment, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "assignment")
	}
	if !assignment.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "assignment is not active")
	}

	now := s.now()
	by := auth.OperatorPtr(ctx)
	ok, err := repo.Deactivate(ctx, id, now, by)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate assignment")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "assignment was dissolved concurrently")
	}
	if err := repo.DeactivateContracts(ctx, id); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate contract")
	}
	if err := repo.ReleaseDevice(ctx, assignment.DeviceID, id, target); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release device")
	}
	if err := repo.ReleasePerson(ctx, assignment.PersonID, id); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release person")
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventAssignmentDissolved,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   id,
		Actor:         outbox.ActorFromContext(ctx, eventSource),
		Data: payloads.AssignmentDissolvedEvent{
			AssignmentID: id,
			DeviceID:     assignment.DeviceID,
			PersonID:     assignment.PersonID,
			DeviceStatus: target,
			DissolvedAt:  now,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit assignment_dissolved")
	}

	assignment.IsActive = false
	assignment.DissolvedAt = &now
	assignment.DissolvedBy = by
	return assignment, nil
}

func (s *service) SetDeviceStatus(ctx context.Context, deviceID uuid.UUID, status enums.DeviceStatus) (*StatusChangeResult, error) {
	if status == enums.DeviceStatusAssigned {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "devices become assigned only by creating an assignment")
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid device status %q", status))
	}

	if _, err := s.repo.FindDevice(ctx, deviceID); err != nil {
		return nil, lookupErr(err, "device")
	}
	keys := []string{keylock.DeviceKey(deviceID.String())}
	observed, err := s.repo.FindActiveByDevice(ctx, deviceID)
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

	result := &StatusChangeResult{}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		device, err := repo.FindDevice(ctx, deviceID)
		if err != nil {
			return lookupErr(err, "device")
		}
		result.PreviousStatus = device.Status

		active, err := repo.FindActiveByDevice(ctx, deviceID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup active assignment")
		}
		if err != nil {
			active = nil
		}
		if (active == nil) != (observed == nil) || (active != nil && active.ID != observed.ID) {
			return pkgerrors.New(pkgerrors.CodeConflict, "device assignment changed concurrently")
		}

		if active != nil {
			if _, err := s.DissolveTx(ctx, tx, active.ID, DissolveOptions{TargetStatus: &status}); err != nil {
				return err
			}
			id := active.ID
			result.DissolvedAssignment = &id
		} else {
			ok, err := repo.SetIdleDeviceStatus(ctx, deviceID, status)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update device status")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeConflict, "device was assigned concurrently")
			}
		}

		if result.PreviousStatus != status {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventDeviceStatusChanged,
				AggregateType: enums.AggregateDevice,
				AggregateID:   deviceID,
				Actor:         outbox.ActorFromContext(ctx, eventSource),
				Data: payloads.DeviceStatusChangedEvent{
					DeviceID:       deviceID,
					AssetTag:       device.AssetTag,
					PreviousStatus: result.PreviousStatus,
					Status:         status,
				},
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit device_status_changed")
			}
		}

		result.Device, err = repo.FindDevice(ctx, deviceID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload device")
		}
		return nil
	})
	if err != nil {
		return nil, serviceErr(err, "set device status")
	}

	if result.DissolvedAssignment != nil {
		s.metrics.AssignmentDissolved(string(status))
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"device_id":       deviceID.String(),
		"previous_status": result.PreviousStatus,
		"status":          status,
	})
	s.logg.Info(logCtx, "device status changed")
	return result, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]models.Assignment, error) {
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assignments")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "assignment")
	}
	return row, nil
}

func (s *service) AvailableForContracts(ctx context.Context) ([]models.Assignment, error) {
	rows, err := s.repo.ListActiveWithoutContract(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assignments without contract")
	}
	return rows, nil
}

// DismissWarning hides the contract warning without recomputing it.
func (s *service) DismissWarning(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	ok, err := s.repo.DismissWarning(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dismiss warning")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
	}
	return s.Get(ctx, id)
}

// PurgeHistoryTx deletes the assignments in scope together with their
// contracts. Active assignments must be dissolved beforehand.
func (s *service) PurgeHistoryTx(ctx context.Context, tx *gorm.DB, scope PurgeScope) (*PurgeResult, error) {
	repo := s.repo.WithTx(tx)
	ids, err := repo.ListIDs(ctx, scope)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assignment history")
	}
	contracts, err := repo.ListContractsForPurge(ctx, ids, scope.PersonName)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list contracts for purge")
	}

	result := &PurgeResult{}
	contractIDs := make([]uuid.UUID, 0, len(contracts))
	for _, c := range contracts {
		contractIDs = append(contractIDs, c.ID)
		if c.StorageKey != "" {
			result.StorageKeys = append(result.StorageKeys, c.StorageKey)
		}
	}
	if result.ContractsDeleted, err = repo.DeleteContracts(ctx, contractIDs); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete contracts")
	}
	if result.AssignmentsDeleted, err = repo.DeleteAssignments(ctx, ids); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete assignments")
	}
	return result, nil
}

func targetStatus(opts DissolveOptions) enums.DeviceStatus {
	if opts.TargetStatus == nil {
		return enums.DeviceStatusAvailable
	}
	return *opts.TargetStatus
}

func lookupErr(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup "+entity)
}

// serviceErr keeps typed errors raised inside a transaction and wraps
// anything else (commit failures) as a dependency error.
func serviceErr(err error, action string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

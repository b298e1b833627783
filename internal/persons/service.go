package persons

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/tabletloan-backend/internal/assignments"
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

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type lifecycle interface {
	DissolveTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, opts assignments.DissolveOptions) (*models.Assignment, error)
	PurgeHistoryTx(ctx context.Context, tx *gorm.DB, scope assignments.PurgeScope) (*assignments.PurgeResult, error)
}

// Service is the person half of the entity store.
type Service interface {
	Create(ctx context.Context, input Input) (*models.Person, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Person, error)
	FindByName(ctx context.Context, first, last string) ([]models.Person, error)
	List(ctx context.Context, filter Filter) ([]models.Person, error)
	Update(ctx context.Context, id uuid.UUID, input Input) (*models.Person, error)
	FindOrCreateTx(ctx context.Context, tx *gorm.DB, key Key, input Input) (*models.Person, bool, error)
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
		return nil, fmt.Errorf("persons repository required")
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

func (s *service) Create(ctx context.Context, input Input) (*models.Person, error) {
	input = input.normalized()
	if err := requireNames(input); err != nil {
		return nil, err
	}
	person := &models.Person{}
	input.apply(person)
	if err := s.repo.Create(ctx, person); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert person")
	}
	s.logg.Info(s.logg.WithField(ctx, "person_id", person.ID.String()), "person created")
	return person, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	person, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err)
	}
	return person, nil
}

// FindByName may return several persons; names are not unique.
func (s *service) FindByName(ctx context.Context, first, last string) ([]models.Person, error) {
	key := NewKey(first, last, "")
	if key.FirstName == "" || key.LastName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "first and last name are required")
	}
	rows, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find persons by name")
	}
	return rows, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]models.Person, error) {
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list persons")
	}
	return rows, nil
}

// Update replaces the person's attributes. Denormalized names on existing
// assignments and contracts are snapshots and stay as they were.
func (s *service) Update(ctx context.Context, id uuid.UUID, input Input) (*models.Person, error) {
	input = input.normalized()
	if err := requireNames(input); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(keylock.PersonKey(id.String()))
	defer unlock()

	person, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err)
	}
	input.apply(person)
	if err := s.repo.Save(ctx, person); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update person")
	}
	return person, nil
}

// FindOrCreateTx resolves an import row to a person. Existing persons get
// the row's non-blank attributes merged in. The bool reports creation.
func (s *service) FindOrCreateTx(ctx context.Context, tx *gorm.DB, key Key, input Input) (*models.Person, bool, error) {
	if key.FirstName == "" || key.LastName == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "first and last name are required")
	}
	repo := s.repo.WithTx(tx)
	matches, err := repo.FindByKey(ctx, key)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find person")
	}

	input = input.normalized()
	if len(matches) > 0 {
		person := matches[0]
		before := person
		input.merge(&person)
		if person != before {
			if err := repo.Save(ctx, &person); err != nil {
				return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update person")
			}
		}
		return &person, false, nil
	}

	input.FirstName, input.LastName = key.FirstName, key.LastName
	if input.ClassName == "" {
		input.ClassName = key.ClassName
	}
	person := &models.Person{}
	input.apply(person)
	if err := repo.Create(ctx, person); err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert person")
	}
	return person, true, nil
}

// Delete dissolves the person's active loan, removes every assignment of
// the person and the contracts tied to them (by assignment or by name),
// then the person. Documents are removed from the object store after commit.
func (s *service) Delete(ctx context.Context, id uuid.UUID) (*DeleteResult, error) {
	person, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	keys := []string{keylock.PersonKey(id.String())}
	observed, err := s.repo.FindActiveAssignment(ctx, id)
	switch {
	case err == nil:
		keys = append(keys, keylock.DeviceKey(observed.DeviceID.String()), keylock.AssignmentKey(observed.ID.String()))
	case errors.Is(err, gorm.ErrRecordNotFound):
		observed = nil
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup active assignment")
	}

	unlock := s.locks.Lock(keys...)
	defer unlock()

	result := &DeleteResult{PersonID: id}
	var storageKeys []string
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		active, err := repo.FindActiveAssignment(ctx, id)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup active assignment")
		}
		if err == nil && (observed == nil || active.ID != observed.ID) {
			return pkgerrors.New(pkgerrors.CodeConflict, "person was assigned concurrently")
		}
		if err == nil {
			if _, err := s.lifecycle.DissolveTx(ctx, tx, active.ID, assignments.DissolveOptions{}); err != nil {
				return err
			}
			result.DissolvedActiveAssignment = true
		}

		purged, err := s.lifecycle.PurgeHistoryTx(ctx, tx, assignments.PurgeScope{
			PersonID:   &id,
			PersonName: person.FullName(),
		})
		if err != nil {
			return err
		}
		result.AssignmentsDeleted = purged.AssignmentsDeleted
		result.ContractsDeleted = purged.ContractsDeleted
		storageKeys = purged.StorageKeys

		if err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete person")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPersonDeleted,
			AggregateType: enums.AggregatePerson,
			AggregateID:   id,
			Actor:         outbox.ActorFromContext(ctx, "persons"),
			Data: payloads.PersonDeletedEvent{
				PersonID:                  id,
				DissolvedActiveAssignment: result.DissolvedActiveAssignment,
				AssignmentsDeleted:        result.AssignmentsDeleted,
				ContractsDeleted:          result.ContractsDeleted,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete person")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"person_id":                   id.String(),
		"dissolved_active_assignment": result.DissolvedActiveAssignment,
		"assignments_deleted":         result.AssignmentsDeleted,
		"contracts_deleted":           result.ContractsDeleted,
	})
	if err := storage.DeleteAll(ctx, s.blobs, storageKeys); err != nil {
		s.logg.Error(logCtx, "failed to remove contract documents", err)
	}
	s.logg.Info(logCtx, "person deleted")
	return result, nil
}

func requireNames(input Input) error {
	if input.FirstName == "" || input.LastName == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "first_name and last_name are required")
	}
	return nil
}

func lookupErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "person not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup person")
}

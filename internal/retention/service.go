// Package retention removes personal data that has outlived the retention
// window.
package retention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/tabletloan-backend/internal/assignments"
	pkgerrors "github.com/angelmondragon/tabletloan-backend/pkg/errors"
	"github.com/angelmondragon/tabletloan-backend/pkg/keylock"
	"github.com/angelmondragon/tabletloan-backend/pkg/logger"
	"github.com/angelmondragon/tabletloan-backend/pkg/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultYears = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type historyPurger interface {
	PurgeHistoryTx(ctx context.Context, tx *gorm.DB, scope assignments.PurgeScope) (*assignments.PurgeResult, error)
}

// Report summarises one sweep. Failures are records that were skipped.
type Report struct {
	Cutoff              time.Time                   `json:"cutoff"`
	PersonsBackfilled   int64                       `json:"persons_backfilled"`
	ContractsBackfilled int64                       `json:"contracts_backfilled"`
	PersonsDeleted      int                         `json:"persons_deleted"`
	AssignmentsDeleted  int64                       `json:"assignments_deleted"`
	ContractsDeleted    int64                       `json:"contracts_deleted"`
	Failures            []assignments.RecordFailure `json:"failures,omitempty"`
}

type Service interface {
	Sweep(ctx context.Context) (*Report, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	history historyPurger
	blobs   storage.ObjectStore
	locks   *keylock.Locker
	years   int
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the sweep. A non-positive years falls back to DefaultYears.
func NewService(repo Repository, tx txRunner, history historyPurger, blobs storage.ObjectStore, locks *keylock.Locker, years int, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("retention repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if history == nil {
		return nil, fmt.Errorf("history purger required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("object store required")
	}
	if locks == nil {
		return nil, fmt.Errorf("key locker required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if years <= 0 {
		years = DefaultYears
	}
	return &service{
		repo:    repo,
		tx:      tx,
		history: history,
		blobs:   blobs,
		locks:   locks,
		years:   years,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Sweep stamps records that predate the timestamp columns, then deletes
// expired persons without an active loan and expired contracts. A record
// that cannot be deleted is logged and skipped.
func (s *service) Sweep(ctx context.Context) (*Report, error) {
	now := s.now()
	report := &Report{Cutoff: now.AddDate(-s.years, 0, 0)}

	var err error
	if report.PersonsBackfilled, err = s.repo.BackfillPersons(ctx, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "backfill person timestamps")
	}
	if report.ContractsBackfilled, err = s.repo.BackfillContracts(ctx, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "backfill contract timestamps")
	}

	people, err := s.repo.ListExpiredPersons(ctx, report.Cutoff)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired persons")
	}
	for _, p := range people {
		if err := s.deletePerson(ctx, p.ID, report); err != nil {
			s.fail(ctx, report, "person_id", p.ID, err)
		}
	}

	contracts, err := s.repo.ListExpiredContracts(ctx, report.Cutoff)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired contracts")
	}
	for _, c := range contracts {
		if err := s.deleteContract(ctx, c.ID, c.StorageKey, c.AssignmentID, report); err != nil {
			s.fail(ctx, report, "contract_id", c.ID, err)
		}
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"cutoff":              report.Cutoff,
		"persons_deleted":     report.PersonsDeleted,
		"assignments_deleted": report.AssignmentsDeleted,
		"contracts_deleted":   report.ContractsDeleted,
		"failures":            len(report.Failures),
	}), "retention sweep finished")
	return report, nil
}

func (s *service) deletePerson(ctx context.Context, id uuid.UUID, report *Report) error {
	unlock := s.locks.Lock(keylock.PersonKey(id.String()))
	defer unlock()

	var purged *assignments.PurgeResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		person, err := repo.FindPerson(ctx, id)
		if err != nil {
			return err
		}
		if person.CurrentAssignmentID != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "person has an active assignment")
		}
		active, err := repo.HasActiveAssignment(ctx, id)
		if err != nil {
			return err
		}
		if active {
			return pkgerrors.New(pkgerrors.CodeConflict, "person has an active assignment")
		}

		purged, err = s.history.PurgeHistoryTx(ctx, tx, assignments.PurgeScope{
			PersonID:   &id,
			PersonName: person.FullName(),
		})
		if err != nil {
			return err
		}
		return repo.DeletePerson(ctx, id)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	report.PersonsDeleted++
	report.AssignmentsDeleted += purged.AssignmentsDeleted
	report.ContractsDeleted += purged.ContractsDeleted
	if err := storage.DeleteAll(ctx, s.blobs, purged.StorageKeys); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "person_id", id.String()), "failed to delete contract documents", err)
	}
	return nil
}

func (s *service) deleteContract(ctx context.Context, id uuid.UUID, key string, assignmentID *uuid.UUID, report *Report) error {
	if assignmentID != nil {
		unlock := s.locks.Lock(keylock.AssignmentKey(assignmentID.String()))
		defer unlock()
	}

	var deleted bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UnlinkContract(ctx, id); err != nil {
			return err
		}
		var err error
		deleted, err = repo.DeleteContract(ctx, id)
		return err
	})
	if err != nil {
		return err
	}
	if !deleted {
		return nil
	}

	report.ContractsDeleted++
	if err := storage.DeleteAll(ctx, s.blobs, []string{key}); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "contract_id", id.String()), "failed to delete contract document", err)
	}
	return nil
}

func (s *service) fail(ctx context.Context, report *Report, field string, id uuid.UUID, err error) {
	s.logg.Error(s.logg.WithField(ctx, field, id.String()), "retention delete failed", err)
	report.Failures = append(report.Failures, assignments.RecordFailure{ID: id, Error: err.Error()})
}

package imports

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/angelmondragon/tabletloan-backend/internal/assignments"
	"github.com/angelmondragon/tabletloan-backend/internal/devices"
	"github.com/angelmondragon/tabletloan-backend/internal/persons"
	"github.com/angelmondragon/tabletloan-backend/pkg/db/models"
	"github.com/angelmondragon/tabletloan-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tabletloan-backend/pkg/errors"
	"github.com/angelmondragon/tabletloan-backend/pkg/logger"
	"github.com/angelmondragon/tabletloan-backend/pkg/metrics"
	"github.com/angelmondragon/tabletloan-backend/pkg/outbox"
	"github.com/angelmondragon/tabletloan-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tabletloan-backend/pkg/sheet"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const eventSource = "imports"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type deviceStore interface {
	FindByTagTx(ctx context.Context, tx *gorm.DB, tag string) (*models.Device, error)
	CreateTx(ctx context.Context, tx *gorm.DB, input devices.CreateInput) (*models.Device, error)
	UpdateTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, input devices.UpdateInput) (*models.Device, error)
}

type personStore interface {
	FindOrCreateTx(ctx context.Context, tx *gorm.DB, key persons.Key, input persons.Input) (*models.Person, bool, error)
}

type lifecycle interface {
	CreateTx(ctx context.Context, tx *gorm.DB, input assignments.CreateInput) (*models.Assignment, error)
}

// Service reconciles office spreadsheets into devices, persons and
// assignments.
type Service interface {
	Import(ctx context.Context, rows []sheet.Record, mode enums.ImportMode) (*Report, error)
	ImportFile(ctx context.Context, r io.Reader, format sheet.Format, mode enums.ImportMode) (*Report, error)
	ImportPersons(ctx context.Context, rows []sheet.Record) (*Report, error)
	ImportPersonsFile(ctx context.Context, r io.Reader, format sheet.Format) (*Report, error)
}

type service struct {
	tx        txRunner
	devices   deviceStore
	persons   personStore
	lifecycle lifecycle
	outbox    outbox.Emitter
	metrics   *metrics.LendingMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService wires the reconciler. metrics may be nil.
func NewService(tx txRunner, devs deviceStore, people personStore, lc lifecycle, emitter outbox.Emitter, m *metrics.LendingMetrics, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if devs == nil {
		return nil, fmt.Errorf("device store required")
	}
	if people == nil {
		return nil, fmt.Errorf("person store required")
	}
	if lc == nil {
		return nil, fmt.Errorf("assignment lifecycle required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:        tx,
		devices:   devs,
		persons:   people,
		lifecycle: lc,
		outbox:    emitter,
		metrics:   m,
		logg:      logg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func readRows(r io.Reader, format sheet.Format) ([]sheet.Record, error) {
	rows, err := sheet.ReadAs(r, format)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable spreadsheet")
	}
	return rows, nil
}

func (s *service) ImportFile(ctx context.Context, r io.Reader, format sheet.Format, mode enums.ImportMode) (*Report, error) {
	rows, err := readRows(r, format)
	if err != nil {
		return nil, err
	}
	return s.Import(ctx, rows, mode)
}

func (s *service) ImportPersonsFile(ctx context.Context, r io.Reader, format sheet.Format) (*Report, error) {
	rows, err := readRows(r, format)
	if err != nil {
		return nil, err
	}
	return s.ImportPersons(ctx, rows)
}

// rowFunc applies one spreadsheet row inside its transaction.
type rowFunc func(ctx context.Context, tx *gorm.DB, rec sheet.Record) (rowOutcome, error)

// process runs rows in file order, each in its own transaction. key names
// the row for error reports; rows without a key are ignored. A failed row
// is recorded and processing moves on.
func (s *service) process(ctx context.Context, report *Report, rows []sheet.Record, key func(sheet.Record) string, apply rowFunc) {
	for i, rec := range rows {
		rowNum := i + 1
		label := key(rec)
		if label == "" {
			report.IgnoredRows++
			continue
		}

		var outcome rowOutcome
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			outcome, err = apply(ctx, tx, rec)
			return err
		})
		if err != nil {
			rowErr := RowError{Row: rowNum, Code: pkgerrors.CodeInternal, Message: err.Error()}
			if report.Kind == KindPersons {
				rowErr.Name = label
			} else {
				rowErr.AssetTag = label
			}
			if typed := pkgerrors.As(err); typed != nil {
				rowErr.Code = typed.Code()
				rowErr.Message = typed.Message()
			}
			report.fail(rowErr)
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"row":   rowNum,
				"key":   label,
				"error": err.Error(),
			}), "import row failed")
			continue
		}
		report.add(outcome)
	}
	report.finish()
}

// Import reconciles an inventory sheet. Rows without an asset tag are
// ignored.
func (s *service) Import(ctx context.Context, rows []sheet.Record, mode enums.ImportMode) (*Report, error) {
	if !mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid import mode %q", mode))
	}

	report := newReport(KindInventory)
	report.Mode = mode
	ctx = s.logg.WithFields(ctx, map[string]any{"import_id": report.ImportID.String(), "kind": report.Kind, "mode": mode})

	s.process(ctx, report, rows, func(rec sheet.Record) string {
		return rec.Get(sheet.ColAssetTag)
	}, func(ctx context.Context, tx *gorm.DB, rec sheet.Record) (rowOutcome, error) {
		return s.importRowTx(ctx, tx, rec, mode)
	})

	s.emit(ctx, enums.EventInventoryImported, report.ImportID, payloads.InventoryImportedEvent{
		ImportID:           report.ImportID,
		Mode:               mode,
		ProcessedCount:     report.ProcessedCount,
		AssignmentsCreated: report.AssignmentsCreated,
		ErrorCount:         report.ErrorCount,
		Status:             report.Status,
	})

	s.metrics.ImportRows(outcomeCreated, report.Devices.Created)
	s.metrics.ImportRows(outcomeUpdated, report.Devices.Updated)
	s.metrics.ImportRows(outcomeSkipped, report.Devices.Skipped)
	s.metrics.ImportRows("ignored", report.IgnoredRows)
	s.metrics.ImportRows("failed", report.ErrorCount)

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"processed":   report.ProcessedCount,
		"ignored":     report.IgnoredRows,
		"assignments": report.AssignmentsCreated,
		"errors":      report.ErrorCount,
		"status":      report.Status,
	}), "inventory import finished")
	return report, nil
}

// ImportPersons loads a class roster. Rows need both names. A person that
// already exists under the row's key counts as skipped; the row's non-blank
// cells are still merged into it.
func (s *service) ImportPersons(ctx context.Context, rows []sheet.Record) (*Report, error) {
	report := newReport(KindPersons)
	ctx = s.logg.WithFields(ctx, map[string]any{"import_id": report.ImportID.String(), "kind": report.Kind})

	s.process(ctx, report, rows, func(rec sheet.Record) string {
		first, last := rec.Get(sheet.ColFirstName), rec.Get(sheet.ColLastName)
		if first == "" || last == "" {
			return ""
		}
		return first + " " + last
	}, s.importPersonRowTx)

	s.emit(ctx, enums.EventPersonsImported, report.ImportID, payloads.PersonsImportedEvent{
		ImportID:       report.ImportID,
		ProcessedCount: report.ProcessedCount,
		PersonsCreated: report.Persons.Created,
		PersonsSkipped: report.Persons.Skipped,
		ErrorCount:     report.ErrorCount,
		Status:         report.Status,
	})

	s.metrics.ImportRows("persons_"+outcomeCreated, report.Persons.Created)
	s.metrics.ImportRows("persons_"+outcomeSkipped, report.Persons.Skipped)
	s.metrics.ImportRows("ignored", report.IgnoredRows)
	s.metrics.ImportRows("failed", report.ErrorCount)

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"processed": report.ProcessedCount,
		"ignored":   report.IgnoredRows,
		"created":   report.Persons.Created,
		"skipped":   report.Persons.Skipped,
		"errors":    report.ErrorCount,
		"status":    report.Status,
	}), "person import finished")
	return report, nil
}

func (s *service) emit(ctx context.Context, eventType enums.OutboxEventType, importID uuid.UUID, data any) {
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateImport,
			AggregateID:   importID,
			Actor:         outbox.ActorFromContext(ctx, eventSource),
			Data:          data,
		})
	}); err != nil {
		s.logg.Error(ctx, "failed to emit "+string(eventType), err)
	}
}

func (s *service) importPersonRowTx(ctx context.Context, tx *gorm.DB, rec sheet.Record) (rowOutcome, error) {
	key := persons.NewKey(rec.Get(sheet.ColFirstName), rec.Get(sheet.ColLastName), rec.Get(sheet.ColClass))
	_, created, err := s.persons.FindOrCreateTx(ctx, tx, key, personInput(rec))
	if err != nil {
		return rowOutcome{}, err
	}
	if created {
		return rowOutcome{person: outcomeCreated}, nil
	}
	return rowOutcome{person: outcomeSkipped}, nil
}

func (s *service) importRowTx(ctx context.Context, tx *gorm.DB, rec sheet.Record, mode enums.ImportMode) (rowOutcome, error) {
	var outcome rowOutcome
	tag := rec.Get(sheet.ColAssetTag)

	device, err := s.devices.FindByTagTx(ctx, tx, tag)
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		device, err = s.devices.CreateTx(ctx, tx, deviceCreateInput(rec))
		if err != nil {
			return outcome, err
		}
		outcome.device = outcomeCreated
	case err != nil:
		return outcome, err
	case mode == enums.ImportModeUpsert:
		patch, changed := deviceUpdateInput(rec)
		if changed {
			device, err = s.devices.UpdateTx(ctx, tx, device.ID, patch)
			if err != nil {
				return outcome, err
			}
		}
		outcome.device = outcomeUpdated
	default:
		outcome.device = outcomeSkipped
	}

	first, last := rec.Get(sheet.ColFirstName), rec.Get(sheet.ColLastName)
	if first == "" || last == "" {
		outcome.person = outcomeSkipped
		return outcome, nil
	}

	person, created, err := s.persons.FindOrCreateTx(ctx, tx, persons.NewKey(first, last, rec.Get(sheet.ColClass)), personInput(rec))
	if err != nil {
		return outcome, err
	}
	if created {
		outcome.person = outcomeCreated
	} else {
		outcome.person = outcomeUpdated
	}

	if device.CurrentAssignmentID != nil || device.Status != enums.DeviceStatusAvailable || person.CurrentAssignmentID != nil {
		return outcome, nil
	}
	assignedAt := s.loanDate(rec)
	if _, err := s.lifecycle.CreateTx(ctx, tx, assignments.CreateInput{
		DeviceID:   device.ID,
		PersonID:   person.ID,
		AssignedAt: &assignedAt,
	}); err != nil {
		return outcome, err
	}
	outcome.assignmentCreate = true
	return outcome, nil
}

// loanDate parses the day-first loan date; blank or malformed values fall
// back to now.
func (s *service) loanDate(rec sheet.Record) time.Time {
	raw := rec.Get(sheet.ColLoanDate)
	if raw == "" {
		return s.now()
	}
	parsed, err := time.ParseInLocation(sheet.LoanDateLayout, raw, time.UTC)
	if err != nil {
		return s.now()
	}
	return parsed
}

func deviceCreateInput(rec sheet.Record) devices.CreateInput {
	return devices.CreateInput{
		AssetTag:     rec.Get(sheet.ColAssetTag),
		SerialNumber: rec.Get(sheet.ColSerialNumber),
		CaseLabel:    rec.Get(sheet.ColCaseLabel),
		Stylus:       rec.Get(sheet.ColStylus),
		Model:        rec.Get(sheet.ColModel),
		PurchaseYear: rec.Get(sheet.ColPurchaseYear),
		LoanDate:     rec.Get(sheet.ColLoanDate),
	}
}

// deviceUpdateInput keeps only the non-blank cells so an upsert never
// erases stored attributes.
func deviceUpdateInput(rec sheet.Record) (devices.UpdateInput, bool) {
	var in devices.UpdateInput
	changed := false
	set := func(dst **string, column string) {
		if v := rec.Get(column); v != "" {
			*dst = &v
			changed = true
		}
	}
	set(&in.SerialNumber, sheet.ColSerialNumber)
	set(&in.CaseLabel, sheet.ColCaseLabel)
	set(&in.Stylus, sheet.ColStylus)
	set(&in.Model, sheet.ColModel)
	set(&in.PurchaseYear, sheet.ColPurchaseYear)
	set(&in.LoanDate, sheet.ColLoanDate)
	return in, changed
}

func personInput(rec sheet.Record) persons.Input {
	return persons.Input{
		ShortName:  rec.Get(sheet.ColShortName),
		FirstName:  rec.Get(sheet.ColFirstName),
		LastName:   rec.Get(sheet.ColLastName),
		ClassName:  rec.Get(sheet.ColClass),
		Street:     rec.Get(sheet.ColStreet),
		PostalCode: rec.Get(sheet.ColPostalCode),
		City:       rec.Get(sheet.ColCity),
		BirthDate:  rec.Get(sheet.ColBirthDate),
		Guardian1: persons.GuardianInput{
			LastName:   rec.Get(sheet.ColGuardian1Last),
			FirstName:  rec.Get(sheet.ColGuardian1First),
			Street:     rec.Get(sheet.ColGuardian1Street),
			PostalCode: rec.Get(sheet.ColGuardian1Postal),
			City:       rec.Get(sheet.ColGuardian1City),
		},
		Guardian2: persons.GuardianInput{
			LastName:   rec.Get(sheet.ColGuardian2Last),
			FirstName:  rec.Get(sheet.ColGuardian2First),
			Street:     rec.Get(sheet.ColGuardian2Street),
			PostalCode: rec.Get(sheet.ColGuardian2Postal),
			City:       rec.Get(sheet.ColGuardian2City),
		},
	}
}

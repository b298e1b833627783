package exports

import (
	"context"
	"fmt"
	"io"

	"github.com/angelmondragon/tabletloan-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tabletloan-backend/pkg/errors"
	"github.com/angelmondragon/tabletloan-backend/pkg/sheet"
	"github.com/google/uuid"
)

// Row is one export line in sheet.ExportColumns order.
type Row []string

// Filter narrows the assignment export. Names match by substring.
type Filter struct {
	FirstName string
	LastName  string
	ClassName string
	AssetTag  string
}

type exportRepository interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
	ListActive(ctx context.Context, filter Filter) ([]models.Assignment, error)
	ListActiveAll(ctx context.Context) ([]models.Assignment, error)
	DevicesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Device, error)
	PersonsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Person, error)
}

type labelSource interface {
	Get(ctx context.Context) (*models.GlobalSettings, error)
}

// Service renders the office spreadsheets.
type Service interface {
	Inventory(ctx context.Context) ([]Row, error)
	Assignments(ctx context.Context, filter Filter) ([]Row, error)
	Write(w io.Writer, format sheet.Format, rows []Row) error
}

type service struct {
	repo   exportRepository
	labels labelSource
}

func NewService(repo exportRepository, labels labelSource) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("exports repository required")
	}
	if labels == nil {
		return nil, fmt.Errorf("settings service required")
	}
	return &service{repo: repo, labels: labels}, nil
}

// Inventory lists every device; person columns stay blank for devices that
// are not on loan.
func (s *service) Inventory(ctx context.Context) ([]Row, error) {
	settings, err := s.labels.Get(ctx)
	if err != nil {
		return nil, err
	}
	devices, err := s.repo.ListDevices(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list devices")
	}
	active, err := s.repo.ListActiveAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active assignments")
	}

	byDevice := make(map[uuid.UUID]models.Assignment, len(active))
	personIDs := make([]uuid.UUID, 0, len(active))
	for _, a := range active {
		byDevice[a.DeviceID] = a
		personIDs = append(personIDs, a.PersonID)
	}
	people, err := s.repo.PersonsByID(ctx, personIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load persons")
	}

	rows := make([]Row, 0, len(devices))
	for _, d := range devices {
		var person *models.Person
		var assignment *models.Assignment
		if a, ok := byDevice[d.ID]; ok {
			assignment = &a
			if p, ok := people[a.PersonID]; ok {
				person = &p
			}
		}
		rows = append(rows, buildRow(d, person, assignment, settings))
	}
	return rows, nil
}

func (s *service) Assignments(ctx context.Context, filter Filter) ([]Row, error) {
	settings, err := s.labels.Get(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.repo.ListActive(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active assignments")
	}

	deviceIDs := make([]uuid.UUID, 0, len(active))
	personIDs := make([]uuid.UUID, 0, len(active))
	for _, a := range active {
		deviceIDs = append(deviceIDs, a.DeviceID)
		personIDs = append(personIDs, a.PersonID)
	}
	devices, err := s.repo.DevicesByID(ctx, deviceIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load devices")
	}
	people, err := s.repo.PersonsByID(ctx, personIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load persons")
	}

	rows := make([]Row, 0, len(active))
	for i := range active {
		a := active[i]
		d, ok := devices[a.DeviceID]
		if !ok {
			d = models.Device{ID: a.DeviceID, AssetTag: a.AssetTag}
		}
		var person *models.Person
		if p, ok := people[a.PersonID]; ok {
			person = &p
		}
		rows = append(rows, buildRow(d, person, &a, settings))
	}
	return rows, nil
}

func (s *service) Write(w io.Writer, format sheet.Format, rows []Row) error {
	cells := make([][]string, len(rows))
	for i, row := range rows {
		cells[i] = row
	}
	return sheet.Write(w, format, sheet.ExportColumns, cells)
}

func buildRow(d models.Device, p *models.Person, a *models.Assignment, settings *models.GlobalSettings) Row {
	cells := make(map[string]string, len(sheet.ExportColumns))
	if p != nil {
		cells[sheet.ColShortName] = p.ShortName
		cells[sheet.ColLastName] = p.LastName
		cells[sheet.ColFirstName] = p.FirstName
		cells[sheet.ColClass] = p.ClassName
		cells[sheet.ColStreet] = p.Street
		cells[sheet.ColPostalCode] = p.PostalCode
		cells[sheet.ColCity] = p.City
		cells[sheet.ColBirthDate] = p.BirthDate
		cells[sheet.ColGuardian1Last] = p.Guardian1.LastName
		cells[sheet.ColGuardian1First] = p.Guardian1.FirstName
		cells[sheet.ColGuardian1Street] = p.Guardian1.Street
		cells[sheet.ColGuardian1Postal] = p.Guardian1.PostalCode
		cells[sheet.ColGuardian1City] = p.Guardian1.City
		cells[sheet.ColGuardian2Last] = p.Guardian2.LastName
		cells[sheet.ColGuardian2First] = p.Guardian2.FirstName
		cells[sheet.ColGuardian2Street] = p.Guardian2.Street
		cells[sheet.ColGuardian2Postal] = p.Guardian2.PostalCode
		cells[sheet.ColGuardian2City] = p.Guardian2.City
	}

	cells[sheet.ColStylus] = orDefault(d.Stylus, settings.StylusLabel)
	cells[sheet.ColAssetTag] = d.AssetTag
	cells[sheet.ColSerialNumber] = d.SerialNumber
	cells[sheet.ColModel] = orDefault(d.Model, settings.DeviceModelLabel)
	cells[sheet.ColPurchaseYear] = d.PurchaseYear
	cells[sheet.ColLoanDate] = d.LoanDate
	if a != nil {
		cells[sheet.ColLoanDate] = a.AssignedAt.UTC().Format(sheet.LoanDateLayout)
	}

	row := make(Row, len(sheet.ExportColumns))
	for i, col := range sheet.ExportColumns {
		row[i] = cells[col]
	}
	return row
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

package persons

import (
	"context"
	"testing"

	"github.com/angelmondragon/tabletloan-backend/internal/assignments"
	"github.com/angelmondragon/tabletloan-backend/pkg/db"
	"github.com/angelmondragon/tabletloan-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tabletloan-backend/pkg/db/models"
	"github.com/angelmondragon/tabletloan-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tabletloan-backend/pkg/errors"
	"github.com/angelmondragon/tabletloan-backend/pkg/keylock"
	"github.com/angelmondragon/tabletloan-backend/pkg/logger"
	"github.com/angelmondragon/tabletloan-backend/pkg/outbox"
	"github.com/angelmondragon/tabletloan-backend/pkg/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	conn      *gorm.DB
	client    *db.Client
	svc       Service
	lifecycle assignments.Service
	blobs     *storage.Memory
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.NewFromConn(conn)
	locks := keylock.New()
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	lc, err := assignments.NewService(assignments.NewRepository(conn), client, emitter, locks, nil, logger.Nop())
	require.NoError(t, err)
	blobs := storage.NewMemory()
	svc, err := NewService(NewRepository(conn), client, lc, blobs, emitter, locks, logger.Nop())
	require.NoError(t, err)
	return fixture{conn: conn, client: client, svc: svc, lifecycle: lc, blobs: blobs}
}

func (f fixture) device(t *testing.T, tag string) *models.Device {
	t.Helper()
	d := &models.Device{AssetTag: tag}
	require.NoError(t, f.conn.Create(d).Error)
	return d
}

func TestCreateRequiresNames(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), Input{FirstName: "Max"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	p, err := f.svc.Create(context.Background(), Input{FirstName: " Max ", LastName: "Mustermann", ClassName: "7a"})
	require.NoError(t, err)
	assert.Equal(t, "Max", p.FirstName)
	assert.NotNil(t, p.CreatedAt)
	assert.Nil(t, p.CurrentAssignmentID)
}

func TestDuplicateNamesAreAllowed(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), Input{FirstName: "Max", LastName: "Mustermann"})
	require.NoError(t, err)
	_, err = f.svc.Create(context.Background(), Input{FirstName: "max", LastName: "MUSTERMANN"})
	require.NoError(t, err)

	rows, err := f.svc.FindByName(context.Background(), "MAX", "mustermann")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	for _, in := range []Input{
		{FirstName: "Anna", LastName: "Schmidt", ClassName: "7a"},
		{FirstName: "Ben", LastName: "Schmitz", ClassName: "7b"},
		{FirstName: "Cara", LastName: "Weber", ClassName: "7a"},
	} {
		_, err := f.svc.Create(context.Background(), in)
		require.NoError(t, err)
	}

	rows, err := f.svc.List(context.Background(), Filter{LastName: "schm"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = f.svc.List(context.Background(), Filter{ClassName: "7A"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestUpdateKeepsAssignmentPointer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, Input{FirstName: "Max", LastName: "Mustermann"})
	require.NoError(t, err)
	created, err := f.lifecycle.Create(ctx, assignments.CreateInput{DeviceID: f.device(t, "IT-1").ID, PersonID: p.ID})
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, p.ID, Input{FirstName: "Max", LastName: "Mustermann", City: "Köln"})
	require.NoError(t, err)
	assert.Equal(t, "Köln", updated.City)

	stored, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CurrentAssignmentID)
	assert.Equal(t, created.ID, *stored.CurrentAssignmentID)

	_, err = f.svc.Update(ctx, uuid.New(), Input{FirstName: "A", LastName: "B"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestFindOrCreateFoldsNonASCIINames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var first, again *models.Person
	var created bool
	err := f.client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if first, _, err = f.svc.FindOrCreateTx(ctx, tx, NewKey("Änne", "Müller", "5ä"), Input{}); err != nil {
			return err
		}
		again, created, err = f.svc.FindOrCreateTx(ctx, tx, NewKey("ÄNNE", "MÜLLER", "5Ä"), Input{})
		return err
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	listed, err := f.svc.List(ctx, Filter{LastName: "MÜLL"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Müller", listed[0].LastName)
}

func TestFindOrCreateUsesClassWhenPresent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var first, again, otherClass *models.Person
	var created1, created2, created3 bool
	err := f.client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if first, created1, err = f.svc.FindOrCreateTx(ctx, tx, NewKey("Max", "Mustermann", "7a"), Input{City: "Bonn"}); err != nil {
			return err
		}
		if again, created2, err = f.svc.FindOrCreateTx(ctx, tx, NewKey("max", "mustermann", "7A"), Input{Street: "Hauptstr. 1"}); err != nil {
			return err
		}
		otherClass, created3, err = f.svc.FindOrCreateTx(ctx, tx, NewKey("Max", "Mustermann", "8b"), Input{})
		return err
	})
	require.NoError(t, err)

	assert.True(t, created1)
	assert.False(t, created2)
	assert.True(t, created3)
	assert.Equal(t, first.ID, again.ID)
	assert.NotEqual(t, first.ID, otherClass.ID)
	assert.Equal(t, "7a", first.ClassName)

	stored, err := f.svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bonn", stored.City)
	assert.Equal(t, "Hauptstr. 1", stored.Street)
}

func TestDeletePersonDissolvesActiveAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, Input{FirstName: "Max", LastName: "Mustermann"})
	require.NoError(t, err)
	device := f.device(t, "IT-9")
	active, err := f.lifecycle.Create(ctx, assignments.CreateInput{DeviceID: device.ID, PersonID: p.ID})
	require.NoError(t, err)

	key := storage.ContractKey(uuid.NewString(), "Max_Mustermann.pdf")
	require.NoError(t, f.blobs.Put(ctx, key, []byte("%PDF"), "application/pdf"))
	require.NoError(t, f.conn.Create(&models.Contract{AssignmentID: &active.ID, Filename: "Max_Mustermann.pdf", StorageKey: key, IsActive: true}).Error)
	require.NoError(t, f.conn.Create(&models.Contract{PersonName: "Max Mustermann", Filename: "orphan.pdf"}).Error)

	result, err := f.svc.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, result.DissolvedActiveAssignment)
	assert.Equal(t, int64(1), result.AssignmentsDeleted)
	assert.Equal(t, int64(2), result.ContractsDeleted)
	assert.Equal(t, 0, f.blobs.Len())

	var d models.Device
	require.NoError(t, f.conn.First(&d, "id = ?", device.ID).Error)
	assert.Equal(t, enums.DeviceStatusAvailable, d.Status)
	assert.Nil(t, d.CurrentAssignmentID)

	var assignmentsLeft int64
	require.NoError(t, f.conn.Model(&models.Assignment{}).Count(&assignmentsLeft).Error)
	assert.Zero(t, assignmentsLeft)

	_, err = f.svc.Get(ctx, p.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDeletePersonWithoutLoan(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Create(context.Background(), Input{FirstName: "Erika", LastName: "Musterfrau"})
	require.NoError(t, err)

	result, err := f.svc.Delete(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, result.DissolvedActiveAssignment)
	assert.Zero(t, result.ContractsDeleted)
}

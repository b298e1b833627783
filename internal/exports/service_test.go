package exports

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/tabletloan-backend/internal/assignments"
	"github.com/angelmondragon/tabletloan-backend/internal/settings"
	"github.com/angelmondragon/tabletloan-backend/pkg/db"
	"github.com/angelmondragon/tabletloan-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tabletloan-backend/pkg/db/models"
	"github.com/angelmondragon/tabletloan-backend/pkg/keylock"
	"github.com/angelmondragon/tabletloan-backend/pkg/logger"
	"github.com/angelmondragon/tabletloan-backend/pkg/outbox"
	"github.com/angelmondragon/tabletloan-backend/pkg/sheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func column(name string) int {
	for i, c := range sheet.ExportColumns {
		if c == name {
			return i
		}
	}
	return -1
}

func newTestService(t *testing.T) (Service, *gorm.DB, assignments.Service, settings.Service) {
	t.Helper()
	conn := dbtest.Open(t)
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	lc, err := assignments.NewService(assignments.NewRepository(conn), db.NewFromConn(conn), emitter, keylock.New(), nil, logger.Nop())
	require.NoError(t, err)
	labels, err := settings.NewService(settings.NewRepository(conn))
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), labels)
	require.NoError(t, err)
	return svc, conn, lc, labels
}

func TestInventoryExport(t *testing.T) {
	svc, conn, lc, _ := newTestService(t)
	ctx := context.Background()

	loaned := &models.Device{AssetTag: "IT-1", SerialNumber: "SN-1", Model: "iPad Air"}
	idle := &models.Device{AssetTag: "IT-2", LoanDate: "01.09.2023"}
	require.NoError(t, conn.Create(loaned).Error)
	require.NoError(t, conn.Create(idle).Error)
	person := &models.Person{FirstName: "Max", LastName: "Mustermann", ClassName: "7a",
		Guardian1: models.Guardian{LastName: "Mustermann", FirstName: "Maria"}}
	require.NoError(t, conn.Create(person).Error)
	at := time.Date(2024, 8, 15, 9, 0, 0, 0, time.UTC)
	_, err := lc.Create(ctx, assignments.CreateInput{DeviceID: loaned.ID, PersonID: person.ID, AssignedAt: &at})
	require.NoError(t, err)

	rows, err := svc.Inventory(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Len(t, rows[0], 25)

	first := rows[0]
	assert.Equal(t, "IT-1", first[column(sheet.ColAssetTag)])
	assert.Equal(t, "Mustermann", first[column(sheet.ColLastName)])
	assert.Equal(t, "7a", first[column(sheet.ColClass)])
	assert.Equal(t, "Maria", first[column(sheet.ColGuardian1First)])
	assert.Equal(t, "iPad Air", first[column(sheet.ColModel)])
	assert.Equal(t, models.DefaultStylusLabel, first[column(sheet.ColStylus)])
	assert.Equal(t, "15.08.2024", first[column(sheet.ColLoanDate)])
	assert.Equal(t, "", first[column(sheet.ColReturn)])

	second := rows[1]
	assert.Equal(t, "IT-2", second[column(sheet.ColAssetTag)])
	assert.Equal(t, "", second[column(sheet.ColLastName)])
	assert.Equal(t, models.DefaultDeviceModelLabel, second[column(sheet.ColModel)])
	assert.Equal(t, "01.09.2023", second[column(sheet.ColLoanDate)])
}

func TestAssignmentsExportFiltersAndLabels(t *testing.T) {
	svc, conn, lc, labels := newTestService(t)
	ctx := context.Background()

	custom := "Samsung Tab"
	_, err := labels.Update(ctx, settings.Input{DeviceModelLabel: &custom})
	require.NoError(t, err)

	for i, p := range []struct{ tag, first, last, class string }{
		{"IT-1", "Max", "Mustermann", "7a"},
		{"IT-2", "Erika", "Musterfrau", "8b"},
	} {
		d := &models.Device{AssetTag: p.tag}
		require.NoError(t, conn.Create(d).Error)
		person := &models.Person{FirstName: p.first, LastName: p.last, ClassName: p.class}
		require.NoError(t, conn.Create(person).Error)
		_, err := lc.Create(ctx, assignments.CreateInput{DeviceID: d.ID, PersonID: person.ID})
		require.NoError(t, err, "seed %d", i)
	}

	all, err := svc.Assignments(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Musterfrau", all[0][column(sheet.ColLastName)])
	assert.Equal(t, custom, all[0][column(sheet.ColModel)])

	filtered, err := svc.Assignments(ctx, Filter{ClassName: "7A"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "IT-1", filtered[0][column(sheet.ColAssetTag)])

	byTag, err := svc.Assignments(ctx, Filter{AssetTag: "IT-2", FirstName: "eri"})
	require.NoError(t, err)
	require.Len(t, byTag, 1)

	var buf bytes.Buffer
	require.NoError(t, svc.Write(&buf, sheet.FormatCSV, all))
	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(buf.String(), "\ufeff")), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Sname,SuSNachn,SuSVorn"))
	assert.True(t, strings.HasSuffix(lines[0], "Rückgabe"))

	buf.Reset()
	require.NoError(t, svc.Write(&buf, sheet.FormatXLSX, all))
	records, err := sheet.Read(&buf)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Musterfrau", records[0].Get(sheet.ColLastName))
	assert.Equal(t, custom, records[0].Get(sheet.ColModel))
}

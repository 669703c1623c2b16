package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"tern/internal/models"
	"tern/internal/utils"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func seedListTeam(t *testing.T, db *gorm.DB) (*models.Team, *models.MailingList) {
	t.Helper()
	team := &models.Team{Name: "Acme", PlanTier: models.PlanTierPremium}
	require.NoError(t, db.Create(team).Error)
	list := &models.MailingList{}
	require.NoError(t, db.First(list, "team_id = ?", team.ID).Error)
	return team, list
}

func TestImportReaderMapsFieldsAndSkipsDuplicates(t *testing.T) {
	db := testDB(t)
	svc := NewContactService(db, nil)
	team, list := seedListTeam(t, db)

	imp := &models.ContactImport{
		TeamID:    team.ID,
		ListID:    list.ID,
		FieldsMap: datatypes.JSON(`{"email":"E-Mail Address","firstName":"Given Name"}`),
	}

	input := strings.Join([]string{
		"E-Mail Address,Given Name,Last Name,Tags,Company",
		"jo@example.com,Jo,Reyes,news;beta,Acme",
		"JO@EXAMPLE.COM,Duplicate,,,",
		",Missing,,,",
		"ana@example.com,Ana,,,Globex",
	}, "\n")

	require.NoError(t, svc.ImportReader(context.Background(), imp, strings.NewReader(input)))
	require.Equal(t, 4, imp.TotalRows)
	require.Equal(t, 2, imp.ImportedRows)
	require.Equal(t, 2, imp.SkippedRows)

	jo := &models.Contact{}
	require.NoError(t, db.First(jo, "team_id = ? AND email = ?", team.ID, "jo@example.com").Error)
	require.Equal(t, "Jo", jo.FirstName)
	require.Equal(t, "Reyes", jo.LastName)
	require.Equal(t, pq.StringArray{"news", "beta"}, jo.Tags)
	require.NotNil(t, jo.ListID)
	require.Equal(t, list.ID, *jo.ListID)

	meta, err := utils.JSONToMap(jo.Metadata)
	require.NoError(t, err)
	require.Equal(t, "Acme", meta["Company"])

	ana := &models.Contact{}
	require.NoError(t, db.First(ana, "team_id = ? AND email = ?", team.ID, "ana@example.com").Error)
	require.Equal(t, "Ana", ana.FirstName)
}

func TestImportReaderAutoDetectsCommonHeaders(t *testing.T) {
	db := testDB(t)
	svc := NewContactService(db, nil)
	team, list := seedListTeam(t, db)

	imp := &models.ContactImport{TeamID: team.ID, ListID: list.ID}
	input := "Email,First Name,last_name\nJo@Example.com,Jo,Reyes\n"

	require.NoError(t, svc.ImportReader(context.Background(), imp, strings.NewReader(input)))
	require.Equal(t, 1, imp.ImportedRows)

	contact := &models.Contact{}
	require.NoError(t, db.First(contact, "team_id = ?", team.ID).Error)
	require.Equal(t, "jo@example.com", contact.Email)
	require.Equal(t, "Jo", contact.FirstName)
	require.Equal(t, "Reyes", contact.LastName)
}

func TestImportReaderRequiresEmailColumn(t *testing.T) {
	db := testDB(t)
	svc := NewContactService(db, nil)
	team, list := seedListTeam(t, db)

	imp := &models.ContactImport{TeamID: team.ID, ListID: list.ID}
	err := svc.ImportReader(context.Background(), imp, strings.NewReader("Name,Phone\nJo,555\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "no email column")
}

func TestExportCSV(t *testing.T) {
	db := testDB(t)
	svc := NewContactService(db, nil)
	team, list := seedListTeam(t, db)

	require.NoError(t, db.Create(&models.Contact{
		Email:     "jo@example.com",
		FirstName: "Jo",
		LastName:  "Reyes",
		Tags:      pq.StringArray{"news", "beta"},
		ListID:    &list.ID,
		TeamID:    team.ID,
	}).Error)

	out, err := svc.ExportCSV(context.Background(), team.ID, list.ID)
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, []string{"Email", "First Name", "Last Name", "Status", "Tags", "Created At"}, rows[0])
	require.Equal(t, "jo@example.com", rows[1][0])
	require.Equal(t, "Jo", rows[1][1])
	require.Equal(t, "ACTIVE", rows[1][3])
	require.Equal(t, "news;beta", rows[1][4])
}

func TestExportXLSX(t *testing.T) {
	db := testDB(t)
	svc := NewContactService(db, nil)
	team, list := seedListTeam(t, db)

	require.NoError(t, db.Create(&models.Contact{
		Email:  "jo@example.com",
		ListID: &list.ID,
		TeamID: team.ID,
	}).Error)

	out, err := svc.ExportXLSX(context.Background(), team.ID, list.ID)
	require.NoError(t, err)

	workbook, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer workbook.Close()

	header, err := workbook.GetCellValue("Sheet1", "A1")
	require.NoError(t, err)
	require.Equal(t, "Email", header)

	email, err := workbook.GetCellValue("Sheet1", "A2")
	require.NoError(t, err)
	require.Equal(t, "jo@example.com", email)
}

func TestUnsubscribeContactScopedToTeam(t *testing.T) {
	db := testDB(t)
	svc := NewContactService(db, nil)
	team, list := seedListTeam(t, db)
	other := &models.Team{Name: "Globex", PlanTier: models.PlanTierPremium}
	require.NoError(t, db.Create(other).Error)

	contact := &models.Contact{Email: "jo@example.com", ListID: &list.ID, TeamID: team.ID}
	require.NoError(t, db.Create(contact).Error)

	err := svc.UnsubscribeContact(context.Background(), other.ID, contact.ID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "contact not found")

	require.NoError(t, svc.UnsubscribeContact(context.Background(), team.ID, contact.ID))

	stored := &models.Contact{}
	require.NoError(t, db.First(stored, "id = ?", contact.ID).Error)
	require.Equal(t, models.SubscriberStatusUnsubscribed, stored.Status)
}

func TestProcessImportWithoutStorageFails(t *testing.T) {
	db := testDB(t)
	svc := NewContactService(db, nil)
	team, list := seedListTeam(t, db)

	fileID := uuid.New().String()
	imp := &models.ContactImport{
		TeamID: team.ID,
		ListID: list.ID,
		FileID: &fileID,
		Status: models.ImportStatusPending,
	}
	require.NoError(t, db.Create(imp).Error)

	err := svc.ProcessImport(context.Background(), imp.ID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "storage is not configured")

	stored := &models.ContactImport{}
	require.NoError(t, db.First(stored, "id = ?", imp.ID).Error)
	require.Equal(t, models.ImportStatusFailed, stored.Status)
	require.Contains(t, stored.Error, "storage is not configured")

	// A settled import is never reprocessed.
	require.NoError(t, svc.ProcessImport(context.Background(), imp.ID))
	require.NoError(t, db.First(stored, "id = ?", imp.ID).Error)
	require.Equal(t, models.ImportStatusFailed, stored.Status)
}

func TestProcessImportRequiresSourceFile(t *testing.T) {
	db := testDB(t)
	svc := NewContactService(db, nil)
	team, list := seedListTeam(t, db)

	imp := &models.ContactImport{TeamID: team.ID, ListID: list.ID, Status: models.ImportStatusPending}
	require.NoError(t, db.Create(imp).Error)

	err := svc.ProcessImport(context.Background(), imp.ID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no source file")
}

func TestWireImportEventsEnqueuesPendingImport(t *testing.T) {
	db := testDB(t)
	svc := NewContactService(db, nil)
	team, list := seedListTeam(t, db)

	enqueuer := &stubImportEnqueuer{ch: make(chan string, 1)}
	svc.WireImportEvents(enqueuer)

	imp := &models.ContactImport{TeamID: team.ID, ListID: list.ID, Status: models.ImportStatusPending}
	require.NoError(t, db.Create(imp).Error)

	select {
	case got := <-enqueuer.ch:
		require.Equal(t, imp.ID, got)
	case <-time.After(2 * time.Second):
		t.Fatal("import was never enqueued")
	}
}

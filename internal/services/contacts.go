package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"tern/internal/events"
	"tern/internal/models"
	"tern/internal/utils/logger"

	"github.com/lib/pq"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var contactLog = logger.New("CONTACTS")

// ContactImportEnqueuer pushes a pending import onto the task queue.
type ContactImportEnqueuer interface {
	EnqueueContactImportTask(ctx context.Context, importID string) error
}

// ContactService owns contact CRUD side operations: CSV import with field
// mapping, exports and unsubscribes.
type ContactService struct {
	db      *gorm.DB
	storage *StorageService
	log     *logger.Logger
}

func NewContactService(db *gorm.DB, storage *StorageService) *ContactService {
	return &ContactService{db: db, storage: storage, log: contactLog}
}

// WireImportEvents registers the handler that turns a freshly created
// import into a queued task.
func (s *ContactService) WireImportEvents(enqueuer ContactImportEnqueuer) {
	events.On("contact_import.created", func(data interface{}) {
		imp, ok := data.(*models.ContactImport)
		if !ok {
			return
		}
		s.log.Info("Contact import created %s", imp.ID)
		if imp.Status != models.ImportStatusPending {
			return
		}
		if err := enqueuer.EnqueueContactImportTask(context.Background(), imp.ID); err != nil {
			s.log.Error("failed to enqueue contact import task: %v", err)
		}
	})
}

func isDuplicateKeyErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	// sqlite wording, the in-memory test driver reports it this way
	return strings.Contains(err.Error(), "UNIQUE constraint")
}

// columnIndexes maps contact fields to CSV column positions. An explicit
// fields map ({"email": "E-Mail Address", ...}) wins; otherwise common
// header names are matched case-insensitively.
func columnIndexes(header []string, fieldsMap map[string]string) map[string]int {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		byName[strings.ToLower(strings.TrimSpace(h))] = i
	}

	idx := make(map[string]int)
	lookup := func(field string, aliases ...string) {
		if mapped, ok := fieldsMap[field]; ok {
			if i, ok := byName[strings.ToLower(strings.TrimSpace(mapped))]; ok {
				idx[field] = i
			}
			return
		}
		for _, alias := range aliases {
			if i, ok := byName[alias]; ok {
				idx[field] = i
				return
			}
		}
	}

	lookup("email", "email", "e-mail", "email address")
	lookup("firstName", "firstname", "first_name", "first name")
	lookup("lastName", "lastname", "last_name", "last name")
	lookup("tags", "tags")
	return idx
}

func cell(record []string, idx map[string]int, field string) string {
	i, ok := idx[field]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// ImportReader walks a CSV stream and inserts one contact per row.
// Duplicate emails within the team are counted as skipped, not errors.
// Unmapped columns land in the contact's metadata.
func (s *ContactService) ImportReader(ctx context.Context, imp *models.ContactImport, r io.Reader) error {
	var fieldsMap map[string]string
	if len(imp.FieldsMap) > 0 {
		if err := json.Unmarshal(imp.FieldsMap, &fieldsMap); err != nil {
			return fmt.Errorf("invalid fields map: %w", err)
		}
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read csv header: %w", err)
	}
	idx := columnIndexes(header, fieldsMap)
	if _, ok := idx["email"]; !ok {
		return errors.New("csv has no email column")
	}

	mapped := make(map[int]bool, len(idx))
	for _, i := range idx {
		mapped[i] = true
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			imp.SkippedRows++
			continue
		}
		imp.TotalRows++

		email := cell(record, idx, "email")
		if email == "" {
			imp.SkippedRows++
			continue
		}

		contact := &models.Contact{
			Email:     strings.ToLower(email),
			FirstName: cell(record, idx, "firstName"),
			LastName:  cell(record, idx, "lastName"),
			TeamID:    imp.TeamID,
			ListID:    &imp.ListID,
		}
		if tags := cell(record, idx, "tags"); tags != "" {
			contact.Tags = pq.StringArray(strings.Split(tags, ";"))
		}

		extra := map[string]string{}
		for i, h := range header {
			if mapped[i] || i >= len(record) || strings.TrimSpace(record[i]) == "" {
				continue
			}
			extra[strings.TrimSpace(h)] = strings.TrimSpace(record[i])
		}
		if len(extra) > 0 {
			if raw, err := json.Marshal(extra); err == nil {
				contact.Metadata = datatypes.JSON(raw)
			}
		}

		if err := s.db.WithContext(ctx).Create(contact).Error; err != nil {
			if isDuplicateKeyErr(err) {
				imp.SkippedRows++
				continue
			}
			imp.SkippedRows++
			s.log.Warn("row %d rejected: %v", imp.TotalRows, err)
			continue
		}
		imp.ImportedRows++
	}

	return nil
}

// ProcessImport runs a queued import end to end: fetch the source file,
// walk the rows, settle the status.
func (s *ContactService) ProcessImport(ctx context.Context, importID string) error {
	imp := &models.ContactImport{}
	if err := s.db.WithContext(ctx).First(imp, "id = ?", importID).Error; err != nil {
		return fmt.Errorf("import not found: %w", err)
	}

	if imp.Status != models.ImportStatusPending {
		s.log.Warn("import %s already %s, skipping", imp.ID, imp.Status)
		return nil
	}

	if err := s.db.WithContext(ctx).Model(imp).Update("status", models.ImportStatusProcessing).Error; err != nil {
		return err
	}

	fail := func(cause error) error {
		s.db.WithContext(ctx).Model(imp).Updates(map[string]interface{}{
			"status": models.ImportStatusFailed,
			"error":  cause.Error(),
		})
		return s.log.Error("import %s failed: %v", imp.ID, cause)
	}

	if imp.FileID == nil || *imp.FileID == "" {
		return fail(errors.New("import has no source file"))
	}
	if s.storage == nil {
		return fail(errors.New("storage is not configured"))
	}

	file := &models.File{}
	if err := s.db.WithContext(ctx).First(file, "id = ?", *imp.FileID).Error; err != nil {
		return fail(fmt.Errorf("source file not found: %w", err))
	}

	body, err := s.storage.Download(ctx, file.Path)
	if err != nil {
		return fail(err)
	}
	defer body.Close()

	if err := s.ImportReader(ctx, imp, body); err != nil {
		return fail(err)
	}

	if err := s.db.WithContext(ctx).Model(imp).Updates(map[string]interface{}{
		"status":        models.ImportStatusCompleted,
		"total_rows":    imp.TotalRows,
		"imported_rows": imp.ImportedRows,
		"skipped_rows":  imp.SkippedRows,
	}).Error; err != nil {
		return err
	}

	events.Emit("contact_import.completed", imp)
	s.log.Success("Import %s: %d rows, %d imported, %d skipped", imp.ID, imp.TotalRows, imp.ImportedRows, imp.SkippedRows)
	return nil
}

func (s *ContactService) contactsFor(ctx context.Context, teamID, listID string) ([]models.Contact, error) {
	var contacts []models.Contact
	q := s.db.WithContext(ctx).Where("team_id = ?", teamID)
	if listID != "" {
		q = q.Where("list_id = ?", listID)
	}
	if err := q.Order("created_at asc").Find(&contacts).Error; err != nil {
		return nil, err
	}
	return contacts, nil
}

var contactExportHeader = []string{"Email", "First Name", "Last Name", "Status", "Tags", "Created At"}

// ExportCSV writes the team's contacts as CSV.
func (s *ContactService) ExportCSV(ctx context.Context, teamID, listID string) ([]byte, error) {
	contacts, err := s.contactsFor(ctx, teamID, listID)
	if err != nil {
		return nil, err
	}

	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)

	writer.Write(contactExportHeader)
	for _, c := range contacts {
		writer.Write([]string{
			c.Email,
			c.FirstName,
			c.LastName,
			string(c.Status),
			strings.Join(c.Tags, ";"),
			c.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// ExportXLSX writes the team's contacts as an Excel workbook.
func (s *ContactService) ExportXLSX(ctx context.Context, teamID, listID string) ([]byte, error) {
	contacts, err := s.contactsFor(ctx, teamID, listID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.log.Error("failed to close excel file: %v", err)
		}
	}()

	sheet := "Sheet1"
	for i, header := range contactExportHeader {
		col := string(rune('A' + i))
		f.SetCellValue(sheet, col+"1", header)
	}

	for i, c := range contacts {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), c.Email)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), c.FirstName)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), c.LastName)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), string(c.Status))
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), strings.Join(c.Tags, ";"))
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), c.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, s.log.Error("failed to write excel buffer: %v", err)
	}
	return buffer.Bytes(), nil
}

// UnsubscribeContact flips a contact to UNSUBSCRIBED from the
// authenticated API side.
func (s *ContactService) UnsubscribeContact(ctx context.Context, teamID, contactID string) error {
	contact := &models.Contact{}
	if err := s.db.WithContext(ctx).Where("id = ? AND team_id = ?", contactID, teamID).First(contact).Error; err != nil {
		return fmt.Errorf("contact not found: %w", err)
	}
	return contact.Unsubscribe(s.db.WithContext(ctx))
}

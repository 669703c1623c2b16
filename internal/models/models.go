package models

import (
	"context"
	"strings"
	"sync"
	"time"

	"tern/internal/events"
	"tern/internal/utils/crypto"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Team struct {
	Base
	Name         string        `gorm:"not null" json:"name" validate:"required,min=2"`
	PlanTier     PlanTier      `gorm:"type:varchar(20);default:'FREE'" json:"planTier"`
	Users        []User        `gorm:"foreignKey:TeamID;references:ID" json:"users,omitempty"`
	MailingLists []MailingList `gorm:"foreignKey:TeamID;references:ID;constraint:OnDelete:CASCADE" json:"mailingLists,omitempty"`
	SMTPAccounts []SMTPAccount `gorm:"foreignKey:TeamID;references:ID;constraint:OnDelete:CASCADE" json:"smtpAccounts,omitempty"`
	Webhooks     []Webhook     `gorm:"foreignKey:TeamID;references:ID;constraint:OnDelete:CASCADE" json:"webhooks,omitempty"`
	APIKeys      []APIKey      `gorm:"foreignKey:TeamID;references:ID;constraint:OnDelete:CASCADE" json:"apiKeys,omitempty"`
	Campaigns    []Campaign    `gorm:"foreignKey:TeamID;references:ID;constraint:OnDelete:CASCADE" json:"campaigns,omitempty"`
}

func (t *Team) AfterCreate(tx *gorm.DB) error {
	// Every team starts with a stats row and a default list so the
	// dashboard and the first import have somewhere to land.
	stats := &TeamStats{TeamID: t.ID}
	if err := tx.Create(stats).Error; err != nil {
		return err
	}

	list := &MailingList{
		Name:        "General",
		Description: "Default mailing list",
		TeamID:      t.ID,
	}
	if err := tx.Create(list).Error; err != nil {
		return err
	}

	events.Emit("team.created", t)
	return nil
}

type MailingList struct {
	Base
	Name        string    `gorm:"not null" json:"name" validate:"required"`
	Description string    `json:"description"`
	TeamID      string    `gorm:"type:uuid;not null;index" json:"teamId"`
	Contacts    []Contact `gorm:"foreignKey:ListID;references:ID" json:"contacts,omitempty"`
}

type Contact struct {
	Base
	Email     string           `gorm:"not null;uniqueIndex:idx_contacts_team_email" json:"email" validate:"required,email"`
	FirstName string           `json:"firstName"`
	LastName  string           `json:"lastName"`
	Status    SubscriberStatus `gorm:"type:varchar(20);default:'ACTIVE'" json:"status"`
	Tags      pq.StringArray   `gorm:"type:text[]" json:"tags,omitempty"`
	Metadata  datatypes.JSON   `json:"metadata,omitempty"`
	ListID    *string          `gorm:"type:uuid;index" json:"listId,omitempty"`
	TeamID    string           `gorm:"type:uuid;not null;uniqueIndex:idx_contacts_team_email" json:"teamId"`
}

// FullName joins the name parts, falling back to the email local part.
func (c *Contact) FullName() string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name != "" {
		return name
	}
	if at := strings.Index(c.Email, "@"); at > 0 {
		return c.Email[:at]
	}
	return c.Email
}

// Unsubscribe flips the contact out of every future send.
func (c *Contact) Unsubscribe(tx *gorm.DB) error {
	c.Status = SubscriberStatusUnsubscribed
	return tx.Model(c).Update("status", SubscriberStatusUnsubscribed).Error
}

type ContactImport struct {
	Base
	TeamID       string         `gorm:"type:uuid;not null;index" json:"teamId"`
	ListID       string         `gorm:"type:uuid;not null" json:"listId" validate:"required"`
	FileID       *string        `gorm:"type:uuid" json:"fileId,omitempty"`
	Status       ImportStatus   `gorm:"type:varchar(20);default:'PENDING'" json:"status"`
	FieldsMap    datatypes.JSON `json:"fieldsMap,omitempty"`
	TotalRows    int            `json:"totalRows"`
	ImportedRows int            `json:"importedRows"`
	SkippedRows  int            `json:"skippedRows"`
	Error        string         `json:"error,omitempty"`
}

func (ci *ContactImport) AfterCreate(tx *gorm.DB) error {
	events.Emit("contact_import.created", ci)
	return nil
}

// FileURLGenerator produces presigned download URLs for stored files.
type FileURLGenerator interface {
	GetSignedURL(ctx context.Context, path string, expiry time.Duration) (string, error)
}

var (
	urlGeneratorMu sync.RWMutex
	urlGenerator   FileURLGenerator
)

// RegisterFileURLGenerator installs the storage backend used to resolve
// File.URL on reads.
func RegisterFileURLGenerator(g FileURLGenerator) {
	urlGeneratorMu.Lock()
	defer urlGeneratorMu.Unlock()
	urlGenerator = g
}

type File struct {
	Base
	Name        string `gorm:"not null" json:"name"`
	Path        string `gorm:"not null" json:"-"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	TeamID      string `gorm:"type:uuid;not null;index" json:"teamId"`
	URL         string `gorm:"-" json:"url,omitempty"`
}

func (f *File) AfterFind(tx *gorm.DB) error {
	urlGeneratorMu.RLock()
	g := urlGenerator
	urlGeneratorMu.RUnlock()
	if g == nil {
		return nil
	}
	url, err := g.GetSignedURL(context.Background(), f.Path, time.Hour)
	if err != nil {
		log.Warn("signed url for %s: %v", f.Path, err)
		return nil
	}
	f.URL = url
	return nil
}

// SMTPAccount is a customer-owned sending identity. Accounts join the
// rotation pool while IsActive; repeated failures trip the breaker in
// MarkFailure and pull the account out until a success or a manual reset.
type SMTPAccount struct {
	Base
	Name          string     `gorm:"not null" json:"name" validate:"required"`
	Host          string     `gorm:"not null" json:"host" validate:"required"`
	Port          int        `gorm:"not null;default:587" json:"port" validate:"min=1,max=65535"`
	Username      string     `gorm:"not null" json:"username" validate:"required"`
	Password      string     `gorm:"not null" json:"-"`
	FromEmail     string     `json:"fromEmail" validate:"omitempty,email"`
	FromName      string     `json:"fromName"`
	RotationGroup string     `gorm:"index" json:"rotationGroup"`
	IsDefault     bool       `gorm:"default:false" json:"isDefault"`
	IsActive      bool       `gorm:"default:true" json:"isActive"`
	MaxSendRate   int        `gorm:"default:10" json:"maxSendRate"`
	FailureCount  int        `gorm:"default:0" json:"failureCount"`
	LastError     string     `json:"lastError,omitempty"`
	LastCheckedAt *time.Time `json:"lastCheckedAt,omitempty"`
	TeamID        string     `gorm:"type:uuid;not null;index" json:"teamId"`
}

func (a *SMTPAccount) BeforeCreate(tx *gorm.DB) error {
	if err := a.Base.BeforeCreate(tx); err != nil {
		return err
	}
	if a.Password != "" {
		enc, err := crypto.Encrypt(a.Password)
		if err != nil {
			return err
		}
		a.Password = enc
	}
	return nil
}

func (a *SMTPAccount) BeforeUpdate(tx *gorm.DB) error {
	if !tx.Statement.Changed("Password") {
		return nil
	}
	if a.Password == "" {
		return nil
	}
	enc, err := crypto.Encrypt(a.Password)
	if err != nil {
		return err
	}
	a.Password = enc
	tx.Statement.SetColumn("Password", enc)
	return nil
}

func (a *SMTPAccount) AfterFind(tx *gorm.DB) error {
	if a.Password == "" {
		return nil
	}
	plain, err := crypto.Decrypt(a.Password)
	if err != nil {
		return err
	}
	a.Password = plain
	return nil
}

// MarkFailure bumps the failure counter and disables the account once it
// crosses threshold. Returns whether this call tripped the breaker.
func (a *SMTPAccount) MarkFailure(tx *gorm.DB, threshold int, sendErr error) (bool, error) {
	now := time.Now()
	a.FailureCount++
	a.LastCheckedAt = &now
	if sendErr != nil {
		a.LastError = sendErr.Error()
	}
	tripped := false
	if threshold > 0 && a.FailureCount >= threshold && a.IsActive {
		a.IsActive = false
		tripped = true
	}
	err := tx.Model(a).Updates(map[string]interface{}{
		"failure_count":   a.FailureCount,
		"is_active":       a.IsActive,
		"last_error":      a.LastError,
		"last_checked_at": now,
	}).Error
	if err != nil {
		return false, err
	}
	if tripped {
		events.Emit("smtp_account.disabled", a)
	}
	return tripped, nil
}

// ResetFailures clears the counter and re-activates the account. Called
// after any successful send and by the manual reset endpoint.
func (a *SMTPAccount) ResetFailures(tx *gorm.DB) error {
	now := time.Now()
	a.FailureCount = 0
	a.IsActive = true
	a.LastError = ""
	a.LastCheckedAt = &now
	return tx.Model(a).Updates(map[string]interface{}{
		"failure_count":   0,
		"is_active":       true,
		"last_error":      "",
		"last_checked_at": now,
	}).Error
}

// FromAddress resolves the address used in the From header. A username
// without a domain part gets the SMTP host appended.
func (a *SMTPAccount) FromAddress() string {
	if a.FromEmail != "" {
		return a.FromEmail
	}
	if strings.Contains(a.Username, "@") {
		return a.Username
	}
	return a.Username + "@" + a.Host
}

type Campaign struct {
	Base
	Name           string           `gorm:"not null" json:"name" validate:"required"`
	Description    string           `json:"description"`
	Status         CampaignStatus   `gorm:"type:varchar(20);default:'DRAFT'" json:"status"`
	Schedule       CampaignSchedule `gorm:"type:varchar(20);default:'ONE_TIME'" json:"schedule"`
	ScheduledFor   *time.Time       `json:"scheduledFor,omitempty"`
	CronExpression string           `json:"cronExpression,omitempty"`
	Timezone       string           `gorm:"default:'UTC'" json:"timezone"`
	BatchSize      int              `gorm:"default:100" json:"batchSize"`
	ListID         *string          `gorm:"type:uuid;index" json:"listId,omitempty"`
	SMTPAccountID  *string          `gorm:"type:uuid" json:"smtpAccountId,omitempty"`
	RotationGroup  string           `json:"rotationGroup,omitempty"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`
	TeamID         string           `gorm:"type:uuid;not null;index" json:"teamId"`
	Messages       []Message        `gorm:"foreignKey:CampaignID;references:ID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// IsDue reports whether the campaign may be processed now. Scheduled
// campaigns sit out until their time arrives; that is a skip, not an error.
func (c *Campaign) IsDue(now time.Time) bool {
	if c.ScheduledFor == nil {
		return true
	}
	return !c.ScheduledFor.After(now)
}

func (c *Campaign) IsRecurring() bool {
	return c.Schedule == CampaignScheduleRecurring && c.CronExpression != ""
}

// MessageMaxRetries caps queue retry passes per message.
const MessageMaxRetries = 3

// Message is the content of a campaign: one subject/body pair fanned out
// to the campaign's recipients. BeaconID is the only identifier the
// tracking endpoints ever see.
type Message struct {
	Base
	CampaignID string             `gorm:"type:uuid;not null;index" json:"campaignId"`
	TeamID     string             `gorm:"type:uuid;not null;index" json:"teamId"`
	Subject    string             `gorm:"not null" json:"subject" validate:"required"`
	BodyHTML   string             `json:"bodyHtml"`
	BodyText   string             `json:"bodyText"`
	BeaconID   string             `gorm:"type:varchar(36);uniqueIndex" json:"-"`
	Status     MessageStatus      `gorm:"type:varchar(20);default:'DRAFT'" json:"status"`
	Retries    int                `gorm:"default:0" json:"retries"`
	Error      string             `json:"error,omitempty"`
	SentAt     *time.Time         `json:"sentAt,omitempty"`
	Recipients []MessageRecipient `gorm:"foreignKey:MessageID;references:ID;constraint:OnDelete:CASCADE" json:"recipients,omitempty"`
}

// CanRetry reports whether another queue pass is allowed. Checked before
// the increment, so the cap is observed on the pass after the third failure.
func (m *Message) CanRetry() bool {
	return m.Retries < MessageMaxRetries
}

type MessageRecipient struct {
	Base
	MessageID  string          `gorm:"type:uuid;not null;index;uniqueIndex:idx_recipients_message_contact" json:"messageId"`
	ContactID  string          `gorm:"type:uuid;not null;uniqueIndex:idx_recipients_message_contact" json:"contactId"`
	Email      string          `gorm:"not null" json:"email"`
	Status     RecipientStatus `gorm:"type:varchar(20);default:'PENDING';index" json:"status"`
	SentAt     *time.Time      `json:"sentAt,omitempty"`
	OpenedAt   *time.Time      `json:"openedAt,omitempty"`
	ClickedAt  *time.Time      `json:"clickedAt,omitempty"`
	BouncedAt  *time.Time      `json:"bouncedAt,omitempty"`
	FailedAt   *time.Time      `json:"failedAt,omitempty"`
	Error      string          `json:"error,omitempty"`
	RetryCount int             `gorm:"default:0" json:"retryCount"`
}

func (r *MessageRecipient) MarkSent(tx *gorm.DB) error {
	now := time.Now()
	r.Status = RecipientStatusSent
	r.SentAt = &now
	r.Error = ""
	return tx.Model(r).Updates(map[string]interface{}{
		"status":  RecipientStatusSent,
		"sent_at": now,
		"error":   "",
	}).Error
}

// MarkOpened records the first open. Later opens keep the original
// timestamp; a click already outranks an open.
func (r *MessageRecipient) MarkOpened(tx *gorm.DB) error {
	updates := map[string]interface{}{}
	now := time.Now()
	if r.OpenedAt == nil {
		r.OpenedAt = &now
		updates["opened_at"] = now
	}
	if r.Status == RecipientStatusSent || r.Status == RecipientStatusPending {
		r.Status = RecipientStatusOpened
		updates["status"] = RecipientStatusOpened
	}
	if len(updates) == 0 {
		return nil
	}
	return tx.Model(r).Updates(updates).Error
}

// MarkClicked records a click; a click implies the message was opened.
func (r *MessageRecipient) MarkClicked(tx *gorm.DB) error {
	now := time.Now()
	updates := map[string]interface{}{}
	if r.ClickedAt == nil {
		r.ClickedAt = &now
		updates["clicked_at"] = now
	}
	if r.OpenedAt == nil {
		r.OpenedAt = &now
		updates["opened_at"] = now
	}
	if r.Status != RecipientStatusClicked {
		r.Status = RecipientStatusClicked
		updates["status"] = RecipientStatusClicked
	}
	if len(updates) == 0 {
		return nil
	}
	return tx.Model(r).Updates(updates).Error
}

func (r *MessageRecipient) MarkBounced(tx *gorm.DB) error {
	now := time.Now()
	r.Status = RecipientStatusBounced
	r.BouncedAt = &now
	return tx.Model(r).Updates(map[string]interface{}{
		"status":     RecipientStatusBounced,
		"bounced_at": now,
	}).Error
}

func (r *MessageRecipient) MarkFailed(tx *gorm.DB, sendErr error) error {
	now := time.Now()
	r.Status = RecipientStatusFailed
	r.FailedAt = &now
	r.RetryCount++
	if sendErr != nil {
		r.Error = sendErr.Error()
	}
	return tx.Model(r).Updates(map[string]interface{}{
		"status":      RecipientStatusFailed,
		"failed_at":   now,
		"retry_count": r.RetryCount,
		"error":       r.Error,
	}).Error
}

// MessageOpen is one beacon hit. Only the hashed IP and the truncated
// user-agent family are stored, never the raw values.
type MessageOpen struct {
	Base
	MessageID       string  `gorm:"type:uuid;not null;index" json:"messageId"`
	RecipientID     *string `gorm:"type:uuid;index" json:"recipientId,omitempty"`
	TeamID          string  `gorm:"type:uuid;index" json:"teamId"`
	BeaconID        string  `gorm:"type:varchar(36);index" json:"beaconId"`
	IPHash          string  `gorm:"type:varchar(64)" json:"ipHash"`
	UserAgentFamily string  `gorm:"type:varchar(50)" json:"userAgentFamily"`
}

func (o *MessageOpen) AfterCreate(tx *gorm.DB) error {
	events.Emit("message_open.created", o)
	return nil
}

// MessageClick is one rewritten-link hit, stored with the same privacy
// treatment as opens.
type MessageClick struct {
	Base
	MessageID       string  `gorm:"type:uuid;not null;index" json:"messageId"`
	RecipientID     *string `gorm:"type:uuid;index" json:"recipientId,omitempty"`
	TeamID          string  `gorm:"type:uuid;index" json:"teamId"`
	BeaconID        string  `gorm:"type:varchar(36);index" json:"beaconId"`
	URL             string  `gorm:"not null" json:"url"`
	IPHash          string  `gorm:"type:varchar(64)" json:"ipHash"`
	UserAgentFamily string  `gorm:"type:varchar(50)" json:"userAgentFamily"`
}

func (c *MessageClick) AfterCreate(tx *gorm.DB) error {
	events.Emit("message_click.created", c)
	return nil
}

type Webhook struct {
	Base
	Name     string         `gorm:"not null" json:"name" validate:"required"`
	URL      string         `gorm:"not null" json:"url" validate:"required,url"`
	Secret   string         `json:"-"`
	Events   pq.StringArray `gorm:"type:text[]" json:"events"`
	IsActive bool           `gorm:"default:true" json:"isActive"`
	TeamID   string         `gorm:"type:uuid;not null;index" json:"teamId"`
}

// Subscribed reports whether the webhook wants the given event.
func (w *Webhook) Subscribed(event string) bool {
	if len(w.Events) == 0 {
		return true
	}
	for _, e := range w.Events {
		if e == event || e == "*" {
			return true
		}
	}
	return false
}

type WebhookDelivery struct {
	Base
	WebhookID    string         `gorm:"type:uuid;not null;index" json:"webhookId"`
	Event        string         `gorm:"not null" json:"event"`
	Payload      datatypes.JSON `json:"payload"`
	Status       DeliveryStatus `gorm:"type:varchar(20);default:'PENDING'" json:"status"`
	Attempts     int            `gorm:"default:0" json:"attempts"`
	ResponseCode int            `json:"responseCode,omitempty"`
	Error        string         `json:"error,omitempty"`
	DeliveredAt  *time.Time     `json:"deliveredAt,omitempty"`
}

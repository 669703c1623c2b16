package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base contains common columns for all tables
type Base struct {
	ID        string    `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	DeletedAt time.Time `gorm:"index;default:NULL" json:"-" validate:"omitempty"`
	IsDeleted bool      `json:"isDeleted" default:"false"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (base *Base) BeforeCreate(tx *gorm.DB) error {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	return nil
}

// Status enums
type CampaignStatus string
type CampaignSchedule string
type MessageStatus string
type RecipientStatus string
type SubscriberStatus string
type ImportStatus string
type TrackingEventType string
type PlanTier string
type CheckStatus string
type RiskLevel string
type EmailValidity string
type DomainType string
type AlertType string
type DeliveryStatus string
type UserRole string

// Campaign lifecycle: DRAFT -> ACTIVE -> COMPLETED or FAILED, with PAUSED
// reachable from ACTIVE and back.
const (
	CampaignStatusDraft     CampaignStatus = "DRAFT"
	CampaignStatusActive    CampaignStatus = "ACTIVE"
	CampaignStatusPaused    CampaignStatus = "PAUSED"
	CampaignStatusCompleted CampaignStatus = "COMPLETED"
	CampaignStatusFailed    CampaignStatus = "FAILED"
)

// Campaign schedule constants
const (
	CampaignScheduleOneTime   CampaignSchedule = "ONE_TIME"
	CampaignScheduleRecurring CampaignSchedule = "RECURRING"
)

// Message status constants. RETRIED marks a message that failed a queue
// pass and is waiting for the next one.
const (
	MessageStatusDraft   MessageStatus = "DRAFT"
	MessageStatusQueued  MessageStatus = "QUEUED"
	MessageStatusSent    MessageStatus = "SENT"
	MessageStatusFailed  MessageStatus = "FAILED"
	MessageStatusRetried MessageStatus = "RETRIED"
)

// Recipient status constants
const (
	RecipientStatusPending RecipientStatus = "PENDING"
	RecipientStatusSent    RecipientStatus = "SENT"
	RecipientStatusOpened  RecipientStatus = "OPENED"
	RecipientStatusClicked RecipientStatus = "CLICKED"
	RecipientStatusBounced RecipientStatus = "BOUNCED"
	RecipientStatusFailed  RecipientStatus = "FAILED"
)

// Subscriber status constants
const (
	SubscriberStatusActive       SubscriberStatus = "ACTIVE"
	SubscriberStatusUnsubscribed SubscriberStatus = "UNSUBSCRIBED"
	SubscriberStatusBounced      SubscriberStatus = "BOUNCED"
	SubscriberStatusComplained   SubscriberStatus = "COMPLAINED"
)

// Contact import status constants
const (
	ImportStatusPending    ImportStatus = "PENDING"
	ImportStatusProcessing ImportStatus = "PROCESSING"
	ImportStatusCompleted  ImportStatus = "COMPLETED"
	ImportStatusFailed     ImportStatus = "FAILED"
)

// Tracking event types recorded by the beacon endpoints and fanned out to
// webhooks.
const (
	TrackingEventOpen        TrackingEventType = "open"
	TrackingEventClick       TrackingEventType = "click"
	TrackingEventUnsubscribe TrackingEventType = "unsubscribe"
	TrackingEventBounce      TrackingEventType = "bounce"
	TrackingEventComplaint   TrackingEventType = "complaint"
)

// Plan tiers
const (
	PlanTierFree    PlanTier = "FREE"
	PlanTierPremium PlanTier = "PREMIUM"
)

// Deliverability check outcomes
const (
	CheckStatusPass    CheckStatus = "PASS"
	CheckStatusFail    CheckStatus = "FAIL"
	CheckStatusNeutral CheckStatus = "NEUTRAL"
	CheckStatusUnknown CheckStatus = "UNKNOWN"
)

// Risk levels derived from check outcomes
const (
	RiskLevelLow    RiskLevel = "LOW"
	RiskLevelMedium RiskLevel = "MEDIUM"
	RiskLevelHigh   RiskLevel = "HIGH"
)

// Email validation outcomes
const (
	EmailValidityValid   EmailValidity = "VALID"
	EmailValidityInvalid EmailValidity = "INVALID"
	EmailValidityUnknown EmailValidity = "UNKNOWN"
)

// Email domain classes
const (
	DomainTypeFree       DomainType = "FREE"
	DomainTypePremium    DomainType = "PREMIUM"
	DomainTypeDisposable DomainType = "DISPOSABLE"
)

// Alert types
const (
	AlertTypeFailedCampaign    AlertType = "FAILED_CAMPAIGN"
	AlertTypeSMTPDisabled      AlertType = "SMTP_DISABLED"
	AlertTypeThresholdExceeded AlertType = "THRESHOLD_EXCEEDED"
)

// Webhook delivery status constants
const (
	DeliveryStatusPending   DeliveryStatus = "PENDING"
	DeliveryStatusDelivered DeliveryStatus = "DELIVERED"
	DeliveryStatusFailed    DeliveryStatus = "FAILED"
)

// User roles
const (
	UserRoleSuperAdmin UserRole = "SUPER_ADMIN"
	UserRoleAdmin      UserRole = "ADMIN"
	UserRoleMember     UserRole = "MEMBER"
)

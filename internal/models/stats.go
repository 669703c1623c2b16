package models

import (
	"time"

	"tern/internal/events"

	"gorm.io/gorm"
)

// CampaignStats is the per-campaign aggregate the dashboard reads. It is
// recomputed, never incremented, so a replayed event cannot skew it.
type CampaignStats struct {
	Base
	CampaignID      string     `gorm:"type:uuid;not null;uniqueIndex" json:"campaignId"`
	TeamID          string     `gorm:"type:uuid;not null;index" json:"teamId"`
	TotalRecipients int        `json:"totalRecipients"`
	Sent            int        `json:"sent"`
	Failed          int        `json:"failed"`
	Opened          int        `json:"opened"`
	Clicked         int        `json:"clicked"`
	UniqueOpens     int        `json:"uniqueOpens"`
	OpenRate        float64    `json:"openRate"`
	ClickRate       float64    `json:"clickRate"`
	LastComputedAt  *time.Time `json:"lastComputedAt,omitempty"`
}

// TeamStats is the team-wide rollup.
type TeamStats struct {
	Base
	TeamID               string     `gorm:"type:uuid;not null;uniqueIndex" json:"teamId"`
	TotalCampaigns       int        `json:"totalCampaigns"`
	ActiveCampaigns      int        `json:"activeCampaigns"`
	TotalMessages        int        `json:"totalMessages"`
	TotalRecipients      int        `json:"totalRecipients"`
	AverageOpens         float64    `json:"averageOpens"`
	ActiveSMTPAccounts   int        `json:"activeSmtpAccounts"`
	DisabledSMTPAccounts int        `json:"disabledSmtpAccounts"`
	DomainsChecked       int        `json:"domainsChecked"`
	EmailsChecked        int        `json:"emailsChecked"`
	LastComputedAt       *time.Time `json:"lastComputedAt,omitempty"`
}

// Alert is an operator-facing incident row: a campaign that failed, an
// SMTP account the breaker disabled, a limit crossed.
type Alert struct {
	Base
	Type          AlertType  `gorm:"type:varchar(30);not null" json:"type"`
	Message       string     `gorm:"not null" json:"message"`
	Resolved      bool       `gorm:"default:false" json:"resolved"`
	ResolvedAt    *time.Time `json:"resolvedAt,omitempty"`
	TeamID        string     `gorm:"type:uuid;not null;index" json:"teamId"`
	CampaignID    *string    `gorm:"type:uuid" json:"campaignId,omitempty"`
	SMTPAccountID *string    `gorm:"type:uuid" json:"smtpAccountId,omitempty"`
}

func (a *Alert) AfterCreate(tx *gorm.DB) error {
	events.Emit("alert.created", a)
	return nil
}

// Resolve marks the alert handled.
func (a *Alert) Resolve(tx *gorm.DB) error {
	now := time.Now()
	a.Resolved = true
	a.ResolvedAt = &now
	return tx.Model(a).Updates(map[string]interface{}{
		"resolved":    true,
		"resolved_at": now,
	}).Error
}

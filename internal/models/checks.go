package models

import "time"

// DomainCheck holds the latest deliverability posture for a sending
// domain. One row per team+domain, refreshed in place.
type DomainCheck struct {
	Base
	Domain        string      `gorm:"not null;uniqueIndex:idx_domain_checks_team_domain" json:"domain" validate:"required,fqdn"`
	SPFStatus     CheckStatus `gorm:"type:varchar(10);default:'UNKNOWN'" json:"spfStatus"`
	DKIMStatus    CheckStatus `gorm:"type:varchar(10);default:'UNKNOWN'" json:"dkimStatus"`
	DMARCStatus   CheckStatus `gorm:"type:varchar(10);default:'UNKNOWN'" json:"dmarcStatus"`
	RiskScore     int         `json:"riskScore"`
	RiskLevel     RiskLevel   `gorm:"type:varchar(10)" json:"riskLevel"`
	LastCheckedAt *time.Time  `json:"lastCheckedAt,omitempty"`
	TeamID        string      `gorm:"type:uuid;not null;uniqueIndex:idx_domain_checks_team_domain" json:"teamId"`
}

func checkPoints(s CheckStatus) int {
	switch s {
	case CheckStatusPass:
		return 0
	case CheckStatusNeutral:
		return 1
	default:
		return 2
	}
}

// ComputeRisk recalculates RiskScore and RiskLevel from the three check
// outcomes. Pass scores 0, neutral 1, fail and unknown 2 each; totals of
// 0-2 are LOW, 3-4 MEDIUM, anything above HIGH.
func (d *DomainCheck) ComputeRisk() {
	d.RiskScore = checkPoints(d.SPFStatus) + checkPoints(d.DKIMStatus) + checkPoints(d.DMARCStatus)
	switch {
	case d.RiskScore <= 2:
		d.RiskLevel = RiskLevelLow
	case d.RiskScore <= 4:
		d.RiskLevel = RiskLevelMedium
	default:
		d.RiskLevel = RiskLevelHigh
	}
}

// EmailCheck caches a single address validation. One row per team+email.
type EmailCheck struct {
	Base
	Email         string        `gorm:"not null;uniqueIndex:idx_email_checks_team_email" json:"email" validate:"required"`
	Status        EmailValidity `gorm:"type:varchar(10);default:'UNKNOWN'" json:"status"`
	DomainType    DomainType    `gorm:"type:varchar(12)" json:"domainType,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	LastCheckedAt *time.Time    `json:"lastCheckedAt,omitempty"`
	TeamID        string        `gorm:"type:uuid;not null;uniqueIndex:idx_email_checks_team_email" json:"teamId"`
}

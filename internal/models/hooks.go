package models

import (
	"tern/internal/events"
	"tern/internal/utils/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var log = logger.New("MODELS")

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if err := m.Base.BeforeCreate(tx); err != nil {
		return err
	}
	// The beacon id is deliberately distinct from the primary key so the
	// public tracking URLs never expose an internal identifier.
	if m.BeaconID == "" {
		m.BeaconID = uuid.New().String()
	}
	return nil
}

func (m *Message) AfterCreate(tx *gorm.DB) error {
	events.Emit("message.created", m)
	return nil
}

func (c *Campaign) AfterCreate(tx *gorm.DB) error {
	stats := &CampaignStats{
		CampaignID: c.ID,
		TeamID:     c.TeamID,
	}
	if err := tx.Create(stats).Error; err != nil {
		return log.Error("failed to create stats for campaign %s: %v", c.ID, err)
	}
	events.Emit("campaign.created", c)
	return nil
}

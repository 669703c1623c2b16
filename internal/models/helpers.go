package models

import (
	"errors"

	"gorm.io/gorm"
)

// ways to resolve an account for a send
// 1. the campaign pins an account id: use that one, but only while active
// 2. a rotation group is set: pick among the team's active accounts in it
// 3. neither: pick among all of the team's active accounts
// the picking itself lives in the smtp service; these helpers only query

// ActiveSMTPAccounts returns the team's rotation pool, optionally scoped
// to a named group.
func ActiveSMTPAccounts(db *gorm.DB, teamID string, rotationGroup string) ([]SMTPAccount, error) {
	var accounts []SMTPAccount
	q := db.Where("team_id = ? AND is_active = ?", teamID, true)
	if rotationGroup != "" {
		q = q.Where("rotation_group = ?", rotationGroup)
	}
	if err := q.Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetMessageByID loads a message with its campaign.
func GetMessageByID(db *gorm.DB, id string) (*Message, error) {
	msg := &Message{}
	if err := db.Where("id = ?", id).First(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// FindMessageByBeacon resolves the public beacon id to a message. Callers
// on the tracking path must treat a miss as a non-event.
func FindMessageByBeacon(db *gorm.DB, beaconID string) (*Message, error) {
	msg := &Message{}
	if err := db.Where("beacon_id = ?", beaconID).First(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// CampaignMessage returns the campaign's message, oldest first when there
// are several drafts.
func CampaignMessage(db *gorm.DB, campaignID string) (*Message, error) {
	msg := &Message{}
	err := db.Where("campaign_id = ?", campaignID).Order("created_at asc").First(msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("campaign has no message")
		}
		return nil, err
	}
	return msg, nil
}

// PendingRecipients returns up to limit recipients still waiting on a
// send, oldest first so a partially processed campaign resumes in order.
func PendingRecipients(db *gorm.DB, messageID string, limit int) ([]MessageRecipient, error) {
	var recipients []MessageRecipient
	q := db.Where("message_id = ? AND status = ?", messageID, RecipientStatusPending).
		Order("created_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recipients).Error; err != nil {
		return nil, err
	}
	return recipients, nil
}

// ActiveContactsForList returns the sendable contacts of a list.
// Unsubscribed, bounced and complained contacts never re-enter a send.
func ActiveContactsForList(db *gorm.DB, listID string) ([]Contact, error) {
	var contacts []Contact
	err := db.Where("list_id = ? AND status = ?", listID, SubscriberStatusActive).
		Find(&contacts).Error
	if err != nil {
		return nil, err
	}
	return contacts, nil
}

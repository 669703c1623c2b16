package services

import (
	"context"
	"testing"

	"tern/internal/models"
	"tern/internal/utils"

	"github.com/stretchr/testify/require"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func TestCaptureOpenStoresHashedHit(t *testing.T) {
	db := testDB(t)
	fx := seedSendableCampaign(t, db, 1)
	svc := NewTrackingService(db)

	recipient := &models.MessageRecipient{}
	require.NoError(t, db.First(recipient, "message_id = ?", fx.message.ID).Error)

	err := svc.CaptureOpen(context.Background(), &Hit{
		BeaconID:    fx.message.BeaconID,
		RecipientID: recipient.ID,
		IP:          "203.0.113.7",
		UserAgent:   chromeUA,
	})
	require.NoError(t, err)

	open := &models.MessageOpen{}
	require.NoError(t, db.First(open, "message_id = ?", fx.message.ID).Error)
	require.Equal(t, utils.HashIP("203.0.113.7"), open.IPHash)
	require.NotContains(t, open.IPHash, "203.0.113.7")
	require.Equal(t, "Chrome", open.UserAgentFamily)
	require.NotNil(t, open.RecipientID)
	require.Equal(t, recipient.ID, *open.RecipientID)
	require.Equal(t, fx.team.ID, open.TeamID)

	require.NoError(t, db.First(recipient, "id = ?", recipient.ID).Error)
	require.Equal(t, models.RecipientStatusOpened, recipient.Status)
	require.NotNil(t, recipient.OpenedAt)
}

func TestCaptureOpenUnknownBeacon(t *testing.T) {
	db := testDB(t)
	svc := NewTrackingService(db)

	err := svc.CaptureOpen(context.Background(), &Hit{BeaconID: "nope", IP: "203.0.113.7"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown beacon")

	var count int64
	require.NoError(t, db.Model(&models.MessageOpen{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCaptureOpenForeignRecipientRecordedUncorrelated(t *testing.T) {
	db := testDB(t)
	fx := seedSendableCampaign(t, db, 1)
	svc := NewTrackingService(db)

	recipient := &models.MessageRecipient{}
	require.NoError(t, db.First(recipient, "message_id = ?", fx.message.ID).Error)

	err := svc.CaptureOpen(context.Background(), &Hit{
		BeaconID:    fx.message.BeaconID,
		RecipientID: "00000000-0000-0000-0000-000000000000",
		IP:          "203.0.113.7",
	})
	require.NoError(t, err)

	open := &models.MessageOpen{}
	require.NoError(t, db.First(open, "message_id = ?", fx.message.ID).Error)
	require.Nil(t, open.RecipientID)

	require.NoError(t, db.First(recipient, "id = ?", recipient.ID).Error)
	require.Equal(t, models.RecipientStatusPending, recipient.Status)
}

func TestCaptureClickStoresURLAndMarksRecipient(t *testing.T) {
	db := testDB(t)
	fx := seedSendableCampaign(t, db, 1)
	svc := NewTrackingService(db)

	recipient := &models.MessageRecipient{}
	require.NoError(t, db.First(recipient, "message_id = ?", fx.message.ID).Error)

	err := svc.CaptureClick(context.Background(), &Hit{
		BeaconID:    fx.message.BeaconID,
		RecipientID: recipient.ID,
		IP:          "203.0.113.7",
		UserAgent:   chromeUA,
		URL:         "https://acme.io/launch",
	})
	require.NoError(t, err)

	click := &models.MessageClick{}
	require.NoError(t, db.First(click, "message_id = ?", fx.message.ID).Error)
	require.Equal(t, "https://acme.io/launch", click.URL)
	require.Equal(t, "Chrome", click.UserAgentFamily)

	// A click implies the mail was opened.
	require.NoError(t, db.First(recipient, "id = ?", recipient.ID).Error)
	require.Equal(t, models.RecipientStatusClicked, recipient.Status)
	require.NotNil(t, recipient.ClickedAt)
	require.NotNil(t, recipient.OpenedAt)
}

func TestUnsubscribeNeedsCorrelatedRecipient(t *testing.T) {
	db := testDB(t)
	fx := seedSendableCampaign(t, db, 1)
	svc := NewTrackingService(db)

	err := svc.Unsubscribe(context.Background(), &Hit{BeaconID: fx.message.BeaconID})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsubscribe needs a valid recipient")

	contact := &models.Contact{}
	require.NoError(t, db.First(contact, "id = ?", fx.contacts[0].ID).Error)
	require.Equal(t, models.SubscriberStatusActive, contact.Status)
}

func TestUnsubscribeFlipsContact(t *testing.T) {
	db := testDB(t)
	fx := seedSendableCampaign(t, db, 1)
	svc := NewTrackingService(db)

	recipient := &models.MessageRecipient{}
	require.NoError(t, db.First(recipient, "message_id = ?", fx.message.ID).Error)

	require.NoError(t, svc.Unsubscribe(context.Background(), &Hit{
		BeaconID:    fx.message.BeaconID,
		RecipientID: recipient.ID,
	}))

	contact := &models.Contact{}
	require.NoError(t, db.First(contact, "id = ?", recipient.ContactID).Error)
	require.Equal(t, models.SubscriberStatusUnsubscribed, contact.Status)
}

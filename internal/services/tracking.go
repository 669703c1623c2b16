package services

import (
	"context"
	"fmt"
	"tern/internal/models"
	"tern/internal/monitoring"
	"tern/internal/utils"
	"tern/internal/utils/logger"

	"gorm.io/gorm"
)

var trackingLog = logger.New("TRACKING")

// Hit carries the request facts a beacon endpoint extracted. The raw IP
// and user agent never leave this struct unhashed.
type Hit struct {
	BeaconID    string
	RecipientID string
	IP          string
	UserAgent   string
	URL         string
}

// TrackingService records engagement behind the public beacon endpoints.
// Every method can fail internally; callers on the public path log and
// move on, the response never depends on the outcome.
type TrackingService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTrackingService(db *gorm.DB) *TrackingService {
	return &TrackingService{db: db, log: trackingLog}
}

// resolve finds the message behind a beacon and, when the hit names a
// recipient, verifies that recipient actually belongs to the message.
// A recipient id from some other message is recorded uncorrelated.
func (s *TrackingService) resolve(ctx context.Context, hit *Hit) (*models.Message, *models.MessageRecipient, error) {
	message, err := models.FindMessageByBeacon(s.db.WithContext(ctx), hit.BeaconID)
	if err != nil {
		return nil, nil, fmt.Errorf("unknown beacon %s: %w", hit.BeaconID, err)
	}

	var recipient *models.MessageRecipient
	if hit.RecipientID != "" {
		r := &models.MessageRecipient{}
		if err := s.db.WithContext(ctx).
			Where("id = ? AND message_id = ?", hit.RecipientID, message.ID).
			First(r).Error; err == nil {
			recipient = r
		} else {
			s.log.Warn("recipient %s not found for message %s", hit.RecipientID, message.ID)
		}
	}

	return message, recipient, nil
}

// CaptureOpen stores an open event with hashed IP and truncated UA family.
func (s *TrackingService) CaptureOpen(ctx context.Context, hit *Hit) error {
	message, recipient, err := s.resolve(ctx, hit)
	if err != nil {
		return err
	}

	open := &models.MessageOpen{
		MessageID:       message.ID,
		TeamID:          message.TeamID,
		BeaconID:        hit.BeaconID,
		IPHash:          utils.HashIP(hit.IP),
		UserAgentFamily: utils.UserAgentFamily(hit.UserAgent),
	}
	if recipient != nil {
		open.RecipientID = &recipient.ID
	}

	if err := s.db.WithContext(ctx).Create(open).Error; err != nil {
		return s.log.Error("failed to record open for message %s: %v", message.ID, err)
	}

	if recipient != nil {
		if err := recipient.MarkOpened(s.db.WithContext(ctx)); err != nil {
			s.log.Error("failed to mark recipient %s opened: %v", recipient.ID, err)
		}
	}

	monitoring.OpensRecorded.Inc()
	s.log.Debug("open recorded for message %s", message.ID)
	return nil
}

// CaptureClick stores a click event. A click is also an open.
func (s *TrackingService) CaptureClick(ctx context.Context, hit *Hit) error {
	message, recipient, err := s.resolve(ctx, hit)
	if err != nil {
		return err
	}

	click := &models.MessageClick{
		MessageID:       message.ID,
		TeamID:          message.TeamID,
		BeaconID:        hit.BeaconID,
		URL:             hit.URL,
		IPHash:          utils.HashIP(hit.IP),
		UserAgentFamily: utils.UserAgentFamily(hit.UserAgent),
	}
	if recipient != nil {
		click.RecipientID = &recipient.ID
	}

	if err := s.db.WithContext(ctx).Create(click).Error; err != nil {
		return s.log.Error("failed to record click for message %s: %v", message.ID, err)
	}

	if recipient != nil {
		if err := recipient.MarkClicked(s.db.WithContext(ctx)); err != nil {
			s.log.Error("failed to mark recipient %s clicked: %v", recipient.ID, err)
		}
	}

	monitoring.ClicksRecorded.Inc()
	s.log.Debug("click recorded for message %s", message.ID)
	return nil
}

// Unsubscribe flips the contact behind a recipient to UNSUBSCRIBED.
// It needs a correlated recipient; an anonymous beacon hit cannot
// unsubscribe anyone.
func (s *TrackingService) Unsubscribe(ctx context.Context, hit *Hit) error {
	_, recipient, err := s.resolve(ctx, hit)
	if err != nil {
		return err
	}
	if recipient == nil {
		return fmt.Errorf("unsubscribe needs a valid recipient")
	}

	contact := &models.Contact{}
	if err := s.db.WithContext(ctx).First(contact, "id = ?", recipient.ContactID).Error; err != nil {
		return fmt.Errorf("contact not found for recipient %s: %w", recipient.ID, err)
	}

	if err := contact.Unsubscribe(s.db.WithContext(ctx)); err != nil {
		return s.log.Error("failed to unsubscribe contact %s: %v", contact.ID, err)
	}

	monitoring.UnsubscribesRecorded.Inc()
	s.log.Info("Contact %s unsubscribed", contact.ID)
	return nil
}

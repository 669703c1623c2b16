package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"tern/internal/config"
	"tern/internal/events"
	"tern/internal/models"
	"tern/internal/monitoring"
	"tern/internal/utils"
	"tern/internal/utils/logger"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var senderLog = logger.New("SENDER")

// Transport delivers a composed message through an account. The production
// transport is the shared SMTP client; tests swap in a recorder.
type Transport interface {
	Send(ctx context.Context, account *models.SMTPAccount, msg *utils.OutgoingEmail) error
}

// SendResult is the outcome of one pipeline pass over a campaign.
type SendResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// SendPipeline walks a campaign's pending recipients and sends each one
// synchronously. Rotation, the failure breaker, tracking markup and plan
// counting all hang off this loop.
type SendPipeline struct {
	db        *gorm.DB
	smtp      *SMTPService
	campaigns *CampaignService
	plans     *PlanService
	transport Transport
	publicURL string
	log       *logger.Logger
}

func NewSendPipeline(db *gorm.DB, cfg *config.Config, smtp *SMTPService, campaigns *CampaignService, plans *PlanService) *SendPipeline {
	return &SendPipeline{
		db:        db,
		smtp:      smtp,
		campaigns: campaigns,
		plans:     plans,
		transport: smtp.Client(),
		publicURL: strings.TrimRight(cfg.Server.PublicURL, "/"),
		log:       senderLog,
	}
}

// SetTransport swaps the delivery mechanism. Test hook.
func (p *SendPipeline) SetTransport(t Transport) {
	p.transport = t
}

// ProcessCampaign runs one batch of sends for the campaign. limit caps the
// batch; 0 falls back to the campaign's own batch size. Inactive or
// not-yet-due campaigns are a skip, not an error.
func (p *SendPipeline) ProcessCampaign(ctx context.Context, campaignID string, limit int) (*SendResult, error) {
	result := &SendResult{}

	campaign := &models.Campaign{}
	if err := p.db.WithContext(ctx).First(campaign, "id = ?", campaignID).Error; err != nil {
		return result, fmt.Errorf("campaign not found: %w", err)
	}

	if campaign.Status != models.CampaignStatusActive {
		p.log.Warn("campaign %s is not active, status: %s", campaign.ID, campaign.Status)
		return result, nil
	}
	if !campaign.IsDue(time.Now()) {
		p.log.Info("campaign %s scheduled for future: %s", campaign.ID, campaign.ScheduledFor.Format(time.RFC3339))
		return result, nil
	}

	message, err := models.CampaignMessage(p.db.WithContext(ctx), campaign.ID)
	if err != nil {
		p.log.Error("campaign %s has no message: %v", campaign.ID, err)
		return result, nil
	}

	// Rows that predate beacon generation still need one before a send
	// can reference it in tracking URLs.
	if message.BeaconID == "" {
		message.BeaconID = uuid.New().String()
		if err := p.db.WithContext(ctx).Model(message).Update("beacon_id", message.BeaconID).Error; err != nil {
			return result, p.log.Error("failed to assign beacon id to message %s: %v", message.ID, err)
		}
	}

	// Recurring campaigns pick up contacts added to the list since the
	// last occurrence.
	if campaign.IsRecurring() && p.campaigns != nil {
		if _, err := p.campaigns.ExpandRecipients(ctx, campaign, message); err != nil {
			p.log.Error("failed to refresh recipients for campaign %s: %v", campaign.ID, err)
		}
	}

	batch := limit
	if batch <= 0 {
		batch = campaign.BatchSize
	}
	if batch <= 0 {
		batch = 100
	}

	recipients, err := models.PendingRecipients(p.db.WithContext(ctx), message.ID, batch)
	if err != nil {
		return result, err
	}

	result = p.SendBatch(ctx, campaign, message, recipients)

	if err := p.finalize(ctx, campaign, message); err != nil {
		return result, err
	}

	events.Emit("campaign.processed", campaign)
	p.log.Info("Campaign %s: sent %d, failed %d", campaign.ID, result.Sent, result.Failed)
	return result, nil
}

// SendBatch sends to each recipient in order. Rotation picks a fresh
// account per recipient, so one bad account does not sink the whole batch.
// A missing account or an exhausted daily allowance stops the loop and
// leaves the rest pending.
func (p *SendPipeline) SendBatch(ctx context.Context, campaign *models.Campaign, message *models.Message, recipients []models.MessageRecipient) *SendResult {
	result := &SendResult{}

	for i := range recipients {
		recipient := &recipients[i]

		if ctx.Err() != nil {
			p.log.Warn("campaign %s run interrupted after %d sends", campaign.ID, result.Sent)
			break
		}

		if p.plans != nil {
			if err := p.plans.ConsumeDailySend(ctx, campaign.TeamID); err != nil {
				p.log.Warn("campaign %s stopped: %v", campaign.ID, err)
				break
			}
		}

		account, err := p.smtp.GetForSending(ctx, campaign.TeamID, campaign.SMTPAccountID, campaign.RotationGroup)
		if err != nil {
			p.log.Error("campaign %s has no sendable account: %v", campaign.ID, err)
			break
		}

		msg := p.Compose(campaign, message, recipient, p.contactFor(ctx, recipient), account)

		if err := p.transport.Send(ctx, account, msg); err != nil {
			result.Failed++
			monitoring.EmailsFailed.WithLabelValues(account.Host).Inc()
			if markErr := recipient.MarkFailed(p.db.WithContext(ctx), err); markErr != nil {
				p.log.Error("failed to mark recipient %s failed: %v", recipient.ID, markErr)
			}
			if tripped, recErr := p.smtp.RecordFailure(ctx, account, err); recErr == nil && tripped {
				monitoring.SMTPBreakerTripped.WithLabelValues(account.Host).Inc()
			}
			p.log.Warn("failed to send to %s: %v", recipient.Email, err)
			continue
		}

		result.Sent++
		monitoring.EmailsSent.WithLabelValues(account.Host).Inc()
		if err := recipient.MarkSent(p.db.WithContext(ctx)); err != nil {
			p.log.Error("failed to mark recipient %s sent: %v", recipient.ID, err)
		}
		if err := p.smtp.RecordSuccess(ctx, account); err != nil {
			p.log.Error("failed to record smtp success: %v", err)
		}
	}

	return result
}

// finalize settles the campaign status once a batch is done. A campaign
// completes only when nothing is pending, something was sent and nothing
// failed. Failures with zero deliveries fail the campaign. Anything in
// between stays active for the next batch.
func (p *SendPipeline) finalize(ctx context.Context, campaign *models.Campaign, message *models.Message) error {
	tx := p.db.WithContext(ctx)

	var pending int64
	if err := tx.Model(&models.MessageRecipient{}).
		Where("message_id = ? AND status = ?", message.ID, models.RecipientStatusPending).
		Count(&pending).Error; err != nil {
		return err
	}
	if pending > 0 {
		return nil
	}

	var sentTotal, failedTotal int64
	if err := tx.Model(&models.MessageRecipient{}).
		Where("message_id = ? AND status IN ?", message.ID, []models.RecipientStatus{
			models.RecipientStatusSent,
			models.RecipientStatusOpened,
			models.RecipientStatusClicked,
		}).Count(&sentTotal).Error; err != nil {
		return err
	}
	if err := tx.Model(&models.MessageRecipient{}).
		Where("message_id = ? AND status IN ?", message.ID, []models.RecipientStatus{
			models.RecipientStatusFailed,
			models.RecipientStatusBounced,
		}).Count(&failedTotal).Error; err != nil {
		return err
	}

	switch {
	case sentTotal > 0 && failedTotal == 0:
		now := time.Now()
		if err := tx.Model(message).Updates(map[string]interface{}{
			"status":  models.MessageStatusSent,
			"sent_at": now,
		}).Error; err != nil {
			return err
		}

		if campaign.IsRecurring() {
			p.log.Success("Campaign %s run complete, scheduling next occurrence", campaign.ID)
			return p.campaigns.ScheduleNextRun(ctx, campaign)
		}

		if err := tx.Model(campaign).Updates(map[string]interface{}{
			"status":       models.CampaignStatusCompleted,
			"completed_at": now,
		}).Error; err != nil {
			return err
		}
		campaign.Status = models.CampaignStatusCompleted
		monitoring.CampaignsCompleted.Inc()
		p.log.Success("Campaign %s completed", campaign.ID)

	case failedTotal > 0 && sentTotal == 0:
		if err := tx.Model(campaign).Updates(map[string]interface{}{
			"status": models.CampaignStatusFailed,
		}).Error; err != nil {
			return err
		}
		campaign.Status = models.CampaignStatusFailed
		monitoring.CampaignsFailed.Inc()

		alert := &models.Alert{
			Type:       models.AlertTypeFailedCampaign,
			Message:    fmt.Sprintf("Campaign %s failed: %d recipients, none delivered", campaign.Name, failedTotal),
			TeamID:     campaign.TeamID,
			CampaignID: &campaign.ID,
		}
		if err := tx.Create(alert).Error; err != nil {
			p.log.Error("failed to create campaign alert: %v", err)
		}
		p.log.Error("campaign %s failed: nothing delivered", campaign.ID)

	default:
		// Mixed outcome. Leave the campaign active so an operator can
		// retry the failed recipients or pause it.
	}

	return nil
}

// RetryFailed returns the campaign's failed recipients to the pending pool
// and runs a batch for them. Recipients past the retry cap stay failed. A
// FAILED campaign is reactivated first so the pass can pick it up.
func (p *SendPipeline) RetryFailed(ctx context.Context, campaignID string, limit int) (*SendResult, error) {
	result := &SendResult{}

	campaign := &models.Campaign{}
	if err := p.db.WithContext(ctx).First(campaign, "id = ?", campaignID).Error; err != nil {
		return result, fmt.Errorf("campaign not found: %w", err)
	}

	message, err := models.CampaignMessage(p.db.WithContext(ctx), campaign.ID)
	if err != nil {
		return result, err
	}

	requeue := p.db.WithContext(ctx).Model(&models.MessageRecipient{}).
		Where("message_id = ? AND status = ? AND retry_count < ?",
			message.ID, models.RecipientStatusFailed, models.MessageMaxRetries).
		Update("status", models.RecipientStatusPending)
	if requeue.Error != nil {
		return result, requeue.Error
	}
	if requeue.RowsAffected == 0 {
		p.log.Info("campaign %s has no retryable recipients", campaign.ID)
		return result, nil
	}

	if campaign.Status == models.CampaignStatusFailed {
		if err := p.db.WithContext(ctx).Model(campaign).Update("status", models.CampaignStatusActive).Error; err != nil {
			return result, err
		}
		campaign.Status = models.CampaignStatusActive
	}

	p.log.Info("Campaign %s: %d recipients back in the pending pool", campaign.ID, requeue.RowsAffected)
	return p.ProcessCampaign(ctx, campaignID, limit)
}

// CheckCompletion settles an active campaign's status from its recipient
// ledger without sending anything. Recurring campaigns are left alone,
// their runs settle at the end of each batch.
func (p *SendPipeline) CheckCompletion(ctx context.Context, campaignID string) error {
	campaign := &models.Campaign{}
	if err := p.db.WithContext(ctx).First(campaign, "id = ?", campaignID).Error; err != nil {
		return fmt.Errorf("campaign not found: %w", err)
	}
	if campaign.Status != models.CampaignStatusActive {
		p.log.Info("campaign %s is %s, nothing to settle", campaign.ID, campaign.Status)
		return nil
	}
	if campaign.IsRecurring() {
		p.log.Info("campaign %s is recurring, skipping", campaign.ID)
		return nil
	}

	message, err := models.CampaignMessage(p.db.WithContext(ctx), campaign.ID)
	if err != nil {
		return err
	}
	return p.finalize(ctx, campaign, message)
}

func (p *SendPipeline) contactFor(ctx context.Context, recipient *models.MessageRecipient) *models.Contact {
	contact := &models.Contact{}
	if err := p.db.WithContext(ctx).First(contact, "id = ?", recipient.ContactID).Error; err != nil {
		return nil
	}
	return contact
}

// Compose renders the outgoing email for one recipient: personalization
// variables, the tracking pixel, rewritten links and the unsubscribe
// footer.
func (p *SendPipeline) Compose(campaign *models.Campaign, message *models.Message, recipient *models.MessageRecipient, contact *models.Contact, account *models.SMTPAccount) *utils.OutgoingEmail {
	vars := map[string]string{
		"email": recipient.Email,
	}
	if contact != nil {
		vars["firstName"] = contact.FirstName
		vars["lastName"] = contact.LastName
		vars["name"] = contact.FullName()
		if extra, err := utils.JSONToMap(contact.Metadata); err == nil {
			for k, v := range extra {
				if _, taken := vars[k]; !taken {
					vars[k] = v
				}
			}
		}
	}

	subject := utils.ReplaceVariables(message.Subject, vars)
	text := utils.ReplaceVariables(message.BodyText, vars)
	html := utils.ReplaceVariables(message.BodyHTML, vars)

	unsubscribeURL := fmt.Sprintf("%s/t/unsubscribe/%s?r=%s", p.publicURL, message.BeaconID, recipient.ID)

	if html != "" {
		pixelURL := fmt.Sprintf("%s/t/open/%s?r=%s", p.publicURL, message.BeaconID, recipient.ID)
		html = utils.RewriteLinks(html, func(original string) string {
			return fmt.Sprintf("%s/t/click/%s?r=%s&url=%s", p.publicURL, message.BeaconID, recipient.ID, url.QueryEscape(original))
		})
		html = utils.InjectTrackingPixel(html, pixelURL)
		html = utils.AppendUnsubscribeFooter(html, unsubscribeURL)
	}
	if text != "" {
		text += "\n\n---\nTo unsubscribe, visit: " + unsubscribeURL
	}

	return &utils.OutgoingEmail{
		From:     account.FromAddress(),
		FromName: account.FromName,
		To:       recipient.Email,
		Subject:  subject,
		HTML:     html,
		Text:     text,
		Headers: map[string]string{
			"List-Unsubscribe":      "<" + unsubscribeURL + ">",
			"List-Unsubscribe-Post": "List-Unsubscribe=One-Click",
		},
	}
}

// SendTest delivers the campaign's message to a single address without
// creating recipient rows or tracking markup.
func (p *SendPipeline) SendTest(ctx context.Context, teamID, campaignID, toEmail string) error {
	campaign := &models.Campaign{}
	if err := p.db.WithContext(ctx).Where("id = ? AND team_id = ?", campaignID, teamID).First(campaign).Error; err != nil {
		return fmt.Errorf("campaign not found: %w", err)
	}

	message, err := models.CampaignMessage(p.db.WithContext(ctx), campaign.ID)
	if err != nil {
		return err
	}

	account, err := p.smtp.GetForSending(ctx, teamID, campaign.SMTPAccountID, campaign.RotationGroup)
	if err != nil {
		return err
	}

	vars := map[string]string{"email": toEmail, "name": "Test Recipient"}
	msg := &utils.OutgoingEmail{
		From:     account.FromAddress(),
		FromName: account.FromName,
		To:       toEmail,
		Subject:  "[TEST] " + utils.ReplaceVariables(message.Subject, vars),
		HTML:     utils.ReplaceVariables(message.BodyHTML, vars),
		Text:     utils.ReplaceVariables(message.BodyText, vars),
	}

	if err := p.transport.Send(ctx, account, msg); err != nil {
		return fmt.Errorf("test send failed: %w", err)
	}

	p.log.Success("Test email for campaign %s sent to %s", campaign.ID, toEmail)
	return nil
}

package services

import (
	"context"
	"fmt"
	"net"
	"net/mail"
	"strings"
	"tern/internal/models"
	"tern/internal/utils/logger"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var deliverabilityLog = logger.New("DELIVERABILITY")

// dkimSelectors are the selectors probed when checking DKIM. Most hosted
// senders publish under one of these.
var dkimSelectors = []string{"default", "google", "k1"}

// Resolver is the DNS surface the checks use. *net.Resolver satisfies it;
// tests substitute canned answers.
type Resolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// DeliverabilityService runs SPF/DKIM/DMARC and mailbox-domain checks and
// stores the outcome per team.
type DeliverabilityService struct {
	db       *gorm.DB
	resolver Resolver
	log      *logger.Logger
}

func NewDeliverabilityService(db *gorm.DB) *DeliverabilityService {
	return &DeliverabilityService{
		db:       db,
		resolver: net.DefaultResolver,
		log:      deliverabilityLog,
	}
}

// SetResolver swaps the DNS backend. Test hook.
func (s *DeliverabilityService) SetResolver(r Resolver) {
	s.resolver = r
}

func (s *DeliverabilityService) checkSPF(ctx context.Context, domain string) models.CheckStatus {
	records, err := s.resolver.LookupTXT(ctx, domain)
	if err != nil {
		return models.CheckStatusUnknown
	}
	for _, r := range records {
		if strings.HasPrefix(strings.TrimSpace(r), "v=spf1") {
			return models.CheckStatusPass
		}
	}
	return models.CheckStatusFail
}

func (s *DeliverabilityService) checkDMARC(ctx context.Context, domain string) models.CheckStatus {
	records, err := s.resolver.LookupTXT(ctx, "_dmarc."+domain)
	if err != nil {
		return models.CheckStatusUnknown
	}
	for _, r := range records {
		if strings.HasPrefix(strings.TrimSpace(r), "v=DMARC1") {
			return models.CheckStatusPass
		}
	}
	return models.CheckStatusFail
}

func (s *DeliverabilityService) checkDKIM(ctx context.Context, domain string) models.CheckStatus {
	found := false
	for _, selector := range dkimSelectors {
		records, err := s.resolver.LookupTXT(ctx, selector+"._domainkey."+domain)
		if err != nil {
			continue
		}
		found = true
		for _, r := range records {
			if strings.Contains(r, "v=DKIM1") || strings.Contains(r, "k=rsa") {
				return models.CheckStatusPass
			}
		}
	}
	if found {
		return models.CheckStatusNeutral
	}
	return models.CheckStatusUnknown
}

// CheckDomain probes the domain's SPF, DKIM and DMARC records, scores the
// result and upserts the per-team row.
func (s *DeliverabilityService) CheckDomain(ctx context.Context, teamID, domain string) (*models.DomainCheck, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil, fmt.Errorf("domain is required")
	}

	check := &models.DomainCheck{
		Domain:      domain,
		TeamID:      teamID,
		SPFStatus:   s.checkSPF(ctx, domain),
		DKIMStatus:  s.checkDKIM(ctx, domain),
		DMARCStatus: s.checkDMARC(ctx, domain),
	}
	now := time.Now()
	check.LastCheckedAt = &now
	check.ComputeRisk()

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "team_id"}, {Name: "domain"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"spf_status", "dkim_status", "dmarc_status", "risk_score", "risk_level", "last_checked_at", "updated_at",
			}),
		}).
		Create(check).Error
	if err != nil {
		return nil, s.log.Error("failed to store domain check for %s: %v", domain, err)
	}

	s.log.Info("Domain %s checked: spf=%s dkim=%s dmarc=%s risk=%s",
		domain, check.SPFStatus, check.DKIMStatus, check.DMARCStatus, check.RiskLevel)
	return check, nil
}

// RecheckDomain re-runs the stored check. Task handler entry point.
func (s *DeliverabilityService) RecheckDomain(ctx context.Context, checkID string) (*models.DomainCheck, error) {
	existing := &models.DomainCheck{}
	if err := s.db.WithContext(ctx).First(existing, "id = ?", checkID).Error; err != nil {
		return nil, fmt.Errorf("domain check not found: %w", err)
	}
	return s.CheckDomain(ctx, existing.TeamID, existing.Domain)
}

// StaleDomainChecks returns checks older than maxAge, oldest first.
func (s *DeliverabilityService) StaleDomainChecks(ctx context.Context, maxAge time.Duration, limit int) ([]models.DomainCheck, error) {
	cutoff := time.Now().Add(-maxAge)
	var checks []models.DomainCheck
	q := s.db.WithContext(ctx).
		Where("last_checked_at IS NULL OR last_checked_at < ?", cutoff).
		Order("last_checked_at asc nulls first")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&checks).Error; err != nil {
		return nil, err
	}
	return checks, nil
}

// ValidateEmail checks syntax, the domain's MX records and whether the
// mailbox domain is free or disposable, then upserts the per-team row.
func (s *DeliverabilityService) ValidateEmail(ctx context.Context, teamID, email string) (*models.EmailCheck, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	check := &models.EmailCheck{
		Email:  email,
		TeamID: teamID,
		Status: models.EmailValidityUnknown,
	}
	now := time.Now()
	check.LastCheckedAt = &now

	addr, err := mail.ParseAddress(email)
	if err != nil {
		check.Status = models.EmailValidityInvalid
		check.Reason = "invalid address syntax"
	} else {
		at := strings.LastIndex(addr.Address, "@")
		domain := addr.Address[at+1:]
		check.DomainType = models.ClassifyDomain(domain)

		mx, err := s.resolver.LookupMX(ctx, domain)
		switch {
		case err != nil:
			check.Status = models.EmailValidityUnknown
			check.Reason = "mx lookup failed"
		case len(mx) == 0:
			check.Status = models.EmailValidityInvalid
			check.Reason = "domain has no mx records"
		case check.DomainType == models.DomainTypeDisposable:
			check.Status = models.EmailValidityInvalid
			check.Reason = "disposable domain"
		default:
			check.Status = models.EmailValidityValid
			check.Reason = ""
		}
	}

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "team_id"}, {Name: "email"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "domain_type", "reason", "last_checked_at", "updated_at",
			}),
		}).
		Create(check).Error
	if err != nil {
		return nil, s.log.Error("failed to store email check for %s: %v", email, err)
	}

	return check, nil
}

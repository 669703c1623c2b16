package models

// PlanLimits are the static per-tier caps. A nil field means unlimited.
type PlanLimits struct {
	SMTPAccounts    *int `json:"smtpAccounts"`
	RotationGroups  *int `json:"rotationGroups"`
	DailySends      *int `json:"dailySends"`
	ActiveCampaigns *int `json:"activeCampaigns"`
}

func intPtr(n int) *int { return &n }

// planTable is the whole pricing model. Deliberately a lookup table, not a
// database entity.
var planTable = map[PlanTier]PlanLimits{
	PlanTierFree: {
		SMTPAccounts:    intPtr(1),
		RotationGroups:  intPtr(1),
		DailySends:      intPtr(500),
		ActiveCampaigns: intPtr(3),
	},
	PlanTierPremium: {},
}

// LimitsFor returns the caps for a tier. Unknown tiers fall back to FREE.
func LimitsFor(tier PlanTier) PlanLimits {
	if l, ok := planTable[tier]; ok {
		return l
	}
	return planTable[PlanTierFree]
}

// WithinLimit reports whether current is below the cap. nil caps always
// allow.
func WithinLimit(current int, limit *int) bool {
	if limit == nil {
		return true
	}
	return current < *limit
}

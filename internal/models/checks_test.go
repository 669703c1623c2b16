package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeRisk(t *testing.T) {
	tests := []struct {
		name      string
		spf       CheckStatus
		dkim      CheckStatus
		dmarc     CheckStatus
		wantScore int
		wantLevel RiskLevel
	}{
		{"all pass", CheckStatusPass, CheckStatusPass, CheckStatusPass, 0, RiskLevelLow},
		{"one failure stays low", CheckStatusPass, CheckStatusPass, CheckStatusFail, 2, RiskLevelLow},
		{"neutral plus failure is medium", CheckStatusPass, CheckStatusNeutral, CheckStatusFail, 3, RiskLevelMedium},
		{"two failures are medium", CheckStatusPass, CheckStatusFail, CheckStatusFail, 4, RiskLevelMedium},
		{"neutral and two failures are high", CheckStatusNeutral, CheckStatusFail, CheckStatusFail, 5, RiskLevelHigh},
		{"all fail", CheckStatusFail, CheckStatusFail, CheckStatusFail, 6, RiskLevelHigh},
		{"unknown scores like fail", CheckStatusUnknown, CheckStatusUnknown, CheckStatusUnknown, 6, RiskLevelHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := &DomainCheck{SPFStatus: tt.spf, DKIMStatus: tt.dkim, DMARCStatus: tt.dmarc}
			check.ComputeRisk()
			require.Equal(t, tt.wantScore, check.RiskScore)
			require.Equal(t, tt.wantLevel, check.RiskLevel)
		})
	}
}

func TestClassifyDomain(t *testing.T) {
	tests := []struct {
		domain string
		want   DomainType
	}{
		{"gmail.com", DomainTypeFree},
		{"mailinator.com", DomainTypeDisposable},
		{"example-corp.com", DomainTypePremium},
		{"GMAIL.COM", DomainTypeFree},
		{"  gmail.com  ", DomainTypeFree},
	}
	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			require.Equal(t, tt.want, ClassifyDomain(tt.domain))
		})
	}
}

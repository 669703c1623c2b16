package cli

import (
	"tern/internal/models"
	"tern/internal/services"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func statusColor(s models.CheckStatus) func(format string, a ...interface{}) {
	switch s {
	case models.CheckStatusPass:
		return color.Green
	case models.CheckStatusFail:
		return color.Red
	default:
		return color.Yellow
	}
}

func newCheckDomainCommand(rt *runtime) *cobra.Command {
	var teamID string

	cmd := &cobra.Command{
		Use:   "check-domain <domain>",
		Short: "Check SPF, DKIM and DMARC for a sending domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deliverability := services.NewDeliverabilityService(rt.db)

			check, err := deliverability.CheckDomain(cmd.Context(), teamID, args[0])
			if err != nil {
				return err
			}

			statusColor(check.SPFStatus)("SPF    %s", check.SPFStatus)
			statusColor(check.DKIMStatus)("DKIM   %s", check.DKIMStatus)
			statusColor(check.DMARCStatus)("DMARC  %s", check.DMARCStatus)
			color.Cyan("risk   %s (%d)", check.RiskLevel, check.RiskScore)
			return nil
		},
	}

	cmd.Flags().StringVar(&teamID, "team", "", "Team the check is recorded under")
	_ = cmd.MarkFlagRequired("team")

	return cmd
}

func newValidateEmailCommand(rt *runtime) *cobra.Command {
	var teamID string

	cmd := &cobra.Command{
		Use:   "validate-email <address>",
		Short: "Validate a single email address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deliverability := services.NewDeliverabilityService(rt.db)

			check, err := deliverability.ValidateEmail(cmd.Context(), teamID, args[0])
			if err != nil {
				return err
			}

			out := color.Green
			if check.Status != models.EmailValidityValid {
				out = color.Red
			}
			out("%s: %s", check.Email, check.Status)
			if check.DomainType != "" {
				color.Cyan("domain type: %s", check.DomainType)
			}
			if check.Reason != "" {
				color.Yellow("reason: %s", check.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&teamID, "team", "", "Team the check is recorded under")
	_ = cmd.MarkFlagRequired("team")

	return cmd
}

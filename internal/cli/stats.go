package cli

import (
	"tern/internal/services"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newComputeStatsCommand(rt *runtime) *cobra.Command {
	var campaignID string

	cmd := &cobra.Command{
		Use:   "compute-stats",
		Short: "Recompute engagement rollups from raw events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Exports aren't reachable from here, no storage needed
			analytics := services.NewAnalyticsService(rt.db, nil)

			if campaignID != "" {
				stats, err := analytics.RecomputeCampaignStats(cmd.Context(), campaignID)
				if err != nil {
					return err
				}
				color.Green("✅ campaign %s: sent %d, opened %d (%d unique), clicked %d",
					campaignID, stats.Sent, stats.Opened, stats.UniqueOpens, stats.Clicked)
				return nil
			}

			if err := analytics.RecomputeAll(cmd.Context()); err != nil {
				return err
			}
			color.Green("✅ recomputed stats for all teams")
			return nil
		},
	}

	cmd.Flags().StringVar(&campaignID, "campaign-id", "", "Recompute a single campaign instead of everything")

	return cmd
}

package cli

import (
	"context"
	"time"

	"tern/internal/models"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newProcessCampaignsCommand(rt *runtime) *cobra.Command {
	var (
		campaignID      string
		limit           int
		continuous      bool
		interval        time.Duration
		onlyRetry       bool
		onlyCheckStatus bool
	)

	cmd := &cobra.Command{
		Use:   "process-campaigns",
		Short: "Send one batch for each due campaign",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pipeline, campaigns, _ := rt.sendStack()

			runOne := func(ctx context.Context, id string) error {
				switch {
				case onlyCheckStatus:
					if err := pipeline.CheckCompletion(ctx, id); err != nil {
						return err
					}
					color.Green("✅ campaign %s settled", id)
				case onlyRetry:
					result, err := pipeline.RetryFailed(ctx, id, limit)
					if err != nil {
						return err
					}
					color.Green("✅ campaign %s retry pass: sent %d, failed %d", id, result.Sent, result.Failed)
				default:
					result, err := pipeline.ProcessCampaign(ctx, id, limit)
					if err != nil {
						return err
					}
					color.Green("✅ campaign %s: sent %d, failed %d", id, result.Sent, result.Failed)
				}
				return nil
			}

			scan := func(ctx context.Context) ([]models.Campaign, error) {
				if onlyRetry {
					return campaigns.RetryableCampaigns(ctx)
				}
				return campaigns.DueCampaigns(ctx, time.Now())
			}

			pass := func(ctx context.Context) error {
				if campaignID != "" {
					return runOne(ctx, campaignID)
				}

				list, err := scan(ctx)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					color.Cyan("no campaigns to process")
					return nil
				}
				for i := range list {
					if err := runOne(ctx, list[i].ID); err != nil {
						color.Red("❌ campaign %s: %v", list[i].ID, err)
					}
				}
				return nil
			}

			ctx := cmd.Context()
			if !continuous {
				return pass(ctx)
			}

			color.Cyan("scanning every %s, ctrl-c to stop", interval)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				if err := pass(ctx); err != nil {
					color.Red("❌ pass failed: %v", err)
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().StringVar(&campaignID, "campaign-id", "", "Process a single campaign instead of scanning for due ones")
	cmd.Flags().IntVar(&limit, "limit-per-campaign", 0, "Max sends per campaign per pass (0 uses the campaign's batch size)")
	cmd.Flags().BoolVar(&continuous, "continuous", false, "Keep scanning on an interval until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "Scan interval in continuous mode")
	cmd.Flags().BoolVar(&onlyRetry, "only-retry", false, "Requeue failed recipients under the retry cap and send to them")
	cmd.Flags().BoolVar(&onlyCheckStatus, "only-check-status", false, "Settle campaign statuses without sending anything")
	cmd.MarkFlagsMutuallyExclusive("only-retry", "only-check-status")

	return cmd
}

func newProcessQueueCommand(rt *runtime) *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "process-queue",
		Short: "Drain queued and retry-eligible messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _, queue := rt.sendStack()

			result, err := queue.RunMessageQueue(cmd.Context(), batchSize)
			if err != nil {
				return err
			}
			color.Green("✅ processed %d messages: sent %d, failed %d", result.Processed, result.Sent, result.Failed)
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 20, "How many queued messages to pick up")

	return cmd
}

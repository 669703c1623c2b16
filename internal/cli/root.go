package cli

import (
	"os"

	"tern/internal/config"
	"tern/internal/db"
	"tern/internal/services"
	"tern/internal/utils"
	"tern/internal/utils/crypto"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// runtime carries the shared state every subcommand needs: the loaded
// config and an open database handle. Services are built per command,
// they are cheap and each command needs a different slice of them.
type runtime struct {
	configPath string
	cfg        *config.Config
	db         *gorm.DB
	redis      *utils.RedisClient
}

// NewRootCommand builds the ternctl command tree.
func NewRootCommand() *cobra.Command {
	rt := &runtime{}

	root := &cobra.Command{
		Use:          "ternctl",
		Short:        "Tern operations CLI",
		Long:         "Run campaign sends, queue drains, stats recomputes and deliverability\nchecks directly against a Tern environment, without the API server.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			rt.teardown()
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", "", "Path to a JSON config snapshot (defaults to environment variables)")

	root.AddCommand(
		newProcessCampaignsCommand(rt),
		newProcessQueueCommand(rt),
		newComputeStatsCommand(rt),
		newCheckDomainCommand(rt),
		newValidateEmailCommand(rt),
	)

	return root
}

func (rt *runtime) setup() error {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}

	var err error
	if rt.configPath != "" {
		rt.cfg, err = config.LoadFromFile(rt.configPath)
	} else {
		rt.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if err := crypto.InitializeKeys(rt.cfg.Crypto.Secret); err != nil {
		return err
	}
	if err := db.Connect(rt.cfg); err != nil {
		return err
	}
	rt.db = db.GetDB()

	// Redis keeps the daily send caps honest. Without it sends still work,
	// the caps just aren't counted.
	if rt.redis, err = utils.NewRedisClient(rt.cfg); err != nil {
		color.Yellow("⚠ redis unreachable, daily send caps not enforced: %v", err)
		rt.redis = nil
	}
	return nil
}

func (rt *runtime) teardown() {
	_ = db.Close()
}

// sendStack builds the service chain behind a campaign send. Enqueuers
// stay nil, the CLI runs everything in process.
func (rt *runtime) sendStack() (*services.SendPipeline, *services.CampaignService, *services.QueueService) {
	plans := services.NewPlanService(rt.db, rt.redis)
	smtp := services.NewSMTPService(rt.db, rt.cfg)
	campaigns := services.NewCampaignService(rt.db, plans, nil)
	pipeline := services.NewSendPipeline(rt.db, rt.cfg, smtp, campaigns, plans)
	queue := services.NewQueueService(rt.db, pipeline, nil)
	return pipeline, campaigns, queue
}

package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tern/internal/config"
	"tern/internal/models"
	applog "tern/internal/utils/logger"
)

var (
	DB  *gorm.DB
	log = applog.New("DB")
)

func Connect(cfg *config.Config) error {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	logLevel := logger.Warn
	if cfg.Server.Env == "development" {
		logLevel = logger.Info
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Run migrations
	if err := runMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func runMigrations() error {
	return DB.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.APIKey{},
		&models.MailingList{},
		&models.Contact{},
		&models.ContactImport{},
		&models.File{},
		&models.SMTPAccount{},
		&models.Campaign{},
		&models.Message{},
		&models.MessageRecipient{},
		&models.MessageOpen{},
		&models.MessageClick{},
		&models.Webhook{},
		&models.WebhookDelivery{},
		&models.DomainCheck{},
		&models.EmailCheck{},
		&models.CampaignStats{},
		&models.TeamStats{},
		&models.Alert{},
	)
}

// MonitorConnectionPool logs pool pressure every interval until ctx ends.
func MonitorConnectionPool(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sqlDB, err := DB.DB()
			if err != nil {
				continue
			}
			stats := sqlDB.Stats()
			if stats.WaitCount > 0 {
				log.Warn("connection pool pressure: open=%d inUse=%d waited=%d",
					stats.OpenConnections, stats.InUse, stats.WaitCount)
			}
		}
	}
}

func Close() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func GetDB() *gorm.DB {
	return DB
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Crypto   CryptoConfig
	SMTP     SMTPConfig
	Storage  StorageConfig
	Worker   WorkerConfig
	Redis    RedisConfig
	Monitor  MonitorConfig
}

type ServerConfig struct {
	Host string
	Port int
	Env  string
	// PublicURL is the externally reachable base URL used to build the
	// beacon, click and unsubscribe links embedded in outgoing mail.
	PublicURL string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type CryptoConfig struct {
	// Secret seeds key derivation for credential encryption at rest.
	Secret string
}

type SMTPConfig struct {
	// FailureThreshold is the consecutive-failure count at which an
	// account is pulled out of rotation.
	FailureThreshold int
	// ConnectTimeoutSeconds bounds connection tests and message sends.
	ConnectTimeoutSeconds int
	// DefaultMaxSendRate is messages/minute for accounts without their own.
	DefaultMaxSendRate int
}

type StorageConfig struct {
	S3 S3Config
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type WorkerConfig struct {
	Concurrency int
	// QueueBatchSize is how many queued messages one drain pass picks up.
	QueueBatchSize int
}

type RedisConfig struct {
	Addr     string
	Password string
	Username string
	DB       int
}

type MonitorConfig struct {
	// AlertWebhookURL receives JSON alert notifications when set.
	AlertWebhookURL string
}

var (
	mu      sync.Mutex
	current *Config
)

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:      getEnv("SERVER_HOST", "localhost"),
			Port:      getEnvAsInt("SERVER_PORT", 8080),
			Env:       getEnv("ENV", "development"),
			PublicURL: getEnv("PUBLIC_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Name:     getEnv("POSTGRES_DB", "tern"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "your-secret-key"),
			ExpiryHours: getEnvAsInt("JWT_EXPIRY_HOURS", 24),
		},
		Crypto: CryptoConfig{
			Secret: getEnv("CRYPTO_SECRET", "dev-only-crypto-secret"),
		},
		SMTP: SMTPConfig{
			FailureThreshold:      getEnvAsInt("SMTP_FAILURE_THRESHOLD", 3),
			ConnectTimeoutSeconds: getEnvAsInt("SMTP_CONNECT_TIMEOUT", 10),
			DefaultMaxSendRate:    getEnvAsInt("SMTP_DEFAULT_MAX_SEND_RATE", 10),
		},
		Storage: StorageConfig{
			S3: S3Config{
				Bucket:    getEnv("S3_BUCKET", ""),
				Region:    getEnv("S3_REGION", "us-east-1"),
				Endpoint:  getEnv("S3_ENDPOINT", ""),
				AccessKey: getEnv("S3_ACCESS_KEY", ""),
				SecretKey: getEnv("S3_SECRET_KEY", ""),
			},
		},
		Worker: WorkerConfig{
			Concurrency:    getEnvAsInt("WORKER_CONCURRENCY", 10),
			QueueBatchSize: getEnvAsInt("QUEUE_BATCH_SIZE", 20),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			Username: getEnv("REDIS_USERNAME", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Monitor: MonitorConfig{
			AlertWebhookURL: getEnv("ALERT_WEBHOOK_URL", ""),
		},
	}

	if cfg.Server.Env == "production" {
		if _, ok := os.LookupEnv("JWT_SECRET"); !ok {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
		if _, ok := os.LookupEnv("CRYPTO_SECRET"); !ok {
			return nil, fmt.Errorf("CRYPTO_SECRET must be set in production")
		}
	}

	mu.Lock()
	current = cfg
	mu.Unlock()
	return cfg, nil
}

// GetConfig returns the process-wide config, loading it on first use.
func GetConfig() *Config {
	mu.Lock()
	cached := current
	mu.Unlock()
	if cached != nil {
		return cached
	}
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadFromFile reads a JSON config snapshot, used by the CLI's --config
// flag to run against an environment without exporting variables.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	mu.Lock()
	current = &cfg
	mu.Unlock()
	return &cfg, nil
}

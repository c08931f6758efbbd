package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
)

type Config struct {
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseFilePath          string        `koanf:"database_file_path"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries"`
	Environment               string        `koanf:"-"`
	FrontendURL               string        `koanf:"frontend_url"`
	Hostname                  string        `koanf:"-"`
	ServerHost                string        `koanf:"server_host"`
	ServerPort                int           `koanf:"server_port"`

	AssetStoreBaseURL   string        `koanf:"asset_store_base_url"`
	AssetStoreAPIKey    string        `koanf:"asset_store_api_key"`
	AssetStoreAPISecret string        `koanf:"asset_store_api_secret"`
	AssetStoreTimeout   time.Duration `koanf:"asset_store_timeout"`

	// UploadStagingDir holds upload payloads until the asset store
	// confirms them, so a transient failure can be retried from disk.
	UploadStagingDir string `koanf:"upload_staging_dir"`

	WebhookSecret  string        `koanf:"webhook_secret"`
	WebhookMaxSkew time.Duration `koanf:"webhook_max_skew"`

	Scheduler Scheduler `koanf:"scheduler"`

	SnapshotInterval time.Duration `koanf:"snapshot_interval"`

	// PurgeGracePeriod is how long a soft-deleted or error-flagged row is
	// retained before the scheduler is allowed to purge it for good.
	PurgeGracePeriod time.Duration `koanf:"purge_grace_period"`
}

// Scheduler holds the cleanup scheduler settings. These are
// hot-reloadable through the scheduler API; updating them while the
// scheduler is running causes a stop/apply/restart cycle.
type Scheduler struct {
	Enabled              bool          `koanf:"enabled" json:"enabled"`
	Interval             time.Duration `koanf:"interval" json:"interval"`
	BatchSize            int           `koanf:"batch_size" json:"batch_size"`
	MaxRetries           int           `koanf:"max_retries" json:"max_retries"`
	HealthCheckInterval  time.Duration `koanf:"health_check_interval" json:"health_check_interval"`
	QueueWarnThreshold   int           `koanf:"queue_warn_threshold" json:"queue_warn_threshold"`
	FailureWarnThreshold int           `koanf:"failure_warn_threshold" json:"failure_warn_threshold"`
}

const environmentENV = "ENVIRONMENT"

func New() (*Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cfg := &Config{
		DatabaseBusyTimeout:       5 * time.Second,
		DatabaseConnectRetryCount: 5,
		DatabaseConnectRetryDelay: 2 * time.Second,
		DatabaseMaxRetries:        3,
		Hostname:                  hostname,
		ServerPort:                3690,
		AssetStoreTimeout:         30 * time.Second,
		UploadStagingDir:          "./tmp/staging",
		WebhookMaxSkew:            5 * time.Minute,
		Scheduler: Scheduler{
			Enabled:              true,
			Interval:             time.Minute,
			BatchSize:            10,
			MaxRetries:           3,
			HealthCheckInterval:  15 * time.Second,
			QueueWarnThreshold:   100,
			FailureWarnThreshold: 20,
		},
		SnapshotInterval: time.Hour,
		PurgeGracePeriod: 7 * 24 * time.Hour,
	}

	switch os.Getenv(environmentENV) {
	case "development", "":
		cfg.Environment = "development"
		loadDevelopmentConfig(cfg)
	case "test":
		cfg.Environment = "test"
		loadTestConfig(cfg)
	case "production":
		cfg.Environment = "production"
		loadProductionConfig(cfg)
	}

	if err := loadFileAndEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

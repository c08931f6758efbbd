package config

import "time"

func loadTestConfig(cfg *Config) {
	cfg.DatabaseFilePath = ":memory:"
	cfg.ServerHost = "127.0.0.1"
	cfg.ServerPort = 0
	cfg.AssetStoreBaseURL = "http://localhost:9090"
	cfg.AssetStoreAPIKey = "test-key"
	cfg.AssetStoreAPISecret = "test-secret"
	cfg.AssetStoreTimeout = 2 * time.Second
	cfg.UploadStagingDir = "./tmp/test-staging"
	cfg.WebhookSecret = "test-webhook-secret"
	cfg.Scheduler.Interval = 50 * time.Millisecond
	cfg.Scheduler.HealthCheckInterval = 50 * time.Millisecond
	cfg.SnapshotInterval = time.Minute
}

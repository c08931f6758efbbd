package config

import "os"

func loadProductionConfig(cfg *Config) {
	cfg.DatabaseFilePath = "/data/mediasync.sqlite"
	cfg.UploadStagingDir = "/data/staging"
	cfg.ServerHost = "0.0.0.0"
	cfg.FrontendURL = os.Getenv("FRONTEND_URL")
	cfg.AssetStoreBaseURL = os.Getenv("ASSET_STORE_BASE_URL")
	cfg.AssetStoreAPIKey = os.Getenv("ASSET_STORE_API_KEY")
	cfg.AssetStoreAPISecret = os.Getenv("ASSET_STORE_API_SECRET")
	cfg.WebhookSecret = os.Getenv("WEBHOOK_SECRET")
}

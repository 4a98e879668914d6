package config

import (
	"os"
	"time"
)

// parseEnv overlays values from environment variables. Credentials live
// here in typical deployments, loaded from a .env file by the entry
// point. Unset variables keep the current values.
func parseEnv(config *Config) {
	setString(&config.EndpointAddr, os.Getenv("ENDPOINT_ADDR"))
	setString(&config.DatabaseDSN, os.Getenv("DATABASE_DSN"))
	setString(&config.TargetBackend, os.Getenv("TARGET_BACKEND"))
	if v := os.Getenv("CLEANUP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.CleanupTimeout = d
		}
	}

	setString(&config.PinataJWT, os.Getenv("PINATA_JWT"))
	setString(&config.PinataAPIKey, os.Getenv("PINATA_API_KEY"))
	setString(&config.PinataAPISecret, os.Getenv("PINATA_API_SECRET"))
	setString(&config.PinataGatewayURL, os.Getenv("PINATA_GATEWAY_URL"))
	setString(&config.PinataGatewayKey, os.Getenv("PINATA_GATEWAY_KEY"))

	setString(&config.NFTStorageToken, os.Getenv("NFT_STORAGE_TOKEN"))
	setString(&config.NFTStorageGatewayURL, os.Getenv("NFT_STORAGE_GATEWAY_URL"))

	setString(&config.ArweaveGatewayURL, os.Getenv("ARWEAVE_GATEWAY_URL"))
	setString(&config.ArweaveAppName, os.Getenv("ARWEAVE_APP_NAME"))
	setString(&config.ArweaveAppVersion, os.Getenv("ARWEAVE_APP_VERSION"))
	setString(&config.ArweaveKeyFile, os.Getenv("ARWEAVE_KEY_FILE"))
}

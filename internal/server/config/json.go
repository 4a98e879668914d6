package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/slemarket/hybridstore/internal/flagx"
	"github.com/slemarket/hybridstore/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON
// configuration files. It uses timex.Duration for interval fields,
// which allows parsing both string values such as "30s" and integer
// nanoseconds. After unmarshalling, set fields are copied into the
// runtime Config.
type JsonConfig struct {
	EndpointAddr   string         `json:"endpoint_addr"`
	DatabaseDSN    string         `json:"database_dsn"`
	TargetBackend  string         `json:"target_backend"`
	CleanupTimeout timex.Duration `json:"cleanup_timeout"`

	PinataJWT        string `json:"pinata_jwt"`
	PinataAPIKey     string `json:"pinata_api_key"`
	PinataAPISecret  string `json:"pinata_api_secret"`
	PinataGatewayURL string `json:"pinata_gateway_url"`
	PinataGatewayKey string `json:"pinata_gateway_key"`

	NFTStorageToken      string `json:"nft_storage_token"`
	NFTStorageGatewayURL string `json:"nft_storage_gateway_url"`

	ArweaveGatewayURL string `json:"arweave_gateway_url"`
	ArweaveAppName    string `json:"arweave_app_name"`
	ArweaveAppVersion string `json:"arweave_app_version"`
	ArweaveKeyFile    string `json:"arweave_key_file"`
}

// parseJson loads configuration values from a JSON file into the
// provided Config. The file path comes from the -c or -config flags;
// when neither is set, no file is loaded. Unset fields keep their
// current (default) values. An unreadable or invalid file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddr, c.EndpointAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.TargetBackend, c.TargetBackend)
	if c.CleanupTimeout.Duration != 0 {
		config.CleanupTimeout = time.Duration(c.CleanupTimeout.Duration)
	}

	setString(&config.PinataJWT, c.PinataJWT)
	setString(&config.PinataAPIKey, c.PinataAPIKey)
	setString(&config.PinataAPISecret, c.PinataAPISecret)
	setString(&config.PinataGatewayURL, c.PinataGatewayURL)
	setString(&config.PinataGatewayKey, c.PinataGatewayKey)

	setString(&config.NFTStorageToken, c.NFTStorageToken)
	setString(&config.NFTStorageGatewayURL, c.NFTStorageGatewayURL)

	setString(&config.ArweaveGatewayURL, c.ArweaveGatewayURL)
	setString(&config.ArweaveAppName, c.ArweaveAppName)
	setString(&config.ArweaveAppVersion, c.ArweaveAppVersion)
	setString(&config.ArweaveKeyFile, c.ArweaveKeyFile)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	API      APIConfig      `yaml:"api"`
	Storage  StorageConfig  `yaml:"storage"`
	Cloud    CloudConfig    `yaml:"cloud"`
	Sync     SyncConfig     `yaml:"sync"`
	Printing PrintingConfig `yaml:"printing"`
	NATS     NATSConfig     `yaml:"nats"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig represents server identity
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// APIConfig represents the local REST API configuration
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects the durable key-value backend.
type StorageConfig struct {
	// Backend is one of: sqlite, postgres, file, memory.
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
	DSN        string `yaml:"dsn"`
	FileDir    string `yaml:"file_dir"`
}

// CloudConfig represents the merchant printer backend. MerchantID is
// the injected merchant identity; sync reports NO_MERCHANT_ID when it
// is empty.
type CloudConfig struct {
	BaseURL    string        `yaml:"base_url"`
	MerchantID string        `yaml:"merchant_id"`
	Token      string        `yaml:"token"`
	Timeout    time.Duration `yaml:"timeout"`
}

// SyncConfig represents periodic sync behavior. Interval 0 disables
// the background push; on-demand sync stays available over the API.
type SyncConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// PrintingConfig represents the transport to paired printers.
type PrintingConfig struct {
	// Devices maps printer id (MAC) to an rfcomm device path.
	Devices  map[string]string `yaml:"devices"`
	BaudRate int               `yaml:"baud_rate"`
	// DryRun discards payloads instead of writing to a device.
	DryRun bool `yaml:"dry_run"`
}

// NATSConfig represents the optional NATS event publisher
type NATSConfig struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

// MQTTConfig represents the optional MQTT event publisher
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// JWTConfig represents local API authentication
type JWTConfig struct {
	Secret          string        `yaml:"secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
	// OperatorPasswordHash is the bcrypt hash the login endpoint checks.
	OperatorPasswordHash string `yaml:"operator_password_hash"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the configuration file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	return &cfg, nil
}

// Default returns a configuration usable without a file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Storage.Backend = "postgres"
		c.Storage.DSN = dsn
	}
	if url := os.Getenv("CLOUD_BASE_URL"); url != "" {
		c.Cloud.BaseURL = url
	}
	if id := os.Getenv("MERCHANT_ID"); id != "" {
		c.Cloud.MerchantID = id
	}
	if token := os.Getenv("CLOUD_API_TOKEN"); token != "" {
		c.Cloud.Token = token
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		c.NATS.URL = url
	}
}

// applyDefaults fills unset values
func (c *Config) applyDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "printer-server"
	}
	if c.API.Host == "" {
		c.API.Host = "127.0.0.1"
	}
	if c.API.Port == 0 {
		c.API.Port = 8090
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "sqlite"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "printer-server.db"
	}
	if c.Storage.FileDir == "" {
		c.Storage.FileDir = "data"
	}
	if c.Cloud.Timeout == 0 {
		c.Cloud.Timeout = 30 * time.Second
	}
	if c.Printing.BaudRate == 0 {
		c.Printing.BaudRate = 9600
	}
	if c.NATS.Name == "" {
		c.NATS.Name = "pos-printer-server"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "pos-printer-server"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "pos"
	}
	if c.JWT.AccessTokenTTL == 0 {
		c.JWT.AccessTokenTTL = 15 * time.Minute
	}
	if c.JWT.RefreshTokenTTL == 0 {
		c.JWT.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

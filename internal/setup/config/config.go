package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// CurrentClientVersion is the supported client config file version.
const CurrentClientVersion = 1

// Config is the full client configuration, loaded from client.toml.
type Config struct {
	// Version of the client config file.
	Version int     `koanf:"version"`
	Daemon  Daemon  `koanf:"daemon"`
	Feed    Feed    `koanf:"feed"`
	Relays  Relays  `koanf:"relays"`
	Storage Storage `koanf:"storage"`
	Debug   Debug   `koanf:"debug"`
}

// Daemon locates the kukuri daemon process.
type Daemon struct {
	// Websocket address of the daemon.
	Addr string `koanf:"addr"`
	// Request timeout in milliseconds.
	RequestTimeout int `koanf:"request_timeout"`
}

// Feed bounds list fetches.
type Feed struct {
	// Page size for feed and per-user post fetches.
	PageSize int `koanf:"page_size"`
	// Maximum accepted page size.
	MaxPageSize int `koanf:"max_page_size"`
}

// Relays lists the relay endpoints offered to the daemon as defaults.
type Relays struct {
	Default []string `koanf:"default"`
}

// Storage locates the local key-value store.
type Storage struct {
	// Directory holding client.db.
	Path string `koanf:"path"`
}

// Debug controls logging.
type Debug struct {
	// Logging level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum number of log sessions to retain.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
}

// Default returns the configuration used when no client.toml exists.
func Default() *Config {
	return &Config{
		Version: CurrentClientVersion,
		Daemon: Daemon{
			Addr:           "ws://127.0.0.1:7420/ws",
			RequestTimeout: 10000,
		},
		Feed: Feed{
			PageSize:    20,
			MaxPageSize: 100,
		},
		Relays: Relays{
			Default: []string{
				"wss://relay.example.com",
				"wss://backup-relay.example.com",
			},
		},
		Storage: Storage{
			Path: ".kukuri",
		},
		Debug: Debug{
			LogLevel:      "info",
			MaxLogsToKeep: 10,
		},
	}
}

// LoadConfig reads client.toml from the first search path that has one and
// returns the path used. When no file exists, defaults are returned with
// an empty path.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// List search paths
	configPaths := []string{
		".kukuri",
		homeDir + "/.kukuri/config",
		"/etc/kukuri/config",
		"config",
		".",
	}

	var usedConfigPath string

	for _, path := range configPaths {
		configPath := fmt.Sprintf("%s/client.toml", path)
		if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
			usedConfigPath = path
			break
		}
	}

	if usedConfigPath == "" {
		return Default(), "", nil
	}

	// Unmarshaling over the defaults keeps them for any keys the file
	// omits, so the version check reads the raw key instead.
	if err := checkConfigVersion(k); err != nil {
		return nil, "", err
	}

	config := Default()
	if err := k.Unmarshal("", config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	return config, usedConfigPath, nil
}

// checkConfigVersion ensures the loaded file matches the supported
// version.
func checkConfigVersion(k *koanf.Koanf) error {
	if !k.Exists("version") {
		return ErrConfigVersionMissing
	}

	if version := k.Int("version"); version != CurrentClientVersion {
		return fmt.Errorf("%w: expected version %d, found %d",
			ErrConfigVersionMismatch, CurrentClientVersion, version)
	}

	return nil
}

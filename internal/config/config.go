// Package config loads docsub configuration from command-line flags,
// environment variables, and .env files.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/communalgrowth/docsub/internal/errors"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Storage  StorageConfig
	Ingest   IngestConfig
	Resolver ResolverConfig
	Daemon   DaemonConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // json, pretty, or empty for auto-detect
}

// StorageConfig holds the on-disk locations for the database and search index.
type StorageConfig struct {
	DataPath string
}

// DatabasePath is the SQLite file inside the data directory.
func (s StorageConfig) DatabasePath() string {
	return filepath.Join(s.DataPath, "docsub.db")
}

// IngestConfig bounds how much of a message body is looked at.
type IngestConfig struct {
	// MaxDocIDs caps lines, tokens per line, and tokens overall (default: 20)
	MaxDocIDs int
}

// ResolverConfig holds metadata lookup configuration.
type ResolverConfig struct {
	// CatalogPath is an optional TOML catalog used to resolve identifiers offline.
	CatalogPath string
	// Timeout bounds a single lookup (default: 5s)
	Timeout time.Duration
	// RPS and Burst throttle lookups per identifier kind (default: 1 rps, burst 3)
	RPS   float64
	Burst int
}

// DaemonConfig holds mail drop daemon configuration.
type DaemonConfig struct {
	SpoolPath string
	Workers   int // concurrent messages (default: 4)
}

// Flags carries raw flag values. Empty strings mean "not given".
type Flags struct {
	Env             string
	LogLevel        string
	LogFormat       string
	DataPath        string
	SpoolPath       string
	CatalogPath     string
	MaxDocIDs       string
	ResolverTimeout string
	ResolverRPS     string
	ResolverBurst   string
	Workers         string
	EnvFile         string
}

// BindFlags registers the configuration flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Env, "env", "", "Environment (development, staging, production)")
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFormat, "log-format", "", "Log format (json, pretty; default: auto)")
	fs.StringVar(&f.DataPath, "data-path", "", "Directory for the database and search index (default: ~/.docsub)")
	fs.StringVar(&f.SpoolPath, "spool-path", "", "Mail spool root containing subscribe/, unsubscribe/, forget/")
	fs.StringVar(&f.CatalogPath, "catalog", "", "TOML catalog used to resolve identifiers")
	fs.StringVar(&f.MaxDocIDs, "max-docids", "", "Maximum document identifiers read per message (default: 20)")
	fs.StringVar(&f.ResolverTimeout, "resolver-timeout", "", "Timeout for a single metadata lookup (default: 5s)")
	fs.StringVar(&f.ResolverRPS, "resolver-rps", "", "Metadata lookups per second per identifier kind (default: 1)")
	fs.StringVar(&f.ResolverBurst, "resolver-burst", "", "Metadata lookup burst per identifier kind (default: 3)")
	fs.StringVar(&f.Workers, "workers", "", "Messages processed concurrently by the daemon (default: 4)")
	fs.StringVar(&f.EnvFile, "env-file", ".env", "Path to .env file")
	return f
}

// Load builds the configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(f *Flags) (*Config, error) {
	if f == nil {
		f = &Flags{EnvFile: ".env"}
	}

	// Load .env file if it exists (silently ignore if not found).
	if f.EnvFile != "" {
		_ = loadEnvFile(f.EnvFile)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(f.Env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(f.LogLevel, "LOG_LEVEL", "info"),
			Format: getConfigValue(f.LogFormat, "LOG_FORMAT", ""),
		},
		Storage: StorageConfig{
			DataPath: getConfigValue(f.DataPath, "DATA_PATH", ""),
		},
		Ingest: IngestConfig{
			MaxDocIDs: getIntConfigValue(f.MaxDocIDs, "RATELIMIT_DOCIDS", 20),
		},
		Resolver: ResolverConfig{
			CatalogPath: getConfigValue(f.CatalogPath, "CATALOG_PATH", ""),
			Burst:       getIntConfigValue(f.ResolverBurst, "RESOLVER_BURST", 3),
		},
		Daemon: DaemonConfig{
			SpoolPath: getConfigValue(f.SpoolPath, "SPOOL_PATH", ""),
			Workers:   getIntConfigValue(f.Workers, "WORKERS", 4),
		},
	}

	timeoutStr := getConfigValue(f.ResolverTimeout, "RESOLVER_TIMEOUT", "5s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeConfiguration, "invalid resolver timeout %q", timeoutStr)
	}
	cfg.Resolver.Timeout = timeout

	rpsStr := getConfigValue(f.ResolverRPS, "RESOLVER_RPS", "1")
	rps, err := strconv.ParseFloat(rpsStr, 64)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeConfiguration, "invalid resolver rps %q", rpsStr)
	}
	cfg.Resolver.RPS = rps

	if err := cfg.expandPaths(); err != nil {
		return nil, errors.Wrap(err, errors.CodeConfiguration, "invalid path")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return errors.Configurationf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return errors.Configurationf("invalid log level: %q (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Logger.Format {
	case "", "json", "pretty":
	default:
		return errors.Configurationf("invalid log format: %q (must be json or pretty)", c.Logger.Format)
	}

	if c.Storage.DataPath == "" {
		return errors.Configurationf("data path cannot be empty after expansion")
	}
	if c.Ingest.MaxDocIDs < 1 {
		return errors.Configurationf("max docids must be positive, got %d", c.Ingest.MaxDocIDs)
	}
	if c.Resolver.Timeout <= 0 {
		return errors.Configurationf("resolver timeout must be positive, got %s", c.Resolver.Timeout)
	}
	if c.Resolver.RPS <= 0 || c.Resolver.Burst < 1 {
		return errors.Configurationf("resolver rate limit must be positive (rps=%g, burst=%d)", c.Resolver.RPS, c.Resolver.Burst)
	}
	if c.Daemon.Workers < 1 {
		return errors.Configurationf("workers must be positive, got %d", c.Daemon.Workers)
	}

	if c.Resolver.CatalogPath != "" {
		if _, err := os.Stat(c.Resolver.CatalogPath); err != nil {
			return errors.Wrapf(err, errors.CodeConfiguration, "catalog %s", c.Resolver.CatalogPath)
		}
	}

	return nil
}

// expandPaths expands ~ and makes configured paths absolute.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	if c.Storage.DataPath, err = expandPath(c.Storage.DataPath, filepath.Join(homeDir, ".docsub")); err != nil {
		return err
	}
	// The spool defaults to a directory next to the data.
	if c.Daemon.SpoolPath, err = expandPath(c.Daemon.SpoolPath, filepath.Join(c.Storage.DataPath, "spool")); err != nil {
		return err
	}
	if c.Resolver.CatalogPath, err = expandPath(c.Resolver.CatalogPath, ""); err != nil {
		return err
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
// Unparseable values fall back to the default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strings.TrimSpace(strValue))
	if err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Real environment variables win over the file.
		if _, set := os.LookupEnv(key); !set {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}

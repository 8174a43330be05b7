// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Data      DataConfig
	Store     StoreConfig
	Server    ServerConfig
	Upload    UploadConfig
	Generator GeneratorConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds the on-disk location for databases and uploads.
type DataConfig struct {
	BasePath string
}

// StoreConfig selects the chapter store backend.
type StoreConfig struct {
	Backend string // memory, badger or sqlite (default: memory)
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Name          string
	Port          string        // Server port (default: 5000)
	PublicURL     string        // Base URL used in videoUrl (default: http://localhost:{port})
	ReadTimeout   time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout  time.Duration // HTTP write timeout (default: 10m, uploads are large)
	IdleTimeout   time.Duration // HTTP idle timeout (default: 60s)
	CORSOrigins   []string      // Allowed browser origins (default: *)
	AdvertiseMDNS bool          // Advertise via Avahi (default: false)
}

// UploadConfig limits video uploads.
type UploadConfig struct {
	MaxBytes      int64 // default: 2 GiB
	RatePerMinute int   // uploads per client IP per minute (default: 6)
}

// GeneratorConfig configures the chapter generator run after each upload.
type GeneratorConfig struct {
	Kind          string        // template, embedded, ffprobe or auto (default: template)
	TemplatePath  string        // optional YAML chapter template
	WatchTemplate bool          // reload TemplatePath when it changes (default: true)
	Timeout       time.Duration // default: 2m
	MaxConcurrent int           // default: 2
	FFprobePath   string        // default: ffprobe on PATH
}

// StorePath returns the database location for the configured backend.
// The memory backend has none.
func (c *Config) StorePath() string {
	switch c.Store.Backend {
	case "badger":
		return filepath.Join(c.Data.BasePath, "chapters.badger")
	case "sqlite":
		return filepath.Join(c.Data.BasePath, "chapters.db")
	default:
		return ""
	}
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("chapterdesk", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for databases and uploaded videos")
	storeBackend := fs.String("store", "", "Chapter store backend (memory, badger, sqlite)")

	serverName := fs.String("server-name", "", "Name advertised on the network")
	serverPort := fs.String("port", "", "Server port (default: 5000)")
	publicURL := fs.String("public-url", "", "Base URL clients use to reach the server")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 10m)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := fs.String("cors-origins", "", "Comma separated allowed origins (default: *)")
	advertiseMDNS := fs.String("advertise-mdns", "", "Advertise via Avahi (default: false)")

	uploadMaxBytes := fs.String("upload-max-bytes", "", "Largest accepted video in bytes (default: 2 GiB)")
	uploadRate := fs.String("upload-rate", "", "Uploads per client per minute (default: 6)")

	generator := fs.String("generator", "", "Chapter generator (template, embedded, ffprobe, auto)")
	generatorTemplate := fs.String("generator-template", "", "YAML chapter template for the template generator")
	generatorWatch := fs.String("generator-watch-template", "", "Reload the chapter template when the file changes (default: true)")
	generatorTimeout := fs.String("generator-timeout", "", "Chapter generation timeout (default: 2m)")
	generatorMaxConcurrent := fs.String("generator-max-concurrent", "", "Simultaneous chapter generations (default: 2)")
	ffprobePath := fs.String("ffprobe-path", "", "Path to ffprobe binary (default: ffprobe on PATH)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Missing .env is fine. godotenv never overrides variables already set.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", *envFile, err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getConfigValue(*storeBackend, "STORE_BACKEND", "memory")),
		},
		Server: ServerConfig{
			Name:          getConfigValue(*serverName, "SERVER_NAME", "Chapterdesk"),
			Port:          getConfigValue(*serverPort, "SERVER_PORT", "5000"),
			PublicURL:     strings.TrimRight(getConfigValue(*publicURL, "PUBLIC_URL", ""), "/"),
			CORSOrigins:   splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "*")),
			AdvertiseMDNS: getBoolConfigValue(*advertiseMDNS, "ADVERTISE_MDNS", false),
		},
		Generator: GeneratorConfig{
			Kind:          strings.ToLower(getConfigValue(*generator, "GENERATOR", "template")),
			TemplatePath:  getConfigValue(*generatorTemplate, "GENERATOR_TEMPLATE", ""),
			WatchTemplate: getBoolConfigValue(*generatorWatch, "GENERATOR_WATCH_TEMPLATE", true),
			FFprobePath:   getConfigValue(*ffprobePath, "FFPROBE_PATH", ""),
		},
	}

	var err error
	if cfg.Server.ReadTimeout, err = getDurationConfigValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = getDurationConfigValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "10m"); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = getDurationConfigValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	if cfg.Generator.Timeout, err = getDurationConfigValue(*generatorTimeout, "GENERATOR_TIMEOUT", "2m"); err != nil {
		return nil, err
	}

	if cfg.Upload.MaxBytes, err = getInt64ConfigValue(*uploadMaxBytes, "UPLOAD_MAX_BYTES", 2<<30); err != nil {
		return nil, err
	}
	rate, err := getInt64ConfigValue(*uploadRate, "UPLOAD_RATE_PER_MINUTE", 6)
	if err != nil {
		return nil, err
	}
	cfg.Upload.RatePerMinute = int(rate)
	maxConcurrent, err := getInt64ConfigValue(*generatorMaxConcurrent, "GENERATOR_MAX_CONCURRENT", 2)
	if err != nil {
		return nil, err
	}
	cfg.Generator.MaxConcurrent = int(maxConcurrent)

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}
	if cfg.Generator.TemplatePath != "" {
		if cfg.Generator.TemplatePath, err = expandPath(cfg.Generator.TemplatePath, ""); err != nil {
			return nil, fmt.Errorf("invalid generator template path: %w", err)
		}
	}
	if cfg.Server.PublicURL == "" {
		cfg.Server.PublicURL = "http://localhost:" + cfg.Server.Port
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	switch c.Store.Backend {
	case "memory", "badger", "sqlite":
	default:
		return fmt.Errorf("invalid store backend: %s (must be memory, badger, or sqlite)", c.Store.Backend)
	}

	switch c.Generator.Kind {
	case "template", "embedded", "ffprobe", "auto":
	default:
		return fmt.Errorf("invalid generator: %s (must be template, embedded, ffprobe, or auto)", c.Generator.Kind)
	}

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %s", c.Server.Port)
	}

	if c.Upload.MaxBytes <= 0 {
		return errors.New("upload max bytes must be positive")
	}
	if c.Upload.RatePerMinute <= 0 {
		return errors.New("upload rate must be positive")
	}
	if c.Generator.MaxConcurrent <= 0 {
		return errors.New("generator max concurrent must be positive")
	}
	if c.Generator.Timeout <= 0 {
		return errors.New("generator timeout must be positive")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
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

// expandDataPath defaults the data path to ~/Chapterdesk/data.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "Chapterdesk", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
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

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getInt64ConfigValue returns an integer from flag, env var, or default.
// Unlike the string helpers, malformed numbers are an error.
func getInt64ConfigValue(flagValue, envKey string, defaultValue int64) (int64, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseInt(strValue, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return v, nil
}

func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return d, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL     = "http://127.0.0.1:7433"
	DefaultDBFileName = ".fstash.db"
	DefaultLogLevel   = "info"

	DefaultMaxUploadBytes     int64 = 100 * 1024 * 1024
	DefaultMultipartMaxMemory int64 = 8 * 1024 * 1024

	configFileName  = ".fstash.toml"
	configDirEnvKey = "FSTASH_CONFIG_DIR"
	apiURLEnvKey    = "FSTASH_API_URL"
	dbPathEnvKey    = "FSTASH_DB"
	blobRootEnvKey  = "FSTASH_BLOB_ROOT"
	logLevelEnvKey  = "FSTASH_LOG_LEVEL"
)

// UploadConfig defines runtime limits for file ingestion.
type UploadConfig struct {
	MaxUploadBytes     int64 `toml:"max_upload_bytes"`
	MultipartMaxMemory int64 `toml:"multipart_max_memory"`
}

// Config defines runtime configuration for fstash.
type Config struct {
	APIURL   string       `toml:"api_url"`
	DBPath   string       `toml:"db_path"`
	BlobRoot string       `toml:"blob_root"`
	LogLevel string       `toml:"log_level"`
	Uploads  UploadConfig `toml:"uploads"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		LogLevel: DefaultLogLevel,
		Uploads: UploadConfig{
			MaxUploadBytes:     DefaultMaxUploadBytes,
			MultipartMaxMemory: DefaultMultipartMaxMemory,
		},
	}
}

// Load reads config from the user's file and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	path, err := GlobalPath()
	if err == nil {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}
	if cfg.BlobRoot == "" {
		cfg.BlobRoot = DefaultBlobRoot(cfg.DBPath)
	}

	if apiURL := os.Getenv(apiURLEnvKey); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if dbPath := os.Getenv(dbPathEnvKey); dbPath != "" {
		cfg.DBPath = dbPath
		if os.Getenv(blobRootEnvKey) == "" {
			cfg.BlobRoot = DefaultBlobRoot(dbPath)
		}
	}
	if blobRoot := os.Getenv(blobRootEnvKey); blobRoot != "" {
		cfg.BlobRoot = blobRoot
	}
	if level := strings.TrimSpace(os.Getenv(logLevelEnvKey)); level != "" {
		cfg.LogLevel = level
	}

	cfg.normalizeUploadDefaults()

	return &cfg, nil
}

// DefaultBlobRoot derives the blob directory from the database path so
// records and their bytes stay side by side.
func DefaultBlobRoot(dbPath string) string {
	if dbPath == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(dbPath), ".fstash", "blobs")
}

// GlobalPath returns the path to the user config file.
func GlobalPath() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(configDirEnvKey)); dir != "" {
		return filepath.Join(dir, configFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

func loadFile(path string, cfg *Config) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"blob_root",
	"log_level",
	"uploads.max_upload_bytes",
	"uploads.multipart_max_memory",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "blob_root":
		return c.BlobRoot, nil
	case "log_level":
		return c.LogLevel, nil
	case "uploads.max_upload_bytes":
		return strconv.FormatInt(c.Uploads.MaxUploadBytes, 10), nil
	case "uploads.multipart_max_memory":
		return strconv.FormatInt(c.Uploads.MultipartMaxMemory, 10), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "uploads.max_upload_bytes", "uploads.multipart_max_memory":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func (c *Config) normalizeUploadDefaults() {
	if c.Uploads.MaxUploadBytes <= 0 {
		c.Uploads.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Uploads.MultipartMaxMemory <= 0 {
		c.Uploads.MultipartMaxMemory = DefaultMultipartMaxMemory
	}
}

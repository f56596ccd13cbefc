package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port         string
	DBPath       string
	CSRFKey      []byte
	SessionKey   []byte
	CookieDomain string
	CookieSecure bool

	// Storefront API. Empty APIBaseURL runs on local sources only.
	APIBaseURL string
	APITimeout time.Duration
	APIRPS     float64

	PollInterval      time.Duration
	CapacityThreshold int

	// Shared seen-set. Empty RedisAddr keeps it in SQLite.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogLevel     slog.Level
	OTLPEndpoint string

	LegacyBuckets []string
	LatestBucket  string
}

// fileConfig is the optional YAML file named by CONFIG_FILE. Environment
// variables override anything set in it.
type fileConfig struct {
	Port              string   `yaml:"port"`
	DBPath            string   `yaml:"db_path"`
	CookieDomain      string   `yaml:"cookie_domain"`
	CookieSecure      *bool    `yaml:"cookie_secure"`
	APIBaseURL        string   `yaml:"api_base_url"`
	APITimeout        string   `yaml:"api_timeout"`
	APIRPS            *float64 `yaml:"api_rps"`
	PollInterval      string   `yaml:"poll_interval"`
	CapacityThreshold *int     `yaml:"capacity_threshold"`
	RedisAddr         string   `yaml:"redis_addr"`
	RedisDB           *int     `yaml:"redis_db"`
	LogLevel          string   `yaml:"log_level"`
	OTLPEndpoint      string   `yaml:"otlp_endpoint"`
	LegacyBuckets     []string `yaml:"legacy_buckets"`
	LatestBucket      string   `yaml:"latest_bucket"`
}

var defaults = fileConfig{
	Port:          "8585",
	DBPath:        "./bookings.db",
	APITimeout:    "10s",
	PollInterval:  "5s",
	LogLevel:      "info",
	LegacyBuckets: []string{"ecodrive_bookings", "ecodrive_orders", "ecodrive_admin_bookings"},
	LatestBucket:  "ecodrive_latest_booking",
}

func LoadConfig() (*Config, error) {
	file := defaults
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		loaded, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		file = overlay(file, loaded)
	}

	cfg := &Config{
		Port:          getEnv("PORT", file.Port),
		DBPath:        getEnv("DB_PATH", file.DBPath),
		CookieDomain:  getEnv("COOKIE_DOMAIN", file.CookieDomain),
		CookieSecure:  getEnv("COOKIE_SECURE", strconv.FormatBool(file.CookieSecure != nil && *file.CookieSecure)) == "true",
		APIBaseURL:    getEnv("API_BASE_URL", file.APIBaseURL),
		RedisAddr:     getEnv("REDIS_ADDR", file.RedisAddr),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		OTLPEndpoint:  getEnv("OTLP_ENDPOINT", file.OTLPEndpoint),
		LatestBucket:  getEnv("LATEST_BUCKET", file.LatestBucket),
		LegacyBuckets: splitList(getEnv("LEGACY_BUCKETS", strings.Join(file.LegacyBuckets, ","))),
	}

	var err error
	if cfg.APITimeout, err = time.ParseDuration(getEnv("API_TIMEOUT", file.APITimeout)); err != nil {
		return nil, fmt.Errorf("invalid API_TIMEOUT: %w", err)
	}
	if cfg.PollInterval, err = time.ParseDuration(getEnv("POLL_INTERVAL", file.PollInterval)); err != nil {
		return nil, fmt.Errorf("invalid POLL_INTERVAL: %w", err)
	}
	if cfg.APIRPS, err = strconv.ParseFloat(getEnv("API_RPS", formatFloat(file.APIRPS, 2)), 64); err != nil {
		return nil, fmt.Errorf("invalid API_RPS: %w", err)
	}
	if cfg.CapacityThreshold, err = strconv.Atoi(getEnv("CAPACITY_THRESHOLD", formatInt(file.CapacityThreshold, 3))); err != nil || cfg.CapacityThreshold < 1 {
		return nil, fmt.Errorf("invalid CAPACITY_THRESHOLD %q", os.Getenv("CAPACITY_THRESHOLD"))
	}
	if cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", formatInt(file.RedisDB, 0))); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", file.LogLevel))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	// CSRF Key (critical for security)
	cfg.CSRFKey = loadKey("CSRF_KEY")
	// Session Key (critical for security)
	cfg.SessionKey = loadKey("SESSION_KEY")

	// Make sure port is valid
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		slog.Error("Invalid PORT environment variable. Falling back to default.", "PORT", cfg.Port)
		cfg.Port = defaults.Port
	}

	return cfg, nil
}

func loadFile(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("load config file %q: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fileConfig{}, fmt.Errorf("parse config file %q: %w", path, err)
	}
	return fc, nil
}

// overlay returns base with every field set in top replacing it.
func overlay(base, top fileConfig) fileConfig {
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	str(&base.Port, top.Port)
	str(&base.DBPath, top.DBPath)
	str(&base.CookieDomain, top.CookieDomain)
	str(&base.APIBaseURL, top.APIBaseURL)
	str(&base.APITimeout, top.APITimeout)
	str(&base.PollInterval, top.PollInterval)
	str(&base.RedisAddr, top.RedisAddr)
	str(&base.LogLevel, top.LogLevel)
	str(&base.OTLPEndpoint, top.OTLPEndpoint)
	str(&base.LatestBucket, top.LatestBucket)
	if top.CookieSecure != nil {
		base.CookieSecure = top.CookieSecure
	}
	if top.APIRPS != nil {
		base.APIRPS = top.APIRPS
	}
	if top.CapacityThreshold != nil {
		base.CapacityThreshold = top.CapacityThreshold
	}
	if top.RedisDB != nil {
		base.RedisDB = top.RedisDB
	}
	if top.LegacyBuckets != nil {
		base.LegacyBuckets = top.LegacyBuckets
	}
	return base
}

// loadKey reads a base64 key of at least 32 bytes, generating a random one
// for development when it is missing or too short.
func loadKey(name string) []byte {
	keyStr := os.Getenv(name)
	if keyStr == "" {
		slog.Warn(name + " environment variable not set. Generating a random key for development. This key will change on each restart. PLEASE SET " + name + " IN PRODUCTION!")
		return generateRandomBytes(32)
	}
	decodedKey, err := base64.StdEncoding.DecodeString(keyStr)
	if err != nil || len(decodedKey) < 32 {
		slog.Warn(name + " is invalid or too short (min 32 bytes recommended). Generating a random key for development. PLEASE SET A SECURE " + name + " IN PRODUCTION!")
		return generateRandomBytes(32)
	}
	return decodedKey
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func formatInt(v *int, def int) string {
	if v == nil {
		return strconv.Itoa(def)
	}
	return strconv.Itoa(*v)
}

func formatFloat(v *float64, def float64) string {
	if v == nil {
		return strconv.FormatFloat(def, 'f', -1, 64)
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// generateRandomBytes generates a random byte slice of specified length
// Uses crypto/rand for secure random numbers.
func generateRandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		slog.Error("Failed to read random bytes", "error", err)
		// Only reachable when the OS entropy source is broken.
		fallbackKey := "fallback-insecure-key-" + strconv.FormatInt(time.Now().UnixNano(), 10)
		if len(fallbackKey) < n {
			paddedKey := make([]byte, n)
			copy(paddedKey, fallbackKey)
			return paddedKey
		}
		return []byte(fallbackKey)[:n]
	}
	return b
}

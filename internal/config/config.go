// Package config loads service settings from the environment. A .env file in
// the working directory is read first when present.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	DBPath   string
	BaseURL  string
	LogLevel string
	// LogFormat is "text" or "json".
	LogFormat string

	AllowedOrigins []string
	DefaultLocale  string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string

	PostmarkToken  string
	PostmarkAPIURL string
	FromEmail      string

	MessagingURL      string
	MessagingAPIKey   string
	MessagingDeviceID string

	DeliveryTimeout time.Duration
	PostLookback    time.Duration
	LedgerRetention time.Duration

	// Schedules overrides job schedules by job name, from NUDGE_JOB_<NAME>.
	Schedules map[string]string
}

// Load reads configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	port := getEnv("NUDGE_PORT", "8080")
	cfg := &Config{
		Port:      port,
		DBPath:    getEnv("NUDGE_DB_PATH", "nudge.db"),
		BaseURL:   getEnv("NUDGE_BASE_URL", "http://localhost:"+port),
		LogLevel:  getEnv("NUDGE_LOG_LEVEL", "info"),
		LogFormat: getEnv("NUDGE_LOG_FORMAT", "text"),

		AllowedOrigins: splitList(getEnv("NUDGE_ALLOWED_ORIGINS", "")),
		DefaultLocale:  getEnv("NUDGE_DEFAULT_LOCALE", "id"),

		VAPIDPublicKey:  getEnv("NUDGE_VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: getEnv("NUDGE_VAPID_PRIVATE_KEY", ""),
		VAPIDSubscriber: getEnv("NUDGE_VAPID_SUBSCRIBER", "mailto:noreply@nudge.app"),

		PostmarkToken:  getEnv("NUDGE_POSTMARK_TOKEN", ""),
		PostmarkAPIURL: getEnv("NUDGE_POSTMARK_API_URL", ""),
		FromEmail:      getEnv("NUDGE_FROM_EMAIL", ""),

		MessagingURL:      getEnv("NUDGE_MESSAGING_URL", ""),
		MessagingAPIKey:   getEnv("NUDGE_MESSAGING_API_KEY", ""),
		MessagingDeviceID: getEnv("NUDGE_MESSAGING_DEVICE_ID", ""),

		Schedules: make(map[string]string),
	}

	var err error
	if cfg.DeliveryTimeout, err = getDuration("NUDGE_DELIVERY_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.PostLookback, err = getDuration("NUDGE_POST_LOOKBACK", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.LedgerRetention, err = getDuration("NUDGE_LEDGER_RETENTION", 180*24*time.Hour); err != nil {
		return nil, err
	}

	for _, kv := range os.Environ() {
		key, value, _ := strings.Cut(kv, "=")
		name, ok := strings.CutPrefix(key, "NUDGE_JOB_")
		if !ok || value == "" {
			continue
		}
		cfg.Schedules[strings.ToLower(name)] = value
	}

	if (cfg.VAPIDPublicKey == "") != (cfg.VAPIDPrivateKey == "") {
		slog.Warn("only one VAPID key is set; push delivery stays unconfigured")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// getDuration accepts Go durations ("90s", "36h") or a bare number of seconds.
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		d = time.Duration(secs) * time.Second
	} else if d, err = time.ParseDuration(v); err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: duration must be positive, got %q", key, v)
	}
	return d, nil
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

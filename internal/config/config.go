// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	LogLevel    slog.Level

	Social    SocialConfig
	Launch    LaunchConfig
	Monitor   MonitorConfig
	Journal   JournalConfig
	RateLimit RateLimitConfig

	GRPCHealthAddr   string
	EventHistorySize int
}

// SocialConfig holds the X API credentials.
type SocialConfig struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
	BaseURL      string
}

// LaunchConfig covers the launch services and the ledger.
type LaunchConfig struct {
	RPCURL               string
	WalletPrivateKey     string
	MetadataUploadURL    string
	LaunchAPIURL         string
	DevBuy               decimal.Decimal
	PriorityFee          decimal.Decimal
	SlippagePercent      int
	MediaFetchTimeout    time.Duration
	MetadataImageTimeout time.Duration
	SubmitMaxRetries     int
	ConfirmTimeout       time.Duration
}

// MonitorConfig tunes the poll loop.
type MonitorConfig struct {
	PollInterval time.Duration
	Lookback     time.Duration
	ErrorBackoff time.Duration
	AutoStart    bool
}

// JournalConfig controls the optional launch journal. An empty DBPath disables it.
type JournalConfig struct {
	DBPath    string
	Retention time.Duration
}

// RateLimitConfig throttles manual launches per client.
type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var parseErrs []error
	dec := func(key, fallback string) decimal.Decimal {
		d, err := getEnvDecimal(key, fallback)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		return d
	}
	dur := func(key string, fallback time.Duration) time.Duration {
		d, err := getEnvDuration(key, fallback)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		return d
	}

	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		parseErrs = append(parseErrs, err)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		LogLevel:    level,
		Social: SocialConfig{
			APIKey:       getEnv("TWITTER_API_KEY", ""),
			APISecret:    getEnv("TWITTER_API_SECRET", ""),
			AccessToken:  getEnv("TWITTER_ACCESS_TOKEN", ""),
			AccessSecret: getEnv("TWITTER_ACCESS_SECRET", ""),
			BaseURL:      getEnv("TWITTER_API_BASE_URL", "https://api.twitter.com"),
		},
		Launch: LaunchConfig{
			RPCURL:               getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
			WalletPrivateKey:     getEnv("WALLET_PRIVATE_KEY", ""),
			MetadataUploadURL:    getEnv("METADATA_UPLOAD_URL", "https://pump.fun/api/ipfs"),
			LaunchAPIURL:         getEnv("LAUNCH_API_URL", "https://pumpportal.fun/api/trade-local"),
			DevBuy:               dec("DEV_BUY_SOL", "0.01"),
			PriorityFee:          dec("PRIORITY_FEE_SOL", "0.0005"),
			SlippagePercent:      getEnvInt("SLIPPAGE_PERCENT", 10),
			MediaFetchTimeout:    dur("MEDIA_FETCH_TIMEOUT", 15*time.Second),
			MetadataImageTimeout: dur("METADATA_IMAGE_TIMEOUT", 30*time.Second),
			SubmitMaxRetries:     getEnvInt("SUBMIT_MAX_RETRIES", 3),
			ConfirmTimeout:       dur("CONFIRM_TIMEOUT", 60*time.Second),
		},
		Monitor: MonitorConfig{
			PollInterval: dur("POLL_INTERVAL", 30*time.Second),
			Lookback:     dur("LOOKBACK_WINDOW", 2*time.Minute),
			ErrorBackoff: dur("ERROR_BACKOFF", 60*time.Second),
			AutoStart:    getEnvBool("MONITOR_AUTOSTART", false),
		},
		Journal: JournalConfig{
			DBPath:    getEnv("JOURNAL_DB_PATH", ""),
			Retention: dur("JOURNAL_RETENTION", 720*time.Hour),
		},
		RateLimit: RateLimitConfig{
			PerMinute: getEnvInt("MANUAL_LAUNCH_RATE_PER_MIN", 6),
			Burst:     getEnvInt("MANUAL_LAUNCH_BURST", 2),
		},
		GRPCHealthAddr:   getEnv("GRPC_HEALTH_ADDR", ""),
		EventHistorySize: getEnvInt("EVENT_HISTORY_SIZE", 200),
	}

	if len(parseErrs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(parseErrs...))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Social.BaseURL == "" {
		return fmt.Errorf("TWITTER_API_BASE_URL cannot be empty")
	}
	if c.Launch.RPCURL == "" {
		return fmt.Errorf("SOLANA_RPC_URL cannot be empty")
	}
	if c.Launch.MetadataUploadURL == "" || c.Launch.LaunchAPIURL == "" {
		return fmt.Errorf("METADATA_UPLOAD_URL and LAUNCH_API_URL cannot be empty")
	}
	if !c.Launch.DevBuy.IsPositive() {
		return fmt.Errorf("DEV_BUY_SOL must be > 0")
	}
	if c.Launch.PriorityFee.IsNegative() {
		return fmt.Errorf("PRIORITY_FEE_SOL must be >= 0")
	}
	if c.Launch.SlippagePercent <= 0 || c.Launch.SlippagePercent > 100 {
		return fmt.Errorf("SLIPPAGE_PERCENT must be between 1 and 100")
	}
	if c.Launch.SubmitMaxRetries < 0 {
		return fmt.Errorf("SUBMIT_MAX_RETRIES must be >= 0")
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"POLL_INTERVAL", c.Monitor.PollInterval},
		{"LOOKBACK_WINDOW", c.Monitor.Lookback},
		{"ERROR_BACKOFF", c.Monitor.ErrorBackoff},
		{"MEDIA_FETCH_TIMEOUT", c.Launch.MediaFetchTimeout},
		{"METADATA_IMAGE_TIMEOUT", c.Launch.MetadataImageTimeout},
		{"CONFIRM_TIMEOUT", c.Launch.ConfirmTimeout},
		{"JOURNAL_RETENTION", c.Journal.Retention},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be > 0", d.name)
		}
	}
	if c.Monitor.Lookback < c.Monitor.PollInterval {
		return fmt.Errorf("LOOKBACK_WINDOW (%s) must not be shorter than POLL_INTERVAL (%s)", c.Monitor.Lookback, c.Monitor.PollInterval)
	}

	if c.RateLimit.PerMinute <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("MANUAL_LAUNCH_RATE_PER_MIN and MANUAL_LAUNCH_BURST must be > 0")
	}
	if c.EventHistorySize <= 0 {
		return fmt.Errorf("EVENT_HISTORY_SIZE must be > 0")
	}
	return nil
}

// HasSocialCredentials reports whether all four X API credentials are set.
func (c *Config) HasSocialCredentials() bool {
	s := c.Social
	return s.APIKey != "" && s.APISecret != "" && s.AccessToken != "" && s.AccessSecret != ""
}

// AllowedOrigins returns the CORS origins derived from FRONTEND_URL.
func (c *Config) AllowedOrigins() []string {
	if c.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{c.FrontendURL}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnvDecimal(key, fallback string) (decimal.Decimal, error) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		value = fallback
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

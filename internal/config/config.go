package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL string
	Port        string

	// Independent signing secrets: access-token compromise must not be
	// usable to mint new sessions.
	JWTSecret        string
	JWTRefreshSecret string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	ResetCodeTTL     time.Duration
	ResetMaxPerHour  int
	ResetMaxAttempts int
	BcryptCost       int

	SMTPHost        string
	SMTPPort        int
	SMTPUser        string
	SMTPPassword    string
	MailFromName    string
	MailFromAddress string

	CleanupInterval time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:             "8080",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  7 * 24 * time.Hour,
		ResetCodeTTL:     15 * time.Minute,
		ResetMaxPerHour:  3,
		ResetMaxAttempts: 5,
		BcryptCost:       12,
		SMTPPort:         587,
		MailFromName:     "Credstack",
		CleanupInterval:  time.Hour,
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	cfg.JWTRefreshSecret = os.Getenv("JWT_REFRESH_SECRET")
	if cfg.JWTRefreshSecret == "" {
		return nil, fmt.Errorf("JWT_REFRESH_SECRET environment variable is required")
	}
	if cfg.JWTRefreshSecret == cfg.JWTSecret {
		return nil, fmt.Errorf("JWT_REFRESH_SECRET must differ from JWT_SECRET")
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	var err error
	if cfg.AccessTokenTTL, err = durationEnv("ACCESS_TOKEN_TTL_MINUTES", cfg.AccessTokenTTL, time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = durationEnv("REFRESH_TOKEN_TTL_HOURS", cfg.RefreshTokenTTL, time.Hour); err != nil {
		return nil, err
	}
	if cfg.ResetCodeTTL, err = durationEnv("RESET_TTL_MINUTES", cfg.ResetCodeTTL, time.Minute); err != nil {
		return nil, err
	}
	if cfg.CleanupInterval, err = durationEnv("TOKEN_CLEANUP_INTERVAL_HOURS", cfg.CleanupInterval, time.Hour); err != nil {
		return nil, err
	}
	if cfg.ResetMaxPerHour, err = intEnv("RESET_MAX_PER_HOUR", cfg.ResetMaxPerHour); err != nil {
		return nil, err
	}
	if cfg.ResetMaxAttempts, err = intEnv("RESET_MAX_ATTEMPTS", cfg.ResetMaxAttempts); err != nil {
		return nil, err
	}
	if cfg.BcryptCost, err = intEnv("BCRYPT_COST", cfg.BcryptCost); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = intEnv("SMTP_PORT", cfg.SMTPPort); err != nil {
		return nil, err
	}

	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	cfg.SMTPUser = os.Getenv("SMTP_USER")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	if name := os.Getenv("MAIL_FROM_NAME"); name != "" {
		cfg.MailFromName = name
	}
	cfg.MailFromAddress = os.Getenv("MAIL_FROM_ADDRESS")
	if cfg.MailFromAddress == "" {
		cfg.MailFromAddress = cfg.SMTPUser
	}

	return cfg, nil
}

// intEnv parses an integer env var, keeping the default when unset.
func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}

// durationEnv parses an env var expressed in whole units (minutes, hours).
func durationEnv(key string, def time.Duration, unit time.Duration) (time.Duration, error) {
	n, err := intEnv(key, 0)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return def, nil
	}
	return time.Duration(n) * unit, nil
}

// Package config loads service configuration from the environment, with
// optional secret overlay from Vault. No credential has a baked-in
// default: token-gated features stay off until configured.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full runtime configuration.
type Config struct {
	ListenAddr string

	// Scan engine knobs.
	ScanDeadline  time.Duration
	ProbeTimeout  time.Duration
	Hop1Fanout    int
	Hop2Fanout    int
	OutboundLimit int64
	ProbePacing   time.Duration
	MaxUsernames  int
	MaxURLs       int
	DemoDepth     int

	// Credentials (env or Vault; never defaulted).
	GitHubToken  string
	ResendAPIKey string
	MailFrom     string

	// Verification gate.
	VerifyCodeTTL     time.Duration
	VerifyMaxAttempts int
	VerifyLockout     time.Duration
	VerifyPerHour     int
	ScanCooldown      time.Duration

	// Optional integrations.
	VaultAddr         string
	VaultToken        string
	VaultSecretPath   string
	TelemetryEndpoint string
}

// Load reads the environment and, when Vault is configured, overlays
// secrets from the configured KV path.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:    envStr("LISTEN_ADDR", ":8080"),
		ScanDeadline:  envDur("SCAN_DEADLINE", 90*time.Second),
		ProbeTimeout:  envDur("PROBE_TIMEOUT", 30*time.Second),
		Hop1Fanout:    envInt("HOP1_FANOUT", 1),
		Hop2Fanout:    envInt("HOP2_FANOUT", 2),
		OutboundLimit: int64(envInt("OUTBOUND_LIMIT", 6)),
		ProbePacing:   envDur("PROBE_PACING", 400*time.Millisecond),
		MaxUsernames:  envInt("MAX_USERNAMES", 5),
		MaxURLs:       envInt("MAX_URLS", 5),
		DemoDepth:     envInt("DEMO_DEPTH", 2),

		GitHubToken:  os.Getenv("GITHUB_TOKEN"),
		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		MailFrom:     envStr("MAIL_FROM", "verify@localhost"),

		VerifyCodeTTL:     envDur("VERIFY_CODE_TTL", 10*time.Minute),
		VerifyMaxAttempts: envInt("VERIFY_MAX_ATTEMPTS", 5),
		VerifyLockout:     envDur("VERIFY_LOCKOUT", 15*time.Minute),
		VerifyPerHour:     envInt("VERIFY_PER_HOUR", 5),
		ScanCooldown:      envDur("SCAN_COOLDOWN", 24*time.Hour),

		VaultAddr:         os.Getenv("VAULT_ADDR"),
		VaultToken:        os.Getenv("VAULT_TOKEN"),
		VaultSecretPath:   envStr("VAULT_SECRET_PATH", "secret/data/trace"),
		TelemetryEndpoint: os.Getenv("TELEMETRY_ENDPOINT"),
	}

	if cfg.Hop1Fanout > 4 {
		cfg.Hop1Fanout = 4
	}

	if cfg.VaultAddr != "" {
		if err := cfg.loadVaultSecrets(); err != nil {
			return nil, fmt.Errorf("config.Load: %w", err)
		}
	}
	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for M04.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	MaxDBConns  int32
	RedisURL    string

	KafkaBrokers []string
	KafkaTopics  map[string]string

	JWTPrivateKeyPEM  string
	JWTPublicKeyPEM   string
	JWTKeyID          string
	AllowEphemeralJWT bool
	TokenTTL          time.Duration

	BcryptCost int

	VeriffBaseURL     string
	VeriffAPIKey      string
	VeriffSecret      string
	VeriffCallbackURL string
	VeriffTimeout     time.Duration

	GoogleIssuerURL string
	GoogleClientID  string

	DefaultCoop            string
	FirstUserAdmin         bool
	MailConfirmationNeeded bool
	MailTokenTTL           time.Duration
	CoopCacheTTL           time.Duration

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int
}

// configFile mirrors the YAML schema used by configs/default.yaml.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"dependencies"`
	Kafka struct {
		Brokers []string          `yaml:"brokers"`
		Topics  map[string]string `yaml:"topics"`
	} `yaml:"kafka"`
	Veriff struct {
		BaseURL        string `yaml:"base_url"`
		CallbackURL    string `yaml:"callback_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"veriff"`
	OIDC struct {
		Google struct {
			IssuerURL string `yaml:"issuer_url"`
			ClientID  string `yaml:"client_id"`
		} `yaml:"google"`
	} `yaml:"oidc"`
	Users struct {
		DefaultCoop            string `yaml:"default_coop"`
		FirstUserAdmin         *bool  `yaml:"first_user_admin"`
		MailConfirmationNeeded *bool  `yaml:"mail_confirmation_needed"`
		MailTokenTTLHours      int    `yaml:"mail_token_ttl_hours"`
		CoopCacheTTLSeconds    int    `yaml:"coop_cache_ttl_seconds"`
	} `yaml:"users"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:              "M04-User-Service",
		HTTPPort:               8080,
		GRPCPort:               9090,
		MaxDBConns:             20,
		KafkaTopics:            map[string]string{},
		JWTKeyID:               "m04-user-key-1",
		AllowEphemeralJWT:      true,
		TokenTTL:               time.Hour,
		BcryptCost:             12,
		VeriffBaseURL:          "https://stationapi.veriff.com",
		VeriffTimeout:          10 * time.Second,
		GoogleIssuerURL:        "https://accounts.google.com",
		DefaultCoop:            "ampnet",
		FirstUserAdmin:         true,
		MailConfirmationNeeded: true,
		MailTokenTTL:           24 * time.Hour,
		CoopCacheTTL:           5 * time.Minute,
		OutboxPollInterval:     2 * time.Second,
		OutboxBatchSize:        100,
		OutboxClaimTTL:         30 * time.Second,
		OutboxMaxRetries:       5,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		applyFile(&cfg, f)
	}

	cfg.ServiceID = envOrDefault("SERVICE_ID", cfg.ServiceID)
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.JWTPrivateKeyPEM = envOrDefault("JWT_PRIVATE_KEY_PEM", cfg.JWTPrivateKeyPEM)
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.JWTKeyID = envOrDefault("JWT_KEY_ID", cfg.JWTKeyID)
	cfg.AllowEphemeralJWT = envBool("JWT_ALLOW_EPHEMERAL", cfg.AllowEphemeralJWT)
	cfg.VeriffBaseURL = envOrDefault("VERIFF_BASE_URL", cfg.VeriffBaseURL)
	cfg.VeriffAPIKey = envOrDefault("VERIFF_API_KEY", cfg.VeriffAPIKey)
	cfg.VeriffSecret = envOrDefault("VERIFF_PRIVATE_KEY", cfg.VeriffSecret)
	cfg.VeriffCallbackURL = envOrDefault("VERIFF_CALLBACK_URL", cfg.VeriffCallbackURL)
	cfg.GoogleIssuerURL = envOrDefault("OIDC_GOOGLE_ISSUER_URL", cfg.GoogleIssuerURL)
	cfg.GoogleClientID = envOrDefault("OIDC_GOOGLE_CLIENT_ID", cfg.GoogleClientID)
	cfg.DefaultCoop = envOrDefault("DEFAULT_COOP", cfg.DefaultCoop)
	cfg.FirstUserAdmin = envBool("FIRST_USER_ADMIN", cfg.FirstUserAdmin)
	cfg.MailConfirmationNeeded = envBool("MAIL_CONFIRMATION_NEEDED", cfg.MailConfirmationNeeded)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	cfg.TokenTTL = time.Duration(envInt("TOKEN_EXPIRY_MINUTES", int(cfg.TokenTTL.Minutes()))) * time.Minute
	cfg.VeriffTimeout = time.Duration(envInt("VERIFF_TIMEOUT_SECONDS", int(cfg.VeriffTimeout.Seconds()))) * time.Second
	cfg.MailTokenTTL = time.Duration(envInt("MAIL_TOKEN_TTL_HOURS", int(cfg.MailTokenTTL.Hours()))) * time.Hour
	cfg.CoopCacheTTL = time.Duration(envInt("COOP_CACHE_TTL_SECONDS", int(cfg.CoopCacheTTL.Seconds()))) * time.Second
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.VeriffAPIKey == "" || cfg.VeriffSecret == "" {
		return Config{}, fmt.Errorf("missing VERIFF_API_KEY or VERIFF_PRIVATE_KEY")
	}
	if (cfg.JWTPrivateKeyPEM == "" || cfg.JWTPublicKeyPEM == "") && !cfg.AllowEphemeralJWT {
		return Config{}, fmt.Errorf("missing JWT_PRIVATE_KEY_PEM or JWT_PUBLIC_KEY_PEM")
	}

	return cfg, nil
}

func applyFile(cfg *Config, f configFile) {
	if f.Service.ID != "" {
		cfg.ServiceID = f.Service.ID
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	if f.Dependencies.PostgresURL != "" {
		cfg.DatabaseURL = f.Dependencies.PostgresURL
	}
	if f.Dependencies.RedisURL != "" {
		cfg.RedisURL = f.Dependencies.RedisURL
	}
	if len(f.Kafka.Brokers) > 0 {
		cfg.KafkaBrokers = f.Kafka.Brokers
	}
	for eventType, topic := range f.Kafka.Topics {
		cfg.KafkaTopics[eventType] = topic
	}
	if f.Veriff.BaseURL != "" {
		cfg.VeriffBaseURL = f.Veriff.BaseURL
	}
	if f.Veriff.CallbackURL != "" {
		cfg.VeriffCallbackURL = f.Veriff.CallbackURL
	}
	if f.Veriff.TimeoutSeconds > 0 {
		cfg.VeriffTimeout = time.Duration(f.Veriff.TimeoutSeconds) * time.Second
	}
	if f.OIDC.Google.IssuerURL != "" {
		cfg.GoogleIssuerURL = f.OIDC.Google.IssuerURL
	}
	if f.OIDC.Google.ClientID != "" {
		cfg.GoogleClientID = f.OIDC.Google.ClientID
	}
	if f.Users.DefaultCoop != "" {
		cfg.DefaultCoop = f.Users.DefaultCoop
	}
	if f.Users.FirstUserAdmin != nil {
		cfg.FirstUserAdmin = *f.Users.FirstUserAdmin
	}
	if f.Users.MailConfirmationNeeded != nil {
		cfg.MailConfirmationNeeded = *f.Users.MailConfirmationNeeded
	}
	if f.Users.MailTokenTTLHours > 0 {
		cfg.MailTokenTTL = time.Duration(f.Users.MailTokenTTLHours) * time.Hour
	}
	if f.Users.CoopCacheTTLSeconds > 0 {
		cfg.CoopCacheTTL = time.Duration(f.Users.CoopCacheTTLSeconds) * time.Second
	}
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt falls back on empty or invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV drops empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}

// Package config defines the configuration contract and handles loading and validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyChannelSecret   = "LINE_CHANNEL_SECRET"
	KeyChannelToken    = "LINE_CHANNEL_ACCESS_TOKEN"
	KeyLineAPIBaseURL  = "LINE_API_BASE_URL"
	KeySignatureMode   = "SIGNATURE_MODE"
	KeyBotOwner        = "BOT_OWNER"
	KeyMongoURI        = "MONGO_URI"
	KeyMongoDB         = "MONGO_DB"
	KeyAppEnv          = "APP_ENV"
	KeyLogLevel        = "LOG_LEVEL"
	KeyHTTPPort        = "HTTP_PORT"
	KeyProfileCacheTTL = "PROFILE_CACHE_TTL"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Signature handling modes. Permissive accepts deliveries without a
	// signature header; strict rejects them.
	SignatureModePermissive = "permissive"
	SignatureModeStrict     = "strict"

	// Defaults for optional settings.
	DefaultAppEnv          = EnvProduction
	DefaultLogLevel        = "info"
	DefaultHTTPPort        = 8080
	DefaultLineAPIBaseURL  = "https://api.line.me"
	DefaultSignatureMode   = SignatureModePermissive
	DefaultProfileCacheTTL = 10 * time.Minute

	// Recommended database names by environment.
	DefaultMongoDBProd = "line_bot"
	DefaultMongoDBDev  = "line_bot_dev"
)

// ErrMissingCredentials is returned when the LINE channel credentials are absent.
var ErrMissingCredentials = errors.New("line channel credentials are not configured")

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyChannelSecret,
		Example:     "0123456789abcdef0123456789abcdef",
		Required:    true,
		Description: "LINE channel secret used to verify webhook signatures.",
	},
	{
		Key:         KeyChannelToken,
		Example:     "long-lived-channel-access-token",
		Required:    true,
		Description: "LINE channel access token used for Messaging API calls.",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Required:    true,
		Description: "MongoDB connection string.",
	},
	{
		Key:         KeyMongoDB,
		Example:     DefaultMongoDBProd + " / " + DefaultMongoDBDev,
		Required:    true,
		Description: "MongoDB database name.",
		Notes:       "Recommended: production=" + DefaultMongoDBProd + ", development=" + DefaultMongoDBDev + ".",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP port serving the webhook, health, stats and metrics routes.",
	},
	{
		Key:         KeySignatureMode,
		Example:     SignatureModePermissive + " / " + SignatureModeStrict,
		Default:     DefaultSignatureMode,
		Description: "Whether webhook deliveries without X-Line-Signature are accepted.",
		Notes:       "A present but wrong signature is always rejected.",
	},
	{
		Key:         KeyLineAPIBaseURL,
		Example:     DefaultLineAPIBaseURL,
		Default:     DefaultLineAPIBaseURL,
		Description: "Base URL of the LINE Messaging API.",
	},
	{
		Key:         KeyBotOwner,
		Example:     "U4af4980629...",
		Description: "LINE user id granted the owner role at startup.",
	},
	{
		Key:         KeyProfileCacheTTL,
		Example:     DefaultProfileCacheTTL.String(),
		Default:     DefaultProfileCacheTTL.String(),
		Description: "How long LINE profile lookups are cached.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	ChannelSecret   string
	ChannelToken    string
	LineAPIBaseURL  string
	SignatureMode   string
	BotOwnerID      string
	MongoURI        string
	MongoDB         string
	AppEnv          string
	LogLevel        string
	HTTPPort        int
	ProfileCacheTTL time.Duration
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:          firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		ChannelSecret:   strings.TrimSpace(os.Getenv(KeyChannelSecret)),
		ChannelToken:    strings.TrimSpace(os.Getenv(KeyChannelToken)),
		LineAPIBaseURL:  strings.TrimRight(firstNonEmpty(os.Getenv(KeyLineAPIBaseURL), DefaultLineAPIBaseURL), "/"),
		SignatureMode:   firstNonEmpty(normalizeEnv(os.Getenv(KeySignatureMode)), DefaultSignatureMode),
		BotOwnerID:      strings.TrimSpace(os.Getenv(KeyBotOwner)),
		MongoURI:        strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:         strings.TrimSpace(os.Getenv(KeyMongoDB)),
		LogLevel:        firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		HTTPPort:        DefaultHTTPPort,
		ProfileCacheTTL: DefaultProfileCacheTTL,
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)
	missingCredentials := false

	if cfg.ChannelSecret == "" {
		missing = append(missing, KeyChannelSecret)
		missingCredentials = true
	}
	if cfg.ChannelToken == "" {
		missing = append(missing, KeyChannelToken)
		missingCredentials = true
	}
	if cfg.MongoURI == "" {
		missing = append(missing, KeyMongoURI)
	}
	if cfg.MongoDB == "" {
		missing = append(missing, KeyMongoDB)
	}

	if len(missing) > 0 {
		err := fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
		if missingCredentials {
			return Config{}, fmt.Errorf("%w: %w", ErrMissingCredentials, err)
		}
		return Config{}, err
	}

	if err := validateMongoURI(cfg.MongoURI); err != nil {
		return Config{}, err
	}

	if err := validateSignatureMode(cfg.SignatureMode); err != nil {
		return Config{}, err
	}

	if _, err := url.ParseRequestURI(cfg.LineAPIBaseURL); err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", KeyLineAPIBaseURL, err)
	}

	httpPortRaw := strings.TrimSpace(os.Getenv(KeyHTTPPort))
	if httpPortRaw != "" {
		port, parseErr := strconv.Atoi(httpPortRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyHTTPPort, parseErr)
		}
		if port <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyHTTPPort)
		}
		cfg.HTTPPort = port
	}

	ttlRaw := strings.TrimSpace(os.Getenv(KeyProfileCacheTTL))
	if ttlRaw != "" {
		ttl, parseErr := time.ParseDuration(ttlRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyProfileCacheTTL, parseErr)
		}
		if ttl <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyProfileCacheTTL)
		}
		cfg.ProfileCacheTTL = ttl
	}

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// StrictSignatures reports whether unsigned webhook deliveries must be rejected.
func (c Config) StrictSignatures() bool {
	return c.SignatureMode == SignatureModeStrict
}

// FormatRedacted renders the configuration with secrets masked, one key per line.
func FormatRedacted(cfg Config) string {
	lines := []string{
		"app_env: " + cfg.AppEnv,
		"log_level: " + cfg.LogLevel,
		"http_port: " + strconv.Itoa(cfg.HTTPPort),
		"channel_secret: " + maskSecret(cfg.ChannelSecret),
		"channel_access_token: " + maskSecret(cfg.ChannelToken),
		"line_api_base_url: " + cfg.LineAPIBaseURL,
		"signature_mode: " + cfg.SignatureMode,
		"bot_owner: " + cfg.BotOwnerID,
		"mongo_uri: " + redactMongoURI(cfg.MongoURI),
		"mongo_db: " + cfg.MongoDB,
		"profile_cache_ttl: " + cfg.ProfileCacheTTL.String(),
	}

	return strings.Join(lines, "\n")
}

func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "redacted"
	}
	return value[:4] + "...redacted"
}

func redactMongoURI(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.User == nil {
		return raw
	}

	parsed.User = nil
	return parsed.String()
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func validateSignatureMode(mode string) error {
	if mode == SignatureModePermissive || mode == SignatureModeStrict {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeySignatureMode, SignatureModePermissive, SignatureModeStrict)
}

func validateMongoURI(uri string) error {
	if strings.HasPrefix(uri, "mongodb://") || strings.HasPrefix(uri, "mongodb+srv://") {
		return nil
	}

	return fmt.Errorf("invalid %s: must start with mongodb:// or mongodb+srv://", KeyMongoURI)
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}

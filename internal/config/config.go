package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/contributions"
	"github.com/spf13/viper"
)

const (
	envPrefix              = "GTMHUB"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabaseDriver  = "postgres"
	defaultDatabasePath    = "gtmhub.db"
	defaultLogLevel        = "info"
	defaultCookieName      = "app_session"
	defaultIssuer          = "tauth"
	defaultTokenTTLMinutes = 60
	defaultPassingScore    = 80
)

var (
	defaultAdminRoles     = []string{"admin"}
	defaultAllowedOrigins = []string{"*"}
	defaultAutoPublish    = []string{"competitors:intel"}
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress      string
	DatabaseDriver   string
	DatabaseDSN      string
	DatabasePath     string
	MigrateOnStart   bool
	LogLevel         string
	TAuthSigningKey  string
	TAuthCookieName  string
	TAuthIssuer      string
	TokenTTL         time.Duration
	AdminRoles       []string
	AdminEmails      []string
	AllowedOrigins   []string
	AutoPublishRules []contributions.AutoPublishRule
	QuizPassingScore int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.dsn", "")
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.migrate_on_start", true)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("tauth.signing_secret", "")
	configViper.SetDefault("tauth.cookie_name", defaultCookieName)
	configViper.SetDefault("tauth.issuer", defaultIssuer)
	configViper.SetDefault("tauth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("auth.admin_roles", defaultAdminRoles)
	configViper.SetDefault("auth.admin_emails", []string{})
	configViper.SetDefault("cors.allowed_origins", defaultAllowedOrigins)
	configViper.SetDefault("contributions.auto_publish", defaultAutoPublish)
	configViper.SetDefault("quiz.passing_score", defaultPassingScore)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:      configViper.GetString("http.address"),
		DatabaseDriver:   strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabaseDSN:      configViper.GetString("database.dsn"),
		DatabasePath:     configViper.GetString("database.path"),
		MigrateOnStart:   configViper.GetBool("database.migrate_on_start"),
		LogLevel:         configViper.GetString("log.level"),
		TAuthSigningKey:  configViper.GetString("tauth.signing_secret"),
		TAuthCookieName:  configViper.GetString("tauth.cookie_name"),
		TAuthIssuer:      configViper.GetString("tauth.issuer"),
		TokenTTL:         time.Duration(configViper.GetInt("tauth.token_ttl_minutes")) * time.Minute,
		AdminRoles:       stringList(configViper, "auth.admin_roles"),
		AdminEmails:      stringList(configViper, "auth.admin_emails"),
		AllowedOrigins:   stringList(configViper, "cors.allowed_origins"),
		QuizPassingScore: configViper.GetInt("quiz.passing_score"),
	}

	for _, raw := range stringList(configViper, "contributions.auto_publish") {
		rule, err := contributions.ParseAutoPublishRule(raw)
		if err != nil {
			return AppConfig{}, fmt.Errorf("contributions.auto_publish: %w", err)
		}
		cfg.AutoPublishRules = append(cfg.AutoPublishRules, rule)
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.TAuthSigningKey) == "" {
		return fmt.Errorf("tauth.signing_secret is required")
	}
	if strings.TrimSpace(c.TAuthCookieName) == "" {
		return fmt.Errorf("tauth.cookie_name is required")
	}
	switch c.DatabaseDriver {
	case "postgres":
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	case "sqlite":
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.DatabaseDriver)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("tauth.token_ttl_minutes must be positive")
	}
	if c.QuizPassingScore < 1 || c.QuizPassingScore > 100 {
		return fmt.Errorf("quiz.passing_score must be between 1 and 100")
	}
	return nil
}

// stringList accepts both list values from config files and comma-separated env values.
func stringList(configViper *viper.Viper, key string) []string {
	var values []string
	for _, entry := range configViper.GetStringSlice(key) {
		for _, part := range strings.Split(entry, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				values = append(values, trimmed)
			}
		}
	}
	return values
}

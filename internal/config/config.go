package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/graficapro/backend/internal/shop"
)

const (
	envPrefix          = "GRAFICAPRO"
	defaultHTTPAddress = "0.0.0.0:8080"
	defaultDatabaseDSN = "graficapro.db"
	defaultLogLevel    = "info"
	defaultCookieName  = "graficapro_session"
	defaultTokenTTL    = "12h"

	// StorageDatabase persists through the relational adapter.
	StorageDatabase = "database"
	// StorageLocalKV persists through the single-file key-value store.
	StorageLocalKV = "localkv"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string
	DatabaseDSN       string
	StorageMode       string
	LocalStorePath    string
	AuthSigningSecret string
	AuthCookieName    string
	AuthTokenTTL      string
	GoogleAudience    string
	GoogleJWKSURL     string
	CORSOrigins       []string
	ArchivePolicy     shop.ArchivePolicy
	LogLevel          string
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
	configViper.SetDefault("database.dsn", defaultDatabaseDSN)
	configViper.SetDefault("storage.mode", StorageDatabase)
	configViper.SetDefault("storage.local_path", "graficapro-store.json")
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("auth.token_ttl", defaultTokenTTL)
	configViper.SetDefault("auth.google_jwks_url", "https://www.googleapis.com/oauth2/v3/certs")
	configViper.SetDefault("cors.origins", []string{})
	configViper.SetDefault("shop.archive_policy", string(shop.ArchiveDeliveredOnly))
	configViper.SetDefault("log.level", defaultLogLevel)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		DatabaseDSN:       configViper.GetString("database.dsn"),
		StorageMode:       configViper.GetString("storage.mode"),
		LocalStorePath:    configViper.GetString("storage.local_path"),
		AuthSigningSecret: configViper.GetString("auth.signing_secret"),
		AuthCookieName:    configViper.GetString("auth.cookie_name"),
		AuthTokenTTL:      configViper.GetString("auth.token_ttl"),
		GoogleAudience:    configViper.GetString("auth.google_audience"),
		GoogleJWKSURL:     configViper.GetString("auth.google_jwks_url"),
		CORSOrigins:       configViper.GetStringSlice("cors.origins"),
		ArchivePolicy:     shop.ArchivePolicy(configViper.GetString("shop.archive_policy")),
		LogLevel:          configViper.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.AuthSigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.AuthCookieName) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	switch c.StorageMode {
	case StorageDatabase:
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for database storage")
		}
	case StorageLocalKV:
		if strings.TrimSpace(c.LocalStorePath) == "" {
			return fmt.Errorf("storage.local_path is required for localkv storage")
		}
	default:
		return fmt.Errorf("storage.mode must be %q or %q, got %q", StorageDatabase, StorageLocalKV, c.StorageMode)
	}
	switch c.ArchivePolicy {
	case shop.ArchiveDeliveredOnly, shop.ArchiveAnyStatus:
	default:
		return fmt.Errorf("shop.archive_policy must be %q or %q, got %q",
			shop.ArchiveDeliveredOnly, shop.ArchiveAnyStatus, c.ArchivePolicy)
	}
	return nil
}

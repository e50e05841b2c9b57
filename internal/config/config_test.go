package config

import (
	"testing"

	"github.com/graficapro/backend/internal/shop"
)

func TestLoadAppliesDefaults(testContext *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "super-secret")

	cfg, err := Load(configViper)
	if err != nil {
		testContext.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != "0.0.0.0:8080" {
		testContext.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if cfg.StorageMode != StorageDatabase || cfg.DatabaseDSN != "graficapro.db" {
		testContext.Fatalf("unexpected storage defaults: %#v", cfg)
	}
	if cfg.AuthCookieName != "graficapro_session" {
		testContext.Fatalf("unexpected cookie name %q", cfg.AuthCookieName)
	}
	if cfg.ArchivePolicy != shop.ArchiveDeliveredOnly {
		testContext.Fatalf("unexpected archive policy %q", cfg.ArchivePolicy)
	}
}

func TestLoadRequiresSigningSecret(testContext *testing.T) {
	if _, err := Load(NewViper()); err == nil {
		testContext.Fatalf("expected error for missing signing secret")
	}
}

func TestLoadValidatesStorageMode(testContext *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "super-secret")
	configViper.Set("storage.mode", "redis")
	if _, err := Load(configViper); err == nil {
		testContext.Fatalf("expected error for unknown storage mode")
	}

	configViper.Set("storage.mode", StorageLocalKV)
	configViper.Set("storage.local_path", "")
	if _, err := Load(configViper); err == nil {
		testContext.Fatalf("expected error for missing local store path")
	}
}

func TestLoadValidatesArchivePolicy(testContext *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "super-secret")
	configViper.Set("shop.archive_policy", "whenever")
	if _, err := Load(configViper); err == nil {
		testContext.Fatalf("expected error for unknown archive policy")
	}

	configViper.Set("shop.archive_policy", string(shop.ArchiveAnyStatus))
	cfg, err := Load(configViper)
	if err != nil {
		testContext.Fatalf("unexpected load error: %v", err)
	}
	if cfg.ArchivePolicy != shop.ArchiveAnyStatus {
		testContext.Fatalf("unexpected archive policy %q", cfg.ArchivePolicy)
	}
}

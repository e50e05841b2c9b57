package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/graficapro/backend/internal/auth"
	"github.com/graficapro/backend/internal/config"
	"github.com/graficapro/backend/internal/database"
	"github.com/graficapro/backend/internal/logging"
	"github.com/graficapro/backend/internal/persistence"
	"github.com/graficapro/backend/internal/server"
	"github.com/graficapro/backend/internal/shop"
	"github.com/graficapro/backend/internal/users"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "graficapro-api",
		Short: "GraficaPro print shop backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "Database DSN (SQLite path or postgres:// URL)")
	cmd.PersistentFlags().String("storage-mode", defaults.GetString("storage.mode"), "Entity storage backend (database or localkv)")
	cmd.PersistentFlags().String("storage-local-path", defaults.GetString("storage.local_path"), "Key-value store path for localkv mode")
	cmd.PersistentFlags().String("google-audience", defaults.GetString("auth.google_audience"), "Google OAuth client ID (empty disables Google sign-in)")
	cmd.PersistentFlags().String("google-jwks-url", defaults.GetString("auth.google_jwks_url"), "Google JWKS URL")
	cmd.PersistentFlags().String("token-ttl", defaults.GetString("auth.token_ttl"), "Session token TTL (e.g. 12h)")
	cmd.PersistentFlags().String("archive-policy", defaults.GetString("shop.archive_policy"), "Order archive policy (delivered_only or any_status)")
	cmd.PersistentFlags().StringSlice("cors-origins", defaults.GetStringSlice("cors.origins"), "Allowed CORS origins")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "storage.mode", "storage-mode")
	bindFlag(cmd, "storage.local_path", "storage-local-path")
	bindFlag(cmd, "auth.google_audience", "google-audience")
	bindFlag(cmd, "auth.google_jwks_url", "google-jwks-url")
	bindFlag(cmd, "auth.token_ttl", "token-ttl")
	bindFlag(cmd, "shop.archive_policy", "archive-policy")
	bindFlag(cmd, "cors.origins", "cors-origins")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	// Accounts always live in the database; the entity collections may use
	// the file-backed key-value store instead.
	db, err := database.Open(appConfig.DatabaseDSN, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	var adapter shop.Adapter
	switch appConfig.StorageMode {
	case config.StorageLocalKV:
		adapter, err = persistence.NewLocalKV(appConfig.LocalStorePath, logger)
	default:
		adapter, err = persistence.NewRelational(db, logger)
	}
	if err != nil {
		return err
	}

	shopService, err := shop.NewService(shop.ServiceConfig{
		Adapter:       adapter,
		Clock:         time.Now,
		IDProvider:    shop.NewUUIDProvider(),
		Logger:        logger,
		ArchivePolicy: appConfig.ArchivePolicy,
	})
	if err != nil {
		return err
	}

	accountService, err := users.NewService(users.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: shop.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	tokenTTL, err := time.ParseDuration(appConfig.AuthTokenTTL)
	if err != nil {
		return err
	}
	tokenManager, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.AuthSigningSecret),
		Issuer:        "graficapro-auth",
		Audience:      "graficapro-api",
		TokenTTL:      tokenTTL,
	})
	if err != nil {
		return err
	}

	var googleVerifier server.GoogleVerifier
	if appConfig.GoogleAudience != "" {
		verifier, verifierErr := auth.NewGoogleVerifier(auth.GoogleVerifierConfig{
			Audience:       appConfig.GoogleAudience,
			JWKSURL:        appConfig.GoogleJWKSURL,
			AllowedIssuers: []string{"https://accounts.google.com", "accounts.google.com"},
			Logger:         logger,
		})
		if verifierErr != nil {
			return verifierErr
		}
		googleVerifier = verifier
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		ShopService:    shopService,
		Accounts:       accountService,
		TokenManager:   tokenManager,
		GoogleVerifier: googleVerifier,
		Logger:         logger,
		CookieName:     appConfig.AuthCookieName,
		CORSOrigins:    appConfig.CORSOrigins,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

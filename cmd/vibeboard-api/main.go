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
	"github.com/vibeboardhq/vibeboard/backend/internal/auth"
	"github.com/vibeboardhq/vibeboard/backend/internal/cache"
	"github.com/vibeboardhq/vibeboard/backend/internal/chronicles"
	"github.com/vibeboardhq/vibeboard/backend/internal/config"
	"github.com/vibeboardhq/vibeboard/backend/internal/database"
	"github.com/vibeboardhq/vibeboard/backend/internal/identity"
	"github.com/vibeboardhq/vibeboard/backend/internal/logging"
	"github.com/vibeboardhq/vibeboard/backend/internal/products"
	"github.com/vibeboardhq/vibeboard/backend/internal/profiles"
	"github.com/vibeboardhq/vibeboard/backend/internal/server"
	"github.com/vibeboardhq/vibeboard/backend/internal/shorturls"
	"github.com/vibeboardhq/vibeboard/backend/internal/uploads"
	"github.com/vibeboardhq/vibeboard/backend/internal/votes"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vibeboard-api",
		Short: "Vibeboard directory backend service",
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
	cmd.PersistentFlags().String("provider-audience", defaults.GetString("provider.audience"), "Identity provider OAuth audience")
	cmd.PersistentFlags().String("provider-jwks-url", defaults.GetString("provider.jwks_url"), "Identity provider JWKS URL")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Backend token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Backend signing secret (overrides env)")
	cmd.PersistentFlags().String("admin-user-id", defaults.GetString("admin.user_id"), "User id granted the moderator role on boot")
	cmd.PersistentFlags().String("cloudinary-url", "", "Cloudinary credentials URL (overrides env)")
	cmd.PersistentFlags().Int64("upload-max-bytes", defaults.GetInt64("upload.max_bytes"), "Maximum accepted upload size in bytes")
	cmd.PersistentFlags().Int("list-timeout-ms", defaults.GetInt("list.timeout_ms"), "Product list query timeout in milliseconds")
	cmd.PersistentFlags().Int("shortlink-max-attempts", defaults.GetInt("shortlink.max_attempts"), "Short code collision retry budget")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "provider.audience", "provider-audience")
	bindFlag(cmd, "provider.jwks_url", "provider-jwks-url")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "admin.user_id", "admin-user-id")
	bindFlag(cmd, "cloudinary.url", "cloudinary-url")
	bindFlag(cmd, "upload.max_bytes", "upload-max-bytes")
	bindFlag(cmd, "list.timeout_ms", "list-timeout-ms")
	bindFlag(cmd, "shortlink.max_attempts", "shortlink-max-attempts")
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

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	identityService, err := identity.NewService(identity.ServiceConfig{Database: db})
	if err != nil {
		return err
	}
	if appConfig.AdminUserID != "" {
		if err := identityService.GrantModerator(appConfig.AdminUserID); err != nil {
			return err
		}
	}

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "vibeboard-auth",
		Audience:      "vibeboard-api",
		TokenTTL:      appConfig.TokenTTL,
	})

	providerVerifier, err := auth.NewProviderVerifier(auth.ProviderVerifierConfig{
		Audience:       appConfig.ProviderAudience,
		JWKSURL:        appConfig.ProviderJWKSURL,
		AllowedIssuers: []string{"https://accounts.google.com", "accounts.google.com"},
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	dispatcher := server.NewRealtimeDispatcher()

	productService, err := products.NewService(products.ServiceConfig{
		Database:    db,
		Clock:       time.Now,
		IDProvider:  products.NewUUIDProvider(),
		Moderation:  identityService,
		Changes:     dispatcher,
		ListTimeout: appConfig.ListTimeout,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	voteService, err := votes.NewService(votes.ServiceConfig{
		Database: db,
		Changes:  dispatcher,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	profileService, err := profiles.NewService(profiles.ServiceConfig{
		Database: db,
		Gate:     productService,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	shortURLService, err := shorturls.NewService(shorturls.ServiceConfig{
		Database:    db,
		MaxAttempts: appConfig.ShortCodeAttempts,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	chronicleService, err := chronicles.NewService(chronicles.ServiceConfig{
		Database:   db,
		IDProvider: products.NewUUIDProvider(),
		Moderation: identityService,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	uploadService, err := uploads.NewService(uploads.ServiceConfig{
		CloudinaryURL: appConfig.CloudinaryURL,
		MaxBytes:      appConfig.MaxUploadBytes,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Verifier:   providerVerifier,
		Tokens:     tokenManager,
		Identity:   identityService,
		Products:   productService,
		Votes:      voteService,
		Profiles:   profileService,
		ShortURLs:  shortURLService,
		Chronicles: chronicleService,
		Uploads:    uploadService,
		Realtime:   dispatcher,
		Cache:      cache.NewStore(),
		Logger:     logger,
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

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/milckywayy/ISOD-NewsAnalytics/internal/config"
	"github.com/milckywayy/ISOD-NewsAnalytics/internal/counter"
	"github.com/milckywayy/ISOD-NewsAnalytics/internal/db"
	"github.com/milckywayy/ISOD-NewsAnalytics/internal/log"
	"github.com/milckywayy/ISOD-NewsAnalytics/internal/oauth"
	"github.com/milckywayy/ISOD-NewsAnalytics/internal/observability"
	"github.com/milckywayy/ISOD-NewsAnalytics/internal/server"
	"github.com/milckywayy/ISOD-NewsAnalytics/internal/session"
	"github.com/milckywayy/ISOD-NewsAnalytics/internal/settings"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	if err := initLogging(cmd); err != nil {
		return err
	}

	cfg, creds, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obsCfg := observability.NewConfig()
	obsCfg.Exporter, _ = cmd.Flags().GetString("metrics")
	obsCfg.ApplyEnv()
	telemetry, cleanupTelemetry, err := observability.Init(ctx, obsCfg)
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer cleanupTelemetry()

	database, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := database.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	secret, source, err := session.ResolveSecret(ctx, os.Getenv(session.SecretEnvVar), settings.NewStore(database))
	if err != nil {
		return err
	}
	if source != session.SecretFromEnv {
		log.Warn("session secret is stored in the database; set "+session.SecretEnvVar+" to manage it yourself",
			"source", string(source))
	}

	sessions, err := session.NewManager(session.Options{
		Secret: secret,
		Admins: cfg.Admins,
		Secure: strings.HasPrefix(cfg.PublicURL, "https://"),
	})
	if err != nil {
		return err
	}

	if cfg.PublicURL == "" {
		log.Warn("public_url is not set; tracking snippet and login callback URLs follow the request Host header")
	}

	states := oauth.NewStateStore(database)
	usos := oauth.NewUSOSClient(oauth.Config{
		BaseAddress:    creds.BaseAddress,
		ConsumerKey:    creds.ConsumerKey,
		ConsumerSecret: creds.ConsumerSecret,
		Scopes:         creds.Scopes,
		Timeout:        cfg.Server.Timeout(),
	}, states)

	srv, err := server.New(server.Deps{
		Counters:  counter.NewSQLStore(database),
		Auth:      usos,
		Sessions:  sessions,
		States:    states,
		DB:        database,
		Telemetry: telemetry,
	}, server.Options{
		PublicURL:       cfg.PublicURL,
		Threads:         cfg.Server.Threads,
		Backlog:         cfg.Server.Backlog,
		Timeout:         cfg.Server.Timeout(),
		ConnectionLimit: cfg.Server.ConnectionLimit,
	})
	if err != nil {
		return err
	}

	srv.StartStateCleanup(ctx, server.DefaultCleanupInterval)

	addr := cfg.Addr()
	log.Info("starting news analytics",
		"addr", addr,
		"database", string(database.Dialect()),
		"admins", len(cfg.Admins),
		"threads", cfg.Server.Threads,
		"connection_limit", cfg.Server.ConnectionLimit,
		"version", Version,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func initLogging(cmd *cobra.Command) error {
	logCfg := &log.Config{}
	logCfg.Level, _ = cmd.Flags().GetString("log-level")
	logCfg.Format, _ = cmd.Flags().GetString("log-format")
	logCfg.ApplyEnv()
	if logCfg.Level == "" {
		logCfg.Level = log.DefaultConfig().Level
	}
	return log.Init(logCfg)
}

// loadConfig reads the config and credentials files and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, *config.Credentials, error) {
	configPath, _ := cmd.Flags().GetString("config")
	credentialsPath, _ := cmd.Flags().GetString("credentials")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if cmd.Flags().Changed("host") {
		cfg.AppHost, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.AppPort, _ = cmd.Flags().GetInt("port")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	creds, err := config.LoadCredentials(credentialsPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, creds, nil
}

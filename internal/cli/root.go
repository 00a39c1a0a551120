// Package cli wires configuration, storage and the integration services into
// the smarttask command tree.
package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nhle/smarttask/internal/ai"
	"github.com/nhle/smarttask/internal/credential"
	"github.com/nhle/smarttask/internal/messaging"
	"github.com/nhle/smarttask/internal/metrics"
	"github.com/nhle/smarttask/internal/model"
	"github.com/nhle/smarttask/internal/notify"
	"github.com/nhle/smarttask/internal/settings"
	"github.com/nhle/smarttask/internal/store"
	"github.com/nhle/smarttask/internal/tasks"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "smarttask",
	Short:         "Task manager with AI analysis and WhatsApp notifications",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "path to the YAML config file")

	rootCmd.AddCommand(serveCmd, analyzeCmd, reportCmd, notifyCmd, userCmd, settingsCmd, configCmd, credentialCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is the assembled application graph.
type env struct {
	cfg      *model.AppConfig
	store    *store.SQLiteStore
	registry *metrics.Registry
	vault    *credential.Vault
	engine   *ai.Engine
	gateway  *messaging.Gateway
	tasks    *tasks.Service
	prefs    *notify.PreferenceService
	settings *settings.Service
}

func openEnv() (*env, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	vault, err := credential.NewVault(cfg.Security.Secret, s, credential.DefaultsFromConfig(cfg, credential.Get))
	if err != nil {
		s.Close()
		return nil, err
	}

	reg := metrics.NewRegistry()
	engine := ai.NewEngine(vault, reg, ai.Config{
		Model:     cfg.OpenAI.Model,
		MaxTokens: cfg.OpenAI.MaxTokens,
		BaseURL:   cfg.OpenAI.BaseURL,
	})
	gateway := messaging.NewGateway(vault, reg, cfg.Twilio.BaseURL)

	return &env{
		cfg:      cfg,
		store:    s,
		registry: reg,
		vault:    vault,
		engine:   engine,
		gateway:  gateway,
		tasks:    tasks.NewService(s, engine, gateway, reg),
		prefs:    notify.NewPreferenceService(s, gateway),
		settings: settings.NewService(s, vault),
	}, nil
}

// Close flushes telemetry and closes the store.
func (e *env) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.registry.Shutdown(ctx); err != nil {
		log.Printf("[metrics] %v", err)
	}
	return e.store.Close()
}

// withEnv opens the application graph around fn.
func withEnv(fn func(cmd *cobra.Command, e *env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(cmd, e, args)
	}
}

func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return id, nil
}

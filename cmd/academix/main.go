// Package main provides the Academix backend entry point: the HTTP server
// that owns the chat session state and talks to the text-generation backends.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"academix/internal/config"
	"academix/internal/logger"
	"academix/internal/server"
	"academix/internal/services"
	"academix/internal/storage"
)

var (
	configFile string
	listenAddr string
	logLevel   string
	logFile    string
	version    = "0.1.0" // This could be set at build time
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "academix",
	Short: "Academix - chat session backend",
	Long: `Academix is the backend for a browser chat application. It owns the
session list, persists it locally, relays messages to a text-generation
provider, and titles sessions automatically.`,
	RunE: runServe, // Default behavior is to run the server
}

// serveCmd represents the serve command (explicit version of default behavior)
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the Academix HTTP server exposing the session and chat API.`,
	RunE:  runServe,
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("Academix v%s\n", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen", "", "Listen address (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	// .env is optional; real environment always wins.
	_ = godotenv.Load()

	if err := logger.Configure(logLevel, logFile); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	if logLevel == "" && cfg.LogLevel != "" {
		if err := logger.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
			return fmt.Errorf("configure logging: %w", err)
		}
	}

	blob, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = blob.Close() }()

	store := services.NewSessionStore(blob)
	if err := store.Initialize(); err != nil {
		return fmt.Errorf("initialize session store: %w", err)
	}

	factory := services.NewClientFactory()
	apiKey, err := factory.DetermineAPIKeyForProvider(cfg.Provider)
	if err != nil {
		return err
	}
	client, err := factory.GetClientForProvider(cfg.Provider, cfg.Model, apiKey)
	if err != nil {
		return err
	}
	titleClient, err := factory.GetClientForProvider(cfg.Provider, cfg.TitleModel, apiKey)
	if err != nil {
		return err
	}

	titles := services.NewTitleGenerator(store, titleClient, cfg.TitleMinTranscript)
	coordinator := services.NewConversationCoordinator(store, client, titles, cfg.HistoryWindow)

	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      server.New(store, coordinator).Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // generation calls can be slow
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Academix listening", "addr", cfg.Listen, "provider", cfg.Provider, "model", cfg.Model)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		logger.Info("Shutting down", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStorage(cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.StorageDriver {
	case "sqlite":
		if err := os.MkdirAll(cfg.StoragePath, 0o755); err != nil {
			return nil, fmt.Errorf("ensure storage dir: %w", err)
		}
		store, err := storage.NewSQLiteStore(filepath.Join(cfg.StoragePath, "academix.db"))
		if err != nil {
			return nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		return store, nil
	default:
		store, err := storage.NewFileStore(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("open file storage: %w", err)
		}
		return store, nil
	}
}

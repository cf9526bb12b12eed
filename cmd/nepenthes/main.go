package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "nepenthes",
	Short:   "Hierarchical view resolution and rendering server",
	Long:    `Nepenthes resolves view identifiers like "page-about" to the most specific template across a prioritized list of directories and renders them.`,
	Version: Version,
	RunE:    runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the site and admin API servers",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "./config.json", "config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(resolveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	baseLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	actionChan := make(chan string, 1)
	go func() {
		osSignalChan := make(chan os.Signal, 1)
		signal.Notify(osSignalChan, syscall.SIGINT, syscall.SIGTERM)
		<-osSignalChan
		baseLogger.Info("OS signal received, initiating shutdown.")
		actionChan <- actionShutdown
	}()

	for {
		action, err := run(actionChan)
		if err != nil {
			baseLogger.Error("An error occurred during server run, shutting down.", "error", err)
			return err
		}
		if action != actionRestart {
			break
		}
		baseLogger.Info("--- Server Restarting ---")
	}

	baseLogger.Info("Nepenthes has shut down.")
	return nil
}

// run hosts both servers for one cycle, and returns whenever the server is
// shut down or restarted. The config file is re-read on every cycle.
func run(actionChan chan string) (string, error) {
	cm, err := NewConfigManager(cfgFile)
	if err != nil {
		return "", fmt.Errorf("failed to load configuration: %w", err)
	}
	config := cm.Get()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(config.Server.LogLevel)}))
	cm.SetLogger(logger)
	logger.Info("Starting server cycle...")

	db, err := initDB(config.Server.DatabasePath)
	if err != nil {
		return "", fmt.Errorf("failed to initialize database: %w", err)
	}
	if err = setupSchemas(db); err != nil {
		_ = db.Close()
		return "", fmt.Errorf("failed to set up database: %w", err)
	}

	server, err := NewServer(cm, config, logger, db, actionChan)
	if err != nil {
		_ = db.Close()
		return "", fmt.Errorf("failed to create server object: %w", err)
	}

	siteHttpServer := &http.Server{Addr: config.Server.ServerAddr, Handler: server.siteHandler}
	apiHttpServer := &http.Server{Addr: config.Server.ApiAddr, Handler: server.apiHandler}

	go func() {
		logger.Info("Starting api server", "address", apiHttpServer.Addr)
		if err := apiHttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Api server failed", "error", err)
		}
	}()
	go func() {
		logger.Info("Starting site server", "address", siteHttpServer.Addr)
		if err := siteHttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Site server failed", "error", err)
		}
	}()

	action := <-actionChan // Block until the API or an OS signal sends an action.

	logger.Info("Stopping servers for " + action + "...")
	timeout := time.Duration(config.Server.ShutdownTimeoutS) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err = apiHttpServer.Shutdown(ctx); err != nil {
		logger.Error("Api server shutdown failed", "error", err)
	}
	if err = siteHttpServer.Shutdown(ctx); err != nil {
		logger.Error("Site server shutdown failed", "error", err)
	}
	logger.Info("HTTP servers stopped.")
	server.Close()

	logger.Info("Closing database connection.")
	if err = db.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	}
	return action, nil
}

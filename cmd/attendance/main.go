/*
main.go - Application entry point

PURPOSE:
  Command-line front end for the attendance engine. Runs the HTTP server
  and offers offline projection and reconciliation.

COMMANDS:
  serve       Start the HTTP API (config file, .env and environment)
  project     Project a single present/total pair
  reconcile   Reconcile an official report with a records file

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Serve with a file database
  attendance serve --config ./attendance.yaml

  # Serve with an in-memory database
  ATTENDANCE_DB=":memory:" attendance serve

  # Offline
  attendance project 40 60 --target 75
  attendance reconcile --official report.json --records tracked.json --semester S1 --year 2024

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys and environment variables
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/log"
	"github.com/warp/attendance-engine/store/sqlite"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Attendance reconciliation and projection engine",
	Long: `Merges an institution's official attendance feed with user-tracked
corrections and extra classes, and projects how many classes can be
missed or must be attended to stay at a target percentage.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("attendance version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(reconcileCmd)
}

// loadConfig reads the config and initializes logging from it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
		Output:     os.Stderr,
	})
	return cfg, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := log.WithComponent("server")

		store, err := sqlite.New(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer store.Close()

		handler := api.NewHandler(store, cfg.Projection)
		router := api.NewRouter(handler, cfg.Server.CORSOrigins)

		server := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info().
				Str("addr", cfg.Server.Addr).
				Str("db", cfg.Database.Path).
				Float64("default_target", cfg.Projection.DefaultTarget).
				Msg("Server starting")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		// Wait for interrupt signal
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		}

		logger.Info().Msg("Shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		logger.Info().Msg("Server stopped")
		return nil
	},
}

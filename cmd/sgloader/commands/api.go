package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/sgloader/internal/api"
	"github.com/wonny/sgloader/internal/api/handlers"
	"github.com/wonny/sgloader/internal/scheduler"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the HTTP API server.

This command:
- serves the loader triggers and signal queries
- streams job events over a websocket
- runs the scheduler in-process when SCHEDULER_ENABLED=true

Endpoints:
  GET   /health
  GET   /intraday/screener/open_high_low/loader/
  GET   /intraday/screener/intraday_alerts/loader/
  GET   /intraday/screener/index_performance/loader/
  GET   /intraday/screener/ohl/candidates/
  GET   /api/signals?date=&type=
  PATCH /api/signals/weekly-trend
  POST  /api/tv/signals
  GET   /api/logs?limit=
  GET   /api/scheduler/jobs
  GET   /ws/jobs

Example:
  go run ./cmd/sgloader api
  go run ./cmd/sgloader api --port 8090`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default from PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Screener Loader API Server ===")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}
	log := a.log

	log.WithFields(map[string]interface{}{
		"port":      a.cfg.Port,
		"env":       a.cfg.Env,
		"scheduler": a.cfg.SchedulerEnabled,
	}).Info("Initializing API server")

	// Job events fan out to websocket clients
	hub := handlers.NewEventHub(log)
	a.runner.SetNotifier(hub)

	var sched *scheduler.Scheduler
	if a.cfg.SchedulerEnabled {
		if sched, err = a.newScheduler(); err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
	}

	loaderHandler := handlers.NewLoaderHandler(a.runner, log)
	for name, fn := range a.jobFuncs() {
		loaderHandler.Register(name, fn)
	}

	router := api.NewRouter(api.Handlers{
		Loader:  loaderHandler,
		Signals: handlers.NewSignalHandler(a.selector, a.signals, a.signals, a.cfg.Market.Location, log),
		TV:      handlers.NewTVHandler(a.intake, log),
		Status:  handlers.NewStatusHandler(a.logs, sched, log),
		Events:  hub,
	}, log)

	server := api.New(a.cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	if sched != nil {
		sched.Start()
		defer sched.Stop()
	}

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nLoader triggers:")
	for _, name := range loaderHandler.Jobs() {
		fmt.Printf("  GET  /intraday/screener/%s/loader/\n", name)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}

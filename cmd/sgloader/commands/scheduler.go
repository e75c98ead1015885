package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Manage the job scheduler",
	Long: `Starts the scheduler or inspects its jobs.

Subcommands:
  start   - start the scheduler daemon
  list    - list registered jobs
  run     - run one job now and wait for it
  status  - show job statistics of this process

Example:
  go run ./cmd/sgloader scheduler start
  go run ./cmd/sgloader scheduler list
  go run ./cmd/sgloader scheduler run intraday_alerts`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		Long: `Starts the scheduler and schedules every loader job (market time zone, weekdays).

Registered jobs:
- open_high_low: every 15 minutes, 09:00-15:59
- intraday_alerts: every 5 minutes, 09:00-15:59
- index_performance: every 5 minutes at :30s, 09:00-15:59

Stop with Ctrl+C.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run a job now",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show job statistics",
		RunE:  showStatus,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Screener Loader Scheduler ===")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s (next: %s)\n", jobName, sched.NextRun(jobName).Format("2006-01-02 15:04:05"))
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	stats := sched.GetJobStats()
	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %-18s %s\n", jobName, stats[jobName].Schedule)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	PrintHeader(fmt.Sprintf("Running job: %s", jobName))
	result, err := sched.RunJobNow(context.Background(), jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	switch {
	case result.Success:
		PrintSuccess(fmt.Sprintf("%s completed in %s (%d attempt(s))", jobName, result.Duration.Round(time.Millisecond), result.Attempts))
	case result.Skipped:
		PrintWarning(fmt.Sprintf("%s is already running elsewhere", jobName))
	default:
		return fmt.Errorf("%s failed after %d attempt(s): %s", jobName, result.Attempts, result.Error)
	}
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	stats := sched.GetJobStats()

	fmt.Println("Job Statistics (this process):")
	fmt.Println()

	for _, jobName := range sched.GetAllJobs() {
		stat := stats[jobName]
		fmt.Printf("📊 %s\n", jobName)
		fmt.Printf("   Schedule: %s\n", stat.Schedule)
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("   Failures: %d\n", stat.FailureCount)
		fmt.Printf("   Skipped: %d\n", stat.SkippedCount)
		fmt.Println()
	}

	// Cross-process history lives in the screener log
	entries, err := a.logs.Recent(context.Background(), 10)
	if err != nil {
		return fmt.Errorf("read screener log: %w", err)
	}
	PrintSeparator()
	fmt.Println("Recent runs:")
	for _, e := range entries {
		line := fmt.Sprintf("  %s  %-36s %-9s", e.StartedAt.In(a.cfg.Market.Location).Format("2006-01-02 15:04:05"), e.ProcessName, e.Status)
		if e.ErrorMessage != "" {
			line += "  " + e.ErrorMessage
		}
		fmt.Println(line)
	}

	return nil
}

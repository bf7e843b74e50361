// Package main provides a command line client for the stock insights dashboard.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/stock-insights/internal/config"
	"github.com/yourusername/stock-insights/internal/database"
	"github.com/yourusername/stock-insights/internal/datasource"
	"github.com/yourusername/stock-insights/internal/logger"
	"github.com/yourusername/stock-insights/internal/repository"
	"github.com/yourusername/stock-insights/internal/service"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	appLog     *logrus.Logger
	cfg        *config.Config

	fromFile     string
	jsonOutput   bool
	historyLimit int
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultConfigPath, "Path to configuration file")

	snapshotCmd.Flags().StringVar(&fromFile, "from-file", "", "Aggregate events from a JSON file instead of the backend")
	snapshotCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the snapshot as JSON")
	historyCmd.Flags().IntVar(&historyLimit, "limit", service.DefaultHistoryLimit, "Number of snapshots to list")

	rootCmd.AddCommand(snapshotCmd, historyCmd, statusCmd, versionCmd)
}

var rootCmd = &cobra.Command{
	Use:   "insights",
	Short: "Inspect stock prediction insights",
	Long:  `Builds the stock prediction dashboard from the backend and shows persisted snapshot history.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		if err := loadConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		appLog = logger.NewLogger("warn")
		return nil
	},
	SilenceUsage: true,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Fetch predictions and print the dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Refresh.Timeout())
		defer cancel()
		return runSnapshot(ctx)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List persisted dashboard snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		return runHistory(ctx)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check backend reachability and show configuration",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Backend.Timeout())
		defer cancel()
		displayStatus(ctx)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("insights %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return err
	}
	return config.Validate(cfg)
}

func newSource() datasource.PredictionSource {
	if fromFile != "" {
		return datasource.NewFileSource(fromFile)
	}
	return datasource.NewHTTPPredictionSourceFromConfig(&cfg.Backend, appLog)
}

func runSnapshot(ctx context.Context) error {
	opts, err := cfg.Aggregation.ToOptions()
	if err != nil {
		return err
	}

	source := newSource()
	if closer, ok := source.(io.Closer); ok {
		defer closer.Close()
	}

	dashboard := service.NewDashboardService(source, opts, nil, nil, nil, appLog)
	snapshot, err := dashboard.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("failed to load data: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	}
	renderSnapshot(os.Stdout, snapshot)
	return nil
}

func runHistory(ctx context.Context) error {
	db, err := database.NewDB(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	repos, err := repository.NewRepositories(db)
	if err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}

	summaries, err := repos.Snapshot.List(ctx, service.ClampHistoryLimit(historyLimit))
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}
	renderHistory(os.Stdout, summaries)
	return nil
}

func displayStatus(ctx context.Context) {
	fmt.Println("\nStock Insights Status")
	fmt.Println("=====================")

	fmt.Print("Backend: ")
	source := datasource.NewHTTPPredictionSourceFromConfig(&cfg.Backend, appLog)
	defer source.Close()
	events, err := source.FetchPredictions(ctx)
	if err != nil {
		fmt.Println("UNAVAILABLE")
		fmt.Printf("   Error: %v\n", err)
		if code := datasource.CodeOf(err); code != "" {
			fmt.Printf("   Code: %s\n", code)
		}
	} else {
		fmt.Printf("ONLINE (%d events)\n", len(events))
	}

	fmt.Println("\nConfiguration:")
	fmt.Printf("  Environment: %s\n", cfg.App.Environment)
	fmt.Printf("  Predictions URL: %s\n", cfg.Backend.PredictionsURL())
	fmt.Printf("  Refresh Schedule: %s\n", cfg.Refresh.Schedule)
	fmt.Printf("  Metrics Scope: %s\n", cfg.Aggregation.MetricsScope)
	fmt.Printf("  Unit Value: %s\n", cfg.Aggregation.UnitValue)
	fmt.Printf("  Stock Thresholds: low <= %g, high >= %g\n", cfg.Aggregation.LowStockThreshold, cfg.Aggregation.HighStockThreshold)
	fmt.Printf("  Persistence: %v\n", cfg.Features.PersistenceEnabled)
	fmt.Printf("  Stream: %v\n", cfg.Features.StreamEnabled)
	fmt.Println()
}

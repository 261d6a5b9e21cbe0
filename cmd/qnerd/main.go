package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "qnerd",
	Short: "queryNERD - intent routing and retrieval planning for product search",
	Long: `queryNERD turns a shopper's question into a classified task and a
retrieval plan.

The router classifies the query (task, constraints, safety flags); the
planner asks for a retrieval plan and repairs it against the field
whitelist. Either step degrades to safe defaults when the model fails, and
every step is recorded in the run's audit log.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// runCmd classifies and plans a single query
var runCmd = &cobra.Command{
	Use:   "run [query]",
	Short: "Route and plan a single query",
	Long: `Runs the query through the router and planner, stores the run and
prints the result.

Example:
  qnerd run "noise cancelling headphones under $200"
  qnerd run --json sony vs bose`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

// batchCmd runs one query per line
var batchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Route and plan every query in a file (one per line, - for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatch,
}

// validateCmd repairs a retrieval plan
var validateCmd = &cobra.Command{
	Use:   "validate [plan.json]",
	Short: "Repair a retrieval plan and print it",
	Long: `Reads a retrieval plan (from a file, or stdin when no file or - is
given), applies the plan validator and prints the repaired plan as JSON.

Invalid retrieval fields are dropped, missing sources default to
private_rag, and a missing or malformed filters object becomes {}.`,
	Args: cobra.MaximumNArgs(1),
	RunE: validatePlan,
}

// historyCmd lists stored runs
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs, newest first",
	RunE:  showHistory,
}

// showCmd prints one stored run
var showCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show a stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  showRun,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the queryNERD configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	RunE:  configInit,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workspace>/"+defaultConfigRel+")")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	runCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run as JSON")
	batchCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print one JSON run per line")
	batchCmd.Flags().IntVar(&concurrency, "concurrency", 4, "Queries processed at once")
	validateCmd.Flags().BoolVar(&keepEmpty, "keep-empty", false, "Leave retrieval_fields empty when every field was invalid")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list")
	showCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run as JSON")
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

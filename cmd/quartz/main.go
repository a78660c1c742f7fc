package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quartzdata/quartz/pkg/config"
	"github.com/quartzdata/quartz/pkg/dataset"
	"github.com/quartzdata/quartz/pkg/db"
	"github.com/quartzdata/quartz/pkg/db/core"
	"github.com/quartzdata/quartz/pkg/logger"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var settingsFile string

	root := &cobra.Command{
		Use:   "quartz",
		Short: "Quartz - unified database access for analytics sessions",
		Long: `Quartz connects an analytics session to the deployment's configured
database backend (Snowflake, BigQuery, SAP Datasphere, or SQL Server) through
one uniform operator interface. When no backend is configured it runs in
no-database mode and every operation returns empty results.`,
	}
	root.PersistentFlags().StringVarP(&settingsFile, "settings", "s", "quartz.yaml",
		"Path to optional settings file")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Quartz v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "tables",
		Short: "List tables and views visible in the configured schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOperator(settingsFile, func(ctx context.Context, op core.Operator, _ *dataset.MemoryRegistry) error {
				tables, err := op.GetTables(ctx)
				if err != nil {
					return err
				}
				if len(tables) == 0 {
					fmt.Println("No tables found.")
					return nil
				}
				for _, t := range tables {
					fmt.Println(t)
				}
				return nil
			})
		},
	})

	queryCmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Execute a SQL statement against the configured backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOperator(settingsFile, func(ctx context.Context, op core.Operator, _ *dataset.MemoryRegistry) error {
				result, err := op.ExecuteQuery(ctx, args[0])
				if err != nil {
					return err
				}
				printResult(result)
				return nil
			})
		},
	}
	root.AddCommand(queryCmd)

	var sampleSize int
	fetchCmd := &cobra.Command{
		Use:   "fetch <table> [table...]",
		Short: "Sample tables into normalized datasets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOperator(settingsFile, func(ctx context.Context, op core.Operator, reg *dataset.MemoryRegistry) error {
				names, err := op.GetData(ctx, sampleSize, args...)
				if err != nil {
					return err
				}
				fmt.Printf("Loaded %d of %d tables\n", len(names), len(args))
				for _, name := range names {
					if ds, ok := reg.Get(name); ok {
						fmt.Printf("  %s: %d rows, %d columns\n",
							name, ds.NumRows(), ds.NumColumns())
					}
				}
				return nil
			})
		},
	}
	fetchCmd.Flags().IntVar(&sampleSize, "sample-size", 0,
		"Rows to sample per table (0 uses the configured default)")
	root.AddCommand(fetchCmd)

	root.AddCommand(&cobra.Command{
		Use:   "prompt",
		Short: "Print the system prompt for the configured backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOperator(settingsFile, func(_ context.Context, op core.Operator, _ *dataset.MemoryRegistry) error {
				fmt.Println(op.SystemPrompt().Content)
				return nil
			})
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withOperator handles the shared lifecycle: settings, logger, operator
// construction, signal-aware context, and teardown.
func withOperator(settingsFile string, fn func(context.Context, core.Operator, *dataset.MemoryRegistry) error) error {
	settings, err := config.LoadSettings(settingsFile)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.Config{
		Level:    settings.Log.Level,
		Encoding: settings.Log.Encoding,
	}); err != nil {
		return err
	}
	defer logger.Sync()

	registry := dataset.NewMemoryRegistry()
	op, err := db.Open(settings, registry)
	if err != nil {
		return err
	}
	defer func() {
		if err := op.Close(); err != nil {
			logger.Warn("failed to close operator", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("operator ready", zap.String("backend", op.Name()))
	return fn(ctx, op, registry)
}

func printResult(result *core.QueryResult) {
	for i, col := range result.Columns {
		if i > 0 {
			fmt.Print("\t")
		}
		fmt.Print(col)
	}
	fmt.Println()
	for _, row := range result.Rows {
		for i, val := range row {
			if i > 0 {
				fmt.Print("\t")
			}
			if val == nil {
				fmt.Print("NULL")
			} else {
				fmt.Printf("%v", val)
			}
		}
		fmt.Println()
	}
	fmt.Printf("(%d rows)\n", len(result.Rows))
}

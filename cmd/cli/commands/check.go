package commands

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inferloop/dqcore/internal/checks"
	"github.com/inferloop/dqcore/internal/config"
	"github.com/inferloop/dqcore/internal/dataset"
	"github.com/inferloop/dqcore/internal/engine"
	"github.com/inferloop/dqcore/internal/history"
	"github.com/inferloop/dqcore/pkg/constants"
	"github.com/inferloop/dqcore/pkg/models"
)

type CheckOptions struct {
	SuiteFile      string
	Environment    string
	Asset          string
	InputFile      string
	DSN            string
	HistoryBackend string
	HistoryDSN     string
	OutputFile     string
	ReportFormat   string
	Verbose        bool
}

func NewCheckCmd() *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run configured data quality checks",
		Long: `Run the checks configured in a suite file against CSV input or a SQL
database and report per-check, per-group results.`,
		Example: `  # Run all assets against a CSV file
  dqcore-cli check --suite checks.yaml --input orders.csv

  # Run one asset against a PostgreSQL database
  dqcore-cli check --suite checks.yaml --asset orders --dsn postgres://localhost/warehouse

  # Persist history for trend checks between runs
  dqcore-cli check --suite checks.yaml --input orders.csv \
    --history-backend postgres --history-dsn postgres://localhost/dq`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.SuiteFile, "suite", "s", "checks.yaml", "Check suite file")
	cmd.Flags().StringVarP(&opts.Environment, "env", "e", "", "Deployment environment selecting *_targets overrides")
	cmd.Flags().StringVarP(&opts.Asset, "asset", "a", "", "Run only the named asset")
	cmd.Flags().StringVarP(&opts.InputFile, "input", "i", "", "CSV input for dataframe-sourced assets")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "PostgreSQL DSN for database-sourced assets")
	cmd.Flags().StringVar(&opts.HistoryBackend, "history-backend", constants.HistoryBackendMemory, "History backend (memory, postgres)")
	cmd.Flags().StringVar(&opts.HistoryDSN, "history-dsn", "", "PostgreSQL DSN for the history store")
	cmd.Flags().StringVarP(&opts.OutputFile, "output", "o", "-", "Output file for the report (- for stdout)")
	cmd.Flags().StringVar(&opts.ReportFormat, "format", "text", "Report format (text, json)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Verbose logging")

	return cmd
}

func runCheck(ctx context.Context, opts *CheckOptions) error {
	logger := newLogger(opts.Verbose)

	registry := checks.NewRegistry(logger)
	suite, err := config.LoadSuite(opts.SuiteFile, opts.Environment, registry)
	if err != nil {
		return fmt.Errorf("failed to load suite: %w", err)
	}

	assetIDs := suite.AssetIDs()
	if opts.Asset != "" {
		if _, ok := suite.Assets[opts.Asset]; !ok {
			return fmt.Errorf("asset '%s' is not configured in %s", opts.Asset, opts.SuiteFile)
		}
		assetIDs = []string{opts.Asset}
	}

	resolver := dataset.NewResolver(logger)
	if opts.DSN != "" {
		db, err := sql.Open("postgres", opts.DSN)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		for _, id := range assetIDs {
			if handle := suite.Assets[id].Handle; handle.SourceKind == models.SourceQueryable {
				resolver.RegisterDB(handle.ResourceKey, db)
			}
		}
	}
	if opts.InputFile != "" {
		table, err := dataset.LoadCSV(opts.InputFile)
		if err != nil {
			return fmt.Errorf("failed to load input file: %w", err)
		}
		for _, id := range assetIDs {
			if handle := suite.Assets[id].Handle; handle.SourceKind == models.SourceInMemory {
				name := handle.TableName
				if name == "" {
					name = id
				}
				resolver.RegisterTable(name, table)
			}
		}
	}

	historyStore, err := history.NewStore(ctx, historyConfig(opts), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize history store: %w", err)
	}
	defer historyStore.Close()

	eng := engine.New(nil, logger, registry, historyStore, resolver, nil)

	var reports []*models.AssetCheckReport
	blocking := false
	for _, id := range assetIDs {
		asset := suite.Assets[id]
		handle := asset.Handle
		if handle.SourceKind == models.SourceInMemory && handle.TableName == "" {
			handle.TableName = id
		}
		accessor, err := resolver.Resolve(ctx, handle)
		if err != nil {
			return fmt.Errorf("failed to resolve asset '%s': %w", id, err)
		}
		report := eng.EvaluateAsset(ctx, id, accessor, asset.Checks)
		reports = append(reports, report)
		if report.HasBlockingFailure {
			blocking = true
		}
	}

	if err := outputReports(reports, opts); err != nil {
		return fmt.Errorf("failed to output report: %w", err)
	}

	if blocking {
		return fmt.Errorf("blocking check failure")
	}
	return nil
}

func historyConfig(opts *CheckOptions) *history.Config {
	if opts.HistoryBackend == constants.HistoryBackendPostgres && opts.HistoryDSN != "" {
		return &history.Config{
			Backend:  constants.HistoryBackendPostgres,
			Postgres: &history.PostgresConfig{DSN: opts.HistoryDSN},
		}
	}
	return &history.Config{Backend: constants.HistoryBackendMemory}
}

func outputReports(reports []*models.AssetCheckReport, opts *CheckOptions) error {
	if strings.EqualFold(opts.ReportFormat, "json") {
		data, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return err
		}
		return writeOutput(string(data)+"\n", opts.OutputFile)
	}
	return writeOutput(formatReports(reports), opts.OutputFile)
}

func formatReports(reports []*models.AssetCheckReport) string {
	var b strings.Builder
	for _, report := range reports {
		fmt.Fprintf(&b, "Asset: %s\n", report.AssetID)
		for _, result := range report.Results {
			status := string(result.Status)
			if result.Status == models.StatusEvaluated {
				if result.Passed {
					status = "PASS"
				} else {
					status = "FAIL"
				}
			}
			fmt.Fprintf(&b, "  [%-7s] %s", status, result.CheckName)
			if result.GroupKey != models.GroupKeyAll {
				fmt.Fprintf(&b, " (group %s)", result.GroupKey)
			}
			if result.Message != "" {
				fmt.Fprintf(&b, ": %s", result.Message)
			}
			b.WriteString("\n")
		}

		passed, failed := 0, 0
		for _, summary := range report.Summaries {
			if summary.Passed {
				passed++
			} else {
				failed++
			}
		}
		fmt.Fprintf(&b, "Checks: %d passed, %d failed", passed, failed)
		if report.HasBlockingFailure {
			b.WriteString(" (blocking)")
		}
		if report.Cancelled {
			b.WriteString(" (cancelled, partial report)")
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

func writeOutput(content, outputFile string) error {
	if outputFile == "-" {
		fmt.Print(content)
		return nil
	}
	return os.WriteFile(outputFile, []byte(content), 0644)
}

func newLogger(verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}
	return logger
}

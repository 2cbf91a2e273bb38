package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"orcamento/internal/backend"
	"orcamento/internal/cli"
	"orcamento/internal/log"
	"orcamento/internal/services"
	"orcamento/internal/sheets"
	"orcamento/internal/sheets/csvfile"
	gsheet "orcamento/internal/sheets/google"
)

var (
	flagCSV           string
	flagSheetRange    string
	flagYear          int
	flagDB            string
	flagCreateMissing bool
	flagDryRun        bool
	flagEnvFile       string
)

var rootCmd = &cobra.Command{
	Use:   "orcamento-import",
	Short: "Import ledger expenses from a spreadsheet",
	Long: "Import ledger expenses into the orcamento database from a CSV export " +
		"or from the configured Google spreadsheet. Prints the result as JSON.",
	SilenceUsage: true,
	RunE:         runImport,
}

func init() {
	rootCmd.Flags().StringVar(&flagCSV, "csv", "", "CSV file to import instead of the Google spreadsheet")
	rootCmd.Flags().StringVar(&flagSheetRange, "sheet-range", "", "A1 range to read, overrides GOOGLE_IMPORT_RANGE")
	rootCmd.Flags().IntVar(&flagYear, "year", 0, "Year substituted for {year} in the range (default: current year)")
	rootCmd.Flags().StringVar(&flagDB, "db", "", "SQLite database path, overrides SQLITE_DB_PATH")
	rootCmd.Flags().BoolVar(&flagCreateMissing, "create-missing", false, "Create unknown categories and people")
	rootCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Parse and resolve rows without writing")
	rootCmd.Flags().StringVar(&flagEnvFile, "env-file", ".env", "Environment file to load")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runImport(cmd *cobra.Command, _ []string) error {
	cli.LoadEnvFile(flagEnvFile)
	cfg := cli.LoadAndValidateConfig()
	if flagDB != "" {
		cfg.SQLiteDBPath = flagDB
	}
	if flagSheetRange != "" {
		cfg.GoogleImportRange = flagSheetRange
	}
	if flagYear != 0 {
		cfg.GoogleImportRange = gsheet.ResolveRange(cfg.GoogleImportRange, flagYear)
	}
	// stdout carries the JSON result
	logger := cli.SetupLogger(cfg, log.ComponentImport, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	if flagCSV != "" {
		backendCfg.GoogleSpreadsheetID = ""
	}
	app, err := backend.NewFactory(logger.Logger).Build(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("Failed to release resources", "error", err)
		}
	}()

	var src sheets.RowReader
	switch {
	case flagCSV != "":
		src = csvfile.Open(flagCSV)
	case app.Sheet != nil:
		src = app.Sheet
	default:
		return errors.New("nothing to import: pass --csv or configure GOOGLE_SPREADSHEET_ID")
	}

	res, err := app.Services.Imports.Import(ctx, src, services.ImportOptions{
		CreateMissing: flagCreateMissing,
		DryRun:        flagDryRun,
	})
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	logger.Info("Import finished",
		"imported", res.Imported,
		"skipped", len(res.Skipped),
		"dry_run", res.DryRun)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}


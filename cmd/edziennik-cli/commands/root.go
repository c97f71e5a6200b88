package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"edziennik-backend/internal/app"
	"edziennik-backend/internal/components/chrono"
	"edziennik-backend/internal/components/telemetry"
	"edziennik-backend/internal/scrapers/edziennik"
	"edziennik-backend/lib/configutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	asJson     bool
	dumpDir    string
)

var rootCmd = &cobra.Command{
	Use:   "edziennik-cli",
	Short: "edziennik-cli queries the e-diary portal and manages the change detection state.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json5", "Path to the json5 config file.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging.")
	rootCmd.PersistentFlags().BoolVar(&asJson, "json", false, "Print results as json instead of a table.")
	rootCmd.PersistentFlags().StringVar(&dumpDir, "dump", "", "Write every portal exchange to files in this directory.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func readConfig() (app.Config, error) {
	cfg, err := configutil.ReadConfig[app.Config](configPath)
	if dumpDir != "" {
		cfg.Portal.DumpDir = dumpDir
	}
	return cfg, err
}

// openApp builds the whole backend from the config file, the caller must
// close it.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return app.New(ctx, cfg, chrono.NewStandardTime(), telemetry.SlogAPI{})
}

// openPortal creates a portal client that keeps its sessions in memory,
// portal settings are taken from the config file when there is one.
func openPortal() (*edziennik.Portal, error) {
	cfg, err := readConfig()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	opts, err := cfg.Portal.PortalOptions()
	if err != nil {
		return nil, err
	}
	opts.Sessions = edziennik.NewMemorySessionStore()
	return edziennik.NewPortal(opts, chrono.NewStandardTime(), telemetry.SlogAPI{})
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func printJson(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(v)
}

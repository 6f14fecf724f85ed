package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/scout/cmd/scout/tui"
	"github.com/jamesainslie/scout/pkg/daemon"
	"github.com/jamesainslie/scout/pkg/daemon/indexer"
	"github.com/jamesainslie/scout/pkg/scout/config"
	"github.com/jamesainslie/scout/pkg/scout/logging"
	"github.com/jamesainslie/scout/pkg/scout/types"
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Index a project tree once",
	Long: `Walk the project tree, analyze every file in scope and record the
results in the configured store. Unchanged files are not rewritten, so
repeat scans are cheap.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntP("workers", "w", 0, "override max_concurrent_workers")
	scanCmd.Flags().StringSliceP("exclude", "e", nil, "additional exclude patterns")
	scanCmd.Flags().Bool("no-perf", false, "disable adaptive resource management")

	_ = viper.BindPFlag("workers", scanCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("exclude", scanCmd.Flags().Lookup("exclude"))
	_ = viper.BindPFlag("no_perf", scanCmd.Flags().Lookup("no-perf"))

	rootCmd.AddCommand(scanCmd)
}

// applyScanFlags folds the scan flags into cfg.
func applyScanFlags(cfg *config.Config) {
	if workers := viper.GetInt("workers"); workers > 0 {
		cfg.MaxConcurrentWorkers = workers
	}
	if exclude := viper.GetStringSlice("exclude"); len(exclude) > 0 {
		cfg.ExcludePatterns = append(cfg.ExcludePatterns, exclude...)
	}
	if viper.GetBool("no_perf") {
		cfg.PerformanceEnabled = false
	}
}

func runScan(_ *cobra.Command, args []string) error {
	root, err := resolveRoot(args)
	if err != nil {
		return err
	}

	cfg, err := loadProjectConfig(root)
	if err != nil {
		return err
	}
	applyScanFlags(cfg)

	port, closePort, err := openPort(cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	defer func() {
		if err := closePort(); err != nil {
			printError("closing store: %v", err)
		}
	}()

	svc, err := daemon.New(daemon.Options{Root: root, Config: cfg, Port: port, ScanOnly: true})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = svc.Stop(context.Background()) }()

	printVerbose("Config: %s", cfg.Summary())

	interactive := !viper.GetBool("no_interactive") && !getJSON() && !getQuiet()
	var stats *types.ScanStats
	if interactive {
		if err := initTUILogging(cfg); err != nil {
			return fmt.Errorf("failed to initialize TUI logging: %w", err)
		}
		stats, err = tui.Run(ctx, svc)
	} else {
		printInfo("Scanning %s...", svc.Root())
		stats, err = svc.Scan(ctx)
	}

	logging.Get("cli").Info("scan finished", "root", svc.Root(), "error", err)

	if stats != nil {
		if perr := printScanResult(svc, stats, err); perr != nil {
			return perr
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scan failed: %w", err)
	}
	return nil
}

// scanResult is the JSON shape of `scout scan --json`.
type scanResult struct {
	Root  string          `json:"root"`
	Stats types.ScanStats `json:"stats"`
	Index indexer.Stats   `json:"index"`
	Error string          `json:"error,omitempty"`
}

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	valueStyle = lipgloss.NewStyle().Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
)

func printScanResult(svc *daemon.Service, stats *types.ScanStats, scanErr error) error {
	st := svc.Stats()

	if getJSON() {
		res := scanResult{Root: svc.Root(), Stats: *stats, Index: st.Index}
		if scanErr != nil {
			res.Error = scanErr.Error()
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if getQuiet() {
		return nil
	}

	line := func(label, value string) {
		fmt.Printf("%s %s\n", labelStyle.Render(fmt.Sprintf("%-12s", label)), valueStyle.Render(value))
	}
	line("Root:", svc.Root())
	line("Indexed:", fmt.Sprintf("%s files (%s)",
		humanize.Comma(stats.FilesProcessed), humanize.IBytes(uint64(stats.BytesProcessed))))
	line("Skipped:", humanize.Comma(stats.FilesSkipped))
	line("Errors:", humanize.Comma(stats.FilesErrored))
	line("Dirs:", humanize.Comma(stats.DirectoriesScanned))
	line("Changes:", fmt.Sprintf("%d created, %d updated, %d unchanged",
		st.Index.Created, st.Index.Updated, st.Index.Unchanged))
	line("Elapsed:", fmt.Sprintf("%s (%.0f files/s)", stats.Elapsed.Round(time.Millisecond), stats.FilesPerSecond()))

	switch {
	case stats.Truncated:
		fmt.Println(warnStyle.Render("Stopped at the emergency file limit; raise emergency_stop_file_count to index everything."))
	case stats.Stopped:
		fmt.Println(warnStyle.Render("Scan stopped before completion."))
	}
	if getVerbose() {
		for _, e := range stats.Errors {
			fmt.Println(warnStyle.Render(fmt.Sprintf("  %s: %s", e.Path, e.Error)))
		}
	}
	return nil
}

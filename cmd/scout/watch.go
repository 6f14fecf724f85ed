package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/metric"

	"github.com/jamesainslie/scout/pkg/daemon"
	"github.com/jamesainslie/scout/pkg/daemon/broadcaster"
	"github.com/jamesainslie/scout/pkg/scout/config"
	"github.com/jamesainslie/scout/pkg/scout/logging"
	"github.com/jamesainslie/scout/pkg/scout/metrics"
	"github.com/jamesainslie/scout/pkg/scout/types"
)

const stopTimeout = 10 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Index a project tree and keep the index current",
	Long: `Index the project tree, then monitor it for changes until interrupted.
Changes are debounced and reconciled into the store; pending changes are
flushed on shutdown.

Only one watcher runs per user. Its PID and status files live under
$XDG_DATA_HOME/scout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	watchCmd.Flags().Bool("no-scan", false, "skip the initial scan")

	_ = viper.BindPFlag("metrics_addr", watchCmd.Flags().Lookup("metrics-addr"))
	_ = viper.BindPFlag("no_scan", watchCmd.Flags().Lookup("no-scan"))

	rootCmd.AddCommand(watchCmd)
}

func runWatch(_ *cobra.Command, args []string) error {
	root, err := resolveRoot(args)
	if err != nil {
		return err
	}

	cfg, err := loadProjectConfig(root)
	if err != nil {
		return err
	}
	if addr := viper.GetString("metrics_addr"); addr != "" {
		cfg.Metrics.Addr = addr
	}

	if err := config.EnsureDataDir(); err != nil {
		return err
	}
	pidPath := config.DefaultPIDPath()
	statusPath := daemon.StatusPath(filepath.Dir(pidPath))

	release, err := daemon.AcquirePIDFile(pidPath, lockDir(cfg))
	if errors.Is(err, daemon.ErrAlreadyRunning) {
		return fmt.Errorf("scout watch is already running (see %s)", pidPath)
	}
	if err != nil {
		return err
	}
	defer release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := watch(ctx, root, cfg, statusPath); err != nil {
		_ = daemon.WriteStatusError(statusPath, err)
		return err
	}
	return nil
}

func watch(ctx context.Context, root string, cfg *config.Config, statusPath string) error {
	log := logging.Get("cli")

	port, closePort, err := openPort(cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	defer func() {
		if err := closePort(); err != nil {
			log.Warn("closing store", "error", err)
		}
	}()

	var meter metric.Meter
	if cfg.Metrics.Addr != "" {
		provider, err := metrics.NewPrometheus()
		if err != nil {
			return fmt.Errorf("failed to create metrics provider: %w", err)
		}
		defer func() { _ = provider.Shutdown(context.Background()) }()
		meter = provider.Meter()

		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, provider.Handler()); err != nil {
				log.Error("metrics endpoint failed", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
		printInfo("Metrics on http://%s/metrics", cfg.Metrics.Addr)
	}

	svc, err := daemon.New(daemon.Options{Root: root, Config: cfg, Port: port, Meter: meter})
	if err != nil {
		return err
	}

	sub := svc.Subscribe(broadcaster.KindFileChange, broadcaster.KindPerformance, broadcaster.KindScanComplete)
	defer svc.Unsubscribe(sub.ID)

	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Warn("stopping service", "error", err)
		}
	}()

	if !viper.GetBool("no_scan") {
		printInfo("Indexing %s...", svc.Root())
		if _, err := svc.Scan(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("initial scan failed: %w", err)
		}
	}

	if err := daemon.WriteStatusReady(statusPath, svc.Root()); err != nil {
		log.Warn("writing status file", "path", statusPath, "error", err)
	}
	defer func() { _ = daemon.RemoveStatus(statusPath) }()

	printInfo("Watching %s (Ctrl+C to stop)", svc.Root())
	for {
		select {
		case <-ctx.Done():
			printInfo("Shutting down...")
			return nil
		case env, ok := <-sub.Events:
			if !ok {
				return nil
			}
			printEvent(env)
		}
	}
}

func printEvent(env broadcaster.Envelope) {
	if getJSON() {
		data, err := json.Marshal(env)
		if err == nil {
			fmt.Println(string(data))
		}
		return
	}
	if getQuiet() {
		return
	}

	ts := env.Time.Format("15:04:05")
	switch ev := env.Event.(type) {
	case broadcaster.FileChange:
		for _, res := range ev.Results {
			fmt.Printf("%s %-9s %s\n", labelStyle.Render(ts), string(res.Action), changePath(ev.Root, res))
		}
	case broadcaster.PerformanceEvent:
		fmt.Println(warnStyle.Render(fmt.Sprintf("%s %s: %s", ts, ev.Event.Kind, ev.Event.Reason)))
	case broadcaster.ScanComplete:
		fmt.Printf("%s indexed %d files in %s\n", labelStyle.Render(ts),
			ev.Stats.FilesProcessed, ev.Stats.Elapsed.Round(time.Millisecond))
	}
}

func changePath(root string, res types.ChangeResult) string {
	rel := func(p string) string {
		if r, err := filepath.Rel(root, p); err == nil {
			return r
		}
		return p
	}
	if res.Event.Kind == types.Moved && res.Event.OldPath != "" {
		return rel(res.Event.OldPath) + " -> " + rel(res.Event.Path)
	}
	if res.Err != "" {
		return rel(res.Event.Path) + " (" + res.Err + ")"
	}
	return rel(res.Event.Path)
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/yxiaowhut/streamit/internal/cli/output"
	"github.com/yxiaowhut/streamit/internal/logger"
	"github.com/yxiaowhut/streamit/pkg/script"
	"github.com/yxiaowhut/streamit/pkg/spu"
)

var (
	runOutput string
	runWatch  bool
	runReset  bool
)

// watchDebounce coalesces the burst of events editors produce on save.
const watchDebounce = 200 * time.Millisecond

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run a pipeline script",
	Long: `Build the pipeline described by a YAML script on a fresh core, run every
command to completion and print a report.

Shared memory persists across runs when the configured backend does
(filesystem, badger, s3). Use --reset to clear it first.

Examples:
  # Run once and print the command table
  streamit run pipeline.yaml

  # Print the full report as JSON
  streamit run pipeline.yaml --output json

  # Re-run whenever the script changes
  streamit run pipeline.yaml --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func init() {
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "table", "Output format (table|json|yaml)")
	runCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "Re-run when the script file changes")
	runCmd.Flags().BoolVar(&runReset, "reset", false, "Clear shared memory before running")
}

func runScript(cmd *cobra.Command, args []string) error {
	path := args[0]

	format, err := output.ParseFormat(runOutput)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer env.close(context.Background())

	if runReset {
		if err := env.memory.Reset(ctx); err != nil {
			return fmt.Errorf("reset shared memory: %w", err)
		}
		logger.Info("Shared memory cleared")
	}

	color := format == output.FormatTable && logger.IsTerminal(os.Stdout.Fd())
	printer := output.NewPrinter(cmd.OutOrStdout(), format, color)

	if !runWatch {
		return runOnce(ctx, env, path, printer)
	}
	return watchScript(ctx, path, func() {
		if err := runOnce(ctx, env, path, printer); err != nil {
			printer.Error(err.Error())
		}
	})
}

// runOnce loads path and runs it on a new core over the shared environment.
func runOnce(ctx context.Context, env *environment, path string, printer *output.Printer) error {
	s, err := script.Load(path)
	if err != nil {
		return err
	}

	core, err := spu.New(env.cfg.Core.SPUOptions(env.memory, env.coreMetrics, env.pool))
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), env.cfg.Core.DrainTimeout)
		defer cancel()
		if err := core.Close(closeCtx); err != nil {
			logger.Warn("Core close failed", logger.Err(err))
		}
	}()

	report, runErr := script.Run(ctx, core, s)
	if report != nil {
		if err := printReport(printer, report); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if printer.Format() == output.FormatTable {
		printer.Success(fmt.Sprintf("%s: %d commands, %d invocations in %s",
			report.Script, report.Stats.Completed, report.Stats.Invocations, report.Elapsed.Round(time.Microsecond)))
	}
	return nil
}

func printReport(printer *output.Printer, r *script.Report) error {
	if printer.Format() != output.FormatTable {
		return printer.Print(r)
	}

	if err := printer.Print(r); err != nil {
		return err
	}
	if len(r.Buffers) > 0 {
		printer.Printf("\n")
		buffers := output.NewTableData("Buffer", "Handle", "Size", "Words")
		for _, b := range r.Buffers {
			buffers.AddRow(b.Name, fmt.Sprintf("0x%05x", b.Handle), strconv.FormatUint(uint64(b.Size), 10), strconv.Itoa(b.Words))
		}
		if err := printer.Print(buffers); err != nil {
			return err
		}
	}
	if len(r.Dumps) > 0 {
		printer.Printf("\n")
		pairs := make([][2]string, 0, len(r.Dumps))
		for _, d := range r.Dumps {
			pairs = append(pairs, [2]string{fmt.Sprintf("%s @ %#x", d.Name, d.Addr), fmt.Sprint(d.Words)})
		}
		if err := output.PrintKeyValues(printer.Writer(), pairs); err != nil {
			return err
		}
	}
	return nil
}

// watchScript calls fn once and then after every change to path until ctx
// is cancelled. The parent directory is watched so that editors replacing
// the file by rename are still seen.
func watchScript(ctx context.Context, path string, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	fn()
	logger.Info("Watching for changes", logger.KeyScript, abs)

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounce = time.After(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				debounce = time.After(watchDebounce)
				continue
			}
			logger.Warn("Watcher error", logger.Err(err))
		case <-debounce:
			debounce = nil
			logger.Info("Script changed, re-running", logger.KeyScript, abs)
			fn()
		}
	}
}

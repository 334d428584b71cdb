package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/marcus/dispatch/internal/backend"
	"github.com/marcus/dispatch/internal/calibration"
	"github.com/marcus/dispatch/internal/config"
	"github.com/marcus/dispatch/internal/db"
	"github.com/marcus/dispatch/internal/engine"
	"github.com/marcus/dispatch/internal/history"
	"github.com/marcus/dispatch/internal/logging"
	"github.com/marcus/dispatch/internal/schedule"
	"github.com/marcus/dispatch/internal/spool"
	"github.com/marcus/dispatch/internal/ui"
)

var (
	runTUIFlag        bool
	runAutoAcceptFlag bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the dispatch engine",
	Long: `Start the engine: watch the spool directory for tasks, run the worker
loop, and dispatch approved tasks to the backend.

Without --auto the engine starts in manual mode; accept tasks from the
monitor (--tui) or via configured auto-accept windows.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runTUIFlag, "tui", false, "Show the interactive queue monitor")
	runCmd.Flags().BoolVar(&runAutoAcceptFlag, "auto", false, "Start with auto-accept enabled")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPathFlag)
	if err != nil {
		return err
	}
	if runAutoAcceptFlag {
		cfg.Engine.AutoAccept = true
	}

	if err := logging.Init(cfg.Logging); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	logger := logging.Component("cli")

	// Calibration: missing file is fine, we fall back to defaults.
	calib := calibration.NewStore(cfg.Paths.Calibration)
	if _, err := calib.Load(); err != nil && !os.IsNotExist(err) {
		logger.WarnCtx("calibration load", map[string]any{"error": err.Error()})
	}
	stopWatch, err := calib.Watch()
	if err != nil {
		logger.WarnCtx("calibration watch unavailable", map[string]any{"error": err.Error()})
	} else {
		defer stopWatch()
	}

	// Durable history is best-effort: the engine runs fine without it.
	var store *history.Store
	database, err := db.Open(cfg.Paths.Database)
	if err != nil {
		logger.WarnCtx("history database unavailable", map[string]any{"error": err.Error()})
	} else {
		defer func() { _ = database.Close() }()
		store = history.NewStore(database)
	}

	eng := engine.New(
		engine.WithBackend(backend.NewDryRun()),
		engine.WithCalibration(calib),
		engine.WithHistoryStore(store),
		engine.WithConfig(engine.Config{
			PollInterval:      cfg.Engine.PollInterval,
			CompletionTimeout: cfg.Engine.CompletionTimeout,
			GraceSleep:        cfg.Engine.GraceSleep,
			HistoryLimit:      cfg.Engine.HistoryLimit,
			AutoAccept:        cfg.Engine.AutoAccept,
		}),
	)

	spooler, err := spool.New(cfg.Paths.Spool, eng)
	if err != nil {
		return fmt.Errorf("spool dir: %w", err)
	}
	if err := spooler.Start(); err != nil {
		return fmt.Errorf("spool watch: %w", err)
	}
	defer spooler.Stop()

	if len(cfg.Windows) > 0 {
		sched := schedule.New(eng)
		for _, w := range cfg.Windows {
			if err := sched.AddWindow(w); err != nil {
				return fmt.Errorf("auto-accept window: %w", err)
			}
		}
		sched.Start()
		defer sched.Stop()
	}

	eng.StartLoop()
	defer eng.Shutdown()

	logger.InfoCtx("engine running", map[string]any{
		"spool": cfg.Paths.Spool,
		"auto":  eng.AutoAccept(),
		"tui":   runTUIFlag,
	})

	if runTUIFlag {
		return runMonitor(eng)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
	return nil
}

// runMonitor runs the Bubbletea monitor, forwarding engine events into
// the UI loop.
func runMonitor(eng *engine.Engine) error {
	program := tea.NewProgram(ui.New(eng))
	eng.RegisterEventListener(func(ev engine.Event) {
		program.Send(ui.EventMsg{Event: ev})
	})
	_, err := program.Run()
	return err
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/pinwatch/internal/config"
	"github.com/sweeney/pinwatch/internal/gpio"
	"github.com/sweeney/pinwatch/internal/logic"
	"github.com/sweeney/pinwatch/internal/monitor"
	"github.com/sweeney/pinwatch/internal/mqtt"
	"github.com/sweeney/pinwatch/internal/script"
	"github.com/sweeney/pinwatch/internal/status"
	"github.com/sweeney/pinwatch/internal/web"
)

type rootOptions struct {
	scriptDir string
	edge      string
	debounce  time.Duration
	backend   string
	chip      string
	broker    string
	heartbeat time.Duration
	httpAddr  string
	logFile   string
	verbosity int
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "pinwatch [flags] pin[:edge] ...",
		Short: "watch GPIO pins and run handler scripts on edge events",
		Long: `pinwatch watches GPIO pins for edge events and runs a handler script
when one fires. Handlers live in the script directory, are named after
the pin number they handle, and are invoked with the pin number and the
new value as arguments.

With no pin arguments, pins are discovered by probing the script
directory for handlers named 0 through 31.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.buildConfig(args)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.scriptDir, "script-dir", "s", config.DefaultScriptDir, "directory of handler scripts named after pin numbers")
	f.StringVarP(&opts.edge, "edge", "e", "both", "default edge mode for pins without an explicit one (rising, falling, both, switch)")
	f.DurationVar(&opts.debounce, "debounce", logic.DefaultDebounce, "debounce window for switch pins")
	f.StringVar(&opts.backend, "backend", config.BackendSysfs, "pin access backend (sysfs or cdev)")
	f.StringVar(&opts.chip, "chip", gpio.DefaultChip, "gpio chip name for the cdev backend")
	f.StringVar(&opts.broker, "broker", "", "MQTT broker URL for the event mirror (empty disables)")
	f.DurationVar(&opts.heartbeat, "heartbeat", 15*time.Minute, "MQTT heartbeat interval (0 disables)")
	f.StringVar(&opts.httpAddr, "http", "", "HTTP status server address (empty disables)")
	f.StringVarP(&opts.logFile, "log-file", "l", "", "append logs to this file instead of stderr")
	f.CountVarP(&opts.verbosity, "verbose", "v", "raise log detail (repeat for more)")

	cmd.AddCommand(newReadCommand())
	return cmd
}

func (o *rootOptions) buildConfig(args []string) (*config.Config, error) {
	defaultEdge, err := gpio.ParseEdge(o.edge)
	if err != nil {
		return nil, err
	}
	pins, err := config.ParsePins(args, defaultEdge)
	if err != nil {
		return nil, err
	}
	if len(pins) == 0 {
		pins = config.DiscoverPins(o.scriptDir, defaultEdge)
	}

	cfg := &config.Config{
		ScriptDir:   o.scriptDir,
		DefaultEdge: defaultEdge,
		Debounce:    o.debounce,
		Backend:     o.backend,
		Chip:        o.chip,
		Broker:      o.broker,
		Heartbeat:   o.heartbeat,
		HTTPAddr:    o.httpAddr,
		LogFile:     o.logFile,
		Verbosity:   o.verbosity,
		Pins:        pins,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cfg *config.Config) error {
	logger, logFile, err := newLogger(cfg)
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}
	slog.SetDefault(logger)

	start := time.Now()

	nf, initial, err := openNotifier(cfg)
	if err != nil {
		return err
	}
	defer nf.Close()

	tracker := status.NewTracker(start, status.Config{
		ScriptDir:  cfg.ScriptDir,
		Backend:    cfg.Backend,
		DebounceMs: cfg.Debounce.Milliseconds(),
		Broker:     cfg.Broker,
		HTTPAddr:   cfg.HTTPAddr,
	}, cfg.Pins, initial)

	var pub *mqtt.RealPublisher
	if cfg.Broker != "" {
		pub = mqtt.NewRealPublisher(cfg.Broker, logger)
		defer pub.Close()
		tracker.SetMQTTConnected(pub.IsConnected())

		snap := tracker.Snapshot()
		startup := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := pub.PublishSystem(startup); err != nil {
			logger.Warn("startup publish failed", "error", err)
		} else {
			logger.Info("published startup event")
		}

		if cfg.Heartbeat > 0 {
			stop := startHeartbeat(pub, tracker, cfg.Heartbeat, logger)
			defer stop()
		}
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info("http status server listening", "addr", cfg.HTTPAddr)
	}

	runner := script.NewScriptRunner(cfg.ScriptDir, logger)
	if logFile != nil {
		// Handlers write to the log file when one is set.
		runner.Stdout = logFile
		runner.Stderr = logFile
	}

	detector := logic.NewDetector(cfg.Pins, cfg.Debounce)

	monOpts := monitor.Options{Tracker: tracker, Log: logger}
	if pub != nil {
		monOpts.Sink = pub
	}
	mon := monitor.New(cfg.Pins, nf, detector, runner, monOpts)

	logger.Info("started",
		"backend", cfg.Backend,
		"script_dir", cfg.ScriptDir,
		"pins", len(cfg.Pins),
		"debounce", cfg.Debounce,
	)

	// Closing the notifier unblocks the wait loop; Run then returns nil
	// and the process exits 0.
	reason := make(chan string, 1)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		logger.Info("received signal, shutting down", "signal", s.String())
		reason <- signalName(s)
		nf.Close()
	}()

	err = mon.Run()

	if pub != nil {
		name := ""
		select {
		case name = <-reason:
		default:
		}
		tracker.SetMQTTConnected(pub.IsConnected())
		snap := tracker.Snapshot()
		shutdown := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "SHUTDOWN",
			Reason:     name,
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", name),
		}
		if perr := pub.PublishSystem(shutdown); perr != nil {
			logger.Warn("shutdown publish failed", "error", perr)
		} else {
			logger.Info("published shutdown event")
		}
	}
	return err
}

// openNotifier configures the pins for the selected backend, opens the
// monitoring handles, and returns the values observed at startup.
func openNotifier(cfg *config.Config) (gpio.Notifier, []int, error) {
	switch cfg.Backend {
	case config.BackendCdev:
		nf, err := gpio.NewCdevNotifier(cfg.Chip, cfg.Pins)
		if err != nil {
			return nil, nil, err
		}
		return nf, nf.InitialValues(), nil
	default:
		fs := gpio.Sysfs{Root: gpio.DefaultSysfsRoot}
		for _, p := range cfg.Pins {
			if err := fs.Configure(p); err != nil {
				return nil, nil, err
			}
		}
		nf, err := gpio.NewSysfsNotifier(fs, cfg.Pins)
		if err != nil {
			return nil, nil, err
		}
		return nf, nf.InitialValues(), nil
	}
}

// newLogger builds the daemon logger. With --log-file it appends to the
// file and the returned handle is non-nil.
func newLogger(cfg *config.Config) (*slog.Logger, *os.File, error) {
	out := io.Writer(os.Stderr)
	var logFile *os.File
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", cfg.LogFile, err)
		}
		out = f
		logFile = f
	}
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: logLevel(cfg.Verbosity)})
	return slog.New(handler), logFile, nil
}

// logLevel maps the -v count to a slog level.
func logLevel(verbosity int) slog.Level {
	switch {
	case verbosity <= 0:
		return slog.LevelInfo
	case verbosity == 1:
		return slog.LevelDebug
	}
	return monitor.LevelTrace
}

// startHeartbeat publishes a status snapshot to the system topic on a
// fixed interval until the returned stop function is called.
func startHeartbeat(pub *mqtt.RealPublisher, tracker *status.Tracker, interval time.Duration, log *slog.Logger) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				tracker.SetMQTTConnected(pub.IsConnected())
				snap := tracker.Snapshot()
				log.Debug("heartbeat", "uptime", snap.Uptime().Truncate(time.Second), "events", snap.TotalEvents())
				hb := mqtt.SystemEvent{
					Timestamp:  snap.Now,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
				}
				if err := pub.PublishSystem(hb); err != nil {
					log.Warn("heartbeat publish failed", "error", err)
				}
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/filesrv/internal/config"
	"github.com/Iron-Ham/filesrv/internal/dispatcher"
	"github.com/Iron-Ham/filesrv/internal/event"
	"github.com/Iron-Ham/filesrv/internal/filelock"
	"github.com/Iron-Ham/filesrv/internal/handler"
	"github.com/Iron-Ham/filesrv/internal/input"
	"github.com/Iron-Ham/filesrv/internal/instancelock"
	"github.com/Iron-Ham/filesrv/internal/logging"
	"github.com/Iron-Ham/filesrv/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Read commands from the control stream and run them",
	Long: `Read commands from the control stream (stdin by default) and run each one
concurrently under its file's lock. The server exits at end of stream, or on
SIGINT/SIGTERM, after every in-flight command has finished.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// serveFlags maps each flag to the config key it overrides.
var serveFlags = []struct {
	name, short, key, usage string
	kind                    string
}{
	{"work-dir", "w", "server.work_dir", "directory every target is resolved against", "string"},
	{"input", "", "server.input", `control stream path, "-" for stdin`, "string"},
	{"follow", "f", "server.follow", "keep reading the input file as it grows", "bool"},
	{"join", "j", "server.join", "wait for each command before reading the next", "bool"},
	{"instant", "i", "delay.instant", "skip the simulated service delays", "bool"},
	{"verbose", "v", "logging.verbose", "print log lines to the console", "bool"},
	{"evict", "", "registry.evict_idle", "drop a file's lock once nothing references it", "bool"},
	{"log-level", "", "logging.level", "log level: debug, info, warn, error", "string"},
}

func addServeFlags(flags *pflag.FlagSet) {
	defaults := viper.New()
	config.SetDefaultsOn(defaults)

	for _, f := range serveFlags {
		switch f.kind {
		case "bool":
			flags.BoolP(f.name, f.short, defaults.GetBool(f.key), f.usage)
		default:
			flags.StringP(f.name, f.short, defaults.GetString(f.key), f.usage)
		}
		_ = viper.BindPFlag(f.key, flags.Lookup(f.name))
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, err := input.Open(ctx, cfg.Server.Input, cfg.Server.Follow)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	var prompt io.Writer
	if cfg.Server.Prompt && input.IsTerminal(cfg.Server.Input) {
		prompt = cmd.OutOrStdout()
	}

	return serve(ctx, cfg, in, serveIO{
		prompt: prompt,
		stdout: cmd.OutOrStdout(),
		stderr: cmd.ErrOrStderr(),
	})
}

type serveIO struct {
	prompt io.Writer // nil disables the prompt
	stdout io.Writer
	stderr io.Writer
}

// serve runs one server over in until end of stream or ctx is done, then
// waits for in-flight requests and drains the lock registry.
func serve(ctx context.Context, cfg *config.Config, in io.Reader, sio serveIO) error {
	workDir, err := filepath.Abs(cfg.Server.WorkDir)
	if err != nil {
		return fmt.Errorf("resolve work directory: %w", err)
	}
	st, err := store.NewOS(workDir)
	if err != nil {
		return err
	}

	ilock, err := instancelock.Acquire(workDir)
	if err != nil {
		return err
	}
	defer func() { _ = ilock.Release() }()

	logger, err := newLogger(cfg, sio)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()
	log := logger.WithComponent("server")

	bus := event.NewBus()
	tally := subscribeTally(bus, logger)

	regOpts := []filelock.Option{filelock.WithBus(bus)}
	if cfg.Registry.EvictIdle {
		regOpts = append(regOpts, filelock.WithEviction())
	}
	reg := filelock.NewRegistry(regOpts...)

	hcfg := handler.ConfigFrom(cfg)
	hcfg.Limits.Reserved = append(hcfg.Limits.Reserved, instancelock.FileName)
	if rel, ok := logPathIn(workDir, cfg); ok {
		hcfg.Limits.Rotated = append(hcfg.Limits.Rotated, rel)
	}
	h := handler.New(reg, st, hcfg, handler.WithLogger(logger))

	dopts := []dispatcher.Option{dispatcher.WithBus(bus), dispatcher.WithLogger(logger)}
	if sio.prompt != nil {
		dopts = append(dopts, dispatcher.WithPrompt(sio.prompt))
	}
	d := dispatcher.New(reg, h, st, dispatcher.ConfigFrom(cfg), dopts...)

	log.Info("server started",
		"work_dir", workDir,
		"input", cfg.Server.Input,
		"join", cfg.Server.Join,
		"instant", cfg.Delay.Instant,
		"evict_idle", cfg.Registry.EvictIdle)

	// Run may sit in a read on stdin that cancellation cannot interrupt, so
	// shutdown does not wait for it to return.
	runDone := make(chan error, 1)
	go func() { runDone <- d.Run(ctx, in) }()

	var runErr error
	select {
	case runErr = <-runDone:
	case <-ctx.Done():
		log.Warn("interrupted, waiting for in-flight commands")
	}
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	waitErr := d.Wait()
	drained := reg.Shutdown()

	log.Info("server stopped",
		"dispatched", d.Dispatched(),
		"failed", tally.failed(),
		"locks_drained", drained)

	return errors.Join(runErr, waitErr)
}

// logPathIn returns the log file's path relative to workDir when the file
// lies inside workDir. Earlier runs may have left it there even while file
// logging is off, so the check does not depend on logging.enabled.
func logPathIn(workDir string, cfg *config.Config) (string, bool) {
	dir, err := filepath.Abs(cfg.LogDir())
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(workDir, filepath.Join(dir, logging.FileName))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func newLogger(cfg *config.Config, sio serveIO) (*logging.Logger, error) {
	opts := logging.Options{
		Level: cfg.Logging.Level,
		Rotation: logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		},
	}
	if cfg.Logging.Enabled {
		opts.Dir = cfg.LogDir()
	}
	if cfg.Logging.Verbose {
		opts.Console = sio.stdout
		opts.ConsoleErr = sio.stderr
	}
	return logging.New(opts)
}

// outcomeTally counts completed requests that failed.
type outcomeTally struct {
	mu    sync.Mutex
	fails uint64
}

func (t *outcomeTally) failed() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fails
}

// subscribeTally logs lock lifecycle events at debug level and counts
// failed requests for the shutdown summary.
func subscribeTally(bus *event.Bus, logger *logging.Logger) *outcomeTally {
	t := &outcomeTally{}
	log := logger.WithComponent("registry")

	bus.Subscribe(event.TypeLockCreated, func(e event.Event) {
		log.WithResource(e.(event.LockCreatedEvent).Resource).Debug("lock created")
	})
	bus.Subscribe(event.TypeLockEvicted, func(e event.Event) {
		log.WithResource(e.(event.LockEvictedEvent).Resource).Debug("lock evicted")
	})
	bus.Subscribe(event.TypeRequestCompleted, func(e event.Event) {
		if e.(event.RequestCompletedEvent).Err == nil {
			return
		}
		t.mu.Lock()
		t.fails++
		t.mu.Unlock()
	})
	return t
}

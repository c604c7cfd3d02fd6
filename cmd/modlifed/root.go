package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/GoCodeAlone/modlife"
	"github.com/GoCodeAlone/modlife/feeders"
	"github.com/GoCodeAlone/modlife/history"
	"github.com/GoCodeAlone/modlife/internal/demo"
	"github.com/GoCodeAlone/modlife/statushttp"
	"github.com/GoCodeAlone/modlife/trigger"
)

type options struct {
	envFiles    []string
	envPrefix   string
	statusAddr  string
	noStatus    bool
	stopFile    string
	stopAt      string
	stopTimeout time.Duration
	logLevel    string
	logFormat   string
	historySize int
}

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "modlifed",
		Short: "Run the demo modules under the lifecycle engine",
		Long: `modlifed configures, starts and stops a small set of demo modules
(store, worker, reporter and the status HTTP adapter) through the lifecycle
engine. It stops on SIGINT/SIGTERM, POST /stop, a stop file or a schedule.`,
		Example: `  modlifed --env-file .env --env-file config.yaml
  modlifed --status-addr 127.0.0.1:9000 --stop-file /tmp/modlifed.stop`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, cmd.Flags())
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVar(&opts.envFiles, "env-file", nil, "load variables from a .env, .yaml, .toml or .hcl file (repeatable, later files win)")
	flags.StringVar(&opts.envPrefix, "env-prefix", "", "only read OS environment variables with this prefix, stripping it")
	flags.StringVar(&opts.statusAddr, "status-addr", "", "listen address of the status endpoint (overrides STATUS_HTTP_ADDR)")
	flags.BoolVar(&opts.noStatus, "no-status", false, "do not start the status endpoint")
	flags.StringVar(&opts.stopFile, "stop-file", "", "stop once this file is created")
	flags.StringVar(&opts.stopAt, "stop-at", "", "stop at the next time matching this cron spec")
	flags.DurationVar(&opts.stopTimeout, "stop-timeout", 30*time.Second, "deadline handed to module finalizers")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flags.StringVar(&opts.logFormat, "log-format", "text", "log format: text, json or console")
	flags.IntVar(&opts.historySize, "event-history", history.DefaultCapacity, "lifecycle events kept for GET /events")
	return cmd
}

func loadEnv(opts options) (modlife.EnvVars, error) {
	sources := []feeders.Feeder{feeders.EnvFeeder{Prefix: opts.envPrefix}}
	for _, path := range opts.envFiles {
		sources = append(sources, feeders.ForFile(path))
	}
	env, err := feeders.Load(sources...)
	if err != nil {
		return nil, err
	}
	if opts.statusAddr != "" {
		env[statushttp.EnvAddr] = opts.statusAddr
	}
	return env, nil
}

func buildEngine(logger modlife.Logger, opts options) (*modlife.Engine, error) {
	events := history.NewStore(opts.historySize)
	b := modlife.NewBuilder(
		modlife.WithLogger(logger),
		modlife.WithStopTimeout(opts.stopTimeout),
		modlife.WithObserver(modlife.NewFunctionalObserver("modlifed.phase-log", phaseLogger(logger)),
			modlife.EventTypePhaseChanged, modlife.EventTypeEngineStopped),
		modlife.WithObserver(events),
	)

	var err error
	add := func(name string, desc modlife.Descriptor, deps modlife.DependencyMap) {
		if err != nil {
			return
		}
		b, err = b.Add(name, desc, deps)
	}
	add(demo.StoreModuleName, demo.StoreModule(modlife.NewPrefixLoggerDecorator(logger, "[store]")), nil)
	add(demo.WorkerModuleName, demo.WorkerModule(modlife.NewPrefixLoggerDecorator(logger, "[worker]")), demo.WorkerDependencies())
	add(demo.ReporterModuleName, demo.ReporterModule(modlife.NewPrefixLoggerDecorator(logger, "[reporter]")), demo.ReporterDependencies())
	if !opts.noStatus {
		add(statushttp.ModuleName, statushttp.Module(logger, statushttp.WithEvents(events)), statushttp.Dependencies())
	}
	if err != nil {
		return nil, err
	}
	return b.Complete()
}

func run(ctx context.Context, opts options, flags *pflag.FlagSet) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := newLogger(opts.logLevel, opts.logFormat, os.Stderr)
	if err != nil {
		return err
	}

	var changed []string
	flags.Visit(func(f *pflag.Flag) { changed = append(changed, f.Name) })
	logger.Debug("Starting modlifed", "version", getVersion(), "flags", changed)

	env, err := loadEnv(opts)
	if err != nil {
		return fmt.Errorf("load environment: %w", err)
	}

	engine, err := buildEngine(logger, opts)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	triggers := []trigger.Trigger{trigger.Signal()}
	if opts.stopFile != "" {
		triggers = append(triggers, trigger.File(opts.stopFile))
	}
	if opts.stopAt != "" {
		triggers = append(triggers, trigger.Schedule(opts.stopAt))
	}
	// Triggers cancel the run context; Run turns that into a stop in
	// whatever phase the engine has reached.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	disarm, err := trigger.Arm(trigger.StopFunc(func() error {
		cancel()
		return nil
	}), logger, triggers...)
	if err != nil {
		return err
	}
	defer disarm()

	return modlife.Run(ctx, engine, env)
}

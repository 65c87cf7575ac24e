package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/desertwitch/completion/internal/cell"
	"github.com/desertwitch/completion/internal/configuration"
	"github.com/desertwitch/completion/internal/host"
	"github.com/desertwitch/completion/internal/ui"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals
var Version = "dev"

// rootOptions holds the persistent flags of all commands.
type rootOptions struct {
	configFile string
	deviceName string
	readers    int
	maxMinors  int
	logLevel   string
	noColor    bool
	cpuProfile string
	memProfile string

	out io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{out: out}

	cmd := &cobra.Command{
		Use:   "completiond",
		Short: "Completion device host",
		Long: `completiond registers a completion device with an in-process host framework
and drives it. Reads on the device block until the next write; a write wakes
every blocked reader at once.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetOut(out)
	cmd.SetErr(out)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "env-style configuration file")
	flags.StringVar(&opts.deviceName, "name", "", "device name (overrides configuration)")
	flags.IntVar(&opts.readers, "readers", 0, "amount of readers for the run scenario (overrides configuration)")
	flags.IntVar(&opts.maxMinors, "max-minors", 0, "minor numbers of the host registry (overrides configuration)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides configuration)")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored log output (overrides configuration)")
	flags.StringVar(&opts.cpuProfile, "cpuprofile", "", "write cpu profile to file")
	flags.StringVar(&opts.memProfile, "memprofile", "", "write memory profile to file")

	cmd.AddCommand(newRunCmd(opts), newMonitorCmd(opts))

	return cmd
}

// loadConfig reads the configuration file, if any, and applies the flags that
// were explicitly set on the command line.
func (opts *rootOptions) loadConfig(cmd *cobra.Command) (*configuration.AppConfiguration, error) {
	var files []string
	if opts.configFile != "" {
		files = append(files, opts.configFile)
	}

	config, err := configuration.NewHandler(&configuration.GodotenvProvider{}).Load(files...)
	if err != nil {
		return nil, fmt.Errorf("(cli-config) %w", err)
	}

	flags := cmd.Flags()
	var merr *multierror.Error

	if flags.Changed("name") {
		config.DeviceName = opts.deviceName
	}

	if flags.Changed("readers") {
		config.Readers = opts.readers
	}

	if flags.Changed("max-minors") {
		config.MaxMinors = opts.maxMinors
	}

	if flags.Changed("log-level") {
		level, err := configuration.ParseLogLevel(opts.logLevel)
		if err != nil {
			merr = multierror.Append(merr, err)
		}
		config.LogLevel = level
	}

	if flags.Changed("no-color") {
		config.NoColor = opts.noColor
	}

	if err := config.Validate(); err != nil {
		merr = multierror.Append(merr, err)
	}

	if err := merr.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("(cli-config) %w", err)
	}

	return config, nil
}

// session is the shared setup of all commands: logging, signals, profilers
// and a registered device.
type session struct {
	ctx    context.Context //nolint:containedctx
	cancel context.CancelFunc
	logs   *SlogManager
	app    *App

	stopSignals func()
	profilers   []*profiler
}

// startSession sets up a [session] and registers the completion device on
// the process-wide cell. It must be ended with [session.end].
func (opts *rootOptions) startSession(cmd *cobra.Command) (*session, error) {
	config, err := opts.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	s := &session{}
	s.ctx, s.cancel = context.WithCancel(cmd.Context())
	s.logs = setupLogging(opts.out, config.LogLevel, config.NoColor)
	s.stopSignals = setupSignalHandlers(s.cancel)
	s.profilers = []*profiler{
		startProfiler(s.ctx, profileCPU, opts.cpuProfile),
		startProfiler(s.ctx, profileAllocs, opts.memProfile),
	}

	s.app = NewApp(config, host.NewRegistry(config.MaxMinors), cell.Global())

	if err := s.app.Register(); err != nil {
		slog.Error("Failed to register the completion device.", "err", err)
		_ = s.end(false)

		return nil, err
	}

	return s, nil
}

// end tears down the device (if registered) and stops all session helpers.
func (s *session) end(registered bool) error {
	var err error

	if registered {
		if err = s.app.Teardown(context.WithoutCancel(s.ctx)); err != nil {
			slog.Error("Failed to tear down the completion device.", "err", err)
		}
	}

	s.cancel()
	for _, prof := range s.profilers {
		prof.Stop()
	}
	s.stopSignals()

	return err
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Park readers on the device and wake them with a single write",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.startSession(cmd)
			if err != nil {
				return err
			}

			runErr := s.app.RunScenario(s.ctx)
			if runErr != nil {
				slog.Error("Scenario failed.", "err", runErr)
			}

			if err := s.end(true); err != nil && runErr == nil {
				return err
			}

			return runErr
		},
	}
}

func newMonitorCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Register the device and watch it in an interactive terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.startSession(cmd)
			if err != nil {
				return err
			}

			uiHandler := ui.NewHandler(s.ctx, s.cancel, s.app, s.app)

			s.logs.AddHandler(uiHandlerName, newTintHandler(uiHandler.LogWriter, s.app.config.LogLevel, true))
			s.logs.RemoveHandler(terminalHandlerName)

			uiErr := uiHandler.Launch()

			s.logs.AddHandler(terminalHandlerName, newTintHandler(opts.out, s.app.config.LogLevel, s.app.config.NoColor))
			s.logs.RemoveHandler(uiHandlerName)

			// ctrl+c and signals cancel the session, which also ends the UI.
			if uiErr != nil && s.ctx.Err() != nil {
				uiErr = nil
			}

			if uiErr != nil {
				slog.Error("UI failure.", "err", uiErr)
			}

			if err := s.end(true); err != nil {
				return err
			}

			return uiErr
		},
	}
}

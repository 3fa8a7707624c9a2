package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"time"

	"github.com/core-tools/hsu-micromanage/pkg/config"
	"github.com/core-tools/hsu-micromanage/pkg/errors"
	"github.com/core-tools/hsu-micromanage/pkg/logcollection"
	"github.com/core-tools/hsu-micromanage/pkg/logging"
	"github.com/core-tools/hsu-micromanage/pkg/metrics"
	"github.com/core-tools/hsu-micromanage/pkg/process"
	"github.com/core-tools/hsu-micromanage/pkg/supervisor"
	"github.com/core-tools/hsu-micromanage/pkg/tui"

	flags "github.com/jessevdk/go-flags"
)

var version = "dev"

type flagOptions struct {
	Config          string        `short:"c" long:"config" default:"./example.json" description:"Path to the process list (JSON or YAML)"`
	LogFile         string        `long:"log-file" description:"Write the supervisor's own log to this file"`
	LogLevel        string        `long:"log-level" default:"info" description:"Log level: debug, info, warn, error"`
	LogFormat       string        `long:"log-format" default:"console" choice:"console" choice:"json" description:"Log format"`
	Headless        bool          `long:"headless" description:"Run without the terminal UI and print process output to stdout"`
	Timestamps      bool          `long:"timestamps" description:"Prefix headless output lines with a timestamp"`
	MetricsAddr     string        `long:"metrics-addr" description:"Serve Prometheus metrics on this address, e.g. :9090"`
	QueueCapacity   int           `long:"queue-capacity" default:"100" description:"Lines buffered between a process's readers and its log"`
	ShutdownTimeout time.Duration `long:"shutdown-timeout" default:"10s" description:"How long to wait for processes to exit on quit"`
	Check           bool          `long:"check" description:"Validate the configuration file and exit"`
	Version         bool          `long:"version" description:"Print the version and exit"`
}

func logConfig(opts flagOptions) logging.ZapConfig {
	config := logging.DefaultZapConfig()
	config.Level = opts.LogLevel
	config.Format = opts.LogFormat

	switch {
	case opts.LogFile != "":
		config.Output = opts.LogFile
	case opts.Headless:
		config.Output = "stderr"
	default:
		// Anything written to the terminal would corrupt the screen.
		config.Output = "discard"
	}
	return config
}

func validateOptions(opts flagOptions) error {
	if !logging.ValidLevel(opts.LogLevel) {
		return fmt.Errorf("invalid log level %q", opts.LogLevel)
	}
	if opts.QueueCapacity <= 0 {
		return fmt.Errorf("queue capacity must be positive, got %d", opts.QueueCapacity)
	}
	if opts.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %v", opts.ShutdownTimeout)
	}
	return nil
}

// configErrorMessage tells a missing config file apart from a broken one.
func configErrorMessage(filename string, err error) string {
	if errors.IsIOError(err) && stderrors.Is(err, os.ErrNotExist) {
		return fmt.Sprintf("Config file not found: %s", filename)
	}
	return fmt.Sprintf("Something went wrong reading the config file: %v", err)
}

func main() {
	var opts flagOptions
	var argv []string = os.Args[1:]
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	var err error
	_, err = parser.ParseArgs(argv)
	if err != nil {
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("micromanage %s\n", version)
		return
	}

	if err := validateOptions(opts); err != nil {
		fmt.Printf("Invalid options: %v\n", err)
		os.Exit(1)
	}

	if opts.Check {
		if err := config.ValidateConfigFile(opts.Config); err != nil {
			fmt.Println(configErrorMessage(opts.Config, err))
			os.Exit(1)
		}
		fmt.Printf("Configuration is valid: %s\n", opts.Config)
		return
	}

	zapLogger, err := logging.NewZapLogger(logConfig(opts))
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Close()

	sessionLogger := zapLogger.With("supervisor_pid", os.Getpid())
	logger := logging.NewLogger("module: micromanage , ", logging.LogFuncs{
		Debugf: sessionLogger.Debugf,
		Infof:  sessionLogger.Infof,
		Warnf:  sessionLogger.Warnf,
		Errorf: sessionLogger.Errorf,
	})

	logger.Infof("opts: %+v", opts)

	cfg, err := config.LoadConfigFromFile(opts.Config)
	if err != nil {
		fmt.Println(configErrorMessage(opts.Config, err))
		os.Exit(1)
	}

	if err := run(context.Background(), cfg, opts, logger); err != nil {
		logger.Errorf("Exiting with error: %v", err)
		zapLogger.Close()
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts flagOptions, logger logging.Logger) error {
	m := metrics.New()

	if opts.MetricsAddr != "" {
		server := metrics.NewServer(opts.MetricsAddr, m.Registry(), logger)
		if err := server.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warnf("Metrics server shutdown failed: %v", err)
			}
		}()
	}

	options := supervisor.Options{
		QueueCapacity: opts.QueueCapacity,
		Metrics:       m,
	}
	if opts.Headless {
		options.Outputs = []logcollection.OutputWriter{logcollection.NewWriterOutput(os.Stdout, opts.Timestamps)}
	}

	sup := supervisor.New(cfg.Processes, process.NewExecSpawner(logger), options, logger)

	if opts.Headless {
		return supervisor.RunHeadless(ctx, sup, supervisor.RunnerOptions{
			ShutdownTimeout: opts.ShutdownTimeout,
			Metrics:         m,
		}, logger)
	}

	if err := sup.RunAll(); err != nil {
		// Failed processes show up in the list; the rest keep running.
		logger.Warnf("Some processes failed to start: %v", err)
	}

	err := tui.Run(ctx, sup, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()
	if waitErr := sup.WaitAll(shutdownCtx); waitErr != nil {
		logger.Warnf("Processes still running after %v, giving up waiting", opts.ShutdownTimeout)
	}
	for _, line := range sup.Describe() {
		logger.Infof("Final state, %s", line)
	}

	return err
}

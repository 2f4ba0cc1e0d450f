// Command proxyprobe exercises a database endpoint behind a connection
// proxy: N independent client lanes issue reads and writes continuously,
// ride through induced failovers, and leave behind an event log, periodic
// console summaries, and an archived run result.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Konsultn-Engineering/proxyprobe/config"
	"github.com/Konsultn-Engineering/proxyprobe/eventlog"
	"github.com/Konsultn-Engineering/proxyprobe/fleet"
	"github.com/Konsultn-Engineering/proxyprobe/sink"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "proxyprobe: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Credentials commonly live in a local .env during development.
	_ = godotenv.Load()

	var (
		configPath     = flag.String("config", "", "YAML configuration file")
		lanes          = flag.Int("lanes", 0, "number of client lanes")
		opInterval     = flag.Duration("op-interval", 0, "pause between operation cycles")
		retryInterval  = flag.Duration("retry-interval", 0, "pause between reconnection attempts")
		reportInterval = flag.Duration("report-interval", 0, "pause between console summaries")
		duration       = flag.Duration("duration", 0, "stop after this long; 0 runs until interrupted")
		eventLogPath   = flag.String("event-log", "", "event sink file path")
		debug          = flag.Bool("debug", false, "verbose diagnostic logging")
		showVersion    = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("proxyprobe %s\n", version)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "lanes":
			cfg.Lanes = *lanes
		case "op-interval":
			cfg.OpInterval = *opInterval
		case "retry-interval":
			cfg.RetryInterval = *retryInterval
		case "report-interval":
			cfg.ReportInterval = *reportInterval
		case "duration":
			cfg.Duration = *duration
		case "event-log":
			cfg.EventLogPath = *eventLogPath
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	diag, err := newLogger(*debug)
	if err != nil {
		return err
	}
	defer func() { _ = diag.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, err := eventlog.Create(cfg.EventLogPath)
	if err != nil {
		return err
	}
	defer func() { _ = events.Close() }()

	notifier, archive := buildSinks(ctx, cfg, diag)

	coord := fleet.New(fleet.Options{
		Fleet: fleet.Config{
			Lanes:          cfg.Lanes,
			Table:          cfg.Table,
			OpInterval:     cfg.OpInterval,
			RetryInterval:  cfg.RetryInterval,
			ReportInterval: cfg.ReportInterval,
			Duration:       cfg.Duration,
		},
		Conn:     cfg.Database,
		Events:   events,
		Diag:     diag,
		Notifier: notifier,
		Archive:  archive,
	})

	diag.Info("proxyprobe starting",
		zap.String("version", version),
		zap.String("run_id", coord.RunID()),
		zap.String("endpoint", fmt.Sprintf("%s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)),
		zap.String("event_log", cfg.EventLogPath))

	return coord.Run(ctx)
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// buildSinks wires the optional AWS collaborators. Misconfiguration
// degrades to no-op sinks rather than blocking the exerciser: the run's
// purpose is the failover measurement, not the archival.
func buildSinks(ctx context.Context, cfg config.Config, diag *zap.Logger) (sink.Notifier, sink.Store) {
	var notifier sink.Notifier = sink.NopNotifier{}
	var archive sink.Store = sink.NopStore{}

	if cfg.AWS.Bucket == "" && cfg.AWS.TopicARN == "" {
		return notifier, archive
	}

	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	awsCfg, err := sink.LoadAWS(loadCtx, cfg.AWS.Region)
	if err != nil {
		diag.Warn("aws configuration unavailable, sinks disabled", zap.Error(err))
		return notifier, archive
	}

	if cfg.AWS.TopicARN != "" {
		deduped, err := sink.NewDedupeNotifier(sink.NewSNSNotifier(awsCfg, cfg.AWS.TopicARN), 128)
		if err != nil {
			diag.Warn("notifier disabled", zap.Error(err))
		} else {
			notifier = deduped
		}
	}
	if cfg.AWS.Bucket != "" {
		archive = sink.NewS3Store(awsCfg, cfg.AWS.Bucket)
	}
	return notifier, archive
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/goodtune/permashift/internal/config"
	"github.com/goodtune/permashift/internal/events"
	"github.com/goodtune/permashift/internal/journal"
	"github.com/goodtune/permashift/internal/metrics"
	"github.com/goodtune/permashift/internal/storage"
	"github.com/goodtune/permashift/internal/storage/bolt"
	"github.com/goodtune/permashift/internal/storage/redis"
	"github.com/goodtune/permashift/internal/systemd"
	"github.com/goodtune/permashift/internal/timeshift"
	"github.com/goodtune/permashift/internal/vdr/svdrp"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the permashift daemon",
	Long:  `Run the daemon: connect to VDR over SVDRP, listen for status events and manage the background timeshift session.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting permashift")

	// Check for systemd socket activation
	sysListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to check systemd sockets: %w", err)
	}
	if sysListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	clock := timeshift.RealClock{}

	// Storage and session journal
	var jrnl timeshift.Journal = timeshift.NopJournal{}
	var sessionJournal *journal.Journal
	var cleaner *journal.Cleaner
	if cfg.Storage.Type != "none" {
		store, err := openStorage(cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()

		sessionJournal = journal.New(store.Sessions(), clock, logger)
		jrnl = sessionJournal

		cleaner, err = journal.NewCleaner(store.Sessions(), cfg.Journal.RetentionDays, cfg.Journal.CleanupTime, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize journal cleaner: %w", err)
		}
		cleaner.Start()
		defer cleaner.Stop()
	} else {
		logger.Warn().Msg("Storage disabled, sessions will not survive a restart")
	}

	// SVDRP connection to VDR
	svdrpAddr := fmt.Sprintf("%s:%d", cfg.VDR.Host, cfg.VDR.SVDRPPort)
	client := svdrp.NewClient(svdrpAddr,
		config.ParseDuration(cfg.VDR.ConnectTimeout, 5*time.Second),
		config.ParseDuration(cfg.VDR.CommandTimeout, 10*time.Second),
		logger)
	if err := client.Connect(); err != nil {
		// VDR may still be booting; commands reconnect on demand.
		logger.Warn().Err(err).Str("addr", svdrpAddr).Msg("VDR not reachable yet")
	}
	defer client.Close()

	scheduler := svdrp.NewScheduler(client, logger)
	directory, err := svdrp.NewDirectory(client, cfg.VDR.ChannelCacheSize, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize channel directory: %w", err)
	}
	recordings := svdrp.NewIndex(client, logger)
	osd := svdrp.NewOSD(client, logger)

	// Timeshift controller and inactivity monitor
	settings := timeshift.Settings{
		Enabled:        cfg.Timeshift.Enabled,
		MaxLengthHours: cfg.Timeshift.MaxLengthHours,
		PausePriority:  cfg.Timeshift.PausePriority,
		PauseLifetime:  cfg.Timeshift.PauseLifetime,
	}
	controller := timeshift.NewController(scheduler, scheduler, recordings, directory, jrnl, clock, settings, logger)
	scheduler.SetSink(controller)

	sensor := events.NewSensor(clock, config.ParseDuration(cfg.Timeshift.UserInactiveAfter, 5*time.Minute))
	prompter := events.NewPrompter(osd, logger)
	monitor := timeshift.NewMonitor(controller, sensor, prompter,
		cfg.Timeshift.CheckIntervalTicks,
		config.ParseDuration(cfg.Timeshift.PromptTimeout, timeshift.DefaultPromptTimeout),
		logger)

	// Pick up a session a previous daemon life left behind
	if sessionJournal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		active, err := sessionJournal.Recover(ctx)
		cancel()
		if err != nil {
			logger.Error().Err(err).Msg("Reading persisted session failed")
		} else if active != nil {
			controller.Recover(*active)
		}
	}

	// Event listener with the heartbeat driving monitor and watchdog
	heartbeat := func() {
		monitor.Tick()
		if systemd.IsSystemdService() {
			_ = systemd.NotifyWatchdog()
		}
	}
	eventsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.EventsPort)
	listener := events.NewListener(eventsAddr, controller, heartbeat, sensor, prompter, logger)
	if sysListeners.Events != nil {
		listener.SetListener(sysListeners.Events)
	}
	if err := listener.Start(); err != nil {
		return fmt.Errorf("failed to start event listener: %w", err)
	}

	// Metrics server
	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, logger)
	if sysListeners.Metrics != nil {
		metricsServer.SetListener(sysListeners.Metrics)
	}
	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	// Notify systemd that we're ready
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}

	logger.Info().Msg("Permashift is running")

	// Wait for signals (shutdown or reload)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	// Signal handling loop
	for {
		sig := <-sigChan

		switch sig {
		case syscall.SIGHUP:
			logger.Info().Msg("SIGHUP received, reloading timeshift settings...")
			newCfg, err := config.Load(configPath)
			if err != nil {
				logger.Error().Err(err).Msg("Failed to reload configuration")
				continue
			}
			// Settings are owned by the dispatch goroutine
			listener.Do(func() {
				controller.SetEnabled(newCfg.Timeshift.Enabled)
				controller.SetMaxLengthHours(newCfg.Timeshift.MaxLengthHours)
			})
			logger.Info().Msg("Timeshift settings reloaded")
			continue

		case os.Interrupt, syscall.SIGTERM:
			logger.Info().Msg("Shutdown signal received, gracefully stopping...")
			// Break out of loop to shutdown
		}

		// Only reached on shutdown signals
		break
	}

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	// Stop the dispatch loop first so the controller has a single owner
	// again, then end the session.
	listener.Stop()
	controller.Shutdown()

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping metrics server")
	}

	logger.Info().Msg("Permashift stopped")

	return nil
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "bolt", "":
		return bolt.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "trace":
		level = zerolog.TraceLevel
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

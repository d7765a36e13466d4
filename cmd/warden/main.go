package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lucid-vigil/warden/pkg/actions"
	"github.com/lucid-vigil/warden/pkg/api"
	"github.com/lucid-vigil/warden/pkg/config"
	"github.com/lucid-vigil/warden/pkg/defense"
	"github.com/lucid-vigil/warden/pkg/events"
	"github.com/lucid-vigil/warden/pkg/logger"
	"github.com/lucid-vigil/warden/pkg/playbook"
	"github.com/lucid-vigil/warden/pkg/purge"
	"github.com/lucid-vigil/warden/pkg/response"
	"github.com/lucid-vigil/warden/pkg/scheduler"
	"github.com/lucid-vigil/warden/pkg/store"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration first
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger based on config
	logger.InitLogger(cfg.LogLevel)

	log.Info().Msg("Warden console starting...")
	log.Info().Msgf("Configuration loaded: LogLevel=%s, APIPort=%s, DataDir=%s", cfg.LogLevel, cfg.APIPort, cfg.DataDir)

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())

	// Set up a channel to listen for OS signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Goroutine to handle graceful shutdown
	go func() {
		sig := <-sigChan
		log.Info().Msgf("Received signal: %s. Shutting down gracefully...", sig)
		cancel()
	}()

	// Durable custody/audit/record storage
	st, err := store.New(cfg.DataDir, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}

	// Playbooks: load once, then watch the file for edits
	playbooks := playbook.NewStore(cfg.PlaybookFile, log.Logger)
	if err := playbooks.Load(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load playbooks")
	}
	if err := playbooks.Watch(ctx); err != nil {
		log.Error().Err(err).Msg("Playbook watching unavailable, edits require a restart")
	}

	// Classifier events flow through the bus into the responder
	dispatcher := actions.NewDispatcher(noopSender{}, st, cfg.Dispatch.Enabled, log.Logger)
	responder := response.NewResponder(defense.NewEngine(), playbooks, dispatcher, st, cfg.Dispatch.AllowAutoLock, log.Logger)

	bus := events.NewBus(log.Logger, cfg.EventBuffer)
	bus.Subscribe(responder)
	bus.Start(ctx)

	// Start API server in a goroutine
	srv := api.NewServer(st, cfg.Retention, log.Logger)
	go srv.Start(cfg.APIPort)

	// Initialize and start the scheduler
	sched := scheduler.NewScheduler(cfg)
	sched.RegisterWorker(purge.NewWorker(st, cfg.Retention, log.Logger))
	sched.Start(ctx)

	<-ctx.Done()

	log.Info().Msg("Warden console stopped.")
	time.Sleep(1 * time.Second) // Give some time for cleanup
}

// noopSender stands in for the device delivery channel until a transport is
// configured. Every send succeeds locally and is visible in the audit log.
type noopSender struct{}

func (noopSender) Send(ctx context.Context, deviceID, command string, payload map[string]interface{}) error {
	log.Info().Str("device_id", deviceID).Str("command", command).Msg("Command queued (no transport configured).")
	return nil
}

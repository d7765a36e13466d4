package scheduler

import (
	"context"
	"time"

	"github.com/lucid-vigil/warden/pkg/config"
	"github.com/rs/zerolog/log"
)

// Worker defines the interface for any background job the scheduler runs.
type Worker interface {
	Name() string
	Run(ctx context.Context)
}

// Scheduler manages the registration and execution of background workers.
type Scheduler struct {
	workers []Worker
	config  *config.Config
}

// NewScheduler creates and returns a new Scheduler instance.
func NewScheduler(cfg *config.Config) *Scheduler {
	return &Scheduler{
		config: cfg,
	}
}

// RegisterWorker adds a worker to the scheduler's list.
func (s *Scheduler) RegisterWorker(w Worker) {
	s.workers = append(s.workers, w)
	log.Info().Msgf("Worker '%s' registered.", w.Name())
}

// Start launches all enabled workers with their configured intervals.
func (s *Scheduler) Start(ctx context.Context) {
	log.Info().Msg("Scheduler starting...")

	for _, w := range s.workers {
		workerConfig := s.config.GetWorkerConfig(w.Name())
		if workerConfig == nil || !workerConfig.Enabled {
			log.Info().Msgf("Worker '%s' is disabled or not configured, skipping.", w.Name())
			continue
		}

		duration, err := time.ParseDuration(workerConfig.Interval)
		if err != nil {
			log.Error().Err(err).Msgf("Invalid interval for worker '%s', skipping.", w.Name())
			continue
		}

		log.Info().Msgf("Starting worker '%s' with interval %s", w.Name(), duration)
		go s.runWorker(ctx, w, duration)
	}

	log.Info().Msg("All configured workers started.")
}

func (s *Scheduler) runWorker(ctx context.Context, w Worker, interval time.Duration) {
	// Run immediately on start
	log.Debug().Msgf("Running worker '%s' for the first time.", w.Name())
	w.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			log.Debug().Msgf("Running worker '%s'.", w.Name())
			w.Run(ctx)
		case <-ctx.Done():
			log.Info().Msgf("Worker '%s' received shutdown signal.", w.Name())
			return
		}
	}
}

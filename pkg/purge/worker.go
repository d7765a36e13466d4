package purge

import (
	"context"
	"time"

	"github.com/lucid-vigil/warden/pkg/evidence"
	"github.com/lucid-vigil/warden/pkg/metrics"
	"github.com/rs/zerolog"
)

// RecordSource is the read side the worker plans against.
type RecordSource interface {
	Accounts() ([]string, error)
	ListRecords(ctx context.Context, accountID string) ([]evidence.Record, error)
}

// Worker periodically builds a purge plan for every account and publishes
// the summary. It never executes deletions: execution stays behind the
// operator gate (API or CLI), the worker only keeps the preview fresh.
type Worker struct {
	source RecordSource
	policy Policy
	logger zerolog.Logger
}

// NewWorker creates the purge planning worker.
func NewWorker(source RecordSource, policy Policy, logger zerolog.Logger) *Worker {
	return &Worker{
		source: source,
		policy: policy,
		logger: logger.With().Str("component", "purge_worker").Logger(),
	}
}

// Name implements scheduler.Worker.
func (w *Worker) Name() string {
	return "purge_planner"
}

// Run implements scheduler.Worker.
func (w *Worker) Run(ctx context.Context) {
	accounts, err := w.source.Accounts()
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to list accounts.")
		return
	}

	now := time.Now().UTC()
	totalDelete := 0
	for _, account := range accounts {
		records, err := w.source.ListRecords(ctx, account)
		if err != nil {
			w.logger.Error().Err(err).Str("account_id", account).Msg("Failed to list records.")
			continue
		}
		plan, err := BuildPlan(records, w.policy, now)
		if err != nil {
			w.logger.Error().Err(err).Str("account_id", account).Msg("Failed to build purge plan.")
			continue
		}
		totalDelete += plan.Summary.DeleteCount
		w.logger.Info().
			Str("account_id", account).
			Int("delete_eligible", plan.Summary.DeleteCount).
			Int("protected", plan.Summary.KeepCount).
			Str("cutoff", plan.Summary.Cutoff).
			Msg("Purge plan refreshed.")
	}
	metrics.PurgePlannedDeletes.Set(float64(totalDelete))
}

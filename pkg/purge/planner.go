// Package purge decides which evidence records may be deleted under a
// retention policy. Planning is pure and side-effect free; execution is the
// only place deletions happen, and the two are deliberately separate so an
// operator can always preview a plan before committing to it.
package purge

import (
	"context"
	"errors"
	"time"

	"github.com/lucid-vigil/warden/pkg/evidence"
	"github.com/rs/zerolog"
)

const millisPerDay = 86400000

// Policy configures retention. LegalHoldIDs always win over age; CRITICAL
// severity records survive the cutoff when KeepCritical is set.
type Policy struct {
	RetentionDays int      `json:"retentionDays" mapstructure:"retention_days"`
	KeepCritical  bool     `json:"keepCritical" mapstructure:"keep_critical"`
	LegalHoldIDs  []string `json:"legalHoldIds" mapstructure:"legal_hold_ids"`
}

// Summary is the operator-facing digest of a plan.
type Summary struct {
	DeleteCount int    `json:"deleteCount"`
	KeepCount   int    `json:"keepCount"`
	Cutoff      string `json:"cutoff"`
}

// Plan partitions every evidence record into delete-eligible and protected.
type Plan struct {
	Policy   *Policy           `json:"policy"`
	ToDelete []evidence.Record `json:"toDelete"`
	ToKeep   []evidence.Record `json:"toKeep"`
	Summary  Summary           `json:"summary"`
}

// Result aggregates an execution run. Failures are counted, never
// propagated per item.
type Result struct {
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// Deleter removes one evidence record durably. Supplied by the storage
// layer; errors are isolated per record.
type Deleter func(ctx context.Context, recordID string) error

// BuildPlan partitions records under policy as of now. A record lands in
// ToDelete only when its timestamp is before the cutoff, it is not legal
// held, and it is not a KeepCritical-protected CRITICAL record. Records
// with unparsable timestamps normalize to epoch 0 (see evidence.EpochMillis)
// and are therefore always past the cutoff. BuildPlan is pure: it never
// deletes anything.
func BuildPlan(records []evidence.Record, policy Policy, now time.Time) (Plan, error) {
	if policy.RetentionDays < 1 {
		return Plan{}, errors.New("purge: retention_days must be at least 1")
	}

	cutoffMs := now.UnixMilli() - int64(policy.RetentionDays)*millisPerDay

	held := make(map[string]struct{}, len(policy.LegalHoldIDs))
	for _, id := range policy.LegalHoldIDs {
		held[id] = struct{}{}
	}

	plan := Plan{
		Policy:   &policy,
		ToDelete: []evidence.Record{},
		ToKeep:   []evidence.Record{},
	}
	for _, rec := range records {
		ts := evidence.EpochMillis(rec.Timestamp)
		_, onHold := held[rec.ID]
		protected := policy.KeepCritical && rec.Severity == evidence.SeverityCritical
		if ts < cutoffMs && !onHold && !protected {
			plan.ToDelete = append(plan.ToDelete, rec)
		} else {
			plan.ToKeep = append(plan.ToKeep, rec)
		}
	}

	plan.Summary = Summary{
		DeleteCount: len(plan.ToDelete),
		KeepCount:   len(plan.ToKeep),
		Cutoff:      time.UnixMilli(cutoffMs).UTC().Format(time.RFC3339),
	}
	return plan, nil
}

// ExecutePlan deletes every record in the plan through deleteByID. A failed
// deletion increments Failed and does not stop the remaining deletions; no
// retries happen here. The plan itself must be structurally valid (built by
// BuildPlan) or ExecutePlan rejects it outright.
func ExecutePlan(ctx context.Context, plan Plan, deleteByID Deleter, logger zerolog.Logger) (Result, error) {
	if plan.Policy == nil {
		return Result{}, errors.New("purge: plan has no policy, refusing to execute")
	}
	if deleteByID == nil {
		return Result{}, errors.New("purge: no deleter supplied")
	}

	var res Result
	for _, rec := range plan.ToDelete {
		if err := deleteByID(ctx, rec.ID); err != nil {
			res.Failed++
			logger.Error().Err(err).Str("record_id", rec.ID).Msg("Evidence deletion failed")
			continue
		}
		res.Deleted++
	}

	logger.Info().
		Int("deleted", res.Deleted).
		Int("failed", res.Failed).
		Str("cutoff", plan.Summary.Cutoff).
		Msg("Purge execution finished")
	return res, nil
}

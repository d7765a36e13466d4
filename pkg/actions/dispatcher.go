// Package actions pushes decided defense actions to a child's device and
// records the outcome of every command as an audit row. The dispatcher only
// delivers what the rule engine decided; it never adds or reorders actions.
package actions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/lucid-vigil/warden/pkg/defense"
	"github.com/lucid-vigil/warden/pkg/evidence"
	"github.com/lucid-vigil/warden/pkg/metrics"
	"github.com/rs/zerolog"
)

// CommandSender enqueues one command for delivery to a remote device. Retry
// and ack semantics live behind this boundary, not here.
type CommandSender interface {
	Send(ctx context.Context, deviceID, command string, payload map[string]interface{}) error
}

// AuditSink durably records command outcomes.
type AuditSink interface {
	AppendAudit(accountID string, audit evidence.CommandAudit) error
}

// Dispatcher delivers defense actions and audits each one.
type Dispatcher struct {
	sender  CommandSender
	audits  AuditSink
	enabled bool
	logger  zerolog.Logger
}

// Result counts one dispatch run.
type Result struct {
	Sent   int
	Failed int
}

// NewDispatcher creates a dispatcher. When enabled is false every dispatch
// is a no-op that logs and returns zero counts; nothing is sent or audited.
func NewDispatcher(sender CommandSender, audits AuditSink, enabled bool, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sender:  sender,
		audits:  audits,
		enabled: enabled,
		logger:  logger.With().Str("component", "dispatcher").Logger(),
	}
}

// IsEnabled reports whether dispatching is live.
func (d *Dispatcher) IsEnabled() bool {
	return d.enabled
}

// Dispatch sends each action to the device in ranked order. A failed send
// is audited as failed and does not stop the remaining actions.
func (d *Dispatcher) Dispatch(ctx context.Context, accountID, incidentID, deviceID string, acts []defense.Action) Result {
	if !d.enabled {
		d.logger.Info().Str("device_id", deviceID).Int("actions", len(acts)).
			Msg("Dispatch disabled, skipping.")
		return Result{}
	}

	var res Result
	for _, act := range acts {
		audit := evidence.CommandAudit{
			ID:         newAuditID(),
			IncidentID: incidentID,
			DeviceID:   deviceID,
			Command:    act.Command,
			Payload:    act.Payload,
			Status:     evidence.AuditQueued,
			CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		}

		err := d.sender.Send(ctx, deviceID, act.Command, act.Payload)
		if err != nil {
			audit.Status = evidence.AuditFailed
			audit.Error = err.Error()
			res.Failed++
			metrics.CommandsDispatched.WithLabelValues(act.Command, evidence.AuditFailed).Inc()
			d.logger.Error().Err(err).Str("command", act.Command).Str("device_id", deviceID).
				Msg("Command delivery failed.")
		} else {
			audit.Status = evidence.AuditDone
			res.Sent++
			metrics.CommandsDispatched.WithLabelValues(act.Command, evidence.AuditDone).Inc()
			d.logger.Info().Str("command", act.Command).Str("device_id", deviceID).
				Str("priority", act.Priority.String()).Msg("Command dispatched.")
		}

		if auditErr := d.audits.AppendAudit(accountID, audit); auditErr != nil {
			d.logger.Error().Err(auditErr).Str("command", act.Command).
				Msg("Failed to record command audit.")
		}
	}
	return res
}

func newAuditID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "aud-" + time.Now().UTC().Format("20060102150405.000000000")
	}
	return "aud-" + hex.EncodeToString(b)
}

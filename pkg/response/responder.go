// Package response is the glue between a threat classification and the
// console's reaction: evaluate the rule engine with the current playbooks,
// dispatch the decided commands, and open a custody chain entry when the
// incident is severe enough to matter as evidence.
package response

import (
	"context"
	"fmt"
	"time"

	"github.com/lucid-vigil/warden/pkg/actions"
	"github.com/lucid-vigil/warden/pkg/custody"
	"github.com/lucid-vigil/warden/pkg/defense"
	"github.com/lucid-vigil/warden/pkg/events"
	"github.com/lucid-vigil/warden/pkg/evidence"
	"github.com/rs/zerolog"
)

// PlaybookSource supplies the playbooks active at evaluation time.
type PlaybookSource interface {
	Current() []defense.Playbook
}

// CustodyAppender is the append-only custody write sink.
type CustodyAppender interface {
	AppendCustody(accountID string, partial custody.Event) (custody.Event, error)
}

// Responder handles threat events end to end.
type Responder struct {
	engine        *defense.Engine
	playbooks     PlaybookSource
	dispatcher    *actions.Dispatcher
	ledger        CustodyAppender
	allowAutoLock bool
	logger        zerolog.Logger
}

// NewResponder wires a responder. allowAutoLock is the account-level switch
// from configuration; per-event confidence gating still applies on top.
func NewResponder(engine *defense.Engine, playbooks PlaybookSource, dispatcher *actions.Dispatcher, ledger CustodyAppender, allowAutoLock bool, logger zerolog.Logger) *Responder {
	return &Responder{
		engine:        engine,
		playbooks:     playbooks,
		dispatcher:    dispatcher,
		ledger:        ledger,
		allowAutoLock: allowAutoLock,
		logger:        logger.With().Str("component", "responder").Logger(),
	}
}

// Handle reacts to one classification. SAFE classifications are recorded in
// the log only. Severity HIGH and above additionally opens a custody CAPTURE
// event for the evidence record, so escalated incidents enter the ledger the
// moment they are acted on.
func (r *Responder) Handle(ctx context.Context, event events.ThreatEvent) error {
	if event.Category == evidence.CategorySafe {
		r.logger.Debug().Str("event_id", event.ID).Msg("Safe classification, no response.")
		return nil
	}

	opts := defense.Options{
		AllowAutoLock: r.allowAutoLock,
		Confidence:    event.Confidence,
	}
	acts := r.engine.Evaluate(event.Category, event.Severity, r.playbooks.Current(), opts)

	r.logger.Info().
		Str("event_id", event.ID).
		Str("category", string(event.Category)).
		Str("severity", event.Severity.String()).
		Int("actions", len(acts)).
		Msg("Threat evaluated.")

	res := r.dispatcher.Dispatch(ctx, event.AccountID, event.IncidentID, event.DeviceID, acts)

	if event.Severity.Weight() >= evidence.SeverityHigh.Weight() {
		if err := r.escalate(event, acts, res); err != nil {
			return fmt.Errorf("response: escalate event %s: %w", event.ID, err)
		}
	}
	return nil
}

func (r *Responder) escalate(event events.ThreatEvent, acts []defense.Action, res actions.Result) error {
	commands := make([]interface{}, len(acts))
	for i, a := range acts {
		commands[i] = a.Command
	}
	_, err := r.ledger.AppendCustody(event.AccountID, custody.Event{
		ID:         "cust-" + event.ID,
		EvidenceID: event.EvidenceID,
		IncidentID: event.IncidentID,
		Actor:      "warden-responder",
		Action:     custody.ActionCapture,
		EventKey:   "auto_response",
		CreatedAt:  event.OccurredAt.UTC().Format(time.RFC3339),
		Payload: map[string]interface{}{
			"category":  string(event.Category),
			"severity":  event.Severity.String(),
			"commands":  commands,
			"sent":      res.Sent,
			"failed":    res.Failed,
			"device_id": event.DeviceID,
		},
	})
	return err
}

// Package custody implements the hash-chained chain-of-custody ledger.
// Events are append-only and hash-linked: each event's hash covers its own
// content plus the hash of the previous event, so altering or reordering any
// historical event breaks verification. The ledger never touches storage;
// persistence is the caller's concern.
package custody

import (
	"fmt"

	"github.com/lucid-vigil/warden/pkg/canonical"
)

// GenesisHash is the prev_hash of the first event in every chain. It is a
// fixed literal that can never collide with a 64 character lowercase hex
// digest.
const GenesisHash = "GENESIS_BLOCK"

// Common custody actions. Action is free text; these are the spellings the
// console itself writes.
const (
	ActionCapture = "CAPTURE"
	ActionExport  = "EXPORT"
	ActionVerify  = "VERIFY"
)

// Event is one immutable entry in a per-evidence custody chain.
type Event struct {
	ID         string                 `json:"id"`
	EvidenceID string                 `json:"evidenceId"`
	IncidentID string                 `json:"incidentId,omitempty"`
	Actor      string                 `json:"actor"`
	Action     string                 `json:"action"`
	EventKey   string                 `json:"eventKey"`
	CreatedAt  string                 `json:"createdAt"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
	PrevHash   string                 `json:"prevHash"`
	Hash       string                 `json:"hash"`
}

// Append links partial to the chain ending at prev and computes its content
// hash. A nil prev starts a fresh chain at the genesis sentinel. The
// returned event is complete; writing it durably is up to the caller.
// Callers must append in true chronological order — the ledger trusts the
// caller's sequence and never re-sorts.
func Append(prev *Event, partial Event) (Event, error) {
	if prev != nil {
		partial.PrevHash = prev.Hash
	} else {
		partial.PrevHash = GenesisHash
	}
	hash, err := canonical.HashHex(hashFields(partial))
	if err != nil {
		return Event{}, fmt.Errorf("custody: hash event %s: %w", partial.ID, err)
	}
	partial.Hash = hash
	return partial, nil
}

// Verify recomputes every link and content hash of an ordered chain. It
// returns true vacuously for an empty chain. A false result is a terminal
// finding: the chain must not be trusted and there is no repair operation.
// Verify is pure and performs no I/O.
func Verify(events []Event) bool {
	for i, ev := range events {
		expectedPrev := GenesisHash
		if i > 0 {
			expectedPrev = events[i-1].Hash
		}
		if ev.PrevHash != expectedPrev {
			return false
		}
		computed, err := canonical.HashHex(hashFields(ev))
		if err != nil {
			return false
		}
		if computed != ev.Hash {
			return false
		}
	}
	return true
}

// hashFields is the exact field set covered by an event's content hash.
// Optional fields hash as null rather than being omitted, so absence is
// distinguishable from empty.
func hashFields(ev Event) map[string]interface{} {
	var incident interface{}
	if ev.IncidentID != "" {
		incident = ev.IncidentID
	}
	var payload interface{}
	if ev.Payload != nil {
		payload = ev.Payload
	}
	var reason interface{}
	if ev.Reason != "" {
		reason = ev.Reason
	}
	return map[string]interface{}{
		"custody_id":  ev.ID,
		"evidence_id": ev.EvidenceID,
		"incident_id": incident,
		"actor":       ev.Actor,
		"action":      ev.Action,
		"event_key":   ev.EventKey,
		"created_at":  ev.CreatedAt,
		"payload":     payload,
		"reason":      reason,
		"prev_hash":   ev.PrevHash,
	}
}

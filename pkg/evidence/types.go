// Package evidence holds the domain types shared by the custody ledger,
// manifest builder, purge planner and rule engine: threat categories, the
// ordered severity scale, captured evidence records and device command
// audits, plus the single timestamp normalization point for documents that
// arrive from the hosted document store.
package evidence

import (
	"encoding/json"
	"fmt"
	"time"
)

// Category classifies a captured threat. SAFE is the sentinel emitted by the
// upstream classifier for benign content.
type Category string

const (
	CategorySafe               Category = "SAFE"
	CategoryPredator           Category = "PREDATOR"
	CategorySexualExploitation Category = "SEXUAL_EXPLOITATION"
	CategoryBullying           Category = "BULLYING"
	CategorySelfHarm           Category = "SELF_HARM"
	CategoryBlackmail          Category = "BLACKMAIL"
	CategoryScam               Category = "SCAM"
	CategoryViolence           Category = "VIOLENCE"
	CategoryTamper             Category = "TAMPER"
)

// Severity is the ordered threat scale. The integer backing defines the
// total order used for threshold comparisons and priority sorting; string
// comparison is never used.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "LOW",
	SeverityMedium:   "MEDIUM",
	SeverityHigh:     "HIGH",
	SeverityCritical: "CRITICAL",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Weight returns the integer used for minimum-severity threshold checks
// (LOW=1 .. CRITICAL=4).
func (s Severity) Weight() int {
	return int(s)
}

// ParseSeverity maps the wire spelling to a Severity.
func ParseSeverity(name string) (Severity, error) {
	for sev, n := range severityNames {
		if n == name {
			return sev, nil
		}
	}
	return 0, fmt.Errorf("evidence: unknown severity %q", name)
}

// MarshalJSON encodes the severity by name so stored records stay readable.
func (s Severity) MarshalJSON() ([]byte, error) {
	name, ok := severityNames[s]
	if !ok {
		return nil, fmt.Errorf("evidence: cannot marshal severity %d", int(s))
	}
	return json.Marshal(name)
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	sev, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = sev
	return nil
}

// Record is one captured incident artifact. Timestamp is immutable once
// written; records are deleted only by the purge planner's execute step or
// an explicit manual delete.
type Record struct {
	ID          string   `json:"id"`
	ChildID     string   `json:"childId"`
	ChildName   string   `json:"childName,omitempty"`
	Platform    string   `json:"platform"`
	Content     string   `json:"content"`
	ImageRef    string   `json:"imageRef,omitempty"`
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
	Timestamp   string   `json:"timestamp"`
	AIAnalysis  string   `json:"aiAnalysis,omitempty"`
	ActionTaken string   `json:"actionTaken,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
}

// CommandAudit records one command issued to a device and its outcome.
type CommandAudit struct {
	ID         string                 `json:"id"`
	IncidentID string                 `json:"incidentId,omitempty"`
	DeviceID   string                 `json:"deviceId"`
	Command    string                 `json:"command"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	Status     string                 `json:"status"` // queued, done, failed
	Error      string                 `json:"error,omitempty"`
	CreatedAt  string                 `json:"createdAt"`
}

// Command audit statuses.
const (
	AuditQueued = "queued"
	AuditDone   = "done"
	AuditFailed = "failed"
)

// EpochMillis parses an ISO-8601 timestamp to Unix milliseconds. Unparsable
// input returns 0, which sorts earliest and falls before any realistic
// retention cutoff. The purge planner depends on this exact fallback:
// a record with a broken timestamp is delete-eligible unless otherwise
// protected. Do not change it to a "never delete" default.
func EpochMillis(ts string) int64 {
	if ts == "" {
		return 0
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}

// DocTimestamp extracts the best-effort timestamp of a raw document, in Unix
// milliseconds. Field preference is createdAt, then created_at, then
// timestamp; values may be ISO-8601 strings or numeric epoch milliseconds.
// Missing or unparsable timestamps return 0 so such documents sort earliest.
func DocTimestamp(doc map[string]interface{}) int64 {
	for _, field := range []string{"createdAt", "created_at", "timestamp"} {
		raw, ok := doc[field]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case string:
			return EpochMillis(v)
		case float64:
			return int64(v)
		case int64:
			return v
		case int:
			return int64(v)
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return n
			}
			return 0
		default:
			return 0
		}
	}
	return 0
}

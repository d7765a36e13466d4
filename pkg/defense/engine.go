// Package defense maps a threat classification onto a ranked, deduplicated
// set of device commands. Evaluation is deterministic and side-effect free:
// the engine only decides, dispatching belongs to pkg/actions.
package defense

import (
	"fmt"
	"sort"

	"github.com/lucid-vigil/warden/pkg/evidence"
)

// Device command names understood by the remote agent.
const (
	CmdLockDevice         = "lockDevice"
	CmdLockscreenBlackout = "lockscreenBlackout"
	CmdSiren              = "siren"
	CmdScreenshotCapture  = "screenshotCapture"
	CmdWalkieTalkieEnable = "walkieTalkieEnable"
	CmdCutInternet        = "cutInternet"
	CmdNotifyParent       = "notifyParent"
	CmdLiveCameraRequest  = "liveCameraRequest"
	CmdBlockApp           = "blockApp"
	CmdDisableHardware    = "disableHardware"
)

// MinAutoLockConfidence gates lock-class commands: classifications below
// this confidence must never autonomously lock a child's device.
const MinAutoLockConfidence = 70.0

// Action is one candidate device command. Priority reuses the ordered
// severity scale; it ranks actions within a single evaluation and is never
// compared across categories.
type Action struct {
	ID       string                 `json:"id"`
	Label    string                 `json:"label"`
	Command  string                 `json:"command"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
	Priority evidence.Severity      `json:"priority"`
}

// Options tunes a single evaluation.
type Options struct {
	// AllowAutoLock permits lock-class commands in the result. Off means
	// the engine only ever suggests non-lock actions.
	AllowAutoLock bool
	// Confidence is the classifier's confidence for this evaluation, 0-100.
	// Nil means the classification is trusted and does not gate anything.
	Confidence *float64
}

// DefaultOptions returns the options used when the caller has no opinion:
// auto-lock allowed, no confidence gate.
func DefaultOptions() Options {
	return Options{AllowAutoLock: true}
}

// Engine evaluates threat classifications against the built-in rules plus
// any organization playbooks.
type Engine struct{}

// NewEngine returns a rule engine with the default rule set.
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate computes the ranked, deduplicated action list for one
// classification. Playbook actions layer in front of the base rules; when
// two actions share a command name the first wins, so playbooks override
// the built-ins for that command. Lock-class commands are stripped when
// auto-lock is disallowed or confidence falls below MinAutoLockConfidence.
// The result is sorted by descending priority; ties keep merge order.
// Evaluate never fails for a valid classification: categories without a
// rule set fall back to the notify-parent action alone.
func (e *Engine) Evaluate(category evidence.Category, severity evidence.Severity, playbooks []Playbook, opts Options) []Action {
	merged := make([]Action, 0, 8)
	seen := make(map[string]struct{})

	add := func(a Action) {
		if _, dup := seen[a.Command]; dup {
			return
		}
		seen[a.Command] = struct{}{}
		merged = append(merged, a)
	}

	for _, pb := range playbooks {
		if !pb.Enabled || pb.Category != category {
			continue
		}
		if pb.MinSeverity.Weight() > severity.Weight() {
			continue
		}
		for _, pa := range pb.Actions {
			if !pa.Enabled {
				continue
			}
			add(materialize(pb.ID, pa))
		}
	}

	for _, a := range baseActions(category, severity) {
		add(a)
	}

	filtered := merged[:0]
	for _, a := range merged {
		if isLockClass(a.Command) && !lockAllowed(opts) {
			continue
		}
		filtered = append(filtered, a)
	}

	// Stable sort keeps ties in merge order.
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Priority.Weight() > filtered[j].Priority.Weight()
	})
	return filtered
}

func isLockClass(command string) bool {
	return command == CmdLockDevice || command == CmdLockscreenBlackout
}

func lockAllowed(opts Options) bool {
	if !opts.AllowAutoLock {
		return false
	}
	if opts.Confidence != nil && *opts.Confidence < MinAutoLockConfidence {
		return false
	}
	return true
}

// baseActions is the hand-authored rule table. Severity weight is only used
// for thresholds inside a category (the bullying soft-lock), never for
// ranking across categories.
func baseActions(category evidence.Category, severity evidence.Severity) []Action {
	var out []Action
	switch category {
	case evidence.CategoryPredator, evidence.CategorySexualExploitation:
		out = []Action{
			baseAction(category, CmdLockDevice, "Emergency device lock", evidence.SeverityCritical,
				map[string]interface{}{"mode": "emergency"}),
			baseAction(category, CmdLockscreenBlackout, "Black out lockscreen", evidence.SeverityCritical, nil),
			baseAction(category, CmdSiren, "Sound device siren", evidence.SeverityHigh, nil),
			baseAction(category, CmdScreenshotCapture, "Capture screenshot", evidence.SeverityHigh, nil),
			baseAction(category, CmdWalkieTalkieEnable, "Open walkie-talkie channel", evidence.SeverityHigh, nil),
		}
	case evidence.CategoryBullying:
		out = []Action{
			baseAction(category, CmdScreenshotCapture, "Capture screenshot", evidence.SeverityHigh, nil),
		}
		if severity.Weight() >= evidence.SeverityHigh.Weight() {
			out = append(out, baseAction(category, CmdLockDevice, "Soft device lock", evidence.SeverityHigh,
				map[string]interface{}{"mode": "soft"}))
		}
	case evidence.CategorySelfHarm, evidence.CategoryBlackmail:
		out = []Action{
			baseAction(category, CmdLockDevice, "Emergency device lock", evidence.SeverityCritical,
				map[string]interface{}{"mode": "emergency"}),
			baseAction(category, CmdLockscreenBlackout, "Black out lockscreen", evidence.SeverityCritical, nil),
			baseAction(category, CmdScreenshotCapture, "Capture screenshot", evidence.SeverityCritical, nil),
		}
	case evidence.CategoryScam:
		out = []Action{
			baseAction(category, CmdCutInternet, "Cut internet access", evidence.SeverityHigh, nil),
			baseAction(category, CmdScreenshotCapture, "Capture screenshot", evidence.SeverityMedium, nil),
		}
	case evidence.CategoryViolence:
		out = []Action{
			baseAction(category, CmdLockDevice, "Lock device", evidence.SeverityHigh, nil),
			baseAction(category, CmdSiren, "Sound device siren", evidence.SeverityHigh, nil),
			baseAction(category, CmdScreenshotCapture, "Capture screenshot", evidence.SeverityHigh, nil),
		}
	case evidence.CategoryTamper:
		out = []Action{
			baseAction(category, CmdLockDevice, "Lock device", evidence.SeverityHigh, nil),
			baseAction(category, CmdCutInternet, "Cut internet access", evidence.SeverityHigh, nil),
			baseAction(category, CmdScreenshotCapture, "Capture screenshot", evidence.SeverityHigh, nil),
		}
	}

	out = append(out, baseAction(category, CmdNotifyParent, "Notify parent", evidence.SeverityMedium, nil))
	return out
}

func baseAction(category evidence.Category, command, label string, priority evidence.Severity, payload map[string]interface{}) Action {
	return Action{
		ID:       fmt.Sprintf("base-%s-%s", category, command),
		Label:    label,
		Command:  command,
		Payload:  payload,
		Priority: priority,
	}
}

package defense

import (
	"fmt"

	"github.com/lucid-vigil/warden/pkg/evidence"
)

// ActionType is the abstract action named by a playbook. Each type maps to
// exactly one concrete command, payload and priority.
type ActionType string

const (
	TypeLockDevice         ActionType = "LOCK_DEVICE"
	TypeLockscreenBlackout ActionType = "LOCKSCREEN_BLACKOUT"
	TypeWalkieTalkieEnable ActionType = "WALKIE_TALKIE_ENABLE"
	TypeLiveCameraRequest  ActionType = "LIVE_CAMERA_REQUEST"
	TypeScreenshotCapture  ActionType = "SCREENSHOT_CAPTURE"
	TypeBlockApp           ActionType = "BLOCK_APP"
	TypeSiren              ActionType = "SIREN"
	TypeQuarantineNet      ActionType = "QUARANTINE_NET"
	TypeDisableHardware    ActionType = "DISABLE_HARDWARE"
	TypeNotifyParents      ActionType = "NOTIFY_PARENTS"
)

// Playbook is one organization-defined rule: when a classification matches
// its category at or above its minimum severity, its enabled actions layer
// in front of the built-in rules.
type Playbook struct {
	ID          string            `json:"id" mapstructure:"id"`
	Name        string            `json:"name" mapstructure:"name"`
	Category    evidence.Category `json:"category" mapstructure:"category"`
	MinSeverity evidence.Severity `json:"minSeverity" mapstructure:"min_severity"`
	Enabled     bool              `json:"enabled" mapstructure:"enabled"`
	Actions     []PlaybookAction  `json:"actions" mapstructure:"actions"`
}

// PlaybookAction is one abstract action inside a playbook. Params flow into
// the concrete command payload (e.g. the app id for BLOCK_APP).
type PlaybookAction struct {
	Type    ActionType             `json:"type" mapstructure:"type"`
	Enabled bool                   `json:"enabled" mapstructure:"enabled"`
	Params  map[string]interface{} `json:"params,omitempty" mapstructure:"params"`
}

// materialize maps an abstract playbook action onto a concrete command.
// Unknown types degrade to notify-parent rather than failing an evaluation.
func materialize(playbookID string, pa PlaybookAction) Action {
	var (
		command  string
		label    string
		priority evidence.Severity
		payload  map[string]interface{}
	)
	switch pa.Type {
	case TypeLockDevice:
		command, label, priority = CmdLockDevice, "Lock device", evidence.SeverityCritical
	case TypeLockscreenBlackout:
		command, label, priority = CmdLockscreenBlackout, "Black out lockscreen", evidence.SeverityCritical
	case TypeWalkieTalkieEnable:
		command, label, priority = CmdWalkieTalkieEnable, "Open walkie-talkie channel", evidence.SeverityHigh
	case TypeLiveCameraRequest:
		command, label, priority = CmdLiveCameraRequest, "Request live camera", evidence.SeverityHigh
	case TypeScreenshotCapture:
		command, label, priority = CmdScreenshotCapture, "Capture screenshot", evidence.SeverityHigh
	case TypeBlockApp:
		command, label, priority = CmdBlockApp, "Block application", evidence.SeverityHigh
		payload = pa.Params
	case TypeSiren:
		command, label, priority = CmdSiren, "Sound device siren", evidence.SeverityHigh
	case TypeQuarantineNet:
		command, label, priority = CmdCutInternet, "Quarantine network access", evidence.SeverityHigh
		payload = map[string]interface{}{"mode": "quarantine"}
	case TypeDisableHardware:
		command, label, priority = CmdDisableHardware, "Disable hardware", evidence.SeverityHigh
		payload = pa.Params
	default:
		command, label, priority = CmdNotifyParent, "Notify parent", evidence.SeverityMedium
	}
	return Action{
		ID:       fmt.Sprintf("pb-%s-%s", playbookID, command),
		Label:    label,
		Command:  command,
		Payload:  payload,
		Priority: priority,
	}
}

package response

import (
	"context"
	"testing"
	"time"

	"github.com/lucid-vigil/warden/pkg/actions"
	"github.com/lucid-vigil/warden/pkg/custody"
	"github.com/lucid-vigil/warden/pkg/defense"
	"github.com/lucid-vigil/warden/pkg/events"
	"github.com/lucid-vigil/warden/pkg/evidence"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	mock.Mock
}

func (s *stubSender) Send(ctx context.Context, deviceID, command string, payload map[string]interface{}) error {
	args := s.Called(ctx, deviceID, command, payload)
	return args.Error(0)
}

type stubPlaybooks struct {
	playbooks []defense.Playbook
}

func (s *stubPlaybooks) Current() []defense.Playbook { return s.playbooks }

type stubLedger struct {
	appended []custody.Event
}

func (s *stubLedger) AppendCustody(accountID string, partial custody.Event) (custody.Event, error) {
	s.appended = append(s.appended, partial)
	return custody.Append(nil, partial)
}

type nopAuditSink struct{}

func (nopAuditSink) AppendAudit(accountID string, audit evidence.CommandAudit) error { return nil }

func newResponder(sender *stubSender, ledger *stubLedger, allowAutoLock bool) *Responder {
	dispatcher := actions.NewDispatcher(sender, nopAuditSink{}, true, zerolog.Nop())
	return NewResponder(defense.NewEngine(), &stubPlaybooks{}, dispatcher, ledger, allowAutoLock, zerolog.Nop())
}

func threatEvent(category evidence.Category, severity evidence.Severity) events.ThreatEvent {
	return events.ThreatEvent{
		ID:         "evt-1",
		AccountID:  "acct-1",
		IncidentID: "inc-1",
		EvidenceID: "ev-1",
		ChildID:    "child-1",
		DeviceID:   "device-1",
		Category:   category,
		Severity:   severity,
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestHandle_SafeClassificationDoesNothing(t *testing.T) {
	sender := new(stubSender)
	ledger := &stubLedger{}
	r := newResponder(sender, ledger, true)

	require.NoError(t, r.Handle(context.Background(), threatEvent(evidence.CategorySafe, evidence.SeverityLow)))

	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, ledger.appended)
}

func TestHandle_DispatchesAndEscalatesHighSeverity(t *testing.T) {
	sender := new(stubSender)
	sender.On("Send", mock.Anything, "device-1", mock.Anything, mock.Anything).Return(nil)
	ledger := &stubLedger{}
	r := newResponder(sender, ledger, true)

	require.NoError(t, r.Handle(context.Background(), threatEvent(evidence.CategoryPredator, evidence.SeverityCritical)))

	sender.AssertCalled(t, "Send", mock.Anything, "device-1", defense.CmdLockDevice, mock.Anything)

	require.Len(t, ledger.appended, 1)
	ev := ledger.appended[0]
	assert.Equal(t, "ev-1", ev.EvidenceID)
	assert.Equal(t, "inc-1", ev.IncidentID)
	assert.Equal(t, custody.ActionCapture, ev.Action)
	assert.Equal(t, "PREDATOR", ev.Payload["category"])
}

func TestHandle_MediumSeverityDoesNotEscalate(t *testing.T) {
	sender := new(stubSender)
	sender.On("Send", mock.Anything, "device-1", mock.Anything, mock.Anything).Return(nil)
	ledger := &stubLedger{}
	r := newResponder(sender, ledger, true)

	require.NoError(t, r.Handle(context.Background(), threatEvent(evidence.CategoryBullying, evidence.SeverityMedium)))

	assert.Empty(t, ledger.appended)
}

func TestHandle_AutoLockDisabledNeverSendsLock(t *testing.T) {
	sender := new(stubSender)
	sender.On("Send", mock.Anything, "device-1", mock.Anything, mock.Anything).Return(nil)
	ledger := &stubLedger{}
	r := newResponder(sender, ledger, false)

	require.NoError(t, r.Handle(context.Background(), threatEvent(evidence.CategoryPredator, evidence.SeverityCritical)))

	sender.AssertNotCalled(t, "Send", mock.Anything, "device-1", defense.CmdLockDevice, mock.Anything)
	sender.AssertNotCalled(t, "Send", mock.Anything, "device-1", defense.CmdLockscreenBlackout, mock.Anything)
	sender.AssertCalled(t, "Send", mock.Anything, "device-1", defense.CmdSiren, mock.Anything)
}

func TestHandle_LowConfidenceGatesLockClass(t *testing.T) {
	sender := new(stubSender)
	sender.On("Send", mock.Anything, "device-1", mock.Anything, mock.Anything).Return(nil)
	ledger := &stubLedger{}
	r := newResponder(sender, ledger, true)

	event := threatEvent(evidence.CategoryPredator, evidence.SeverityCritical)
	conf := 40.0
	event.Confidence = &conf

	require.NoError(t, r.Handle(context.Background(), event))

	sender.AssertNotCalled(t, "Send", mock.Anything, "device-1", defense.CmdLockDevice, mock.Anything)
	sender.AssertCalled(t, "Send", mock.Anything, "device-1", defense.CmdScreenshotCapture, mock.Anything)
}

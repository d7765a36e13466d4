package store

import (
	"context"
	"testing"

	"github.com/lucid-vigil/warden/pkg/custody"
	"github.com/lucid-vigil/warden/pkg/evidence"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := New(dir, zerolog.Nop())
	require.NoError(t, err)
	return s, dir
}

func custodyPartial(id, evidenceID, incidentID string) custody.Event {
	return custody.Event{
		ID:         id,
		EvidenceID: evidenceID,
		IncidentID: incidentID,
		Actor:      "system",
		Action:     custody.ActionCapture,
		EventKey:   "capture",
		CreatedAt:  "2026-02-01T10:00:00Z",
	}
}

func TestAppendCustody_ChainsAndVerifies(t *testing.T) {
	s, _ := newTestStore(t)

	first, err := s.AppendCustody("acct-1", custodyPartial("c1", "ev-1", "inc-1"))
	require.NoError(t, err)
	assert.Equal(t, custody.GenesisHash, first.PrevHash)

	second, err := s.AppendCustody("acct-1", custodyPartial("c2", "ev-1", "inc-1"))
	require.NoError(t, err)
	assert.Equal(t, first.Hash, second.PrevHash)

	chain, err := s.CustodyChain("acct-1", "ev-1")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.True(t, custody.Verify(chain))
}

func TestAppendCustody_SeparateChainsPerEvidence(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.AppendCustody("acct-1", custodyPartial("c1", "ev-1", "inc-1"))
	require.NoError(t, err)
	other, err := s.AppendCustody("acct-1", custodyPartial("c2", "ev-2", "inc-1"))
	require.NoError(t, err)

	assert.Equal(t, custody.GenesisHash, other.PrevHash)
}

func TestAppendCustody_TailSurvivesReopen(t *testing.T) {
	s, dir := newTestStore(t)
	first, err := s.AppendCustody("acct-1", custodyPartial("c1", "ev-1", "inc-1"))
	require.NoError(t, err)

	reopened, err := New(dir, zerolog.Nop())
	require.NoError(t, err)

	second, err := reopened.AppendCustody("acct-1", custodyPartial("c2", "ev-1", "inc-1"))
	require.NoError(t, err)
	assert.Equal(t, first.Hash, second.PrevHash)

	chain, err := reopened.CustodyChain("acct-1", "ev-1")
	require.NoError(t, err)
	assert.True(t, custody.Verify(chain))
}

func TestCustodyByIncident(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.AppendCustody("acct-1", custodyPartial("c1", "ev-1", "inc-1"))
	require.NoError(t, err)
	_, err = s.AppendCustody("acct-1", custodyPartial("c2", "ev-2", "inc-2"))
	require.NoError(t, err)

	got, err := s.CustodyByIncident("acct-1", "inc-2")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c2", got[0].ID)
}

func TestAuditRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	audit := evidence.CommandAudit{
		ID:         "aud-1",
		IncidentID: "inc-1",
		DeviceID:   "device-1",
		Command:    "screenshotCapture",
		Status:     evidence.AuditDone,
		CreatedAt:  "2026-02-01T10:05:00Z",
	}
	require.NoError(t, s.AppendAudit("acct-1", audit))

	got, err := s.AuditsByIncident("acct-1", "inc-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, audit, got[0])
}

func TestRecords_AppendListDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	recs := []evidence.Record{
		{ID: "r1", ChildID: "child-1", Platform: "chat", Category: evidence.CategoryScam, Severity: evidence.SeverityLow, Timestamp: "2026-01-01T00:00:00Z"},
		{ID: "r2", ChildID: "child-1", Platform: "chat", Category: evidence.CategoryBullying, Severity: evidence.SeverityHigh, Timestamp: "2026-01-02T00:00:00Z"},
	}
	for _, rec := range recs {
		require.NoError(t, s.AppendRecord("acct-1", rec))
	}

	listed, err := s.ListRecords(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, recs, listed)

	require.NoError(t, s.DeleteRecord(ctx, "acct-1", "r1"))
	listed, err = s.ListRecords(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "r2", listed[0].ID)

	err = s.DeleteRecord(ctx, "acct-1", "r1")
	assert.Error(t, err)
}

func TestListRecords_EmptyAccount(t *testing.T) {
	s, _ := newTestStore(t)
	got, err := s.ListRecords(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

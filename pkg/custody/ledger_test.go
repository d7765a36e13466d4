package custody

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

func sampleEvent(i int) Event {
	return Event{
		ID:         fmt.Sprintf("cust-%d", i),
		EvidenceID: "ev-1",
		IncidentID: "inc-1",
		Actor:      "system",
		Action:     ActionCapture,
		EventKey:   "capture",
		CreatedAt:  fmt.Sprintf("2026-02-01T10:0%d:00Z", i),
		Payload:    map[string]interface{}{"seq": i},
	}
}

func buildChain(t *testing.T, n int) []Event {
	t.Helper()
	var chain []Event
	var prev *Event
	for i := 0; i < n; i++ {
		ev, err := Append(prev, sampleEvent(i))
		require.NoError(t, err)
		chain = append(chain, ev)
		prev = &chain[len(chain)-1]
	}
	return chain
}

func TestAppend_Genesis(t *testing.T) {
	ev, err := Append(nil, sampleEvent(0))
	require.NoError(t, err)

	assert.Equal(t, GenesisHash, ev.PrevHash)
	assert.Regexp(t, hexDigest, ev.Hash)
}

func TestAppend_LinksToPrevious(t *testing.T) {
	chain := buildChain(t, 2)
	assert.Equal(t, chain[0].Hash, chain[1].PrevHash)
}

func TestVerify_EmptyChainIsValid(t *testing.T) {
	assert.True(t, Verify(nil))
}

func TestVerify_RoundTrip(t *testing.T) {
	chain := buildChain(t, 5)
	assert.True(t, Verify(chain))
}

func TestVerify_DetectsFieldTampering(t *testing.T) {
	chain := buildChain(t, 2)

	tampered := chain[1]
	tampered.Action = ActionExport
	assert.False(t, Verify([]Event{chain[0], tampered}))
}

func TestVerify_DetectsPayloadTampering(t *testing.T) {
	chain := buildChain(t, 2)

	tampered := chain[1]
	tampered.Payload = map[string]interface{}{"seq": 99}
	assert.False(t, Verify([]Event{chain[0], tampered}))
}

func TestVerify_DetectsReordering(t *testing.T) {
	chain := buildChain(t, 3)
	assert.False(t, Verify([]Event{chain[0], chain[2], chain[1]}))
}

func TestVerify_DetectsBrokenLink(t *testing.T) {
	chain := buildChain(t, 2)

	tampered := chain[1]
	tampered.PrevHash = GenesisHash
	assert.False(t, Verify([]Event{chain[0], tampered}))
}

func TestAppend_Deterministic(t *testing.T) {
	a, err := Append(nil, sampleEvent(0))
	require.NoError(t, err)
	b, err := Append(nil, sampleEvent(0))
	require.NoError(t, err)
	assert.Equal(t, a.Hash, b.Hash)
}

func TestAppend_AbsentOptionalFieldsStillHash(t *testing.T) {
	ev, err := Append(nil, Event{
		ID:         "cust-0",
		EvidenceID: "ev-1",
		Actor:      "parent",
		Action:     ActionVerify,
		EventKey:   "verify",
		CreatedAt:  "2026-02-01T10:00:00Z",
	})
	require.NoError(t, err)
	assert.Regexp(t, hexDigest, ev.Hash)
	assert.True(t, Verify([]Event{ev}))
}

package purge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lucid-vigil/warden/pkg/evidence"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeSource struct {
	accounts map[string][]evidence.Record
	listErr  error
}

func (f *fakeSource) Accounts() ([]string, error) {
	var out []string
	for name := range f.accounts {
		out = append(out, name)
	}
	return out, nil
}

func (f *fakeSource) ListRecords(ctx context.Context, accountID string) ([]evidence.Record, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.accounts[accountID], nil
}

func TestWorker_Name(t *testing.T) {
	w := NewWorker(&fakeSource{}, Policy{RetentionDays: 30}, zerolog.Nop())
	assert.Equal(t, "purge_planner", w.Name())
}

func TestWorker_RunPlansWithoutDeleting(t *testing.T) {
	old := time.Now().UTC().AddDate(0, 0, -60).Format(time.RFC3339)
	source := &fakeSource{accounts: map[string][]evidence.Record{
		"acct-1": {
			{ID: "r1", Severity: evidence.SeverityLow, Timestamp: old},
		},
	}}
	w := NewWorker(source, Policy{RetentionDays: 30}, zerolog.Nop())

	w.Run(context.Background())

	// The record set is untouched: the worker only previews.
	assert.Len(t, source.accounts["acct-1"], 1)
}

func TestWorker_RunSurvivesListFailure(t *testing.T) {
	source := &fakeSource{
		accounts: map[string][]evidence.Record{"acct-1": nil},
		listErr:  errors.New("store offline"),
	}
	w := NewWorker(source, Policy{RetentionDays: 30}, zerolog.Nop())

	assert.NotPanics(t, func() { w.Run(context.Background()) })
}

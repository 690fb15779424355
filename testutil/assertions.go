package testutil

import (
	"context"
	"testing"

	"github.com/arthur-debert/nanocrud/nanocrud/storage"
	"github.com/arthur-debert/nanocrud/types"
)

// AssertSuccess fails unless env is a state-0 envelope carrying message
func AssertSuccess(t *testing.T, env types.Envelope, message string) {
	t.Helper()
	if env.State != types.StateOK {
		t.Errorf("expected state 0, got %d (data: %v)", env.State, env.Data)
		return
	}
	if env.Message() != message {
		t.Errorf("expected message %q, got %v", message, env.Data)
	}
}

// AssertRejected fails unless env is a state-1 envelope carrying message
func AssertRejected(t *testing.T, env types.Envelope, message string) {
	t.Helper()
	if env.State != types.StateError {
		t.Errorf("expected state 1, got %d (data: %v)", env.State, env.Data)
		return
	}
	if env.Message() != message {
		t.Errorf("expected message %q, got %v", message, env.Data)
	}
}

// Records returns the record list of a query envelope
func Records(t *testing.T, env types.Envelope) []types.Record {
	t.Helper()
	records, ok := env.Data.([]types.Record)
	if !ok {
		t.Fatalf("expected []types.Record data, got %T", env.Data)
	}
	return records
}

// AssertRecordCount fails unless model holds exactly want records
func AssertRecordCount(t *testing.T, model storage.Model, want int) {
	t.Helper()
	all, err := model.All(context.Background())
	if err != nil {
		t.Fatalf("failed to list records: %v", err)
	}
	if len(all) != want {
		t.Errorf("expected %d records, got %d", want, len(all))
	}
}

// FindRecord returns the record with id, failing the test if it is absent
func FindRecord(t *testing.T, model storage.Model, id int64) types.Record {
	t.Helper()
	rs, err := model.Filter(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to filter records: %v", err)
	}
	if rs.Len() != 1 {
		t.Fatalf("expected exactly one record with id %d, got %d", id, rs.Len())
	}
	return rs.Records()[0]
}

// AssertRecordMissing fails if a record with id exists
func AssertRecordMissing(t *testing.T, model storage.Model, id int64) {
	t.Helper()
	rs, err := model.Filter(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to filter records: %v", err)
	}
	if rs.Len() != 0 {
		t.Errorf("expected no record with id %d, got %d", id, rs.Len())
	}
}

// Snapshot lists every record, for before/after comparisons
func Snapshot(t *testing.T, model storage.Model) []types.Record {
	t.Helper()
	all, err := model.All(context.Background())
	if err != nil {
		t.Fatalf("failed to list records: %v", err)
	}
	return all
}

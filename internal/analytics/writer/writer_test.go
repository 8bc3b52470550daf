package writer

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/taskiq-ai/taskiq-backend/internal/analytics/types"
	pkgbigquery "github.com/taskiq-ai/taskiq-backend/pkg/bigquery"
	"google.golang.org/api/googleapi"
)

type scriptedInserter struct {
	responses []error
	tables    []string
	rowCounts []int
}

func (f *scriptedInserter) InsertRows(_ context.Context, table string, rows []any) error {
	call := len(f.tables)
	f.tables = append(f.tables, table)
	f.rowCounts = append(f.rowCounts, len(rows))
	if call < len(f.responses) {
		return f.responses[call]
	}
	return nil
}

func newTestWriter(t *testing.T) (*BigQueryWriter, *scriptedInserter) {
	t.Helper()
	w, err := New(&pkgbigquery.Client{}, Config{
		UsageTable: "usage_events",
		RetryPolicy: RetryPolicy{
			InitialBackoff: time.Millisecond,
			MaximumBackoff: 2 * time.Millisecond,
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fake := &scriptedInserter{}
	w.client = fake
	return w, fake
}

func TestNewWriterValidation(t *testing.T) {
	if _, err := New(nil, Config{UsageTable: "usage_events"}); err == nil {
		t.Fatal("expected error for missing client")
	}
	if _, err := New(&pkgbigquery.Client{}, Config{UsageTable: " "}); err == nil {
		t.Fatal("expected error for blank usage table")
	}
}

func TestTransientInsertErrorIsRetried(t *testing.T) {
	w, fake := newTestWriter(t)
	fake.responses = []error{
		&googleapi.Error{Code: http.StatusServiceUnavailable},
		nil,
	}

	if err := w.InsertUsage(context.Background(), types.UsageEventRow{EventID: "1"}); err != nil {
		t.Fatalf("InsertUsage: %v", err)
	}
	if len(fake.tables) != 2 {
		t.Fatalf("insert attempts = %d, want 2", len(fake.tables))
	}
	if fake.tables[1] != "usage_events" {
		t.Fatalf("retry table = %s", fake.tables[1])
	}
	if len(w.usageBuffer) != 0 {
		t.Fatal("buffer should drain after a successful flush")
	}
}

func TestPermanentInsertErrorIsNotRetried(t *testing.T) {
	w, fake := newTestWriter(t)
	fake.responses = []error{&googleapi.Error{Code: http.StatusBadRequest}}

	if err := w.InsertUsage(context.Background(), types.UsageEventRow{EventID: "1"}); err == nil {
		t.Fatal("expected permanent error to surface")
	}
	if len(fake.tables) != 1 {
		t.Fatalf("insert attempts = %d, want 1", len(fake.tables))
	}
}

func TestRowsBufferUntilBatchFills(t *testing.T) {
	w, fake := newTestWriter(t)
	w.batchSize = 2

	if err := w.InsertUsage(context.Background(), types.UsageEventRow{EventID: "1"}); err != nil {
		t.Fatalf("first InsertUsage: %v", err)
	}
	if len(fake.tables) != 0 {
		t.Fatal("no insert expected before the batch fills")
	}

	if err := w.InsertUsage(context.Background(), types.UsageEventRow{EventID: "2"}); err != nil {
		t.Fatalf("second InsertUsage: %v", err)
	}
	if len(fake.tables) != 1 || fake.rowCounts[0] != 2 {
		t.Fatalf("expected one insert of 2 rows, got %d inserts %v", len(fake.tables), fake.rowCounts)
	}
}

func TestFlushWritesPartialBatch(t *testing.T) {
	w, fake := newTestWriter(t)
	w.batchSize = 10

	if err := w.InsertUsage(context.Background(), types.UsageEventRow{EventID: "1"}); err != nil {
		t.Fatalf("InsertUsage: %v", err)
	}
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(fake.tables) != 1 || fake.rowCounts[0] != 1 {
		t.Fatalf("expected one insert of 1 row, got %d inserts %v", len(fake.tables), fake.rowCounts)
	}
}

func TestEncodeJSON(t *testing.T) {
	nj, err := EncodeJSON(map[string]any{"foo": "bar"})
	if err != nil {
		t.Fatalf("EncodeJSON map: %v", err)
	}
	if !nj.Valid {
		t.Fatal("encoded map should be valid JSON")
	}

	nj, err = EncodeJSON(nil)
	if err != nil {
		t.Fatalf("EncodeJSON nil: %v", err)
	}
	if nj.Valid {
		t.Fatal("nil payload should encode as NULL")
	}

	raw := json.RawMessage(`{"foo":"baz"}`)
	nj, err = EncodeJSON(raw)
	if err != nil {
		t.Fatalf("EncodeJSON raw: %v", err)
	}
	if nj.JSONVal != string(raw) {
		t.Fatalf("raw json not passed through: %s", nj.JSONVal)
	}
}

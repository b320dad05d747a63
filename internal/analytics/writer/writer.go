package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/iamnithishraja/klinic-sub000/internal/analytics/types"
	pkgbigquery "github.com/iamnithishraja/klinic-sub000/pkg/bigquery"
)

// Config tunes the order events writer. Zero values pick the defaults below.
type Config struct {
	OrderEventsTable string
	BatchSize        int
	RetryPolicy      RetryPolicy
}

// RetryPolicy bounds retries of transient BigQuery insert failures.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

var defaultRetry = RetryPolicy{
	MaxAttempts:    3,
	InitialBackoff: 250 * time.Millisecond,
	MaximumBackoff: 2 * time.Second,
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQueryWriter streams order event rows into BigQuery. Rows are buffered
// until BatchSize is reached; a failed insert keeps them buffered for the next
// attempt.
type BigQueryWriter struct {
	client    tableInserter
	table     string
	batchSize int
	retry     RetryPolicy

	mu     sync.Mutex
	buffer []types.OrderEventRow
}

func New(client *pkgbigquery.Client, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.OrderEventsTable)
	if table == "" {
		return nil, errors.New("order events table is required")
	}
	return &BigQueryWriter{
		client:    client,
		table:     table,
		batchSize: max(cfg.BatchSize, 1),
		retry:     cfg.RetryPolicy.withDefaults(),
	}, nil
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultRetry.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaultRetry.InitialBackoff
	}
	if p.MaximumBackoff <= 0 {
		p.MaximumBackoff = defaultRetry.MaximumBackoff
	}
	p.MaximumBackoff = max(p.MaximumBackoff, p.InitialBackoff)
	return p
}

func (w *BigQueryWriter) InsertOrderEvent(ctx context.Context, row types.OrderEventRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buffer = append(w.buffer, row)
	if len(w.buffer) < w.batchSize {
		return nil
	}
	return w.flushLocked(ctx)
}

// Flush writes whatever is buffered. The worker calls it on shutdown.
func (w *BigQueryWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

func (w *BigQueryWriter) flushLocked(ctx context.Context) error {
	if len(w.buffer) == 0 {
		return nil
	}
	rows := make([]any, 0, len(w.buffer))
	for i := range w.buffer {
		rows = append(rows, &w.buffer[i])
	}
	if err := w.put(ctx, rows); err != nil {
		return err
	}
	w.buffer = w.buffer[:0]
	return nil
}

func (w *BigQueryWriter) put(ctx context.Context, rows []any) error {
	wait := w.retry.InitialBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := w.client.InsertRows(ctx, w.table, rows)
		if err == nil {
			return nil
		}
		if attempt >= w.retry.MaxAttempts || !transient(err) {
			return fmt.Errorf("insert %d rows into %s after %d attempt(s): %w", len(rows), w.table, attempt, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait = min(wait*2, w.retry.MaximumBackoff)
	}
}

// EncodeJSON prepares a value for a BigQuery JSON column. Empty input maps to
// SQL NULL.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return v, nil
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = b
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}

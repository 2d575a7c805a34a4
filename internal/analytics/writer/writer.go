// Package writer streams marketplace analytics rows into BigQuery.
package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/digimart-backend/internal/analytics/types"
)

// Inserter is the streaming-insert half of pkg/bigquery.Client.
type Inserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// Config controls table routing, batching and retry pacing.
type Config struct {
	Table       string
	BatchSize   int
	MaxAttempts int
	FirstDelay  time.Duration
	MaxDelay    time.Duration
}

func (c Config) normalized() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 1
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.FirstDelay <= 0 {
		c.FirstDelay = 250 * time.Millisecond
	}
	if c.MaxDelay < c.FirstDelay {
		c.MaxDelay = 8 * c.FirstDelay
	}
	return c
}

// Writer buffers rows until BatchSize is reached and then inserts them as one request.
// Rows stay buffered when an insert fails so the next write or Flush retries them.
type Writer struct {
	inserter Inserter
	cfg      Config

	mu      sync.Mutex
	pending []types.MarketplaceEventRow
}

func New(inserter Inserter, cfg Config) (*Writer, error) {
	if inserter == nil {
		return nil, errors.New("bigquery client required")
	}
	cfg.Table = strings.TrimSpace(cfg.Table)
	if cfg.Table == "" {
		return nil, errors.New("marketplace table is required")
	}
	return &Writer{inserter: inserter, cfg: cfg.normalized()}, nil
}

// WriteEvent queues one row and flushes when the batch is full.
func (w *Writer) WriteEvent(ctx context.Context, row types.MarketplaceEventRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, row)
	if len(w.pending) < w.cfg.BatchSize {
		return nil
	}
	return w.flushLocked(ctx)
}

// Flush inserts whatever is buffered.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

// Pending reports how many rows are waiting for a flush.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *Writer) flushLocked(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	rows := make([]any, 0, len(w.pending))
	for i := range w.pending {
		rows = append(rows, &w.pending[i])
	}
	if err := w.insert(ctx, rows); err != nil {
		return fmt.Errorf("insert %d rows into %s: %w", len(rows), w.cfg.Table, err)
	}
	w.pending = w.pending[:0]
	return nil
}

func (w *Writer) insert(ctx context.Context, rows []any) error {
	delay := w.cfg.FirstDelay
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := w.inserter.InsertRows(ctx, w.cfg.Table, rows)
		if err == nil {
			return nil
		}
		if attempt >= w.cfg.MaxAttempts || !Retryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if delay *= 2; delay > w.cfg.MaxDelay {
			delay = w.cfg.MaxDelay
		}
	}
}

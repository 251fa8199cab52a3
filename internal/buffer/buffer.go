// Package buffer batches rendered rows per table so a run makes one store
// write per table and batch instead of one per article.
package buffer

import (
	"context"
	"fmt"
	"sort"

	"github.com/LJTian/GovNewsHub/internal/models"
	"github.com/LJTian/GovNewsHub/internal/store"
)

// DefaultBatchSize is the pending row count that triggers a flush.
const DefaultBatchSize = 50

// belowHeader is the 1-based row right below the header.
const belowHeader = 2

type tableState struct {
	layout  models.Layout
	order   models.Order
	pending [][]string
}

// Buffer is not safe for concurrent use; a run drives it from one goroutine.
type Buffer struct {
	sess      *store.Session
	batchSize int
	tables    map[string]*tableState
}

func New(sess *store.Session, batchSize int) *Buffer {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Buffer{sess: sess, batchSize: batchSize, tables: make(map[string]*tableState)}
}

// Register declares the layout and order of table. Registering again keeps
// already pending rows.
func (b *Buffer) Register(table string, layout models.Layout, order models.Order) {
	if order == "" {
		order = models.OrderAppend
	}
	if st, ok := b.tables[table]; ok {
		st.layout = layout
		st.order = order
		return
	}
	b.tables[table] = &tableState{layout: layout, order: order}
}

// Push queues rec for table and flushes the table once batchSize rows are
// pending.
func (b *Buffer) Push(ctx context.Context, table string, rec models.NewsRecord) error {
	st, ok := b.tables[table]
	if !ok {
		return fmt.Errorf("buffer: table %q is not registered", table)
	}
	st.pending = append(st.pending, st.layout.Row(rec))
	if len(st.pending) >= b.batchSize {
		return b.Flush(ctx, table)
	}
	return nil
}

// Flush writes the pending rows of table in one store call. On failure the
// pending rows are kept as they were.
func (b *Buffer) Flush(ctx context.Context, table string) error {
	st, ok := b.tables[table]
	if !ok || len(st.pending) == 0 {
		return nil
	}

	t, err := b.sess.GetOrCreateTable(ctx, table, st.layout.Header())
	if err != nil {
		return fmt.Errorf("buffer: flush %q: %w", table, err)
	}
	switch st.order {
	case models.OrderNewestFirst:
		err = b.sess.InsertRowsAt(ctx, t, st.pending, belowHeader)
	default:
		err = b.sess.AppendRows(ctx, t, st.pending)
	}
	if err != nil {
		return fmt.Errorf("buffer: flush %q: %w", table, err)
	}
	st.pending = nil
	return nil
}

// FlushAll flushes every table with pending rows in name order and stops at
// the first failure.
func (b *Buffer) FlushAll(ctx context.Context) error {
	names := make([]string, 0, len(b.tables))
	for name, st := range b.tables {
		if len(st.pending) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if err := b.Flush(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (b *Buffer) Pending(table string) int {
	if st, ok := b.tables[table]; ok {
		return len(st.pending)
	}
	return 0
}

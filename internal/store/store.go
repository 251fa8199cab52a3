// Package store describes the remote tabular store the pipeline writes to:
// a keyed collection of named tables, each an ordered list of rows whose
// first row is a header.
package store

import (
	"context"
	"errors"
)

var (
	// ErrQuotaExceeded marks rate limiting by the backing store; callers
	// may slow down and retry.
	ErrQuotaExceeded = errors.New("store: quota exceeded")
	// ErrTransport marks network level failures talking to the store.
	ErrTransport = errors.New("store: transport failure")
	// ErrStructural marks failures that retrying cannot fix: missing tables,
	// rejected requests, permission problems.
	ErrStructural = errors.New("store: structural failure")
)

// IsQuota reports whether err is a quota/rate failure.
func IsQuota(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// Table identifies one table inside an opened store.
type Table struct {
	Name string
	// ID is the backend's own identifier (sheet id, row id, ...).
	ID string
}

// TableLookup is the result of looking a table up by name.
type TableLookup struct {
	Table Table
	Found bool
}

// Client opens stores by key.
type Client interface {
	Open(ctx context.Context, key string) (Handle, error)
}

// Handle is one opened store. Every method may fail with ErrQuotaExceeded
// or ErrTransport (wrapped).
type Handle interface {
	LookupTable(ctx context.Context, name string) (TableLookup, error)
	// CreateTable creates the table and writes header as its first row
	// when header is not empty. Both happen in one request, so a failed
	// call leaves no table behind and can be retried.
	CreateTable(ctx context.Context, name string, header []string) (Table, error)
	// ReadColumn returns every cell of the 0-based column, header included.
	ReadColumn(ctx context.Context, t Table, index int) ([]string, error)
	// ReadRow returns the cells of the 1-based row position; a row past the
	// end of the table is empty.
	ReadRow(ctx context.Context, t Table, position int) ([]string, error)
	AppendRows(ctx context.Context, t Table, rows [][]string) error
	// InsertRowsAt inserts rows so that the first one lands on the 1-based
	// row position.
	InsertRowsAt(ctx context.Context, t Table, rows [][]string, position int) error
}

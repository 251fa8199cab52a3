package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/LJTian/GovNewsHub/internal/retry"
)

// Session is the single opened store shared by every component during a
// run. All calls go through the retry invoker.
type Session struct {
	key    string
	handle Handle
	inv    *retry.Invoker
	tables map[string]Table
}

// OpenSession opens key on client once, retrying quota failures.
func OpenSession(ctx context.Context, client Client, key string, inv *retry.Invoker) (*Session, error) {
	if inv == nil {
		inv = &retry.Invoker{MaxAttempts: 1}
	}
	h, err := retry.Do(ctx, inv, "open", func(ctx context.Context) (Handle, error) {
		return client.Open(ctx, key)
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", key, err)
	}
	return NewSession(key, h, inv), nil
}

// NewSession wraps an already opened handle.
func NewSession(key string, h Handle, inv *retry.Invoker) *Session {
	if inv == nil {
		inv = &retry.Invoker{MaxAttempts: 1}
	}
	return &Session{key: key, handle: h, inv: inv, tables: make(map[string]Table)}
}

func (s *Session) Key() string { return s.key }

// GetOrCreateTable returns the named table, creating it with header when
// missing. An existing table keeps its header; a table without any rows
// gets header appended.
func (s *Session) GetOrCreateTable(ctx context.Context, name string, header []string) (Table, error) {
	if t, ok := s.tables[name]; ok {
		return t, nil
	}

	res, err := retry.Do(ctx, s.inv, "lookup "+name, func(ctx context.Context) (TableLookup, error) {
		return s.handle.LookupTable(ctx, name)
	})
	if err != nil {
		return Table{}, fmt.Errorf("store: lookup table %q: %w", name, err)
	}

	t := res.Table
	if !res.Found {
		t, err = retry.Do(ctx, s.inv, "create "+name, func(ctx context.Context) (Table, error) {
			return s.handle.CreateTable(ctx, name, header)
		})
		if err != nil {
			return Table{}, fmt.Errorf("store: create table %q: %w", name, err)
		}
	} else if len(header) > 0 {
		first, err := s.ReadRow(ctx, t, 1)
		if err != nil {
			return Table{}, err
		}
		if isBlank(first) {
			if err := s.AppendRows(ctx, t, [][]string{header}); err != nil {
				return Table{}, err
			}
		}
	}

	s.tables[name] = t
	return t, nil
}

// Table returns a table previously resolved by GetOrCreateTable.
func (s *Session) Table(name string) (Table, bool) {
	t, ok := s.tables[name]
	return t, ok
}

func (s *Session) ReadColumn(ctx context.Context, t Table, index int) ([]string, error) {
	col, err := retry.Do(ctx, s.inv, "read "+t.Name, func(ctx context.Context) ([]string, error) {
		return s.handle.ReadColumn(ctx, t, index)
	})
	if err != nil {
		return nil, fmt.Errorf("store: read column %d of %q: %w", index, t.Name, err)
	}
	return col, nil
}

// ReadRow returns the cells of the 1-based row position.
func (s *Session) ReadRow(ctx context.Context, t Table, position int) ([]string, error) {
	row, err := retry.Do(ctx, s.inv, "read row "+t.Name, func(ctx context.Context) ([]string, error) {
		return s.handle.ReadRow(ctx, t, position)
	})
	if err != nil {
		return nil, fmt.Errorf("store: read row %d of %q: %w", position, t.Name, err)
	}
	return row, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func (s *Session) AppendRows(ctx context.Context, t Table, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	err := s.inv.Run(ctx, "append "+t.Name, func(ctx context.Context) error {
		return s.handle.AppendRows(ctx, t, rows)
	})
	if err != nil {
		return fmt.Errorf("store: append %d rows to %q: %w", len(rows), t.Name, err)
	}
	return nil
}

func (s *Session) InsertRowsAt(ctx context.Context, t Table, rows [][]string, position int) error {
	if len(rows) == 0 {
		return nil
	}
	err := s.inv.Run(ctx, "insert "+t.Name, func(ctx context.Context) error {
		return s.handle.InsertRowsAt(ctx, t, rows, position)
	})
	if err != nil {
		return fmt.Errorf("store: insert %d rows into %q at %d: %w", len(rows), t.Name, position, err)
	}
	return nil
}

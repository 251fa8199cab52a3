package store

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Client. It backs dry runs and tests.
type Memory struct {
	mu     sync.Mutex
	stores map[string]*memoryHandle

	// Fault, when set, is consulted before every operation; a non-nil
	// return fails the call without touching data.
	Fault func(op, table string) error
}

func NewMemory() *Memory {
	return &Memory{stores: make(map[string]*memoryHandle)}
}

func (m *Memory) Open(_ context.Context, key string) (Handle, error) {
	if err := m.fault("open", ""); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.stores[key]
	if !ok {
		h = &memoryHandle{parent: m, tables: make(map[string][][]string)}
		m.stores[key] = h
	}
	return h, nil
}

// Rows returns a copy of every row of table in store key, header included.
func (m *Memory) Rows(key, table string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.stores[key]
	if !ok {
		return nil
	}
	return copyRows(h.tables[table])
}

// Seed replaces the content of a table, creating it when needed.
func (m *Memory) Seed(key, table string, rows [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.stores[key]
	if !ok {
		h = &memoryHandle{parent: m, tables: make(map[string][][]string)}
		m.stores[key] = h
	}
	h.tables[table] = copyRows(rows)
}

func (m *Memory) fault(op, table string) error {
	if m.Fault == nil {
		return nil
	}
	return m.Fault(op, table)
}

type memoryHandle struct {
	parent *Memory
	tables map[string][][]string
}

func (h *memoryHandle) LookupTable(_ context.Context, name string) (TableLookup, error) {
	if err := h.parent.fault("lookup", name); err != nil {
		return TableLookup{}, err
	}
	h.parent.mu.Lock()
	defer h.parent.mu.Unlock()
	if _, ok := h.tables[name]; !ok {
		return TableLookup{}, nil
	}
	return TableLookup{Table: Table{Name: name, ID: name}, Found: true}, nil
}

func (h *memoryHandle) CreateTable(_ context.Context, name string, header []string) (Table, error) {
	if err := h.parent.fault("create", name); err != nil {
		return Table{}, err
	}
	h.parent.mu.Lock()
	defer h.parent.mu.Unlock()
	if _, ok := h.tables[name]; ok {
		return Table{}, fmt.Errorf("%w: table %q already exists", ErrStructural, name)
	}
	var rows [][]string
	if len(header) > 0 {
		rows = append(rows, append([]string(nil), header...))
	}
	h.tables[name] = rows
	return Table{Name: name, ID: name}, nil
}

func (h *memoryHandle) ReadColumn(_ context.Context, t Table, index int) ([]string, error) {
	if err := h.parent.fault("read", t.Name); err != nil {
		return nil, err
	}
	h.parent.mu.Lock()
	defer h.parent.mu.Unlock()
	rows, ok := h.tables[t.Name]
	if !ok {
		return nil, fmt.Errorf("%w: table %q not found", ErrStructural, t.Name)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if index < len(r) {
			out = append(out, r[index])
		} else {
			out = append(out, "")
		}
	}
	return out, nil
}

func (h *memoryHandle) ReadRow(_ context.Context, t Table, position int) ([]string, error) {
	if err := h.parent.fault("read_row", t.Name); err != nil {
		return nil, err
	}
	h.parent.mu.Lock()
	defer h.parent.mu.Unlock()
	rows, ok := h.tables[t.Name]
	if !ok {
		return nil, fmt.Errorf("%w: table %q not found", ErrStructural, t.Name)
	}
	if position < 1 || position > len(rows) {
		return []string{}, nil
	}
	return append([]string{}, rows[position-1]...), nil
}

func (h *memoryHandle) AppendRows(_ context.Context, t Table, rows [][]string) error {
	if err := h.parent.fault("append", t.Name); err != nil {
		return err
	}
	h.parent.mu.Lock()
	defer h.parent.mu.Unlock()
	cur, ok := h.tables[t.Name]
	if !ok {
		return fmt.Errorf("%w: table %q not found", ErrStructural, t.Name)
	}
	h.tables[t.Name] = append(cur, copyRows(rows)...)
	return nil
}

func (h *memoryHandle) InsertRowsAt(_ context.Context, t Table, rows [][]string, position int) error {
	if err := h.parent.fault("insert", t.Name); err != nil {
		return err
	}
	h.parent.mu.Lock()
	defer h.parent.mu.Unlock()
	cur, ok := h.tables[t.Name]
	if !ok {
		return fmt.Errorf("%w: table %q not found", ErrStructural, t.Name)
	}
	idx := position - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(cur) {
		idx = len(cur)
	}
	next := make([][]string, 0, len(cur)+len(rows))
	next = append(next, cur[:idx]...)
	next = append(next, copyRows(rows)...)
	next = append(next, cur[idx:]...)
	h.tables[t.Name] = next
	return nil
}

func copyRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

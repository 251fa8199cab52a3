// Package ledger keeps the set of article URLs already accepted by earlier
// runs. The set lives in a one-column table of the store and only grows.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/LJTian/GovNewsHub/internal/store"
)

// DefaultTable is the ledger table name.
const DefaultTable = "URLs"

// Header is the single-cell header row of the ledger table.
var Header = []string{"URLs"}

type Ledger struct {
	sess  *store.Session
	table store.Table
	seen  map[string]struct{}
}

// Load reads every URL of the ledger table, creating the table when it does
// not exist yet.
func Load(ctx context.Context, sess *store.Session, table string) (*Ledger, error) {
	if table == "" {
		table = DefaultTable
	}
	t, err := sess.GetOrCreateTable(ctx, table, Header)
	if err != nil {
		return nil, fmt.Errorf("ledger: load: %w", err)
	}
	col, err := sess.ReadColumn(ctx, t, 0)
	if err != nil {
		return nil, fmt.Errorf("ledger: load: %w", err)
	}

	l := &Ledger{sess: sess, table: t, seen: make(map[string]struct{}, len(col))}
	for i, v := range col {
		// first cell is the header
		if i == 0 {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		l.seen[v] = struct{}{}
	}
	return l, nil
}

func (l *Ledger) Contains(url string) bool {
	_, ok := l.seen[strings.TrimSpace(url)]
	return ok
}

// Add records url. The in-memory set changes only once the row is stored,
// so a failed write leaves the ledger as it was.
func (l *Ledger) Add(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" || l.Contains(url) {
		return nil
	}
	if err := l.sess.AppendRows(ctx, l.table, [][]string{{url}}); err != nil {
		return fmt.Errorf("ledger: add %s: %w", url, err)
	}
	l.seen[url] = struct{}{}
	return nil
}

func (l *Ledger) Len() int { return len(l.seen) }

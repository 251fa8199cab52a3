package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LJTian/GovNewsHub/internal/retry"
	"github.com/LJTian/GovNewsHub/internal/store"
)

func newSession(t *testing.T, mem *store.Memory) *store.Session {
	t.Helper()
	inv, err := retry.New(3, time.Millisecond, 0, store.IsQuota, nil)
	require.NoError(t, err)
	inv.Sleep = func(context.Context, time.Duration) error { return nil }

	sess, err := store.OpenSession(context.Background(), mem, "sheet", inv)
	require.NoError(t, err)
	return sess
}

func TestGetOrCreateTableCreatesWithHeader(t *testing.T) {
	mem := store.NewMemory()
	sess := newSession(t, mem)
	ctx := context.Background()

	tbl, err := sess.GetOrCreateTable(ctx, "fiocruz", []string{"Data", "Título", "Link"})
	require.NoError(t, err)
	require.Equal(t, "fiocruz", tbl.Name)
	require.Equal(t, [][]string{{"Data", "Título", "Link"}}, mem.Rows("sheet", "fiocruz"))

	// second call is served from the session cache and never rewrites the header
	_, err = sess.GetOrCreateTable(ctx, "fiocruz", []string{"Other"})
	require.NoError(t, err)
	require.Equal(t, [][]string{{"Data", "Título", "Link"}}, mem.Rows("sheet", "fiocruz"))
}

func TestGetOrCreateTableKeepsExistingHeader(t *testing.T) {
	mem := store.NewMemory()
	mem.Seed("sheet", "mec", [][]string{{"Old", "Header"}, {"a", "b"}})
	sess := newSession(t, mem)

	_, err := sess.GetOrCreateTable(context.Background(), "mec", []string{"Data", "Link"})
	require.NoError(t, err)
	require.Equal(t, [][]string{{"Old", "Header"}, {"a", "b"}}, mem.Rows("sheet", "mec"))
}

func TestGetOrCreateTableFillsEmptyTable(t *testing.T) {
	mem := store.NewMemory()
	mem.Seed("sheet", "URLs", nil)
	sess := newSession(t, mem)

	_, err := sess.GetOrCreateTable(context.Background(), "URLs", []string{"URLs"})
	require.NoError(t, err)
	require.Equal(t, [][]string{{"URLs"}}, mem.Rows("sheet", "URLs"))
}

func TestSessionRetriesQuotaThenGivesUp(t *testing.T) {
	mem := store.NewMemory()
	sess := newSession(t, mem)
	ctx := context.Background()
	tbl, err := sess.GetOrCreateTable(ctx, "saude", []string{"Data"})
	require.NoError(t, err)

	calls := 0
	mem.Fault = func(op, table string) error {
		if op == "append" {
			calls++
			return store.ErrQuotaExceeded
		}
		return nil
	}
	err = sess.AppendRows(ctx, tbl, [][]string{{"x"}})
	require.ErrorIs(t, err, store.ErrQuotaExceeded)
	require.Equal(t, 3, calls)
	require.Len(t, mem.Rows("sheet", "saude"), 1)
}

func TestSessionStructuralErrorNotRetried(t *testing.T) {
	mem := store.NewMemory()
	sess := newSession(t, mem)

	calls := 0
	mem.Fault = func(op, table string) error {
		calls++
		return errors.Join(store.ErrStructural, errors.New("permission denied"))
	}
	_, err := sess.GetOrCreateTable(context.Background(), "x", nil)
	require.ErrorIs(t, err, store.ErrStructural)
	require.Equal(t, 1, calls)
}

func TestInsertRowsAtBelowHeader(t *testing.T) {
	mem := store.NewMemory()
	mem.Seed("sheet", "anvisa", [][]string{{"H"}, {"old"}})
	sess := newSession(t, mem)
	ctx := context.Background()

	tbl, err := sess.GetOrCreateTable(ctx, "anvisa", []string{"H"})
	require.NoError(t, err)
	require.NoError(t, sess.InsertRowsAt(ctx, tbl, [][]string{{"new1"}, {"new2"}}, 2))
	require.Equal(t, [][]string{{"H"}, {"new1"}, {"new2"}, {"old"}}, mem.Rows("sheet", "anvisa"))
}

func TestGetOrCreateTableChecksOnlyFirstRow(t *testing.T) {
	mem := store.NewMemory()
	mem.Seed("sheet", "mec", [][]string{{"Data", "Link"}, {"07/05/2024", "https://mec/1"}})
	sess := newSession(t, mem)

	ops := map[string]int{}
	mem.Fault = func(op, table string) error {
		ops[op]++
		return nil
	}
	_, err := sess.GetOrCreateTable(context.Background(), "mec", []string{"Data", "Link"})
	require.NoError(t, err)
	require.Equal(t, map[string]int{"lookup": 1, "read_row": 1}, ops)
}

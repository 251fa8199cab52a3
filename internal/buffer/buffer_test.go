package buffer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LJTian/GovNewsHub/internal/buffer"
	"github.com/LJTian/GovNewsHub/internal/dates"
	"github.com/LJTian/GovNewsHub/internal/models"
	"github.com/LJTian/GovNewsHub/internal/store"
)

var shortLayout = models.Layout{Columns: []models.Column{models.ColumnDate, models.ColumnTitle, models.ColumnURL}}

func record(title, url string) models.NewsRecord {
	return models.NewsRecord{
		PublishedDate: dates.Date{Year: 2024, Month: time.May, Day: 7},
		Title:         title,
		URL:           url,
	}
}

func newBuffer(t *testing.T, mem *store.Memory, size int) *buffer.Buffer {
	t.Helper()
	sess, err := store.OpenSession(context.Background(), mem, "sheet", nil)
	require.NoError(t, err)
	return buffer.New(sess, size)
}

func TestPushFlushesAtBatchSize(t *testing.T) {
	mem := store.NewMemory()
	b := newBuffer(t, mem, 2)
	b.Register("mec", shortLayout, models.OrderAppend)
	ctx := context.Background()

	require.NoError(t, b.Push(ctx, "mec", record("a", "https://a")))
	require.Equal(t, 1, b.Pending("mec"))
	require.Nil(t, mem.Rows("sheet", "mec"))

	require.NoError(t, b.Push(ctx, "mec", record("b", "https://b")))
	require.Equal(t, 0, b.Pending("mec"))
	require.Equal(t, [][]string{
		{"Data", "Título", "Link"},
		{"07/05/2024", "a", "https://a"},
		{"07/05/2024", "b", "https://b"},
	}, mem.Rows("sheet", "mec"))
}

func TestFlushFailureKeepsPending(t *testing.T) {
	mem := store.NewMemory()
	mem.Seed("sheet", "mec", [][]string{{"Data", "Título", "Link"}})
	b := newBuffer(t, mem, 10)
	b.Register("mec", shortLayout, models.OrderAppend)
	ctx := context.Background()

	require.NoError(t, b.Push(ctx, "mec", record("a", "https://a")))
	require.NoError(t, b.Push(ctx, "mec", record("b", "https://b")))

	mem.Fault = func(op, table string) error {
		if op == "append" {
			return store.ErrStructural
		}
		return nil
	}
	err := b.FlushAll(ctx)
	require.ErrorIs(t, err, store.ErrStructural)
	require.Equal(t, 2, b.Pending("mec"))
	require.Equal(t, [][]string{{"Data", "Título", "Link"}}, mem.Rows("sheet", "mec"))

	mem.Fault = nil
	require.NoError(t, b.FlushAll(ctx))
	require.Equal(t, 0, b.Pending("mec"))
	require.Equal(t, [][]string{
		{"Data", "Título", "Link"},
		{"07/05/2024", "a", "https://a"},
		{"07/05/2024", "b", "https://b"},
	}, mem.Rows("sheet", "mec"))
}

func TestNewestFirstInsertsBelowHeader(t *testing.T) {
	mem := store.NewMemory()
	mem.Seed("sheet", "anvisa", [][]string{{"Data", "Título", "Link"}, {"06/05/2024", "old", "https://old"}})
	b := newBuffer(t, mem, 10)
	b.Register("anvisa", shortLayout, models.OrderNewestFirst)
	ctx := context.Background()

	require.NoError(t, b.Push(ctx, "anvisa", record("new", "https://new")))
	require.NoError(t, b.Flush(ctx, "anvisa"))
	require.Equal(t, [][]string{
		{"Data", "Título", "Link"},
		{"07/05/2024", "new", "https://new"},
		{"06/05/2024", "old", "https://old"},
	}, mem.Rows("sheet", "anvisa"))
}

func TestFlushEmptyIsNoop(t *testing.T) {
	mem := store.NewMemory()
	b := newBuffer(t, mem, 10)
	b.Register("mec", shortLayout, "")

	calls := 0
	mem.Fault = func(op, table string) error {
		calls++
		return nil
	}
	require.NoError(t, b.FlushAll(context.Background()))
	require.NoError(t, b.Flush(context.Background(), "unknown"))
	require.Zero(t, calls)
}

func TestPushUnregistered(t *testing.T) {
	b := newBuffer(t, store.NewMemory(), 10)
	require.Error(t, b.Push(context.Background(), "nope", record("a", "https://a")))
}

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errQuota = errors.New("quota exceeded")

func isQuota(err error) bool { return errors.Is(err, errQuota) }

func newTestInvoker(t *testing.T, slept *[]time.Duration) *Invoker {
	t.Helper()
	inv, err := New(DefaultMaxAttempts, DefaultBaseDelay, DefaultJitterRatio, isQuota, nil)
	require.NoError(t, err)
	inv.Sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return inv
}

func TestRunAlwaysQuotaExhaustsAttempts(t *testing.T) {
	var slept []time.Duration
	inv := newTestInvoker(t, &slept)

	calls := 0
	err := inv.Run(context.Background(), "append", func(context.Context) error {
		calls++
		return errQuota
	})

	require.ErrorIs(t, err, errQuota)
	require.Equal(t, DefaultMaxAttempts, calls)
	require.Len(t, slept, DefaultMaxAttempts-1)
	for i := 1; i < len(slept); i++ {
		require.GreaterOrEqual(t, slept[i], slept[i-1], "delay %d decreased", i)
	}
	require.Equal(t, 1500*time.Millisecond, slept[0])
}

func TestRunNonQuotaErrorIsNotRetried(t *testing.T) {
	var slept []time.Duration
	inv := newTestInvoker(t, &slept)
	boom := errors.New("permission denied")

	calls := 0
	err := inv.Run(context.Background(), "read", func(context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
	require.Empty(t, slept)
}

func TestDoRecoversAfterQuota(t *testing.T) {
	var slept []time.Duration
	inv := newTestInvoker(t, &slept)

	calls := 0
	got, err := Do(context.Background(), inv, "read", func(context.Context) ([]string, error) {
		calls++
		if calls < 3 {
			return nil, errQuota
		}
		return []string{"URLs", "https://a"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"URLs", "https://a"}, got)
	require.Equal(t, 3, calls)
	require.Len(t, slept, 2)
}

func TestDelaySchedule(t *testing.T) {
	inv := &Invoker{BaseDelay: time.Second, JitterRatio: 0.15}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2300 * time.Millisecond},
		{2, 5200 * time.Millisecond},
		{3, 8 * time.Second},
	}
	for _, c := range cases {
		got := inv.Delay(c.attempt)
		if diff := got - c.want; diff > time.Millisecond || diff < -time.Millisecond {
			t.Fatalf("Delay(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	inv, err := New(4, time.Hour, 0, isQuota, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err = inv.Run(ctx, "append", func(context.Context) error {
		calls++
		return errQuota
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestNewValidates(t *testing.T) {
	_, err := New(0, time.Second, 0.1, isQuota, nil)
	require.Error(t, err)
	_, err = New(3, time.Second, 0.6, isQuota, nil)
	require.Error(t, err)
	_, err = New(3, -time.Second, 0.1, isQuota, nil)
	require.Error(t, err)
}

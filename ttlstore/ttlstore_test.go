package ttlstore

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  int64
}

func (f *fakeClock) NowUnixNano() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) add(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t += int64(d)
}

func TestTTLStore_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New[string, string](Options[string, string]{})
	require.ErrorIs(t, err, ErrInvalidTTL)

	_, err = New[string, string](Options[string, string]{DefaultTTL: -time.Second})
	require.ErrorIs(t, err, ErrInvalidTTL)
}

// The background sweep retires entries on its own: Len drops to zero
// without any reads touching the expired keys.
func TestTTLStore_SweepExpires(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		expired []string
	)
	s, err := New[string, string](Options[string, string]{
		DefaultTTL: 50 * time.Millisecond,
		OnExpire: func(k, _ string) {
			mu.Lock()
			expired = append(expired, k)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	s.Set("a", "1")
	s.Set("b", "2")
	require.Equal(t, 2, s.Len())

	v, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, "1", v)

	require.Eventually(t, func() bool { return s.Len() == 0 },
		2*time.Second, 10*time.Millisecond, "sweep must retire expired entries")

	mu.Lock()
	defer mu.Unlock()
	require.ElementsMatch(t, []string{"a", "b"}, expired)
}

// A refresh schedules a second deletion stamp; the first becomes a ghost
// and must never remove the refreshed entry.
func TestTTLStore_RefreshOutlivesGhost(t *testing.T) {
	t.Parallel()

	s, err := New[string, string](Options[string, string]{DefaultTTL: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	s.SetWithTTL("k", "v1", 100*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	s.SetWithTTL("k", "v2", 500*time.Millisecond) // refresh at t≈50ms

	time.Sleep(100 * time.Millisecond) // t≈150ms: v1's stamp has fired by now
	v, ok := s.Get("k")
	require.True(t, ok, "ghost stamp must not delete the refreshed entry")
	require.Equal(t, "v2", v)

	require.Eventually(t, func() bool {
		_, ok := s.Get("k")
		return !ok
	}, 2*time.Second, 10*time.Millisecond, "refreshed entry expires at its own deadline")
}

// Lazy expiry: a read past the deadline reports absence immediately,
// independent of sweep latency. Uses a fake clock so the sweeper (armed
// far in the future) never interferes.
func TestTTLStore_LazyExpiryOnGet(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	s, err := New[string, string](Options[string, string]{
		DefaultTTL: time.Hour,
		Clock:      clk,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	s.Set("k", "v")
	_, ok := s.Get("k")
	require.True(t, ok)

	clk.add(2 * time.Hour)
	_, ok = s.Get("k")
	require.False(t, ok, "entry past its deadline must read as absent")
	require.Equal(t, 0, s.Len(), "lazy expiry must also remove the entry")
}

func TestTTLStore_AddOnlyIfAbsent(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	s, err := New[string, string](Options[string, string]{
		DefaultTTL: time.Hour,
		Clock:      clk,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.True(t, s.Add("k", "v1"))
	require.False(t, s.Add("k", "v2"))

	v, _ := s.Get("k")
	require.Equal(t, "v1", v)

	// An expired entry counts as absent for Add.
	clk.add(2 * time.Hour)
	require.True(t, s.Add("k", "v3"))
}

func TestTTLStore_RemoveIdempotent(t *testing.T) {
	t.Parallel()

	s, err := New[string, string](Options[string, string]{DefaultTTL: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.False(t, s.Remove("ghost"))
	s.Set("k", "v")
	require.True(t, s.Remove("k"))
	require.False(t, s.Remove("k"))
	require.Equal(t, 0, s.Len())
}

func TestTTLStore_Purge(t *testing.T) {
	t.Parallel()

	s, err := New[string, string](Options[string, string]{DefaultTTL: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	s.Set("a", "1")
	s.Set("b", "2")
	s.Purge()
	require.Equal(t, 0, s.Len())

	s.Set("c", "3")
	v, ok := s.Get("c")
	require.True(t, ok)
	require.Equal(t, "3", v)
}

// Close stops the sweeper cooperatively; afterwards the store is inert.
func TestTTLStore_Close(t *testing.T) {
	t.Parallel()

	s, err := New[string, string](Options[string, string]{DefaultTTL: time.Hour})
	require.NoError(t, err)

	s.Set("k", "v")
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "Close must be idempotent")

	s.Set("x", "y")
	_, ok := s.Get("x")
	require.False(t, ok)
	_, ok = s.Get("k")
	require.False(t, ok)
}

// A panicking expiry callback is contained: it is logged, the entry is
// still retired, and the sweeper keeps working for later keys.
func TestTTLStore_ExpireCallbackPanicContained(t *testing.T) {
	t.Parallel()

	s, err := New[string, string](Options[string, string]{
		DefaultTTL: 30 * time.Millisecond,
		OnExpire:   func(k, _ string) { panic("boom: " + k) },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	s.Set("a", "1")
	require.Eventually(t, func() bool { return s.Len() == 0 },
		2*time.Second, 10*time.Millisecond)

	// Worker survived the panic and handles new entries.
	s.Set("b", "2")
	require.Eventually(t, func() bool { return s.Len() == 0 },
		2*time.Second, 10*time.Millisecond)
}

package replica

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avolkhin/herdcache/cache"
)

// recordingStore is a minimal cache.Store that remembers which operations
// reached it, so routing decisions can be asserted precisely.
type recordingStore struct {
	mu   sync.Mutex
	data map[string]string
	gets int
	sets int
}

func newRecordingStore() *recordingStore {
	return &recordingStore{data: make(map[string]string)}
}

func (s *recordingStore) Add(k, v string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[k]; ok {
		return false
	}
	s.data[k] = v
	return true
}

func (s *recordingStore) Set(k, v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	s.data[k] = v
}

func (s *recordingStore) SetWithTTL(k, v string, _ time.Duration) { s.Set(k, v) }

func (s *recordingStore) Get(k string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	v, ok := s.data[k]
	return v, ok
}

func (s *recordingStore) Remove(k string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[k]
	delete(s.data, k)
	return ok
}

func (s *recordingStore) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]string)
}

func (s *recordingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func (s *recordingStore) Close() error { return nil }

func (s *recordingStore) getCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

func (s *recordingStore) value(k string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[k]
	return v, ok
}

func newReplicator(t *testing.T, n int) (*Replicator[string, string], []*recordingStore) {
	t.Helper()
	recs := make([]*recordingStore, n)
	stores := make([]cache.Store[string, string], n)
	for i := range recs {
		recs[i] = newRecordingStore()
		stores[i] = recs[i]
	}
	r, err := New[string, string](stores, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, recs
}

func TestReplicator_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New[string, string](nil, Options{})
	require.ErrorIs(t, err, ErrNoReplicas)

	_, err = New[string, string]([]cache.Store[string, string]{nil}, Options{})
	require.ErrorIs(t, err, ErrNoReplicas)
}

// Cold keys route exclusively to the primary, for reads and writes alike.
func TestReplicator_ColdRoutesToPrimary(t *testing.T) {
	t.Parallel()

	r, recs := newReplicator(t, 3)

	r.Set("k", "v")
	v, ok := r.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", v)

	require.Equal(t, 1, recs[0].getCount())
	for i := 1; i < 3; i++ {
		require.Zero(t, recs[i].getCount(), "replica %d must not see cold reads", i)
		_, ok := recs[i].value("k")
		require.False(t, ok, "replica %d must not hold cold writes", i)
	}
}

// Writes to a hot key fan out synchronously to every replica.
func TestReplicator_HotWriteFansOut(t *testing.T) {
	t.Parallel()

	r, recs := newReplicator(t, 3)

	r.MarkHot("k")
	r.Set("k", "v")

	for i, rec := range recs {
		v, ok := rec.value("k")
		require.True(t, ok, "replica %d must hold the hot write", i)
		require.Equal(t, "v", v)
	}
}

// Reads for a hot key cycle through replica indices 0,1,…,N-1,0,…
func TestReplicator_HotReadRoundRobin(t *testing.T) {
	t.Parallel()

	const n = 3
	r, recs := newReplicator(t, n)

	r.MarkHot("k")
	r.Set("k", "v")

	for round := 0; round < 2; round++ {
		for i := 0; i < n; i++ {
			before := recs[i].getCount()
			v, ok := r.Get("k")
			require.True(t, ok)
			require.Equal(t, "v", v)
			require.Equal(t, before+1, recs[i].getCount(),
				"read %d of round %d must hit replica %d", i, round, i)
		}
	}
}

// MarkHot is idempotent and only affects subsequent operations.
func TestReplicator_MarkHotIdempotent(t *testing.T) {
	t.Parallel()

	r, recs := newReplicator(t, 2)

	r.Set("k", "v") // cold write: primary only
	_, ok := recs[1].value("k")
	require.False(t, ok)

	r.MarkHot("k")
	r.MarkHot("k")
	require.True(t, r.IsHot("k"))

	// Marking hot is not retroactive; the next write replicates.
	r.Set("k", "v2")
	v, ok := recs[1].value("k")
	require.True(t, ok)
	require.Equal(t, "v2", v)
}

// Remove fans out regardless of hotness so no replica serves stale data.
func TestReplicator_RemoveFansOut(t *testing.T) {
	t.Parallel()

	r, recs := newReplicator(t, 3)

	r.MarkHot("k")
	r.Set("k", "v")
	require.True(t, r.Remove("k"))

	for i, rec := range recs {
		_, ok := rec.value("k")
		require.False(t, ok, "replica %d must not retain a removed key", i)
	}
	require.False(t, r.Remove("k"), "second Remove is a no-op")
}

// UnmarkHot reverts to primary routing and clears secondary copies.
func TestReplicator_UnmarkHot(t *testing.T) {
	t.Parallel()

	r, recs := newReplicator(t, 3)

	r.MarkHot("k")
	r.Set("k", "v")
	r.UnmarkHot("k")
	require.False(t, r.IsHot("k"))

	for i := 1; i < 3; i++ {
		_, ok := recs[i].value("k")
		require.False(t, ok, "replica %d must drop the key on UnmarkHot", i)
	}
	v, ok := r.Get("k")
	require.True(t, ok, "primary keeps the value")
	require.Equal(t, "v", v)
}

// The replicator satisfies cache.Store, so it stacks under coordinators.
func TestReplicator_ImplementsStore(t *testing.T) {
	t.Parallel()

	r, _ := newReplicator(t, 2)
	var st cache.Store[string, string] = r

	require.True(t, st.Add("k", "v"))
	require.False(t, st.Add("k", "v2"))
	require.Equal(t, 1, st.Len())
	st.Purge()
	require.Equal(t, 0, st.Len())
}

package localcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStorePutGet(t *testing.T) {
	s := newTestStore(t)
	key := Key{SchoolID: "lycee-a", Endpoint: "/planning", Week: 10, Year: 2026}

	_, err := s.Get(context.Background(), key)
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, s.Put(context.Background(), key, []byte(`{"week":10}`)))

	got, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"week":10}`), got)
}

func TestStoreOverwrite(t *testing.T) {
	s := newTestStore(t)
	key := Key{SchoolID: "lycee-a", Endpoint: "/planning", Week: 10, Year: 2026}

	require.NoError(t, s.Put(context.Background(), key, []byte(`old`)))
	require.NoError(t, s.Put(context.Background(), key, []byte(`new`)))

	got, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte(`new`), got)
}

func TestStoreExpiry(t *testing.T) {
	s := newTestStore(t)
	key := Key{SchoolID: "lycee-a", Endpoint: "/planning", Week: 10, Year: 2026}

	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	require.NoError(t, s.Put(context.Background(), key, []byte(`payload`)))

	// One second under the window still serves.
	s.now = func() time.Time { return base.Add(DefaultTTL - time.Second) }
	got, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte(`payload`), got)

	// At exactly 24h the entry is gone, and stays gone even if the
	// clock were to rewind.
	s.now = func() time.Time { return base.Add(DefaultTTL) }
	_, err = s.Get(context.Background(), key)
	assert.ErrorIs(t, err, ErrMiss)

	s.now = func() time.Time { return base }
	_, err = s.Get(context.Background(), key)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestStoreSweepExpired(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return base.Add(-25 * time.Hour) }
	require.NoError(t, s.Put(context.Background(), Key{SchoolID: "a", Endpoint: "/planning", Week: 9, Year: 2026}, []byte(`stale`)))

	s.now = func() time.Time { return base }
	require.NoError(t, s.Put(context.Background(), Key{SchoolID: "a", Endpoint: "/planning", Week: 10, Year: 2026}, []byte(`fresh`)))

	n, err := s.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.Get(context.Background(), Key{SchoolID: "a", Endpoint: "/planning", Week: 10, Year: 2026})
	assert.NoError(t, err)
}

func TestStoreSchoolNamespacing(t *testing.T) {
	s := newTestStore(t)
	keyA := Key{SchoolID: "lycee-a", Endpoint: "/planning", Week: 10, Year: 2026}
	keyB := Key{SchoolID: "lycee-b", Endpoint: "/planning", Week: 10, Year: 2026}

	require.NoError(t, s.Put(context.Background(), keyA, []byte(`a`)))
	require.NoError(t, s.Put(context.Background(), keyB, []byte(`b`)))

	got, err := s.Get(context.Background(), keyA)
	require.NoError(t, err)
	assert.Equal(t, []byte(`a`), got)

	require.NoError(t, s.ClearSchool(context.Background(), "lycee-a"))

	_, err = s.Get(context.Background(), keyA)
	assert.ErrorIs(t, err, ErrMiss)
	got, err = s.Get(context.Background(), keyB)
	require.NoError(t, err)
	assert.Equal(t, []byte(`b`), got)
}

func TestStoreClear(t *testing.T) {
	s := newTestStore(t)
	key := Key{SchoolID: "lycee-a", Endpoint: "/planning", Week: 10, Year: 2026}
	require.NoError(t, s.Put(context.Background(), key, []byte(`x`)))
	require.NoError(t, s.Clear(context.Background()))
	_, err := s.Get(context.Background(), key)
	assert.ErrorIs(t, err, ErrMiss)
}

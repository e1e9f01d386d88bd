package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestKeyIsOrderIndependent(t *testing.T) {
	k1 := Key([]string{"v1", "v2"}, []string{"s1"}, "openai", "gpt-4o")
	k2 := Key([]string{"v2", "v1"}, []string{"s1"}, "openai", "gpt-4o")
	assert.Equal(t, k1, k2)
}

func TestKeyDiffersByProviderOrModel(t *testing.T) {
	base := Key([]string{"v1"}, []string{"s1"}, "openai", "gpt-4o")
	diffProvider := Key([]string{"v1"}, []string{"s1"}, "google", "gpt-4o")
	diffModel := Key([]string{"v1"}, []string{"s1"}, "openai", "gpt-4o-mini")
	assert.NotEqual(t, base, diffProvider)
	assert.NotEqual(t, base, diffModel)
}

func TestPutThenGetRoundTrips(t *testing.T) {
	store := newTestStore(t)
	key := Key([]string{"v1"}, []string{"s1"}, "openai", "gpt-4o")
	entry := Entry{Matches: []MatchRecord{{VideoID: "v1", SubtitleID: "s1", Confidence: 92}}}

	require.NoError(t, store.Put(key, entry, 1000))

	got, ok := store.Get(key, func(string) bool { return true })
	require.True(t, ok)
	assert.Equal(t, key, got.Fingerprint)
	assert.Equal(t, int64(1000), got.CreatedAt)
	require.Len(t, got.Matches, 1)
	assert.Equal(t, 92.0, got.Matches[0].Confidence)
}

func TestGetMissOnUnresolvedFile(t *testing.T) {
	store := newTestStore(t)
	key := Key([]string{"v1"}, []string{"s1"}, "openai", "gpt-4o")
	require.NoError(t, store.Put(key, Entry{Matches: []MatchRecord{{VideoID: "v1", SubtitleID: "s1"}}}, 1000))

	_, ok := store.Get(key, func(id string) bool { return id != "v1" })
	assert.False(t, ok)
}

func TestGetMissOnUnknownKey(t *testing.T) {
	store := newTestStore(t)
	_, ok := store.Get("does-not-exist", nil)
	assert.False(t, ok)
}

func TestStatsCountsEntries(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Put("k1", Entry{}, 1))
	require.NoError(t, store.Put("k2", Entry{}, 2))

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.EntryCount)
	assert.Greater(t, stats.TotalBytes, int64(0))
}

func TestClearRemovesAllEntries(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Put("k1", Entry{}, 1))
	require.NoError(t, store.Clear())

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.EntryCount)
}

func TestPruneWithPolicy(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Put("old", Entry{}, 100))
	require.NoError(t, store.Put("new", Entry{}, 9000))

	removed, err := store.Prune(func(key string, entry Entry) bool {
		return entry.CreatedAt < 1000
	})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok := store.Get("old", nil)
	assert.False(t, ok)
	_, ok = store.Get("new", nil)
	assert.True(t, ok)
}

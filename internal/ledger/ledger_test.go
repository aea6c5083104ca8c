package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"lakbay-kasaysayan/internal/achievement"
	"lakbay-kasaysayan/internal/devicestore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memKV struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newMemKV() *memKV { return &memKV{values: map[string]string{}} }

func (m *memKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.values[key] = value
	return nil
}

func TestArtifactsAddPersists(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()

	a, err := LoadArtifacts(ctx, kv)
	require.NoError(t, err)
	assert.Equal(t, 0, a.Len())

	added, err := a.Add(ctx, "1")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = a.Add(ctx, "1")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = a.Add(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, `["1","2"]`, kv.values[devicestore.KeyCollectedArtifacts])

	reloaded, err := LoadArtifacts(ctx, kv)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, reloaded.IDs())
	assert.True(t, reloaded.Has("2"))
}

func TestArtifactsAddWriteFailure(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	a, err := LoadArtifacts(ctx, kv)
	require.NoError(t, err)

	kv.err = errors.New("disk full")
	_, err = a.Add(ctx, "1")
	require.Error(t, err)
	assert.False(t, a.Has("1"))
}

func TestLoadArtifactsRejectsGarbage(t *testing.T) {
	kv := newMemKV()
	kv.values[devicestore.KeyCollectedArtifacts] = "{not json"
	_, err := LoadArtifacts(context.Background(), kv)
	assert.Error(t, err)
}

func TestLoadArtifactsDropsDuplicates(t *testing.T) {
	kv := newMemKV()
	kv.values[devicestore.KeyCollectedArtifacts] = `["1","1","3"]`
	a, err := LoadArtifacts(context.Background(), kv)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, a.IDs())
}

func TestArtifactsWithDeviceStore(t *testing.T) {
	ctx := context.Background()
	store, err := devicestore.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	a, err := LoadArtifacts(ctx, store)
	require.NoError(t, err)
	_, err = a.Add(ctx, "7")
	require.NoError(t, err)

	raw, ok, err := store.Get(ctx, devicestore.KeyCollectedArtifacts)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `["7"]`, raw)
}

func TestVisitsPersistUnderOwnKey(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	v, err := LoadVisits(ctx, kv)
	require.NoError(t, err)

	for _, id := range []string{"1", "2", "1"} {
		_, err := v.Add(ctx, id)
		require.NoError(t, err)
	}
	assert.Equal(t, `["1","2"]`, kv.values[devicestore.KeyVisitedLocations])
	assert.NotContains(t, kv.values, devicestore.KeyCollectedArtifacts)

	reloaded, err := LoadVisits(ctx, kv)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())
}

func TestNewVisitsInMemory(t *testing.T) {
	v := NewVisits()
	added, err := v.Add(context.Background(), "3")
	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, v.Has("3"))
}

func TestAchievementsMerge(t *testing.T) {
	e := NewAchievements(achievement.Distance5K)

	added := e.Merge(achievement.Distance10K, achievement.Distance5K, achievement.ArtifactCollector)
	assert.Equal(t, []string{achievement.ArtifactCollector, achievement.Distance10K}, added)
	assert.Empty(t, e.Merge(achievement.Distance10K))

	snap := e.Snapshot()
	snap["bogus"] = struct{}{}
	assert.False(t, e.Has("bogus"))
	assert.Len(t, e.IDs(), 3)
}

func TestAchievementsConcurrentMerge(t *testing.T) {
	e := NewAchievements()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Merge(achievement.HistoryBuff)
			_ = e.Has(achievement.HistoryBuff)
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{achievement.HistoryBuff}, e.IDs())
}

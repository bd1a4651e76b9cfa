package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pb-analyzer/internal/cache"
	"pb-analyzer/internal/powerbi"
	"pb-analyzer/internal/source"
)

type mapStore struct {
	data    map[string][]byte
	ttls    map[string]time.Duration
	failGet bool
}

func newMapStore() *mapStore {
	return &mapStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *mapStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if m.failGet {
		return nil, false, errors.New("connection refused")
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

type countingSource struct {
	fetches int
}

func (c *countingSource) Kind() string { return "test" }

func (c *countingSource) List(context.Context) ([]source.Item, error) {
	return []source.Item{{ID: "r1"}}, nil
}

func (c *countingSource) Fetch(_ context.Context, item source.Item) (*powerbi.Definition, error) {
	c.fetches++
	if item.ID == "broken" {
		return nil, errors.New("boom")
	}
	return &powerbi.Definition{ReportID: item.ID, ModelID: "m", Schema: []byte(`{"Entities":[]}`), Exploration: []byte(`{}`)}, nil
}

func TestSource_ServesSecondFetchFromStore(t *testing.T) {
	inner := &countingSource{}
	store := newMapStore()
	src := cache.Wrap(inner, store, time.Hour, nil)

	first, err := src.Fetch(context.Background(), source.Item{ID: "r1"})
	require.NoError(t, err)
	second, err := src.Fetch(context.Background(), source.Item{ID: "r1"})
	require.NoError(t, err)

	assert.Equal(t, 1, inner.fetches)
	assert.Equal(t, first, second)
	assert.Equal(t, time.Hour, store.ttls[cache.Key("test", "r1")])
}

func TestSource_StoreErrorsDoNotFailFetch(t *testing.T) {
	inner := &countingSource{}
	store := newMapStore()
	store.failGet = true
	src := cache.Wrap(inner, store, 0, nil)

	for range 2 {
		_, err := src.Fetch(context.Background(), source.Item{ID: "r1"})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, inner.fetches)
	assert.Equal(t, cache.DefaultTTL, store.ttls[cache.Key("test", "r1")])
}

func TestSource_FetchErrorIsNotCached(t *testing.T) {
	inner := &countingSource{}
	store := newMapStore()
	src := cache.Wrap(inner, store, time.Minute, nil)

	_, err := src.Fetch(context.Background(), source.Item{ID: "broken"})
	require.Error(t, err)
	assert.Empty(t, store.data)
}

func TestKey(t *testing.T) {
	assert.Equal(t, cache.Key("org", "r1"), cache.Key("org", "r1"))
	assert.NotEqual(t, cache.Key("org", "r1"), cache.Key("embed", "r1"))
	assert.Regexp(t, `^pba:def:[0-9a-f]{32}$`, cache.Key("org", "r1"))
}

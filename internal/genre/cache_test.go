package genre

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"vibesync/internal/result"
)

type countingFetcher struct {
	calls map[string]int
	res   map[string]result.Result[[]string]
}

func (f *countingFetcher) fetch(_ context.Context, id string) result.Result[[]string] {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[id]++
	return f.res[id]
}

func TestResolveQueriesEachArtistOnce(t *testing.T) {
	f := &countingFetcher{res: map[string]result.Result[[]string]{
		"artist1": result.OK([]string{"canadian pop", "pop"}),
	}}
	c := NewCache()

	for i := 0; i < 5; i++ {
		assert.Equal(t, []string{"canadian pop", "pop"}, c.Resolve(context.Background(), "artist1", f.fetch))
	}

	assert.Equal(t, 1, f.calls["artist1"])
	assert.Equal(t, 1, c.Len())
}

func TestResolveCachesEmptyGenres(t *testing.T) {
	f := &countingFetcher{res: map[string]result.Result[[]string]{
		"indie": result.OK([]string(nil)),
	}}
	c := NewCache()

	assert.Equal(t, []string{}, c.Resolve(context.Background(), "indie", f.fetch))
	assert.Equal(t, []string{}, c.Resolve(context.Background(), "indie", f.fetch))

	assert.Equal(t, 1, f.calls["indie"])
	genres, ok := c.Get("indie")
	assert.True(t, ok)
	assert.Empty(t, genres)
}

func TestResolveDoesNotCacheFailures(t *testing.T) {
	f := &countingFetcher{res: map[string]result.Result[[]string]{
		"down":    result.Degraded[[]string](errors.New("503")),
		"limited": result.Empty[[]string](),
	}}
	c := NewCache()

	assert.Equal(t, []string{}, c.Resolve(context.Background(), "down", f.fetch))
	assert.Equal(t, []string{}, c.Resolve(context.Background(), "down", f.fetch))
	assert.Equal(t, []string{}, c.Resolve(context.Background(), "limited", f.fetch))

	assert.Equal(t, 2, f.calls["down"])
	assert.Equal(t, 1, f.calls["limited"])
	assert.Equal(t, 0, c.Len())
}

func TestStoreIsWriteOnce(t *testing.T) {
	c := NewCache()
	c.store("a", []string{"rock"})
	got := c.store("a", []string{"jazz"})

	assert.Equal(t, []string{"rock"}, got)
	genres, _ := c.Get("a")
	assert.Equal(t, []string{"rock"}, genres)
}

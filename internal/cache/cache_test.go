package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/hlabridge/pkg/core"
)

func TestActorCache_NewActorCache(t *testing.T) {
	cache := NewActorCache()

	require.NotNil(t, cache)
	assert.Equal(t, 0, cache.Len())
}

func TestActorCache_AddAndGet(t *testing.T) {
	cache := NewActorCache()

	actor := core.Actor{
		ID:       "a1",
		Type:     core.ActorType{Category: "vehicle", Name: "tank"},
		EntityID: "1:2:3",
	}

	assert.True(t, cache.Add(actor))
	assert.False(t, cache.Add(actor), "second add replaces")

	got, ok := cache.Get("a1")
	require.True(t, ok)
	assert.Equal(t, "tank", got.Type.Name)

	got, ok = cache.ByEntityID("1:2:3")
	require.True(t, ok)
	assert.Equal(t, core.ActorID("a1"), got.ID)
}

func TestActorCache_Get_NotFound(t *testing.T) {
	cache := NewActorCache()

	_, ok := cache.Get("missing")
	assert.False(t, ok)
	_, ok = cache.ByEntityID("9:9:9")
	assert.False(t, ok)
}

func TestActorCache_EntityIDChange(t *testing.T) {
	cache := NewActorCache()
	cache.Add(core.Actor{ID: "a1", EntityID: "1:2:3"})
	cache.Add(core.Actor{ID: "a1", EntityID: "1:2:4"})

	_, ok := cache.ByEntityID("1:2:3")
	assert.False(t, ok, "stale entity id dropped")
	_, ok = cache.ByEntityID("1:2:4")
	assert.True(t, ok)
}

func TestActorCache_Remove(t *testing.T) {
	cache := NewActorCache()
	cache.Add(core.Actor{ID: "a1", EntityID: "1:2:3"})

	removed, ok := cache.Remove("a1")
	require.True(t, ok)
	assert.Equal(t, core.ActorID("a1"), removed.ID)

	_, ok = cache.Remove("a1")
	assert.False(t, ok)
	_, ok = cache.ByEntityID("1:2:3")
	assert.False(t, ok)
}

func TestActorCache_Reset(t *testing.T) {
	cache := NewActorCache()
	cache.Add(core.Actor{ID: "a1", EntityID: "1:2:3"})
	cache.Add(core.Actor{ID: "a2"})

	cache.Reset()

	assert.Equal(t, 0, cache.Len())
	_, ok := cache.ByEntityID("1:2:3")
	assert.False(t, ok)
}

func TestActorCache_Concurrent(t *testing.T) {
	cache := NewActorCache()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			cache.Add(core.Actor{ID: core.ActorID(fmt.Sprintf("a%d", i)), EntityID: fmt.Sprintf("1:1:%d", i)})
		}(i)
		go func(i int) {
			defer wg.Done()
			cache.Get(core.ActorID(fmt.Sprintf("a%d", i)))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, cache.Len())
}

func TestSafeCounter_InitialValue(t *testing.T) {
	var c SafeCounter
	assert.Equal(t, 0, c.Value())
}

func TestSafeCounter_Set(t *testing.T) {
	var c SafeCounter
	c.Set(42)
	assert.Equal(t, 42, c.Value())
}

func TestSafeCounter_Inc(t *testing.T) {
	var c SafeCounter
	c.Inc()
	c.Inc()
	assert.Equal(t, 2, c.Value())
}

func TestSafeCounter_Concurrent(t *testing.T) {
	var c SafeCounter
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, c.Value())
}

package cache

import (
	"sync"

	"github.com/OCAP2/hlabridge/pkg/core"
)

// ActorCache holds the actors created during the current session so state
// updates can be checked without a storage round trip. Actors are also
// indexed by DIS entity id when they have one.
type ActorCache struct {
	m        sync.RWMutex
	actors   map[core.ActorID]core.Actor
	byEntity map[string]core.ActorID
}

func NewActorCache() *ActorCache {
	return &ActorCache{
		actors:   make(map[core.ActorID]core.Actor),
		byEntity: make(map[string]core.ActorID),
	}
}

func (c *ActorCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.actors = make(map[core.ActorID]core.Actor)
	c.byEntity = make(map[string]core.ActorID)
}

func (c *ActorCache) Get(id core.ActorID) (core.Actor, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	a, ok := c.actors[id]
	return a, ok
}

// ByEntityID looks an actor up by its "site:application:entity" id.
func (c *ActorCache) ByEntityID(entityID string) (core.Actor, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	id, ok := c.byEntity[entityID]
	if !ok {
		return core.Actor{}, false
	}
	a, ok := c.actors[id]
	return a, ok
}

// Add stores a, replacing any actor with the same id. It reports whether
// the actor was new.
func (c *ActorCache) Add(a core.Actor) bool {
	c.m.Lock()
	defer c.m.Unlock()
	old, existed := c.actors[a.ID]
	if existed && old.EntityID != "" && old.EntityID != a.EntityID {
		delete(c.byEntity, old.EntityID)
	}
	c.actors[a.ID] = a
	if a.EntityID != "" {
		c.byEntity[a.EntityID] = a.ID
	}
	return !existed
}

// Remove drops the actor and reports whether it was present.
func (c *ActorCache) Remove(id core.ActorID) (core.Actor, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	a, ok := c.actors[id]
	if !ok {
		return core.Actor{}, false
	}
	delete(c.actors, id)
	if a.EntityID != "" && c.byEntity[a.EntityID] == id {
		delete(c.byEntity, a.EntityID)
	}
	return a, true
}

func (c *ActorCache) Len() int {
	c.m.RLock()
	defer c.m.RUnlock()
	return len(c.actors)
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}

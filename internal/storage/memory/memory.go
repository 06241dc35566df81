// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/OCAP2/hlabridge/internal/config"
	"github.com/OCAP2/hlabridge/pkg/core"
)

// ErrNoSession is returned when data arrives outside a session.
var ErrNoSession = errors.New("no active session")

// ActorRecord groups an actor with all its time-series data
type ActorRecord struct {
	Actor   core.Actor
	States  []core.ActorState
	Removed time.Time
}

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	actors       map[core.ActorID]*ActorRecord
	order        []core.ActorID
	interactions []core.Interaction

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:    cfg,
		actors: make(map[core.ActorID]*ActorRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session, dropping anything recorded before.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = s
	b.actors = make(map[core.ActorID]*ActorRecord)
	b.order = nil
	b.interactions = nil
	b.lastExportPath = ""
	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	if b.session.EndTime.IsZero() {
		b.session.EndTime = time.Now()
	}
	return b.exportJSON()
}

// AddActor registers an actor. Registering a known actor again replaces
// its identity and keeps its states.
func (b *Backend) AddActor(a *core.Actor) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if rec, ok := b.actors[a.ID]; ok {
		rec.Actor = *a
		return nil
	}
	b.actors[a.ID] = &ActorRecord{
		Actor:  *a,
		States: make([]core.ActorState, 0),
	}
	b.order = append(b.order, a.ID)
	return nil
}

// RecordActorState appends a state to a registered actor
func (b *Backend) RecordActorState(s *core.ActorState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.actors[s.ActorID]
	if !ok {
		return fmt.Errorf("state for unknown actor %s", s.ActorID)
	}
	rec.States = append(rec.States, *s)
	return nil
}

// RemoveActor marks a registered actor as removed
func (b *Backend) RemoveActor(r *core.ActorRemoval) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.actors[r.ActorID]
	if !ok {
		return fmt.Errorf("removal of unknown actor %s", r.ActorID)
	}
	rec.Removed = r.Time
	return nil
}

// RecordInteraction stores a generic message
func (b *Backend) RecordInteraction(i *core.Interaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.interactions = append(b.interactions, *i)
	return nil
}

// Actor returns a copy of the record for id.
func (b *Backend) Actor(id core.ActorID) (ActorRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.actors[id]
	if !ok {
		return ActorRecord{}, false
	}
	out := *rec
	out.States = append([]core.ActorState(nil), rec.States...)
	return out, true
}

// ActorCount returns the number of actors recorded this session.
func (b *Backend) ActorCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.actors)
}

// Interactions returns a copy of the recorded messages.
func (b *Backend) Interactions() []core.Interaction {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.Interaction(nil), b.interactions...)
}

// ExportedFilePath returns the path written by the last EndSession.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

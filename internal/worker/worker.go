package worker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/OCAP2/hlabridge/internal/cache"
	"github.com/OCAP2/hlabridge/internal/influx"
	"github.com/OCAP2/hlabridge/internal/storage"
	"github.com/OCAP2/hlabridge/pkg/core"
)

// ErrActorNotCreated is returned when an update or delete arrives for an
// actor the worker has not seen created.
var ErrActorNotCreated = errors.New("actor not created")

// Default parameter names the worker reads from lifecycle messages.
const (
	DefaultPositionParam   = "position"
	DefaultEntityIDParam   = "entityId"
	DefaultEntityTypeParam = "entityType"
)

// TrafficRecorder receives every message the worker handles. The influx
// manager implements it.
type TrafficRecorder interface {
	WriteMessage(ctx context.Context, msg *core.Message, dir influx.Direction) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	ActorCache *cache.ActorCache
	Logger     *slog.Logger
	Traffic    TrafficRecorder // optional

	PositionParam   string
	EntityIDParam   string
	EntityTypeParam string
}

// Manager records application messages into a storage backend.
type Manager struct {
	deps    Dependencies
	backend storage.Backend
	log     *slog.Logger

	inbound  cache.SafeCounter
	outbound cache.SafeCounter
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.ActorCache == nil {
		deps.ActorCache = cache.NewActorCache()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.PositionParam == "" {
		deps.PositionParam = DefaultPositionParam
	}
	if deps.EntityIDParam == "" {
		deps.EntityIDParam = DefaultEntityIDParam
	}
	if deps.EntityTypeParam == "" {
		deps.EntityTypeParam = DefaultEntityTypeParam
	}
	return &Manager{
		deps:    deps,
		backend: backend,
		log:     deps.Logger.With("component", "worker"),
	}
}

// StartSession clears the actor cache and opens a session on the backend.
func (m *Manager) StartSession(s *core.Session) error {
	m.deps.ActorCache.Reset()
	m.inbound.Set(0)
	m.outbound.Set(0)
	return m.backend.StartSession(s)
}

// EndSession closes the backend session. Exported recordings are logged.
func (m *Manager) EndSession() error {
	if err := m.backend.EndSession(); err != nil {
		return err
	}
	if exp, ok := m.backend.(storage.Exporter); ok && exp.ExportedFilePath() != "" {
		m.log.Info("Session recording written", "path", exp.ExportedFilePath())
	}
	return nil
}

// Stats returns a sample for the performance bucket.
func (m *Manager) Stats() influx.Stats {
	s := influx.Stats{
		Actors:   m.deps.ActorCache.Len(),
		Inbound:  m.inbound.Value(),
		Outbound: m.outbound.Value(),
	}
	if p, ok := m.backend.(interface{ Pending() int }); ok {
		s.QueueDepth = p.Pending()
	}
	return s
}

package worker

import (
	"context"
	"fmt"

	"github.com/spf13/cast"

	"github.com/OCAP2/hlabridge/internal/dispatcher"
	"github.com/OCAP2/hlabridge/internal/influx"
	"github.com/OCAP2/hlabridge/pkg/core"
)

// RegisterHandlers registers the inbound message handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Actor creation - sync (need to cache before states arrive)
	d.Register(core.ActorCreated, m.handleActorCreated, dispatcher.Logged())

	// High-volume state updates - buffered
	d.Register(core.ActorUpdated, m.handleActorUpdated, dispatcher.Buffered(10000), dispatcher.Logged())

	d.Register(core.ActorDeleted, m.handleActorDeleted, dispatcher.Logged())

	// Every interaction-mapped message type - buffered
	d.RegisterDefault(m.handleInteraction, dispatcher.Buffered(1000), dispatcher.Logged())
}

func (m *Manager) handleActorCreated(msg *core.Message) error {
	return m.record(msg, core.SourceRemote, influx.Inbound)
}

func (m *Manager) handleActorUpdated(msg *core.Message) error {
	return m.record(msg, core.SourceRemote, influx.Inbound)
}

func (m *Manager) handleActorDeleted(msg *core.Message) error {
	return m.record(msg, core.SourceRemote, influx.Inbound)
}

func (m *Manager) handleInteraction(msg *core.Message) error {
	return m.record(msg, core.SourceRemote, influx.Inbound)
}

// RecordOutbound records a message the application sends to the
// federation. Updates for unseen actors register them as local actors.
func (m *Manager) RecordOutbound(msg *core.Message) error {
	return m.record(msg, core.SourceLocal, influx.Outbound)
}

func (m *Manager) record(msg *core.Message, source core.Source, dir influx.Direction) error {
	if dir == influx.Inbound {
		m.inbound.Inc()
	} else {
		m.outbound.Inc()
	}
	if m.deps.Traffic != nil {
		if err := m.deps.Traffic.WriteMessage(context.Background(), msg, dir); err != nil {
			m.log.Warn("Failed to record traffic point", "type", msg.Type, "error", err)
		}
	}

	switch msg.Type {
	case core.ActorCreated:
		return m.createActor(msg, source)
	case core.ActorUpdated:
		if _, ok := m.deps.ActorCache.Get(msg.AboutActorID); !ok {
			if source == core.SourceRemote {
				return fmt.Errorf("%w: %s", ErrActorNotCreated, msg.AboutActorID)
			}
			return m.createActor(msg, source)
		}
		return m.recordState(msg)
	case core.ActorDeleted:
		if _, ok := m.deps.ActorCache.Remove(msg.AboutActorID); !ok {
			return fmt.Errorf("%w: %s", ErrActorNotCreated, msg.AboutActorID)
		}
		return m.backend.RemoveActor(&core.ActorRemoval{ActorID: msg.AboutActorID, Time: msg.Time})
	default:
		return m.backend.RecordInteraction(&core.Interaction{
			Type:           msg.Type,
			AboutActorID:   msg.AboutActorID,
			SendingActorID: msg.SendingActorID,
			Time:           msg.Time,
			Values:         msg.Values(),
		})
	}
}

// createActor caches the actor, stores it and records the creation values
// as its first state.
func (m *Manager) createActor(msg *core.Message, source core.Source) error {
	if msg.AboutActorID.IsZero() {
		return fmt.Errorf("%s without actor id", msg.Type)
	}
	actor := core.Actor{
		ID:         msg.AboutActorID,
		Type:       msg.ActorType,
		Source:     source,
		EntityID:   m.stringParam(msg, m.deps.EntityIDParam),
		EntityType: m.stringParam(msg, m.deps.EntityTypeParam),
		Created:    msg.Time,
	}
	m.deps.ActorCache.Add(actor)
	if err := m.backend.AddActor(&actor); err != nil {
		return fmt.Errorf("failed to add actor: %w", err)
	}
	return m.recordState(msg)
}

func (m *Manager) recordState(msg *core.Message) error {
	state := &core.ActorState{
		ActorID: msg.AboutActorID,
		Time:    msg.Time,
		Values:  msg.Values(),
	}
	if p := msg.Param(m.deps.PositionParam); p.IsSet() {
		switch v := p.Value.(type) {
		case core.Vec3:
			state.Position = &v
		case *core.Vec3:
			state.Position = v
		}
	}
	if err := m.backend.RecordActorState(state); err != nil {
		return fmt.Errorf("failed to record actor state: %w", err)
	}
	return nil
}

func (m *Manager) stringParam(msg *core.Message, name string) string {
	p := msg.Param(name)
	if !p.IsSet() {
		return ""
	}
	return cast.ToString(p.Value)
}

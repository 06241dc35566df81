package convert

import (
	"encoding/json"
	"fmt"

	"github.com/OCAP2/hlabridge/internal/model"
	"github.com/OCAP2/hlabridge/pkg/core"
)

// ActorStateToCore converts a GORM model.ActorState back to a core.ActorState.
// Values come back in their JSON form: numbers as float64, vectors as maps.
func ActorStateToCore(s model.ActorState) (core.ActorState, error) {
	out := core.ActorState{
		ActorID: core.ActorID(s.ActorID),
		Time:    s.Time,
	}
	if s.HasPos {
		c, ok := s.Position.Coordinates()
		if ok {
			out.Position = &core.Vec3{X: c.XY.X, Y: c.XY.Y, Z: c.Z}
		}
	}
	if len(s.Parameters) > 0 {
		if err := json.Unmarshal(s.Parameters, &out.Values); err != nil {
			return core.ActorState{}, fmt.Errorf("actor state %d parameters: %w", s.ID, err)
		}
	}
	return out, nil
}

// ActorToCore converts a GORM model.Actor back to a core.Actor.
func ActorToCore(a model.Actor) core.Actor {
	return core.Actor{
		ID:         core.ActorID(a.ActorID),
		Type:       core.ActorType{Category: a.Category, Name: a.TypeName},
		Source:     core.Source(a.Source),
		EntityID:   a.EntityID,
		EntityType: a.EntityType,
		Created:    a.FirstSeen,
	}
}

// SessionToCore converts a GORM model.Session back to a core.Session.
func SessionToCore(s model.Session) core.Session {
	out := core.Session{
		ID:            s.ID,
		Execution:     s.Execution,
		Federate:      s.Federate,
		SiteID:        s.SiteID,
		ApplicationID: s.ApplicationID,
		StartTime:     s.StartTime,
	}
	if s.EndTime.Valid {
		out.EndTime = s.EndTime.Time
	}
	return out
}

// InteractionToCore converts a GORM model.InteractionRecord back to a
// core.Interaction.
func InteractionToCore(r model.InteractionRecord) (core.Interaction, error) {
	out := core.Interaction{
		Type:           core.MessageType(r.MessageType),
		AboutActorID:   core.ActorID(r.AboutActorID),
		SendingActorID: core.ActorID(r.SendingActorID),
		Time:           r.Time,
	}
	if len(r.Parameters) > 0 {
		if err := json.Unmarshal(r.Parameters, &out.Values); err != nil {
			return core.Interaction{}, fmt.Errorf("interaction %d parameters: %w", r.ID, err)
		}
	}
	return out, nil
}

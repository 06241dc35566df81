// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/OCAP2/hlabridge/internal/geo"
	"github.com/OCAP2/hlabridge/internal/model"
	"github.com/OCAP2/hlabridge/pkg/core"
	"gorm.io/datatypes"
)

// valuesToJSON converts message values to datatypes.JSON for DB storage.
func valuesToJSON(values map[string]any) datatypes.JSON {
	if len(values) == 0 {
		return datatypes.JSON("{}")
	}
	data, err := json.Marshal(values)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// CoreToSession converts a core.Session to a GORM model.Session.
func CoreToSession(s core.Session) model.Session {
	out := model.Session{
		Execution:     s.Execution,
		Federate:      s.Federate,
		SiteID:        s.SiteID,
		ApplicationID: s.ApplicationID,
		StartTime:     s.StartTime,
		EndTime:       nullTime(s.EndTime),
	}
	out.ID = s.ID
	return out
}

// CoreToActor converts a core.Actor to a GORM model.Actor.
func CoreToActor(a core.Actor) model.Actor {
	return model.Actor{
		ActorID:    a.ID.String(),
		FirstSeen:  a.Created,
		Category:   a.Type.Category,
		TypeName:   a.Type.Name,
		Source:     string(a.Source),
		EntityID:   a.EntityID,
		EntityType: a.EntityType,
	}
}

// CoreToActorState converts a core.ActorState to a GORM model.ActorState.
// The position is stored as an XYZ point in the local frame.
func CoreToActorState(s core.ActorState) model.ActorState {
	out := model.ActorState{
		Time:       s.Time,
		ActorID:    s.ActorID.String(),
		Parameters: valuesToJSON(s.Values),
	}
	if s.Position != nil {
		out.Position = geo.PointFromVec3(*s.Position)
		out.HasPos = true
	}
	return out
}

// CoreToInteraction converts a core.Interaction to a GORM model.InteractionRecord.
func CoreToInteraction(i core.Interaction) model.InteractionRecord {
	return model.InteractionRecord{
		Time:           i.Time,
		MessageType:    string(i.Type),
		AboutActorID:   i.AboutActorID.String(),
		SendingActorID: i.SendingActorID.String(),
		Parameters:     valuesToJSON(i.Values),
	}
}

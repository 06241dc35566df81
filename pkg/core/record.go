// pkg/core/record.go
package core

import "time"

// Source tells whether a recorded actor came from the federation or from
// the local application.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Session is one bridge run against a federation execution.
type Session struct {
	ID            uint      `json:"id"`
	Execution     string    `json:"execution"`
	Federate      string    `json:"federate"`
	SiteID        uint16    `json:"siteId"`
	ApplicationID uint16    `json:"applicationId"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime,omitzero"`
}

// Actor is the recorded identity of an application actor.
type Actor struct {
	ID         ActorID   `json:"id"`
	Type       ActorType `json:"type"`
	Source     Source    `json:"source"`
	EntityID   string    `json:"entityId,omitempty"`
	EntityType string    `json:"entityType,omitempty"`
	Created    time.Time `json:"created"`
}

// ActorState is an actor's parameters at one point in time. Position is
// nil when the actor's mapping carries no position field.
type ActorState struct {
	ActorID  ActorID        `json:"actorId"`
	Time     time.Time      `json:"time"`
	Position *Vec3          `json:"position,omitempty"`
	Values   map[string]any `json:"values"`
}

// ActorRemoval marks the end of an actor's life.
type ActorRemoval struct {
	ActorID ActorID   `json:"actorId"`
	Time    time.Time `json:"time"`
}

// Interaction is a recorded generic message.
type Interaction struct {
	Type           MessageType    `json:"type"`
	AboutActorID   ActorID        `json:"aboutActorId,omitempty"`
	SendingActorID ActorID        `json:"sendingActorId,omitempty"`
	Time           time.Time      `json:"time"`
	Values         map[string]any `json:"values"`
}

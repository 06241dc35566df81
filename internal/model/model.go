package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&Actor{},
	&ActorState{},
	&InteractionRecord{},
}

////////////////////////
// RECORDING MODELS
////////////////////////

// Session is one bridge run against a federation execution
type Session struct {
	gorm.Model
	Execution     string       `json:"execution" gorm:"size:127;index:idx_session_execution"`
	Federate      string       `json:"federate" gorm:"size:127"`
	SiteID        uint16       `json:"siteId"`
	ApplicationID uint16       `json:"applicationId"`
	StartTime     time.Time    `json:"startTime" gorm:"type:timestamptz;index:idx_session_start"`
	EndTime       sql.NullTime `json:"endTime" gorm:"type:timestamptz"`
}

func (*Session) TableName() string {
	return "sessions"
}

// Actor is an application actor seen during a session
// Uses composite primary key (SessionID, ActorID)
type Actor struct {
	SessionID  uint         `json:"sessionId" gorm:"primaryKey;autoIncrement:false"`
	ActorID    string       `json:"actorId" gorm:"primaryKey;size:36"`
	Session    Session      `gorm:"foreignkey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
	FirstSeen  time.Time    `json:"firstSeen" gorm:"type:timestamptz;NOT NULL;index:idx_actor_first_seen"`
	RemovedAt  sql.NullTime `json:"removedAt" gorm:"type:timestamptz"`
	Category   string       `json:"category" gorm:"size:64"`
	TypeName   string       `json:"typeName" gorm:"size:127"`
	Source     string       `json:"source" gorm:"size:16"`                             // remote or local
	EntityID   string       `json:"entityId" gorm:"size:32;index:idx_actor_entity_id"` // DIS site:application:entity
	EntityType string       `json:"entityType" gorm:"size:64"`
}

func (*Actor) TableName() string {
	return "actors"
}

// ActorState tracks actor parameters at a point in time
// References Actor by (SessionID, ActorID) composite FK
type ActorState struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time" gorm:"type:timestamptz;"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_actorstate_session_id"`
	ActorID   string    `json:"actorId" gorm:"size:36;index:idx_actorstate_actor_id"`
	Actor     Actor     `gorm:"foreignkey:SessionID,ActorID;references:SessionID,ActorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	Position   geom.Point     `json:"position"`                    // local position, XYZ
	HasPos     bool           `json:"hasPosition" gorm:"default:false"`
	Parameters datatypes.JSON `json:"parameters" gorm:"default:'{}'"` // message parameter values by name
}

func (*ActorState) TableName() string {
	return "actor_states"
}

// InteractionRecord is a generic message exchanged with the federation
type InteractionRecord struct {
	ID             uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Time           time.Time      `json:"time" gorm:"type:timestamptz;index:idx_interaction_time"`
	SessionID      uint           `json:"sessionId" gorm:"index:idx_interaction_session_id"`
	Session        Session        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	MessageType    string         `json:"messageType" gorm:"size:127;index:idx_interaction_type"`
	AboutActorID   string         `json:"aboutActorId" gorm:"size:36"`
	SendingActorID string         `json:"sendingActorId" gorm:"size:36"`
	Parameters     datatypes.JSON `json:"parameters" gorm:"default:'{}'"`
}

func (*InteractionRecord) TableName() string {
	return "interaction_records"
}

// Package storage defines the recording backends fed by the worker.
package storage

import "github.com/OCAP2/hlabridge/pkg/core"

// Backend is the interface all storage implementations must satisfy.
// Implementations are called from dispatcher goroutines and lock internally.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession() error

	// Actor lifecycle
	AddActor(a *core.Actor) error
	RecordActorState(s *core.ActorState) error
	RemoveActor(r *core.ActorRemoval) error

	// Generic messages
	RecordInteraction(i *core.Interaction) error
}

// Exporter is an optional interface for storage backends that write a
// recording file when the session ends.
type Exporter interface {
	ExportedFilePath() string
}

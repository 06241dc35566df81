// internal/storage/storage_test.go
package storage_test

import (
	"testing"

	"github.com/OCAP2/hlabridge/internal/storage"
	"github.com/OCAP2/hlabridge/pkg/core"
	"github.com/stretchr/testify/assert"
)

type nopBackend struct{ path string }

func (nopBackend) Init() error                               { return nil }
func (nopBackend) Close() error                              { return nil }
func (nopBackend) StartSession(*core.Session) error          { return nil }
func (nopBackend) EndSession() error                         { return nil }
func (nopBackend) AddActor(*core.Actor) error                { return nil }
func (nopBackend) RecordActorState(*core.ActorState) error   { return nil }
func (nopBackend) RemoveActor(*core.ActorRemoval) error      { return nil }
func (nopBackend) RecordInteraction(*core.Interaction) error { return nil }
func (b nopBackend) ExportedFilePath() string                { return b.path }

func TestExporterIsOptional(t *testing.T) {
	var b storage.Backend = nopBackend{path: "/tmp/x.json.gz"}
	exp, ok := b.(storage.Exporter)
	assert.True(t, ok)
	assert.Equal(t, "/tmp/x.json.gz", exp.ExportedFilePath())
}

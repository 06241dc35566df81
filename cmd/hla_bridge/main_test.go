package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OCAP2/hlabridge/internal/api"
	"github.com/OCAP2/hlabridge/internal/config"
	"github.com/OCAP2/hlabridge/internal/database"
	"github.com/OCAP2/hlabridge/internal/mapping"
	"github.com/OCAP2/hlabridge/internal/rti"
	"github.com/OCAP2/hlabridge/internal/rti/memrti"
	"github.com/OCAP2/hlabridge/internal/session"
	"github.com/OCAP2/hlabridge/internal/storage/memory"
	gormstorage "github.com/OCAP2/hlabridge/internal/storage/gorm"
	wsstorage "github.com/OCAP2/hlabridge/internal/storage/websocket"
	"github.com/OCAP2/hlabridge/pkg/core"
	"github.com/OCAP2/hlabridge/pkg/rpr"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateStorageBackend(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	log := quietLogger()

	b, err := createStorageBackend(config.StorageConfig{}, t.TempDir(), start, log)
	require.NoError(t, err)
	assert.IsType(t, &memory.Backend{}, b)

	b, err = createStorageBackend(config.StorageConfig{
		Type:      "websocket",
		WebSocket: config.WebSocketConfig{URL: "ws://127.0.0.1:1/stream"},
	}, t.TempDir(), start, log)
	require.NoError(t, err)
	assert.IsType(t, &wsstorage.Backend{}, b)

	b, err = createStorageBackend(config.StorageConfig{Type: "postgres"}, t.TempDir(), start, log)
	require.NoError(t, err)
	assert.IsType(t, &gormstorage.Backend{}, b)

	_, err = createStorageBackend(config.StorageConfig{Type: "cassandra"}, t.TempDir(), start, log)
	assert.ErrorContains(t, err, "cassandra")
}

func TestReadScript(t *testing.T) {
	script := `{"type":"ActorCreated","actorType":"Vehicle.Tank","aboutActorId":"a1","params":[{"name":"Callsign","type":"STRING","value":"Alpha"}]}
{"type":"WeaponFired","sendingActorId":"a1"}
`
	out := make(chan *core.Message, 4)
	require.NoError(t, readScript(context.Background(), strings.NewReader(script), 0, out))

	var got []*core.Message
	for msg := range out {
		got = append(got, msg)
	}
	require.Len(t, got, 2)
	assert.Equal(t, core.ActorCreated, got[0].Type)
	assert.Equal(t, core.ActorType{Category: "Vehicle", Name: "Tank"}, got[0].ActorType)
	assert.Equal(t, "Alpha", got[0].Param("Callsign").Value)
	assert.Equal(t, core.MessageType("WeaponFired"), got[1].Type)
	assert.Equal(t, core.ActorID("a1"), got[1].SendingActorID)
}

func TestReadScript_Errors(t *testing.T) {
	out := make(chan *core.Message, 4)
	err := readScript(context.Background(), strings.NewReader(`{"aboutActorId":"a1"}`), 0, out)
	assert.ErrorContains(t, err, "missing type")
	_, open := <-out
	assert.False(t, open)

	out = make(chan *core.Message, 4)
	err = readScript(context.Background(), strings.NewReader(`{"type":`), 0, out)
	assert.ErrorContains(t, err, "message 1")
}

func TestReadScript_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := make(chan *core.Message)
	require.NoError(t, readScript(ctx, strings.NewReader(`{"type":"Ping"}`), 0, out))
	_, open := <-out
	assert.False(t, open)
}

func TestReplayScript_MissingFile(t *testing.T) {
	out := make(chan *core.Message)
	err := replayScript(context.Background(), "does-not-exist.jsonl", 0, out)
	assert.Error(t, err)
	_, open := <-out
	assert.False(t, open)
}

func TestPrintTypes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printTypes(&buf, rpr.NewRegistry()))
	assert.Contains(t, buf.String(), "NAME")
	assert.Contains(t, buf.String(), rpr.WorldCoordinateType)
}

func TestPrintMappings(t *testing.T) {
	doc := `{
		"objects": [{
			"name": "tank",
			"objectClass": "BaseEntity.PhysicalEntity.Platform.GroundVehicle",
			"actorType": "Vehicle.Tank",
			"disEntityEnum": "1 1 225 1 1 3 0",
			"entityIdAttributeName": "EntityIdentifier",
			"attrToProp": [
				{ "hlaName": "EntityIdentifier", "hlaDataType": "ENTITY_IDENTIFIER_TYPE",
				  "parameters": [ { "gameName": "aboutActorId", "gameDataType": "ACTOR" } ] }
			]
		}],
		"interactions": [{
			"interactionClass": "WeaponFire",
			"messageType": "WeaponFired"
		}]
	}`
	registry := mapping.NewRegistry(nil)
	require.NoError(t, config.ReadMappings(strings.NewReader(doc), "json", rpr.NewRegistry(), registry))

	var buf bytes.Buffer
	require.NoError(t, printMappings(&buf, registry))
	out := buf.String()
	assert.Contains(t, out, "BaseEntity.PhysicalEntity.Platform.GroundVehicle")
	assert.Contains(t, out, "Vehicle.Tank")
	assert.Contains(t, out, "1 1 225 1 1 3 0")
	assert.Contains(t, out, "WeaponFire")
	assert.Contains(t, out, "WeaponFired")
}

func TestExportSession(t *testing.T) {
	db, err := database.GetSqliteDB("file:TestExportSession?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store := gormstorage.New(gormstorage.Dependencies{DB: db, Logger: quietLogger(), FlushInterval: time.Hour})
	require.NoError(t, store.Init())
	t.Cleanup(func() { _ = store.Close() })

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sess := &core.Session{Execution: "RPR-FOM", Federate: "hla-bridge", StartTime: start}
	require.NoError(t, store.StartSession(sess))

	require.NoError(t, store.AddActor(&core.Actor{
		ID:      "a1",
		Type:    core.ActorType{Category: "Vehicle", Name: "Tank"},
		Source:  core.SourceRemote,
		Created: start,
	}))
	require.NoError(t, store.RecordActorState(&core.ActorState{
		ActorID:  "a1",
		Time:     start.Add(time.Second),
		Position: &core.Vec3{X: 1, Y: 2, Z: 3},
		Values:   map[string]any{"Callsign": "Alpha"},
	}))
	require.NoError(t, store.RemoveActor(&core.ActorRemoval{ActorID: "a1", Time: start.Add(2 * time.Second)}))
	require.NoError(t, store.RecordInteraction(&core.Interaction{
		Type:           "WeaponFired",
		SendingActorID: "a1",
		Time:           start.Add(time.Second),
		Values:         map[string]any{"Rounds": 2},
	}))
	store.Flush()

	path, err := exportSession(db, sess.ID, config.MemoryConfig{OutputDir: t.TempDir()})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var export memory.SessionExport
	require.NoError(t, json.Unmarshal(data, &export))

	assert.Equal(t, "RPR-FOM", export.Execution)
	require.Len(t, export.Actors, 1)
	actor := export.Actors[0]
	assert.Equal(t, core.ActorID("a1"), actor.ID)
	assert.Equal(t, "Vehicle.Tank", actor.Type)
	require.NotNil(t, actor.Removed)
	require.Len(t, actor.States, 1)
	assert.Equal(t, []float64{1, 2, 3}, actor.States[0].Position)
	assert.Equal(t, "Alpha", actor.States[0].Values["Callsign"])
	require.Len(t, export.Interactions, 1)
}

func TestExportSession_UnknownSession(t *testing.T) {
	db, err := database.GetSqliteDB("file:TestExportSession_UnknownSession?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	_, err = exportSession(db, 42, config.MemoryConfig{OutputDir: t.TempDir()})
	assert.ErrorContains(t, err, "session 42")
}

func TestNewCoordinates(t *testing.T) {
	c := newCoordinates(config.OriginConfig{X: 10, Y: 20, Z: 30})
	assert.False(t, c.Geodetic())
	assert.Equal(t, core.Vec3{X: 10, Y: 20, Z: 30}, c.OriginLocation())

	g := newCoordinates(config.OriginConfig{Geodetic: true, Latitude: 52, Longitude: 13})
	assert.True(t, g.Geodetic())
}

func TestOpenRTI_Unknown(t *testing.T) {
	_, _, err := openRTI(config.FederationConfig{RTI: "carrier-pigeon"}, quietLogger())
	assert.ErrorContains(t, err, "carrier-pigeon")
}

func newTestBridge(t *testing.T, backend *memory.Backend) *bridge {
	t.Helper()
	hub := memrti.NewHub(rti.DefineRPR(rti.NewFOM()))
	b, err := newBridge(bridgeDeps{
		Federation: config.FederationConfig{
			Execution:    "RPR-FOM",
			Federate:     "hla-bridge",
			SiteID:       3,
			TickInterval: 5 * time.Millisecond,
		},
		Session:  hub.NewSession(),
		Registry: mapping.NewRegistry(nil),
		Types:    rpr.NewRegistry(),
		Backend:  backend,
		Logger:   quietLogger(),
		ZLogger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	return b
}

func TestBridge_RecordsScriptedMessages(t *testing.T) {
	dir := t.TempDir()
	backend := memory.New(config.MemoryConfig{OutputDir: dir})
	b := newTestBridge(t, backend)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, b.start(start))
	assert.True(t, b.coordinator.IsJoined())
	assert.Equal(t, uint16(3), b.coordinator.SiteID())

	created := core.NewMessage(core.ActorCreated)
	created.ActorType = core.ActorType{Category: "Vehicle", Name: "Tank"}
	created.AboutActorID = "local-1"
	fired := core.NewMessage("WeaponFired")
	fired.SendingActorID = "local-1"

	script := make(chan *core.Message, 2)
	script <- created
	script <- fired
	close(script)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.loop(ctx, script)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return backend.ActorCount() == 1 && len(backend.Interactions()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	b.shutdown()
	assert.False(t, b.coordinator.IsJoined())

	rec, ok := backend.Actor("local-1")
	require.True(t, ok)
	assert.Equal(t, core.SourceLocal, rec.Actor.Source)

	path := backend.ExportedFilePath()
	require.NotEmpty(t, path)
	assert.FileExists(t, path)
	assert.Equal(t, filepath.Join(dir, "RPR-FOM_hla-bridge_20260301_120000.json"), path)
}

type recordingUploader struct {
	path string
	meta api.UploadMetadata
}

func (u *recordingUploader) Upload(_ context.Context, path string, meta api.UploadMetadata) error {
	u.path = path
	u.meta = meta
	return nil
}

func TestBridge_UploadsRecordingOnShutdown(t *testing.T) {
	dir := t.TempDir()
	backend := memory.New(config.MemoryConfig{OutputDir: dir})
	up := &recordingUploader{}
	sessions := session.NewContext()

	hub := memrti.NewHub(rti.DefineRPR(rti.NewFOM()))
	b, err := newBridge(bridgeDeps{
		Federation: config.FederationConfig{Execution: "RPR-FOM", Federate: "hla-bridge"},
		Session:    hub.NewSession(),
		Registry:   mapping.NewRegistry(nil),
		Types:      rpr.NewRegistry(),
		Backend:    backend,
		Sessions:   sessions,
		Uploader:   up,
		UploadTag:  "exercise",
		Logger:     quietLogger(),
		ZLogger:    zerolog.Nop(),
	})
	require.NoError(t, err)

	require.NoError(t, b.start(time.Now().Add(-time.Minute)))
	active, ok := sessions.Get()
	require.True(t, ok)
	assert.Equal(t, "RPR-FOM", active.Execution)
	assert.NotEmpty(t, sessions.LogAttrs())

	b.shutdown()

	_, ok = sessions.Get()
	assert.False(t, ok)
	assert.Nil(t, sessions.LogAttrs())

	assert.Equal(t, backend.ExportedFilePath(), up.path)
	assert.Equal(t, "exercise", up.meta.Tag)
	assert.Equal(t, "hla-bridge", up.meta.Federate)
	assert.Greater(t, up.meta.Duration, 30*time.Second)
}

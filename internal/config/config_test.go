package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"federation": { "execution": "Exercise", "rti": "nats" },
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "Exercise", viper.GetString("federation.execution"))
	assert.Equal(t, "nats", viper.GetString("federation.rti"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./hlalogs", viper.GetString("logsDir"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "postgres", viper.GetString("db.username"))
	assert.Equal(t, "postgres", viper.GetString("db.password"))
	assert.Equal(t, "hlabridge", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "hla-bridge", viper.GetString("influx.org"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "./recordings", viper.GetString("storage.memory.outputDir"))
	assert.Equal(t, true, viper.GetBool("storage.memory.compressOutput"))
	assert.Equal(t, "3m", viper.GetString("storage.sqlite.dumpInterval"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "hla-bridge", viper.GetString("otel.serviceName"))
	assert.Equal(t, "5s", viper.GetString("otel.batchTimeout"))
	assert.Equal(t, "", viper.GetString("otel.endpoint"))
	assert.Equal(t, true, viper.GetBool("otel.insecure"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetStorageConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, "./recordings", cfg.Memory.OutputDir)
	assert.Equal(t, true, cfg.Memory.CompressOutput)
	assert.Equal(t, 3*time.Minute, cfg.SQLite.DumpInterval)
	assert.Equal(t, "ws://localhost:5000/api/v1/stream", cfg.WebSocket.URL)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"storage": {
			"type": "sqlite",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sqlite": { "dumpInterval": "10m", "dumpPath": "/tmp/bridge.db" },
			"websocket": { "url": "ws://example:9000/stream", "secret": "s3cret" }
		}
	}`)))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.Equal(t, false, sc.Memory.CompressOutput)
	assert.Equal(t, 10*time.Minute, sc.SQLite.DumpInterval)
	assert.Equal(t, "/tmp/bridge.db", sc.SQLite.DumpPath)
	assert.Equal(t, "ws://example:9000/stream", sc.WebSocket.URL)
	assert.Equal(t, "s3cret", sc.WebSocket.Secret)
}

func TestGetFederationConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	fc := GetFederationConfig()
	assert.Equal(t, "RPR-FOM", fc.Execution)
	assert.Equal(t, "hla-bridge", fc.Federate)
	assert.Equal(t, "RPR-FOM.fed", fc.FOMFile)
	assert.Equal(t, "memory", fc.RTI)
	assert.Equal(t, "nats://127.0.0.1:4222", fc.NATS.URL)
	assert.Equal(t, 2*time.Second, fc.NATS.ReconnectWait)
	assert.Zero(t, fc.SiteID, "unset ids are allocated at random later")
	assert.Zero(t, fc.ApplicationID)
	assert.Equal(t, 50*time.Millisecond, fc.TickInterval)
	assert.Equal(t, "mappings.json", fc.MappingsFile)
}

func TestGetFederationConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"federation": {
			"execution": "Exercise",
			"siteId": 12,
			"applicationId": 70000,
			"tickInterval": "20ms",
			"nats": { "url": "nats://bus:4222", "timeout": "1s" }
		}
	}`)))

	fc := GetFederationConfig()
	assert.Equal(t, "Exercise", fc.Execution)
	assert.Equal(t, uint16(12), fc.SiteID)
	assert.Zero(t, fc.ApplicationID, "out of range ids are ignored")
	assert.Equal(t, 20*time.Millisecond, fc.TickInterval)
	assert.Equal(t, "nats://bus:4222", fc.NATS.URL)
	assert.Equal(t, time.Second, fc.NATS.Timeout)
}

func TestGetOriginConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"origin": { "geodetic": true, "latitude": 52.5, "longitude": 13.4, "elevation": 34, "heading": 90 }
	}`)))

	oc := GetOriginConfig()
	assert.True(t, oc.Geodetic)
	assert.InDelta(t, 52.5, oc.Latitude, 1e-9)
	assert.InDelta(t, 13.4, oc.Longitude, 1e-9)
	assert.InDelta(t, 34, oc.Elevation, 1e-9)
	assert.InDelta(t, 90, oc.Heading, 1e-9)
	assert.Zero(t, oc.X)
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetOTelConfig()
	assert.Equal(t, false, cfg.Enabled)
	assert.Equal(t, "hla-bridge", cfg.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
	assert.Equal(t, "", cfg.Endpoint)
	assert.Equal(t, true, cfg.Insecure)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"batchTimeout": "30s",
			"endpoint": "localhost:4317",
			"insecure": false
		}
	}`)))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4317", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
}

func TestGetAPIConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"api": { "serverUrl": "https://recordings.example", "apiKey": "k", "upload": true, "tag": "exercise" }
	}`)))

	ac := GetAPIConfig()
	assert.Equal(t, "https://recordings.example", ac.ServerURL)
	assert.Equal(t, "k", ac.APIKey)
	assert.True(t, ac.Upload)
	assert.Equal(t, "exercise", ac.Tag)
}

func TestGetMonitorConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{ "logsDir": "/var/log/hla" }`)))

	mc := GetMonitorConfig()
	assert.Equal(t, 10*time.Second, mc.Interval)
	assert.Equal(t, filepath.Join("/var/log/hla", "status.json"), mc.StatusFile)

	viper.Set("monitor.statusFile", "/tmp/bridge-status.json")
	assert.Equal(t, "/tmp/bridge-status.json", GetMonitorConfig().StatusFile)

	viper.Set("monitor.statusFile", "")
	assert.Empty(t, GetMonitorConfig().StatusFile)
}

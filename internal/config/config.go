package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "hla_bridge.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds settings for the in-memory SQLite backend.
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
}

// WebSocketConfig holds settings for the streaming backend.
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Type      string          `json:"type" mapstructure:"type"`
	Memory    MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite    SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
}

// NATSConfig configures the NATS federation transport.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"maxReconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnectWait"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// FederationConfig describes the federation the bridge joins.
type FederationConfig struct {
	Execution     string
	Federate      string
	FOMFile       string
	RTI           string
	NATS          NATSConfig
	SiteID        uint16
	ApplicationID uint16
	TickInterval  time.Duration
	MappingsFile  string
}

// OriginConfig places the local scene in the federation's world frame.
// Geodetic origins take precedence over the cartesian location.
type OriginConfig struct {
	Geodetic  bool
	Latitude  float64
	Longitude float64
	Elevation float64

	X, Y, Z float64

	Heading float64
	Pitch   float64
	Roll    float64
}

// APIConfig points at the recording server that receives exported files.
type APIConfig struct {
	ServerURL string
	APIKey    string
	Upload    bool
	Tag       string
}

// MonitorConfig controls the status monitor.
type MonitorConfig struct {
	Interval   time.Duration
	StatusFile string
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./hlalogs")

	viper.SetDefault("federation.execution", "RPR-FOM")
	viper.SetDefault("federation.federate", "hla-bridge")
	viper.SetDefault("federation.fomFile", "RPR-FOM.fed")
	viper.SetDefault("federation.rti", "memory")
	viper.SetDefault("federation.nats.url", "nats://127.0.0.1:4222")
	viper.SetDefault("federation.nats.maxReconnects", 60)
	viper.SetDefault("federation.nats.reconnectWait", "2s")
	viper.SetDefault("federation.nats.timeout", "5s")
	viper.SetDefault("federation.siteId", 0)
	viper.SetDefault("federation.applicationId", 0)
	viper.SetDefault("federation.tickInterval", "50ms")
	viper.SetDefault("federation.mappingsFile", "mappings.json")

	viper.SetDefault("origin.geodetic", false)
	viper.SetDefault("origin.latitude", 0.0)
	viper.SetDefault("origin.longitude", 0.0)
	viper.SetDefault("origin.elevation", 0.0)
	viper.SetDefault("origin.x", 0.0)
	viper.SetDefault("origin.y", 0.0)
	viper.SetDefault("origin.z", 0.0)
	viper.SetDefault("origin.heading", 0.0)
	viper.SetDefault("origin.pitch", 0.0)
	viper.SetDefault("origin.roll", 0.0)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "hlabridge")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "hla-bridge")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "")
	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/api/v1/stream")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.upload", false)
	viper.SetDefault("api.tag", "")

	viper.SetDefault("monitor.interval", "10s")
	viper.SetDefault("monitor.statusFile", "status.json")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "hla-bridge")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStorageConfig returns the storage section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
	}
}

// GetFederationConfig returns the federation section. Out of range site
// and application ids are treated as unset.
func GetFederationConfig() FederationConfig {
	return FederationConfig{
		Execution: viper.GetString("federation.execution"),
		Federate:  viper.GetString("federation.federate"),
		FOMFile:   viper.GetString("federation.fomFile"),
		RTI:       viper.GetString("federation.rti"),
		NATS: NATSConfig{
			URL:           viper.GetString("federation.nats.url"),
			MaxReconnects: viper.GetInt("federation.nats.maxReconnects"),
			ReconnectWait: viper.GetDuration("federation.nats.reconnectWait"),
			Timeout:       viper.GetDuration("federation.nats.timeout"),
		},
		SiteID:        disID(viper.GetInt("federation.siteId")),
		ApplicationID: disID(viper.GetInt("federation.applicationId")),
		TickInterval:  viper.GetDuration("federation.tickInterval"),
		MappingsFile:  viper.GetString("federation.mappingsFile"),
	}
}

func disID(v int) uint16 {
	if v <= 0 || v > 65535 {
		return 0
	}
	return uint16(v)
}

// GetOriginConfig returns the origin section.
func GetOriginConfig() OriginConfig {
	return OriginConfig{
		Geodetic:  viper.GetBool("origin.geodetic"),
		Latitude:  viper.GetFloat64("origin.latitude"),
		Longitude: viper.GetFloat64("origin.longitude"),
		Elevation: viper.GetFloat64("origin.elevation"),
		X:         viper.GetFloat64("origin.x"),
		Y:         viper.GetFloat64("origin.y"),
		Z:         viper.GetFloat64("origin.z"),
		Heading:   viper.GetFloat64("origin.heading"),
		Pitch:     viper.GetFloat64("origin.pitch"),
		Roll:      viper.GetFloat64("origin.roll"),
	}
}

// GetAPIConfig returns the api section.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
		Upload:    viper.GetBool("api.upload"),
		Tag:       viper.GetString("api.tag"),
	}
}

// GetMonitorConfig returns the monitor section. A relative status file is
// resolved against logsDir.
func GetMonitorConfig() MonitorConfig {
	file := viper.GetString("monitor.statusFile")
	if file != "" && !filepath.IsAbs(file) {
		file = filepath.Join(viper.GetString("logsDir"), file)
	}
	return MonitorConfig{
		Interval:   viper.GetDuration("monitor.interval"),
		StatusFile: file,
	}
}

// GetOTelConfig returns the otel section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

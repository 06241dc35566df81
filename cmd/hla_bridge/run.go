package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/OCAP2/hlabridge/internal/api"
	"github.com/OCAP2/hlabridge/internal/config"
	"github.com/OCAP2/hlabridge/internal/dispatcher"
	"github.com/OCAP2/hlabridge/internal/federate"
	"github.com/OCAP2/hlabridge/internal/geo"
	"github.com/OCAP2/hlabridge/internal/identity"
	"github.com/OCAP2/hlabridge/internal/influx"
	"github.com/OCAP2/hlabridge/internal/logging"
	"github.com/OCAP2/hlabridge/internal/mapping"
	"github.com/OCAP2/hlabridge/internal/monitor"
	"github.com/OCAP2/hlabridge/internal/rti"
	"github.com/OCAP2/hlabridge/internal/rti/memrti"
	"github.com/OCAP2/hlabridge/internal/rti/natsrti"
	"github.com/OCAP2/hlabridge/internal/session"
	"github.com/OCAP2/hlabridge/internal/storage"
	"github.com/OCAP2/hlabridge/internal/translator"
	"github.com/OCAP2/hlabridge/internal/worker"
	"github.com/OCAP2/hlabridge/pkg/core"
	"github.com/OCAP2/hlabridge/pkg/hla"
	"github.com/OCAP2/hlabridge/pkg/rpr"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type runOptions struct {
	ScriptPath     string
	ScriptInterval time.Duration
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Join the federation and bridge traffic until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBridge(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.ScriptPath, "script", "", "replay application messages from a JSON lines file (- for stdin)")
	cmd.Flags().DurationVar(&opts.ScriptInterval, "script-interval", 0, "delay between replayed messages")
	return cmd
}

func runBridge(ctx context.Context, opts runOptions) error {
	fed := config.GetFederationConfig()

	types := rpr.NewRegistry()
	registry := mapping.NewRegistry(Logger)
	if err := config.LoadMappings(fed.MappingsFile, types, registry); err != nil {
		return fmt.Errorf("loading mappings: %w", err)
	}
	Logger.Info("Loaded mappings",
		"file", fed.MappingsFile,
		"objects", len(registry.ObjectMappings()),
		"interactions", len(registry.InteractionMappings()))

	rtiSession, closeRTI, err := openRTI(fed, Logger)
	if err != nil {
		return err
	}
	defer closeRTI()

	backend, err := createStorageBackend(config.GetStorageConfig(), dataDir(), SessionStartTime, Logger)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	traffic := connectInflux(ctx, ZLogger)

	var uploader Uploader
	if apiCfg := config.GetAPIConfig(); apiCfg.Upload {
		uploader = api.New(apiCfg.ServerURL, apiCfg.APIKey)
	}

	b, err := newBridge(bridgeDeps{
		Federation: fed,
		Origin:     config.GetOriginConfig(),
		Session:    rtiSession,
		Registry:   registry,
		Types:      types,
		Backend:    backend,
		Traffic:    traffic,
		Sessions:   Sessions,
		Uploader:   uploader,
		UploadTag:  config.GetAPIConfig().Tag,
		Logger:     Logger,
		ZLogger:    ZLogger,
	})
	if err != nil {
		_ = backend.Close()
		return err
	}

	if err := b.start(SessionStartTime); err != nil {
		b.shutdown()
		return err
	}

	var script <-chan *core.Message
	if opts.ScriptPath != "" {
		ch := make(chan *core.Message)
		script = ch
		go func() {
			if err := replayScript(ctx, opts.ScriptPath, opts.ScriptInterval, ch); err != nil {
				Logger.Error("Script replay failed", "path", opts.ScriptPath, "error", err)
			}
		}()
	}

	monCfg := config.GetMonitorConfig()
	monDeps := monitor.Dependencies{
		Source:     b.worker,
		Sessions:   Sessions,
		StatusFile: monCfg.StatusFile,
		Interval:   monCfg.Interval,
		Logger:     Logger.With("component", "monitor"),
	}
	if traffic != nil {
		monDeps.Writer = traffic
	}
	mon := monitor.NewService(monDeps)
	if err := mon.Start(); err != nil {
		Logger.Error("Failed to start status monitor", "error", err)
	}

	b.loop(ctx, script)
	mon.Stop()
	b.shutdown()
	return nil
}

// openRTI returns the federation session selected by federation.rti and a
// function releasing its connection.
func openRTI(fed config.FederationConfig, logger *slog.Logger) (hla.Session, func(), error) {
	switch fed.RTI {
	case "nats":
		cfg := natsrti.DefaultConfig()
		cfg.Name = fed.Federate
		if fed.NATS.URL != "" {
			cfg.URL = fed.NATS.URL
		}
		if fed.NATS.MaxReconnects != 0 {
			cfg.MaxReconnects = fed.NATS.MaxReconnects
		}
		if fed.NATS.ReconnectWait > 0 {
			cfg.ReconnectWait = fed.NATS.ReconnectWait
		}
		if fed.NATS.Timeout > 0 {
			cfg.Timeout = fed.NATS.Timeout
		}
		conn, err := natsrti.Connect(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Connected to NATS RTI", "url", conn.ConnectedUrl())
		return natsrti.NewSession(conn, logger), conn.Close, nil

	case "memory", "":
		logger.Info("Using in-process RTI")
		hub := memrti.NewHub(rti.DefineRPR(rti.NewFOM()))
		return hub.NewSession(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown rti %q", fed.RTI)
	}
}

// connectInflux returns nil when influx is disabled or unusable.
func connectInflux(ctx context.Context, zlog zerolog.Logger) *influx.Manager {
	backup := filepath.Join(dataDir(), fmt.Sprintf("%s_%s.influx.gz", AppName, SessionStartTime.Format("20060102_150405")))
	m := influx.NewManager(zlog, backup)
	err := m.Connect(ctx)
	switch {
	case errors.Is(err, influx.ErrDisabled):
		return nil
	case err != nil:
		Logger.Error("Failed to connect to InfluxDB", "error", err)
		_ = m.Close()
		return nil
	}
	return m
}

func newCoordinates(o config.OriginConfig) *geo.Coordinates {
	c := geo.NewCoordinates()
	if o.Geodetic {
		c.SetGeoOrigin(o.Latitude, o.Longitude, o.Elevation)
		return c
	}
	c.SetOriginLocation(core.Vec3{X: o.X, Y: o.Y, Z: o.Z})
	c.SetOriginRotation(o.Heading, o.Pitch, o.Roll)
	return c
}

// Uploader sends a finished recording to the recording server.
type Uploader interface {
	Upload(ctx context.Context, path string, meta api.UploadMetadata) error
}

type bridgeDeps struct {
	Federation config.FederationConfig
	Origin     config.OriginConfig
	Session    hla.Session
	Registry   *mapping.Registry
	Types      *rpr.Registry
	Backend    storage.Backend
	Traffic    *influx.Manager  // optional
	Sessions   *session.Context // optional
	Uploader   Uploader         // optional
	UploadTag  string
	Logger     *slog.Logger
	ZLogger    zerolog.Logger
}

// bridge owns the running components. Everything touching the coordinator
// happens on the goroutine running loop.
type bridge struct {
	fed         config.FederationConfig
	log         *slog.Logger
	coordinator *federate.Coordinator
	dispatcher  *dispatcher.Dispatcher
	worker      *worker.Manager
	backend     storage.Backend
	traffic     *influx.Manager
	sessions    *session.Context
	uploader    Uploader
	uploadTag   string

	session *core.Session
}

func newBridge(deps bridgeDeps) (*bridge, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	d, err := dispatcher.New(logging.NewDispatcherLogger(deps.ZLogger))
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}

	wdeps := worker.Dependencies{Logger: log}
	if deps.Traffic != nil {
		wdeps.Traffic = deps.Traffic
	}
	w := worker.NewManager(wdeps, deps.Backend)
	w.RegisterHandlers(d)

	ids := identity.New()
	tr := translator.New(deps.Types, newCoordinates(deps.Origin), ids, log.With("component", "translator"))
	coord, err := federate.New(deps.Session, deps.Registry, tr, ids, d, log.With("component", "federate"),
		federate.WithSiteID(deps.Federation.SiteID),
		federate.WithApplicationID(deps.Federation.ApplicationID),
	)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("creating coordinator: %w", err)
	}

	sessions := deps.Sessions
	if sessions == nil {
		sessions = session.NewContext()
	}
	return &bridge{
		fed:         deps.Federation,
		log:         log,
		coordinator: coord,
		dispatcher:  d,
		worker:      w,
		backend:     deps.Backend,
		traffic:     deps.Traffic,
		sessions:    sessions,
		uploader:    deps.Uploader,
		uploadTag:   deps.UploadTag,
	}, nil
}

// start opens the recording session and joins the federation.
func (b *bridge) start(at time.Time) error {
	s := &core.Session{
		Execution:     b.fed.Execution,
		Federate:      b.fed.Federate,
		SiteID:        b.coordinator.SiteID(),
		ApplicationID: b.coordinator.ApplicationID(),
		StartTime:     at,
	}
	if err := b.worker.StartSession(s); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	b.session = s
	b.sessions.Set(*s)
	if err := b.coordinator.JoinFederation(b.fed.Execution, b.fed.FOMFile, b.fed.Federate); err != nil {
		return fmt.Errorf("joining federation: %w", err)
	}
	b.log.Info("Bridge running",
		"siteId", b.coordinator.SiteID(),
		"applicationId", b.coordinator.ApplicationID())
	return nil
}

// send forwards an application message to the federation and records it.
func (b *bridge) send(msg *core.Message) {
	if err := b.coordinator.Dispatch(msg); err != nil {
		b.log.Error("Failed to dispatch message", "type", msg.Type, "actor", msg.AboutActorID, "error", err)
		return
	}
	if err := b.worker.RecordOutbound(msg); err != nil {
		b.log.Debug("Outbound message not recorded", "type", msg.Type, "error", err)
	}
}

func (b *bridge) loop(ctx context.Context, script <-chan *core.Message) {
	tickInterval := b.fed.TickInterval
	if tickInterval <= 0 {
		tickInterval = 50 * time.Millisecond
	}
	tick := time.NewTicker(tickInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if err := b.coordinator.Tick(); err != nil {
				b.log.Error("Tick failed", "error", err)
			}
		case msg, ok := <-script:
			if !ok {
				b.log.Info("Script finished")
				script = nil
				continue
			}
			b.send(msg)
		}
	}
}

// upload sends the exported recording when an uploader is configured.
func (b *bridge) upload() {
	if b.uploader == nil {
		return
	}
	exp, ok := b.backend.(storage.Exporter)
	if !ok || exp.ExportedFilePath() == "" {
		b.log.Debug("Storage produced no recording file, nothing to upload")
		return
	}
	path := exp.ExportedFilePath()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := b.uploader.Upload(ctx, path, api.MetadataFromSession(*b.session, b.uploadTag)); err != nil {
		b.log.Error("Failed to upload recording", "path", path, "error", err)
		return
	}
	b.log.Info("Recording uploaded", "path", path)
}

// shutdown leaves the federation, drains the recording pipeline and closes
// the backend. It is safe to call after a failed start.
func (b *bridge) shutdown() {
	if err := b.coordinator.LeaveFederation(); err != nil {
		b.log.Error("Failed to leave federation", "error", err)
	}
	b.dispatcher.Close()
	if b.session != nil {
		if err := b.worker.EndSession(); err != nil {
			b.log.Error("Failed to end session", "error", err)
		}
		if b.session.EndTime.IsZero() {
			b.session.EndTime = time.Now()
		}
		b.sessions.End(*b.session)
		b.upload()
	}
	if err := b.backend.Close(); err != nil {
		b.log.Error("Failed to close storage", "error", err)
	}
	if b.traffic != nil {
		if err := b.traffic.Close(); err != nil {
			b.log.Error("Failed to close influx", "error", err)
		}
	}
	b.log.Info("Bridge stopped")
}

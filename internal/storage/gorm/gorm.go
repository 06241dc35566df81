// Package gormstorage implements the storage.Backend interface using GORM
// with internal queues and a background DB writer goroutine. It serves both
// Postgres and SQLite connections.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/hlabridge/internal/database"
	"github.com/OCAP2/hlabridge/internal/model"
	"github.com/OCAP2/hlabridge/internal/model/convert"
	"github.com/OCAP2/hlabridge/internal/queue"
	"github.com/OCAP2/hlabridge/pkg/core"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoSession is returned by EndSession when no session was started.
var ErrNoSession = errors.New("no active session")

const (
	defaultFlushInterval = 2 * time.Second
	defaultQueueLimit    = 500000
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger

	// FlushInterval is the pause between writer passes. Zero means 2s.
	FlushInterval time.Duration
	// QueueLimit bounds each write queue. Zero means 500000.
	QueueLimit int
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Actors       *queue.Queue[model.Actor]
	ActorStates  *queue.Queue[model.ActorState]
	Removals     *queue.Queue[core.ActorRemoval]
	Interactions *queue.Queue[model.InteractionRecord]
}

func newQueues(limit int) *queues {
	return &queues{
		Actors:       queue.NewBounded[model.Actor](limit),
		ActorStates:  queue.NewBounded[model.ActorState](limit),
		Removals:     queue.NewBounded[core.ActorRemoval](limit),
		Interactions: queue.NewBounded[model.InteractionRecord](limit),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	log       *slog.Logger
	queues    *queues
	sessionID atomic.Uint64
	session   *core.Session

	writeMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	if deps.QueueLimit <= 0 {
		deps.QueueLimit = defaultQueueLimit
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Backend{
		deps: deps,
		log:  log.With("component", "storage.gorm"),
	}
}

// Init creates internal queues, runs schema migration, and starts the DB writer goroutine.
// If no DB was injected via Dependencies, it creates its own postgres connection.
func (b *Backend) Init() error {
	b.queues = newQueues(b.deps.QueueLimit)
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})

	if b.deps.DB == nil {
		db, err := database.GetPostgresDB()
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.deps.DB = db
	}

	if err := b.setupDB(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	go b.writerLoop()
	return nil
}

func (b *Backend) setupDB() error {
	db := b.deps.DB
	if db.Name() == "postgres" {
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS postgis;`).Error; err != nil {
			return fmt.Errorf("failed to create PostGIS extension: %w", err)
		}
		b.log.Info("PostGIS extension created")
	}

	b.log.Info("Migrating schema")
	if err := database.Migrate(db); err != nil {
		return err
	}
	b.log.Info("Database setup complete")
	return nil
}

// Close stops the DB writer goroutine after a final flush.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	select {
	case <-b.stopChan:
		return nil
	default:
	}
	close(b.stopChan)
	<-b.done
	return nil
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// SessionID returns the database id of the running session, or 0.
func (b *Backend) SessionID() uint {
	return uint(b.sessionID.Load())
}

// StartSession inserts the session row synchronously so later rows can
// reference it. The assigned id is written back to s.
func (b *Backend) StartSession(s *core.Session) error {
	row := convert.CoreToSession(*s)
	row.ID = 0
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	s.ID = row.ID
	b.session = s
	b.sessionID.Store(uint64(row.ID))
	b.log.Info("Session started", "sessionId", row.ID, "execution", s.Execution)
	return nil
}

// EndSession flushes pending rows and stamps the session end time.
func (b *Backend) EndSession() error {
	id := b.SessionID()
	if id == 0 || b.session == nil {
		return ErrNoSession
	}
	b.Flush()

	end := b.session.EndTime
	if end.IsZero() {
		end = time.Now()
		b.session.EndTime = end
	}
	if err := b.deps.DB.Model(&model.Session{}).Where("id = ?", id).Update("end_time", end).Error; err != nil {
		return fmt.Errorf("failed to update session end time: %w", err)
	}
	b.sessionID.Store(0)
	b.session = nil
	b.log.Info("Session ended", "sessionId", id)
	return nil
}

// AddActor converts a core actor to GORM and pushes to the write queue.
func (b *Backend) AddActor(a *core.Actor) error {
	b.queues.Actors.Push(convert.CoreToActor(*a))
	return nil
}

// RecordActorState converts and queues an actor state.
func (b *Backend) RecordActorState(s *core.ActorState) error {
	b.queues.ActorStates.Push(convert.CoreToActorState(*s))
	return nil
}

// RemoveActor queues the removal time for an actor row.
func (b *Backend) RemoveActor(r *core.ActorRemoval) error {
	b.queues.Removals.Push(*r)
	return nil
}

// RecordInteraction converts and queues a generic message.
func (b *Backend) RecordInteraction(i *core.Interaction) error {
	b.queues.Interactions.Push(convert.CoreToInteraction(*i))
	return nil
}

// Pending returns the number of queued rows across all queues.
func (b *Backend) Pending() int {
	if b.queues == nil {
		return 0
	}
	return b.queues.Actors.Len() + b.queues.ActorStates.Len() +
		b.queues.Removals.Len() + b.queues.Interactions.Len()
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the batch goes back to the front of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger, prepare func([]T), create func(tx *gorm.DB, items *[]T) error) {
	if q.Empty() {
		return
	}

	items := q.Drain(0)
	if prepare != nil {
		prepare(items)
	}

	tx := db.Begin()
	if err := create(tx, &items); err != nil {
		log.Error("Error creating rows", "table", name, "count", len(items), "error", err)
		tx.Rollback()
		q.Requeue(items...)
		return
	}
	if err := tx.Commit().Error; err != nil {
		log.Error("Error committing rows", "table", name, "error", err)
		q.Requeue(items...)
	}
}

func plainCreate[T any](tx *gorm.DB, items *[]T) error {
	return tx.Create(items).Error
}

// Flush drains every queue into the database once. Rows queued before a
// session started stay queued.
func (b *Backend) Flush() {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	sessionID := b.SessionID()
	if sessionID == 0 {
		return
	}
	db := b.deps.DB

	writeQueue(db, b.queues.Actors, "actors", b.log,
		func(items []model.Actor) {
			for i := range items {
				items[i].SessionID = sessionID
			}
		},
		func(tx *gorm.DB, items *[]model.Actor) error {
			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "session_id"}, {Name: "actor_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"updated_at", "category", "type_name", "source", "entity_id", "entity_type"}),
			}).Create(items).Error
		})

	writeQueue(db, b.queues.ActorStates, "actor states", b.log,
		func(items []model.ActorState) {
			for i := range items {
				items[i].SessionID = sessionID
			}
		},
		plainCreate[model.ActorState])

	writeQueue(db, b.queues.Interactions, "interactions", b.log,
		func(items []model.InteractionRecord) {
			for i := range items {
				items[i].SessionID = sessionID
			}
		},
		plainCreate[model.InteractionRecord])

	writeQueue(db, b.queues.Removals, "actor removals", b.log, nil,
		func(tx *gorm.DB, items *[]core.ActorRemoval) error {
			for _, r := range *items {
				err := tx.Model(&model.Actor{}).
					Where("session_id = ? AND actor_id = ?", sessionID, r.ActorID.String()).
					Update("removed_at", r.Time).Error
				if err != nil {
					return err
				}
			}
			return nil
		})
}

// writerLoop periodically drains queues into the DB until Close.
func (b *Backend) writerLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			b.Flush()
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}

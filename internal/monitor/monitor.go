package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/OCAP2/hlabridge/internal/influx"
	"github.com/OCAP2/hlabridge/internal/session"
)

// StatsSource produces bridge activity samples. The worker manager
// implements it.
type StatsSource interface {
	Stats() influx.Stats
}

// StatsWriter stores samples. The influx manager implements it.
type StatsWriter interface {
	WriteStats(ctx context.Context, s influx.Stats) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Source     StatsSource
	Writer     StatsWriter      // optional
	Sessions   *session.Context // optional
	StatusFile string           // optional
	Interval   time.Duration
	Logger     *slog.Logger
}

// Status is what the status file holds.
type Status struct {
	Time      time.Time `json:"time"`
	Execution string    `json:"execution,omitempty"`
	Federate  string    `json:"federate,omitempty"`
	SessionID uint      `json:"sessionId,omitempty"`

	Actors      int    `json:"actors"`
	Inbound     int    `json:"inbound"`
	Outbound    int    `json:"outbound"`
	QueueDepth  int    `json:"queueDepth"`
	DroppedRows uint64 `json:"droppedRows"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = 10 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus returns the current bridge status.
func (s *Service) GetStatus() Status {
	stats := s.deps.Source.Stats()
	st := Status{
		Time:        time.Now(),
		Actors:      stats.Actors,
		Inbound:     stats.Inbound,
		Outbound:    stats.Outbound,
		QueueDepth:  stats.QueueDepth,
		DroppedRows: stats.DroppedRows,
	}
	if s.deps.Sessions != nil {
		if sess, ok := s.deps.Sessions.Get(); ok {
			st.Execution = sess.Execution
			st.Federate = sess.Federate
			st.SessionID = sess.ID
		}
	}
	return st
}

// Sample takes one status sample, rewrites the status file and hands the
// stats to the writer.
func (s *Service) Sample(ctx context.Context) error {
	st := s.GetStatus()

	if s.deps.StatusFile != "" {
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding status: %w", err)
		}
		if err := os.WriteFile(s.deps.StatusFile, append(data, '\n'), 0644); err != nil {
			return fmt.Errorf("writing status file: %w", err)
		}
	}

	if s.deps.Writer != nil {
		err := s.deps.Writer.WriteStats(ctx, influx.Stats{
			Actors:      st.Actors,
			Inbound:     st.Inbound,
			Outbound:    st.Outbound,
			QueueDepth:  st.QueueDepth,
			DroppedRows: st.DroppedRows,
		})
		if err != nil {
			return fmt.Errorf("writing stats: %w", err)
		}
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)

		logger := s.deps.Logger
		logger.Debug("Starting status monitor", "interval", s.deps.Interval, "statusFile", s.deps.StatusFile)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.Sample(ctx); err != nil {
					logger.Error("Status sample failed", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}

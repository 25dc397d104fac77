// Package monitor periodically publishes the recorder's progress to a status
// file and the log.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/simcore/locomotion/internal/worker"
)

const defaultInterval = time.Second

// StatsSource is satisfied by *worker.Manager.
type StatsSource interface {
	Stats() worker.Stats
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger *slog.Logger
	Stats  StatsSource
	// RunID reports the active run, 0 while none is recording.
	RunID func() uint
	// StatusPath is rewritten on every interval. Empty disables the file.
	StatusPath string
	Interval   time.Duration
}

// Status is one snapshot as written to the status file.
type Status struct {
	Time            time.Time `json:"time"`
	RunID           uint      `json:"runId"`
	LastTick        uint64    `json:"lastTick"`
	Recorded        uint64    `json:"recorded"`
	Rejected        uint64    `json:"rejected"`
	PendingRows     int       `json:"pendingRows"`
	LastWriteMillis float64   `json:"lastWriteMs"`
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
		deps.Interval = defaultInterval
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

// GetProgramStatus returns the current status.
func (s *Service) GetProgramStatus() Status {
	st := s.deps.Stats.Stats()
	status := Status{
		Time:            time.Now().UTC(),
		LastTick:        st.LastTick,
		Recorded:        st.Recorded,
		Rejected:        st.Rejected,
		PendingRows:     st.Pending,
		LastWriteMillis: float64(st.LastWrite) / float64(time.Millisecond),
	}
	if s.deps.RunID != nil {
		status.RunID = s.deps.RunID()
	}
	return status
}

// WriteStatus replaces the status file with the current status.
func (s *Service) WriteStatus() error {
	if s.deps.StatusPath == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.GetProgramStatus(), "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding status: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.deps.StatusPath), 0755); err != nil {
		return fmt.Errorf("error creating status directory: %w", err)
	}
	// write then rename so readers never see a partial file
	tmp := s.deps.StatusPath + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("error writing status file: %w", err)
	}
	return os.Rename(tmp, s.deps.StatusPath)
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
	s.mu.Unlock()

	go s.loop(s.stopChan, s.done)
	return nil
}

func (s *Service) loop(stop, done chan struct{}) {
	defer close(done)
	logger := s.deps.Logger
	logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if s.deps.RunID != nil && s.deps.RunID() == 0 {
				continue
			}
			if err := s.WriteStatus(); err != nil {
				logger.Error("Error writing status file", "error", err)
			}
			st := s.GetProgramStatus()
			logger.Debug("Recorder status",
				"lastTick", st.LastTick,
				"recorded", st.Recorded,
				"rejected", st.Rejected,
				"pendingRows", st.PendingRows,
				"lastWriteMs", st.LastWriteMillis)
		}
	}
}

// Stop stops the status monitor and writes a final status.
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
	if err := s.WriteStatus(); err != nil {
		s.deps.Logger.Error("Error writing status file", "error", err)
	}
}

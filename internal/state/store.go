// Package state persists the job ledger: one JSON object mapping
// "agent/job" keys to the outcome of their last run.
//
// The file is rewritten wholesale on every update. FileStore serialises
// read-modify-write cycles inside one process; the scheduler PID file keeps a
// second `serve` off the same file.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aatumaykin/ocalt/internal/logger"
)

// Status is the terminal classification of a job run.
type Status string

const (
	StatusOK         Status = "ok"
	StatusError      Status = "error"
	StatusTimeout    Status = "timeout"
	StatusSuppressed Status = "suppressed"
)

// ErrCorruptLedger возвращается, если файл ledger не является валидным JSON
var ErrCorruptLedger = errors.New("ledger file is corrupt")

// JobState is the ledger entry of one job.
type JobState struct {
	LastRun      time.Time `json:"last_run"`
	LastStatus   Status    `json:"last_status"`
	LastDuration float64   `json:"last_duration"`
	RunCount     int       `json:"run_count"`
}

// Ledger maps "agent/job" to the job's state.
type Ledger map[string]JobState

// FileStore keeps the ledger in a single JSON file.
type FileStore struct {
	mu       sync.Mutex
	filePath string
	logger   *logger.Logger
}

// NewFileStore creates a store backed by filePath.
func NewFileStore(filePath string, log *logger.Logger) *FileStore {
	return &FileStore{filePath: filePath, logger: log}
}

// Path returns the ledger file path.
func (s *FileStore) Path() string {
	return s.filePath
}

// Load reads the whole ledger. A missing file is an empty ledger.
func (s *FileStore) Load() (Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get returns the entry for key.
func (s *FileStore) Get(key string) (JobState, bool, error) {
	ledger, err := s.Load()
	if err != nil {
		return JobState{}, false, err
	}
	st, ok := ledger[key]
	return st, ok, nil
}

// Record stores the outcome of one completed run: lastRun, lastStatus and
// lastDuration are replaced, runCount is incremented by one.
func (s *FileStore) Record(key string, status Status, duration time.Duration, at time.Time) (JobState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, err := s.load()
	if errors.Is(err, ErrCorruptLedger) {
		// Не теряем запуск из-за битого файла: откладываем его в сторону
		backup := s.filePath + ".corrupt-" + at.Format("20060102-150405")
		if renameErr := os.Rename(s.filePath, backup); renameErr != nil {
			return JobState{}, err
		}
		s.logger.Warn("corrupt ledger moved aside",
			logger.Field{Key: "file", Value: s.filePath},
			logger.Field{Key: "backup", Value: backup})
		ledger = Ledger{}
	} else if err != nil {
		return JobState{}, err
	}

	entry := ledger[key]
	entry.LastRun = at
	entry.LastStatus = status
	entry.LastDuration = duration.Seconds()
	entry.RunCount++
	ledger[key] = entry

	if err := s.save(ledger); err != nil {
		return JobState{}, err
	}
	return entry, nil
}

func (s *FileStore) load() (Ledger, error) {
	data, err := os.ReadFile(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return Ledger{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger %s: %w", s.filePath, err)
	}
	if len(data) == 0 {
		return Ledger{}, nil
	}

	ledger := Ledger{}
	if err := json.Unmarshal(data, &ledger); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptLedger, s.filePath, err)
	}
	return ledger, nil
}

// save пишет ledger атомарно: временный файл + rename
func (s *FileStore) save(ledger Ledger) error {
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create ledger directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.filePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary ledger file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}
	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("failed to replace ledger: %w", err)
	}

	s.logger.Debug("ledger saved",
		logger.Field{Key: "entries", Value: len(ledger)},
		logger.Field{Key: "file", Value: s.filePath})
	return nil
}

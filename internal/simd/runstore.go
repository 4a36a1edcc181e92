package simd

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/egosim/internal/metrics"
	"github.com/GoSim-25-26J-441/egosim/pkg/config"
	"github.com/GoSim-25-26J-441/egosim/pkg/models"
	"github.com/GoSim-25-26J-441/egosim/pkg/utils"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrRunExists    = errors.New("run already exists")
	ErrRunTerminal  = errors.New("run is terminal")
	ErrRunIDMissing = errors.New("run_id is required")
)

// RunInput is what a client submits to create a run
type RunInput struct {
	ConfigYAML     string `json:"config_yaml"`
	CallbackURL    string `json:"callback_url,omitempty"`
	CallbackSecret string `json:"callback_secret,omitempty"`
}

// RunRecord is a snapshot of a run and its input
type RunRecord struct {
	Run   *models.Run
	Input RunInput

	cfg       *config.Config
	collector *metrics.Collector
}

type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*RunRecord
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*RunRecord),
	}
}

func nowUnixMs() int64 {
	return time.Now().UTC().UnixMilli()
}

func (rec *RunRecord) snapshot() *RunRecord {
	out := &RunRecord{Run: rec.Run.Clone(), Input: rec.Input, cfg: rec.cfg, collector: rec.collector}
	if rec.collector != nil {
		p := rec.collector.Progress()
		out.Run.Progress = &p
	}
	return out
}

// Create validates the input configuration and registers a pending run.
// An empty runID is replaced by a generated one.
func (s *RunStore) Create(runID string, input RunInput) (*RunRecord, error) {
	cfg, err := config.ParseConfigYAMLString(input.ConfigYAML)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if runID == "" {
		runID = utils.GenerateRunID()
	}
	if _, exists := s.runs[runID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrRunExists, runID)
	}

	rec := &RunRecord{
		Run: &models.Run{
			ID:              runID,
			Status:          models.RunStatusPending,
			CreatedAtUnixMs: nowUnixMs(),
		},
		Input: input,
		cfg:   cfg,
	}
	s.runs[runID] = rec
	return rec.snapshot(), nil
}

func (s *RunStore) Get(runID string) (*RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	if !ok {
		return nil, false
	}
	return rec.snapshot(), true
}

// List returns runs ordered by creation time, optionally filtered by status.
// An empty status matches every run.
func (s *RunStore) List(limit, offset int, status models.RunStatus) []*RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	all := make([]*RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		if status != "" && rec.Run.Status != status {
			continue
		}
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Run.CreatedAtUnixMs != all[j].Run.CreatedAtUnixMs {
			return all[i].Run.CreatedAtUnixMs < all[j].Run.CreatedAtUnixMs
		}
		return all[i].Run.ID < all[j].Run.ID
	})

	if offset >= len(all) {
		return []*RunRecord{}
	}
	all = all[offset:]
	out := make([]*RunRecord, 0, minInt(limit, len(all)))
	for _, rec := range all[:minInt(limit, len(all))] {
		out = append(out, rec.snapshot())
	}
	return out
}

// SetStatus moves a run to status. A terminal run only accepts its own status again.
func (s *RunStore) SetStatus(runID string, status models.RunStatus, errMsg string) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Run.Status.Terminal() {
		if rec.Run.Status == status {
			return rec.snapshot(), nil
		}
		return nil, fmt.Errorf("%w: %s is %s", ErrRunTerminal, runID, rec.Run.Status)
	}

	rec.Run.Status = status
	if errMsg != "" {
		rec.Run.Error = errMsg
	}

	switch status {
	case models.RunStatusRunning:
		if rec.Run.StartedAtUnixMs == 0 {
			rec.Run.StartedAtUnixMs = nowUnixMs()
		}
	case models.RunStatusCompleted,
		models.RunStatusFailed,
		models.RunStatusCancelled:
		rec.Run.EndedAtUnixMs = nowUnixMs()
	}

	return rec.snapshot(), nil
}

// SetClustering records the ego clustering built for a run
func (s *RunStore) SetClustering(runID string, egos int, egoRatio float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	rec.Run.Egos = egos
	rec.Run.EgoRatio = egoRatio
	return nil
}

// SetCollector attaches the progress collector of a running run
func (s *RunStore) SetCollector(runID string, c *metrics.Collector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	rec.collector = c
	return nil
}

// AddResult attaches a finished bundle and its summary to a run
func (s *RunStore) AddResult(runID string, b *models.ResultBundle, summary models.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	rec.Run.Results = append(rec.Run.Results, b)
	rec.Run.Summaries = append(rec.Run.Summaries, summary)
	return nil
}

// CountByStatus returns the number of runs in each status
func (s *RunStore) CountByStatus() map[models.RunStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.RunStatus]int)
	for _, rec := range s.runs {
		counts[rec.Run.Status]++
	}
	return counts
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

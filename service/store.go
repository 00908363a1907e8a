package service

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/henrymedina447/sbs-suptech-etl-v2/config"
	"github.com/henrymedina447/sbs-suptech-etl-v2/model"
)

// RunStore is an in-memory store for ETL runs
// Runs are kept for status queries only and are lost on restart
type RunStore struct {
	runs    map[string]*model.Run
	mu      sync.RWMutex
	maxRuns int // Maximum runs to keep, 0 = unlimited
}

// NewRunStore creates a run store with configuration
func NewRunStore(cfg *config.StoreConfig) *RunStore {
	maxRuns := cfg.MaxRuns
	if maxRuns < 0 {
		maxRuns = 0
	}
	slog.Info("run store initialized", "max_runs", maxRuns)
	return &RunStore{
		runs:    make(map[string]*model.Run),
		maxRuns: maxRuns,
	}
}

// Save stores a copy of run
func (s *RunStore) Save(run *model.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *run
	cp.UpdatedAt = time.Now()
	s.runs[run.ID] = &cp

	// Cleanup if exceeds max
	s.cleanupIfNeeded()
}

// Get returns a copy of the run, or nil
func (s *RunStore) Get(id string) *model.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

// ListByClient returns the client's runs, newest first
func (s *RunStore) ListByClient(clientID string) []*model.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.Run
	for _, r := range s.runs {
		if r.ClientID == clientID {
			cp := *r
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (s *RunStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, id)
}

// UpdateStatus sets the status and error message of a run
func (s *RunStore) UpdateStatus(id, status string, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[id]; ok {
		r.Status = status
		r.ErrorMsg = errMsg
		r.UpdatedAt = time.Now()
	}
}

// Complete records the batch outcomes of a run. The run fails when every
// batch reported an error.
func (s *RunStore) Complete(id string, batches []model.RunBatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return
	}

	r.Batches = batches
	r.Status = model.StatusCompleted
	r.ErrorMsg = ""
	failed := 0
	for _, b := range batches {
		if b.Error != "" {
			failed++
			r.ErrorMsg = b.Error
		}
	}
	if len(batches) > 0 && failed == len(batches) {
		r.Status = model.StatusFailed
	}
	r.UpdatedAt = time.Now()
}

// cleanupIfNeeded removes oldest runs if store exceeds maxRuns
// Must be called with lock held
func (s *RunStore) cleanupIfNeeded() {
	if s.maxRuns <= 0 {
		return // Unlimited
	}

	if len(s.runs) <= s.maxRuns {
		return
	}

	runs := make([]*model.Run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})

	removeCount := len(runs) - s.maxRuns
	for i := 0; i < removeCount; i++ {
		slog.Info("auto-cleaning old run",
			"run_id", runs[i].ID,
			"created_at", runs[i].CreatedAt,
		)
		delete(s.runs, runs[i].ID)
	}
}

// Count returns the number of runs in the store
func (s *RunStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

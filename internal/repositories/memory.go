package repositories

import (
	"context"
	"sync"
	"time"

	"payment-reconciliation/internal/models"
)

// MemoryStore is an in-process implementation of RunRepository and
// DiscrepancyRepository. It backs the test suites and embedders that bring
// their own durable storage.
type MemoryStore struct {
	mu    sync.RWMutex
	runs  map[string]*models.ReconciliationRun
	discs map[string]*models.Discrepancy
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:  make(map[string]*models.ReconciliationRun),
		discs: make(map[string]*models.Discrepancy),
	}
}

func (s *MemoryStore) CreateRun(ctx context.Context, run *models.ReconciliationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *MemoryStore) FinishRun(ctx context.Context, run *models.ReconciliationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; !ok {
		return &models.NotFoundError{Entity: "reconciliation run", ID: run.ID}
	}
	cp := *run
	cp.Matches = append([]models.TransactionMatch(nil), run.Matches...)
	cp.Discrepancies = append([]models.Discrepancy(nil), run.Discrepancies...)
	s.runs[run.ID] = &cp
	return nil
}

func (s *MemoryStore) GetRun(ctx context.Context, id string) (*models.ReconciliationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, &models.NotFoundError{Entity: "reconciliation run", ID: id}
	}
	cp := *run
	cp.Matches = append([]models.TransactionMatch(nil), run.Matches...)
	cp.Discrepancies = append([]models.Discrepancy(nil), run.Discrepancies...)
	return &cp, nil
}

func (s *MemoryStore) ListRunsByGateway(ctx context.Context, gateway string, from, to time.Time) ([]models.ReconciliationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []models.ReconciliationRun
	for _, run := range s.runs {
		if run.Gateway != gateway {
			continue
		}
		if run.RunDate.Before(from) || run.RunDate.After(to) {
			continue
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

func (s *MemoryStore) InsertDiscrepancies(ctx context.Context, discs []models.Discrepancy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range discs {
		cp := discs[i]
		s.discs[cp.ID] = &cp
	}
	return nil
}

func (s *MemoryStore) GetDiscrepancy(ctx context.Context, id string) (*models.Discrepancy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.discs[id]
	if !ok {
		return nil, &models.NotFoundError{Entity: "discrepancy", ID: id}
	}
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) ListByRun(ctx context.Context, runID string) ([]models.Discrepancy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var discs []models.Discrepancy
	for _, d := range s.discs {
		if d.RunID == runID {
			discs = append(discs, *d)
		}
	}
	return discs, nil
}

func (s *MemoryStore) Resolve(ctx context.Context, id string, newStatus string, res models.ResolutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.discs[id]
	if !ok {
		return &models.NotFoundError{Entity: "discrepancy", ID: id}
	}
	if d.Status != models.DiscrepancyStatusPending {
		return &models.InvalidStateError{Entity: "discrepancy", ID: id, State: d.Status, Op: "resolve"}
	}
	d.Status = newStatus
	resCopy := res
	d.Resolution = &resCopy
	return nil
}

package memory

import (
	"context"
	"sort"
	"sync"

	"liquidity-watch/internal/domain"
	"liquidity-watch/internal/storage"
)

// PoolReportStore is an in-memory implementation of storage.PoolReportStore.
// With a capacity it keeps only the most recently inserted reports.
type PoolReportStore struct {
	mu       sync.RWMutex
	data     map[string]*domain.PoolReport // keyed by id
	order    []string                      // ids in insertion order
	capacity int
}

// NewPoolReportStore creates an unbounded in-memory report store.
func NewPoolReportStore() *PoolReportStore {
	return NewBoundedPoolReportStore(0)
}

// NewBoundedPoolReportStore creates a store holding at most capacity
// reports; the oldest insert is evicted first. capacity <= 0 means unbounded.
func NewBoundedPoolReportStore(capacity int) *PoolReportStore {
	return &PoolReportStore{
		data:     make(map[string]*domain.PoolReport),
		capacity: capacity,
	}
}

// Insert adds a new report. Returns ErrDuplicateKey if id exists.
func (s *PoolReportStore) Insert(_ context.Context, r *domain.PoolReport) error {
	if r == nil || r.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}

	if s.capacity > 0 {
		for len(s.order) >= s.capacity {
			delete(s.data, s.order[0])
			s.order = s.order[1:]
		}
		s.order = append(s.order, r.ID)
	}

	// Store a copy to prevent external mutation
	s.data[r.ID] = cloneReport(r)
	return nil
}

// GetByID retrieves a report by its ID. Returns ErrNotFound if not exists.
func (s *PoolReportStore) GetByID(_ context.Context, id string) (*domain.PoolReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneReport(r), nil
}

// GetBySignature retrieves all reports for a transaction signature.
func (s *PoolReportStore) GetBySignature(_ context.Context, signature string) ([]*domain.PoolReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PoolReport
	for _, r := range s.data {
		if r.Signature == signature {
			result = append(result, cloneReport(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Slot < result[j].Slot
	})
	return result, nil
}

// GetRecent retrieves up to limit reports, newest evaluated_at first.
func (s *PoolReportStore) GetRecent(_ context.Context, limit int) ([]*domain.PoolReport, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.PoolReport, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, r)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].EvaluatedAt != result[j].EvaluatedAt {
			return result[i].EvaluatedAt > result[j].EvaluatedAt
		}
		return result[i].ID < result[j].ID
	})

	if len(result) > limit {
		result = result[:limit]
	}
	for i, r := range result {
		result[i] = cloneReport(r)
	}
	return result, nil
}

// Len returns the number of stored reports.
func (s *PoolReportStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func cloneReport(r *domain.PoolReport) *domain.PoolReport {
	c := *r
	c.Candidates = append([]string(nil), r.Candidates...)
	if r.Assessments != nil {
		c.Assessments = make([]domain.LockAssessment, len(r.Assessments))
		for i, a := range r.Assessments {
			c.Assessments[i] = cloneAssessment(a)
		}
	}
	return &c
}

func cloneAssessment(a domain.LockAssessment) domain.LockAssessment {
	if a.Holders != nil {
		a.Holders = append([]domain.HolderRecord(nil), a.Holders...)
	}
	return a
}

// Verify interface compliance at compile time.
var _ storage.PoolReportStore = (*PoolReportStore)(nil)

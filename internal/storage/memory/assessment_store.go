package memory

import (
	"context"
	"sort"
	"sync"

	"liquidity-watch/internal/domain"
	"liquidity-watch/internal/storage"
)

type assessmentKey struct {
	reportID string
	mint     string
}

// AssessmentStore is an in-memory implementation of storage.AssessmentStore.
// With a capacity it keeps only the most recently inserted records.
type AssessmentStore struct {
	mu       sync.RWMutex
	data     map[assessmentKey]*domain.AssessmentRecord
	order    []assessmentKey
	capacity int
}

// NewAssessmentStore creates an unbounded in-memory assessment store.
func NewAssessmentStore() *AssessmentStore {
	return NewBoundedAssessmentStore(0)
}

// NewBoundedAssessmentStore creates a store holding at most capacity
// records. capacity <= 0 means unbounded.
func NewBoundedAssessmentStore(capacity int) *AssessmentStore {
	return &AssessmentStore{
		data:     make(map[assessmentKey]*domain.AssessmentRecord),
		capacity: capacity,
	}
}

// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
func (s *AssessmentStore) InsertBulk(_ context.Context, records []*domain.AssessmentRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check for duplicates first (atomic: all or nothing)
	seen := make(map[assessmentKey]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.ReportID == "" || r.Mint == "" {
			return storage.ErrInvalidInput
		}
		k := assessmentKey{r.ReportID, r.Mint}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, dup := seen[k]; dup {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, r := range records {
		k := assessmentKey{r.ReportID, r.Mint}
		if s.capacity > 0 {
			for len(s.order) >= s.capacity {
				delete(s.data, s.order[0])
				s.order = s.order[1:]
			}
			s.order = append(s.order, k)
		}
		c := *r
		c.LockAssessment = cloneAssessment(r.LockAssessment)
		s.data[k] = &c
	}
	return nil
}

// GetByMint retrieves all records for a mint, ordered by evaluated_at ASC.
func (s *AssessmentStore) GetByMint(_ context.Context, mint string) ([]*domain.AssessmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AssessmentRecord
	for k, r := range s.data {
		if k.mint == mint {
			c := *r
			c.LockAssessment = cloneAssessment(r.LockAssessment)
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].EvaluatedAt != result[j].EvaluatedAt {
			return result[i].EvaluatedAt < result[j].EvaluatedAt
		}
		return result[i].ReportID < result[j].ReportID
	})
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.AssessmentStore = (*AssessmentStore)(nil)

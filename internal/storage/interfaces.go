package storage

import (
	"context"

	"liquidity-watch/internal/domain"
)

// PoolReportStore provides access to pool_reports storage.
type PoolReportStore interface {
	// Insert adds a new report. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, r *domain.PoolReport) error

	// GetByID retrieves a report by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.PoolReport, error)

	// GetBySignature retrieves all reports for a transaction signature.
	GetBySignature(ctx context.Context, signature string) ([]*domain.PoolReport, error)

	// GetRecent retrieves up to limit reports, newest evaluated_at first.
	GetRecent(ctx context.Context, limit int) ([]*domain.PoolReport, error)
}

// AssessmentStore provides access to lock_assessments storage.
type AssessmentStore interface {
	// InsertBulk adds multiple records. Fails entire batch on any duplicate
	// (report_id, mint).
	InsertBulk(ctx context.Context, records []*domain.AssessmentRecord) error

	// GetByMint retrieves all records for a mint, ordered by evaluated_at ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.AssessmentRecord, error)
}

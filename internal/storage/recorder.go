package storage

import (
	"context"
	"errors"
	"fmt"

	"liquidity-watch/internal/domain"
)

// Recorder persists pool reports and their lock assessments.
// Redelivered reports (same id) are accepted without error.
type Recorder struct {
	name        string
	reports     PoolReportStore
	assessments AssessmentStore
}

// NewRecorder creates a Recorder. assessments may be nil.
func NewRecorder(name string, reports PoolReportStore, assessments AssessmentStore) *Recorder {
	return &Recorder{name: name, reports: reports, assessments: assessments}
}

// Name identifies the recorder in logs and metrics.
func (r *Recorder) Name() string {
	return r.name
}

// Record stores report. Assessment rows are written only for evaluated reports.
func (r *Recorder) Record(ctx context.Context, report *domain.PoolReport) error {
	if r.reports != nil {
		if err := r.reports.Insert(ctx, report); err != nil && !errors.Is(err, ErrDuplicateKey) {
			return fmt.Errorf("insert report %s: %w", report.ID, err)
		}
	}

	if r.assessments == nil || len(report.Assessments) == 0 {
		return nil
	}
	if err := r.assessments.InsertBulk(ctx, report.AssessmentRecords()); err != nil && !errors.Is(err, ErrDuplicateKey) {
		return fmt.Errorf("insert assessments for %s: %w", report.ID, err)
	}
	return nil
}

package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"liquidity-watch/internal/domain"
	"liquidity-watch/internal/observability"
	"liquidity-watch/internal/storage"
)

// AssessmentStore implements storage.AssessmentStore using ClickHouse.
// Holder snapshots are not stored; only their count.
type AssessmentStore struct {
	conn *Conn
}

// NewAssessmentStore creates a new AssessmentStore.
func NewAssessmentStore(conn *Conn) *AssessmentStore {
	return &AssessmentStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AssessmentStore = (*AssessmentStore)(nil)

// InsertBulk adds multiple records. Fails entire batch on duplicate.
func (s *AssessmentStore) InsertBulk(ctx context.Context, records []*domain.AssessmentRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "insert_assessments", time.Since(start).Seconds(), err)
	}()

	// Check for intra-batch duplicates
	type key struct {
		reportID string
		mint     string
	}
	seen := make(map[key]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.ReportID == "" || r.Mint == "" {
			return storage.ErrInvalidInput
		}
		k := key{r.ReportID, r.Mint}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// MergeTree does not enforce uniqueness, check existing rows
	for _, r := range records {
		exists, err := s.exists(ctx, r.ReportID, r.Mint)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO lock_assessments (
			report_id, signature, mint, locked, ratio, locker_address,
			total_observed, holder_count, decimals, decimals_fallback,
			basis, status, error, evaluated_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			r.ReportID, r.Signature, r.Mint, r.Locked, r.Ratio, r.LockerAddress,
			r.TotalObserved.String(), uint32(len(r.Holders)), int32(r.Decimals), r.DecimalsFallback,
			r.Basis, string(r.Status), r.Error, uint64(r.EvaluatedAt),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByMint retrieves all records for a mint, ordered by evaluated_at ASC.
func (s *AssessmentStore) GetByMint(ctx context.Context, mint string) ([]*domain.AssessmentRecord, error) {
	query := `
		SELECT
			report_id, signature, mint, locked, ratio, locker_address,
			total_observed, decimals, decimals_fallback,
			basis, status, error, evaluated_at
		FROM lock_assessments
		WHERE mint = ?
		ORDER BY evaluated_at ASC, report_id ASC
	`

	rows, err := s.conn.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query by mint: %w", err)
	}
	defer rows.Close()

	return scanAssessments(rows)
}

// exists checks if a record with the given key exists.
func (s *AssessmentStore) exists(ctx context.Context, reportID, mint string) (bool, error) {
	query := `
		SELECT count(*) FROM lock_assessments
		WHERE report_id = ? AND mint = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, reportID, mint).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanAssessments scans multiple rows into records.
func scanAssessments(rows chRows) ([]*domain.AssessmentRecord, error) {
	var result []*domain.AssessmentRecord

	for rows.Next() {
		var (
			r           domain.AssessmentRecord
			total       string
			decimals    int32
			status      string
			evaluatedAt uint64
		)
		err := rows.Scan(
			&r.ReportID, &r.Signature, &r.Mint, &r.Locked, &r.Ratio, &r.LockerAddress,
			&total, &decimals, &r.DecimalsFallback,
			&r.Basis, &status, &r.Error, &evaluatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		r.TotalObserved, err = decimal.NewFromString(total)
		if err != nil {
			return nil, fmt.Errorf("parse total_observed %q: %w", total, err)
		}
		r.Decimals = int(decimals)
		r.Status = domain.AssessmentStatus(status)
		r.EvaluatedAt = int64(evaluatedAt)
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

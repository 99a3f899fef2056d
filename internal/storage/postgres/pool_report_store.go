package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"liquidity-watch/internal/domain"
	"liquidity-watch/internal/observability"
	"liquidity-watch/internal/storage"
)

// PoolReportStore implements storage.PoolReportStore using PostgreSQL.
type PoolReportStore struct {
	pool *Pool
}

// NewPoolReportStore creates a new PoolReportStore.
func NewPoolReportStore(pool *Pool) *PoolReportStore {
	return &PoolReportStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PoolReportStore = (*PoolReportStore)(nil)

const reportColumns = `id, signature, slot, block_time, usdc_total, wsol_total, liquidity_usd,
	candidates, status, assessments, evaluated_at`

// Insert adds a new report. Returns ErrDuplicateKey if id exists.
func (s *PoolReportStore) Insert(ctx context.Context, r *domain.PoolReport) (err error) {
	if r == nil || r.ID == "" {
		return storage.ErrInvalidInput
	}
	defer observeQuery("insert_report", time.Now(), &err)

	assessments := r.Assessments
	if assessments == nil {
		assessments = []domain.LockAssessment{}
	}
	payload, err := json.Marshal(assessments)
	if err != nil {
		return fmt.Errorf("marshal assessments: %w", err)
	}

	candidates := r.Candidates
	if candidates == nil {
		candidates = []string{}
	}

	query := `
		INSERT INTO pool_reports (
			id, signature, slot, block_time, usdc_total, wsol_total, liquidity_usd,
			candidates, status, any_locked, assessments, evaluated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = s.pool.Exec(ctx, query,
		r.ID,
		r.Signature,
		int64(r.Slot),
		int64(r.Timestamp),
		r.USDCTotal,
		r.WSOLTotal,
		r.LiquidityUSD,
		candidates,
		string(r.Status),
		r.AnyLocked(),
		payload,
		r.EvaluatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// GetByID retrieves a report by its ID. Returns ErrNotFound if not exists.
func (s *PoolReportStore) GetByID(ctx context.Context, id string) (r *domain.PoolReport, err error) {
	defer observeQuery("get_report", time.Now(), &err)

	query := `SELECT ` + reportColumns + ` FROM pool_reports WHERE id = $1`

	r, err = scanReport(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get report by id: %w", err)
	}
	return r, nil
}

// GetBySignature retrieves all reports for a transaction signature.
func (s *PoolReportStore) GetBySignature(ctx context.Context, signature string) ([]*domain.PoolReport, error) {
	query := `SELECT ` + reportColumns + `
		FROM pool_reports
		WHERE signature = $1
		ORDER BY slot ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, signature)
	if err != nil {
		return nil, fmt.Errorf("get reports by signature: %w", err)
	}
	defer rows.Close()

	return scanReports(rows)
}

// GetRecent retrieves up to limit reports, newest evaluated_at first.
func (s *PoolReportStore) GetRecent(ctx context.Context, limit int) ([]*domain.PoolReport, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `SELECT ` + reportColumns + `
		FROM pool_reports
		ORDER BY evaluated_at DESC, id ASC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent reports: %w", err)
	}
	defer rows.Close()

	return scanReports(rows)
}

// scanReport scans a single row into a PoolReport.
func scanReport(row pgx.Row) (*domain.PoolReport, error) {
	var (
		r         domain.PoolReport
		slot      int64
		blockTime int64
		status    string
		payload   []byte
	)

	err := row.Scan(
		&r.ID,
		&r.Signature,
		&slot,
		&blockTime,
		&r.USDCTotal,
		&r.WSOLTotal,
		&r.LiquidityUSD,
		&r.Candidates,
		&status,
		&payload,
		&r.EvaluatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Slot = uint64(slot)
	r.Timestamp = uint64(blockTime)
	r.Status = domain.ReportStatus(status)

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &r.Assessments); err != nil {
			return nil, fmt.Errorf("unmarshal assessments: %w", err)
		}
	}
	if len(r.Assessments) == 0 {
		r.Assessments = nil
	}

	return &r, nil
}

// scanReports scans multiple rows into PoolReports.
func scanReports(rows pgx.Rows) ([]*domain.PoolReport, error) {
	var result []*domain.PoolReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return result, nil
}

func observeQuery(operation string, start time.Time, err *error) {
	observability.RecordDBQuery("postgres", operation, time.Since(start).Seconds(), *err)
}

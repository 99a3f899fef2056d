package postgres

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidity-watch/internal/domain"
	"liquidity-watch/internal/storage"
)

func testReport(sig string, slot uint64, evaluatedAt int64) *domain.PoolReport {
	ev := &domain.PoolEvent{
		Signature:      sig,
		Slot:           slot,
		Timestamp:      1700000000,
		USDCTotal:      1500,
		WSOLTotal:      25,
		CandidateMints: []string{"lpMintA", "lpMintB"},
	}
	r := domain.NewPoolReport(ev, 2100, evaluatedAt)
	r.Status = domain.ReportEvaluated
	r.Assessments = []domain.LockAssessment{
		{
			Mint:          "lpMintA",
			Locked:        true,
			Ratio:         0.95,
			LockerAddress: "locker",
			TotalObserved: decimal.NewFromInt(100),
			Holders: []domain.HolderRecord{
				{Address: "locker", Amount: decimal.NewFromInt(95)},
				{Address: "other", Amount: decimal.RequireFromString("5.000000001")},
			},
			Decimals: 9,
			Basis:    domain.SupplyBasisObserved,
			Status:   domain.AssessmentEvaluated,
		},
		{
			Mint:   "lpMintB",
			Status: domain.AssessmentUnavailable,
			Error:  "ledger unavailable",
		},
	}
	return r
}

func TestPoolReportStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPoolReportStore(pool)
	ctx := context.Background()

	report := testReport("sig-001", 100, 1700000000123)
	require.NoError(t, store.Insert(ctx, report))

	got, err := store.GetByID(ctx, report.ID)
	require.NoError(t, err)

	assert.Equal(t, report.ID, got.ID)
	assert.Equal(t, report.Signature, got.Signature)
	assert.Equal(t, report.Slot, got.Slot)
	assert.Equal(t, report.Timestamp, got.Timestamp)
	assert.Equal(t, report.LiquidityUSD, got.LiquidityUSD)
	assert.Equal(t, report.Candidates, got.Candidates)
	assert.Equal(t, report.Status, got.Status)
	assert.Equal(t, report.EvaluatedAt, got.EvaluatedAt)
	require.Len(t, got.Assessments, 2)
	assert.True(t, got.Assessments[0].Locked)
	assert.True(t, got.Assessments[0].Holders[1].Amount.Equal(decimal.RequireFromString("5.000000001")))
	assert.Equal(t, domain.AssessmentUnavailable, got.Assessments[1].Status)
}

func TestPoolReportStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPoolReportStore(pool)
	ctx := context.Background()

	report := testReport("sig-dup", 1, 1)
	require.NoError(t, store.Insert(ctx, report))

	err := store.Insert(ctx, report)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestPoolReportStore_GetByID_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPoolReportStore(pool)

	_, err := store.GetByID(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPoolReportStore_BelowThresholdWithoutAssessments(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPoolReportStore(pool)
	ctx := context.Background()

	report := domain.NewPoolReport(&domain.PoolEvent{Signature: "small", Slot: 5}, 10, 1)
	require.NoError(t, store.Insert(ctx, report))

	got, err := store.GetByID(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReportBelowThreshold, got.Status)
	assert.Empty(t, got.Assessments)
	assert.Empty(t, got.Candidates)
}

func TestPoolReportStore_GetBySignatureAndRecent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPoolReportStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testReport("sig-a", 10, 100)))
	require.NoError(t, store.Insert(ctx, testReport("sig-a", 11, 300)))
	require.NoError(t, store.Insert(ctx, testReport("sig-b", 12, 200)))

	bySig, err := store.GetBySignature(ctx, "sig-a")
	require.NoError(t, err)
	require.Len(t, bySig, 2)
	assert.Equal(t, uint64(10), bySig[0].Slot)
	assert.Equal(t, uint64(11), bySig[1].Slot)

	recent, err := store.GetRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(300), recent[0].EvaluatedAt)
	assert.Equal(t, int64(200), recent[1].EvaluatedAt)

	_, err = store.GetRecent(ctx, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

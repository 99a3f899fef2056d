package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dustin/go-humanize"
)

// ReportStatus is the outcome of evaluating a pool-creation event.
type ReportStatus string

const (
	ReportBelowThreshold ReportStatus = "below_threshold"
	ReportEvaluated      ReportStatus = "evaluated"
)

// PoolReport is the evaluation record produced for each pool-creation event.
type PoolReport struct {
	ID           string           `json:"id"`
	Signature    string           `json:"signature"`
	Slot         uint64           `json:"slot"`
	Timestamp    uint64           `json:"timestamp"`
	USDCTotal    float64          `json:"usdc_total"`
	WSOLTotal    float64          `json:"wsol_total"`
	LiquidityUSD float64          `json:"liquidity_usd"`
	Candidates   []string         `json:"candidates"`
	Status       ReportStatus     `json:"status"`
	Assessments  []LockAssessment `json:"assessments,omitempty"`
	EvaluatedAt  int64            `json:"evaluated_at"` // ms
}

// NewPoolReport builds a report skeleton from a classified event.
func NewPoolReport(ev *PoolEvent, liquidityUSD float64, evaluatedAt int64) *PoolReport {
	return &PoolReport{
		ID:           ComputeReportID(ev.Signature, ev.Slot),
		Signature:    ev.Signature,
		Slot:         ev.Slot,
		Timestamp:    ev.Timestamp,
		USDCTotal:    ev.USDCTotal,
		WSOLTotal:    ev.WSOLTotal,
		LiquidityUSD: liquidityUSD,
		Candidates:   ev.CandidateMints,
		Status:       ReportBelowThreshold,
		EvaluatedAt:  evaluatedAt,
	}
}

// AnyLocked reports whether at least one candidate was found locked.
func (r *PoolReport) AnyLocked() bool {
	for _, a := range r.Assessments {
		if a.Locked {
			return true
		}
	}
	return false
}

// Summary renders a one-line human readable description.
func (r *PoolReport) Summary() string {
	return fmt.Sprintf("pool %s slot=%d liquidity=$%s usdc=%s wsol=%s candidates=%d locked=%t",
		r.Signature, r.Slot,
		humanize.CommafWithDigits(r.LiquidityUSD, 2),
		humanize.CommafWithDigits(r.USDCTotal, 2),
		humanize.CommafWithDigits(r.WSOLTotal, 4),
		len(r.Candidates), r.AnyLocked())
}

// ComputeReportID computes a deterministic report id.
// Formula: SHA256(signature|slot), hex encoded (64 characters).
func ComputeReportID(signature string, slot uint64) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", signature, slot)))
	return hex.EncodeToString(hash[:])
}

// AssessmentRecord is a lock assessment tied to the report that produced it.
type AssessmentRecord struct {
	ReportID    string `json:"report_id"`
	Signature   string `json:"signature"`
	EvaluatedAt int64  `json:"evaluated_at"`
	LockAssessment
}

// AssessmentRecords flattens the report's assessments for storage.
func (r *PoolReport) AssessmentRecords() []*AssessmentRecord {
	out := make([]*AssessmentRecord, 0, len(r.Assessments))
	for _, a := range r.Assessments {
		out = append(out, &AssessmentRecord{
			ReportID:       r.ID,
			Signature:      r.Signature,
			EvaluatedAt:    r.EvaluatedAt,
			LockAssessment: a,
		})
	}
	return out
}

package domain

import "github.com/shopspring/decimal"

// HolderRecord is one entry of a top-holder snapshot.
type HolderRecord struct {
	Address       string          `json:"address"` // token account
	Amount        decimal.Decimal `json:"amount"`  // raw units / 10^decimals
	Owner         string          `json:"owner,omitempty"`
	OwnerOffCurve bool            `json:"owner_off_curve,omitempty"`
}

// AssessmentStatus tells how a lock assessment was reached.
type AssessmentStatus string

const (
	// AssessmentEvaluated means holders were fetched and the ratio computed.
	AssessmentEvaluated AssessmentStatus = "evaluated"
	// AssessmentNoData means the ledger answered but returned no holders.
	AssessmentNoData AssessmentStatus = "no_data"
	// AssessmentUnavailable means the ledger could not be reached.
	AssessmentUnavailable AssessmentStatus = "unavailable"
)

// Supply basis values for the lock ratio denominator.
const (
	SupplyBasisObserved = "observed" // sum of returned top holders
	SupplyBasisSupply   = "supply"   // on-chain total supply
)

// LockAssessment is the derived lock verdict for one liquidity-token mint.
type LockAssessment struct {
	Mint             string           `json:"mint"`
	Locked           bool             `json:"locked"`
	Ratio            float64          `json:"ratio"`
	LockerAddress    string           `json:"locker_address,omitempty"`
	TotalObserved    decimal.Decimal  `json:"total_observed"`
	Holders          []HolderRecord   `json:"holders"`
	Decimals         int              `json:"decimals"`
	DecimalsFallback bool             `json:"decimals_fallback"`
	Basis            string           `json:"basis"`
	Status           AssessmentStatus `json:"status"`
	Error            string           `json:"error,omitempty"`
}

// Package liquidity estimates the dollar value deposited into a new pool.
package liquidity

import "liquidity-watch/internal/domain"

// DefaultMinLiquidityUSD is the default lock-check gate.
const DefaultMinLiquidityUSD = 2000.0

// Estimator values USDC at par and wSOL at a fixed assumed price.
type Estimator struct {
	solPriceUSD     float64
	minLiquidityUSD float64
}

// NewEstimator creates an estimator.
func NewEstimator(solPriceUSD, minLiquidityUSD float64) *Estimator {
	return &Estimator{solPriceUSD: solPriceUSD, minLiquidityUSD: minLiquidityUSD}
}

// Estimate returns usdcTotal + wsolTotal * solPrice.
func (e *Estimator) Estimate(ev *domain.PoolEvent) float64 {
	if ev == nil {
		return 0
	}
	return ev.USDCTotal + ev.WSOLTotal*e.solPriceUSD
}

// MeetsThreshold reports whether usd clears the configured minimum (inclusive).
func (e *Estimator) MeetsThreshold(usd float64) bool {
	return usd >= e.minLiquidityUSD
}

// MinLiquidityUSD returns the configured gate.
func (e *Estimator) MinLiquidityUSD() float64 {
	return e.minLiquidityUSD
}

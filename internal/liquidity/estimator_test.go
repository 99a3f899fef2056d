package liquidity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"liquidity-watch/internal/domain"
)

func TestEstimator(t *testing.T) {
	e := NewEstimator(24, DefaultMinLiquidityUSD)

	tests := []struct {
		name      string
		usdc      float64
		wsol      float64
		wantUSD   float64
		wantCheck bool
	}{
		{"below threshold", 1500, 20, 1980, false},
		{"above threshold", 1500, 25, 2100, true},
		{"exactly at threshold", 2000, 0, 2000, true},
		{"wsol only", 0, 100, 2400, true},
		{"empty", 0, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usd := e.Estimate(&domain.PoolEvent{USDCTotal: tt.usdc, WSOLTotal: tt.wsol})
			assert.InDelta(t, tt.wantUSD, usd, 1e-9)
			assert.Equal(t, tt.wantCheck, e.MeetsThreshold(usd))
		})
	}
}

func TestEstimator_NilEvent(t *testing.T) {
	e := NewEstimator(24, DefaultMinLiquidityUSD)
	assert.Equal(t, 0.0, e.Estimate(nil))
}

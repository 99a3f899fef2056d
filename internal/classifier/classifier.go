// Package classifier turns raw webhook notifications into pool-creation events.
package classifier

import (
	"sort"

	"liquidity-watch/internal/domain"
)

// Config holds the identifiers the classifier matches against.
type Config struct {
	EventType string // notification type for pool creation
	USDCMint  string
	WSOLMint  string
}

// Classifier filters pool-creation notifications and aggregates deposits.
// It performs no I/O and never fails.
type Classifier struct {
	cfg Config
}

// New creates a classifier. An empty EventType defaults to CREATE_POOL.
func New(cfg Config) *Classifier {
	if cfg.EventType == "" {
		cfg.EventType = domain.EventTypeCreatePool
	}
	return &Classifier{cfg: cfg}
}

// Classify returns the pool event for n, or false when n is not a pool creation.
func (c *Classifier) Classify(n domain.Notification) (*domain.PoolEvent, bool) {
	if n.Type != c.cfg.EventType {
		return nil, false
	}

	ev := &domain.PoolEvent{
		Signature: n.Signature,
		Slot:      n.Slot,
		Timestamp: n.Timestamp,
	}

	candidates := make(map[string]struct{})
	for _, tr := range n.TokenTransfers {
		if tr.Mint == "" {
			continue
		}
		switch tr.Mint {
		case c.cfg.USDCMint:
			ev.USDCTotal += nonNegative(tr.TokenAmount)
		case c.cfg.WSOLMint:
			ev.WSOLTotal += nonNegative(tr.TokenAmount)
		default:
			// Transfers without a user source are program/system movements.
			if tr.FromUserAccount != "" {
				candidates[tr.Mint] = struct{}{}
			}
		}
	}

	ev.CandidateMints = make([]string, 0, len(candidates))
	for mint := range candidates {
		ev.CandidateMints = append(ev.CandidateMints, mint)
	}
	sort.Strings(ev.CandidateMints)

	return ev, true
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// Package oracle answers whether a liquidity-token mint is held by a known locker.
package oracle

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidity-watch/internal/domain"
	"liquidity-watch/internal/observability"
	"liquidity-watch/internal/solana"
)

// Default settings.
const (
	DefaultLockRatio       = 0.9
	DefaultDecimals        = 9
	DefaultTimeout         = 10 * time.Second
	DefaultDecimalsTTL     = 24 * time.Hour
	DefaultIncineratorAddr = "1nc1nerator11111111111111111111111111111111"

	// DefaultDecimalsCapacity bounds the number of cached mints.
	DefaultDecimalsCapacity = 10000
)

// ErrLedgerUnavailable is returned when the ledger service cannot be reached
// or answers with an error. It is never fatal to a batch.
var ErrLedgerUnavailable = errors.New("ledger unavailable")

// Settings configures an Oracle. It is copied at construction.
type Settings struct {
	Lockers         []string
	LockRatio       float64
	DefaultDecimals int
	Basis           string // domain.SupplyBasisObserved or domain.SupplyBasisSupply
	ResolveOwners   bool
	Timeout         time.Duration
	DecimalsTTL     time.Duration
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Lockers:         []string{DefaultIncineratorAddr},
		LockRatio:       DefaultLockRatio,
		DefaultDecimals: DefaultDecimals,
		Basis:           domain.SupplyBasisObserved,
		Timeout:         DefaultTimeout,
		DecimalsTTL:     DefaultDecimalsTTL,
	}
}

// Oracle fetches top-holder snapshots and evaluates lock concentration.
type Oracle struct {
	ledger    solana.LedgerClient
	settings  Settings
	lockers   map[string]struct{}
	threshold decimal.Decimal
	decimals  *ttlcache.Cache[string, int]
	closeOnce sync.Once
	logger    *zap.Logger
}

// New creates an Oracle over ledger.
func New(ledger solana.LedgerClient, settings Settings, logger *zap.Logger) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.LockRatio <= 0 {
		settings.LockRatio = DefaultLockRatio
	}
	if settings.DefaultDecimals < 0 {
		settings.DefaultDecimals = DefaultDecimals
	}
	if settings.Basis == "" {
		settings.Basis = domain.SupplyBasisObserved
	}
	if settings.DecimalsTTL <= 0 {
		settings.DecimalsTTL = DefaultDecimalsTTL
	}

	lockers := make(map[string]struct{}, len(settings.Lockers))
	for _, addr := range settings.Lockers {
		if addr != "" {
			lockers[addr] = struct{}{}
		}
	}
	settings.Lockers = append([]string(nil), settings.Lockers...)

	decimals := ttlcache.New[string, int](
		ttlcache.WithTTL[string, int](settings.DecimalsTTL),
		ttlcache.WithCapacity[string, int](DefaultDecimalsCapacity),
		ttlcache.WithDisableTouchOnHit[string, int](),
	)
	// removes expired entries until Close
	go decimals.Start()

	return &Oracle{
		ledger:    ledger,
		settings:  settings,
		lockers:   lockers,
		threshold: decimal.NewFromFloat(settings.LockRatio),
		decimals:  decimals,
		logger:    logger,
	}
}

// Close stops the decimals cache cleanup. It is safe to call more than once.
func (o *Oracle) Close() {
	o.closeOnce.Do(o.decimals.Stop)
}

// Settings returns a copy of the oracle settings.
func (o *Oracle) Settings() Settings {
	s := o.settings
	s.Lockers = append([]string(nil), o.settings.Lockers...)
	return s
}

// snapshot is one normalized view of a mint's top holders.
type snapshot struct {
	holders   []domain.HolderRecord
	decimals  int
	fallback  bool
	supply    decimal.Decimal
	hasSupply bool
}

// TopHolders returns the largest holders of mint with amounts normalized by
// the mint's decimals. An unreachable ledger yields an empty slice and an
// error wrapping ErrLedgerUnavailable; an empty snapshot yields no error.
func (o *Oracle) TopHolders(ctx context.Context, mint string) ([]domain.HolderRecord, error) {
	snap, err := o.fetch(ctx, mint)
	if err != nil {
		return []domain.HolderRecord{}, err
	}
	return snap.holders, nil
}

// IsLocked reports whether a single allow-listed holder owns at least the
// configured share of mint. Failures count as not locked.
func (o *Oracle) IsLocked(ctx context.Context, mint string) bool {
	return o.Assess(ctx, mint).Locked
}

// Assess computes the full lock assessment for mint.
func (o *Oracle) Assess(ctx context.Context, mint string) domain.LockAssessment {
	a := domain.LockAssessment{
		Mint:          mint,
		Basis:         o.settings.Basis,
		Holders:       []domain.HolderRecord{},
		TotalObserved: decimal.Zero,
	}

	snap, err := o.fetch(ctx, mint)
	if err != nil {
		a.Status = domain.AssessmentUnavailable
		a.Error = err.Error()
		o.logger.Warn("ledger unavailable", zap.String("mint", mint), zap.Error(err))
		observability.RecordLockCheck(string(a.Status), false)
		return a
	}

	a.Holders = snap.holders
	a.Decimals = snap.decimals
	a.DecimalsFallback = snap.fallback

	if len(snap.holders) == 0 {
		a.Status = domain.AssessmentNoData
		o.logger.Warn("no holders returned", zap.String("mint", mint))
		observability.RecordLockCheck(string(a.Status), false)
		return a
	}

	a.Status = domain.AssessmentEvaluated
	total := sumHolders(snap.holders)
	a.TotalObserved = total

	denominator := total
	if o.settings.Basis == domain.SupplyBasisSupply {
		if snap.hasSupply && snap.supply.IsPositive() {
			denominator = snap.supply
		} else {
			// Supply missing: keep the observed total.
			a.Basis = domain.SupplyBasisObserved
		}
	}

	if !denominator.IsPositive() {
		observability.RecordLockCheck(string(a.Status), false)
		return a
	}

	// Shares share a denominator, so the largest locker balance wins.
	best := decimal.Zero
	for _, h := range snap.holders {
		if !o.isLocker(h) {
			continue
		}
		if h.Amount.GreaterThan(best) || a.LockerAddress == "" {
			best = h.Amount
			a.LockerAddress = h.Address
		}
	}
	// Div rounds; the verdict uses the exact product instead.
	a.Ratio = best.Div(denominator).InexactFloat64()
	a.Locked = a.LockerAddress != "" && best.GreaterThanOrEqual(o.threshold.Mul(denominator))
	if !a.Locked {
		a.LockerAddress = ""
	}

	o.logger.Debug("lock assessed",
		zap.String("mint", mint),
		zap.Bool("locked", a.Locked),
		zap.Float64("ratio", a.Ratio),
		zap.Int("holders", len(snap.holders)))
	observability.RecordLockCheck(string(a.Status), a.Locked)
	return a
}

func (o *Oracle) isLocker(h domain.HolderRecord) bool {
	if _, ok := o.lockers[h.Address]; ok {
		return true
	}
	if h.Owner != "" {
		_, ok := o.lockers[h.Owner]
		return ok
	}
	return false
}

func sumHolders(holders []domain.HolderRecord) decimal.Decimal {
	total := decimal.Zero
	for _, h := range holders {
		total = total.Add(h.Amount)
	}
	return total
}

func (o *Oracle) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.settings.Timeout > 0 {
		return context.WithTimeout(ctx, o.settings.Timeout)
	}
	return context.WithCancel(ctx)
}

func (o *Oracle) fetch(ctx context.Context, mint string) (*snapshot, error) {
	callCtx, cancel := o.callContext(ctx)
	accounts, err := o.ledger.GetTokenLargestAccounts(callCtx, mint)
	cancel()
	if err != nil {
		return nil, errors.Wrapf(ErrLedgerUnavailable, "getTokenLargestAccounts %s: %v", mint, err)
	}

	snap := &snapshot{holders: []domain.HolderRecord{}}
	if len(accounts) == 0 {
		return snap, nil
	}

	o.resolveDecimals(ctx, mint, accounts, snap)

	for _, acct := range accounts {
		raw, err := decimal.NewFromString(acct.Amount)
		if err != nil {
			o.logger.Warn("skipping holder with malformed amount",
				zap.String("mint", mint),
				zap.String("account", acct.Address),
				zap.String("amount", acct.Amount))
			continue
		}
		snap.holders = append(snap.holders, domain.HolderRecord{
			Address: acct.Address,
			Amount:  raw.Shift(int32(-snap.decimals)),
		})
	}

	if o.settings.ResolveOwners {
		o.resolveOwners(ctx, mint, snap.holders)
	}

	return snap, nil
}

// resolveDecimals fills decimals and, when needed, the total supply.
// Order: cache, getTokenSupply, decimals reported with the holders, default.
func (o *Oracle) resolveDecimals(ctx context.Context, mint string, accounts []solana.TokenAccountBalance, snap *snapshot) {
	needSupply := o.settings.Basis == domain.SupplyBasisSupply

	if item := o.decimals.Get(mint); item != nil && !needSupply {
		snap.decimals = item.Value()
		return
	}

	callCtx, cancel := o.callContext(ctx)
	supply, err := o.ledger.GetTokenSupply(callCtx, mint)
	cancel()
	if err != nil {
		o.logger.Warn("getTokenSupply failed", zap.String("mint", mint), zap.Error(err))
	}

	if supply != nil {
		snap.decimals = supply.Decimals
		o.decimals.Set(mint, supply.Decimals, ttlcache.DefaultTTL)
		if raw, perr := decimal.NewFromString(supply.Amount); perr == nil {
			snap.supply = raw.Shift(int32(-supply.Decimals))
			snap.hasSupply = true
		}
		return
	}

	if item := o.decimals.Get(mint); item != nil {
		snap.decimals = item.Value()
		return
	}

	for _, acct := range accounts {
		if acct.Decimals != nil {
			snap.decimals = *acct.Decimals
			o.decimals.Set(mint, *acct.Decimals, ttlcache.DefaultTTL)
			return
		}
	}

	snap.decimals = o.settings.DefaultDecimals
	snap.fallback = true
}

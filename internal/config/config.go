// Package config loads service settings from the environment, flags and an
// optional .env file.
package config

import (
	"io/fs"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/joho/godotenv"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"liquidity-watch/internal/classifier"
	"liquidity-watch/internal/domain"
	"liquidity-watch/internal/feed"
	"liquidity-watch/internal/oracle"
	"liquidity-watch/internal/webhook"
)

// Prefix is prepended to every environment variable name.
const Prefix = "LIQUIDITY_WATCH"

// Ledger client kinds.
const (
	LedgerClientHTTP = "http"
	LedgerClientSDK  = "sdk"
)

// Well-known mints.
const (
	DefaultUSDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	DefaultWSOLMint = "So11111111111111111111111111111111111111112"
)

// ErrHelpWanted is returned by Load when --help was requested. The usage
// text is returned alongside it.
var ErrHelpWanted = conf.ErrHelpWanted

// Settings is the complete service configuration. It is not modified after
// Load returns.
type Settings struct {
	Server struct {
		ListenAddr      string        `conf:"default:0.0.0.0:8080"`
		WebhookPath     string        `conf:"default:/helius-webhook"`
		AuthToken       string        `conf:"mask"`
		MaxBodyBytes    int64         `conf:"default:10485760"`
		ShutdownTimeout time.Duration `conf:"default:30s"`
	}
	Pool struct {
		MinLiquidityUSD float64 `conf:"default:2000"`
		SolPriceUSD     float64 `conf:"default:24"`
		USDCMint        string  `conf:"default:EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"`
		WSOLMint        string  `conf:"default:So11111111111111111111111111111111111111112"`
		EventType       string  `conf:"default:CREATE_POOL"`
	}
	Lock struct {
		Lockers         []string      `conf:"default:1nc1nerator11111111111111111111111111111111"`
		Ratio           float64       `conf:"default:0.9"`
		DefaultDecimals int           `conf:"default:9"`
		Basis           string        `conf:"default:observed"`
		ResolveOwners   bool          `conf:"default:false"`
		DecimalsTTL     time.Duration `conf:"default:24h"`
	}
	Ledger struct {
		Endpoint   string        `conf:"default:https://api.mainnet-beta.solana.com"`
		Client     string        `conf:"default:http"`
		Commitment string        `conf:"default:confirmed"`
		Timeout    time.Duration `conf:"default:10s"`
		MaxRetries int           `conf:"default:3"`
	}
	Feed struct {
		Endpoint  string `conf:"mask"`
		AuthToken string `conf:"mask"`
	}
	Store struct {
		PostgresDSN      string `conf:"mask"`
		PostgresMaxConns int    `conf:"default:10"`
		ClickhouseDSN    string `conf:"mask"`
		MemoryCapacity   int    `conf:"default:10000"`
	}
	Kafka struct {
		BootstrapServers []string
		Topic            string `conf:"default:liquidity-watch-reports"`
	}
}

// Load reads envFile (when present) into the process environment, then
// parses flags and environment variables into Settings and validates them.
// On --help it returns the usage text and ErrHelpWanted.
func Load(envFile string) (*Settings, string, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, "", errors.Wrapf(err, "loading %s", envFile)
		}
	}

	var s Settings
	help, err := conf.Parse(Prefix, &s)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			return nil, help, ErrHelpWanted
		}
		return nil, "", errors.Wrap(err, "parsing config")
	}

	if err := s.Validate(); err != nil {
		return nil, "", err
	}
	return &s, "", nil
}

// String renders the settings with secrets masked.
func (s *Settings) String() string {
	out, err := conf.String(s)
	if err != nil {
		return err.Error()
	}
	return out
}

// Validate checks value ranges and address encodings.
func (s *Settings) Validate() error {
	if s.Pool.MinLiquidityUSD < 0 {
		return errors.New("pool min liquidity must not be negative")
	}
	if s.Pool.SolPriceUSD < 0 {
		return errors.New("pool sol price must not be negative")
	}
	if s.Pool.EventType == "" {
		return errors.New("pool event type must be set")
	}
	if err := ValidateAddress(s.Pool.USDCMint); err != nil {
		return errors.Wrap(err, "usdc mint")
	}
	if err := ValidateAddress(s.Pool.WSOLMint); err != nil {
		return errors.Wrap(err, "wsol mint")
	}

	if len(s.Lock.Lockers) == 0 {
		return errors.New("at least one locker address is required")
	}
	for _, addr := range s.Lock.Lockers {
		if err := ValidateAddress(addr); err != nil {
			return errors.Wrap(err, "locker")
		}
	}
	if s.Lock.Ratio <= 0 || s.Lock.Ratio > 1 {
		return errors.Errorf("lock ratio %v must be in (0, 1]", s.Lock.Ratio)
	}
	if s.Lock.DefaultDecimals < 0 || s.Lock.DefaultDecimals > 255 {
		return errors.Errorf("default decimals %d out of range", s.Lock.DefaultDecimals)
	}
	switch s.Lock.Basis {
	case domain.SupplyBasisObserved, domain.SupplyBasisSupply:
	default:
		return errors.Errorf("unknown supply basis %q", s.Lock.Basis)
	}

	switch s.Ledger.Client {
	case LedgerClientHTTP, LedgerClientSDK:
	default:
		return errors.Errorf("unknown ledger client %q", s.Ledger.Client)
	}
	if s.Ledger.Endpoint == "" {
		return errors.New("ledger endpoint must be set")
	}
	if s.Ledger.MaxRetries < 0 {
		return errors.New("ledger max retries must not be negative")
	}

	if s.Store.MemoryCapacity <= 0 {
		return errors.New("store memory capacity must be positive")
	}

	if s.Server.WebhookPath == "" || s.Server.WebhookPath[0] != '/' {
		return errors.Errorf("webhook path %q must start with /", s.Server.WebhookPath)
	}
	return nil
}

// ValidateAddress checks that addr is a base58-encoded 32-byte public key.
func ValidateAddress(addr string) error {
	raw, err := base58.Decode(addr)
	if err != nil {
		return errors.Wrapf(err, "address %q is not base58", addr)
	}
	if len(raw) != 32 {
		return errors.Errorf("address %q decodes to %d bytes, want 32", addr, len(raw))
	}
	return nil
}

// ClassifierConfig returns the classifier identifiers.
func (s *Settings) ClassifierConfig() classifier.Config {
	return classifier.Config{
		EventType: s.Pool.EventType,
		USDCMint:  s.Pool.USDCMint,
		WSOLMint:  s.Pool.WSOLMint,
	}
}

// OracleSettings returns the lock-check settings.
func (s *Settings) OracleSettings() oracle.Settings {
	return oracle.Settings{
		Lockers:         append([]string(nil), s.Lock.Lockers...),
		LockRatio:       s.Lock.Ratio,
		DefaultDecimals: s.Lock.DefaultDecimals,
		Basis:           s.Lock.Basis,
		ResolveOwners:   s.Lock.ResolveOwners,
		Timeout:         s.Ledger.Timeout,
		DecimalsTTL:     s.Lock.DecimalsTTL,
	}
}

// HandlerConfig returns the webhook handler settings.
func (s *Settings) HandlerConfig() webhook.HandlerConfig {
	return webhook.HandlerConfig{
		AuthToken:    s.Server.AuthToken,
		MaxBodyBytes: s.Server.MaxBodyBytes,
	}
}

// FeedConfig returns the stream consumer settings.
func (s *Settings) FeedConfig() *feed.Config {
	cfg := feed.DefaultConfig()
	if s.Feed.AuthToken != "" {
		cfg.Header = map[string][]string{"Authorization": {s.Feed.AuthToken}}
	}
	return &cfg
}

// WebhookPaths returns the configured path and the legacy alias.
func (s *Settings) WebhookPaths() []string {
	const legacy = "/helis-webhook"
	if s.Server.WebhookPath == legacy {
		return []string{legacy}
	}
	return []string{s.Server.WebhookPath, legacy}
}

// Command assess runs a one-shot lock assessment for a liquidity-token mint
// and prints it as JSON.
//
//	assess -mint <address> [-rpc-endpoint URL] [-basis observed|supply]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"liquidity-watch/internal/config"
	"liquidity-watch/internal/domain"
	"liquidity-watch/internal/oracle"
	"liquidity-watch/internal/solana"
	"liquidity-watch/internal/solana/sdk"
)

// Exit codes.
const (
	exitOK          = 0
	exitUnavailable = 1
	exitUsage       = 2
)

// ledgerFactory builds the ledger client for the -client and -rpc-endpoint flags.
type ledgerFactory func(client, endpoint string, timeout time.Duration) (solana.LedgerClient, error)

func main() {
	// Optional .env, same file the server reads
	_ = godotenv.Load()

	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, newLedger))
}

func newLedger(client, endpoint string, timeout time.Duration) (solana.LedgerClient, error) {
	switch client {
	case config.LedgerClientSDK:
		return sdk.New(endpoint, ""), nil
	case config.LedgerClientHTTP:
		return solana.NewHTTPClient(endpoint, solana.WithTimeout(timeout)), nil
	default:
		return nil, errors.Errorf("unknown client %q", client)
	}
}

// options are the parsed command line.
type options struct {
	mint     string
	endpoint string
	client   string
	verbose  bool
	settings oracle.Settings
}

// parseOptions parses and validates args. The usage text is written to stderr.
func parseOptions(args []string, stderr io.Writer) (*options, error) {
	defaults := oracle.DefaultSettings()

	fs := flag.NewFlagSet("assess", flag.ContinueOnError)
	fs.SetOutput(stderr)

	mint := fs.String("mint", "", "Liquidity-token mint to assess (required)")
	endpoint := fs.String("rpc-endpoint", envOr("LIQUIDITY_WATCH_LEDGER_ENDPOINT", "https://api.mainnet-beta.solana.com"), "Solana RPC HTTP endpoint")
	client := fs.String("client", config.LedgerClientHTTP, "Ledger client: http or sdk")
	lockers := fs.String("lockers", strings.Join(defaults.Lockers, ","), "Comma-separated locker addresses")
	ratio := fs.Float64("ratio", defaults.LockRatio, "Minimum locker share")
	basis := fs.String("basis", defaults.Basis, "Ratio denominator: observed or supply")
	resolveOwners := fs.Bool("resolve-owners", false, "Match lockers against token account owners")
	timeout := fs.Duration("timeout", defaults.Timeout, "Per-call ledger timeout")
	verbose := fs.Bool("v", false, "Log oracle warnings to stderr")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := config.ValidateAddress(*mint); err != nil {
		return nil, errors.Wrap(err, "-mint")
	}

	list := splitList(*lockers)
	if len(list) == 0 {
		return nil, errors.New("-lockers: at least one locker address is required")
	}
	for _, addr := range list {
		if err := config.ValidateAddress(addr); err != nil {
			return nil, errors.Wrap(err, "-lockers")
		}
	}
	if *ratio <= 0 || *ratio > 1 {
		return nil, errors.Errorf("-ratio %v must be in (0, 1]", *ratio)
	}
	if *basis != domain.SupplyBasisObserved && *basis != domain.SupplyBasisSupply {
		return nil, errors.Errorf("unknown basis %q", *basis)
	}
	if *timeout <= 0 {
		return nil, errors.New("-timeout must be positive")
	}

	settings := defaults
	settings.Lockers = list
	settings.LockRatio = *ratio
	settings.Basis = *basis
	settings.ResolveOwners = *resolveOwners
	settings.Timeout = *timeout

	return &options{
		mint:     *mint,
		endpoint: *endpoint,
		client:   *client,
		verbose:  *verbose,
		settings: settings,
	}, nil
}

// run executes the command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer, factory ledgerFactory) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return exitUsage
	}

	ledger, err := factory(opts.client, opts.endpoint, opts.settings.Timeout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	logger := zap.NewNop()
	if opts.verbose {
		zcfg := zap.NewDevelopmentConfig()
		zcfg.OutputPaths = []string{"stderr"}
		if l, err := zcfg.Build(); err == nil {
			logger = l
		}
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 4*opts.settings.Timeout+5*time.Second)
	defer cancel()

	orc := oracle.New(ledger, opts.settings, logger)
	defer orc.Close()
	assessment := orc.Assess(ctx, opts.mint)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(assessment); err != nil {
		fmt.Fprintf(stderr, "Error encoding assessment: %v\n", err)
		return exitUnavailable
	}

	if assessment.Status == domain.AssessmentUnavailable {
		return exitUnavailable
	}
	return exitOK
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

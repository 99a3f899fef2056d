package stub

import (
	"context"
	"sync"

	"liquidity-watch/internal/solana"
)

// LedgerClient implements solana.LedgerClient for testing.
// Missing mints return empty results; Err, when set, is returned by every call.
type LedgerClient struct {
	mu sync.Mutex

	Largest  map[string][]solana.TokenAccountBalance
	Supplies map[string]*solana.TokenSupply
	Accounts map[string]*solana.AccountInfo
	Err      error

	calls map[string]int
}

// NewLedgerClient creates a new stub ledger client.
func NewLedgerClient() *LedgerClient {
	return &LedgerClient{
		Largest:  make(map[string][]solana.TokenAccountBalance),
		Supplies: make(map[string]*solana.TokenSupply),
		Accounts: make(map[string]*solana.AccountInfo),
		calls:    make(map[string]int),
	}
}

var _ solana.LedgerClient = (*LedgerClient)(nil)

func (c *LedgerClient) record(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
	return c.Err
}

// GetTokenLargestAccounts returns the balances registered for mint.
func (c *LedgerClient) GetTokenLargestAccounts(_ context.Context, mint string) ([]solana.TokenAccountBalance, error) {
	if err := c.record("getTokenLargestAccounts"); err != nil {
		return nil, err
	}
	return c.Largest[mint], nil
}

// GetTokenSupply returns the supply registered for mint, or nil.
func (c *LedgerClient) GetTokenSupply(_ context.Context, mint string) (*solana.TokenSupply, error) {
	if err := c.record("getTokenSupply"); err != nil {
		return nil, err
	}
	return c.Supplies[mint], nil
}

// GetAccountInfo returns the account registered for pubkey, or nil.
func (c *LedgerClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	if err := c.record("getAccountInfo"); err != nil {
		return nil, err
	}
	return c.Accounts[pubkey], nil
}

// AddHolders registers top holders for a mint.
func (c *LedgerClient) AddHolders(mint string, holders ...solana.TokenAccountBalance) {
	c.Largest[mint] = append(c.Largest[mint], holders...)
}

// SetSupply registers supply metadata for a mint.
func (c *LedgerClient) SetSupply(mint, amount string, decimals int) {
	c.Supplies[mint] = &solana.TokenSupply{Amount: amount, Decimals: decimals}
}

// AddAccount registers raw account info.
func (c *LedgerClient) AddAccount(pubkey string, info *solana.AccountInfo) {
	c.Accounts[pubkey] = info
}

// Calls returns how many times method was invoked.
func (c *LedgerClient) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// TotalCalls returns the number of ledger calls of any kind.
func (c *LedgerClient) TotalCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

package solana

import "context"

// LedgerClient defines the Solana RPC calls used for holder lookups.
type LedgerClient interface {
	// GetTokenLargestAccounts returns the largest token accounts for a mint.
	// The result set is bounded by the node (currently 20 accounts).
	GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenAccountBalance, error)

	// GetTokenSupply returns supply metadata for a mint.
	// Returns nil if the node has no supply information.
	GetTokenSupply(ctx context.Context, mint string) (*TokenSupply, error)

	// GetAccountInfo retrieves account info by public key.
	// Returns nil if account not found.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)
}
